package cartstate

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Product is a catalog record. Amount is only set on cart entries; the
// catalog never sends it.
type Product struct {
	ID     int64
	Amount int
	// Attributes keeps every other catalog field verbatim (title, price,
	// image, ...). Treat it as read-only.
	Attributes map[string]json.RawMessage
}

// Stock is the availability the catalog reports for one product.
type Stock struct {
	ID     int64 `json:"id"`
	Amount int   `json:"amount"`
}

// Cart is the ordered list of entries, unique by product id.
type Cart []Product

func (p Product) Title() string {
	var s string
	_ = json.Unmarshal(p.Attributes["title"], &s)
	return s
}

func (p Product) Price() float64 {
	var f float64
	_ = json.Unmarshal(p.Attributes["price"], &f)
	return f
}

func (p Product) Image() string {
	var s string
	_ = json.Unmarshal(p.Attributes["image"], &s)
	return s
}

func (p *Product) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	id, ok := raw["id"]
	if !ok {
		return errors.New("product: missing id")
	}
	var out Product
	if err := json.Unmarshal(id, &out.ID); err != nil {
		return fmt.Errorf("product: id: %w", err)
	}
	delete(raw, "id")
	if amount, ok := raw["amount"]; ok {
		if err := json.Unmarshal(amount, &out.Amount); err != nil {
			return fmt.Errorf("product %d: amount: %w", out.ID, err)
		}
		delete(raw, "amount")
	}
	if len(raw) > 0 {
		out.Attributes = raw
	}
	*p = out
	return nil
}

func (p Product) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(p.Attributes)+2)
	for k, v := range p.Attributes {
		out[k] = v
	}
	out["id"] = json.RawMessage(fmt.Sprintf("%d", p.ID))
	if p.Amount != 0 {
		out["amount"] = json.RawMessage(fmt.Sprintf("%d", p.Amount))
	}
	return json.Marshal(out)
}

// Index returns the position of the entry for id, or -1.
func (c Cart) Index(id int64) int {
	for i := range c {
		if c[i].ID == id {
			return i
		}
	}
	return -1
}

func (c Cart) clone() Cart {
	out := make(Cart, len(c))
	copy(out, c)
	return out
}

func encodeCart(c Cart) (string, error) {
	if c == nil {
		c = Cart{}
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode cart: %w", err)
	}
	return string(b), nil
}

func decodeCart(raw string) (Cart, error) {
	var c Cart
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	if c == nil {
		c = Cart{}
	}
	return c, nil
}

// normalize drops entries with a non-positive amount and repeated ids,
// keeping the first occurrence of each id.
func normalize(c Cart) (Cart, int) {
	out := make(Cart, 0, len(c))
	seen := make(map[int64]struct{}, len(c))
	for _, p := range c {
		if p.Amount < 1 {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out, len(c) - len(out)
}
