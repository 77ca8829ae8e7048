package cartstate

import (
	"errors"
	"strings"
)

var (
	ErrOutOfStock    = errors.New("cartstate: requested quantity out of stock")
	ErrNotFound      = errors.New("cartstate: product not in cart")
	ErrInvalidAmount = errors.New("cartstate: amount must be positive")
	ErrCorruptCart   = errors.New("cartstate: persisted cart is corrupt")
)

// Reason tags why an operation left the cart unchanged.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonOutOfStock
	ReasonNotFound
	ReasonInvalidAmount
	ReasonFailure
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonOutOfStock:
		return "out_of_stock"
	case ReasonNotFound:
		return "not_found"
	case ReasonInvalidAmount:
		return "invalid_amount"
	case ReasonFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Result is what every cart operation returns. Cart is the cart after the
// operation, whether or not it changed.
type Result struct {
	Cart   Cart
	Reason Reason
	// Cause is a sentinel for expected rejections and the underlying error
	// for ReasonFailure.
	Cause error
	// Message is the text sent to the notifier, empty when nothing was sent.
	Message string
}

func (r Result) OK() bool { return r.Reason == ReasonNone }

// Messages are the user-facing strings handed to the Notifier.
type Messages struct {
	OutOfStock   string
	AddFailed    string
	RemoveFailed string
	UpdateFailed string
}

var DefaultMessages = Messages{
	OutOfStock:   "requested quantity out of stock",
	AddFailed:    "error adding product",
	RemoveFailed: "error removing product",
	UpdateFailed: "error changing product quantity",
}

var PortugueseMessages = Messages{
	OutOfStock:   "Quantidade solicitada fora de estoque",
	AddFailed:    "Erro na adição do produto",
	RemoveFailed: "Erro na remoção do produto",
	UpdateFailed: "Erro na alteração de quantidade do produto",
}

// MessagesFor picks the message set for a locale tag, English by default.
func MessagesFor(locale string) Messages {
	switch strings.ToLower(strings.TrimSpace(locale)) {
	case "pt", "pt-br", "pt_br":
		return PortugueseMessages
	default:
		return DefaultMessages
	}
}
