// Package catalogclient talks to the catalog/stock HTTP API:
//
//	GET /products/{id} -> {"id": 1, "title": "...", "price": 179.9, "image": "..."}
//	GET /stock/{id}    -> {"id": 1, "amount": 3}
//
// Stock is always fetched; product records may be cached.
package catalogclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahinestrog/rocketshoes/Frontend/src/cart/cartstate"
)

var ErrNotFound = errors.New("catalog: not found")

// StatusError is returned for any non-2xx answer other than 404.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog: %s %s: unexpected status %d", e.Method, e.Path, e.Code)
}

type Client struct {
	base     string
	http     *http.Client
	products *lru.Cache[int64, cartstate.Product]
	tracer   trace.Tracer
}

type Option func(*Client) error

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) error {
		cl.http = c
		return nil
	}
}

func WithTimeout(d time.Duration) Option {
	return func(cl *Client) error {
		cl.http = &http.Client{Timeout: d, Transport: cl.http.Transport}
		return nil
	}
}

// WithProductCache keeps up to size product records in memory.
func WithProductCache(size int) Option {
	return func(cl *Client) error {
		if size <= 0 {
			return nil
		}
		c, err := lru.New[int64, cartstate.Product](size)
		if err != nil {
			return err
		}
		cl.products = c
		return nil
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("catalog: base url is required")
	}
	c := &Client{
		base:   strings.TrimRight(baseURL, "/"),
		http:   &http.Client{Timeout: 5 * time.Second},
		tracer: otel.Tracer("github.com/ahinestrog/rocketshoes/Frontend/src/cart/catalogclient"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

var _ cartstate.Catalog = (*Client)(nil)

func (c *Client) Stock(ctx context.Context, productID int64) (cartstate.Stock, error) {
	var s cartstate.Stock
	if err := c.get(ctx, fmt.Sprintf("/stock/%d", productID), &s); err != nil {
		return cartstate.Stock{}, err
	}
	return s, nil
}

func (c *Client) Product(ctx context.Context, productID int64) (cartstate.Product, error) {
	if c.products != nil {
		if p, ok := c.products.Get(productID); ok {
			return p, nil
		}
	}
	var p cartstate.Product
	if err := c.get(ctx, fmt.Sprintf("/products/%d", productID), &p); err != nil {
		return cartstate.Product{}, err
	}
	// amount belongs to the cart, never to the catalog
	p.Amount = 0
	if c.products != nil {
		c.products.Add(productID, p)
	}
	return p, nil
}

func (c *Client) get(ctx context.Context, path string, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "GET "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.method", http.MethodGet), attribute.String("url.path", path)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("catalog: GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Method: http.MethodGet, Path: path, Code: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("catalog: decode %s: %w", path, err)
	}
	return nil
}
