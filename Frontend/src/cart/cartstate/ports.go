package cartstate

import "context"

// Catalog is the remote catalog/stock service.
type Catalog interface {
	Stock(ctx context.Context, productID int64) (Stock, error)
	Product(ctx context.Context, productID int64) (Product, error)
}

// Store is a string key/value store. Set must be durable when it returns.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Notifier shows a short error message to the shopper. Fire and forget.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

type discard struct{}

func (discard) Notify(context.Context, string) {}
