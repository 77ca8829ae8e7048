// Package storage holds the key/value stores the cart is persisted in.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahinestrog/rocketshoes/Frontend/src/cart/cartstate"
)

var ErrUnknownBackend = errors.New("storage: unknown backend")

// Pinger is implemented by stores that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options picks and configures a backend for Open.
type Options struct {
	Backend   string // memory | sqlite | redis
	DBPath    string
	RedisAddr string
}

// Open returns the store for opts.Backend and a close func.
func Open(ctx context.Context, opts Options) (cartstate.Store, func() error, error) {
	switch opts.Backend {
	case "", "memory":
		return NewMemory(), func() error { return nil }, nil
	case "sqlite":
		s, err := OpenSQLite(ctx, opts.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "redis":
		r, err := NewRedis(opts.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		if err := r.Initialize(ctx); err != nil {
			_ = r.Close()
			return nil, nil, err
		}
		return r, r.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
