// Package cartstate keeps the shopper's cart: an ordered, id-unique list of
// products checked against catalog stock on every change and written through
// to a key/value store.
package cartstate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StorageKey is where the cart lives in the Store unless WithStorageKey says otherwise.
const StorageKey = "@RocketShoes:cart"

const tracerName = "github.com/ahinestrog/rocketshoes/Frontend/src/cart/cartstate"

// Manager owns one cart. Operations do not block each other across catalog
// calls: two concurrent operations each decide on the cart they observed when
// they started, and the last one to commit wins. Use WithSerializedMutations
// to run them one at a time instead.
type Manager struct {
	catalog  Catalog
	store    Store
	notifier Notifier

	key       string
	messages  Messages
	log       zerolog.Logger
	tracer    trace.Tracer
	strict    bool
	serialize bool

	opMu sync.Mutex

	mu   sync.RWMutex // guards cart; held across store.Set in commit
	cart Cart
}

type Option func(*Manager)

func WithLogger(l zerolog.Logger) Option { return func(m *Manager) { m.log = l } }

func WithMessages(msgs Messages) Option { return func(m *Manager) { m.messages = msgs } }

func WithStorageKey(key string) Option { return func(m *Manager) { m.key = key } }

// WithStrictLoad makes New fail with ErrCorruptCart when the persisted cart
// cannot be parsed, instead of starting from an empty cart.
func WithStrictLoad() Option { return func(m *Manager) { m.strict = true } }

// WithSerializedMutations runs Add, Remove and UpdateAmount one at a time,
// including their catalog calls.
func WithSerializedMutations() Option { return func(m *Manager) { m.serialize = true } }

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *Manager) { m.tracer = tp.Tracer(tracerName) }
}

// New loads the cart from store and returns a ready Manager. A nil notifier
// discards messages.
func New(ctx context.Context, catalog Catalog, store Store, notifier Notifier, opts ...Option) (*Manager, error) {
	if catalog == nil {
		return nil, errors.New("cartstate: catalog is required")
	}
	if store == nil {
		return nil, errors.New("cartstate: store is required")
	}
	if notifier == nil {
		notifier = discard{}
	}
	m := &Manager{
		catalog:  catalog,
		store:    store,
		notifier: notifier,
		key:      StorageKey,
		messages: DefaultMessages,
		log:      zerolog.Nop(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.load(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) load(ctx context.Context) error {
	raw, ok, err := m.store.Get(ctx, m.key)
	if err != nil {
		return fmt.Errorf("cartstate: load %q: %w", m.key, err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		m.cart = Cart{}
		return nil
	}

	cart, err := decodeCart(raw)
	if err != nil {
		if m.strict {
			return fmt.Errorf("%w: %v", ErrCorruptCart, err)
		}
		m.log.Warn().Err(err).Str("key", m.key).Msg("persisted cart unreadable, starting empty")
		cart = Cart{}
	}
	cart, dropped := normalize(cart)
	if dropped > 0 {
		m.log.Warn().Int("dropped", dropped).Str("key", m.key).Msg("persisted cart had invalid entries")
	}
	m.cart = cart
	m.log.Debug().Int("items", len(cart)).Str("key", m.key).Msg("cart loaded")
	return nil
}

// Cart returns a copy of the current cart.
func (m *Manager) Cart() Cart {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cart.clone()
}

// Add puts one more unit of productID in the cart, appending a new entry
// fetched from the catalog when the product is not there yet.
func (m *Manager) Add(ctx context.Context, productID int64) Result {
	ctx, span := m.start(ctx, "cart.add", productID)
	defer span.End()
	defer m.begin()()

	res := m.add(ctx, productID)
	m.finish(span, "add", productID, res)
	return res
}

func (m *Manager) add(ctx context.Context, productID int64) Result {
	current := m.Cart()

	stock, err := m.catalog.Stock(ctx, productID)
	if err != nil {
		return m.fail(ctx, m.messages.AddFailed, fmt.Errorf("fetch stock %d: %w", productID, err))
	}

	idx := current.Index(productID)
	if stock.Amount < 1 || (idx >= 0 && current[idx].Amount >= stock.Amount) {
		return m.reject(ctx, ReasonOutOfStock, ErrOutOfStock, m.messages.OutOfStock)
	}

	next := current.clone()
	if idx >= 0 {
		next[idx].Amount++
	} else {
		product, err := m.catalog.Product(ctx, productID)
		if err != nil {
			return m.fail(ctx, m.messages.AddFailed, fmt.Errorf("fetch product %d: %w", productID, err))
		}
		if product.ID != productID {
			return m.fail(ctx, m.messages.AddFailed, fmt.Errorf("catalog returned product %d for %d", product.ID, productID))
		}
		product.Amount = 1
		next = append(next, product)
	}

	if err := m.commit(ctx, next); err != nil {
		return m.fail(ctx, m.messages.AddFailed, err)
	}
	return Result{Cart: next.clone()}
}

// Remove deletes the entry for productID.
func (m *Manager) Remove(ctx context.Context, productID int64) Result {
	ctx, span := m.start(ctx, "cart.remove", productID)
	defer span.End()
	defer m.begin()()

	res := m.remove(ctx, productID)
	m.finish(span, "remove", productID, res)
	return res
}

func (m *Manager) remove(ctx context.Context, productID int64) Result {
	current := m.Cart()
	idx := current.Index(productID)
	if idx < 0 {
		return m.reject(ctx, ReasonNotFound, ErrNotFound, m.messages.RemoveFailed)
	}

	next := make(Cart, 0, len(current)-1)
	next = append(next, current[:idx]...)
	next = append(next, current[idx+1:]...)

	if err := m.commit(ctx, next); err != nil {
		return m.fail(ctx, m.messages.RemoveFailed, err)
	}
	return Result{Cart: next.clone()}
}

// UpdateAmount sets the entry for productID to exactly amount. A
// non-positive amount is ignored without notifying the shopper.
func (m *Manager) UpdateAmount(ctx context.Context, productID int64, amount int) Result {
	ctx, span := m.start(ctx, "cart.update_amount", productID)
	span.SetAttributes(attribute.Int("cart.amount", amount))
	defer span.End()
	defer m.begin()()

	res := m.updateAmount(ctx, productID, amount)
	m.finish(span, "update_amount", productID, res)
	return res
}

func (m *Manager) updateAmount(ctx context.Context, productID int64, amount int) Result {
	current := m.Cart()
	if amount <= 0 {
		return Result{Cart: current, Reason: ReasonInvalidAmount, Cause: ErrInvalidAmount}
	}

	stock, err := m.catalog.Stock(ctx, productID)
	if err != nil {
		return m.fail(ctx, m.messages.UpdateFailed, fmt.Errorf("fetch stock %d: %w", productID, err))
	}
	if stock.Amount < amount {
		return m.reject(ctx, ReasonOutOfStock, ErrOutOfStock, m.messages.OutOfStock)
	}

	idx := current.Index(productID)
	if idx < 0 {
		return m.reject(ctx, ReasonNotFound, ErrNotFound, m.messages.UpdateFailed)
	}

	next := current.clone()
	next[idx].Amount = amount

	if err := m.commit(ctx, next); err != nil {
		return m.fail(ctx, m.messages.UpdateFailed, err)
	}
	return Result{Cart: next.clone()}
}

// commit writes next to the store and, only if that succeeds, makes it the
// current cart. Both happen under mu so store and memory never diverge.
func (m *Manager) commit(ctx context.Context, next Cart) error {
	raw, err := encodeCart(next)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Set(ctx, m.key, raw); err != nil {
		return fmt.Errorf("persist cart: %w", err)
	}
	m.cart = next
	return nil
}

func (m *Manager) reject(ctx context.Context, reason Reason, cause error, msg string) Result {
	m.notifier.Notify(ctx, msg)
	return Result{Cart: m.Cart(), Reason: reason, Cause: cause, Message: msg}
}

func (m *Manager) fail(ctx context.Context, msg string, err error) Result {
	m.notifier.Notify(ctx, msg)
	return Result{Cart: m.Cart(), Reason: ReasonFailure, Cause: err, Message: msg}
}

func (m *Manager) begin() func() {
	if !m.serialize {
		return func() {}
	}
	m.opMu.Lock()
	return m.opMu.Unlock
}

func (m *Manager) start(ctx context.Context, name string, productID int64) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, name, trace.WithAttributes(attribute.Int64("product.id", productID)))
}

func (m *Manager) finish(span trace.Span, op string, productID int64, res Result) {
	span.SetAttributes(attribute.String("cart.reason", res.Reason.String()))
	switch res.Reason {
	case ReasonNone:
		m.log.Debug().Str("op", op).Int64("product", productID).Int("items", len(res.Cart)).Msg("cart updated")
	case ReasonFailure:
		span.RecordError(res.Cause)
		span.SetStatus(codes.Error, res.Message)
		m.log.Error().Err(res.Cause).Str("op", op).Int64("product", productID).Msg("cart operation failed")
	default:
		m.log.Info().Str("op", op).Int64("product", productID).Stringer("reason", res.Reason).Msg("cart operation rejected")
	}
}
