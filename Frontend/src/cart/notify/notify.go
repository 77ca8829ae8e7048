// Package notify delivers cart error messages to the shopper.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ahinestrog/rocketshoes/Frontend/src/cart/cartstate"
)

// Log writes every message as a warning.
type Log struct {
	log zerolog.Logger
}

func NewLog(l zerolog.Logger) *Log { return &Log{log: l} }

func (n *Log) Notify(_ context.Context, message string) {
	n.log.Warn().Str("notification", message).Msg("cart notification")
}

// Message is one pending toast.
type Message struct {
	Text string    `json:"message"`
	At   time.Time `json:"at"`
}

const DefaultFlashSize = 32

// Flash queues messages until the UI drains them. When full the oldest
// message is dropped.
type Flash struct {
	mu      sync.Mutex
	size    int
	pending []Message
	now     func() time.Time
}

func NewFlash(size int) *Flash {
	if size <= 0 {
		size = DefaultFlashSize
	}
	return &Flash{size: size, now: time.Now}
}

func (f *Flash) Notify(_ context.Context, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) == f.size {
		f.pending = f.pending[1:]
	}
	f.pending = append(f.pending, Message{Text: message, At: f.now()})
}

// Drain returns the pending messages, oldest first, and empties the queue.
func (f *Flash) Drain() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.pending
	f.pending = nil
	if out == nil {
		out = []Message{}
	}
	return out
}

// Multi fans a message out to every notifier in order.
type Multi []cartstate.Notifier

func (m Multi) Notify(ctx context.Context, message string) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, message)
		}
	}
}
