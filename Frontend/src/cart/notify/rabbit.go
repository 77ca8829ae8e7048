package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const RKCartNotification = "cart.notification"

// NotificationPayload is the body published for each message.
type NotificationPayload struct {
	ID      string    `json:"id"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// publisher is the part of *amqp.Channel Rabbit uses.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Rabbit publishes messages to a topic exchange so other front ends can
// show them. Publish errors are logged, never returned.
type Rabbit struct {
	conn     *amqp.Connection
	ch       publisher
	exchange string
	timeout  time.Duration
}

func NewRabbit(url, exchange string) (*Rabbit, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &Rabbit{conn: conn, ch: ch, exchange: exchange, timeout: 2 * time.Second}, nil
}

func (r *Rabbit) Notify(ctx context.Context, message string) {
	payload := NotificationPayload{ID: uuid.NewString(), Message: message, At: time.Now().UTC()}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("rabbit: marshal notification")
		return
	}

	// the caller's request may already be finished; only keep its values
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	err = r.ch.PublishWithContext(pubCtx, r.exchange, RKCartNotification, false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   payload.ID,
		Timestamp:   payload.At,
		Body:        body,
	})
	if err != nil {
		log.Error().Err(err).Str("exchange", r.exchange).Msg("rabbit: publish notification failed")
	}
}

func (r *Rabbit) Close() error {
	if c, ok := r.ch.(*amqp.Channel); ok && c != nil {
		_ = c.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
