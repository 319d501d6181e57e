package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const dialTimeout = 5 * time.Second

// ErrReconnecting is returned by Publish while another call is dialing the broker.
var ErrReconnecting = errors.New("amqp: reconnect in progress")

// AMQP publishes JSON events to a durable topic exchange on RabbitMQ.
// It dials on first publish and redials when the channel has closed. Only one
// caller dials at a time; the others fail fast until the channel is ready.
type AMQP struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	dial     func(url string) (*amqp.Connection, error)
	url      string
	exchange string
	mu       sync.Mutex
	dialing  bool
	closed   bool
}

// NewAMQP creates a publisher. An empty url disables publishing.
func NewAMQP(url string) *AMQP {
	return &AMQP{url: url, exchange: Exchange, dial: dialBroker}
}

func dialBroker(url string) (*amqp.Connection, error) {
	return amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
}

// Enabled reports whether a broker is configured.
func (a *AMQP) Enabled() bool { return a.url != "" }

func (a *AMQP) channel() (*amqp.Channel, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, errors.New("amqp: publisher closed")
	}
	if a.ch != nil && !a.ch.IsClosed() {
		ch := a.ch
		a.mu.Unlock()
		return ch, nil
	}
	if a.dialing {
		a.mu.Unlock()
		return nil, ErrReconnecting
	}
	a.dialing = true
	conn := a.conn
	a.mu.Unlock()

	conn, ch, err := a.connect(conn)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.dialing = false
	if err != nil {
		return nil, err
	}
	if a.closed {
		_ = ch.Close()
		_ = conn.Close()
		return nil, errors.New("amqp: publisher closed")
	}
	a.conn, a.ch = conn, ch
	log.Debug().Str("exchange", a.exchange).Msg("AMQP channel ready")
	return ch, nil
}

// connect reuses conn when it is still open and opens a channel with the
// exchange declared. It runs without mu held.
func (a *AMQP) connect(conn *amqp.Connection) (*amqp.Connection, *amqp.Channel, error) {
	if conn == nil || conn.IsClosed() {
		var err error
		if conn, err = a.dial(a.url); err != nil {
			return nil, nil, fmt.Errorf("amqp dial: %w", err)
		}
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(a.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", a.exchange, err)
	}
	return conn, ch, nil
}

// Publish implements Publisher.
func (a *AMQP) Publish(ctx context.Context, routingKey string, payload map[string]any) error {
	if !a.Enabled() {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", routingKey, err)
	}

	ch, err := a.channel()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, a.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

// Close closes the channel and connection.
func (a *AMQP) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	if a.ch != nil {
		_ = a.ch.Close()
		a.ch = nil
	}
	if a.conn != nil {
		err := a.conn.Close()
		a.conn = nil
		return err
	}
	return nil
}

var _ Publisher = (*AMQP)(nil)
