// Package events publishes reservation changes to RabbitMQ.
// Publishing is best effort: failures are logged and returned, and callers are
// expected to carry on with the request that produced the event.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/localnerve/portsmith/internal/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Event types
const (
	Reserved = "reserved"
	Modified = "modified"
	Patched  = "patched"
	Released = "released"
)

const (
	// publishTimeout bounds dialing and publishing a single event
	publishTimeout = 2 * time.Second
	// redialBackoff is how long a failed dial keeps further publishes from dialing
	redialBackoff = 10 * time.Second
)

// Event describes a committed change to a reservation.
type Event struct {
	Type       string            `json:"type"`
	Port       int               `json:"port"`
	Tags       []string          `json:"tags,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
	At         time.Time         `json:"at"`
}

// Publisher sends reservation events somewhere.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// New returns an AMQP publisher when cfg names a broker, otherwise Nop.
func New(cfg *config.Config) Publisher {
	if cfg.AMQPURL == "" {
		return Nop{}
	}
	return NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPQueue)
}

// ErrBrokerUnavailable is returned without dialing while a failed dial is backing off.
var ErrBrokerUnavailable = errors.New("rabbitmq: broker unavailable")

// AMQPPublisher publishes each event as a persistent JSON message to a durable
// queue through the default exchange. One connection is kept open and shared by
// all publishes; it is redialed when the broker drops it.
type AMQPPublisher struct {
	url     string
	queue   string
	backoff time.Duration

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	retryAt time.Time
}

// NewAMQPPublisher returns a publisher for queue on the broker at url. Nothing is
// dialed until the first event.
func NewAMQPPublisher(url, queue string) *AMQPPublisher {
	return &AMQPPublisher{url: url, queue: queue, backoff: redialBackoff}
}

// channel returns the open channel, dialing the broker if needed. Callers hold p.mu.
func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.closeLocked()

	if time.Now().Before(p.retryAt) {
		return nil, ErrBrokerUnavailable
	}

	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(publishTimeout)})
	if err != nil {
		p.retryAt = time.Now().Add(p.backoff)
		log.Printf("rabbitmq: dial failed: %v", err)
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		p.retryAt = time.Now().Add(p.backoff)
		_ = conn.Close()
		log.Printf("rabbitmq: channel open failed: %v", err)
		return nil, err
	}

	if _, err := ch.QueueDeclare(
		p.queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		p.retryAt = time.Now().Add(p.backoff)
		_ = conn.Close()
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return nil, err
	}

	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *AMQPPublisher) closeLocked() {
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// Publish sends event on the shared channel.
// The request context's cancellation is ignored so a finished request still
// gets its event out; publishTimeout bounds the publish instead. While the broker
// is down a dial is attempted at most once per backoff period.
func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.At,
			Type:         event.Type,
			Body:         body,
		},
	); err != nil {
		p.closeLocked()
		log.Printf("rabbitmq: publish %s event for port %d failed: %v", event.Type, event.Port, err)
		return err
	}

	return nil
}

// Close closes the broker connection, if any.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}
