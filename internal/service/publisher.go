// Package service publishes booking events to RabbitMQ.  Publishing is
// best-effort: callers log failures and carry on with the request.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/railway-reservation/internal/queue"
)

// Publisher delivers booking events.
type Publisher interface {
	Publish(ctx context.Context, ev queue.BookingEvent) error
	Close() error
}

// NopPublisher drops every event.  Used when RABBITMQ_URL is unset.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, queue.BookingEvent) error { return nil }
func (NopPublisher) Close() error                                      { return nil }

// RabbitPublisher publishes persistent JSON messages to a durable queue
// on the default exchange.  The connection is opened lazily and redialled
// after the broker drops it.
type RabbitPublisher struct {
	url         string
	queue       string
	dialTimeout time.Duration

	mu     sync.Mutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	logger *log.Logger
}

// NewRabbitPublisher does not contact the broker; the first Publish does.
func NewRabbitPublisher(url, queueName string) *RabbitPublisher {
	if queueName == "" {
		queueName = queue.DefaultQueue
	}
	return &RabbitPublisher{url: url, queue: queueName, dialTimeout: 3 * time.Second, logger: log.New("rabbitmq")}
}

// open reports the cached channel when it is still usable.  Callers hold
// p.mu.
func (p *RabbitPublisher) open() *amqp.Channel {
	if p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed() {
		return p.ch
	}
	return nil
}

// channel returns an open channel, dialling and declaring the queue when
// needed.  p.mu is not held while the broker is contacted.
func (p *RabbitPublisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	if ch := p.open(); ch != nil {
		p.mu.Unlock()
		return ch, nil
	}
	p.mu.Unlock()

	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Dial:      amqp.DefaultDial(p.dialTimeout),
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
	})
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if cur := p.open(); cur != nil {
		// another publisher won the race
		_ = ch.Close()
		_ = conn.Close()
		return cur, nil
	}
	p.reset()
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *RabbitPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Publish sends ev, filling in ID and OccurredAt when empty.
func (p *RabbitPublisher) Publish(ctx context.Context, ev queue.BookingEvent) error {
	ev = stamp(ev, time.Now().UTC())
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ch, err := p.channel()
	if err != nil {
		p.logger.Warnf("publish %s %s: %v", ev.Kind, ev.PNR, err)
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Type:         ev.Kind,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.mu.Lock()
		if p.ch == ch {
			p.reset()
		}
		p.mu.Unlock()
		p.logger.Warnf("publish %s %s: %v", ev.Kind, ev.PNR, err)
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Close releases the broker connection.
func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}

func stamp(ev queue.BookingEvent, at time.Time) queue.BookingEvent {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt == "" {
		ev.OccurredAt = at.Format(time.RFC3339)
	}
	return ev
}
