package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer reads booking events from RabbitMQ and appends one line per
// event to <LogDir>/booking.log.
type Consumer struct {
	URL    string
	Queue  string
	LogDir string
	logger *log.Logger
}

// NewConsumer returns a Consumer with the default queue name when queue
// is empty.
func NewConsumer(url, queue, logDir string) *Consumer {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Consumer{URL: url, Queue: queue, LogDir: logDir, logger: log.New("booking-consumer")}
}

// Run connects, consumes and reconnects with exponential backoff until
// ctx is cancelled.  Malformed messages are rejected without requeue so
// a single bad payload cannot stall the queue.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.logger.Warnf("dial broker: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warnf("consume loop ended: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.logger.Warnf("set QoS failed: %v", err)
	}
	if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(d.Body); err != nil {
				c.logger.Errorf("handle message %s: %v", d.MessageId, err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes one message body and appends it to the booking log.
func (c *Consumer) Handle(body []byte) error {
	var ev BookingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Kind == "" {
		return errors.New("event kind missing")
	}
	if err := os.MkdirAll(c.LogDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.LogDir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.LogDir, "booking.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders an event as a single log line ending in '\n'.
func FormatLine(ev BookingEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | train=%s (id=%d) | user_id=%d | passenger=%q",
		ev.OccurredAt, ev.Kind, ev.TrainNumber, ev.TrainID, ev.UserID, ev.PassengerName)
	if ev.PNR != "" {
		fmt.Fprintf(&b, " | pnr=%s", ev.PNR)
	}
	if ev.SeatNumber > 0 {
		fmt.Fprintf(&b, " | seat=%d", ev.SeatNumber)
	}
	if ev.Position > 0 {
		fmt.Fprintf(&b, " | position=%d", ev.Position)
	}
	if ev.ReplacedPNR != "" {
		fmt.Fprintf(&b, " | replaced=%s", ev.ReplacedPNR)
	}
	fmt.Fprintf(&b, " | available=%d\n", ev.AvailableSeats)
	return b.String()
}
