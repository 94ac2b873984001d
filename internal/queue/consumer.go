package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"
)

// BookingLogFile is the file, inside the consumer's log directory, that
// receives one line per booking event.
const BookingLogFile = "booking.log"

// Consumer drains the booking events queue into an append-only log.
type Consumer struct {
	URL    string
	LogDir string
	Logger *log.Logger
}

// Run connects to RabbitMQ, declares the durable booking queue and appends
// every event to LogDir/booking.log.  It reconnects with exponential
// backoff until ctx is cancelled, and returns ctx.Err() then.  Messages that
// cannot be handled are rejected without requeue.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Logger.Warnj(log.JSON{"msg": "booking consumer dial failed", "error": err.Error(), "retry_in": backoff.String()})
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Logger.Warnj(log.JSON{"msg": "booking consumer loop ended, reconnecting", "error": err.Error()})
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Logger.Warnj(log.JSON{"msg": "booking consumer qos failed", "error": err.Error()})
	}
	if _, err := ch.QueueDeclare(BookingQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(BookingQueueName, "", false, false, false, false, nil)
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
			if err := HandleMessage(c.LogDir, d.Body); err != nil {
				c.Logger.Errorj(log.JSON{"msg": "booking consumer handle failed", "error": err.Error()})
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// HandleMessage decodes one event and appends its log line.
func HandleMessage(logDir string, body []byte) error {
	var ev BookingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.EventID == "" || ev.Type == "" {
		return errors.New("event id and type are required")
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", logDir, err)
	}
	f, err := os.OpenFile(filepath.Join(logDir, BookingLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders an event as a single human readable log line.
func FormatLine(ev BookingEvent) string {
	return fmt.Sprintf("[%s] %s | event_id=%s | booking_id=%d | user_id=%d | show_id=%d | seats=%d | total=%s | status=%s\n",
		ev.OccurredAt.Format(time.RFC3339), ev.Type, ev.EventID, ev.BookingID, ev.UserID, ev.ShowID,
		ev.Seats, ev.TotalPrice.StringFixed(2), ev.Status)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
