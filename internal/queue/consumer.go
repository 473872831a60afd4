package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Consumer drains the audit queue and appends one line per event to an
// audit log file.
type Consumer struct {
	url     string
	queue   string
	logPath string
	log     zerolog.Logger
}

func NewConsumer(url, queue, logPath string, log zerolog.Logger) *Consumer {
	return &Consumer{
		url:     url,
		queue:   queue,
		logPath: logPath,
		log:     log.With().Str("component", "audit-consumer").Logger(),
	}
}

// Run connects to the broker and consumes until ctx is cancelled,
// reconnecting with exponential backoff (capped at 30s) when the broker
// goes away. Messages that cannot be processed are rejected without
// requeueing to avoid tight loops.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn().Err(err).Dur("retry_in", backoff).Msg("failed to dial broker")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn().Err(err).Msg("consume loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
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
		c.log.Warn().Err(err).Msg("set QoS failed")
	}
	if _, err := declareQueue(ch, c.queue); err != nil {
		return err
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
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
			if err := c.handle(d.Body); err != nil {
				c.log.Error().Err(err).Msg("handle message failed")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handle(body []byte) error {
	if err := os.MkdirAll(filepath.Dir(c.logPath), 0o755); err != nil {
		return fmt.Errorf("mkdir audit dir: %w", err)
	}
	f, err := os.OpenFile(c.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()
	return writeAuditLine(f, body)
}

// writeAuditLine decodes one event and writes its audit line to w.
func writeAuditLine(w io.Writer, body []byte) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" {
		return errors.New("event without type")
	}

	var line string
	switch ev.Type {
	case TypeAccountRegistered:
		line = fmt.Sprintf("[%s] Account registered | account_id=%d | username=%q\n",
			ev.OccurredAt.Format(time.RFC3339), ev.AccountID, ev.Username)
	case TypeRefreshReuseDetected:
		line = fmt.Sprintf("[%s] Refresh token reuse detected | account_id=%d | family=%s | revoked=%d\n",
			ev.OccurredAt.Format(time.RFC3339), ev.AccountID, ev.FamilyID, ev.Revoked)
	default:
		line = fmt.Sprintf("[%s] %s | account_id=%d\n",
			ev.OccurredAt.Format(time.RFC3339), ev.Type, ev.AccountID)
	}
	if _, err := io.WriteString(w, line); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
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
