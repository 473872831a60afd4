package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Publisher delivers audit events. Callers treat failures as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// dialTimeout bounds how long a Publish can stall on an unreachable broker.
const dialTimeout = 3 * time.Second

// AMQPPublisher publishes events to a durable queue on the default
// exchange. Each Publish dials its own connection, so a broker outage never
// leaves a broken shared channel behind.
type AMQPPublisher struct {
	url   string
	queue string
	log   zerolog.Logger
}

func NewAMQPPublisher(url, queue string, log zerolog.Logger) *AMQPPublisher {
	return &AMQPPublisher{url: url, queue: queue, log: log.With().Str("component", "amqp-publisher").Logger()}
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
	})
	if err != nil {
		p.log.Warn().Err(err).Str("type", ev.Type).Msg("dial failed")
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := declareQueue(ch, p.queue); err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		pub,
	); err != nil {
		p.log.Warn().Err(err).Str("type", ev.Type).Msg("publish failed")
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// LogPublisher writes events to the application log. It is used when no
// broker is configured.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log.With().Str("component", "audit").Logger()}
}

func (p *LogPublisher) Publish(_ context.Context, ev Event) error {
	p.log.Info().
		Str("type", ev.Type).
		Int64("account_id", ev.AccountID).
		Str("username", ev.Username).
		Str("family_id", ev.FamilyID).
		Int64("revoked", ev.Revoked).
		Time("occurred_at", ev.OccurredAt).
		Msg("audit event")
	return nil
}

func declareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	)
	if err != nil {
		return q, fmt.Errorf("queue declare: %w", err)
	}
	return q, nil
}
