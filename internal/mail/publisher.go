package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher queues messages on a durable RabbitMQ queue.  It dials per
// publish, so a broker restart never leaves it holding a dead channel.
type Publisher struct {
	url    string
	queue  string
	from   string
	logger *zap.SugaredLogger
}

func NewPublisher(url, queue, from string, logger *zap.SugaredLogger) *Publisher {
	return &Publisher{url: url, queue: queue, from: from, logger: logger}
}

// Send publishes msg as a persistent message.  Errors are logged and
// returned so callers inside a transaction can roll back.
func (p *Publisher) Send(ctx context.Context, msg Message) error {
	if msg.From == "" {
		msg.From = p.from
	}
	msg.QueuedAt = time.Now().UTC()
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.logger.Warnw("mail: dial failed", "error", err)
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.logger.Warnw("mail: channel open failed", "error", err)
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := declare(ch, p.queue); err != nil {
		p.logger.Warnw("mail: queue declare failed", "queue", p.queue, "error", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    msg.QueuedAt,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.logger.Warnw("mail: publish failed", "queue", p.queue, "error", err)
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// declare is idempotent; the queue is durable so messages survive broker restarts.
func declare(ch *amqp.Channel, queue string) error {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	return nil
}
