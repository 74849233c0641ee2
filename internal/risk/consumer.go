package risk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/kgellert/hodatay-groupchat/internal/errs"
	"github.com/kgellert/hodatay-groupchat/internal/lib/logger/sl"
)

const prefetch = 16

type Pusher interface {
	Push(ctx context.Context, u Update) error
}

// Consumer reads scored updates from a RabbitMQ queue and pushes them.
type Consumer struct {
	pusher Pusher
	log    *slog.Logger
}

func NewConsumer(pusher Pusher, log *slog.Logger) *Consumer {
	return &Consumer{pusher: pusher, log: log}
}

// Run consumes queue on a new connection to url until ctx is done or the
// broker closes the channel.
func (c *Consumer) Run(ctx context.Context, url, queue string) error {
	const op = "risk.Consumer.Run"

	conn, err := amqp.Dial(url)
	if err != nil {
		return fmt.Errorf("%s: dial: %w", op, err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("%s: open channel: %w", op, err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("%s: declare queue: %w", op, err)
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("%s: qos: %w", op, err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%s: consume: %w", op, err)
	}

	c.log.Info("risk consumer started", slog.String("queue", queue))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("%s: delivery channel closed", op)
			}
			c.Handle(ctx, d)
		}
	}
}

// Handle pushes one delivery. Malformed or invalid updates are dropped,
// push failures are requeued.
func (c *Consumer) Handle(ctx context.Context, d amqp.Delivery) {
	const op = "risk.Consumer.Handle"

	log := c.log.With(slog.String("op", op), slog.Uint64("delivery_tag", d.DeliveryTag))

	var u Update
	if err := json.Unmarshal(d.Body, &u); err != nil {
		log.Warn("invalid risk update", sl.Err(err))
		_ = d.Nack(false, false)
		return
	}

	if err := c.pusher.Push(ctx, u); err != nil {
		if errors.Is(err, errs.ErrValidation) {
			log.Warn("rejected risk update", slog.String("region", u.Region), sl.Err(err))
			_ = d.Nack(false, false)
			return
		}
		log.Error("failed to push risk update", slog.String("region", u.Region), sl.Err(err))
		_ = d.Nack(false, true)
		return
	}

	if err := d.Ack(false); err != nil {
		log.Error("failed to ack", sl.Err(err))
	}
}
