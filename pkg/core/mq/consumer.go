package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"deal_proforma/pkg/core/logger"
	"deal_proforma/pkg/core/metrics"
)

// MessageHandler processes one message body.
type MessageHandler func(ctx context.Context, data json.RawMessage) error

// PermanentError marks a failure that redelivery cannot fix (a malformed or invalid event).
// Such messages are dropped instead of requeued.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a PermanentError.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Consumer reads one queue with prefetch 1, so messages are handled strictly one at a time.
type Consumer struct {
	conn       *amqp091.Connection
	channel    *amqp091.Channel
	queue      amqp091.Queue
	routingKey string
	handler    MessageHandler
	logger     *zap.Logger
}

// NewConsumer creates a consumer bound to routingKey on a durable queue.
func NewConsumer(url, queueName, routingKey string, log *zap.Logger) (*Consumer, error) {
	log = logger.OrNop(log)

	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	fail := func(format string, err error) (*Consumer, error) {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf(format, err)
	}

	if err := DeclareExchange(ch); err != nil {
		return fail("failed to declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fail("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, routingKey, ExchangeName, false, nil); err != nil {
		return fail("failed to bind queue: %w", err)
	}

	if err := ch.Qos(1, 0, false); err != nil {
		return fail("failed to set prefetch: %w", err)
	}

	log.Info("Consumer initialized",
		zap.String("routing_key", routingKey),
		zap.String("queue", queueName),
		zap.String("exchange", ExchangeName),
	)

	return &Consumer{
		conn:       conn,
		channel:    ch,
		queue:      q,
		routingKey: routingKey,
		logger:     log,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming blocks until ctx is done or the delivery channel closes.
func (c *Consumer) StartConsuming(ctx context.Context) error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(
		c.queue.Name,
		"proforma-worker",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.handle(ctx, msg)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg amqp091.Delivery) {
	start := time.Now()
	defer func() {
		metrics.RecordMQConsumeLatency(c.routingKey, c.queue.Name, time.Since(start))
	}()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Handler panic recovered",
				zap.String("routing_key", c.routingKey),
				zap.Any("panic", r),
			)
			if err := msg.Nack(false, true); err != nil {
				c.logger.Error("Failed to nack message after panic", zap.Error(err))
			}
		}
	}()

	err := c.handler(ctx, msg.Body)
	if err != nil {
		var perm *PermanentError
		requeue := !errors.As(err, &perm)
		c.logger.Error("Handler error",
			zap.String("routing_key", c.routingKey),
			zap.String("queue", c.queue.Name),
			zap.Bool("requeue", requeue),
			zap.Error(err),
		)
		if err := msg.Nack(false, requeue); err != nil {
			c.logger.Error("Failed to nack message", zap.Error(err))
		}
		return
	}

	if err := msg.Ack(false); err != nil {
		c.logger.Error("Failed to ack message", zap.Error(err))
	}
}
