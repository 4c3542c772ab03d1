package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/Flopsa/digital-doc/common/metrics"

	"github.com/nats-io/nats.go"
)

// Handler processes one message. Errors are logged and counted; the message is not redelivered.
type Handler func(ctx context.Context, subject string, data []byte) error

// Consumer subscribes to every subject below "<subject>." as part of a queue group, so
// several consumers split the stream between them.
type Consumer struct {
	conn    *nats.Conn
	sub     *nats.Subscription
	subject string
	queue   string
	handler Handler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewConsumer(conn *nats.Conn, subject, queue string, handler Handler, logger *slog.Logger, m *metrics.Metrics) *Consumer {
	return &Consumer{
		conn:    conn,
		subject: subject,
		queue:   queue,
		handler: handler,
		logger:  logger,
		metrics: m,
	}
}

// Start subscribes and blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	sub, err := c.conn.QueueSubscribe(c.subject+".>", c.queue, func(msg *nats.Msg) {
		start := time.Now()
		err := c.handler(ctx, msg.Subject, msg.Data)
		c.metrics.Messaging.RecordConsume(ctx, c.subject, time.Since(start), err)
		if err != nil {
			c.logger.ErrorContext(ctx, "failed to handle message", "subject", msg.Subject, "error", err)
			return
		}
		c.logger.DebugContext(ctx, "message handled", "subject", msg.Subject)
	})
	if err != nil {
		return err
	}

	c.sub = sub
	c.logger.Info("NATS consumer started", "subject", c.subject, "queue", c.queue)

	<-ctx.Done()
	return ctx.Err()
}

func (c *Consumer) Close() error {
	if c.sub != nil {
		return c.sub.Drain()
	}
	return nil
}
