package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/Flopsa/digital-doc/common/metrics"

	"github.com/nats-io/nats.go"
)

// Producer publishes to "<subject>.<key>".
type Producer struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewProducer(conn *nats.Conn, subject string, logger *slog.Logger, m *metrics.Metrics) *Producer {
	logger.Info("NATS producer initialized", "subject", subject)

	return &Producer{
		conn:    conn,
		subject: subject,
		logger:  logger,
		metrics: m,
	}
}

func (p *Producer) SendMessage(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	subject := p.subject + "." + key

	err := p.conn.Publish(subject, value)
	p.metrics.Messaging.RecordPublish(ctx, p.subject, time.Since(start), err)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to send message to NATS", "subject", subject, "error", err)
		return err
	}

	p.logger.DebugContext(ctx, "message sent to NATS", "subject", subject)
	return nil
}

// Close flushes buffered messages. The connection itself belongs to the caller.
func (p *Producer) Close() error {
	return p.conn.FlushTimeout(5 * time.Second)
}
