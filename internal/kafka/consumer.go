package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/Flopsa/digital-doc/common/metrics"

	"github.com/IBM/sarama"
)

// Handler processes one record. key is the record key, the entity key for change events.
type Handler func(ctx context.Context, key string, value []byte) error

type Consumer struct {
	consumer sarama.ConsumerGroup
	topic    string
	handler  *ConsumerGroupHandler
	logger   *slog.Logger
}

func NewConsumer(brokers []string, topic, group string, handler Handler, logger *slog.Logger, m *metrics.Metrics) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V2_8_0_0
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	consumerGroup, err := sarama.NewConsumerGroup(brokers, group, config)
	if err != nil {
		return nil, err
	}

	logger.Info("kafka consumer initialized", "brokers", brokers, "topic", topic, "group", group)

	return &Consumer{
		consumer: consumerGroup,
		topic:    topic,
		handler:  NewConsumerGroupHandler(handler, logger, m),
		logger:   logger,
	}, nil
}

// Start joins the group and consumes until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	for {
		if err := c.consumer.Consume(ctx, []string{c.topic}, c.handler); err != nil {
			c.logger.Error("error consuming messages", "error", err)
			return err
		}

		// Consume returns on every rebalance
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Consumer) Close() error {
	return c.consumer.Close()
}

// ConsumerGroupHandler implements sarama.ConsumerGroupHandler. Every record is marked,
// including ones the handler rejects, so a poison record cannot stall the partition.
type ConsumerGroupHandler struct {
	handler Handler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewConsumerGroupHandler(handler Handler, logger *slog.Logger, m *metrics.Metrics) *ConsumerGroupHandler {
	return &ConsumerGroupHandler{
		handler: handler,
		logger:  logger,
		metrics: m,
	}
}

func (h *ConsumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *ConsumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *ConsumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()

	for msg := range claim.Messages() {
		start := time.Now()
		err := h.handler(ctx, string(msg.Key), msg.Value)
		h.metrics.Messaging.RecordConsume(ctx, msg.Topic, time.Since(start), err)

		if err != nil {
			h.logger.ErrorContext(ctx, "failed to handle kafka message",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		} else {
			h.logger.DebugContext(ctx, "kafka message handled", "key", string(msg.Key), "offset", msg.Offset)
		}

		session.MarkMessage(msg, "")
	}

	return nil
}
