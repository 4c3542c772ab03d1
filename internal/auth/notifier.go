package auth

import (
	"context"
	"encoding/json"
	"fmt"
)

// Publisher is satisfied by the NATS and Kafka producers.
type Publisher interface {
	SendMessage(ctx context.Context, key string, value []byte) error
}

// PublishingNotifier forwards reset events to a message broker, where a mailer picks them up.
type PublishingNotifier struct {
	publisher Publisher
}

func NewPublishingNotifier(p Publisher) *PublishingNotifier {
	return &PublishingNotifier{publisher: p}
}

func (n *PublishingNotifier) NotifyPasswordReset(ctx context.Context, event ResetEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal reset event: %w", err)
	}
	return n.publisher.SendMessage(ctx, fmt.Sprintf("doctor.%d", event.DoctorID), body)
}
