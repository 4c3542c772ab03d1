package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/Flopsa/digital-doc/common/metrics"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handled struct {
	Key   string
	Value string
}

func TestConsumerGroupHandler_ConsumeClaim(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("HandlesAndMarksEveryMessage", func(t *testing.T) {
		var got []handled
		h := NewConsumerGroupHandler(func(_ context.Context, key string, value []byte) error {
			got = append(got, handled{key, string(value)})
			return nil
		}, logger, metrics.NewMock())

		session := newMockSession()
		claim := &mockConsumerGroupClaim{messages: []*sarama.ConsumerMessage{
			{Topic: "doc-changes", Partition: 0, Offset: 0, Key: []byte("patients.1"), Value: []byte(`{"id":1}`)},
			{Topic: "doc-changes", Partition: 0, Offset: 1, Key: []byte("patients.2"), Value: []byte(`{"id":2}`)},
		}}

		require.NoError(t, h.ConsumeClaim(session, claim))

		assert.Equal(t, []handled{{"patients.1", `{"id":1}`}, {"patients.2", `{"id":2}`}}, got)
		assert.Len(t, session.MarkedMessages, 2)
	})

	t.Run("HandlerError_MarksAndContinues", func(t *testing.T) {
		calls := 0
		h := NewConsumerGroupHandler(func(_ context.Context, key string, _ []byte) error {
			calls++
			if key == "bad" {
				return errors.New("cannot apply")
			}
			return nil
		}, logger, metrics.NewMock())

		session := newMockSession()
		claim := &mockConsumerGroupClaim{messages: []*sarama.ConsumerMessage{
			{Topic: "doc-changes", Partition: 0, Offset: 0, Key: []byte("bad"), Value: []byte("{")},
			{Topic: "doc-changes", Partition: 0, Offset: 1, Key: []byte("patients.3"), Value: []byte("{}")},
		}}

		require.NoError(t, h.ConsumeClaim(session, claim))

		assert.Equal(t, 2, calls)
		assert.True(t, session.MarkedMessages["0:0"])
		assert.True(t, session.MarkedMessages["0:1"])
	})

	t.Run("EmptyClaim", func(t *testing.T) {
		h := NewConsumerGroupHandler(func(context.Context, string, []byte) error {
			t.Fatal("handler must not be called")
			return nil
		}, logger, metrics.NewMock())

		session := newMockSession()
		require.NoError(t, h.ConsumeClaim(session, &mockConsumerGroupClaim{}))
		assert.Empty(t, session.MarkedMessages)
	})
}

func newMockSession() *mockConsumerGroupSession {
	return &mockConsumerGroupSession{
		MarkedMessages: make(map[string]bool),
	}
}

type mockConsumerGroupSession struct {
	MarkedMessages map[string]bool
}

func (m *mockConsumerGroupSession) Claims() map[string][]int32 { return nil }

func (m *mockConsumerGroupSession) MemberID() string { return "test-member" }

func (m *mockConsumerGroupSession) GenerationID() int32 { return 1 }

func (m *mockConsumerGroupSession) MarkOffset(string, int32, int64, string) {}

func (m *mockConsumerGroupSession) ResetOffset(string, int32, int64, string) {}

func (m *mockConsumerGroupSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	m.MarkedMessages[fmt.Sprintf("%d:%d", msg.Partition, msg.Offset)] = true
}

func (m *mockConsumerGroupSession) Commit() {}

func (m *mockConsumerGroupSession) Context() context.Context { return context.Background() }

type mockConsumerGroupClaim struct {
	messages []*sarama.ConsumerMessage
}

func (m *mockConsumerGroupClaim) Topic() string { return "doc-changes" }

func (m *mockConsumerGroupClaim) Partition() int32 { return 0 }

func (m *mockConsumerGroupClaim) InitialOffset() int64 { return 0 }

func (m *mockConsumerGroupClaim) HighWaterMarkOffset() int64 { return int64(len(m.messages)) }

func (m *mockConsumerGroupClaim) Messages() <-chan *sarama.ConsumerMessage {
	ch := make(chan *sarama.ConsumerMessage, len(m.messages))
	for _, msg := range m.messages {
		ch <- msg
	}
	close(ch)
	return ch
}
