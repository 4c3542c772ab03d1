package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Flopsa/digital-doc/internal/search"
	"github.com/Flopsa/digital-doc/internal/unitofwork"
)

// Producer is satisfied by messaging.Producer and kafka.Producer.
type Producer interface {
	SendMessage(ctx context.Context, key string, value []byte) error
}

// Publisher is a commit listener that emits one event per changed searchable entity.
type Publisher struct {
	producer Producer
	logger   *slog.Logger
	now      func() time.Time
}

func NewPublisher(producer Producer, logger *slog.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		logger:   logger,
		now:      time.Now,
	}
}

func (p *Publisher) AfterCommit(ctx context.Context, changes unitofwork.ChangeSet) error {
	occurred := p.now().UTC()
	var errs []error

	publish := func(op unitofwork.Op, objs []interface{}) {
		for _, obj := range objs {
			s, ok := obj.(search.Searchable)
			if !ok {
				continue
			}
			ev := Event{Op: op, Table: s.SearchTable(), ID: s.SearchID(), OccurredAt: occurred}
			if err := p.send(ctx, ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	publish(unitofwork.OpAdded, changes.Added)
	publish(unitofwork.OpUpdated, changes.Updated)
	publish(unitofwork.OpDeleted, changes.Deleted)

	if len(errs) > 0 {
		return fmt.Errorf("change feed: %w", errors.Join(errs...))
	}
	return nil
}

func (p *Publisher) send(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.producer.SendMessage(ctx, ev.Key(), body)
}
