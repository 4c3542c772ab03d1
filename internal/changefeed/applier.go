package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Flopsa/digital-doc/internal/search"
	"github.com/Flopsa/digital-doc/internal/unitofwork"
)

// Applier replays change events against the search index. Events carry ids only, so added
// and updated rows are re-read from the primary store before indexing.
type Applier struct {
	index   search.Index
	sources map[string]search.Source
	logger  *slog.Logger
}

func NewApplier(index search.Index, logger *slog.Logger, sources ...search.Source) *Applier {
	m := make(map[string]search.Source, len(sources))
	for _, s := range sources {
		m[s.Table()] = s
	}
	return &Applier{
		index:   index,
		sources: m,
		logger:  logger,
	}
}

// Handle matches messaging.Handler.
func (a *Applier) Handle(ctx context.Context, _ string, data []byte) error {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("failed to unmarshal change event: %w", err)
	}
	return a.Apply(ctx, ev)
}

func (a *Applier) Apply(ctx context.Context, ev Event) error {
	src, ok := a.sources[ev.Table]
	if !ok {
		a.logger.DebugContext(ctx, "ignoring change for unindexed table", "table", ev.Table)
		return nil
	}

	switch ev.Op {
	case unitofwork.OpDeleted:
		return a.index.Remove(ctx, ev.Table, ev.ID)
	case unitofwork.OpAdded, unitofwork.OpUpdated:
		entity, err := src.Load(ctx, ev.ID)
		if errors.Is(err, search.ErrNotFound) {
			// deleted after the event was published
			return a.index.Remove(ctx, ev.Table, ev.ID)
		}
		if err != nil {
			return err
		}
		return a.index.Add(ctx, ev.Table, entity)
	default:
		return fmt.Errorf("unknown change op %q", ev.Op)
	}
}
