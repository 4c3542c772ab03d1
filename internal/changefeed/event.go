// Package changefeed turns committed changes into broker events and applies those events to
// the search index in another process.
package changefeed

import (
	"fmt"
	"time"

	"github.com/Flopsa/digital-doc/internal/unitofwork"
)

type Event struct {
	Op         unitofwork.Op `json:"op"`
	Table      string        `json:"table"`
	ID         int64         `json:"id"`
	OccurredAt time.Time     `json:"occurredAt"`
}

// Key is "<table>.<id>". It is the NATS subject suffix and the Kafka message key.
func (e Event) Key() string {
	return fmt.Sprintf("%s.%d", e.Table, e.ID)
}
