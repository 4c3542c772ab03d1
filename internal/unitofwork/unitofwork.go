// Package unitofwork wraps a bun transaction, records the entities it persists and, once the
// transaction commits, hands the resulting change set to registered listeners.
package unitofwork

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Flopsa/digital-doc/common/metrics"

	"github.com/uptrace/bun"
)

type Op string

const (
	OpAdded   Op = "added"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

// ChangeSet is the diff of one committed unit of work. Entries are the model pointers that
// were passed to Tx.Insert, Tx.Update and Tx.Delete, in first-touch order.
type ChangeSet struct {
	Added   []interface{}
	Updated []interface{}
	Deleted []interface{}
}

func (cs ChangeSet) Empty() bool {
	return cs.Len() == 0
}

func (cs ChangeSet) Len() int {
	return len(cs.Added) + len(cs.Updated) + len(cs.Deleted)
}

// Listener is notified after a successful commit. The transaction is already durable, so a
// returned error is logged and counted but never undoes the commit.
type Listener interface {
	AfterCommit(ctx context.Context, changes ChangeSet) error
}

type ListenerFunc func(ctx context.Context, changes ChangeSet) error

func (f ListenerFunc) AfterCommit(ctx context.Context, changes ChangeSet) error {
	return f(ctx, changes)
}

type UnitOfWork struct {
	db        *bun.DB
	listeners []Listener
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func New(db *bun.DB, logger *slog.Logger, m *metrics.Metrics) *UnitOfWork {
	return &UnitOfWork{
		db:      db,
		logger:  logger,
		metrics: m,
	}
}

// Register adds a commit listener. Call it while wiring the application, before serving.
func (u *UnitOfWork) Register(l Listener) {
	u.listeners = append(u.listeners, l)
}

// DB exposes the connection for reads that do not belong to a unit of work.
func (u *UnitOfWork) DB() *bun.DB {
	return u.db
}

// Do runs fn in a transaction. When fn returns nil and the commit succeeds, the recorded
// changes are emitted to every listener in registration order.
func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	tx := newTx()

	err := u.db.RunInTx(ctx, nil, func(ctx context.Context, btx bun.Tx) error {
		tx.tx = btx
		return fn(ctx, tx)
	})
	if err != nil {
		return err
	}

	u.emit(ctx, tx.changes())
	return nil
}

func (u *UnitOfWork) emit(ctx context.Context, changes ChangeSet) {
	if changes.Empty() {
		return
	}

	for _, l := range u.listeners {
		if err := l.AfterCommit(ctx, changes); err != nil {
			name := fmt.Sprintf("%T", l)
			u.logger.ErrorContext(ctx, "commit listener failed",
				"listener", name,
				"added", len(changes.Added),
				"updated", len(changes.Updated),
				"deleted", len(changes.Deleted),
				"error", err,
			)
			if u.metrics != nil {
				u.metrics.Search.RecordListenerError(ctx, name)
			}
		}
	}
}

// Tx is the handle passed to Do callbacks. Models must be pointers.
type Tx struct {
	tx    bun.Tx
	order []interface{}
	state map[interface{}]Op
}

func newTx() *Tx {
	return &Tx{state: make(map[interface{}]Op)}
}

// Bun returns the underlying transaction for queries that should not be recorded, such as
// join-table rows and reads.
func (t *Tx) Bun() bun.Tx {
	return t.tx
}

// Insert persists model and records it as added.
func (t *Tx) Insert(ctx context.Context, model interface{}) error {
	if _, err := t.tx.NewInsert().Model(model).Returning("*").Exec(ctx); err != nil {
		return err
	}
	t.record(model, OpAdded)
	return nil
}

// Update writes the given columns (all when none) by primary key and records the model as
// updated. It returns sql.ErrNoRows when nothing matched.
func (t *Tx) Update(ctx context.Context, model interface{}, columns ...string) error {
	q := t.tx.NewUpdate().Model(model).WherePK()
	if len(columns) > 0 {
		q = q.Column(columns...)
	}

	result, err := q.Exec(ctx)
	if err != nil {
		return err
	}
	if err := requireRows(result); err != nil {
		return err
	}
	t.record(model, OpUpdated)
	return nil
}

// Delete removes model by primary key and records it as deleted. It returns sql.ErrNoRows
// when nothing matched.
func (t *Tx) Delete(ctx context.Context, model interface{}) error {
	result, err := t.tx.NewDelete().Model(model).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	if err := requireRows(result); err != nil {
		return err
	}
	t.record(model, OpDeleted)
	return nil
}

func requireRows(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// record folds a new operation into the entity's pending state:
// added+updated stays added, added+deleted vanishes, updated+deleted is deleted.
func (t *Tx) record(model interface{}, op Op) {
	prev, seen := t.state[model]
	if !seen {
		t.state[model] = op
		t.order = append(t.order, model)
		return
	}

	switch {
	case op == OpDeleted && prev == OpAdded:
		delete(t.state, model)
		for i, m := range t.order {
			if m == model {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}
	case op == OpDeleted:
		t.state[model] = OpDeleted
	case prev == OpDeleted:
		t.state[model] = op
	}
}

func (t *Tx) changes() ChangeSet {
	var cs ChangeSet
	for _, m := range t.order {
		switch t.state[m] {
		case OpAdded:
			cs.Added = append(cs.Added, m)
		case OpUpdated:
			cs.Updated = append(cs.Updated, m)
		case OpDeleted:
			cs.Deleted = append(cs.Deleted, m)
		}
	}
	return cs
}
