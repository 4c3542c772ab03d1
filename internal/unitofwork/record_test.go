package unitofwork

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type entity struct{ ID int64 }

func TestTx_Record(t *testing.T) {
	tests := []struct {
		name string
		ops  []Op
		want ChangeSet
	}{
		{"insert", []Op{OpAdded}, ChangeSet{Added: []interface{}{0}}},
		{"update", []Op{OpUpdated}, ChangeSet{Updated: []interface{}{0}}},
		{"delete", []Op{OpDeleted}, ChangeSet{Deleted: []interface{}{0}}},
		{"insert then update stays added", []Op{OpAdded, OpUpdated}, ChangeSet{Added: []interface{}{0}}},
		{"insert then delete vanishes", []Op{OpAdded, OpDeleted}, ChangeSet{}},
		{"update then delete is deleted", []Op{OpUpdated, OpDeleted}, ChangeSet{Deleted: []interface{}{0}}},
		{"repeated updates collapse", []Op{OpUpdated, OpUpdated, OpUpdated}, ChangeSet{Updated: []interface{}{0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &entity{ID: 1}
			tx := newTx()
			for _, op := range tt.ops {
				tx.record(e, op)
			}

			got := tx.changes()
			assert.Equal(t, len(tt.want.Added), len(got.Added))
			assert.Equal(t, len(tt.want.Updated), len(got.Updated))
			assert.Equal(t, len(tt.want.Deleted), len(got.Deleted))
			for _, list := range [][]interface{}{got.Added, got.Updated, got.Deleted} {
				for _, m := range list {
					assert.Same(t, e, m)
				}
			}
		})
	}

	t.Run("first touch order is kept", func(t *testing.T) {
		a, b, c := &entity{ID: 1}, &entity{ID: 2}, &entity{ID: 3}
		tx := newTx()
		tx.record(b, OpAdded)
		tx.record(a, OpAdded)
		tx.record(c, OpAdded)
		tx.record(b, OpUpdated)

		got := tx.changes()
		assert.Equal(t, []interface{}{b, a, c}, got.Added)
	})

	t.Run("empty change set", func(t *testing.T) {
		assert.True(t, ChangeSet{}.Empty())
		assert.Equal(t, 0, ChangeSet{}.Len())
		assert.Equal(t, 2, ChangeSet{Added: []interface{}{1}, Deleted: []interface{}{2}}.Len())
	})
}
