package search

import (
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// OrderByIDs restricts q to ids and keeps the rows in the order the index ranked them.
func OrderByIDs(q *bun.SelectQuery, ids []int64) *bun.SelectQuery {
	return q.
		Where("?TableAlias.id IN (?)", bun.In(ids)).
		OrderExpr("array_position(?::bigint[], ?TableAlias.id)", pgdialect.Array(ids))
}
