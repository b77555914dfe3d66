package rbac

import (
	"fmt"
	"strings"

	"github.com/uptrace/bun"
)

// FilterOp is the comparison operator of a list filter
type FilterOp string

const (
	OpEq      FilterOp = "eq"
	OpNeq     FilterOp = "neq"
	OpGt      FilterOp = "gt"
	OpGte     FilterOp = "gte"
	OpLt      FilterOp = "lt"
	OpLte     FilterOp = "lte"
	OpIn      FilterOp = "in"
	OpLike    FilterOp = "like"
	OpIsNull  FilterOp = "is_null"
	OpNotNull FilterOp = "not_null"
)

// Filter is a single column predicate. Values for OpIn must be a slice.
type Filter struct {
	Field string
	Op    FilterOp
	Value any
}

// ListParams is the common shape of list requests: pagination, ordering,
// a free-text search, and typed column filters.
type ListParams struct {
	Limit   int
	Offset  int
	Order   []string
	Search  string
	Filters []Filter
}

// ListMeta reports how many rows matched the filters and how many rows
// the table holds in total.
type ListMeta struct {
	FilteredRows int `json:"filtered_rows"`
	TotalRows    int `json:"total_rows"`
}

// ListResult pairs a page of records with its counts.
type ListResult[T any] struct {
	Data []T      `json:"data"`
	Meta ListMeta `json:"meta_data"`
}

const (
	defaultListLimit = 25
	maxListLimit     = 200
)

// Normalize clamps pagination to sane bounds.
func (p *ListParams) Normalize() {
	if p.Limit <= 0 {
		p.Limit = defaultListLimit
	}
	if p.Limit > maxListLimit {
		p.Limit = maxListLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// ApplyFilters compiles the typed filters onto a select query. Field
// names are matched against allowed to keep user input out of SQL
// identifiers; unknown fields are skipped.
func ApplyFilters(q *bun.SelectQuery, filters []Filter, allowed map[string]bool) *bun.SelectQuery {
	for _, f := range filters {
		if !allowed[f.Field] {
			continue
		}
		col := fmt.Sprintf("?TableAlias.%s", f.Field)
		switch f.Op {
		case OpEq:
			q = q.Where(col+" = ?", f.Value)
		case OpNeq:
			q = q.Where(col+" != ?", f.Value)
		case OpGt:
			q = q.Where(col+" > ?", f.Value)
		case OpGte:
			q = q.Where(col+" >= ?", f.Value)
		case OpLt:
			q = q.Where(col+" < ?", f.Value)
		case OpLte:
			q = q.Where(col+" <= ?", f.Value)
		case OpIn:
			q = q.Where(col+" IN (?)", bun.In(f.Value))
		case OpLike:
			q = q.Where("lower("+col+") LIKE ?", likePattern(f.Value))
		case OpIsNull:
			q = q.Where(col + " IS NULL")
		case OpNotNull:
			q = q.Where(col + " IS NOT NULL")
		}
	}
	return q
}

// ApplySearch ORs a case-insensitive LIKE across the given columns.
func ApplySearch(q *bun.SelectQuery, search string, columns ...string) *bun.SelectQuery {
	search = strings.TrimSpace(search)
	if search == "" || len(columns) == 0 {
		return q
	}
	pattern := likePattern(search)
	return q.WhereGroup(" AND ", func(g *bun.SelectQuery) *bun.SelectQuery {
		for i, col := range columns {
			expr := fmt.Sprintf("lower(?TableAlias.%s) LIKE ?", col)
			if i == 0 {
				g = g.Where(expr, pattern)
			} else {
				g = g.WhereOr(expr, pattern)
			}
		}
		return g
	})
}

// ApplyOrder adds ORDER BY clauses of the form "column" or "column desc",
// again vetted against allowed. Falls back to created_at descending.
func ApplyOrder(q *bun.SelectQuery, order []string, allowed map[string]bool) *bun.SelectQuery {
	applied := false
	for _, o := range order {
		parts := strings.Fields(strings.ToLower(strings.TrimSpace(o)))
		if len(parts) == 0 || !allowed[parts[0]] {
			continue
		}
		dir := "ASC"
		if len(parts) > 1 && parts[1] == "desc" {
			dir = "DESC"
		}
		q = q.OrderExpr(fmt.Sprintf("?TableAlias.%s %s", parts[0], dir))
		applied = true
	}
	if !applied && allowed["created_at"] {
		q = q.OrderExpr("?TableAlias.created_at DESC")
	}
	return q
}

func likePattern(v any) string {
	s := fmt.Sprintf("%v", v)
	s = strings.ToLower(strings.TrimSpace(s))
	if !strings.Contains(s, "%") {
		s = "%" + s + "%"
	}
	return s
}
