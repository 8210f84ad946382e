package db

import (
	"fmt"
	"strings"
)

// ListQuery builds a filtered SELECT plus its COUNT twin. Clauses use "?" as
// the placeholder and are renumbered to $1..$n in order.
type ListQuery struct {
	table   string
	cols    string
	where   []string
	args    []interface{}
	orderBy string
}

func NewListQuery(table, cols string) *ListQuery {
	return &ListQuery{table: table, cols: cols}
}

// Where appends an AND clause. The number of "?" in clause must match args.
func (q *ListQuery) Where(clause string, args ...interface{}) *ListQuery {
	var b strings.Builder
	n := len(q.args)
	for _, r := range clause {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	q.where = append(q.where, b.String())
	q.args = append(q.args, args...)
	return q
}

func (q *ListQuery) OrderBy(orderBy string) *ListQuery {
	q.orderBy = orderBy
	return q
}

func (q *ListQuery) whereSQL() string {
	if len(q.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.where, " AND ")
}

func (q *ListQuery) CountSQL() string {
	return q.AggregateSQL("COUNT(*)")
}

// AggregateSQL selects exprs over the filtered rows, e.g. "COUNT(*), SUM(x)".
func (q *ListQuery) AggregateSQL(exprs string) string {
	return "SELECT " + exprs + " FROM " + q.table + q.whereSQL()
}

func (q *ListQuery) Args() []interface{} {
	return q.args
}

// DataSQL returns the page query. limit <= 0 means unbounded.
func (q *ListQuery) DataSQL(limit, offset int) (string, []interface{}) {
	sql := "SELECT " + q.cols + " FROM " + q.table + q.whereSQL()
	if q.orderBy != "" {
		sql += " ORDER BY " + q.orderBy
	}
	args := append([]interface{}{}, q.args...)
	if limit > 0 {
		sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, limit, offset)
	}
	return sql, args
}
