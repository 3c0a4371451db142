package query

import (
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/your-username/click-lite-discover/internal/models"
	"github.com/your-username/click-lite-discover/internal/querybuilder"
)

const (
	defaultTable   = "events"
	defaultRollup  = 60 * 60
	timestampField = "timestamp"
	projectField   = "project_id"
)

// csq is the statement builder with positional placeholders, which both the
// native driver and bindArgs understand
var csq = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// aggregateFunctions maps the functions a query may use to ClickHouse functions
var aggregateFunctions = map[string]string{
	"count()": "count",
	"count":   "count",
	"uniq":    "uniq",
	"avg":     "avg",
	"sum":     "sum",
	"min":     "min",
	"max":     "max",
}

// conditionOperators builds the predicate of each supported operator
var conditionOperators = map[string]func(column string, value interface{}) sq.Sqlizer{
	"=":           func(c string, v interface{}) sq.Sqlizer { return sq.Eq{c: v} },
	"!=":          func(c string, v interface{}) sq.Sqlizer { return sq.NotEq{c: v} },
	">":           func(c string, v interface{}) sq.Sqlizer { return sq.Gt{c: v} },
	"<":           func(c string, v interface{}) sq.Sqlizer { return sq.Lt{c: v} },
	">=":          func(c string, v interface{}) sq.Sqlizer { return sq.GtOrEq{c: v} },
	"<=":          func(c string, v interface{}) sq.Sqlizer { return sq.LtOrEq{c: v} },
	"LIKE":        func(c string, v interface{}) sq.Sqlizer { return sq.Like{c: v} },
	"NOT LIKE":    func(c string, v interface{}) sq.Sqlizer { return sq.NotLike{c: v} },
	"IS NULL":     func(c string, _ interface{}) sq.Sqlizer { return sq.Eq{c: nil} },
	"IS NOT NULL": func(c string, _ interface{}) sq.Sqlizer { return sq.NotEq{c: nil} },
	"IN": func(c string, v interface{}) sq.Sqlizer {
		if values, ok := v.([]interface{}); ok {
			return sq.Eq{c: values}
		}
		return sq.Eq{c: []interface{}{v}}
	},
}

// Compiler turns a validated query into ClickHouse SQL
type Compiler struct {
	table string
}

// NewCompiler creates a compiler reading from table
func NewCompiler(table string) *Compiler {
	if table == "" {
		table = defaultTable
	}
	return &Compiler{table: table}
}

// Compile builds the SQL statement and its positional arguments. Relative
// ranges are resolved against now.
func (c *Compiler) Compile(q models.QuerySpec, now time.Time) (string, []interface{}, error) {
	timeGrouped := contains(q.GroupBy, TimeColumn)

	columns := make([]string, 0, len(q.Fields)+len(q.Aggregations)+1)
	if timeGrouped {
		rollup := q.Rollup
		if rollup == 0 {
			rollup = defaultRollup
		}
		columns = append(columns, fmt.Sprintf("toStartOfInterval(%s, INTERVAL %d SECOND) AS %s", timestampField, rollup, TimeColumn))
	}
	columns = append(columns, q.Fields...)
	for _, agg := range q.Aggregations {
		columns = append(columns, fmt.Sprintf("%s AS %s", aggregationExpr(agg), querybuilder.AggregationAlias(agg)))
	}
	if len(columns) == 0 {
		columns = append(columns, "*")
	}

	qb := csq.Select(columns...).From(c.table)

	if len(q.Projects) > 0 {
		qb = qb.Where(sq.Eq{projectField: q.Projects})
	}

	start, end, err := window(q, now)
	if err != nil {
		return "", nil, err
	}
	if !start.IsZero() {
		qb = qb.Where(sq.GtOrEq{timestampField: start.UTC()})
	}
	if !end.IsZero() {
		qb = qb.Where(sq.Lt{timestampField: end.UTC()})
	}

	for _, cond := range q.Conditions {
		build, ok := conditionOperators[strings.ToUpper(cond.Operator)]
		if !ok {
			return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedOperator, cond.Operator)
		}
		qb = qb.Where(build(cond.Column, cond.Value))
	}

	if groups := groupBy(q); len(groups) > 0 {
		qb = qb.GroupBy(groups...)
	}

	if q.OrderBy != "" {
		qb = qb.OrderBy(orderByClause(q.OrderBy))
	}
	if q.Limit > 0 {
		qb = qb.Limit(uint64(q.Limit))
	}

	sql, args, err := qb.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("building discover query: %w", err)
	}
	return sql, args, nil
}

// groupBy lists the grouping keys: explicit groupby entries, then every
// selected field of an aggregated query
func groupBy(q models.QuerySpec) []string {
	if len(q.Aggregations) == 0 && len(q.GroupBy) == 0 {
		return nil
	}
	groups := make([]string, 0, len(q.GroupBy)+len(q.Fields))
	for _, g := range q.GroupBy {
		if !contains(groups, g) {
			groups = append(groups, g)
		}
	}
	for _, f := range q.Fields {
		if !contains(groups, f) {
			groups = append(groups, f)
		}
	}
	return groups
}

func orderByClause(orderBy string) string {
	if name, desc := strings.CutPrefix(orderBy, "-"); desc {
		return name + " DESC"
	}
	return orderBy + " ASC"
}

func aggregationExpr(agg models.Aggregation) string {
	fn := aggregateFunctions[agg.Function]
	if agg.Column == "" {
		return fn + "()"
	}
	return fmt.Sprintf("%s(%s)", fn, agg.Column)
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
