package query

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/your-username/click-lite-discover/internal/models"
	"github.com/your-username/click-lite-discover/internal/querybuilder"
)

var (
	ErrUnknownColumn       = errors.New("unknown column")
	ErrUnsupportedFunction = errors.New("unsupported aggregation function")
	ErrUnsupportedOperator = errors.New("unsupported condition operator")
	ErrInvalidQuery        = errors.New("invalid query")
)

// TimeColumn is the synthetic bucket column of a time grouped query
const TimeColumn = "time"

// Validator checks a query against the column catalog before compilation.
// Every identifier that reaches the generated SQL passes through it.
type Validator struct {
	columns   map[string]models.Column
	functions map[string]bool
	operators map[string]bool
	alias     *regexp.Regexp
	maxLimit  int
}

// NewValidator creates a validator for the given catalog
func NewValidator(columns []models.Column, maxLimit int) *Validator {
	v := &Validator{
		columns:   make(map[string]models.Column, len(columns)),
		functions: make(map[string]bool),
		operators: make(map[string]bool),
		alias:     regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`),
		maxLimit:  maxLimit,
	}
	for _, c := range columns {
		v.columns[c.Name] = c
	}
	for _, fn := range querybuilder.Functions {
		v.functions[fn] = true
	}
	for _, op := range querybuilder.Operators {
		v.operators[op] = true
	}
	return v
}

// Validate returns the first problem found in q
func (v *Validator) Validate(q models.QuerySpec) error {
	for _, field := range q.Fields {
		if !v.isColumn(field) {
			return fmt.Errorf("%w in fields: %s", ErrUnknownColumn, field)
		}
	}

	aliases := make(map[string]bool, len(q.Aggregations))
	for _, agg := range q.Aggregations {
		if err := v.validateAggregation(agg); err != nil {
			return err
		}
		alias := querybuilder.AggregationAlias(agg)
		if !v.alias.MatchString(alias) {
			return fmt.Errorf("%w: invalid alias %q", ErrInvalidQuery, alias)
		}
		aliases[alias] = true
	}

	for _, cond := range q.Conditions {
		if !v.isColumn(cond.Column) {
			return fmt.Errorf("%w in conditions: %s", ErrUnknownColumn, cond.Column)
		}
		if !v.operators[strings.ToUpper(cond.Operator)] {
			return fmt.Errorf("%w: %s", ErrUnsupportedOperator, cond.Operator)
		}
	}

	for _, group := range q.GroupBy {
		if group != TimeColumn && !v.isColumn(group) {
			return fmt.Errorf("%w in groupby: %s", ErrUnknownColumn, group)
		}
	}

	if q.OrderBy != "" {
		name := strings.TrimPrefix(q.OrderBy, "-")
		if name != TimeColumn && !aliases[name] && !v.isColumn(name) {
			return fmt.Errorf("%w in orderby: %s", ErrUnknownColumn, name)
		}
	}

	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", ErrInvalidQuery, q.Limit)
	}
	if v.maxLimit > 0 && q.Limit > v.maxLimit {
		return fmt.Errorf("%w: limit %d exceeds maximum %d", ErrInvalidQuery, q.Limit, v.maxLimit)
	}
	if q.Rollup < 0 {
		return fmt.Errorf("%w: negative rollup %d", ErrInvalidQuery, q.Rollup)
	}
	if q.Start != nil && q.End != nil && q.End.Before(*q.Start) {
		return fmt.Errorf("%w: end before start", ErrInvalidQuery)
	}
	if q.Range != "" {
		if _, err := ParseRange(q.Range); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) validateAggregation(agg models.Aggregation) error {
	if !v.functions[agg.Function] {
		return fmt.Errorf("%w: %s", ErrUnsupportedFunction, agg.Function)
	}
	if agg.Column == "" {
		if agg.Function != "count()" && agg.Function != "count" {
			return fmt.Errorf("%w: %s requires a column", ErrInvalidQuery, agg.Function)
		}
		return nil
	}
	column, ok := v.columns[agg.Column]
	if !ok {
		return fmt.Errorf("%w in aggregations: %s", ErrUnknownColumn, agg.Column)
	}
	if (agg.Function == "avg" || agg.Function == "sum") && column.Type != querybuilder.TypeNumber {
		return fmt.Errorf("%w: %s requires a number column, %s is %s", ErrInvalidQuery, agg.Function, agg.Column, column.Type)
	}
	return nil
}

func (v *Validator) isColumn(name string) bool {
	_, ok := v.columns[name]
	return ok
}

// DefaultValidator validates against the Discover column catalog
func DefaultValidator(maxLimit int) *Validator {
	return NewValidator(querybuilder.Columns, maxLimit)
}
