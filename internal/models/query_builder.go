package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// QuerySpec is the Discover query as composed by the query builder and sent to
// the query endpoint
type QuerySpec struct {
	Projects     []int64       `json:"projects"`
	Fields       []string      `json:"fields"`
	Aggregations []Aggregation `json:"aggregations"`
	Conditions   []Condition   `json:"conditions"`
	OrderBy      string        `json:"orderby"`
	Limit        int           `json:"limit"`
	GroupBy      []string      `json:"groupby,omitempty"`
	Rollup       int           `json:"rollup,omitempty"`
	Range        string        `json:"range,omitempty"`
	Start        *time.Time    `json:"start,omitempty"`
	End          *time.Time    `json:"end,omitempty"`
}

// Clone returns a deep copy of the query
func (q QuerySpec) Clone() QuerySpec {
	out := q
	out.Projects = cloneSlice(q.Projects)
	out.Fields = cloneSlice(q.Fields)
	out.Aggregations = cloneSlice(q.Aggregations)
	out.Conditions = make([]Condition, len(q.Conditions))
	for i, c := range q.Conditions {
		out.Conditions[i] = c.clone()
	}
	if q.GroupBy != nil {
		out.GroupBy = cloneSlice(q.GroupBy)
	}
	if q.Start != nil {
		start := *q.Start
		out.Start = &start
	}
	if q.End != nil {
		end := *q.End
		out.End = &end
	}
	return out
}

func cloneSlice[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// Aggregation is a function applied to a column, producing a named result.
// On the wire it is the tuple [function, column-or-null, alias].
type Aggregation struct {
	Function string
	Column   string
	Alias    string
}

// Complete reports whether the aggregation can be sent
func (a Aggregation) Complete() bool {
	return a.Function != ""
}

func (a Aggregation) MarshalJSON() ([]byte, error) {
	var column interface{}
	if a.Column != "" {
		column = a.Column
	}
	return json.Marshal([]interface{}{a.Function, column, a.Alias})
}

func (a *Aggregation) UnmarshalJSON(data []byte) error {
	var parts []*string
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("aggregation must be [function, column, alias]: %w", err)
	}
	if len(parts) > 3 {
		return fmt.Errorf("aggregation has %d parts, want at most 3", len(parts))
	}
	*a = Aggregation{}
	targets := []*string{&a.Function, &a.Column, &a.Alias}
	for i, p := range parts {
		if p != nil {
			*targets[i] = *p
		}
	}
	return nil
}

// Condition is a filter clause. On the wire it is the tuple
// [column, operator, value]; entries may be incomplete while being edited.
type Condition struct {
	Column   string
	Operator string
	Value    interface{}
}

// Operators that take no value
var nullOperators = map[string]bool{
	"IS NULL":     true,
	"IS NOT NULL": true,
}

// IsNullOperator reports whether op compares against NULL and takes no value
func IsNullOperator(op string) bool {
	return nullOperators[strings.ToUpper(op)]
}

// Complete reports whether all three parts of the condition are meaningful
func (c Condition) Complete() bool {
	if c.Column == "" || c.Operator == "" {
		return false
	}
	if IsNullOperator(c.Operator) {
		return true
	}
	if s, ok := c.Value.(string); ok {
		return s != ""
	}
	return c.Value != nil
}

func (c Condition) clone() Condition {
	if values, ok := c.Value.([]interface{}); ok {
		c.Value = cloneSlice(values)
	}
	return c
}

func (c Condition) MarshalJSON() ([]byte, error) {
	var column, operator interface{}
	if c.Column != "" {
		column = c.Column
	}
	if c.Operator != "" {
		operator = c.Operator
	}
	return json.Marshal([]interface{}{column, operator, c.Value})
}

func (c *Condition) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("condition must be [column, operator, value]: %w", err)
	}
	if len(parts) > 3 {
		return fmt.Errorf("condition has %d parts, want at most 3", len(parts))
	}
	*c = Condition{}
	if len(parts) > 0 {
		if err := unmarshalOptionalString(parts[0], &c.Column); err != nil {
			return fmt.Errorf("condition column: %w", err)
		}
	}
	if len(parts) > 1 {
		if err := unmarshalOptionalString(parts[1], &c.Operator); err != nil {
			return fmt.Errorf("condition operator: %w", err)
		}
	}
	if len(parts) > 2 {
		if err := json.Unmarshal(parts[2], &c.Value); err != nil {
			return fmt.Errorf("condition value: %w", err)
		}
	}
	return nil
}

func unmarshalOptionalString(raw json.RawMessage, dst *string) error {
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil {
		return err
	}
	if s != nil {
		*dst = *s
	}
	return nil
}

// Column describes one entry of the queryable column catalog
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"` // string, number, boolean, datetime
}

// OrderbyOption is one choice of the order-by selector
type OrderbyOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// QueryResult is the response of the query endpoint
type QueryResult struct {
	Timing Timing                   `json:"timing"`
	Data   []map[string]interface{} `json:"data"`
	Meta   []ColumnMeta             `json:"meta"`
}

// Clone returns a copy of the result whose rows and meta can be changed
// without affecting r
func (r *QueryResult) Clone() *QueryResult {
	out := &QueryResult{Timing: r.Timing}
	if r.Data != nil {
		out.Data = make([]map[string]interface{}, len(r.Data))
		for i, row := range r.Data {
			copied := make(map[string]interface{}, len(row))
			for k, v := range row {
				copied[k] = v
			}
			out.Data[i] = copied
		}
	}
	if r.Meta != nil {
		out.Meta = cloneSlice(r.Meta)
	}
	return out
}

// Timing carries execution details of a query
type Timing struct {
	Timestamp  int64  `json:"timestamp,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	CacheHit   bool   `json:"cache_hit,omitempty"`
}

// ColumnMeta describes a result column
type ColumnMeta struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ViewState is the transient state of a Discover session
type ViewState struct {
	Data       *QueryResult `json:"data"`
	Query      *QuerySpec   `json:"query"`
	ChartData  *QueryResult `json:"chartData"`
	ChartQuery *QuerySpec   `json:"chartQuery"`
}

// Organization is the tenant a Discover session runs in
type Organization struct {
	Slug     string    `json:"slug"`
	Projects []Project `json:"projects"`
}

// Project belongs to an organization
type Project struct {
	ID   int64  `json:"id"`
	Slug string `json:"slug,omitempty"`
}

// ProjectIDs returns the IDs of all projects of the organization
func (o Organization) ProjectIDs() []int64 {
	ids := make([]int64, 0, len(o.Projects))
	for _, p := range o.Projects {
		ids = append(ids, p.ID)
	}
	return ids
}
