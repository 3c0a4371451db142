package querybuilder

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/your-username/click-lite-discover/internal/models"
)

// Query keys as they appear in request bodies and URL query strings
const (
	KeyProjects     = "projects"
	KeyFields       = "fields"
	KeyAggregations = "aggregations"
	KeyConditions   = "conditions"
	KeyOrderBy      = "orderby"
	KeyLimit        = "limit"
	KeyRange        = "range"
	KeyStart        = "start"
	KeyEnd          = "end"
)

// ErrUnknownField is returned for an update of a key the builder does not hold
var ErrUnknownField = errors.New("unknown query field")

// Update is a single change to the builder's query. Each implementation
// replaces one key of the query.
type Update interface {
	Key() string
	apply(q *models.QuerySpec)
}

// Fields replaces the selected columns
type Fields []string

func (Fields) Key() string { return KeyFields }

func (u Fields) apply(q *models.QuerySpec) { q.Fields = append([]string{}, u...) }

// Aggregations replaces the aggregation list
type Aggregations []models.Aggregation

func (Aggregations) Key() string { return KeyAggregations }

func (u Aggregations) apply(q *models.QuerySpec) {
	q.Aggregations = append([]models.Aggregation{}, u...)
}

// Conditions replaces the condition list
type Conditions []models.Condition

func (Conditions) Key() string { return KeyConditions }

func (u Conditions) apply(q *models.QuerySpec) {
	q.Conditions = append([]models.Condition{}, u...)
}

// OrderBy sets the ordering; a leading "-" means descending
type OrderBy string

func (OrderBy) Key() string { return KeyOrderBy }

func (u OrderBy) apply(q *models.QuerySpec) { q.OrderBy = string(u) }

// Limit sets the row limit
type Limit int

func (Limit) Key() string { return KeyLimit }

func (u Limit) apply(q *models.QuerySpec) { q.Limit = int(u) }

// Projects restricts the query to the given project IDs
type Projects []int64

func (Projects) Key() string { return KeyProjects }

func (u Projects) apply(q *models.QuerySpec) { q.Projects = append([]int64{}, u...) }

// Range sets a relative time window such as "14d" and clears absolute bounds
type Range string

func (Range) Key() string { return KeyRange }

func (u Range) apply(q *models.QuerySpec) {
	q.Range = string(u)
	q.Start, q.End = nil, nil
}

// Start sets the absolute lower time bound
type Start time.Time

func (Start) Key() string { return KeyStart }

func (u Start) apply(q *models.QuerySpec) {
	t := time.Time(u)
	q.Start = &t
	q.Range = ""
}

// End sets the absolute upper time bound
type End time.Time

func (End) Key() string { return KeyEnd }

func (u End) apply(q *models.QuerySpec) {
	t := time.Time(u)
	q.End = &t
	q.Range = ""
}

// ParseUpdate decodes a JSON value for the named key. It is the string-keyed
// entry point used by the websocket and URL layers.
func ParseUpdate(key string, raw json.RawMessage) (Update, error) {
	var err error
	switch key {
	case KeyFields:
		var u Fields
		if err = json.Unmarshal(raw, &u); err == nil {
			return u, nil
		}
	case KeyAggregations:
		var u Aggregations
		if err = json.Unmarshal(raw, &u); err == nil {
			return u, nil
		}
	case KeyConditions:
		var u Conditions
		if err = json.Unmarshal(raw, &u); err == nil {
			return u, nil
		}
	case KeyOrderBy:
		var u OrderBy
		if err = json.Unmarshal(raw, &u); err == nil {
			return u, nil
		}
	case KeyLimit:
		var u Limit
		if err = json.Unmarshal(raw, &u); err == nil {
			return u, nil
		}
	case KeyProjects:
		var u Projects
		if err = json.Unmarshal(raw, &u); err == nil {
			return u, nil
		}
	case KeyRange:
		var u Range
		if err = json.Unmarshal(raw, &u); err == nil {
			return u, nil
		}
	case KeyStart, KeyEnd:
		var t time.Time
		if err = json.Unmarshal(raw, &t); err == nil {
			if key == KeyStart {
				return Start(t), nil
			}
			return End(t), nil
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, key)
	}
	return nil, fmt.Errorf("invalid value for %s: %w", key, err)
}
