package discover

import (
	"github.com/your-username/click-lite-discover/internal/models"
	"github.com/your-username/click-lite-discover/internal/querybuilder"
)

const (
	// ChartRollup is the time bucket of the chart query, one day in seconds
	ChartRollup = 60 * 60 * 24

	chartGroupBy = "time"
	chartOrderBy = "time"
)

// Columns every non-aggregated result row needs so it can link to its event
var eventLinkFields = []string{"event_id", "project_id"}

// validConditions drops conditions that are incomplete or do not fit the
// catalog
func validConditions(conditions []models.Condition, columns []models.Column) []models.Condition {
	out := make([]models.Condition, 0, len(conditions))
	for _, c := range conditions {
		if querybuilder.ValidCondition(c, columns) {
			out = append(out, c)
		}
	}
	return out
}

func validAggregations(aggregations []models.Aggregation, columns []models.Column) []models.Aggregation {
	out := make([]models.Aggregation, 0, len(aggregations))
	for _, a := range aggregations {
		if querybuilder.ValidAggregation(a, columns) {
			out = append(out, a)
		}
	}
	return out
}

// basicQuery returns the tabular request for an external query. Rows of a
// non-aggregated query always carry the event link fields.
func basicQuery(external models.QuerySpec) models.QuerySpec {
	q := external.Clone()
	if len(q.Aggregations) > 0 {
		return q
	}
	for _, field := range eventLinkFields {
		if !contains(q.Fields, field) {
			q.Fields = append(q.Fields, field)
		}
	}
	return q
}

// chartQuery returns the time series request for an aggregated external query
func chartQuery(external models.QuerySpec) models.QuerySpec {
	q := external.Clone()
	q.GroupBy = []string{chartGroupBy}
	q.Rollup = ChartRollup
	q.OrderBy = chartOrderBy
	return q
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
