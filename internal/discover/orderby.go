package discover

import (
	"strings"

	"github.com/your-username/click-lite-discover/internal/models"
	"github.com/your-username/click-lite-discover/internal/querybuilder"
)

// orderbyOptions lists the ascending and descending choice for every
// orderable name. Without aggregations any catalog column can be ordered by;
// with aggregations only the selected fields and the aggregation aliases exist
// in the result. Unaliased aggregations are named like the result column.
func orderbyOptions(q models.QuerySpec, columns []models.Column) []models.OrderbyOption {
	var names []string
	if len(q.Aggregations) == 0 {
		names = make([]string, 0, len(columns))
		for _, c := range columns {
			names = append(names, c.Name)
		}
	} else {
		names = make([]string, 0, len(q.Fields)+len(q.Aggregations))
		names = append(names, q.Fields...)
		for _, agg := range q.Aggregations {
			if alias := querybuilder.AggregationAlias(agg); alias != "" {
				names = append(names, alias)
			}
		}
	}

	options := make([]models.OrderbyOption, 0, len(names)*2)
	for _, name := range names {
		options = append(options,
			models.OrderbyOption{Label: name + " asc", Value: name},
			models.OrderbyOption{Label: name + " desc", Value: "-" + name},
		)
	}
	return options
}

// OrderbyOptionFor renders an orderby value the way the selector shows it
func OrderbyOptionFor(value string) models.OrderbyOption {
	if name, desc := strings.CutPrefix(value, "-"); desc {
		return models.OrderbyOption{Label: name + " desc", Value: value}
	}
	return models.OrderbyOption{Label: value + " asc", Value: value}
}
