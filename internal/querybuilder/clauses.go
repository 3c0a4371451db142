package querybuilder

import (
	"strings"

	"github.com/your-username/click-lite-discover/internal/models"
)

// Operators are the condition operators a query may use
var Operators = []string{"=", "!=", ">", "<", ">=", "<=", "LIKE", "NOT LIKE", "IS NULL", "IS NOT NULL", "IN"}

// Functions are the aggregation functions a query may use
var Functions = []string{"count()", "count", "uniq", "avg", "sum", "min", "max"}

// IsOperator reports whether op is a supported condition operator
func IsOperator(op string) bool {
	return containsString(Operators, strings.ToUpper(op))
}

// IsFunction reports whether fn is a supported aggregation function
func IsFunction(fn string) bool {
	return containsString(Functions, fn)
}

// AggregationAlias names the result column of an aggregation: its alias, or
// the function name with the column appended
func AggregationAlias(agg models.Aggregation) string {
	if agg.Alias != "" {
		return agg.Alias
	}
	fn := strings.TrimSuffix(agg.Function, "()")
	if agg.Column == "" {
		return fn
	}
	return fn + "_" + agg.Column
}

// ValidCondition reports whether c can be sent: a known column, a supported
// operator and a value matching the column type. Null operators take no value.
func ValidCondition(c models.Condition, columns []models.Column) bool {
	if !c.Complete() || !IsOperator(c.Operator) {
		return false
	}
	column, ok := findColumn(columns, c.Column)
	if !ok {
		return false
	}
	op := strings.ToUpper(c.Operator)
	if models.IsNullOperator(op) {
		return true
	}
	if op == "LIKE" || op == "NOT LIKE" {
		_, isString := c.Value.(string)
		return isString && column.Type == TypeString
	}
	if op == "IN" {
		if values, ok := c.Value.([]interface{}); ok {
			if len(values) == 0 {
				return false
			}
			for _, v := range values {
				if !valueFits(column.Type, v) {
					return false
				}
			}
			return true
		}
	}
	return valueFits(column.Type, c.Value)
}

// ValidAggregation reports whether a can be sent. count takes no column, avg
// and sum take a number column, the other functions any known column.
func ValidAggregation(a models.Aggregation, columns []models.Column) bool {
	if !a.Complete() || !IsFunction(a.Function) {
		return false
	}
	switch a.Function {
	case "count()", "count":
		return a.Column == ""
	case "avg", "sum":
		column, ok := findColumn(columns, a.Column)
		return ok && column.Type == TypeNumber
	default:
		_, ok := findColumn(columns, a.Column)
		return ok
	}
}

func valueFits(columnType string, v interface{}) bool {
	switch v.(type) {
	case string:
		return columnType == TypeString || columnType == TypeDatetime
	case float64, float32, int, int32, int64, uint, uint32, uint64:
		return columnType == TypeNumber
	case bool:
		return columnType == TypeBoolean
	}
	return false
}

func findColumn(columns []models.Column, name string) (models.Column, bool) {
	for _, c := range columns {
		if c.Name == name {
			return c, true
		}
	}
	return models.Column{}, false
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
