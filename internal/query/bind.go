package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BindArgs inlines positional arguments into a compiled statement, for
// transports that take plain SQL text. Compiled statements contain no string
// literals, so every '?' is a placeholder.
func BindArgs(sql string, args []interface{}) (string, error) {
	if n := strings.Count(sql, "?"); n != len(args) {
		return "", fmt.Errorf("statement has %d placeholders for %d arguments", n, len(args))
	}

	var b strings.Builder
	b.Grow(len(sql))
	i := 0
	for _, r := range sql {
		if r == '?' {
			b.WriteString(formatValue(args[i]))
			i++
			continue
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}

// formatValue renders a value as a ClickHouse literal
func formatValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case string:
		return quote(v)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return quote(v.UTC().Format("2006-01-02 15:04:05"))
	default:
		return quote(fmt.Sprintf("%v", v))
	}
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}
