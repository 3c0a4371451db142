package querybuilder

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/your-username/click-lite-discover/internal/models"
)

// QueryString encodes q as a URL query string, one JSON encoded value per key
func QueryString(q models.QuerySpec) string {
	values := url.Values{}
	set := func(key string, v interface{}) {
		data, err := json.Marshal(v)
		if err != nil {
			return
		}
		values.Set(key, string(data))
	}

	set(KeyProjects, nonNil(q.Projects))
	set(KeyFields, nonNil(q.Fields))
	set(KeyAggregations, nonNil(q.Aggregations))
	set(KeyConditions, nonNil(q.Conditions))
	set(KeyOrderBy, q.OrderBy)
	set(KeyLimit, q.Limit)
	if q.Range != "" {
		set(KeyRange, q.Range)
	}
	if q.Start != nil {
		set(KeyStart, q.Start)
	}
	if q.End != nil {
		set(KeyEnd, q.End)
	}
	return values.Encode()
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

// ParseQueryString decodes a URL query string produced by QueryString into
// updates. Unknown keys are ignored; keys whose value does not decode are
// skipped and reported in the returned error.
func ParseQueryString(search string) ([]Update, error) {
	values, err := url.ParseQuery(strings.TrimPrefix(search, "?"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse query string: %w", err)
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var updates []Update
	var errs []error
	for _, key := range keys {
		u, err := ParseUpdate(key, json.RawMessage(values.Get(key)))
		if errors.Is(err, ErrUnknownField) {
			log.Debug().Str("key", key).Msg("Ignoring unknown query string key")
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		updates = append(updates, u)
	}
	return updates, errors.Join(errs...)
}
