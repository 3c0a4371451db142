package querybuilder

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-username/click-lite-discover/internal/models"
)

var testOrg = models.Organization{
	Slug:     "acme",
	Projects: []models.Project{{ID: 1, Slug: "web"}, {ID: 2, Slug: "api"}},
}

func TestNewStartsFromDefaults(t *testing.T) {
	b := New(testOrg, nil)
	if diff := cmp.Diff(Defaults, b.GetInternal()); diff != "" {
		t.Errorf("initial query mismatch (-want +got):\n%s", diff)
	}
}

func TestInitialUpdatesSurviveReset(t *testing.T) {
	b := New(testOrg, nil, Fields{"event_id"}, Limit(50))

	want := Defaults.Clone()
	want.Fields = []string{"event_id"}
	want.Limit = 50
	if diff := cmp.Diff(want, b.GetInternal()); diff != "" {
		t.Errorf("initial query mismatch (-want +got):\n%s", diff)
	}

	b.UpdateField(Fields{"message"})
	b.UpdateField(OrderBy("message"))
	b.Reset()

	if diff := cmp.Diff(want, b.GetInternal()); diff != "" {
		t.Errorf("query after reset mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateField(t *testing.T) {
	b := New(testOrg, nil)

	b.UpdateField(Fields{"event_id", "message"})
	b.UpdateField(Aggregations{{Function: "count()", Alias: "count"}})
	b.UpdateField(Conditions{{Column: "platform", Operator: "=", Value: "python"}})
	b.UpdateField(OrderBy("-count"))
	b.UpdateField(Limit(10))
	b.UpdateField(Projects{2})

	q := b.GetInternal()
	assert.Equal(t, []string{"event_id", "message"}, q.Fields)
	assert.Equal(t, []models.Aggregation{{Function: "count()", Alias: "count"}}, q.Aggregations)
	assert.Equal(t, []models.Condition{{Column: "platform", Operator: "=", Value: "python"}}, q.Conditions)
	assert.Equal(t, "-count", q.OrderBy)
	assert.Equal(t, 10, q.Limit)
	assert.Equal(t, []int64{2}, q.Projects)
}

func TestTimeBoundsReplaceRange(t *testing.T) {
	b := New(testOrg, nil)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	b.UpdateField(Start(start))
	b.UpdateField(End(end))
	q := b.GetInternal()
	assert.Empty(t, q.Range)
	require.NotNil(t, q.Start)
	require.NotNil(t, q.End)
	assert.True(t, start.Equal(*q.Start))
	assert.True(t, end.Equal(*q.End))

	b.UpdateField(Range("24h"))
	q = b.GetInternal()
	assert.Equal(t, "24h", q.Range)
	assert.Nil(t, q.Start)
	assert.Nil(t, q.End)
}

func TestGetInternalReturnsCopy(t *testing.T) {
	b := New(testOrg, nil, Fields{"event_id"})

	q := b.GetInternal()
	q.Fields[0] = "message"
	q.Limit = 1

	assert.Equal(t, []string{"event_id"}, b.GetInternal().Fields)
	assert.Equal(t, Defaults.Limit, b.GetInternal().Limit)
}

func TestGetExternal(t *testing.T) {
	tests := []struct {
		name         string
		updates      []Update
		wantFields   []string
		wantProjects []int64
	}{
		{
			name:         "nothing selected requests every column",
			wantFields:   ColumnNames(),
			wantProjects: []int64{1, 2},
		},
		{
			name:         "duplicate fields are dropped",
			updates:      []Update{Fields{"message", "event_id", "message"}},
			wantFields:   []string{"message", "event_id"},
			wantProjects: []int64{1, 2},
		},
		{
			name:         "aggregations alone select no fields",
			updates:      []Update{Aggregations{{Function: "count()", Alias: "count"}}},
			wantFields:   []string{},
			wantProjects: []int64{1, 2},
		},
		{
			name:         "selected projects are kept",
			updates:      []Update{Fields{"event_id"}, Projects{2}},
			wantFields:   []string{"event_id"},
			wantProjects: []int64{2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(testOrg, nil, tt.updates...)
			q := b.GetExternal()
			assert.Equal(t, tt.wantFields, q.Fields)
			assert.Equal(t, tt.wantProjects, q.Projects)

			if len(tt.updates) == 0 {
				// The internal query is untouched
				assert.Empty(t, b.GetInternal().Fields)
				assert.Empty(t, b.GetInternal().Projects)
			}
		})
	}
}

func TestFetch(t *testing.T) {
	want := &models.QueryResult{Data: []map[string]interface{}{{"event_id": "a1"}}}
	var gotOrg string
	var gotQuery models.QuerySpec
	b := New(testOrg, FetcherFunc(func(_ context.Context, org string, q models.QuerySpec) (*models.QueryResult, error) {
		gotOrg, gotQuery = org, q
		return want, nil
	}))

	q := b.GetExternal()
	result, err := b.Fetch(context.Background(), q)
	require.NoError(t, err)
	assert.Same(t, want, result)
	assert.Equal(t, "acme", gotOrg)
	assert.Equal(t, q, gotQuery)
}

func TestFetchErrors(t *testing.T) {
	_, err := New(testOrg, nil).Fetch(context.Background(), Defaults)
	assert.Error(t, err)

	boom := errors.New("connection refused")
	b := New(testOrg, FetcherFunc(func(context.Context, string, models.QuerySpec) (*models.QueryResult, error) {
		return nil, boom
	}))
	_, err = b.Fetch(context.Background(), Defaults)
	assert.ErrorIs(t, err, boom)
}

func TestParseUpdate(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		key  string
		raw  string
		want Update
	}{
		{KeyFields, `["event_id"]`, Fields{"event_id"}},
		{KeyAggregations, `[["uniq", "user_id", "users"]]`, Aggregations{{Function: "uniq", Column: "user_id", Alias: "users"}}},
		{KeyConditions, `[["message", "LIKE", "%timeout%"]]`, Conditions{{Column: "message", Operator: "LIKE", Value: "%timeout%"}}},
		{KeyOrderBy, `"-timestamp"`, OrderBy("-timestamp")},
		{KeyLimit, `25`, Limit(25)},
		{KeyProjects, `[1, 2]`, Projects{1, 2}},
		{KeyRange, `"7d"`, Range("7d")},
		{KeyStart, `"2024-01-01T00:00:00Z"`, Start(start)},
		{KeyEnd, `"2024-01-01T00:00:00Z"`, End(start)},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			u, err := ParseUpdate(tt.key, json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.key, u.Key())
			assert.Equal(t, tt.want, u)
		})
	}
}

func TestParseUpdateErrors(t *testing.T) {
	_, err := ParseUpdate("rollup", json.RawMessage(`3600`))
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = ParseUpdate(KeyLimit, json.RawMessage(`"many"`))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownField)
}

func TestQueryStringRestoresQuery(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := New(testOrg, nil,
		Fields{"platform"},
		Aggregations{{Function: "count()", Alias: "count"}},
		Conditions{{Column: "message", Operator: "IS NULL"}},
		OrderBy("-count"),
		Limit(20),
		Projects{1},
		Start(start),
	)
	want := b.GetInternal()

	updates, err := ParseQueryString("?" + QueryString(want))
	require.NoError(t, err)

	restored := New(testOrg, nil, updates...)
	if diff := cmp.Diff(want, restored.GetInternal(), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("restored query mismatch (-want +got):\n%s", diff)
	}
}

func TestParseQueryStringSkipsBadKeys(t *testing.T) {
	updates, err := ParseQueryString(`fields=%5B%22message%22%5D&limit=abc&utm_source=mail`)
	assert.Error(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, Fields{"message"}, updates[0])
}
