package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-username/click-lite-discover/internal/auth"
	"github.com/your-username/click-lite-discover/internal/config"
	"github.com/your-username/click-lite-discover/internal/models"
	"github.com/your-username/click-lite-discover/internal/query"
	"github.com/your-username/click-lite-discover/internal/querybuilder"
)

type fakeExecutor struct {
	mu     sync.Mutex
	result *models.QueryResult
	err    error
	sql    string
	args   []interface{}
}

func (f *fakeExecutor) Query(_ context.Context, sql string, args []interface{}) (*models.QueryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sql = sql
	f.args = args
	if f.err != nil {
		return nil, f.err
	}
	out := *f.result
	return &out, nil
}

type broadcast struct {
	org         string
	messageType string
	data        interface{}
}

type fakeBroadcaster struct {
	messages []broadcast
}

func (f *fakeBroadcaster) BroadcastToOrganization(org, messageType string, data interface{}) {
	f.messages = append(f.messages, broadcast{org, messageType, data})
}

type testServer struct {
	router      chi.Router
	executor    *fakeExecutor
	broadcaster *fakeBroadcaster
}

func newTestServer(t *testing.T, authenticator *auth.Authenticator) *testServer {
	t.Helper()

	executor := &fakeExecutor{result: &models.QueryResult{
		Meta: []models.ColumnMeta{{Name: "event_id", Type: "String"}, {Name: "message", Type: "String"}},
		Data: []map[string]interface{}{{"event_id": "a1", "message": "boom"}},
	}}
	engine := query.NewEngine(executor, query.EngineConfig{Table: "events", MaxLimit: 1000})
	broadcaster := &fakeBroadcaster{}

	r := chi.NewRouter()
	Routes(r, RouterConfig{
		Discover:      NewDiscoverHandler(engine, query.NewQueryStore(nil, query.DefaultValidator(1000)), broadcaster),
		Authenticator: authenticator,
	})
	return &testServer{router: r, executor: executor, broadcaster: broadcaster}
}

func (s *testServer) do(t *testing.T, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

const base = "/api/v1/organizations/acme/discover"

func TestColumnsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, base+"/columns", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var columns []models.Column
	decodeJSON(t, rec, &columns)
	assert.Equal(t, querybuilder.Columns, columns)
}

func TestQueryEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, base+"/query", `{
		"projects": [1, 2],
		"fields": ["event_id", "message"],
		"aggregations": [],
		"conditions": [["message", "=", "boom"]],
		"orderby": "-timestamp",
		"limit": 10,
		"range": "14d"
	}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result models.QueryResult
	decodeJSON(t, rec, &result)
	assert.Len(t, result.Data, 1)
	assert.Equal(t, "a1", result.Data[0]["event_id"])
	assert.NotEmpty(t, result.Timing.RequestID)

	assert.Contains(t, s.executor.sql, "project_id IN (?,?)")
	assert.Contains(t, s.executor.sql, "LIMIT 10")
}

func TestQueryEndpointErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		dbErr  error
		status int
	}{
		{
			name:   "malformed body",
			body:   `{"fields": `,
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown column",
			body:   `{"fields": ["nope"], "limit": 10}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "limit above maximum",
			body:   `{"fields": ["event_id"], "limit": 5000}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "database failure",
			body:   `{"fields": ["event_id"], "limit": 10}`,
			dbErr:  errors.New("connection refused"),
			status: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			s.executor.err = tt.dbErr

			rec := s.do(t, http.MethodPost, base+"/query", tt.body, nil)
			assert.Equal(t, tt.status, rec.Code)

			var body map[string]string
			decodeJSON(t, rec, &body)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestQueryEndpointRequiresJSON(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, base+"/query", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestQueryEndpointWithAuth(t *testing.T) {
	authenticator := auth.New(config.JWTConfig{Secret: "secret"})
	s := newTestServer(t, authenticator)

	token, err := authenticator.Sign(auth.Claims{Org: "acme", Projects: []int64{1, 2}})
	require.NoError(t, err)
	header := http.Header{"Authorization": {"Bearer " + token}}

	t.Run("missing token", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, base+"/query", `{"fields": ["event_id"]}`, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("other organization", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/v1/organizations/other/discover/query", `{"fields": ["event_id"]}`, header)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("forbidden project", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, base+"/query", `{"projects": [3], "fields": ["event_id"]}`, header)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("projects default to the token's", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, base+"/query", `{"fields": ["event_id"], "range": "1h"}`, header)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, s.executor.sql, "project_id IN (?,?)")
		assert.Equal(t, int64(1), s.executor.args[0])
		assert.Equal(t, int64(2), s.executor.args[1])
	})
}

func TestExportEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, base+"/export?format=csv", `{"fields": ["event_id", "message"], "limit": 10}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment; filename=discover_")
	assert.Equal(t, "1", rec.Header().Get("X-Export-Rows"))
	assert.Equal(t, "event_id,message\na1,boom\n", rec.Body.String())

	rec = s.do(t, http.MethodPost, base+"/export?format=csv&headers=false", `{"fields": ["event_id"], "limit": 10}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a1,boom\n", rec.Body.String())
}

func TestExportEndpointErrors(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, base+"/export?format=pdf", `{"fields": ["event_id"]}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, base+"/export", `{"fields": ["nope"]}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	s.executor.err = errors.New("timeout")
	rec = s.do(t, http.MethodPost, base+"/export?format=json", `{"fields": ["event_id"]}`, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSavedQueriesEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, base+"/saved", `{
		"name": "Errors by platform",
		"query": {"fields": ["platform"], "aggregations": [["count()", null, "count"]], "orderby": "-count", "limit": 100}
	}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created query.SavedQuery
	decodeJSON(t, rec, &created)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "acme", created.Organization)
	assert.Equal(t, "Errors by platform", created.Name)
	assert.Equal(t, []models.Aggregation{{Function: "count()", Alias: "count"}}, created.Query.Aggregations)

	rec = s.do(t, http.MethodGet, base+"/saved/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPut, base+"/saved/"+created.ID, `{
		"name": "Platforms",
		"query": {"fields": ["platform"], "limit": 50}
	}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated query.SavedQuery
	decodeJSON(t, rec, &updated)
	assert.Equal(t, "Platforms", updated.Name)
	assert.Equal(t, 50, updated.Query.Limit)

	rec = s.do(t, http.MethodGet, base+"/saved", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Queries []query.SavedQuery `json:"queries"`
		Count   int                `json:"count"`
	}
	decodeJSON(t, rec, &list)
	assert.Equal(t, 1, list.Count)

	// Other organizations cannot see it
	rec = s.do(t, http.MethodGet, "/api/v1/organizations/other/discover/saved/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, base+"/saved/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, base+"/saved/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Len(t, s.broadcaster.messages, 3)
	for _, msg := range s.broadcaster.messages {
		assert.Equal(t, "acme", msg.org)
		assert.Equal(t, models.MessageSavedQueries, msg.messageType)
	}
	assert.Empty(t, s.broadcaster.messages[2].data)
}

func TestSavedQueriesValidation(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, base+"/saved", `{"name": "  ", "query": {"fields": ["event_id"]}}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, base+"/saved", `{"name": "bad", "query": {"fields": ["nope"]}}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, base+"/saved/missing", `{"name": "x", "query": {}}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Empty(t, s.broadcaster.messages)
}
