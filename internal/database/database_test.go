package database

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-username/click-lite-discover/internal/config"
	"github.com/your-username/click-lite-discover/internal/models"
)

func TestHTTPQuery(t *testing.T) {
	var gotBody, gotDatabase, gotUser, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotDatabase = r.URL.Query().Get("database")
		gotUser = r.Header.Get("X-ClickHouse-User")
		gotKey = r.Header.Get("X-ClickHouse-Key")

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"meta": [{"name": "event_id", "type": "String"}, {"name": "project_id", "type": "UInt64"}],
			"data": [{"event_id": "abc", "project_id": "1"}],
			"rows": 1,
			"statistics": {"elapsed": 0.001, "rows_read": 10, "bytes_read": 100}
		}`)
	}))
	defer server.Close()

	db := NewHTTP(server.URL, config.DatabaseConfig{Database: "click_lite", Username: "reader", Password: "pw"})
	result, err := db.Query(context.Background(),
		"SELECT event_id, project_id FROM events WHERE project_id IN (?) AND message = ?",
		[]interface{}{int64(1), "it's"})
	require.NoError(t, err)

	assert.Equal(t, `SELECT event_id, project_id FROM events WHERE project_id IN (1) AND message = 'it\'s' FORMAT JSON`, gotBody)
	assert.Equal(t, "click_lite", gotDatabase)
	assert.Equal(t, "reader", gotUser)
	assert.Equal(t, "pw", gotKey)

	assert.Equal(t, []models.ColumnMeta{{Name: "event_id", Type: "String"}, {Name: "project_id", Type: "UInt64"}}, result.Meta)
	assert.Equal(t, []map[string]interface{}{{"event_id": "abc", "project_id": "1"}}, result.Data)
}

func TestHTTPQueryEmptyData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"meta": [{"name": "event_id", "type": "String"}], "rows": 0}`)
	}))
	defer server.Close()

	db := NewHTTP(server.URL, config.DatabaseConfig{})
	result, err := db.Query(context.Background(), "SELECT event_id FROM events", nil)
	require.NoError(t, err)
	assert.NotNil(t, result.Data)
	assert.Empty(t, result.Data)
}

func TestHTTPQueryError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, "Code: 60. DB::Exception: Table click_lite.events doesn't exist\n")
	}))
	defer server.Close()

	db := NewHTTP(server.URL, config.DatabaseConfig{})
	_, err := db.Query(context.Background(), "SELECT event_id FROM events", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Table click_lite.events doesn't exist")
}

func TestHTTPQueryArgumentMismatch(t *testing.T) {
	db := NewHTTP("http://127.0.0.1:0", config.DatabaseConfig{})
	_, err := db.Query(context.Background(), "SELECT event_id FROM events WHERE project_id = ?", nil)
	assert.Error(t, err)
}

func TestHTTPPingAndSchema(t *testing.T) {
	var statements []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		statements = append(statements, string(body))
		_, _ = io.WriteString(w, "1\n")
	}))
	defer server.Close()

	db := NewHTTP(server.URL, config.DatabaseConfig{})
	require.NoError(t, db.Ping(context.Background()))
	require.NoError(t, InitSchema(context.Background(), db, "discover_events"))

	require.Len(t, statements, 2)
	assert.Equal(t, "SELECT 1", statements[0])
	assert.Contains(t, statements[1], "CREATE TABLE IF NOT EXISTS discover_events")
}

func TestNativeQuery(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	ts := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	level := 0.5
	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("event_id").OfType("String", ""),
		sqlmock.NewColumn("timestamp").OfType("DateTime", ts),
		sqlmock.NewColumn("device_battery_level").OfType("Nullable(Float32)", &level),
	).
		AddRow("abc", ts, 0.5).
		AddRow([]byte("def"), ts, nil)

	statement := "SELECT event_id, timestamp, device_battery_level FROM events WHERE project_id IN (?)"
	mock.ExpectQuery(regexp.QuoteMeta(statement)).WithArgs(int64(1)).WillReturnRows(rows)

	result, err := NewNative(sqlDB).Query(context.Background(), statement, []interface{}{int64(1)})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, []models.ColumnMeta{
		{Name: "event_id", Type: "String"},
		{Name: "timestamp", Type: "DateTime"},
		{Name: "device_battery_level", Type: "Nullable(Float32)"},
	}, result.Meta)
	assert.Equal(t, []map[string]interface{}{
		{"event_id": "abc", "timestamp": "2024-01-15T12:00:00Z", "device_battery_level": 0.5},
		{"event_id": "def", "timestamp": "2024-01-15T12:00:00Z", "device_battery_level": nil},
	}, result.Data)
}

func TestNativeQueryError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectQuery("SELECT").WillReturnError(assert.AnError)

	_, err = NewNative(sqlDB).Query(context.Background(), "SELECT event_id FROM events", nil)
	assert.ErrorIs(t, err, assert.AnError)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNativePing(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectPing()
	require.NoError(t, NewNative(sqlDB).Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConvertValue(t *testing.T) {
	s := "x"
	var nilString *string
	assert.Equal(t, "x", convertValue(&s))
	assert.Nil(t, convertValue(nilString))
	assert.Equal(t, "raw", convertValue([]byte("raw")))
	assert.Equal(t, uint64(3), convertValue(uint64(3)))
}

func TestNewRejectsUnknownProtocol(t *testing.T) {
	_, err := New(context.Background(), config.DatabaseConfig{Protocol: "grpc"})
	assert.Error(t, err)
}
