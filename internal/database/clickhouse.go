package database

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/your-username/click-lite-discover/internal/config"
	"github.com/your-username/click-lite-discover/internal/models"
	"github.com/your-username/click-lite-discover/internal/query"
)

// HTTPDB executes queries over the ClickHouse HTTP interface
type HTTPDB struct {
	baseURL  string
	database string
	username string
	password string
	client   *http.Client
}

// jsonResponse is the body ClickHouse returns for FORMAT JSON
type jsonResponse struct {
	Meta       []models.ColumnMeta      `json:"meta"`
	Data       []map[string]interface{} `json:"data"`
	Rows       int                      `json:"rows"`
	Statistics struct {
		Elapsed   float64 `json:"elapsed"`
		RowsRead  int64   `json:"rows_read"`
		BytesRead int64   `json:"bytes_read"`
	} `json:"statistics"`
}

// NewHTTP creates an executor for the HTTP interface at baseURL
func NewHTTP(baseURL string, cfg config.DatabaseConfig) *HTTPDB {
	return &HTTPDB{
		baseURL:  strings.TrimRight(baseURL, "/"),
		database: cfg.Database,
		username: cfg.Username,
		password: cfg.Password,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Query binds args into sql and returns the rows with their column types
func (db *HTTPDB) Query(ctx context.Context, sql string, args []interface{}) (*models.QueryResult, error) {
	statement, err := query.BindArgs(sql, args)
	if err != nil {
		return nil, err
	}

	body, err := db.post(ctx, statement+" FORMAT JSON")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp jsonResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	log.Debug().
		Int("rows", resp.Rows).
		Float64("elapsed", resp.Statistics.Elapsed).
		Int64("rows_read", resp.Statistics.RowsRead).
		Int64("bytes_read", resp.Statistics.BytesRead).
		Msg("ClickHouse query finished")

	if resp.Data == nil {
		resp.Data = []map[string]interface{}{}
	}
	return &models.QueryResult{
		Data: resp.Data,
		Meta: resp.Meta,
	}, nil
}

// Exec runs a statement that returns no rows
func (db *HTTPDB) Exec(ctx context.Context, statement string) error {
	body, err := db.post(ctx, statement)
	if err != nil {
		return err
	}
	return body.Close()
}

// Ping checks that ClickHouse answers
func (db *HTTPDB) Ping(ctx context.Context) error {
	return db.Exec(ctx, "SELECT 1")
}

func (db *HTTPDB) Close() error {
	db.client.CloseIdleConnections()
	return nil
}

func (db *HTTPDB) post(ctx context.Context, statement string) (io.ReadCloser, error) {
	endpoint := db.baseURL + "/"
	if db.database != "" {
		endpoint += "?" + url.Values{"database": {db.database}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(statement))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	if db.username != "" {
		req.Header.Set("X-ClickHouse-User", db.username)
		req.Header.Set("X-ClickHouse-Key", db.password)
	}

	resp, err := db.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ClickHouse error: %s", strings.TrimSpace(string(body)))
	}
	return resp.Body, nil
}
