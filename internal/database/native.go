package database

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"time"

	"github.com/your-username/click-lite-discover/internal/models"
)

// NativeDB executes queries through the clickhouse-go driver
type NativeDB struct {
	db *sql.DB
}

// NewNative wraps an open connection pool
func NewNative(db *sql.DB) *NativeDB {
	return &NativeDB{db: db}
}

// Query runs sql with positional args and scans every row into a map
func (n *NativeDB) Query(ctx context.Context, statement string, args []interface{}) (*models.QueryResult, error) {
	rows, err := n.db.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	meta := make([]models.ColumnMeta, len(types))
	for i, t := range types {
		meta[i] = models.ColumnMeta{Name: t.Name(), Type: t.DatabaseTypeName()}
	}

	data := []map[string]interface{}{}
	for rows.Next() {
		values := make([]interface{}, len(types))
		pointers := make([]interface{}, len(types))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]interface{}, len(types))
		for i, t := range types {
			row[t.Name()] = convertValue(values[i])
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return &models.QueryResult{Data: data, Meta: meta}, nil
}

func (n *NativeDB) Exec(ctx context.Context, statement string) error {
	_, err := n.db.ExecContext(ctx, statement)
	return err
}

func (n *NativeDB) Ping(ctx context.Context) error {
	return n.db.PingContext(ctx)
}

func (n *NativeDB) Close() error {
	return n.db.Close()
}

// convertValue converts driver values to JSON friendly types
func convertValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.UTC().Format(time.RFC3339)
	}

	// Nullable columns arrive as pointers
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		return convertValue(rv.Elem().Interface())
	}
	return v
}
