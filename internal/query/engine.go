package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/your-username/click-lite-discover/internal/cache"
	"github.com/your-username/click-lite-discover/internal/models"
	"github.com/your-username/click-lite-discover/internal/monitoring"
)

// Executor runs compiled statements against the event store
type Executor interface {
	Query(ctx context.Context, sql string, args []interface{}) (*models.QueryResult, error)
}

// EngineConfig holds engine settings
type EngineConfig struct {
	Table    string
	MaxLimit int
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Engine validates, compiles and executes Discover queries
type Engine struct {
	db        Executor
	validator *Validator
	compiler  *Compiler
	cache     *cache.QueryCache
	timeout   time.Duration
	now       func() time.Time
}

// NewEngine creates a new query engine
func NewEngine(db Executor, cfg EngineConfig) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	e := &Engine{
		db:        db,
		validator: DefaultValidator(cfg.MaxLimit),
		compiler:  NewCompiler(cfg.Table),
		timeout:   cfg.Timeout,
		now:       time.Now,
	}
	if cfg.CacheTTL > 0 {
		e.cache = cache.NewQueryCache(cfg.CacheTTL)
	}
	return e
}

// IsInvalid reports whether err was caused by a malformed query rather than
// by the database
func IsInvalid(err error) bool {
	return errors.Is(err, ErrUnknownColumn) ||
		errors.Is(err, ErrUnsupportedFunction) ||
		errors.Is(err, ErrUnsupportedOperator) ||
		errors.Is(err, ErrInvalidQuery)
}

// Execute runs q for the organization org
func (e *Engine) Execute(ctx context.Context, org string, q models.QuerySpec) (*models.QueryResult, error) {
	start := time.Now()
	metrics := monitoring.Get()

	if err := e.validator.Validate(q); err != nil {
		metrics.RecordQuery(monitoring.StatusInvalid, time.Since(start))
		return nil, err
	}

	// Relative ranges move with the clock, only absolute queries are cached
	cacheable := e.cache != nil && q.Range == ""
	if cacheable {
		if cached, found := e.cache.GetQueryResult(org, q); found {
			metrics.RecordCacheHit()
			result := cached.Clone()
			result.Timing.CacheHit = true
			result.Timing.RequestID = uuid.New().String()
			return result, nil
		}
	}

	sql, args, err := e.compiler.Compile(q, e.now())
	if err != nil {
		metrics.RecordQuery(monitoring.StatusInvalid, time.Since(start))
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	requestID := uuid.New().String()
	log.Debug().
		Str("org", org).
		Str("request_id", requestID).
		Str("sql", sql).
		Int("args", len(args)).
		Msg("Executing discover query")

	result, err := e.db.Query(ctx, sql, args)
	if err != nil {
		metrics.RecordQuery(monitoring.StatusError, time.Since(start))
		return nil, fmt.Errorf("execution error: %w", err)
	}

	elapsed := time.Since(start)
	metrics.RecordQuery(monitoring.StatusOK, elapsed)

	result.Timing = models.Timing{
		Timestamp:  start.Unix(),
		DurationMS: elapsed.Milliseconds(),
		RequestID:  requestID,
	}
	if result.Data == nil {
		result.Data = []map[string]interface{}{}
	}

	if cacheable {
		e.cache.SetQueryResult(org, q, result.Clone())
	}
	return result, nil
}

// Fetch implements querybuilder.Fetcher for in-process controllers
func (e *Engine) Fetch(ctx context.Context, org string, q models.QuerySpec) (*models.QueryResult, error) {
	return e.Execute(ctx, org, q)
}

// CacheStats returns statistics of the result cache, if enabled
func (e *Engine) CacheStats() (cache.CacheStats, bool) {
	if e.cache == nil {
		return cache.CacheStats{}, false
	}
	return e.cache.GetStats(), true
}
