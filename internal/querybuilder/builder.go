package querybuilder

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/your-username/click-lite-discover/internal/models"
)

// Defaults is the query a builder starts from and returns to on Reset
var Defaults = models.QuerySpec{
	Projects:     []int64{},
	Fields:       []string{},
	Aggregations: []models.Aggregation{},
	Conditions:   []models.Condition{},
	OrderBy:      "-timestamp",
	Limit:        1000,
	Range:        "14d",
}

// Fetcher executes an external query on behalf of an organization
type Fetcher interface {
	Fetch(ctx context.Context, org string, q models.QuerySpec) (*models.QueryResult, error)
}

// FetcherFunc adapts a function to the Fetcher interface
type FetcherFunc func(ctx context.Context, org string, q models.QuerySpec) (*models.QueryResult, error)

func (f FetcherFunc) Fetch(ctx context.Context, org string, q models.QuerySpec) (*models.QueryResult, error) {
	return f(ctx, org, q)
}

// Builder holds the query being composed in a Discover session
type Builder struct {
	mu      sync.RWMutex
	query   models.QuerySpec
	initial []Update
	org     models.Organization
	fetcher Fetcher
}

// New creates a builder for org. The initial updates are applied on top of
// Defaults, both now and on every Reset.
func New(org models.Organization, fetcher Fetcher, initial ...Update) *Builder {
	b := &Builder{
		org:     org,
		fetcher: fetcher,
		initial: initial,
	}
	b.query = b.defaultQuery()
	return b
}

func (b *Builder) defaultQuery() models.QuerySpec {
	q := Defaults.Clone()
	for _, u := range b.initial {
		u.apply(&q)
	}
	return q
}

// UpdateField applies a single update to the query
func (b *Builder) UpdateField(u Update) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u.apply(&b.query)
}

// GetInternal returns a copy of the query as edited
func (b *Builder) GetInternal() models.QuerySpec {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.query.Clone()
}

// GetExternal returns the request object sent to the query endpoint. With
// nothing selected every catalog column is requested, and with no projects
// selected all of the organization's projects are queried.
func (b *Builder) GetExternal() models.QuerySpec {
	q := b.GetInternal()

	if len(q.Fields) == 0 && len(q.Aggregations) == 0 {
		q.Fields = ColumnNames()
	}
	q.Fields = uniq(q.Fields)

	if len(q.Projects) == 0 {
		q.Projects = b.org.ProjectIDs()
	}
	return q
}

// GetColumns returns the column catalog
func (b *Builder) GetColumns() []models.Column {
	return Columns
}

// Organization returns the organization the builder queries
func (b *Builder) Organization() models.Organization {
	return b.org
}

// Reset restores the initial query
func (b *Builder) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.query = b.defaultQuery()
}

// Fetch sends a request to the query endpoint
func (b *Builder) Fetch(ctx context.Context, q models.QuerySpec) (*models.QueryResult, error) {
	if b.fetcher == nil {
		return nil, fmt.Errorf("no fetcher configured for organization %s", b.org.Slug)
	}
	log.Debug().
		Str("org", b.org.Slug).
		Strs("fields", q.Fields).
		Int("aggregations", len(q.Aggregations)).
		Msg("Fetching discover query")

	result, err := b.fetcher.Fetch(ctx, b.org.Slug, q)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch query: %w", err)
	}
	return result, nil
}

func uniq(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
