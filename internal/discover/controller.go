// Package discover implements the Discover session controller: it derives the
// order-by choices for the current query, sanitizes and runs the basic and
// chart queries, and keeps the results as view state.
package discover

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"

	"github.com/your-username/click-lite-discover/internal/models"
	"github.com/your-username/click-lite-discover/internal/querybuilder"
)

// QueryBuilder is the query state a controller runs
type QueryBuilder interface {
	UpdateField(u querybuilder.Update)
	GetInternal() models.QuerySpec
	GetExternal() models.QuerySpec
	GetColumns() []models.Column
	Reset()
	Fetch(ctx context.Context, q models.QuerySpec) (*models.QueryResult, error)
}

// Navigator moves the client to a new location
type Navigator interface {
	Push(path string)
}

// Notifier surfaces errors to the user
type Notifier interface {
	Error(message string, err error)
}

type nopNavigator struct{}

func (nopNavigator) Push(string) {}

type logNotifier struct{}

func (logNotifier) Error(message string, err error) {
	log.Error().Err(err).Msg(message)
}

// Option configures a Controller
type Option func(*Controller)

// WithNavigator sets the routing collaborator
func WithNavigator(n Navigator) Option {
	return func(c *Controller) { c.navigator = n }
}

// WithNotifier sets the notification collaborator
func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// Controller owns the view state of one Discover session
type Controller struct {
	builder   QueryBuilder
	basePath  string
	navigator Navigator
	notifier  Notifier

	mu         sync.Mutex
	state      models.ViewState
	generation uint64
	running    int
	location   string
}

// New creates a controller for the organization with the given slug
func New(builder QueryBuilder, orgSlug string, opts ...Option) *Controller {
	c := &Controller{
		builder:   builder,
		basePath:  BasePath(orgSlug),
		navigator: nopNavigator{},
		notifier:  logNotifier{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BasePath is the location of the Discover feature of an organization
func BasePath(orgSlug string) string {
	return fmt.Sprintf("/organizations/%s/discover/", orgSlug)
}

// UpdateField changes one key of the builder's query
func (c *Controller) UpdateField(u querybuilder.Update) {
	c.builder.UpdateField(u)
}

// GetOrderbyOptions returns the order-by choices for the current query
func (c *Controller) GetOrderbyOptions() []models.OrderbyOption {
	return orderbyOptions(c.builder.GetInternal(), c.builder.GetColumns())
}

// Orderby returns the currently selected order-by choice
func (c *Controller) Orderby() models.OrderbyOption {
	return OrderbyOptionFor(c.builder.GetInternal().OrderBy)
}

// Query returns the query as currently edited
func (c *Controller) Query() models.QuerySpec {
	return c.builder.GetInternal()
}

// State returns a snapshot of the view state
func (c *Controller) State() models.ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Running reports whether a query is in flight
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running > 0
}

// RunQuery drops incomplete or invalid clauses from the builder's query, then fetches
// the basic query and, when there are aggregations, the chart query. A failed
// fetch clears its pair of state slots and is reported to the notifier;
// results of a run superseded by a later run or reset are discarded.
func (c *Controller) RunQuery(ctx context.Context) error {
	internal := c.builder.GetInternal()
	columns := c.builder.GetColumns()
	c.builder.UpdateField(querybuilder.Conditions(validConditions(internal.Conditions, columns)))
	c.builder.UpdateField(querybuilder.Aggregations(validAggregations(internal.Aggregations, columns)))

	external := c.builder.GetExternal()
	basic := basicQuery(external)

	c.mu.Lock()
	c.generation++
	generation := c.generation
	c.running++
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running--
		c.mu.Unlock()
	}()

	var result *multierror.Error

	data, err := c.builder.Fetch(ctx, basic)
	if err != nil {
		c.notifier.Error("Failed to run query", err)
		result = multierror.Append(result, fmt.Errorf("basic query: %w", err))
		c.commit(generation, func(s *models.ViewState) {
			s.Data, s.Query = nil, nil
		})
	} else if !c.commit(generation, func(s *models.ViewState) {
		s.Data, s.Query = data, &basic
	}) {
		log.Debug().Uint64("generation", generation).Msg("Discarding superseded query result")
		return nil
	}

	if len(external.Aggregations) == 0 {
		return result.ErrorOrNil()
	}

	chart := chartQuery(external)
	chartData, err := c.builder.Fetch(ctx, chart)
	if err != nil {
		c.notifier.Error("Failed to run chart query", err)
		result = multierror.Append(result, fmt.Errorf("chart query: %w", err))
		c.commit(generation, func(s *models.ViewState) {
			s.ChartData, s.ChartQuery = nil, nil
		})
		return result.ErrorOrNil()
	}
	c.commit(generation, func(s *models.ViewState) {
		s.ChartData, s.ChartQuery = chartData, &chart
	})
	return result.ErrorOrNil()
}

// commit applies fn to the state unless a later run or reset happened since
// the run of the given generation started
func (c *Controller) commit(generation uint64, fn func(*models.ViewState)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return false
	}
	fn(&c.state)
	return true
}

// Reset restores the builder's defaults, clears the view state and navigates
// to the feature's base path. Queries in flight are not cancelled; their
// results are discarded.
func (c *Controller) Reset() {
	c.builder.Reset()

	c.mu.Lock()
	c.generation++
	c.state = models.ViewState{}
	c.location = ""
	c.mu.Unlock()

	c.navigator.Push(c.basePath)
}

// ApplyLocation loads the query encoded in a location search string into the
// builder. An unchanged search is a no-op.
func (c *Controller) ApplyLocation(search string) error {
	search = strings.TrimPrefix(search, "?")
	c.mu.Lock()
	if search == c.location {
		c.mu.Unlock()
		return nil
	}
	c.location = search
	c.mu.Unlock()

	updates, err := querybuilder.ParseQueryString(search)
	c.builder.Reset()
	for _, u := range updates {
		c.builder.UpdateField(u)
	}
	if err != nil {
		return fmt.Errorf("failed to apply location: %w", err)
	}
	return nil
}

// Location returns the base path with the current query encoded
func (c *Controller) Location() string {
	return c.basePath + "?" + querybuilder.QueryString(c.builder.GetInternal())
}

// SyncLocation returns Location and records it as applied, so the client
// echoing it back through ApplyLocation changes nothing
func (c *Controller) SyncLocation() string {
	search := querybuilder.QueryString(c.builder.GetInternal())
	c.mu.Lock()
	c.location = search
	c.mu.Unlock()
	return c.basePath + "?" + search
}
