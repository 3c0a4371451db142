package query

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/your-username/click-lite-discover/internal/models"
)

var ErrNotFound = errors.New("saved query not found")

// SavedQuery is a Discover query stored under a name for an organization
type SavedQuery struct {
	ID           string           `json:"id"`
	Organization string           `json:"organization"`
	Name         string           `json:"name"`
	Query        models.QuerySpec `json:"query"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	CreatedBy    string           `json:"created_by,omitempty"`
}

// StorageBackend interface for persistent storage
type StorageBackend interface {
	Save(query *SavedQuery) error
	Load(id string) (*SavedQuery, error)
	LoadAll() ([]*SavedQuery, error)
	Delete(id string) error
}

// InMemoryStorage is a simple in-memory storage backend
type InMemoryStorage struct {
	data map[string]*SavedQuery
	mu   sync.RWMutex
}

// NewInMemoryStorage creates a new in-memory storage
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{
		data: make(map[string]*SavedQuery),
	}
}

func (s *InMemoryStorage) Save(query *SavedQuery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *query
	stored.Query = query.Query.Clone()
	s.data[query.ID] = &stored
	return nil
}

func (s *InMemoryStorage) Load(id string) (*SavedQuery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	query, exists := s.data[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	out := *query
	out.Query = query.Query.Clone()
	return &out, nil
}

func (s *InMemoryStorage) LoadAll() ([]*SavedQuery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	queries := make([]*SavedQuery, 0, len(s.data))
	for _, query := range s.data {
		out := *query
		out.Query = query.Query.Clone()
		queries = append(queries, &out)
	}
	return queries, nil
}

func (s *InMemoryStorage) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[id]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.data, id)
	return nil
}

// QueryStore manages the saved queries of all organizations
type QueryStore struct {
	storage   StorageBackend
	validator *Validator
	now       func() time.Time
}

// NewQueryStore creates a store backed by storage. Queries are validated
// before they are saved.
func NewQueryStore(storage StorageBackend, validator *Validator) *QueryStore {
	if storage == nil {
		storage = NewInMemoryStorage()
	}
	return &QueryStore{
		storage:   storage,
		validator: validator,
		now:       time.Now,
	}
}

// Save creates a saved query, or replaces the one with the same ID
func (qs *QueryStore) Save(query *SavedQuery) error {
	if err := qs.validate(query); err != nil {
		return err
	}

	now := qs.now()
	if query.ID == "" {
		query.ID = uuid.New().String()
		query.CreatedAt = now
	}
	query.UpdatedAt = now

	if err := qs.storage.Save(query); err != nil {
		return fmt.Errorf("failed to save query: %w", err)
	}

	log.Info().
		Str("id", query.ID).
		Str("org", query.Organization).
		Str("name", query.Name).
		Msg("Query saved")
	return nil
}

// Get retrieves a saved query of org by ID
func (qs *QueryStore) Get(org, id string) (*SavedQuery, error) {
	query, err := qs.storage.Load(id)
	if err != nil {
		return nil, err
	}
	if query.Organization != org {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return query, nil
}

// List returns the saved queries of org, most recently updated first
func (qs *QueryStore) List(org string) ([]*SavedQuery, error) {
	all, err := qs.storage.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load queries: %w", err)
	}

	queries := make([]*SavedQuery, 0, len(all))
	for _, q := range all {
		if q.Organization == org {
			queries = append(queries, q)
		}
	}
	sort.Slice(queries, func(i, j int) bool {
		if queries[i].UpdatedAt.Equal(queries[j].UpdatedAt) {
			return queries[i].ID < queries[j].ID
		}
		return queries[i].UpdatedAt.After(queries[j].UpdatedAt)
	})
	return queries, nil
}

// Update renames a saved query and replaces its query
func (qs *QueryStore) Update(org, id, name string, q models.QuerySpec) (*SavedQuery, error) {
	query, err := qs.Get(org, id)
	if err != nil {
		return nil, err
	}
	if name != "" {
		query.Name = name
	}
	query.Query = q
	if err := qs.Save(query); err != nil {
		return nil, err
	}
	return query, nil
}

// Delete deletes a saved query of org
func (qs *QueryStore) Delete(org, id string) error {
	if _, err := qs.Get(org, id); err != nil {
		return err
	}
	if err := qs.storage.Delete(id); err != nil {
		return fmt.Errorf("failed to delete query: %w", err)
	}

	log.Info().Str("id", id).Str("org", org).Msg("Query deleted")
	return nil
}

func (qs *QueryStore) validate(query *SavedQuery) error {
	if query.Organization == "" {
		return fmt.Errorf("%w: organization is required", ErrInvalidQuery)
	}
	if strings.TrimSpace(query.Name) == "" {
		return fmt.Errorf("%w: query name is required", ErrInvalidQuery)
	}
	if qs.validator != nil {
		return qs.validator.Validate(query.Query)
	}
	return nil
}
