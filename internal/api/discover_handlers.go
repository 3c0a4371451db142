package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/your-username/click-lite-discover/internal/auth"
	"github.com/your-username/click-lite-discover/internal/export"
	"github.com/your-username/click-lite-discover/internal/models"
	"github.com/your-username/click-lite-discover/internal/query"
	"github.com/your-username/click-lite-discover/internal/querybuilder"
)

// Runner executes Discover queries for an organization
type Runner interface {
	Execute(ctx context.Context, org string, q models.QuerySpec) (*models.QueryResult, error)
}

// Broadcaster notifies the open sessions of an organization
type Broadcaster interface {
	BroadcastToOrganization(org, messageType string, data interface{})
}

// DiscoverHandler serves the Discover endpoints of an organization
type DiscoverHandler struct {
	runner      Runner
	store       *query.QueryStore
	exporter    *export.Exporter
	broadcaster Broadcaster
}

// NewDiscoverHandler creates a new discover handler
func NewDiscoverHandler(runner Runner, store *query.QueryStore, broadcaster Broadcaster) *DiscoverHandler {
	return &DiscoverHandler{
		runner:      runner,
		store:       store,
		exporter:    export.NewExporter(runner),
		broadcaster: broadcaster,
	}
}

// Columns returns the column catalog
func (h *DiscoverHandler) Columns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, querybuilder.Columns)
}

// Query runs a query and returns {timing, data, meta}
func (h *DiscoverHandler) Query(w http.ResponseWriter, r *http.Request) {
	org, ok := organization(w, r)
	if !ok {
		return
	}

	var q models.QuerySpec
	if !decodeBody(w, r, &q) {
		return
	}
	if err := auth.ScopeQuery(org, &q); err != nil {
		writeQueryError(w, err)
		return
	}

	result, err := h.runner.Execute(r.Context(), org.Slug, q)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Export runs a query and writes the result as a file. The format query
// parameter selects csv (default), json or xlsx.
func (h *DiscoverHandler) Export(w http.ResponseWriter, r *http.Request) {
	org, ok := organization(w, r)
	if !ok {
		return
	}

	format := export.ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = export.FormatCSV
	}
	contentType, ok := export.ContentType(format)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unsupported export format")
		return
	}

	var q models.QuerySpec
	if !decodeBody(w, r, &q) {
		return
	}
	if err := auth.ScopeQuery(org, &q); err != nil {
		writeQueryError(w, err)
		return
	}

	options := export.ExportOptions{
		Format:         format,
		Query:          q,
		IncludeHeaders: r.URL.Query().Get("headers") != "false",
	}

	// Buffered so failures still get an error response
	var buf bytes.Buffer
	result, err := h.exporter.Export(r.Context(), &buf, org.Slug, options)
	if err != nil {
		writeQueryError(w, err)
		return
	}

	log.Info().
		Str("org", org.Slug).
		Str("format", string(format)).
		Int("rows", result.RowCount).
		Dur("duration", result.Duration).
		Msg("Export completed")

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", result.FileName))
	w.Header().Set("X-Export-Rows", strconv.Itoa(result.RowCount))
	if _, err := buf.WriteTo(w); err != nil {
		log.Error().Err(err).Msg("Failed to write export")
	}
}

type savedQueryRequest struct {
	Name  string           `json:"name"`
	Query models.QuerySpec `json:"query"`
}

// ListSavedQueries returns the saved queries of the organization
func (h *DiscoverHandler) ListSavedQueries(w http.ResponseWriter, r *http.Request) {
	org, ok := organization(w, r)
	if !ok {
		return
	}

	queries, err := h.store.List(org.Slug)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"queries": queries,
		"count":   len(queries),
	})
}

// CreateSavedQuery saves a query under a name
func (h *DiscoverHandler) CreateSavedQuery(w http.ResponseWriter, r *http.Request) {
	org, ok := organization(w, r)
	if !ok {
		return
	}

	var req savedQueryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	saved := &query.SavedQuery{
		Organization: org.Slug,
		Name:         strings.TrimSpace(req.Name),
		Query:        req.Query,
	}
	if err := h.store.Save(saved); err != nil {
		writeQueryError(w, err)
		return
	}
	h.savedQueriesChanged(org.Slug)
	writeJSON(w, http.StatusCreated, saved)
}

// GetSavedQuery returns one saved query
func (h *DiscoverHandler) GetSavedQuery(w http.ResponseWriter, r *http.Request) {
	org, ok := organization(w, r)
	if !ok {
		return
	}

	saved, err := h.store.Get(org.Slug, chi.URLParam(r, "id"))
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// UpdateSavedQuery renames a saved query and replaces its query
func (h *DiscoverHandler) UpdateSavedQuery(w http.ResponseWriter, r *http.Request) {
	org, ok := organization(w, r)
	if !ok {
		return
	}

	var req savedQueryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	saved, err := h.store.Update(org.Slug, chi.URLParam(r, "id"), strings.TrimSpace(req.Name), req.Query)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	h.savedQueriesChanged(org.Slug)
	writeJSON(w, http.StatusOK, saved)
}

// DeleteSavedQuery deletes a saved query
func (h *DiscoverHandler) DeleteSavedQuery(w http.ResponseWriter, r *http.Request) {
	org, ok := organization(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(org.Slug, chi.URLParam(r, "id")); err != nil {
		writeQueryError(w, err)
		return
	}
	h.savedQueriesChanged(org.Slug)
	w.WriteHeader(http.StatusNoContent)
}

func (h *DiscoverHandler) savedQueriesChanged(org string) {
	if h.broadcaster == nil {
		return
	}
	queries, err := h.store.List(org)
	if err != nil {
		log.Error().Err(err).Str("org", org).Msg("Failed to list saved queries")
		return
	}
	h.broadcaster.BroadcastToOrganization(org, models.MessageSavedQueries, queries)
}
