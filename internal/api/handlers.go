package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/your-username/click-lite-discover/internal/auth"
	"github.com/your-username/click-lite-discover/internal/models"
	"github.com/your-username/click-lite-discover/internal/query"
)

// maxBodySize limits request bodies of the Discover endpoints
const maxBodySize = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeQueryError maps query errors to responses: malformed queries are the
// client's fault, anything else is the database's
func writeQueryError(w http.ResponseWriter, err error) {
	switch {
	case query.IsInvalid(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, query.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrForbiddenProject):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		log.Error().Err(err).Msg("Discover query failed")
		writeError(w, http.StatusBadGateway, "Failed to execute query")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// organization returns the organization resolved by the auth middleware
func organization(w http.ResponseWriter, r *http.Request) (models.Organization, bool) {
	org, ok := auth.OrganizationFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown organization")
	}
	return org, ok
}
