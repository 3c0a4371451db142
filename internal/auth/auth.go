package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/your-username/click-lite-discover/internal/config"
	"github.com/your-username/click-lite-discover/internal/models"
)

var (
	ErrMissingToken     = errors.New("missing bearer token")
	ErrWrongOrg         = errors.New("token is not valid for this organization")
	ErrForbiddenProject = errors.New("project not accessible")
)

// Claims identify the organization and projects a token may query
type Claims struct {
	Org      string  `json:"org"`
	Projects []int64 `json:"projects,omitempty"`
	jwt.RegisteredClaims
}

type contextKey struct{}

// Authenticator validates HS256 bearer tokens
type Authenticator struct {
	secret []byte
	issuer string
}

// New creates an authenticator. It returns nil when no secret is configured,
// which disables authentication.
func New(cfg config.JWTConfig) *Authenticator {
	if cfg.Secret == "" {
		return nil
	}
	return &Authenticator{secret: []byte(cfg.Secret), issuer: cfg.Issuer}
}

// Parse validates tokenString and returns its claims
func (a *Authenticator) Parse(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Org == "" {
		return nil, fmt.Errorf("token has no org claim")
	}
	return claims, nil
}

// Sign issues a token for claims
func (a *Authenticator) Sign(claims Claims) (string, error) {
	if a.issuer != "" && claims.Issuer == "" {
		claims.Issuer = a.issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Middleware resolves the organization of the request from the {org} URL
// parameter and, when authentication is enabled, checks it against the token.
// Websocket clients may pass the token in the token query parameter.
func Middleware(a *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			slug := chi.URLParam(r, "org")
			org := models.Organization{Slug: slug}

			if a != nil {
				var claims *Claims
				token := bearerToken(r)
				err := ErrMissingToken
				if token != "" {
					claims, err = a.Parse(token)
				}
				if err != nil {
					log.Warn().Err(err).Str("org", slug).Msg("Rejected request")
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}
				if claims.Org != slug {
					log.Warn().Str("org", slug).Str("token_org", claims.Org).Msg("Rejected request")
					http.Error(w, ErrWrongOrg.Error(), http.StatusForbidden)
					return
				}
				for _, id := range claims.Projects {
					org.Projects = append(org.Projects, models.Project{ID: id})
				}
			}

			next.ServeHTTP(w, r.WithContext(WithOrganization(r.Context(), org)))
		})
	}
}

func bearerToken(r *http.Request) string {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get("token")
}

// WithOrganization stores org in ctx
func WithOrganization(ctx context.Context, org models.Organization) context.Context {
	return context.WithValue(ctx, contextKey{}, org)
}

// OrganizationFromContext returns the organization stored by Middleware
func OrganizationFromContext(ctx context.Context) (models.Organization, bool) {
	org, ok := ctx.Value(contextKey{}).(models.Organization)
	return org, ok
}

// ScopeQuery restricts q to the projects org may query. A query without
// projects is given all of them; explicit projects outside them are rejected.
func ScopeQuery(org models.Organization, q *models.QuerySpec) error {
	if len(q.Projects) == 0 {
		q.Projects = org.ProjectIDs()
		return nil
	}
	return RestrictProjects(org, q.Projects)
}

// RestrictProjects checks requested project IDs against org. An organization
// without projects is unrestricted.
func RestrictProjects(org models.Organization, requested []int64) error {
	if len(org.Projects) == 0 {
		return nil
	}
	allowed := make(map[int64]bool, len(org.Projects))
	for _, p := range org.Projects {
		allowed[p.ID] = true
	}
	for _, id := range requested {
		if !allowed[id] {
			return fmt.Errorf("%w: %d", ErrForbiddenProject, id)
		}
	}
	return nil
}
