package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/staffhub/platform/internal/domain"
)

type contextKey string

const sessionKey contextKey = "auth_session"

// SessionValidator confirms a bearer token maps to a live session. Implemented
// by the session manager; middleware stays decoupled from the service package.
type SessionValidator interface {
	ValidateSession(ctx context.Context, sessionToken string) (*domain.Session, error)
}

// RoleLookup resolves the role of an authenticated user. Implemented by the
// auth service against the employees table so a promotion or demotion takes
// effect on the next request, not the next login.
type RoleLookup interface {
	RoleOf(ctx context.Context, userID uuid.UUID) (string, error)
}

// SessionFromContext extracts the validated session from request context.
func SessionFromContext(ctx context.Context) *domain.Session {
	s, _ := ctx.Value(sessionKey).(*domain.Session)
	return s
}

// RequireSession returns middleware that validates the bearer session token
// and injects the live session into the request context. An expired or
// invalid session always reads as "please log in again", never as a server
// error.
func RequireSession(validator SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
				return
			}

			session, err := validator.ValidateSession(r.Context(), token)
			if err != nil || session == nil {
				writeAuthError(w, http.StatusUnauthorized, "SESSION_EXPIRED", "session expired, please log in again")
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole returns middleware that allows only callers whose role is in
// the given set. It must run after RequireSession; a missing session reads
// as 401, a role outside the set as 403.
func RequireRole(lookup RoleLookup, roles ...string) func(http.Handler) http.Handler {
	roleSet := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := SessionFromContext(r.Context())
			if session == nil {
				writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "no active session")
				return
			}

			role, err := lookup.RoleOf(r.Context(), session.UserID)
			if err != nil {
				writeAuthError(w, http.StatusForbidden, "FORBIDDEN", "insufficient role")
				return
			}
			if _, ok := roleSet[role]; !ok {
				writeAuthError(w, http.StatusForbidden, "FORBIDDEN", "insufficient role")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"code": code, "message": message})
}

func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errMissingHeader
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", errBadFormat
	}
	return parts[1], nil
}

type authError string

func (e authError) Error() string { return string(e) }

const (
	errMissingHeader authError = "missing Authorization header"
	errBadFormat     authError = "invalid Authorization format"
)
