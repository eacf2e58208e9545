package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/staffhub/platform/internal/auth"
	"github.com/staffhub/platform/internal/domain"
	"github.com/staffhub/platform/internal/service"
)

// SessionHandler exposes the caller's own sessions.
type SessionHandler struct {
	sessionMgr *service.SessionManager
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionMgr *service.SessionManager) *SessionHandler {
	return &SessionHandler{sessionMgr: sessionMgr}
}

// Current handles GET /sessions/me: the validated calling session.
func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	if session == nil {
		RespondError(w, domain.ErrUnauthorized("no active session"))
		return
	}
	RespondJSON(w, http.StatusOK, session)
}

// List handles GET /sessions: the caller's sessions, filterable by
// active_only, ip, and limit query params.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	if session == nil {
		RespondError(w, domain.ErrUnauthorized("no active session"))
		return
	}

	ip := r.URL.Query().Get("ip")
	if err := domain.ValidateIP(ip); err != nil {
		RespondError(w, domain.ErrValidation(err.Error()))
		return
	}

	filters := domain.SessionFilters{
		ActiveOnly: r.URL.Query().Get("active_only") == "true",
		IPAddress:  ip,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			RespondError(w, domain.ErrValidation("limit must be a non-negative integer"))
			return
		}
		filters.Limit = limit
	}

	sessions, err := h.sessionMgr.GetUserSessions(r.Context(), session.UserID, filters)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// Terminate handles DELETE /sessions/{sessionID}.
func (h *SessionHandler) Terminate(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	if session == nil {
		RespondError(w, domain.ErrUnauthorized("no active session"))
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid session id"))
		return
	}

	if err := h.sessionMgr.TerminateSession(r.Context(), sessionID, session.UserID); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusNoContent, nil)
}

// TerminateAll handles DELETE /sessions: every session for the caller except,
// by default, the calling one (pass include_current=true to drop it too).
func (h *SessionHandler) TerminateAll(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	if session == nil {
		RespondError(w, domain.ErrUnauthorized("no active session"))
		return
	}

	var exclude *uuid.UUID
	if r.URL.Query().Get("include_current") != "true" {
		exclude = &session.ID
	}

	count, err := h.sessionMgr.TerminateAllSessions(r.Context(), session.UserID, exclude)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]int64{"terminated": count})
}

// Stats handles GET /sessions/stats for the caller.
func (h *SessionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	if session == nil {
		RespondError(w, domain.ErrUnauthorized("no active session"))
		return
	}

	stats, err := h.sessionMgr.GetSessionStats(r.Context(), &session.UserID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, stats)
}
