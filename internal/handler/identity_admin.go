package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/staffhub/platform/internal/domain"
	"github.com/staffhub/platform/internal/service"
)

// IdentityAdminHandler is the operator surface for device identities:
// inspection, verification, block/unblock. Routes are mounted behind the
// admin group.
type IdentityAdminHandler struct {
	identitySvc *service.IdentityService
	sessionMgr  *service.SessionManager
}

// NewIdentityAdminHandler creates a new IdentityAdminHandler.
func NewIdentityAdminHandler(identitySvc *service.IdentityService, sessionMgr *service.SessionManager) *IdentityAdminHandler {
	return &IdentityAdminHandler{identitySvc: identitySvc, sessionMgr: sessionMgr}
}

// Get handles GET /admin/identities/{identityID}.
func (h *IdentityAdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	identityID, err := uuid.Parse(chi.URLParam(r, "identityID"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid identity id"))
		return
	}

	ident, err := h.identitySvc.GetIdentity(r.Context(), identityID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, ident)
}

// ListForUser handles GET /admin/users/{userID}/identities.
func (h *IdentityAdminHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid user id"))
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			RespondError(w, domain.ErrValidation("limit must be a positive integer"))
			return
		}
	}

	identities, err := h.identitySvc.ListUserIdentities(r.Context(), userID, limit)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"identities": identities,
		"count":      len(identities),
	})
}

type blockRequest struct {
	Reason string `json:"reason"`
}

// Block handles POST /admin/identities/{identityID}/block. Blocking the
// device does not terminate sessions it already holds; operators who want
// that call the terminate endpoint as well.
func (h *IdentityAdminHandler) Block(w http.ResponseWriter, r *http.Request) {
	identityID, err := uuid.Parse(chi.URLParam(r, "identityID"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid identity id"))
		return
	}

	var req blockRequest
	if err := DecodeJSON(r, &req); err != nil || req.Reason == "" {
		RespondError(w, domain.ErrValidation("reason is required"))
		return
	}

	if err := h.identitySvc.Block(r.Context(), identityID, req.Reason); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusNoContent, nil)
}

// Unblock handles POST /admin/identities/{identityID}/unblock.
func (h *IdentityAdminHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	identityID, err := uuid.Parse(chi.URLParam(r, "identityID"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid identity id"))
		return
	}

	if err := h.identitySvc.Unblock(r.Context(), identityID); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusNoContent, nil)
}

type verifyRequest struct {
	Method string `json:"method"`
}

// Verify handles POST /admin/identities/{identityID}/verify.
func (h *IdentityAdminHandler) Verify(w http.ResponseWriter, r *http.Request) {
	identityID, err := uuid.Parse(chi.URLParam(r, "identityID"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid identity id"))
		return
	}

	var req verifyRequest
	if err := DecodeJSON(r, &req); err != nil || req.Method == "" {
		RespondError(w, domain.ErrValidation("method is required"))
		return
	}

	if err := h.identitySvc.Verify(r.Context(), identityID, req.Method); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusNoContent, nil)
}

// TerminateUserSessions handles DELETE /admin/users/{userID}/sessions: force
// logout across all of a user's devices.
func (h *IdentityAdminHandler) TerminateUserSessions(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid user id"))
		return
	}

	count, err := h.sessionMgr.TerminateAllSessions(r.Context(), userID, nil)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]int64{"terminated": count})
}

// SystemStats handles GET /admin/sessions/stats: platform-wide counts.
func (h *IdentityAdminHandler) SystemStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.sessionMgr.GetSessionStats(r.Context(), nil)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, stats)
}
