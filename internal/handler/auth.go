package handler

import (
	"net"
	"net/http"

	"github.com/staffhub/platform/internal/auth"
	"github.com/staffhub/platform/internal/domain"
	"github.com/staffhub/platform/internal/fingerprint"
	"github.com/staffhub/platform/internal/guard"
	"github.com/staffhub/platform/internal/service"
)

// AuthHandler handles registration, login, refresh, and logout.
type AuthHandler struct {
	authSvc    *service.AuthService
	sessionMgr *service.SessionManager
	idem       *guard.IdempotencyGuard
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authSvc *service.AuthService, sessionMgr *service.SessionManager, idem *guard.IdempotencyGuard) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, sessionMgr: sessionMgr, idem: idem}
}

// loginRequest carries credentials plus optional browser-collected hints.
type loginRequest struct {
	Email       string                   `json:"email"`
	Password    string                   `json:"password"`
	ClientHints *fingerprint.ClientHints `json:"client_hints,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Register handles POST /auth/register. Retries of a completed registration
// with the same Idempotency-Key header are rejected as duplicates; a failed
// attempt releases the key so the client can retry with it.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	idemKey := r.Header.Get("Idempotency-Key")
	if res := h.idem.Check(r.Context(), idemKey); !res.Allowed {
		RespondJSON(w, http.StatusConflict, map[string]string{
			"code":    "CONFLICT",
			"message": res.Reason,
		})
		return
	}

	var input service.RegisterInput
	if err := DecodeJSON(r, &input); err != nil {
		h.idem.Remove(idemKey)
		RespondJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "VALIDATION_ERROR",
			"message": "invalid request body",
		})
		return
	}

	employee, err := h.authSvc.Register(r.Context(), input)
	if err != nil {
		h.idem.Remove(idemKey)
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusCreated, map[string]string{
		"id":    employee.ID.String(),
		"email": employee.Email,
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "VALIDATION_ERROR",
			"message": "invalid request body",
		})
		return
	}

	input := service.LoginInput{Email: req.Email, Password: req.Password}
	result, err := h.authSvc.Login(r.Context(), input, rawSignals(r), req.ClientHints)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, result)
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := DecodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		RespondJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "VALIDATION_ERROR",
			"message": "refresh_token is required",
		})
		return
	}

	creds, err := h.sessionMgr.RefreshSession(r.Context(), req.RefreshToken, clientIP(r), r.UserAgent())
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, creds)
}

// Logout handles POST /auth/logout: terminates the calling session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	if session == nil {
		RespondError(w, domain.ErrUnauthorized("no active session"))
		return
	}

	if err := h.sessionMgr.TerminateSession(r.Context(), session.ID, session.UserID); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusNoContent, nil)
}

// ChangePassword handles POST /auth/password for the calling session's user.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	if session == nil {
		RespondError(w, domain.ErrUnauthorized("no active session"))
		return
	}

	var req changePasswordRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "VALIDATION_ERROR",
			"message": "invalid request body",
		})
		return
	}

	if err := h.authSvc.ChangePassword(r.Context(), session.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusNoContent, nil)
}

// rawSignals collects the server-observable fingerprint inputs from the
// request. Geo fields are filled later by the lookup provider.
func rawSignals(r *http.Request) fingerprint.RawSignals {
	headers := map[string]string{}
	for _, name := range []string{"Accept-Language", "Accept-Encoding", "DNT", "X-Timezone"} {
		if v := r.Header.Get(name); v != "" {
			headers[name] = v
		}
	}
	return fingerprint.RawSignals{
		UserAgent: r.UserAgent(),
		IPAddress: clientIP(r),
		Headers:   headers,
	}
}

// clientIP prefers the leftmost X-Forwarded-For hop, falling back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for i := 0; i < len(fwd); i++ {
			if fwd[i] == ',' {
				return fwd[:i]
			}
		}
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
