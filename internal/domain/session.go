package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session binds a pair of bearer tokens to a user for a bounded time window.
// The refresh token is stored only as a SHA-256 hash; the session token is a
// signed JWT and is kept verbatim for lookup. Terminated sessions are retained
// for audit and never reused.
type Session struct {
	ID                uuid.UUID         `json:"id"`
	UserID            uuid.UUID         `json:"user_id"`
	SessionToken      string            `json:"-"`
	RefreshTokenHash  string            `json:"-"`
	DeviceFingerprint DeviceFingerprint `json:"device_fingerprint"`
	IPAddress         string            `json:"ip_address,omitempty"`
	UserAgent         string            `json:"user_agent,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	ExpiresAt         time.Time         `json:"expires_at"`
	LastActivityAt    time.Time         `json:"last_activity_at"`
	IsActive          bool              `json:"is_active"`
}

// IsLive reports whether the session is usable at the given instant.
func (s *Session) IsLive(now time.Time) bool {
	return s.IsActive && now.Before(s.ExpiresAt)
}

// SessionCredentials is returned to the client on creation and refresh.
type SessionCredentials struct {
	SessionID    uuid.UUID `json:"session_id"`
	SessionToken string    `json:"session_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// SessionFilters narrows GetUserSessions results.
type SessionFilters struct {
	ActiveOnly bool
	IPAddress  string
	Limit      int
}

// SessionStats summarizes session counts, optionally scoped to one user.
type SessionStats struct {
	TotalSessions  int `json:"total_sessions"`
	ActiveSessions int `json:"active_sessions"`
	UniqueDevices  int `json:"unique_devices"`
}
