package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/staffhub/platform/internal/auth"
	"github.com/staffhub/platform/internal/domain"
	"github.com/staffhub/platform/internal/metrics"
	"github.com/staffhub/platform/internal/repository"
)

// TokenIssuer signs session tokens. Signing algorithm and secret management
// are outside this service's concern.
type TokenIssuer interface {
	Issue(userID, sessionID uuid.UUID, email string, ttl time.Duration) (string, error)
}

// SightingRecorder records that a (user, device) pair was observed. Session
// creation calls it best-effort; failures never block the login.
type SightingRecorder interface {
	RecordSighting(ctx context.Context, userID uuid.UUID, fp domain.DeviceFingerprint) (*domain.UserIdentity, error)
}

// SessionConfig tunes session lifetimes and the concurrency cap.
type SessionConfig struct {
	TTL           time.Duration
	MaxConcurrent int
}

// SessionManager owns the session lifecycle: creation, validation, refresh,
// termination, concurrency capping, and expiry cleanup.
type SessionManager struct {
	db        repository.DBTX
	sessions  repository.SessionRepository
	issuer    TokenIssuer
	sightings SightingRecorder
	activity  ActivityRecorder
	cfg       SessionConfig
	metrics   *metrics.Metrics
	logger    *slog.Logger

	// now is swappable in tests.
	now func() time.Time
}

// NewSessionManager creates a SessionManager. sightings may be nil when no
// identity tracking is wired (e.g. in the janitor); m may be nil.
func NewSessionManager(
	db repository.DBTX,
	sessions repository.SessionRepository,
	issuer TokenIssuer,
	sightings SightingRecorder,
	activity ActivityRecorder,
	cfg SessionConfig,
	m *metrics.Metrics,
	logger *slog.Logger,
) *SessionManager {
	return &SessionManager{
		db:        db,
		sessions:  sessions,
		issuer:    issuer,
		sightings: sightings,
		activity:  activity,
		cfg:       cfg,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

func (m *SessionManager) countEvent(event string, n int64) {
	if m.metrics != nil {
		m.metrics.SessionEvents.WithLabelValues(event).Add(float64(n))
	}
}

// CreateSession issues a token pair, persists the session row, and records
// the identity sighting. The concurrency cap is enforced first: when the user
// is at the cap, the oldest active session is evicted (evict-oldest, never
// reject-new). Eviction and sighting failures are best-effort and never block
// the new session.
func (m *SessionManager) CreateSession(ctx context.Context, userID uuid.UUID, email string, fp domain.DeviceFingerprint, ip, userAgent string) (*domain.SessionCredentials, error) {
	if userID == uuid.Nil {
		return nil, domain.ErrValidation("userId is required")
	}

	if err := m.EnforceConcurrencyCap(ctx, userID, m.cfg.MaxConcurrent); err != nil {
		m.logger.Warn("concurrency cap enforcement failed", "user_id", userID, "error", err)
	}

	now := m.now()
	sessionID := uuid.New()

	sessionToken, err := m.issuer.Issue(userID, sessionID, email, m.cfg.TTL)
	if err != nil {
		return nil, domain.ErrInternal("issue session token", err)
	}
	refreshToken, refreshHash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, domain.ErrInternal("generate refresh token", err)
	}

	session := &domain.Session{
		ID:                sessionID,
		UserID:            userID,
		SessionToken:      sessionToken,
		RefreshTokenHash:  refreshHash,
		DeviceFingerprint: fp,
		IPAddress:         ip,
		UserAgent:         userAgent,
		CreatedAt:         now,
		ExpiresAt:         now.Add(m.cfg.TTL),
		LastActivityAt:    now,
		IsActive:          true,
	}
	if err := m.sessions.Create(ctx, m.db, session); err != nil {
		return nil, domain.ErrInternal("create session", err)
	}

	if m.sightings != nil {
		if _, err := m.sightings.RecordSighting(ctx, userID, fp); err != nil {
			m.logger.Warn("record sighting failed", "user_id", userID, "error", err)
		}
	}
	m.activity.Record(ctx, domain.NewSessionEvent(domain.EventSessionCreated, userID, sessionID, ip))
	m.countEvent("created", 1)

	return &domain.SessionCredentials{
		SessionID:    sessionID,
		SessionToken: sessionToken,
		RefreshToken: refreshToken,
		ExpiresAt:    session.ExpiresAt,
	}, nil
}

// ValidateSession confirms liveness for a bearer token. Unknown tokens return
// (nil, nil). Expiry is lazy: a session found past its TTL is deactivated
// here and nil is returned; no background sweep is required for correctness.
// On success last_activity_at is refreshed (concurrent validations race
// harmlessly, last-writer-wins).
func (m *SessionManager) ValidateSession(ctx context.Context, sessionToken string) (*domain.Session, error) {
	session, err := m.sessions.FindByToken(ctx, m.db, sessionToken)
	if err != nil {
		return nil, domain.ErrInternal("find session", err)
	}
	if session == nil || !session.IsActive {
		return nil, nil
	}

	now := m.now()
	if !now.Before(session.ExpiresAt) {
		if err := m.sessions.Deactivate(ctx, m.db, session.ID); err != nil {
			m.logger.Warn("deactivate expired session failed", "session_id", session.ID, "error", err)
		}
		m.countEvent("expired", 1)
		return nil, nil
	}

	if err := m.sessions.Touch(ctx, m.db, session.ID, now); err != nil {
		m.logger.Warn("touch session failed", "session_id", session.ID, "error", err)
	}
	session.LastActivityAt = now
	m.countEvent("validated", 1)
	return session, nil
}

// RefreshSession rotates the token pair in place (same session id) and
// extends expiry. Rotation is a compare-and-set against the presented refresh
// token: of two concurrent refreshes only one wins, the loser gets
// RefreshConflict.
func (m *SessionManager) RefreshSession(ctx context.Context, refreshToken, ip, userAgent string) (*domain.SessionCredentials, error) {
	refreshHash := auth.HashRefreshToken(refreshToken)

	session, err := m.sessions.FindByRefreshHash(ctx, m.db, refreshHash)
	if err != nil {
		return nil, domain.ErrInternal("find session by refresh token", err)
	}
	if session == nil || !session.IsActive {
		return nil, domain.ErrInvalidToken("unknown refresh token")
	}

	now := m.now()
	if !now.Before(session.ExpiresAt) {
		if err := m.sessions.Deactivate(ctx, m.db, session.ID); err != nil {
			m.logger.Warn("deactivate expired session failed", "session_id", session.ID, "error", err)
		}
		return nil, domain.ErrSessionExpired()
	}

	newSessionToken, err := m.issuer.Issue(session.UserID, session.ID, "", m.cfg.TTL)
	if err != nil {
		return nil, domain.ErrInternal("issue session token", err)
	}
	newRefreshToken, newRefreshHash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, domain.ErrInternal("generate refresh token", err)
	}

	expiresAt := now.Add(m.cfg.TTL)
	rotated, err := m.sessions.RotateTokens(ctx, m.db, session.ID, newSessionToken, newRefreshHash, expiresAt, refreshHash)
	if err != nil {
		return nil, domain.ErrInternal("rotate tokens", err)
	}
	if !rotated {
		return nil, domain.ErrRefreshConflict()
	}

	m.activity.Record(ctx, domain.NewSessionEvent(domain.EventSessionRefreshed, session.UserID, session.ID, ip))
	m.countEvent("refreshed", 1)

	return &domain.SessionCredentials{
		SessionID:    session.ID,
		SessionToken: newSessionToken,
		RefreshToken: newRefreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}

// TerminateSession deactivates a session after checking ownership.
func (m *SessionManager) TerminateSession(ctx context.Context, sessionID, requestingUserID uuid.UUID) error {
	session, err := m.sessions.FindByID(ctx, m.db, sessionID)
	if err != nil {
		return domain.ErrInternal("find session", err)
	}
	if session == nil {
		return domain.ErrNotFound("session", sessionID.String())
	}
	if session.UserID != requestingUserID {
		return domain.ErrForbidden("session belongs to another user")
	}

	if err := m.sessions.Deactivate(ctx, m.db, sessionID); err != nil {
		return domain.ErrInternal("deactivate session", err)
	}
	m.activity.Record(ctx, domain.NewSessionEvent(domain.EventSessionTerminated, session.UserID, sessionID, session.IPAddress))
	m.countEvent("terminated", 1)
	return nil
}

// TerminateAllSessions deactivates every active session for the user, except
// the excluded one when given. Returns the count terminated.
func (m *SessionManager) TerminateAllSessions(ctx context.Context, userID uuid.UUID, exclude *uuid.UUID) (int64, error) {
	count, err := m.sessions.DeactivateAllForUser(ctx, m.db, userID, exclude)
	if err != nil {
		return 0, domain.ErrInternal("deactivate sessions", err)
	}
	if count > 0 {
		m.activity.Record(ctx, domain.NewSessionEvent(domain.EventSessionTerminated, userID, uuid.Nil, ""))
		m.countEvent("terminated", count)
	}
	return count, nil
}

// EnforceConcurrencyCap evicts the single oldest active session (by
// last_activity_at, then created_at) when the user is at or over the cap.
// Policy is evict-oldest, not reject-new. maxSessions <= 0 disables the cap.
func (m *SessionManager) EnforceConcurrencyCap(ctx context.Context, userID uuid.UUID, maxSessions int) error {
	if maxSessions <= 0 {
		return nil
	}
	count, err := m.sessions.CountActive(ctx, m.db, userID)
	if err != nil {
		return err
	}
	if count < maxSessions {
		return nil
	}

	oldest, err := m.sessions.OldestActive(ctx, m.db, userID)
	if err != nil {
		return err
	}
	if oldest == nil {
		return nil
	}
	if err := m.sessions.Deactivate(ctx, m.db, oldest.ID); err != nil {
		return err
	}
	m.countEvent("evicted", 1)
	m.logger.Info("evicted oldest session at concurrency cap",
		"user_id", userID, "session_id", oldest.ID, "max_sessions", maxSessions)
	return nil
}

// CleanupExpiredSessions batch-deactivates sessions past expiry. Safe to run
// concurrently with live traffic; validation already expires lazily.
func (m *SessionManager) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	count, err := m.sessions.DeactivateExpired(ctx, m.db, m.now())
	if err != nil {
		return 0, domain.ErrInternal("cleanup expired sessions", err)
	}
	if count > 0 {
		m.countEvent("expired", count)
	}
	return count, nil
}

// GetUserSessions lists a user's sessions, newest activity first.
func (m *SessionManager) GetUserSessions(ctx context.Context, userID uuid.UUID, filters domain.SessionFilters) ([]domain.Session, error) {
	sessions, err := m.sessions.ListByUser(ctx, m.db, userID, filters)
	if err != nil {
		return nil, domain.ErrInternal("list sessions", err)
	}
	return sessions, nil
}

// GetSessionStats aggregates session counts, scoped to one user when userID
// is non-nil.
func (m *SessionManager) GetSessionStats(ctx context.Context, userID *uuid.UUID) (domain.SessionStats, error) {
	stats, err := m.sessions.Stats(ctx, m.db, userID)
	if err != nil {
		return domain.SessionStats{}, domain.ErrInternal("session stats", err)
	}
	return stats, nil
}
