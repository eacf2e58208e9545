package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/staffhub/platform/internal/domain"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// SessionRepository provides access to the sessions table. Terminated rows
// are deactivated, never deleted (audit retention).
type SessionRepository interface {
	// Create inserts a new session row.
	Create(ctx context.Context, db DBTX, s *domain.Session) error

	// FindByID returns a session by ID, or nil if absent.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Session, error)

	// FindByToken returns a session by its session token, or nil if absent.
	FindByToken(ctx context.Context, db DBTX, sessionToken string) (*domain.Session, error)

	// FindByRefreshHash returns a session by the SHA-256 hash of its refresh
	// token, or nil if absent.
	FindByRefreshHash(ctx context.Context, db DBTX, refreshHash string) (*domain.Session, error)

	// Touch updates last_activity_at. Concurrent touches race harmlessly
	// (last-writer-wins).
	Touch(ctx context.Context, db DBTX, id uuid.UUID, at time.Time) error

	// Deactivate marks a session inactive. Idempotent.
	Deactivate(ctx context.Context, db DBTX, id uuid.UUID) error

	// DeactivateAllForUser deactivates every active session for the user,
	// optionally excluding one. Returns the count deactivated.
	DeactivateAllForUser(ctx context.Context, db DBTX, userID uuid.UUID, exclude *uuid.UUID) (int64, error)

	// RotateTokens replaces the token pair and extends expiry in place,
	// compare-and-set against the previous refresh token hash. Returns false
	// when a concurrent refresh already rotated the pair.
	RotateTokens(ctx context.Context, db DBTX, id uuid.UUID, sessionToken, refreshHash string, expiresAt time.Time, prevRefreshHash string) (bool, error)

	// CountActive returns the number of live (active, unexpired) sessions
	// for a user.
	CountActive(ctx context.Context, db DBTX, userID uuid.UUID) (int, error)

	// OldestActive returns the live session with the earliest
	// last_activity_at (created_at, then id, break ties), or nil. Rows past
	// expiry are never candidates; lazy expiry may leave them flagged active.
	OldestActive(ctx context.Context, db DBTX, userID uuid.UUID) (*domain.Session, error)

	// ListByUser returns the user's sessions, newest activity first.
	ListByUser(ctx context.Context, db DBTX, userID uuid.UUID, filters domain.SessionFilters) ([]domain.Session, error)

	// DeactivateExpired batch-deactivates active sessions past their expiry.
	DeactivateExpired(ctx context.Context, db DBTX, now time.Time) (int64, error)

	// Stats aggregates session counts, scoped to one user when userID is
	// non-nil.
	Stats(ctx context.Context, db DBTX, userID *uuid.UUID) (domain.SessionStats, error)
}

// IdentityRepository provides access to the user_identities table.
type IdentityRepository interface {
	// FindByID returns an identity by ID, or nil.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.UserIdentity, error)

	// FindByUserAndHash returns the identity for a (user, fingerprint hash)
	// pair, or nil.
	FindByUserAndHash(ctx context.Context, db DBTX, userID uuid.UUID, fingerprintHash string) (*domain.UserIdentity, error)

	// Create inserts a new identity row.
	Create(ctx context.Context, db DBTX, id *domain.UserIdentity) error

	// RecordSighting bumps last_seen and activity_count for an existing
	// identity. Concurrent sightings race harmlessly.
	RecordSighting(ctx context.Context, db DBTX, id uuid.UUID, at time.Time) error

	// ListRecentByUser returns the user's identities ordered by last_seen
	// descending, up to limit.
	ListRecentByUser(ctx context.Context, db DBTX, userID uuid.UUID, limit int) ([]domain.UserIdentity, error)

	// UpdateRiskScore persists a recomputed score and level atomically.
	UpdateRiskScore(ctx context.Context, db DBTX, id uuid.UUID, score int, level domain.RiskLevel) error

	// Verify marks the identity verified. Idempotent beyond timestamp refresh.
	Verify(ctx context.Context, db DBTX, id uuid.UUID, method string, at time.Time) error

	// SetBlocked toggles is_blocked and is_active together.
	SetBlocked(ctx context.Context, db DBTX, id uuid.UUID, blocked bool, reason string, at time.Time) error

	// DeactivateInactive deactivates identities not seen since the cutoff.
	// Rows are never deleted.
	DeactivateInactive(ctx context.Context, db DBTX, cutoff time.Time) (int64, error)
}

// EmployeeRepository provides access to employee credential rows. The wider
// HR surface (payroll, leave, loans) lives in other services; this backend
// only needs the credential adapter for login.
type EmployeeRepository interface {
	// FindByEmail returns an employee by email, or nil.
	FindByEmail(ctx context.Context, db DBTX, email string) (*domain.Employee, error)

	// FindByID returns an employee by ID, or nil.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Employee, error)

	// Create inserts a new employee.
	Create(ctx context.Context, db DBTX, e *domain.Employee) error

	// UpdatePasswordHash replaces the stored bcrypt hash.
	UpdatePasswordHash(ctx context.Context, db DBTX, email, hash string) error
}

// OutboxRepository provides access to the activity_outbox table.
type OutboxRepository interface {
	// Insert writes an activity event, usually in the same transaction as
	// the change it describes.
	Insert(ctx context.Context, db DBTX, evt domain.ActivityEvent) error

	// FetchUnpublished returns unpublished events for the outbox poller.
	FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]domain.ActivityEvent, []int64, error)

	// MarkPublished removes published events by sequence ID.
	MarkPublished(ctx context.Context, db DBTX, ids []int64) error
}
