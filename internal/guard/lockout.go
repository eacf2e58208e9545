package guard

import (
	"context"
	"log/slog"
	"time"

	"github.com/staffhub/platform/internal/domain"
	"github.com/staffhub/platform/internal/repository"
)

const (
	MaxAttempts   = 5
	LockoutWindow = 15 * time.Minute
)

// Lockout throttles credential guessing against the login_attempts table.
// Storage errors fail open: a guard outage must never lock everyone out.
type Lockout struct {
	db     repository.DBTX
	logger *slog.Logger
}

// NewLockout creates a database-backed login lockout guard.
func NewLockout(db repository.DBTX, logger *slog.Logger) *Lockout {
	return &Lockout{db: db, logger: logger}
}

// RecordAttempt inserts a login attempt row. Best-effort.
func (l *Lockout) RecordAttempt(ctx context.Context, email, ip string, success bool) {
	_, err := l.db.Exec(ctx, `
		INSERT INTO login_attempts (email, ip_address, success)
		VALUES ($1, $2, $3)`,
		email, ip, success)
	if err != nil {
		l.logger.Warn("record login attempt failed", "email", email, "error", err)
	}
}

// CheckLocked returns ErrAccountLocked when the account has MaxAttempts or
// more failed logins within the lockout window. A successful login resets
// the counter: only failures after the last success count.
func (l *Lockout) CheckLocked(ctx context.Context, email string) error {
	var count int
	err := l.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM login_attempts
		WHERE email = $1 AND success = false
		  AND created_at > $2
		  AND created_at > COALESCE(
			(SELECT MAX(created_at) FROM login_attempts WHERE email = $1 AND success), '-infinity')`,
		email, time.Now().Add(-LockoutWindow)).Scan(&count)
	if err != nil {
		return nil // fail open on DB error, don't block login
	}
	if count >= MaxAttempts {
		return domain.ErrAccountLocked("too many failed login attempts, try again later")
	}
	return nil
}
