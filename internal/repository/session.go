package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/staffhub/platform/internal/domain"
)

type sessionRepo struct{}

// NewSessionRepository returns a pgx-backed SessionRepository.
func NewSessionRepository() SessionRepository {
	return &sessionRepo{}
}

const sessionColumns = `id, user_id, session_token, refresh_token_hash, device_fingerprint,
	ip_address, user_agent, created_at, expires_at, last_activity_at, is_active`

func (r *sessionRepo) Create(ctx context.Context, db DBTX, s *domain.Session) error {
	fpJSON, err := json.Marshal(s.DeviceFingerprint)
	if err != nil {
		return fmt.Errorf("marshal fingerprint: %w", err)
	}
	_, err = db.Exec(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID, s.UserID, s.SessionToken, s.RefreshTokenHash, fpJSON,
		s.IPAddress, s.UserAgent, s.CreatedAt, s.ExpiresAt, s.LastActivityAt, s.IsActive)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *sessionRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Session, error) {
	row := db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

func (r *sessionRepo) FindByToken(ctx context.Context, db DBTX, sessionToken string) (*domain.Session, error) {
	row := db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_token = $1`, sessionToken)
	return scanSession(row)
}

func (r *sessionRepo) FindByRefreshHash(ctx context.Context, db DBTX, refreshHash string) (*domain.Session, error) {
	row := db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE refresh_token_hash = $1`, refreshHash)
	return scanSession(row)
}

func (r *sessionRepo) Touch(ctx context.Context, db DBTX, id uuid.UUID, at time.Time) error {
	_, err := db.Exec(ctx, `UPDATE sessions SET last_activity_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (r *sessionRepo) Deactivate(ctx context.Context, db DBTX, id uuid.UUID) error {
	_, err := db.Exec(ctx, `UPDATE sessions SET is_active = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	return nil
}

func (r *sessionRepo) DeactivateAllForUser(ctx context.Context, db DBTX, userID uuid.UUID, exclude *uuid.UUID) (int64, error) {
	var tag pgconn.CommandTag
	var err error
	if exclude != nil {
		tag, err = db.Exec(ctx, `
			UPDATE sessions SET is_active = false
			WHERE user_id = $1 AND is_active AND id <> $2`, userID, *exclude)
	} else {
		tag, err = db.Exec(ctx, `
			UPDATE sessions SET is_active = false
			WHERE user_id = $1 AND is_active`, userID)
	}
	if err != nil {
		return 0, fmt.Errorf("deactivate sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RotateTokens is the compare-and-set for refresh rotation: the previous
// refresh token hash is part of the WHERE clause, so of two concurrent
// refreshes only one can win.
func (r *sessionRepo) RotateTokens(ctx context.Context, db DBTX, id uuid.UUID, sessionToken, refreshHash string, expiresAt time.Time, prevRefreshHash string) (bool, error) {
	tag, err := db.Exec(ctx, `
		UPDATE sessions
		SET session_token = $1, refresh_token_hash = $2, expires_at = $3, last_activity_at = now()
		WHERE id = $4 AND refresh_token_hash = $5 AND is_active`,
		sessionToken, refreshHash, expiresAt, id, prevRefreshHash)
	if err != nil {
		return false, fmt.Errorf("rotate tokens: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *sessionRepo) CountActive(ctx context.Context, db DBTX, userID uuid.UUID) (int, error) {
	var count int
	err := db.QueryRow(ctx, `
		SELECT COUNT(*) FROM sessions
		WHERE user_id = $1 AND is_active AND expires_at > now()`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active sessions: %w", err)
	}
	return count, nil
}

func (r *sessionRepo) OldestActive(ctx context.Context, db DBTX, userID uuid.UUID) (*domain.Session, error) {
	row := db.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = $1 AND is_active AND expires_at > now()
		ORDER BY last_activity_at ASC, created_at ASC, id ASC
		LIMIT 1`, userID)
	return scanSession(row)
}

func (r *sessionRepo) ListByUser(ctx context.Context, db DBTX, userID uuid.UUID, filters domain.SessionFilters) ([]domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = $1`
	args := []interface{}{userID}
	argIdx := 2

	if filters.ActiveOnly {
		query += ` AND is_active AND expires_at > now()`
	}
	if filters.IPAddress != "" {
		query += fmt.Sprintf(` AND ip_address = $%d`, argIdx)
		args = append(args, filters.IPAddress)
		argIdx++
	}
	query += ` ORDER BY last_activity_at DESC`
	if filters.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, filters.Limit)
	}

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		s, err := scanSessionRow(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

func (r *sessionRepo) DeactivateExpired(ctx context.Context, db DBTX, now time.Time) (int64, error) {
	tag, err := db.Exec(ctx, `
		UPDATE sessions SET is_active = false
		WHERE is_active AND expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("deactivate expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *sessionRepo) Stats(ctx context.Context, db DBTX, userID *uuid.UUID) (domain.SessionStats, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_active AND expires_at > now()),
		       COUNT(DISTINCT device_fingerprint->'metadata'->>'fingerprint_hash')
		FROM sessions`
	args := []interface{}{}
	if userID != nil {
		query += ` WHERE user_id = $1`
		args = append(args, *userID)
	}

	var stats domain.SessionStats
	err := db.QueryRow(ctx, query, args...).Scan(&stats.TotalSessions, &stats.ActiveSessions, &stats.UniqueDevices)
	if err != nil {
		return domain.SessionStats{}, fmt.Errorf("session stats: %w", err)
	}
	return stats, nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session
	var fpJSON []byte
	err := row.Scan(&s.ID, &s.UserID, &s.SessionToken, &s.RefreshTokenHash, &fpJSON,
		&s.IPAddress, &s.UserAgent, &s.CreatedAt, &s.ExpiresAt, &s.LastActivityAt, &s.IsActive)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if err := json.Unmarshal(fpJSON, &s.DeviceFingerprint); err != nil {
		return nil, fmt.Errorf("unmarshal fingerprint: %w", err)
	}
	return &s, nil
}

func scanSessionRow(rows pgx.Rows) (*domain.Session, error) {
	return scanSession(rows)
}
