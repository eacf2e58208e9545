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

type identityRepo struct{}

// NewIdentityRepository returns a pgx-backed IdentityRepository.
func NewIdentityRepository() IdentityRepository {
	return &identityRepo{}
}

const identityColumns = `id, user_id, fingerprint_hash, device_fingerprint, location,
	risk_score, risk_level, trust_score, is_verified, verification_method, verified_at,
	first_seen, last_seen, activity_count, is_active, is_blocked, blocked_reason, blocked_at`

func (r *identityRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.UserIdentity, error) {
	row := db.QueryRow(ctx, `SELECT `+identityColumns+` FROM user_identities WHERE id = $1`, id)
	return scanIdentity(row)
}

func (r *identityRepo) FindByUserAndHash(ctx context.Context, db DBTX, userID uuid.UUID, fingerprintHash string) (*domain.UserIdentity, error) {
	row := db.QueryRow(ctx, `
		SELECT `+identityColumns+` FROM user_identities
		WHERE user_id = $1 AND fingerprint_hash = $2`, userID, fingerprintHash)
	return scanIdentity(row)
}

func (r *identityRepo) Create(ctx context.Context, db DBTX, ident *domain.UserIdentity) error {
	fpJSON, err := json.Marshal(ident.DeviceFingerprint)
	if err != nil {
		return fmt.Errorf("marshal fingerprint: %w", err)
	}
	_, err = db.Exec(ctx, `
		INSERT INTO user_identities (`+identityColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (user_id, fingerprint_hash) DO UPDATE
		SET last_seen = EXCLUDED.last_seen,
		    activity_count = user_identities.activity_count + 1`,
		ident.ID, ident.UserID, ident.FingerprintHash, fpJSON, ident.Location,
		ident.RiskScore, string(ident.RiskLevel), ident.TrustScore,
		ident.IsVerified, nullIfEmpty(ident.VerificationMethod), ident.VerifiedAt,
		ident.FirstSeen, ident.LastSeen, ident.ActivityCount,
		ident.IsActive, ident.IsBlocked, nullIfEmpty(ident.BlockedReason), ident.BlockedAt)
	if err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

func (r *identityRepo) RecordSighting(ctx context.Context, db DBTX, id uuid.UUID, at time.Time) error {
	_, err := db.Exec(ctx, `
		UPDATE user_identities
		SET last_seen = $1, activity_count = activity_count + 1
		WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("record sighting: %w", err)
	}
	return nil
}

func (r *identityRepo) ListRecentByUser(ctx context.Context, db DBTX, userID uuid.UUID, limit int) ([]domain.UserIdentity, error) {
	rows, err := db.Query(ctx, `
		SELECT `+identityColumns+` FROM user_identities
		WHERE user_id = $1
		ORDER BY last_seen DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var identities []domain.UserIdentity
	for rows.Next() {
		ident, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		identities = append(identities, *ident)
	}
	return identities, rows.Err()
}

func (r *identityRepo) UpdateRiskScore(ctx context.Context, db DBTX, id uuid.UUID, score int, level domain.RiskLevel) error {
	tag, err := db.Exec(ctx, `
		UPDATE user_identities SET risk_score = $1, risk_level = $2 WHERE id = $3`,
		score, string(level), id)
	if err != nil {
		return fmt.Errorf("update risk score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("identity", id.String())
	}
	return nil
}

func (r *identityRepo) Verify(ctx context.Context, db DBTX, id uuid.UUID, method string, at time.Time) error {
	tag, err := db.Exec(ctx, `
		UPDATE user_identities
		SET is_verified = true, verification_method = $1, verified_at = $2
		WHERE id = $3`, method, at, id)
	if err != nil {
		return fmt.Errorf("verify identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("identity", id.String())
	}
	return nil
}

func (r *identityRepo) SetBlocked(ctx context.Context, db DBTX, id uuid.UUID, blocked bool, reason string, at time.Time) error {
	var tag pgconn.CommandTag
	var err error
	if blocked {
		tag, err = db.Exec(ctx, `
			UPDATE user_identities
			SET is_blocked = true, is_active = false, blocked_reason = $1, blocked_at = $2
			WHERE id = $3`, reason, at, id)
	} else {
		tag, err = db.Exec(ctx, `
			UPDATE user_identities
			SET is_blocked = false, is_active = true, blocked_reason = NULL, blocked_at = NULL
			WHERE id = $1`, id)
	}
	if err != nil {
		return fmt.Errorf("set blocked: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("identity", id.String())
	}
	return nil
}

func (r *identityRepo) DeactivateInactive(ctx context.Context, db DBTX, cutoff time.Time) (int64, error) {
	tag, err := db.Exec(ctx, `
		UPDATE user_identities SET is_active = false
		WHERE is_active AND NOT is_blocked AND last_seen < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deactivate inactive identities: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanIdentity(row pgx.Row) (*domain.UserIdentity, error) {
	var ident domain.UserIdentity
	var fpJSON []byte
	var level string
	var method, blockedReason *string
	err := row.Scan(&ident.ID, &ident.UserID, &ident.FingerprintHash, &fpJSON, &ident.Location,
		&ident.RiskScore, &level, &ident.TrustScore, &ident.IsVerified, &method, &ident.VerifiedAt,
		&ident.FirstSeen, &ident.LastSeen, &ident.ActivityCount,
		&ident.IsActive, &ident.IsBlocked, &blockedReason, &ident.BlockedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan identity: %w", err)
	}
	ident.RiskLevel = domain.RiskLevel(level)
	if method != nil {
		ident.VerificationMethod = *method
	}
	if blockedReason != nil {
		ident.BlockedReason = *blockedReason
	}
	if err := json.Unmarshal(fpJSON, &ident.DeviceFingerprint); err != nil {
		return nil, fmt.Errorf("unmarshal fingerprint: %w", err)
	}
	return &ident, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
