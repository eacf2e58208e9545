package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/staffhub/platform/internal/domain"
	"github.com/staffhub/platform/internal/policy"
	"github.com/staffhub/platform/internal/repository"
)

// AutoBlockThreshold is the persistent risk score at which an identity is
// blocked without operator action.
const AutoBlockThreshold = 80

// IdentityService owns UserIdentity lifecycle: sightings, risk score updates,
// verification, block/unblock, and inactivity cleanup.
type IdentityService struct {
	db         repository.DBTX
	identities repository.IdentityRepository
	activity   ActivityRecorder
	logger     *slog.Logger

	now func() time.Time
}

// NewIdentityService creates an IdentityService.
func NewIdentityService(db repository.DBTX, identities repository.IdentityRepository, activity ActivityRecorder, logger *slog.Logger) *IdentityService {
	return &IdentityService{
		db:         db,
		identities: identities,
		activity:   activity,
		logger:     logger,
		now:        time.Now,
	}
}

// RecordSighting finds or creates the identity for a (user, fingerprint
// hash) pair. First sighting initializes riskScore=0, trustScore=100,
// isActive=true; later sightings bump last_seen and activity_count.
// Concurrent sightings from the same device race harmlessly.
func (s *IdentityService) RecordSighting(ctx context.Context, userID uuid.UUID, fp domain.DeviceFingerprint) (*domain.UserIdentity, error) {
	hash := fp.Metadata.FingerprintHash
	existing, err := s.identities.FindByUserAndHash(ctx, s.db, userID, hash)
	if err != nil {
		return nil, domain.ErrInternal("find identity", err)
	}

	now := s.now()
	if existing != nil {
		if err := s.identities.RecordSighting(ctx, s.db, existing.ID, now); err != nil {
			return nil, domain.ErrInternal("record sighting", err)
		}
		existing.LastSeen = now
		existing.ActivityCount++
		return existing, nil
	}

	ident := &domain.UserIdentity{
		ID:                uuid.New(),
		UserID:            userID,
		FingerprintHash:   hash,
		DeviceFingerprint: fp,
		Location:          fp.Network.Country,
		RiskScore:         0,
		RiskLevel:         domain.RiskLow,
		TrustScore:        100,
		FirstSeen:         now,
		LastSeen:          now,
		ActivityCount:     1,
		IsActive:          true,
	}
	if err := s.identities.Create(ctx, s.db, ident); err != nil {
		return nil, domain.ErrInternal("create identity", err)
	}
	return ident, nil
}

// UpdateRiskScore clamps the new score to [0,100], recomputes the risk level
// from the persistent-scale thresholds, and persists both together.
func (s *IdentityService) UpdateRiskScore(ctx context.Context, identityID uuid.UUID, newScore int) error {
	score := domain.ClampScore(newScore)
	level := policy.RiskLevelFor(score)
	if err := s.identities.UpdateRiskScore(ctx, s.db, identityID, score, level); err != nil {
		return err
	}
	return nil
}

// RaiseRisk adds delta to the identity's risk score and auto-blocks when the
// result crosses the threshold. Used by the login flow when a suspicious
// verdict comes back high.
func (s *IdentityService) RaiseRisk(ctx context.Context, ident *domain.UserIdentity, delta int, reason string) error {
	score := domain.ClampScore(ident.RiskScore + delta)
	if err := s.UpdateRiskScore(ctx, ident.ID, score); err != nil {
		return err
	}
	if score >= AutoBlockThreshold && !ident.IsBlocked {
		return s.Block(ctx, ident.ID, reason)
	}
	return nil
}

// Verify marks the identity verified. Idempotent: re-verifying only
// refreshes the timestamp.
func (s *IdentityService) Verify(ctx context.Context, identityID uuid.UUID, method string) error {
	if err := s.identities.Verify(ctx, s.db, identityID, method, s.now()); err != nil {
		return err
	}
	s.activity.Record(ctx, domain.NewIdentityEvent(domain.EventIdentityVerified, identityID, method))
	return nil
}

// Block marks the identity blocked and inactive. Blocking does not cascade
// to sessions already issued under the identity; callers needing that
// guarantee terminate the user's sessions separately.
func (s *IdentityService) Block(ctx context.Context, identityID uuid.UUID, reason string) error {
	if err := s.identities.SetBlocked(ctx, s.db, identityID, true, reason, s.now()); err != nil {
		return err
	}
	s.activity.Record(ctx, domain.NewIdentityEvent(domain.EventIdentityBlocked, identityID, reason))
	s.logger.Info("identity blocked", "identity_id", identityID, "reason", reason)
	return nil
}

// Unblock reactivates the identity and clears the block reason and timestamp.
func (s *IdentityService) Unblock(ctx context.Context, identityID uuid.UUID) error {
	if err := s.identities.SetBlocked(ctx, s.db, identityID, false, "", s.now()); err != nil {
		return err
	}
	s.activity.Record(ctx, domain.NewIdentityEvent(domain.EventIdentityUnblocked, identityID, ""))
	return nil
}

// GetIdentity returns an identity by ID.
func (s *IdentityService) GetIdentity(ctx context.Context, identityID uuid.UUID) (*domain.UserIdentity, error) {
	ident, err := s.identities.FindByID(ctx, s.db, identityID)
	if err != nil {
		return nil, domain.ErrInternal("find identity", err)
	}
	if ident == nil {
		return nil, domain.ErrNotFound("identity", identityID.String())
	}
	return ident, nil
}

// ListUserIdentities returns the user's identities, most recently seen first.
func (s *IdentityService) ListUserIdentities(ctx context.Context, userID uuid.UUID, limit int) ([]domain.UserIdentity, error) {
	identities, err := s.identities.ListRecentByUser(ctx, s.db, userID, limit)
	if err != nil {
		return nil, domain.ErrInternal("list identities", err)
	}
	return identities, nil
}

// CleanupInactive deactivates identities not seen for the given number of
// days. Rows are retained for audit, never deleted.
func (s *IdentityService) CleanupInactive(ctx context.Context, daysInactive int) (int64, error) {
	cutoff := s.now().AddDate(0, 0, -daysInactive)
	count, err := s.identities.DeactivateInactive(ctx, s.db, cutoff)
	if err != nil {
		return 0, domain.ErrInternal("cleanup inactive identities", err)
	}
	return count, nil
}
