package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/staffhub/platform/internal/domain"
	"github.com/staffhub/platform/internal/policy"
	"github.com/staffhub/platform/internal/repository"
)

// DefaultHistoryLimit is how many recent fingerprints the detector compares
// against.
const DefaultHistoryLimit = 5

// SuspiciousLoginDetector evaluates a new login's fingerprint against the
// user's recent device history. The verdict is advisory, not an access
// control gate: lookup failures are swallowed and read as "not suspicious"
// (fail-open for detection).
type SuspiciousLoginDetector struct {
	db           repository.DBTX
	identities   repository.IdentityRepository
	historyLimit int
	logger       *slog.Logger
}

// NewSuspiciousLoginDetector creates a detector with the default history
// window.
func NewSuspiciousLoginDetector(db repository.DBTX, identities repository.IdentityRepository, logger *slog.Logger) *SuspiciousLoginDetector {
	return &SuspiciousLoginDetector{
		db:           db,
		identities:   identities,
		historyLimit: DefaultHistoryLimit,
		logger:       logger,
	}
}

// Evaluate compares the current fingerprint against the most recent prior
// one. A first-ever login is never flagged: with no history there is nothing
// to compare against.
func (d *SuspiciousLoginDetector) Evaluate(ctx context.Context, userID uuid.UUID, current domain.DeviceFingerprint) domain.LoginVerdict {
	history, err := d.identities.ListRecentByUser(ctx, d.db, userID, d.historyLimit)
	if err != nil {
		d.logger.Warn("suspicious login lookup failed, treating as not suspicious",
			"user_id", userID, "error", err)
		return domain.LoginVerdict{IsSuspicious: false, RiskLevel: domain.RiskNone}
	}

	previous := make([]domain.DeviceFingerprint, 0, len(history))
	for _, ident := range history {
		previous = append(previous, ident.DeviceFingerprint)
	}

	return policy.EvaluateLoginFlags(current, previous)
}
