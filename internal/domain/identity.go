package domain

import (
	"time"

	"github.com/google/uuid"
)

// RiskLevel classifies accumulated device risk.
type RiskLevel string

const (
	RiskNone     RiskLevel = "none"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// AtLeast reports whether l is at or above the given level.
func (l RiskLevel) AtLeast(min RiskLevel) bool {
	return l.rank() >= min.rank()
}

func (l RiskLevel) rank() int {
	switch l {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	default:
		return 0
	}
}

// UserIdentity is the durable record of one (user, device-fingerprint) pair
// and its accumulated risk/trust state. Re-seeing the same device updates the
// record; the (user_id, fingerprint_hash) pair is unique. Blocking implies
// deactivation, but never cascades to sessions already issued.
type UserIdentity struct {
	ID                 uuid.UUID         `json:"id"`
	UserID             uuid.UUID         `json:"user_id"`
	FingerprintHash    string            `json:"fingerprint_hash"`
	DeviceFingerprint  DeviceFingerprint `json:"device_fingerprint"`
	Location           string            `json:"location,omitempty"`
	RiskScore          int               `json:"risk_score"`  // 0-100
	RiskLevel          RiskLevel         `json:"risk_level"`
	TrustScore         int               `json:"trust_score"` // 0-100, starts at 100
	IsVerified         bool              `json:"is_verified"`
	VerificationMethod string            `json:"verification_method,omitempty"`
	VerifiedAt         *time.Time        `json:"verified_at,omitempty"`
	FirstSeen          time.Time         `json:"first_seen"`
	LastSeen           time.Time         `json:"last_seen"`
	ActivityCount      int               `json:"activity_count"`
	IsActive           bool              `json:"is_active"`
	IsBlocked          bool              `json:"is_blocked"`
	BlockedReason      string            `json:"blocked_reason,omitempty"`
	BlockedAt          *time.Time        `json:"blocked_at,omitempty"`
}

// LoginVerdict is the one-shot advisory result of comparing a login's
// fingerprint against the user's recent history. Its risk level comes from
// the flag-sum scale, which is distinct from the persistent 0-100 identity
// score.
type LoginVerdict struct {
	IsSuspicious bool      `json:"is_suspicious"`
	Flags        []string  `json:"flags,omitempty"`
	RiskLevel    RiskLevel `json:"risk_level"`
}
