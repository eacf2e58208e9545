package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/staffhub/platform/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type identityFixture struct {
	svc      *IdentityService
	repo     *fakeIdentityRepo
	recorder *capturingRecorder
	clock    *time.Time
}

func newIdentityFixture(t *testing.T) *identityFixture {
	t.Helper()
	repo := newFakeIdentityRepo()
	recorder := &capturingRecorder{}
	svc := NewIdentityService(nil, repo, recorder, testLogger())

	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	clock := &start
	svc.now = func() time.Time { return *clock }

	return &identityFixture{svc: svc, repo: repo, recorder: recorder, clock: clock}
}

func TestRecordSighting_FirstSeen(t *testing.T) {
	ctx := context.Background()
	f := newIdentityFixture(t)
	userID := uuid.New()

	ident, err := f.svc.RecordSighting(ctx, userID, testFingerprint("fp-1"))
	require.NoError(t, err)
	require.NotNil(t, ident)

	assert.Equal(t, 0, ident.RiskScore)
	assert.Equal(t, domain.RiskLow, ident.RiskLevel)
	assert.Equal(t, 100, ident.TrustScore)
	assert.Equal(t, 1, ident.ActivityCount)
	assert.True(t, ident.IsActive)
	assert.False(t, ident.IsBlocked)
	assert.Equal(t, ident.FirstSeen, ident.LastSeen)
	assert.Equal(t, "Germany", ident.Location)
}

func TestRecordSighting_ReturningDevice(t *testing.T) {
	ctx := context.Background()
	f := newIdentityFixture(t)
	userID := uuid.New()

	first, err := f.svc.RecordSighting(ctx, userID, testFingerprint("fp-1"))
	require.NoError(t, err)

	*f.clock = f.clock.Add(time.Hour)

	again, err := f.svc.RecordSighting(ctx, userID, testFingerprint("fp-1"))
	require.NoError(t, err)

	// Same row, bumped.
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, 2, again.ActivityCount)
	assert.True(t, again.LastSeen.After(first.LastSeen))

	// A different device for the same user gets its own row.
	other, err := f.svc.RecordSighting(ctx, userID, testFingerprint("fp-2"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestUpdateRiskScore_ClampAndLevel(t *testing.T) {
	ctx := context.Background()
	f := newIdentityFixture(t)
	ident, err := f.svc.RecordSighting(ctx, uuid.New(), testFingerprint("fp-1"))
	require.NoError(t, err)

	cases := []struct {
		score     int
		wantScore int
		wantLevel domain.RiskLevel
	}{
		{score: -10, wantScore: 0, wantLevel: domain.RiskLow},
		{score: 29, wantScore: 29, wantLevel: domain.RiskLow},
		{score: 30, wantScore: 30, wantLevel: domain.RiskMedium},
		{score: 60, wantScore: 60, wantLevel: domain.RiskHigh},
		{score: 80, wantScore: 80, wantLevel: domain.RiskCritical},
		{score: 150, wantScore: 100, wantLevel: domain.RiskCritical},
	}
	for _, tc := range cases {
		require.NoError(t, f.svc.UpdateRiskScore(ctx, ident.ID, tc.score))
		got := f.repo.identities[ident.ID]
		assert.Equal(t, tc.wantScore, got.RiskScore)
		assert.Equal(t, tc.wantLevel, got.RiskLevel)
	}
}

func TestRaiseRisk_AutoBlocks(t *testing.T) {
	ctx := context.Background()
	f := newIdentityFixture(t)
	ident, err := f.svc.RecordSighting(ctx, uuid.New(), testFingerprint("fp-1"))
	require.NoError(t, err)

	require.NoError(t, f.svc.RaiseRisk(ctx, ident, 25, "suspicious login pattern"))
	got := f.repo.identities[ident.ID]
	assert.Equal(t, 25, got.RiskScore)
	assert.False(t, got.IsBlocked)

	got.RiskScore = 60
	fresh, err := f.svc.GetIdentity(ctx, ident.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.RaiseRisk(ctx, fresh, 25, "suspicious login pattern"))
	got = f.repo.identities[ident.ID]
	assert.Equal(t, 85, got.RiskScore)
	assert.True(t, got.IsBlocked)
	assert.False(t, got.IsActive)
	assert.Contains(t, f.recorder.types(), string(domain.EventIdentityBlocked))
}

func TestVerify_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newIdentityFixture(t)
	ident, err := f.svc.RecordSighting(ctx, uuid.New(), testFingerprint("fp-1"))
	require.NoError(t, err)

	require.NoError(t, f.svc.Verify(ctx, ident.ID, "email_otp"))
	first := *f.repo.identities[ident.ID].VerifiedAt

	*f.clock = f.clock.Add(time.Hour)
	require.NoError(t, f.svc.Verify(ctx, ident.ID, "email_otp"))

	got := f.repo.identities[ident.ID]
	assert.True(t, got.IsVerified)
	assert.Equal(t, "email_otp", got.VerificationMethod)
	assert.True(t, got.VerifiedAt.After(first))
}

func TestBlockUnblock(t *testing.T) {
	ctx := context.Background()
	f := newIdentityFixture(t)
	ident, err := f.svc.RecordSighting(ctx, uuid.New(), testFingerprint("fp-1"))
	require.NoError(t, err)

	require.NoError(t, f.svc.Block(ctx, ident.ID, "stolen device reported"))
	got := f.repo.identities[ident.ID]
	assert.True(t, got.IsBlocked)
	assert.False(t, got.IsActive)
	assert.Equal(t, "stolen device reported", got.BlockedReason)
	require.NotNil(t, got.BlockedAt)

	require.NoError(t, f.svc.Unblock(ctx, ident.ID))
	got = f.repo.identities[ident.ID]
	assert.False(t, got.IsBlocked)
	assert.True(t, got.IsActive)
	assert.Empty(t, got.BlockedReason)
	assert.Nil(t, got.BlockedAt)

	assert.Contains(t, f.recorder.types(), string(domain.EventIdentityBlocked))
	assert.Contains(t, f.recorder.types(), string(domain.EventIdentityUnblocked))
}

func TestGetIdentity_NotFound(t *testing.T) {
	f := newIdentityFixture(t)

	_, err := f.svc.GetIdentity(context.Background(), uuid.New())
	var appErr *domain.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestCleanupInactive_SkipsBlocked(t *testing.T) {
	ctx := context.Background()
	f := newIdentityFixture(t)
	userID := uuid.New()

	stale, err := f.svc.RecordSighting(ctx, userID, testFingerprint("fp-stale"))
	require.NoError(t, err)
	blocked, err := f.svc.RecordSighting(ctx, userID, testFingerprint("fp-blocked"))
	require.NoError(t, err)
	require.NoError(t, f.svc.Block(ctx, blocked.ID, "fraud"))

	*f.clock = f.clock.Add(120 * 24 * time.Hour)

	fresh, err := f.svc.RecordSighting(ctx, userID, testFingerprint("fp-fresh"))
	require.NoError(t, err)

	count, err := f.svc.CleanupInactive(ctx, 90)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	assert.False(t, f.repo.identities[stale.ID].IsActive)
	// Blocked rows keep their state, they are already inactive.
	assert.True(t, f.repo.identities[blocked.ID].IsBlocked)
	assert.True(t, f.repo.identities[fresh.ID].IsActive)
}
