package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/staffhub/platform/internal/domain"
	"github.com/staffhub/platform/internal/provider"
	"github.com/staffhub/platform/internal/repository"
)

// In-memory repository fakes. The db argument is ignored; services under test
// are constructed with a nil DBTX.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSessionRepo struct {
	sessions map[uuid.UUID]*domain.Session
	failWith error

	// now mirrors the SQL repo's use of now() in liveness filters; fixtures
	// point it at their clock.
	now func() time.Time

	// denyRotation makes the next RotateTokens lose its compare-and-set, as
	// if a concurrent refresh rotated the pair first.
	denyRotation bool
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[uuid.UUID]*domain.Session), now: time.Now}
}

func (r *fakeSessionRepo) live(s *domain.Session) bool {
	return s.IsActive && r.now().Before(s.ExpiresAt)
}

func (r *fakeSessionRepo) Create(_ context.Context, _ repository.DBTX, s *domain.Session) error {
	if r.failWith != nil {
		return r.failWith
	}
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *fakeSessionRepo) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.Session, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSessionRepo) FindByToken(_ context.Context, _ repository.DBTX, token string) (*domain.Session, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	for _, s := range r.sessions {
		if s.SessionToken == token {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeSessionRepo) FindByRefreshHash(_ context.Context, _ repository.DBTX, hash string) (*domain.Session, error) {
	for _, s := range r.sessions {
		if s.RefreshTokenHash == hash {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeSessionRepo) Touch(_ context.Context, _ repository.DBTX, id uuid.UUID, at time.Time) error {
	if s, ok := r.sessions[id]; ok {
		s.LastActivityAt = at
	}
	return nil
}

func (r *fakeSessionRepo) Deactivate(_ context.Context, _ repository.DBTX, id uuid.UUID) error {
	if s, ok := r.sessions[id]; ok {
		s.IsActive = false
	}
	return nil
}

func (r *fakeSessionRepo) DeactivateAllForUser(_ context.Context, _ repository.DBTX, userID uuid.UUID, exclude *uuid.UUID) (int64, error) {
	var n int64
	for _, s := range r.sessions {
		if s.UserID != userID || !s.IsActive {
			continue
		}
		if exclude != nil && s.ID == *exclude {
			continue
		}
		s.IsActive = false
		n++
	}
	return n, nil
}

func (r *fakeSessionRepo) RotateTokens(_ context.Context, _ repository.DBTX, id uuid.UUID, sessionToken, refreshHash string, expiresAt time.Time, prevRefreshHash string) (bool, error) {
	if r.denyRotation {
		r.denyRotation = false
		return false, nil
	}
	s, ok := r.sessions[id]
	if !ok || !s.IsActive || s.RefreshTokenHash != prevRefreshHash {
		return false, nil
	}
	s.SessionToken = sessionToken
	s.RefreshTokenHash = refreshHash
	s.ExpiresAt = expiresAt
	s.LastActivityAt = time.Now()
	return true, nil
}

func (r *fakeSessionRepo) CountActive(_ context.Context, _ repository.DBTX, userID uuid.UUID) (int, error) {
	n := 0
	for _, s := range r.sessions {
		if s.UserID == userID && r.live(s) {
			n++
		}
	}
	return n, nil
}

func (r *fakeSessionRepo) OldestActive(_ context.Context, _ repository.DBTX, userID uuid.UUID) (*domain.Session, error) {
	var active []*domain.Session
	for _, s := range r.sessions {
		if s.UserID == userID && r.live(s) {
			active = append(active, s)
		}
	}
	if len(active) == 0 {
		return nil, nil
	}
	sort.Slice(active, func(i, j int) bool {
		a, b := active[i], active[j]
		if !a.LastActivityAt.Equal(b.LastActivityAt) {
			return a.LastActivityAt.Before(b.LastActivityAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
	cp := *active[0]
	return &cp, nil
}

func (r *fakeSessionRepo) ListByUser(_ context.Context, _ repository.DBTX, userID uuid.UUID, filters domain.SessionFilters) ([]domain.Session, error) {
	var out []domain.Session
	for _, s := range r.sessions {
		if s.UserID != userID {
			continue
		}
		if filters.ActiveOnly && !s.IsActive {
			continue
		}
		if filters.IPAddress != "" && s.IPAddress != filters.IPAddress {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}

func (r *fakeSessionRepo) DeactivateExpired(_ context.Context, _ repository.DBTX, now time.Time) (int64, error) {
	var n int64
	for _, s := range r.sessions {
		if s.IsActive && !now.Before(s.ExpiresAt) {
			s.IsActive = false
			n++
		}
	}
	return n, nil
}

func (r *fakeSessionRepo) Stats(_ context.Context, _ repository.DBTX, userID *uuid.UUID) (domain.SessionStats, error) {
	var stats domain.SessionStats
	devices := make(map[string]bool)
	for _, s := range r.sessions {
		if userID != nil && s.UserID != *userID {
			continue
		}
		stats.TotalSessions++
		if s.IsActive {
			stats.ActiveSessions++
		}
		devices[s.DeviceFingerprint.Metadata.FingerprintHash] = true
	}
	stats.UniqueDevices = len(devices)
	return stats, nil
}

type fakeIdentityRepo struct {
	identities map[uuid.UUID]*domain.UserIdentity
	failWith   error
}

func newFakeIdentityRepo() *fakeIdentityRepo {
	return &fakeIdentityRepo{identities: make(map[uuid.UUID]*domain.UserIdentity)}
}

func (r *fakeIdentityRepo) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.UserIdentity, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	ident, ok := r.identities[id]
	if !ok {
		return nil, nil
	}
	cp := *ident
	return &cp, nil
}

func (r *fakeIdentityRepo) FindByUserAndHash(_ context.Context, _ repository.DBTX, userID uuid.UUID, hash string) (*domain.UserIdentity, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	for _, ident := range r.identities {
		if ident.UserID == userID && ident.FingerprintHash == hash {
			cp := *ident
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeIdentityRepo) Create(_ context.Context, _ repository.DBTX, ident *domain.UserIdentity) error {
	if r.failWith != nil {
		return r.failWith
	}
	cp := *ident
	r.identities[ident.ID] = &cp
	return nil
}

func (r *fakeIdentityRepo) RecordSighting(_ context.Context, _ repository.DBTX, id uuid.UUID, at time.Time) error {
	if ident, ok := r.identities[id]; ok {
		ident.LastSeen = at
		ident.ActivityCount++
	}
	return nil
}

func (r *fakeIdentityRepo) ListRecentByUser(_ context.Context, _ repository.DBTX, userID uuid.UUID, limit int) ([]domain.UserIdentity, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	var out []domain.UserIdentity
	for _, ident := range r.identities {
		if ident.UserID == userID {
			out = append(out, *ident)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastSeen.After(out[j].LastSeen)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeIdentityRepo) UpdateRiskScore(_ context.Context, _ repository.DBTX, id uuid.UUID, score int, level domain.RiskLevel) error {
	if ident, ok := r.identities[id]; ok {
		ident.RiskScore = score
		ident.RiskLevel = level
	}
	return nil
}

func (r *fakeIdentityRepo) Verify(_ context.Context, _ repository.DBTX, id uuid.UUID, method string, at time.Time) error {
	if ident, ok := r.identities[id]; ok {
		ident.IsVerified = true
		ident.VerificationMethod = method
		ident.VerifiedAt = &at
	}
	return nil
}

func (r *fakeIdentityRepo) SetBlocked(_ context.Context, _ repository.DBTX, id uuid.UUID, blocked bool, reason string, at time.Time) error {
	ident, ok := r.identities[id]
	if !ok {
		return nil
	}
	ident.IsBlocked = blocked
	ident.IsActive = !blocked
	if blocked {
		ident.BlockedReason = reason
		ident.BlockedAt = &at
	} else {
		ident.BlockedReason = ""
		ident.BlockedAt = nil
	}
	return nil
}

func (r *fakeIdentityRepo) DeactivateInactive(_ context.Context, _ repository.DBTX, cutoff time.Time) (int64, error) {
	var n int64
	for _, ident := range r.identities {
		if ident.IsActive && !ident.IsBlocked && ident.LastSeen.Before(cutoff) {
			ident.IsActive = false
			n++
		}
	}
	return n, nil
}

type fakeEmployeeRepo struct {
	employees map[string]*domain.Employee
}

func newFakeEmployeeRepo() *fakeEmployeeRepo {
	return &fakeEmployeeRepo{employees: make(map[string]*domain.Employee)}
}

func (r *fakeEmployeeRepo) FindByEmail(_ context.Context, _ repository.DBTX, email string) (*domain.Employee, error) {
	e, ok := r.employees[email]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r *fakeEmployeeRepo) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.Employee, error) {
	for _, e := range r.employees {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeEmployeeRepo) Create(_ context.Context, _ repository.DBTX, e *domain.Employee) error {
	cp := *e
	r.employees[e.Email] = &cp
	return nil
}

func (r *fakeEmployeeRepo) UpdatePasswordHash(_ context.Context, _ repository.DBTX, email, hash string) error {
	if e, ok := r.employees[email]; ok {
		e.PasswordHash = hash
	}
	return nil
}

// capturingRecorder remembers recorded activity events.
type capturingRecorder struct {
	events []domain.ActivityEvent
}

func (r *capturingRecorder) Record(_ context.Context, evt domain.ActivityEvent) {
	r.events = append(r.events, evt)
}

func (r *capturingRecorder) types() []string {
	out := make([]string, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, string(evt.EventType))
	}
	return out
}

// seqIssuer issues deterministic tokens.
type seqIssuer struct {
	n int
}

func (i *seqIssuer) Issue(userID, sessionID uuid.UUID, email string, ttl time.Duration) (string, error) {
	i.n++
	return fmt.Sprintf("token-%d-%s", i.n, sessionID), nil
}

// openGuard never locks; it records attempts for assertions.
type openGuard struct {
	locked   error
	attempts []bool
}

func (g *openGuard) CheckLocked(_ context.Context, _ string) error { return g.locked }

func (g *openGuard) RecordAttempt(_ context.Context, _, _ string, success bool) {
	g.attempts = append(g.attempts, success)
}

// staticGeo returns a fixed country for every IP.
type staticGeo struct {
	info provider.GeoInfo
	err  error
}

func (g *staticGeo) Lookup(_ context.Context, _ string) (provider.GeoInfo, error) {
	return g.info, g.err
}
