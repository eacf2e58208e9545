package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/staffhub/platform/internal/auth"
	"github.com/staffhub/platform/internal/domain"
	"github.com/staffhub/platform/internal/fingerprint"
	"github.com/staffhub/platform/internal/metrics"
	"github.com/staffhub/platform/internal/provider"
	"github.com/staffhub/platform/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// LoginGuard throttles credential guessing. Implementations fail open: a
// guard storage error must never block a legitimate login.
type LoginGuard interface {
	CheckLocked(ctx context.Context, email string) error
	RecordAttempt(ctx context.Context, email, ip string, success bool)
}

// GeoLookup enriches an IP with country/ISP data. Absence or failure only
// degrades fingerprint completeness.
type GeoLookup interface {
	Lookup(ctx context.Context, ip string) (provider.GeoInfo, error)
}

// AuthService orchestrates the login flow: credential check, device
// fingerprinting, suspicious-login detection, blocked-device policy, and
// session issuance.
type AuthService struct {
	db        repository.DBTX
	employees repository.EmployeeRepository
	sessions  *SessionManager
	identity  *IdentityService
	detector  *SuspiciousLoginDetector
	guard     LoginGuard
	geo       GeoLookup
	activity  ActivityRecorder
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewAuthService creates a new AuthService. geo and metrics may be nil.
func NewAuthService(
	db repository.DBTX,
	employees repository.EmployeeRepository,
	sessions *SessionManager,
	identity *IdentityService,
	detector *SuspiciousLoginDetector,
	guard LoginGuard,
	geo GeoLookup,
	activity ActivityRecorder,
	m *metrics.Metrics,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		db:        db,
		employees: employees,
		sessions:  sessions,
		identity:  identity,
		detector:  detector,
		guard:     guard,
		geo:       geo,
		activity:  activity,
		metrics:   m,
		logger:    logger,
	}
}

// RegisterInput holds the registration request fields.
type RegisterInput struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

// LoginInput holds the login request fields.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is returned on successful login: credentials plus the
// suspicious-login verdict for the caller's policy layer.
type LoginResult struct {
	Credentials *domain.SessionCredentials `json:"credentials"`
	Verdict     domain.LoginVerdict        `json:"verdict"`
	UserID      uuid.UUID                  `json:"user_id"`
	Email       string                     `json:"email"`
}

// Register creates a new employee credential record.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.Employee, error) {
	if err := domain.ValidateEmail(input.Email); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if len(input.Password) < 8 {
		return nil, domain.ErrValidation("password must be at least 8 characters")
	}

	existing, err := s.employees.FindByEmail(ctx, s.db, input.Email)
	if err != nil {
		return nil, domain.ErrInternal("find employee", err)
	}
	if existing != nil {
		return nil, domain.ErrConflict("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.ErrInternal("hash password", err)
	}

	employee := &domain.Employee{
		ID:           uuid.New(),
		Email:        input.Email,
		FullName:     input.FullName,
		PasswordHash: string(hash),
		Role:         auth.RoleEmployee,
		IsActive:     true,
	}
	if err := s.employees.Create(ctx, s.db, employee); err != nil {
		return nil, domain.ErrInternal("create employee", err)
	}
	return employee, nil
}

// Login authenticates an employee and issues a session. The flow:
// lockout check, credential check, geo enrichment, fingerprint build,
// blocked-device check, suspicious-login evaluation, session creation.
// A blocked device reads as DEVICE_BLOCKED, distinguishable from bad
// credentials.
func (s *AuthService) Login(ctx context.Context, input LoginInput, raw fingerprint.RawSignals, hints *fingerprint.ClientHints) (*LoginResult, error) {
	if err := s.guard.CheckLocked(ctx, input.Email); err != nil {
		return nil, err
	}

	employee, err := s.employees.FindByEmail(ctx, s.db, input.Email)
	if err != nil {
		return nil, domain.ErrInternal("find employee", err)
	}
	if employee == nil || !employee.IsActive {
		s.failLogin(ctx, input.Email, raw.IPAddress)
		return nil, domain.ErrUnauthorized("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(employee.PasswordHash), []byte(input.Password)); err != nil {
		s.failLogin(ctx, input.Email, raw.IPAddress)
		return nil, domain.ErrUnauthorized("invalid credentials")
	}

	if s.geo != nil && raw.IPAddress != "" {
		if info, err := s.geo.Lookup(ctx, raw.IPAddress); err == nil {
			raw.Country = info.Country
			raw.ISP = info.ISP
		} else {
			s.logger.Debug("geo lookup failed", "ip", raw.IPAddress, "error", err)
		}
	}

	fp := fingerprint.Build(raw, hints)

	known, err := s.identity.identities.FindByUserAndHash(ctx, s.db, employee.ID, fp.Metadata.FingerprintHash)
	if err != nil {
		s.logger.Warn("blocked-device check failed", "user_id", employee.ID, "error", err)
	}
	if known != nil && known.IsBlocked {
		s.guard.RecordAttempt(ctx, input.Email, raw.IPAddress, false)
		return nil, domain.ErrDeviceBlocked(known.BlockedReason)
	}

	verdict := s.detector.Evaluate(ctx, employee.ID, fp)

	creds, err := s.sessions.CreateSession(ctx, employee.ID, employee.Email, fp, raw.IPAddress, raw.UserAgent)
	if err != nil {
		return nil, err
	}

	if verdict.IsSuspicious {
		s.activity.Record(ctx, domain.NewSuspiciousLoginEvent(employee.ID, verdict, raw.IPAddress))
		if verdict.RiskLevel.AtLeast(domain.RiskHigh) {
			ident, err := s.identity.RecordSighting(ctx, employee.ID, fp)
			if err == nil && ident != nil {
				if err := s.identity.RaiseRisk(ctx, ident, 25, "suspicious login pattern"); err != nil {
					s.logger.Warn("raise risk failed", "identity_id", ident.ID, "error", err)
				}
			}
		}
	}

	s.guard.RecordAttempt(ctx, input.Email, raw.IPAddress, true)
	if s.metrics != nil {
		s.metrics.LoginAttempts.WithLabelValues("success").Inc()
		s.metrics.LoginVerdicts.WithLabelValues(string(verdict.RiskLevel)).Inc()
	}

	return &LoginResult{
		Credentials: creds,
		Verdict:     verdict,
		UserID:      employee.ID,
		Email:       employee.Email,
	}, nil
}

// RoleOf resolves the caller's role for the authorization middleware. A
// missing or deactivated account never resolves to a role.
func (s *AuthService) RoleOf(ctx context.Context, userID uuid.UUID) (string, error) {
	employee, err := s.employees.FindByID(ctx, s.db, userID)
	if err != nil {
		return "", domain.ErrInternal("find employee", err)
	}
	if employee == nil || !employee.IsActive {
		return "", domain.ErrForbidden("account is not active")
	}
	return employee.Role, nil
}

// ChangePassword verifies the current password before storing a new hash.
// Existing sessions stay live; callers wanting the stricter behavior follow
// up with TerminateAllSessions.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, current, newPassword string) error {
	if len(newPassword) < 8 {
		return domain.ErrValidation("password must be at least 8 characters")
	}

	employee, err := s.employees.FindByID(ctx, s.db, userID)
	if err != nil {
		return domain.ErrInternal("find employee", err)
	}
	if employee == nil || !employee.IsActive {
		return domain.ErrUnauthorized("account is not active")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(employee.PasswordHash), []byte(current)); err != nil {
		return domain.ErrUnauthorized("current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return domain.ErrInternal("hash password", err)
	}
	if err := s.employees.UpdatePasswordHash(ctx, s.db, employee.Email, string(hash)); err != nil {
		return domain.ErrInternal("update password", err)
	}
	return nil
}

func (s *AuthService) failLogin(ctx context.Context, email, ip string) {
	s.guard.RecordAttempt(ctx, email, ip, false)
	if s.metrics != nil {
		s.metrics.LoginAttempts.WithLabelValues("failure").Inc()
	}
}
