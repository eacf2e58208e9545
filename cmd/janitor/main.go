package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/staffhub/platform/internal/domain"
	"github.com/staffhub/platform/internal/infra"
	"github.com/staffhub/platform/internal/repository"
	"github.com/staffhub/platform/internal/service"
	"golang.org/x/sync/errgroup"
)

// The janitor runs the periodic sweeps: batch-deactivating expired sessions
// and identities past the inactivity window. The API stays correct without
// it (validation expires lazily); the sweeps keep the tables tidy.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("janitor failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("janitor connected to postgres")

	interval := time.Hour
	if s := os.Getenv("JANITOR_INTERVAL"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			interval = d
		}
	}

	noop := noopRecorder{}
	sessionMgr := service.NewSessionManager(pool, repository.NewSessionRepository(), nil, nil, noop,
		service.SessionConfig{}, nil, logger)
	identitySvc := service.NewIdentityService(pool, repository.NewIdentityRepository(), noop, logger)

	logger.Info("janitor starting", "interval", interval, "identity_inactive_days", cfg.IdentityInactiveDays)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		// Run once immediately, then on every tick.
		sweep(ctx, sessionMgr, identitySvc, cfg.IdentityInactiveDays, logger)

		select {
		case <-ctx.Done():
			logger.Info("janitor shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

func sweep(ctx context.Context, sessionMgr *service.SessionManager, identitySvc *service.IdentityService, inactiveDays int, logger *slog.Logger) {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		count, err := sessionMgr.CleanupExpiredSessions(ctx)
		if err != nil {
			return fmt.Errorf("expired sessions: %w", err)
		}
		if count > 0 {
			logger.Info("deactivated expired sessions", "count", count)
		}
		return nil
	})

	g.Go(func() error {
		count, err := identitySvc.CleanupInactive(ctx, inactiveDays)
		if err != nil {
			return fmt.Errorf("inactive identities: %w", err)
		}
		if count > 0 {
			logger.Info("deactivated inactive identities", "count", count)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("sweep error", "error", err)
	}
}

// noopRecorder satisfies the activity recorder where the janitor has no
// outbox wiring; cleanup sweeps are not audit events.
type noopRecorder struct{}

func (noopRecorder) Record(context.Context, domain.ActivityEvent) {}
