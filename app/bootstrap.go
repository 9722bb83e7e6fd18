package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/xDMPx/PyDockMateAgent/app/clients"
	"github.com/xDMPx/PyDockMateAgent/app/docker"
	"github.com/xDMPx/PyDockMateAgent/app/identity"
	"github.com/xDMPx/PyDockMateAgent/app/services"
	"github.com/xDMPx/PyDockMateAgent/app/storage"
	"github.com/xDMPx/PyDockMateAgent/app/utils"
)

// Version is the agent version reported to the hub
var Version = "0.0.1-dev"

// Bootstrap wires the agent and runs it until ctx is cancelled
func Bootstrap(ctx context.Context, cfg *Config, logger zerolog.Logger) error {
	runtimeProvider, err := docker.NewProvider(logger)
	if err != nil {
		return fmt.Errorf("failed to initialize container runtime: %w", err)
	}
	defer runtimeProvider.Close()

	if err := runtimeProvider.WaitReady(ctx, utils.DefaultRetryPolicy()); err != nil {
		// Passes abort on their own while the daemon is down
		logger.Warn().Err(err).Msg("docker daemon not reachable yet")
	}

	var journal services.PassJournal
	if cfg.JournalPath != "" {
		store, err := storage.NewStore(cfg.JournalPath)
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.JournalPath).Msg("pass journal disabled")
		} else {
			defer store.Close()
			journal = store
			go startCleanupJob(ctx, store, cfg.JournalRetention, logger)
		}
	}

	identityMgr := identity.NewManager(cfg.IdentityPath, logger)
	hubClient := services.NewHubClient(clients.NewHTTPClient(cfg.HubURL, cfg.Timeout))

	registrationService := services.NewRegistrationService(
		hubClient,
		identityMgr,
		identity.NewCollector(Version),
		runtimeProvider,
		logger,
	)
	heartbeatService := services.NewHeartbeatService(hubClient, logger)
	reconciler := services.NewReconciler(hubClient, runtimeProvider, cfg.Concurrency, logger)

	controller := services.NewController(
		identityMgr,
		registrationService,
		hubClient,
		heartbeatService,
		reconciler,
		journal,
		func() services.Ticker { return services.NewTimeTicker(cfg.Interval) },
		logger,
	)

	logger.Info().
		Str("hub", cfg.HubURL).
		Str("identity_path", identityMgr.Path()).
		Dur("interval", cfg.Interval).
		Msg("agent started")

	return controller.Run(ctx)
}

// startCleanupJob prunes old journal entries
func startCleanupJob(ctx context.Context, store *storage.Store, retention time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.CleanupPasses(ctx, time.Now().Add(-retention))
			if err != nil {
				logger.Warn().Err(err).Msg("journal cleanup failed")
				continue
			}
			if n > 0 {
				logger.Debug().Int64("removed", n).Msg("journal cleanup")
			}
		}
	}
}
