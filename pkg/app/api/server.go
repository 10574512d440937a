// Package api wires the dashboard server process: configuration, storage,
// upstream source clients, sync jobs, the cron scheduler and the HTTP router.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	apphttp "github.com/atareh/lightvision/pkg/app/http"
	"github.com/atareh/lightvision/pkg/auth"
	"github.com/atareh/lightvision/pkg/config"
	"github.com/atareh/lightvision/pkg/dashboard"
	"github.com/atareh/lightvision/pkg/pgutil"
	"github.com/atareh/lightvision/pkg/ratelimit"
	"github.com/atareh/lightvision/pkg/snapshotstore"
	"github.com/atareh/lightvision/pkg/sources/coingecko"
	"github.com/atareh/lightvision/pkg/sources/dexscreener"
	"github.com/atareh/lightvision/pkg/sources/dune"
	syncpkg "github.com/atareh/lightvision/pkg/sync"
	tokenservice "github.com/atareh/lightvision/pkg/token/service"
	"github.com/atareh/lightvision/pkg/tokenstore"
)

const defaultRequestTimeout = 60

// Server holds cfg to init the dashboard server.
type Server struct {
	cfg *config.Config
}

// NewServer initializes a new dashboard server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("server config is nil")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting dashboard server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
	)

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() { _ = db.Close() }()

	logger.Info("Connected to database",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Database),
	)

	tokenStore := tokenstore.NewStore(db)
	snapshotStore := snapshotstore.NewStore(db)

	syncService := syncpkg.NewService(
		tokenStore,
		snapshotStore,
		dexscreener.New(&cfg.Sources.DexScreener),
		coingecko.New(&cfg.Sources.CoinGecko),
		dune.New(&cfg.Sources.Dune),
		syncpkg.NewRunGuard(),
		logger,
		syncpkg.Options{
			AssetID:            cfg.Sources.CoinGecko.AssetID,
			RevenueQueryID:     cfg.Sources.Dune.RevenueQueryID,
			TvlQueryID:         cfg.Sources.Dune.TvlQueryID,
			LiquidityThreshold: cfg.Sync.LiquidityThreshold,
			FetchConcurrency:   cfg.Sync.FetchConcurrency,
		},
	)

	scheduler, err := s.startScheduler(ctx, syncService, logger)
	if err != nil {
		return err
	}

	adminService := tokenservice.NewLog(
		tokenservice.NewService(tokenStore, snapshotStore, logger),
		logger,
	)
	dashboardService := dashboard.NewService(snapshotStore, logger)

	router := s.setupRouter(syncService, adminService, dashboardService, snapshotStore, logger)

	err = apphttp.ServeAndWait(ctx, router, logger, &cfg.Server)

	// Stop scheduled jobs before the deferred DB close kicks in.
	stopCtx := scheduler.Stop()
	<-stopCtx.Done()

	return err
}

// startScheduler registers every sync job on its configured cadence. An
// empty schedule string disables that job's automatic runs; the manual
// trigger endpoints still work.
func (s *Server) startScheduler(
	ctx context.Context,
	service syncpkg.Service,
	logger *zap.Logger,
) (*cron.Cron, error) {
	scheduler := cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
	))

	jobs := []struct {
		schedule string
		jobType  string
		run      func(context.Context) (*syncpkg.RunResult, error)
	}{
		{s.cfg.Sync.RefreshSchedule, syncpkg.JobRefresh, service.RunRefresh},
		{s.cfg.Sync.SocialSchedule, syncpkg.JobSocial, service.RunSocial},
		{s.cfg.Sync.AssetPriceSchedule, syncpkg.JobAssetPrice, service.RunAssetPrice},
		{s.cfg.Sync.RevenueSchedule, syncpkg.JobRevenue, service.SubmitRevenue},
		{s.cfg.Sync.TvlSchedule, syncpkg.JobTvl, service.SubmitTvl},
		{s.cfg.Sync.ReconcileSchedule, syncpkg.JobReconcile, service.Reconcile},
	}

	for _, job := range jobs {
		if job.schedule == "" {
			logger.Info("Scheduled job disabled", zap.String("job", job.jobType))
			continue
		}

		jobType, run := job.jobType, job.run
		_, err := scheduler.AddFunc(job.schedule, func() {
			if _, err := run(ctx); err != nil {
				logger.Error("Scheduled job failed",
					zap.String("job", jobType),
					zap.Error(err))
			}
		})
		if err != nil {
			return nil, fmt.Errorf("schedule %s job: %w", jobType, err)
		}

		logger.Info("Scheduled job registered",
			zap.String("job", jobType),
			zap.String("schedule", job.schedule))
	}

	scheduler.Start()
	return scheduler, nil
}

func (s *Server) setupRouter(
	syncService syncpkg.Service,
	adminService tokenservice.Service,
	dashboardService dashboard.Service,
	runs tokenservice.RunLog,
	logger *zap.Logger,
) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Second * defaultRequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	dashboardHandler := dashboard.NewHandler(dashboardService, logger)
	adminHandler := tokenservice.NewHandler(adminService, runs)

	limiter := ratelimit.NewFixedWindow(s.cfg.Sync.RateLimitRequests, s.cfg.Sync.RateLimitWindow)
	syncHandler := syncpkg.NewHandler(syncService, limiter, s.cfg.Sources.Dune.LegacyRevenueQueryID)

	r.Route("/api", func(r chi.Router) {
		// Public read endpoints.
		dashboardHandler.Routes(r)

		// Token management, secret protected.
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireSecret(auth.NewSecretVerifier(s.cfg.Admin.AdminSecret), auth.AdminSecretHeader))
			adminHandler.Routes(r)
		})

		// Sync triggers, secret protected and rate limited.
		r.Route("/sync", func(r chi.Router) {
			r.Use(auth.RequireSecret(auth.NewSecretVerifier(s.cfg.Admin.SyncSecret), auth.SyncSecretHeader))
			syncHandler.Routes(r)
		})
	})

	return r
}
