package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pysugar/photo-slideshow/internal/api"
	"github.com/pysugar/photo-slideshow/internal/api/handlers"
	"github.com/pysugar/photo-slideshow/internal/api/middleware"
	"github.com/pysugar/photo-slideshow/internal/auth/flow"
	"github.com/pysugar/photo-slideshow/internal/config"
	"github.com/pysugar/photo-slideshow/internal/logging"
	"github.com/pysugar/photo-slideshow/internal/metrics"
	"github.com/pysugar/photo-slideshow/internal/photos"
	"github.com/pysugar/photo-slideshow/internal/slideshow"
	"github.com/pysugar/photo-slideshow/internal/version"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	shutdownTimeout  = 10 * time.Second
	limiterEvictTick = 5 * time.Minute
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the slideshow server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logCloser, err := logging.Setup(cfg.LogFile)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	log.Printf("📦 slideshow %s", version.String())
	if cfg.Path != "" {
		log.Printf("⚙️ Config: %s", cfg.Path)
	}
	if !cfg.HasClientCredentials() {
		log.Printf("⚠️ No client secret configured, device login is disabled")
	}

	m := metrics.New()
	authClient := newAuthClient(cfg)
	tokenMgr, err := newTokenManager(cfg, authClient, m)
	if err != nil {
		return err
	}

	lister := photos.NewClient(photos.Options{
		BaseURL:     cfg.PhotosAPIBase,
		MaxPageSize: cfg.MaxPageSize,
		Metrics:     m,
	})
	flows := flow.NewStore(flow.DefaultTTL)
	limiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimit.PerSecond), cfg.RateLimit.Burst)

	router := api.NewRouter(api.Deps{
		Auth:          authClient,
		Flows:         flows,
		Tokens:        tokenMgr,
		Service:       slideshow.NewService(tokenMgr, lister),
		Settings:      handlers.NewSettings(cfg.Slideshow),
		Metrics:       m,
		Limiter:       limiter,
		AdminPassword: cfg.AdminPassword,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("🚀 Photo slideshow starting on http://%s", cfg.Addr())
		if cfg.AdminPassword != "" {
			log.Printf("🔒 API protected by admin password")
		}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return flows.Run(gctx) })
	g.Go(func() error { return limiter.Run(gctx, limiterEvictTick) })
	g.Go(func() error {
		<-gctx.Done()
		log.Printf("🛑 Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
