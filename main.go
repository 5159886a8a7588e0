package main

import (
	// standard library
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// third-party
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	// internal
	"github.com/rmitchellscott/creativeforge/internal/analytics"
	"github.com/rmitchellscott/creativeforge/internal/config"
	"github.com/rmitchellscott/creativeforge/internal/converter"
	"github.com/rmitchellscott/creativeforge/internal/database"
	"github.com/rmitchellscott/creativeforge/internal/documents"
	"github.com/rmitchellscott/creativeforge/internal/downloader"
	"github.com/rmitchellscott/creativeforge/internal/generator"
	"github.com/rmitchellscott/creativeforge/internal/handlers"
	"github.com/rmitchellscott/creativeforge/internal/jobs"
	"github.com/rmitchellscott/creativeforge/internal/logging"
	"github.com/rmitchellscott/creativeforge/internal/metrics"
	"github.com/rmitchellscott/creativeforge/internal/qr"
	"github.com/rmitchellscott/creativeforge/internal/security"
	"github.com/rmitchellscott/creativeforge/internal/shortener"
	"github.com/rmitchellscott/creativeforge/internal/storage"
	"github.com/rmitchellscott/creativeforge/internal/sweeper"
	"github.com/rmitchellscott/creativeforge/internal/tempmail"
	"github.com/rmitchellscott/creativeforge/internal/version"
)

const (
	jobRetention    = time.Hour
	uploadRetention = 6 * time.Hour
	shutdownTimeout = 15 * time.Second
)

func main() {
	// Load .env if present
	_ = godotenv.Load()

	if len(os.Args) > 1 && (os.Args[1] == "version" || os.Args[1] == "--version") {
		fmt.Println(version.String())
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := logging.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	if err := run(cfg); err != nil {
		logging.Errorf("[STARTUP] %v", err)
		logging.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Logf("[STARTUP] %s", version.String())
	gin.SetMode(cfg.GinMode)

	store, err := storage.New(ctx, storage.OptionsFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := database.Initialize(); err != nil {
		return err
	}
	defer database.Close()

	conv := converter.NewService(store, converter.Settings{
		CloudConvert: converter.CloudConvertConfig{
			APIKey:       cfg.CloudConvertAPIKey,
			BaseURL:      cfg.CloudConvertBaseURL,
			PollInterval: cfg.CloudConvertPollInterval,
			MaxPolls:     cfg.CloudConvertMaxPolls,
		},
		ForceFFmpeg: cfg.FFmpegEnabled,
		Magick:      config.Get("MAGICK_PATH", ""),
	})
	conv.Images.OnAttempt = observeEngine
	conv.Media.OnAttempt = observeEngine

	gen := generator.NewChainFromConfig(store, cfg)
	gen.OnAttempt = func(a generator.Attempt) {
		metrics.ObserveProvider(a.Provider, a.Duration, a.Err)
	}

	policy := security.URLPolicyFromEnv()
	images := database.NewImageService(database.DB)
	urls := shortener.NewService(database.DB, policy, cfg.RedirectCacheSize, cfg.RedirectCacheTTL)
	mail := tempmail.NewService(database.DB, tempmail.NewOneSecMail(cfg.TempMailAPIURL))
	jobStore := jobs.NewStore()

	h := handlers.New(handlers.Deps{
		Config:    cfg,
		DB:        database.DB,
		Store:     store,
		Converter: conv,
		Generator: gen,
		Images:    images,
		Documents: documents.NewService(store, documents.Settings{
			PageSize:  config.Get("PDF_PAGE_SIZE", "A4"),
			Mutool:    config.Get("MUTOOL_PATH", ""),
			PDFToText: config.Get("PDFTOTEXT_PATH", ""),
			Images:    downloader.NewFromEnv(downloader.WithURLPolicy(policy)),
		}),
		QR:        qr.NewService(store),
		URLs:      urls,
		TempMail:  mail,
		Analytics: analytics.NewAggregator(images, urls, mail, store),
		Jobs:      jobStore,
	})

	worker := sweeper.NewWorker(cfg.TempMailSweepInterval,
		sweeper.Task{Name: "temp-email", Run: mail.Sweep},
		sweeper.Task{Name: "jobs", Run: func(context.Context) (int64, error) {
			return int64(jobStore.Prune(time.Now().Add(-jobRetention))), nil
		}},
		sweeper.Task{Name: "uploads", Run: func(ctx context.Context) (int64, error) {
			n, err := storage.PruneOlderThan(ctx, store, storage.PrefixUploads, time.Now().Add(-uploadRetention))
			return int64(n), err
		}},
	)
	worker.Start()
	defer worker.Stop()

	router := gin.New()
	router.Use(logging.GinLogger(), gin.Recovery(), metrics.Middleware())
	h.Register(router)
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logging.Logf("[STARTUP] Listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Logf("[SHUTDOWN] Draining connections")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func observeEngine(a converter.Attempt) {
	metrics.ObserveEngine(a.Engine, a.Duration, a.Err)
}
