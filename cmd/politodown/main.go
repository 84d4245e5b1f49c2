package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/italolelis/politodown/internal/catalog"
	"github.com/italolelis/politodown/internal/cleanup"
	"github.com/italolelis/politodown/internal/config"
	"github.com/italolelis/politodown/internal/dc/portal"
	"github.com/italolelis/politodown/internal/dc/putio"
	"github.com/italolelis/politodown/internal/downloader"
	"github.com/italolelis/politodown/internal/downloader/progress"
	"github.com/italolelis/politodown/internal/http/rest"
	"github.com/italolelis/politodown/internal/logctx"
	"github.com/italolelis/politodown/internal/notifier"
	"github.com/italolelis/politodown/internal/retry"
	"github.com/italolelis/politodown/internal/storage/sqlite"
	"github.com/italolelis/politodown/internal/telemetry"
	"github.com/italolelis/politodown/internal/transfer"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	logger := slog.New(logctx.NewTraceHandler(handler))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := uuid.NewString()
	ctx = logctx.WithRunID(logctx.WithLogger(ctx, logger), runID)

	logger.InfoContext(ctx, "politodown starting...",
		"version", version,
		"log_level", cfg.LogLevel,
		"remote", cfg.Remote,
		"category", cfg.Category,
	)

	if err := run(ctx, cfg, runID); err != nil {
		logger.ErrorContext(ctx, "fatal error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, runID string) error {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.TelemetryEnabled,
		ServiceName:    "politodown",
		ServiceVersion: version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown telemetry", "err", err)
		}
	}()

	// =========================================================================
	// Start Session
	session, err := buildSession(cfg)
	if err != nil {
		return fmt.Errorf("failed to build session: %w", err)
	}

	instrumented := transfer.NewInstrumentedSession(session, tel, cfg.Remote)

	if err := instrumented.Authenticate(ctx); err != nil {
		return fmt.Errorf("authentication error: %w", err)
	}

	// =========================================================================
	// Resolve Selection
	sel := cfg.Selection()

	node, err := catalog.Resolve(ctx, instrumented, sel)
	if err != nil {
		return fmt.Errorf("failed to resolve selection: %w", err)
	}

	baseDir := sel.BaseDir(cfg.TargetDir)

	// =========================================================================
	// Start Cleanup
	removed, err := cleanup.RemovePartialFiles(ctx, baseDir)
	if err != nil {
		return fmt.Errorf("failed to remove partial files: %w", err)
	}

	if removed > 0 {
		logger.InfoContext(ctx, "removed partial files", "count", removed, "dir", baseDir)
	}

	opts := []downloader.Option{
		downloader.WithInvoker(retry.New(cfg.RetryDelay, cfg.RetryMaxAttempts)),
		downloader.WithTelemetry(tel),
		downloader.WithReporter(reporterFactory(cfg)),
	}

	// =========================================================================
	// Start Database
	var ledger *sqlite.InstrumentedFileRepository

	if cfg.DBPath != "" {
		database, err := sqlite.InitDB(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open ledger: %w", err)
		}
		defer closeDB(ctx, database)

		ledger = sqlite.NewInstrumentedFileRepository(database, tel)
		opts = append(opts, downloader.WithRecorder(ledger))
	}

	// =========================================================================
	// Start Downloader
	dl := downloader.New(instrumented, opts...)

	status := rest.NewStatusHandler(dl, runID, tel)
	status.SetNode(node.Name)

	if ledger != nil {
		status.SetLedger(ledger)
	}

	notif := buildNotifier(cfg)

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	// =========================================================================
	// Start API Service
	if cfg.Web.BindAddress != "" {
		server := setupServer(gctx, status, cfg)

		g.Go(func() error {
			logger.InfoContext(ctx, "initializing API support", "host", cfg.Web.BindAddress)

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}

			return nil
		})

		g.Go(func() error {
			select {
			case <-gctx.Done():
			case <-done:
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to gracefully shutdown the server", "err", err)

				if err = server.Close(); err != nil {
					return fmt.Errorf("could not stop server gracefully: %w", err)
				}
			}

			return nil
		})
	}

	// =========================================================================
	// Start Main Run
	g.Go(func() error {
		defer close(done)

		status.SetPhase(rest.PhaseDownloading, nil)

		start := time.Now()
		result, err := dl.Download(gctx, node, baseDir)

		if err != nil {
			status.SetPhase(rest.PhaseFailed, err)
			tel.RecordRun(sel.Category, "error")
			notify(ctx, notif, fmt.Sprintf("❌ Download of %s failed: %v", node.Name, err))

			return err
		}

		status.SetPhase(rest.PhaseCompleted, nil)
		tel.RecordRun(sel.Category, "success")
		notify(ctx, notif, fmt.Sprintf("✅ Download of %s finished: %d files, %d downloaded, %d skipped, %d missing (%s in %s)",
			node.Name,
			result.Files(),
			result.Downloaded,
			result.Skipped,
			result.NotFound,
			humanize.Bytes(uint64(result.Bytes)),
			time.Since(start).Round(time.Second),
		))

		return nil
	})

	return g.Wait()
}

// This is an abstract factory for the remote session.
func buildSession(cfg *config.Config) (transfer.Session, error) {
	switch cfg.Remote {
	case config.RemotePortal:
		return portal.NewClient(cfg.PortalBaseURL, cfg.PortalToken)
	case config.RemotePutio:
		return putio.NewClient(cfg.PutioToken, cfg.PutioFolderID), nil
	}

	return nil, fmt.Errorf("invalid remote: %s", cfg.Remote)
}

func reporterFactory(cfg *config.Config) func(base string) progress.Reporter {
	if !cfg.Progress {
		return func(base string) progress.Reporter { return progress.NewTracker(base) }
	}

	return func(base string) progress.Reporter { return progress.NewBar(os.Stderr, base, 0) }
}

func buildNotifier(cfg *config.Config) notifier.Notifier {
	if cfg.DiscordWebhookURL == "" {
		return notifier.Nop{}
	}

	return &notifier.DiscordNotifier{WebhookURL: cfg.DiscordWebhookURL}
}

func notify(ctx context.Context, n notifier.Notifier, content string) {
	if err := n.Notify(ctx, content); err != nil {
		logctx.LoggerFromContext(ctx).ErrorContext(ctx, "failed to send notification", "err", err)
	}
}

// setupServer prepares the handlers and services to create the http rest server.
func setupServer(ctx context.Context, status *rest.StatusHandler, cfg *config.Config) *http.Server {
	return &http.Server{
		Addr:         cfg.Web.BindAddress,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		Handler:      status.Routes(),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}

func closeDB(ctx context.Context, database *sql.DB) {
	if err := database.Close(); err != nil {
		logctx.LoggerFromContext(ctx).ErrorContext(ctx, "failed to close ledger", "err", err)
	}
}
