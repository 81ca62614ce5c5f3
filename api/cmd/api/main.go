package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/dctlabs/dct-backend/api/burn"
	"github.com/dctlabs/dct-backend/api/config"
	"github.com/dctlabs/dct-backend/api/handlers"
	"github.com/dctlabs/dct-backend/api/metrics"
	"github.com/dctlabs/dct-backend/api/notify"
	"github.com/dctlabs/dct-backend/api/store"
	"github.com/dctlabs/dct-backend/api/swap"
	"github.com/dctlabs/dct-backend/api/ton"
	"github.com/dctlabs/dct-backend/utils/pkg/logger"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "Enable verbose (debug) logging")
	shutdownTimeoutFlag := flag.Duration("shutdown-timeout", 10*time.Second, "Maximum time to wait for in-flight requests during graceful shutdown")
	flag.Parse()

	// Best effort; production reads from the real environment.
	_ = godotenv.Load()

	log := logger.New(*verboseFlag)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, err := config.LoadApp()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := config.LoadPostgres(ctx, log)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	var notifier *notify.Client
	if app.TelegramBotToken != "" && app.TelegramChannel != "" {
		notifier = notify.NewClient("", app.TelegramBotToken, app.TelegramChannel)
	} else {
		log.Warn("telegram notifications disabled, bot token or channel not set")
	}

	h, err := handlers.New(handlers.Config{
		Log:      log,
		Clock:    clockwork.NewRealClock(),
		Store:    store.NewPostgres(pool),
		App:      app,
		Indexer:  ton.NewIndexerClient(app.IndexerURL),
		Swapper:  swap.NewClient(app.SwapRouterURL),
		Burner:   burn.NewClient(app.BurnWebhook, app.DCTMaster),
		Notifier: notifier,
	})
	if err != nil {
		return fmt.Errorf("build handlers: %w", err)
	}

	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)

	srv := &http.Server{
		Addr:              app.ListenAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api listening", "addr", app.ListenAddr, "version", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutdown signal received, draining in-flight requests", "timeout", *shutdownTimeoutFlag)
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), *shutdownTimeoutFlag)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("error shutting down HTTP server", "error", err)
		return err
	}
	log.Info("api stopped")
	return nil
}
