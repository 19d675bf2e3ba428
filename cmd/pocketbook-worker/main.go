package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"pocketbook/internal/cli"
	"pocketbook/internal/core"
	"pocketbook/internal/docstore"
	ophttp "pocketbook/internal/http"
	"pocketbook/internal/log"
	"pocketbook/internal/metrics"
	"pocketbook/internal/notify"
	gsheet "pocketbook/internal/sheets/google"
	"pocketbook/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentWorker)
	logger.Info("Starting pocketbook-worker")

	cfg, err := cli.LoadAndValidateConfig(logger)
	if err != nil {
		os.Exit(1)
	}
	session, err := cli.ResolveSession(cfg, "")
	if err != nil {
		logger.Error("Worker needs an account", log.FieldError, err)
		os.Exit(1)
	}

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		m = metrics.New()
	}

	setupCtx, cancelSetup := context.WithTimeout(context.Background(), time.Minute)
	defer cancelSetup()
	b, err := cli.OpenBackend(setupCtx, logger, cfg, m)
	if err != nil {
		os.Exit(1)
	}

	// Initialize Google Sheets export (optional)
	var exporter *worker.ExportWorker
	if cfg.ExportEnabled {
		client, err := gsheet.New(setupCtx, gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CategoriesSheet: cfg.GoogleCategoriesSheet,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			_ = b.Close()
			os.Exit(1)
		}
		exporter = worker.NewExportWorker(b.Store, client, session,
			worker.WithLogger(logger),
			worker.WithMetrics(m))
		logger.Info("Google Sheets export enabled",
			"spreadsheet_id", cfg.GoogleSpreadsheetID,
			"interval", cfg.ExportInterval)
	} else {
		logger.Info("Google Sheets export disabled")
	}

	feed := notify.NewFeed()
	merger := notify.NewMerger(b.Store, session, feed,
		notify.WithLogger(logger.WithComponent(log.ComponentNotify)),
		notify.WithMetrics(m))

	stopped := make(chan struct{})
	ctx, shutdownDone := cli.GracefulShutdown(logger, shutdownTimeout, func() { <-stopped })

	sup := worker.Supervisor{Logger: logger, InitialBackoff: time.Second, MaxBackoff: time.Minute}
	g, ctx := errgroup.WithContext(ctx)

	if b.Bus != nil {
		g.Go(func() error {
			return sup.Run(ctx, "relay", b.Relay)
		})
	}
	g.Go(func() error {
		return sup.Run(ctx, "notifications", merger.Run)
	})
	g.Go(func() error {
		logNotifications(ctx, logger, feed)
		return nil
	})

	if exporter != nil {
		g.Go(func() error {
			worker.Every(ctx, cfg.ExportInterval, func(ctx context.Context) {
				if _, err := exporter.ProcessPending(ctx); err != nil && ctx.Err() == nil {
					logger.Error("Periodic export failed", log.FieldError, err)
				}
			})
			return nil
		})
		g.Go(func() error {
			return sup.Run(ctx, "export", exporter.Run)
		})
	}

	if cfg.MetricsAddr != "" {
		srv := ophttp.NewServer(ophttp.Options{
			Addr:    cfg.MetricsAddr,
			Metrics: m,
			Ready:   storeReady(b.Store, session),
			Feed:    feed,
			Logger:  logger.WithComponent(log.ComponentHTTP),
		})
		g.Go(func() error {
			return srv.Run(ctx)
		})
	}

	err = g.Wait()
	close(stopped)
	if err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
	} else {
		<-shutdownDone
	}
	if cerr := b.Close(); cerr != nil {
		logger.Error("Failed to close backend", log.FieldError, cerr)
	}
	if err != nil {
		os.Exit(1)
	}
}

// storeReady reports the store as ready when the account document can be
// read or is known to be absent.
func storeReady(store docstore.Store, session core.Session) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := store.Get(ctx, core.AccountPath(session.AccountID))
		if err == nil || errors.Is(err, docstore.ErrNotFound) {
			return nil
		}
		return err
	}
}

func logNotifications(ctx context.Context, logger *log.Logger, feed *notify.Feed) {
	shown := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-feed.Changed():
			notes := feed.Notifications()
			for _, n := range notes[shown:] {
				logger.InfoContext(ctx, n.Title,
					"notification_id", n.ID,
					"description", n.Description,
					"timestamp", n.Timestamp)
			}
			shown = len(notes)
		}
	}
}
