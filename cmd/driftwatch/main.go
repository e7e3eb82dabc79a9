package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/oceanlab/driftwatch/internal/alert"
	"github.com/oceanlab/driftwatch/internal/config"
	"github.com/oceanlab/driftwatch/internal/ingest"
	"github.com/oceanlab/driftwatch/internal/ledger"
	"github.com/oceanlab/driftwatch/internal/logging"
	"github.com/oceanlab/driftwatch/internal/notify"
	"github.com/oceanlab/driftwatch/internal/pipeline"
	"github.com/oceanlab/driftwatch/internal/registry"
	"github.com/oceanlab/driftwatch/internal/store"
)

// driftwatch is the run-once pipeline binary, intended to be driven by cron.
// A non-zero exit marks the run failed for the scheduler; batches committed
// before the failure stay committed.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg, err := registry.Load(cfg.Data.HomeCSV)
	if err != nil {
		logging.Fatalf("Failed to load home registry: %v", err)
	}
	slog.Info("home registry loaded", "buoys", len(reg))

	batchLedger, err := ledger.Open(cfg.Data.LedgerDB)
	if err != nil {
		logging.Fatalf("Failed to open batch ledger: %v", err)
	}
	defer batchLedger.Close()

	engine, err := alert.NewEngine(reg, alert.NewStateStore(cfg.Data.AlertState), cfg.Alert.ThresholdM)
	if err != nil {
		logging.Fatalf("Failed to initialize alert engine: %v", err)
	}

	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.Notify.Enabled {
		notifier = notify.NewSMTPNotifier(cfg.Notify.SMTPAddr, cfg.Notify.From, cfg.Notify.To)
	}
	dispatcher := notify.NewDispatcher(notifier, cfg.Worker.Count, cfg.Worker.BufferSize)
	dispatcher.Start(ctx)

	runner := pipeline.NewRunner(
		reg,
		ingest.NewDirSource(cfg.Data.InboxDir, cfg.Data.ProcessedDir),
		store.New(cfg.Data.MasterCSV),
		batchLedger,
		engine,
		dispatcher,
		cfg.Data.LatestCSV,
		cfg.Data.MapHTML,
	)

	runErr := runner.Run(ctx)

	// Queued notifications are best-effort but get a chance to go out
	// before the process exits.
	dispatcher.Stop()

	if runErr != nil {
		logging.Fatalf("Run failed: %v", runErr)
	}
	slog.Info("run complete")
}
