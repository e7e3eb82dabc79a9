// Package pipeline wires the ingestion-reconciliation-alerting run: filter
// and append each pending batch, evaluate alerts, mark consumption, then
// rebuild the latest view and the map artifact.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/oceanlab/driftwatch/internal/alert"
	"github.com/oceanlab/driftwatch/internal/ingest"
	"github.com/oceanlab/driftwatch/internal/ledger"
	"github.com/oceanlab/driftwatch/internal/registry"
	"github.com/oceanlab/driftwatch/internal/render"
	"github.com/oceanlab/driftwatch/internal/store"
	"github.com/oceanlab/driftwatch/internal/view"
)

// EventSink consumes alert events after a batch commits. Delivery must be
// fire-and-forget from the pipeline's point of view.
type EventSink interface {
	Dispatch(events []alert.Event)
}

type Runner struct {
	reg       registry.Registry
	source    ingest.Source
	store     *store.RecordStore
	ledger    *ledger.Ledger
	engine    *alert.Engine
	sink      EventSink
	latestCSV string
	mapHTML   string
}

func NewRunner(
	reg registry.Registry,
	source ingest.Source,
	recordStore *store.RecordStore,
	batchLedger *ledger.Ledger,
	engine *alert.Engine,
	sink EventSink,
	latestCSV, mapHTML string,
) *Runner {
	return &Runner{
		reg:       reg,
		source:    source,
		store:     recordStore,
		ledger:    batchLedger,
		engine:    engine,
		sink:      sink,
		latestCSV: latestCSV,
		mapHTML:   mapHTML,
	}
}

// Run processes all pending batches strictly one at a time, oldest first.
// Parse failures skip the batch and keep going; storage failures abort the
// run with already-committed batches left committed. The artifacts are only
// rebuilt when at least one batch was admitted.
func (r *Runner) Run(ctx context.Context) error {
	batches, err := r.source.Pending(ctx)
	if err != nil {
		return fmt.Errorf("fetching pending batches: %w", err)
	}
	if len(batches) == 0 {
		slog.Info("no new batches")
		return nil
	}

	reporting := make(map[string]struct{})
	processed := 0

	for _, batch := range batches {
		admitted, ids, err := r.processBatch(ctx, batch)
		if err != nil {
			var parseErr *ingest.ParseError
			if errors.As(err, &parseErr) {
				// Batch-scoped: skip it, leave it unconsumed, keep going.
				slog.Error("skipping malformed batch", "batch", batch.ID, "error", err)
				continue
			}
			return err
		}
		if admitted {
			processed++
			for id := range ids {
				reporting[id] = struct{}{}
			}
		}
	}

	if processed == 0 {
		slog.Info("no batches admitted, artifacts unchanged")
		return nil
	}

	return r.rebuildArtifacts(reporting)
}

// processBatch runs one batch through filter → append → alert-evaluate →
// mark-consumed. The consumption marker is only sent once both the append
// and the alert state persistence have succeeded.
func (r *Runner) processBatch(ctx context.Context, batch ingest.Batch) (bool, map[string]struct{}, error) {
	seen, err := r.ledger.Seen(ctx, batch.ID)
	if err != nil {
		return false, nil, fmt.Errorf("ledger check for batch %s: %w", batch.ID, err)
	}
	if seen {
		// Admitted by an earlier run that crashed before consumption
		// marking. Clear the transport side, then recover the batch's
		// reporting set so the records that run committed still make it
		// into the rebuilt artifacts.
		slog.Warn("batch already admitted, marking consumed", "batch", batch.ID)
		if err := r.source.MarkProcessed(ctx, batch.ID); err != nil {
			return false, nil, fmt.Errorf("marking batch %s consumed: %w", batch.ID, err)
		}
		records, err := ingest.ParseBatch(batch.ID, batch.Payload)
		if err != nil {
			// The batch parsed when it was admitted. Rebuild anyway so
			// its committed records get published.
			slog.Error("re-parsing admitted batch failed", "batch", batch.ID, "error", err)
			return true, nil, nil
		}
		return true, ingest.ReportingIDs(ingest.Filter(batch.ID, records, r.reg)), nil
	}

	records, err := ingest.ParseBatch(batch.ID, batch.Payload)
	if err != nil {
		return false, nil, err
	}

	cleaned := ingest.Filter(batch.ID, records, r.reg)
	slog.Info("batch filtered", "batch", batch.ID, "raw", len(records), "admitted", len(cleaned))

	if err := r.store.Append(cleaned); err != nil {
		return false, nil, err
	}

	events, err := r.engine.Evaluate(batch.ID, batch.ArrivedAt, cleaned)
	if err != nil {
		return false, nil, fmt.Errorf("evaluating alerts for batch %s: %w", batch.ID, err)
	}

	if err := r.ledger.MarkDone(ctx, batch.ID); err != nil {
		return false, nil, fmt.Errorf("recording batch %s in ledger: %w", batch.ID, err)
	}
	if err := r.source.MarkProcessed(ctx, batch.ID); err != nil {
		return false, nil, fmt.Errorf("marking batch %s consumed: %w", batch.ID, err)
	}

	if len(events) > 0 && r.sink != nil {
		r.sink.Dispatch(events)
	}

	slog.Info("batch processed", "batch", batch.ID, "records", len(cleaned), "alerts", len(events))
	return true, ingest.ReportingIDs(cleaned), nil
}

func (r *Runner) rebuildArtifacts(reporting map[string]struct{}) error {
	records, err := r.store.Scan()
	if err != nil {
		return err
	}

	v := view.Build(records, r.reg, reporting)
	if err := view.Write(r.latestCSV, v); err != nil {
		return err
	}
	if err := render.WriteMap(r.mapHTML, v, r.reg); err != nil {
		return err
	}

	slog.Info("artifacts rebuilt", "buoys", len(v), "latest", r.latestCSV, "map", r.mapHTML)
	return nil
}
