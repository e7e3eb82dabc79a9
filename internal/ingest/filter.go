package ingest

import (
	"log/slog"

	"github.com/oceanlab/driftwatch/internal/models"
	"github.com/oceanlab/driftwatch/internal/registry"
)

// Filter drops records the pipeline must never admit: reports from buoys
// without a home registry entry (dropped with a warning) and reports taken at
// or before the buoy's activation time. Relative order is preserved; records
// are not deduplicated against store history; batch-level idempotency is the
// ledger's contract, not a content comparison here.
func Filter(batchID string, records []models.BuoyRecord, reg registry.Registry) []models.BuoyRecord {
	cleaned := make([]models.BuoyRecord, 0, len(records))
	for _, rec := range records {
		home, known := reg[rec.ID]
		if !known {
			slog.Warn("dropping record for unknown buoy", "batch", batchID, "buoy", rec.ID)
			continue
		}
		if !rec.Time.After(home.ActivatedAt) {
			slog.Debug("dropping pre-activation record", "batch", batchID, "buoy", rec.ID, "time", rec.Time)
			continue
		}
		cleaned = append(cleaned, rec)
	}
	return cleaned
}

// ReportingIDs returns the set of buoys present in a cleaned batch.
func ReportingIDs(records []models.BuoyRecord) map[string]struct{} {
	ids := make(map[string]struct{}, len(records))
	for _, rec := range records {
		ids[rec.ID] = struct{}{}
	}
	return ids
}
