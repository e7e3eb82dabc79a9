// Package ingest admits externally delivered position batches into the
// pipeline: it parses raw CSV payloads into typed records and filters out
// pre-activation noise and unknown buoys before anything reaches the log.
package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/oceanlab/driftwatch/internal/models"
)

// ParseError reports a malformed batch payload. Batch-scoped: the batch is
// skipped and reported, the run continues with the remaining batches.
type ParseError struct {
	BatchID string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("batch %s: %v", e.BatchID, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseBatch decodes a raw CSV attachment into typed records. Required
// columns: D_number, date_UTC, Latitude, Longitude; batteryState is
// optional. Any malformed row fails the whole batch with a ParseError;
// loosely typed rows do not get to propagate past this boundary.
func ParseBatch(batchID string, payload []byte) ([]models.BuoyRecord, error) {
	r := csv.NewReader(bytes.NewReader(payload))
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, &ParseError{BatchID: batchID, Err: err}
	}
	if len(rows) == 0 {
		return nil, &ParseError{BatchID: batchID, Err: fmt.Errorf("empty payload")}
	}

	header := rows[0]
	header[0] = strings.TrimPrefix(header[0], "\ufeff")
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"D_number", "date_UTC", "Latitude", "Longitude"} {
		if _, ok := idx[required]; !ok {
			return nil, &ParseError{BatchID: batchID, Err: fmt.Errorf("missing column %q", required)}
		}
	}
	batteryCol, hasBattery := idx["batteryState"]

	records := make([]models.BuoyRecord, 0, len(rows)-1)
	for n, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, &ParseError{BatchID: batchID, Err: fmt.Errorf("row %d: expected %d fields, got %d", n+2, len(header), len(row))}
		}

		id := models.NormalizeID(row[idx["D_number"]])
		if id == "" {
			return nil, &ParseError{BatchID: batchID, Err: fmt.Errorf("row %d: empty D_number", n+2)}
		}
		ts, err := models.ParseTime(row[idx["date_UTC"]])
		if err != nil {
			return nil, &ParseError{BatchID: batchID, Err: fmt.Errorf("row %d: bad date_UTC: %w", n+2, err)}
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(row[idx["Latitude"]]), 64)
		if err != nil {
			return nil, &ParseError{BatchID: batchID, Err: fmt.Errorf("row %d: bad Latitude: %w", n+2, err)}
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(row[idx["Longitude"]]), 64)
		if err != nil {
			return nil, &ParseError{BatchID: batchID, Err: fmt.Errorf("row %d: bad Longitude: %w", n+2, err)}
		}

		battery := models.BatteryUnknown
		if hasBattery {
			battery = models.ParseBatteryState(row[batteryCol])
		}

		records = append(records, models.BuoyRecord{
			ID:        id,
			Time:      ts,
			Latitude:  lat,
			Longitude: lon,
			Battery:   battery,
		})
	}
	return records, nil
}
