package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/oceanlab/driftwatch/internal/models"
	"github.com/oceanlab/driftwatch/internal/registry"
)

const sampleBatch = "D_number,date_UTC,Latitude,Longitude,batteryState\n" +
	"D4711,2024-03-02 10:00:00,54.0005,8.0000,GOOD\n" +
	" D4712 ,2024-03-02 10:05:00,53.9000,7.9000,low\n"

func TestParseBatch(t *testing.T) {
	records, err := ParseBatch("b1.csv", []byte(sampleBatch))
	if err != nil {
		t.Fatalf("ParseBatch failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "D4711" || records[0].Latitude != 54.0005 {
		t.Errorf("unexpected first record: %+v", records[0])
	}
	if records[1].ID != "D4712" {
		t.Errorf("expected trimmed ID D4712, got %q", records[1].ID)
	}
	if records[1].Battery != models.BatteryLow {
		t.Errorf("expected normalized LOW battery state, got %q", records[1].Battery)
	}
	want := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	if !records[0].Time.Equal(want) {
		t.Errorf("expected %v, got %v", want, records[0].Time)
	}
}

func TestParseBatch_MissingBatteryColumn(t *testing.T) {
	payload := "D_number,date_UTC,Latitude,Longitude\nD1,2024-03-02 10:00:00,54.0,8.0\n"
	records, err := ParseBatch("b.csv", []byte(payload))
	if err != nil {
		t.Fatalf("ParseBatch failed: %v", err)
	}
	if records[0].Battery != models.BatteryUnknown {
		t.Errorf("expected UNKNOWN battery, got %q", records[0].Battery)
	}
}

func TestParseBatch_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty payload":    "",
		"missing column":   "D_number,Latitude,Longitude\nD1,54.0,8.0\n",
		"bad timestamp":    "D_number,date_UTC,Latitude,Longitude\nD1,yesterday,54.0,8.0\n",
		"bad coordinate":   "D_number,date_UTC,Latitude,Longitude\nD1,2024-03-02 10:00:00,far,8.0\n",
		"ragged row":       "D_number,date_UTC,Latitude,Longitude\nD1,2024-03-02 10:00:00,54.0\n",
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseBatch("bad.csv", []byte(payload))
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Errorf("expected ParseError, got %v", err)
			}
			if parseErr != nil && parseErr.BatchID != "bad.csv" {
				t.Errorf("expected batch ID in error, got %q", parseErr.BatchID)
			}
		})
	}
}

func testRegistry() registry.Registry {
	activated := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return registry.Registry{
		"D4711": {ID: "D4711", Latitude: 54.0, Longitude: 8.0, ActivatedAt: activated},
		"D4712": {ID: "D4712", Latitude: 53.9, Longitude: 7.9, ActivatedAt: activated},
	}
}

func TestFilter_ActivationTime(t *testing.T) {
	reg := testRegistry()
	activated := reg["D4711"].ActivatedAt

	records := []models.BuoyRecord{
		{ID: "D4711", Time: activated.Add(-time.Hour)},   // before activation
		{ID: "D4711", Time: activated},                   // exactly at activation
		{ID: "D4711", Time: activated.Add(time.Second)},  // after activation
	}

	cleaned := Filter("b1.csv", records, reg)
	if len(cleaned) != 1 {
		t.Fatalf("expected 1 record after activation filter, got %d", len(cleaned))
	}
	if !cleaned[0].Time.After(activated) {
		t.Errorf("retained record must be strictly after activation, got %v", cleaned[0].Time)
	}
}

func TestFilter_UnknownBuoyDropped(t *testing.T) {
	reg := testRegistry()
	ts := reg["D4711"].ActivatedAt.Add(time.Hour)

	records := []models.BuoyRecord{
		{ID: "D9999", Time: ts},
		{ID: "D4711", Time: ts},
	}

	cleaned := Filter("b1.csv", records, reg)
	if len(cleaned) != 1 || cleaned[0].ID != "D4711" {
		t.Errorf("expected only the known buoy to survive, got %+v", cleaned)
	}
}

func TestFilter_PreservesOrder(t *testing.T) {
	reg := testRegistry()
	ts := reg["D4711"].ActivatedAt.Add(time.Hour)

	records := []models.BuoyRecord{
		{ID: "D4712", Time: ts},
		{ID: "D4711", Time: ts.Add(time.Minute)},
		{ID: "D4712", Time: ts.Add(2 * time.Minute)},
	}

	cleaned := Filter("b1.csv", records, reg)
	if len(cleaned) != 3 {
		t.Fatalf("expected 3 records, got %d", len(cleaned))
	}
	if cleaned[0].ID != "D4712" || cleaned[1].ID != "D4711" || cleaned[2].ID != "D4712" {
		t.Errorf("relative order not preserved: %+v", cleaned)
	}
}

func TestDirSource_PendingAndMarkProcessed(t *testing.T) {
	inbox := t.TempDir()
	processed := filepath.Join(t.TempDir(), "processed")
	src := NewDirSource(inbox, processed)

	older := filepath.Join(inbox, "batch-a.csv")
	newer := filepath.Join(inbox, "batch-b.csv")
	if err := os.WriteFile(older, []byte(sampleBatch), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(newer, []byte(sampleBatch), 0o644); err != nil {
		t.Fatal(err)
	}
	// Also drop a non-CSV file that must be ignored.
	if err := os.WriteFile(filepath.Join(inbox, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	if err := os.Chtimes(older, now.Add(-2*time.Hour), now.Add(-2*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(newer, now.Add(-time.Hour), now.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}

	batches, err := src.Pending(context.Background())
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	if batches[0].ID != "batch-a.csv" || batches[1].ID != "batch-b.csv" {
		t.Errorf("expected oldest-first order, got %s then %s", batches[0].ID, batches[1].ID)
	}

	if err := src.MarkProcessed(context.Background(), "batch-a.csv"); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(processed, "batch-a.csv")); err != nil {
		t.Errorf("expected batch moved to processed dir: %v", err)
	}

	remaining, err := src.Pending(context.Background())
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != "batch-b.csv" {
		t.Errorf("expected only batch-b.csv pending, got %+v", remaining)
	}
}
