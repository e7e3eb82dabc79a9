package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/oceanlab/driftwatch/internal/alert"
	"github.com/oceanlab/driftwatch/internal/ingest"
	"github.com/oceanlab/driftwatch/internal/ledger"
	"github.com/oceanlab/driftwatch/internal/registry"
	"github.com/oceanlab/driftwatch/internal/store"
)

type captureSink struct {
	events []alert.Event
}

func (s *captureSink) Dispatch(events []alert.Event) {
	s.events = append(s.events, events...)
}

type fixture struct {
	runner    *Runner
	sink      *captureSink
	source    *ingest.DirSource
	store     *store.RecordStore
	inbox     string
	latestCSV string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	inbox := filepath.Join(dir, "inbox")
	if err := os.MkdirAll(inbox, 0o755); err != nil {
		t.Fatal(err)
	}

	homeCSV := filepath.Join(dir, "home_positions.csv")
	home := "D_number,Latitude,Longitude,activation_UTC\n" +
		"D4711,54.0000,8.0000,2024-03-01 12:00:00\n" +
		"D4712,53.9000,7.9000,2024-03-01 12:00:00\n"
	if err := os.WriteFile(homeCSV, []byte(home), 0o644); err != nil {
		t.Fatal(err)
	}
	reg, err := registry.Load(homeCSV)
	if err != nil {
		t.Fatalf("registry load failed: %v", err)
	}

	source := ingest.NewDirSource(inbox, filepath.Join(dir, "processed"))
	recordStore := store.New(filepath.Join(dir, "drifters.csv"))

	batchLedger, err := ledger.Open(filepath.Join(dir, "ledger.db"))
	if err != nil {
		t.Fatalf("ledger open failed: %v", err)
	}
	t.Cleanup(func() { batchLedger.Close() })

	engine, err := alert.NewEngine(reg, alert.NewStateStore(filepath.Join(dir, "alerted.json")), 50.0)
	if err != nil {
		t.Fatalf("engine init failed: %v", err)
	}

	sink := &captureSink{}
	latestCSV := filepath.Join(dir, "latest_positions.csv")
	runner := NewRunner(reg, source, recordStore, batchLedger, engine, sink,
		latestCSV, filepath.Join(dir, "map.html"))

	return &fixture{
		runner:    runner,
		sink:      sink,
		source:    source,
		store:     recordStore,
		inbox:     inbox,
		latestCSV: latestCSV,
	}
}

func (f *fixture) dropBatch(t *testing.T, name, content string, arrived time.Time) {
	t.Helper()
	path := filepath.Join(f.inbox, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, arrived, arrived); err != nil {
		t.Fatal(err)
	}
}

const fullBatch = "D_number,date_UTC,Latitude,Longitude,batteryState\n" +
	"D4711,2024-03-02 10:00:00,54.0005,8.0000,GOOD\n" +
	"D4712,2024-03-02 10:00:00,53.9000,7.9000,GOOD\n"

func TestRunner_EndToEnd(t *testing.T) {
	f := newFixture(t)
	f.dropBatch(t, "batch-1.csv", fullBatch, time.Now().Add(-time.Hour))

	if err := f.runner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// D4711 is ~55.6 m out: one drift alert, no silence alerts.
	if len(f.sink.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(f.sink.events))
	}
	if f.sink.events[0].Kind != alert.CondDrift || f.sink.events[0].BuoyID != "D4711" {
		t.Errorf("unexpected event: %+v", f.sink.events[0])
	}

	records, err := f.store.Scan()
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records in store, got %d", len(records))
	}

	if _, err := os.Stat(f.latestCSV); err != nil {
		t.Errorf("expected latest view artifact: %v", err)
	}

	// Batch consumed: nothing pending.
	pending, err := f.source.Pending(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("expected batch consumed, %d still pending", len(pending))
	}
}

func TestRunner_MalformedBatchSkippedRunContinues(t *testing.T) {
	f := newFixture(t)
	f.dropBatch(t, "batch-1.csv", "not,a,real\nbatch", time.Now().Add(-2*time.Hour))
	f.dropBatch(t, "batch-2.csv", fullBatch, time.Now().Add(-time.Hour))

	if err := f.runner.Run(context.Background()); err != nil {
		t.Fatalf("Run must survive a malformed batch: %v", err)
	}

	records, err := f.store.Scan()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Errorf("expected the good batch appended, got %d records", len(records))
	}

	// The malformed batch stays pending for operator attention.
	pending, err := f.source.Pending(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != "batch-1.csv" {
		t.Errorf("expected malformed batch still pending, got %+v", pending)
	}
}

func TestRunner_CrashBeforeConsumptionMarkIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.dropBatch(t, "batch-1.csv", fullBatch, time.Now().Add(-time.Hour))

	if err := f.runner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	firstEvents := len(f.sink.events)

	// Simulate the crash window: the batch reappears in the inbox even
	// though append + alert persistence + ledger mark all completed, and
	// the crash happened before the artifacts were written.
	f.dropBatch(t, "batch-1.csv", fullBatch, time.Now().Add(-time.Hour))
	if err := os.Remove(f.latestCSV); err != nil {
		t.Fatal(err)
	}

	if err := f.runner.Run(context.Background()); err != nil {
		t.Fatalf("re-run failed: %v", err)
	}

	records, err := f.store.Scan()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Errorf("re-delivered batch must not be re-appended, got %d records", len(records))
	}
	if len(f.sink.events) != firstEvents {
		t.Errorf("re-delivered batch must not re-alert, got %d new events", len(f.sink.events)-firstEvents)
	}

	// The committed records must still reach the published artifacts.
	if _, err := os.Stat(f.latestCSV); err != nil {
		t.Errorf("expected latest view rebuilt after recovering the batch: %v", err)
	}

	// And it is cleared from the inbox this time.
	pending, err := f.source.Pending(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("expected re-delivered batch consumed, %d pending", len(pending))
	}
}

func TestRunner_SilenceThenRecoveryAcrossRuns(t *testing.T) {
	f := newFixture(t)

	// Run 1: D4712 is silent.
	partial := "D_number,date_UTC,Latitude,Longitude,batteryState\n" +
		"D4711,2024-03-02 10:00:00,54.0000,8.0000,GOOD\n"
	f.dropBatch(t, "batch-1.csv", partial, time.Now().Add(-2*time.Hour))
	if err := f.runner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(f.sink.events) != 1 || f.sink.events[0].Kind != alert.CondSilence {
		t.Fatalf("expected exactly one silence event, got %+v", f.sink.events)
	}

	// Run 2: D4712 reports again; no new events.
	later := "D_number,date_UTC,Latitude,Longitude,batteryState\n" +
		"D4711,2024-03-02 11:00:00,54.0000,8.0000,GOOD\n" +
		"D4712,2024-03-02 11:00:00,53.9000,7.9000,GOOD\n"
	f.dropBatch(t, "batch-2.csv", later, time.Now().Add(-time.Hour))
	if err := f.runner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(f.sink.events) != 1 {
		t.Errorf("recovery must not emit events, got %+v", f.sink.events[1:])
	}
}

func TestRunner_NoBatchesIsANoop(t *testing.T) {
	f := newFixture(t)
	if err := f.runner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, err := os.Stat(f.latestCSV); !os.IsNotExist(err) {
		t.Error("artifacts must not be rebuilt when nothing was admitted")
	}
}
