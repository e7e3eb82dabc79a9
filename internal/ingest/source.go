package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Batch is one externally delivered group of position rows, processed as a
// unit. ArrivedAt orders batches within a run (oldest first).
type Batch struct {
	ID        string
	ArrivedAt time.Time
	Payload   []byte
}

// Source is the transport boundary. The mail retrieval machinery itself
// lives outside this system; the core only needs pending batches in arrival
// order and a way to mark a batch fully processed once its append and alert
// state persistence have both succeeded.
type Source interface {
	Pending(ctx context.Context) ([]Batch, error)
	MarkProcessed(ctx context.Context, batchID string) error
}

// DirSource serves batches from CSV drops in an inbox directory and moves
// consumed files to a processed directory, the filesystem equivalent of the
// unread/labelled mailbox split.
type DirSource struct {
	Inbox     string
	Processed string
}

func NewDirSource(inbox, processed string) *DirSource {
	return &DirSource{Inbox: inbox, Processed: processed}
}

func (s *DirSource) Pending(ctx context.Context) ([]Batch, error) {
	entries, err := os.ReadDir(s.Inbox)
	if err != nil {
		return nil, fmt.Errorf("reading inbox %s: %w", s.Inbox, err)
	}

	batches := make([]Batch, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		payload, err := os.ReadFile(filepath.Join(s.Inbox, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		batches = append(batches, Batch{
			ID:        entry.Name(),
			ArrivedAt: info.ModTime().UTC(),
			Payload:   payload,
		})
	}

	sort.Slice(batches, func(i, j int) bool {
		if batches[i].ArrivedAt.Equal(batches[j].ArrivedAt) {
			return batches[i].ID < batches[j].ID
		}
		return batches[i].ArrivedAt.Before(batches[j].ArrivedAt)
	})
	return batches, nil
}

func (s *DirSource) MarkProcessed(ctx context.Context, batchID string) error {
	if err := os.MkdirAll(s.Processed, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}
	src := filepath.Join(s.Inbox, batchID)
	dst := filepath.Join(s.Processed, batchID)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("marking %s processed: %w", batchID, err)
	}
	return nil
}
