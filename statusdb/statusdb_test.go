package statusdb

import (
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/astei/chunkforge/chunk"
)

func openTestIndex(t *testing.T) (*Index, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "status.db")
	x, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { x.Close() })
	return x, path
}

func TestStatusOnlyMovesForward(t *testing.T) {
	x, _ := openTestIndex(t)
	p := chunk.Pos{X: -4, Z: 9}
	if _, ok, err := x.Status(p); ok || err != nil {
		t.Fatalf("expected no entry, got ok=%v err=%v", ok, err)
	}
	x.Record(p, chunk.StatusNoise)
	x.Record(p, chunk.StatusBiomes)
	if err := x.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	s, ok, err := x.Status(p)
	if err != nil || !ok || s != chunk.StatusNoise {
		t.Fatalf("expected noise, got %s ok=%v err=%v", s, ok, err)
	}
	x.Record(p, chunk.StatusFull)
	if err := x.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if s, _, _ := x.Status(p); s != chunk.StatusFull {
		t.Fatalf("expected full, got %s", s)
	}
}

func TestCountsUnderConcurrentRecords(t *testing.T) {
	x, _ := openTestIndex(t)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				p := chunk.Pos{X: int32(w), Z: int32(i)}
				x.Record(p, chunk.StatusBiomes)
				if i%2 == 0 {
					x.Record(p, chunk.StatusFull)
				}
			}
		}(w)
	}
	wg.Wait()
	if err := x.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	counts, err := x.Counts()
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts[chunk.StatusFull] != 400 || counts[chunk.StatusBiomes] != 400 {
		t.Fatalf("expected 400 full and 400 biomes, got %v", counts)
	}
}

func TestRunsAttributeRecords(t *testing.T) {
	x, path := openTestIndex(t)
	id, err := x.BeginRun(42, chunk.StatusFeatures)
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	x.Record(chunk.Pos{X: 1, Z: 2}, chunk.StatusFeatures)
	if err := x.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	var (
		run    string
		status string
	)
	row := db.QueryRow(`SELECT run_id,status_name FROM chunks WHERE x=1 AND z=2`)
	if err := row.Scan(&run, &status); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if run != id.String() || status != "features" {
		t.Fatalf("row mismatch: run=%s status=%s", run, status)
	}

	x2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer x2.Close()
	runs, err := x2.Runs()
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != id || runs[0].Seed != 42 || runs[0].Target != chunk.StatusFeatures {
		t.Fatalf("unexpected runs %+v", runs)
	}
}

func TestClosedIndex(t *testing.T) {
	x, _ := openTestIndex(t)
	if err := x.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	x.Record(chunk.Pos{}, chunk.StatusFull)
	if err := x.Sync(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := x.BeginRun(1, chunk.StatusFull); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, _, err := x.Status(chunk.Pos{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed from Status, got %v", err)
	}
	if _, err := x.Counts(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed from Counts, got %v", err)
	}
	if _, err := x.Runs(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed from Runs, got %v", err)
	}
	if err := x.Close(); err != nil {
		t.Fatalf("expected a second Close to be a no-op, got %v", err)
	}
}
