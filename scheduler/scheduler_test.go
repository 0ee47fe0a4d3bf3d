package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/astei/chunkforge/biome"
	"github.com/astei/chunkforge/block"
	"github.com/astei/chunkforge/chunk"
	"github.com/astei/chunkforge/pipeline"
)

func testContext(g pipeline.Generator) pipeline.Context {
	return pipeline.Context{
		Seed:      7,
		Height:    chunk.HeightAccessor{MinY: 0, Height: 16},
		Blocks:    block.Default(),
		Biomes:    biome.Default(),
		Generator: g,
	}
}

func wait(t *testing.T, f *pipeline.Future[chunk.Access]) (chunk.Access, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	c, err := f.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("timed out waiting for future")
	}
	return c, err
}

// neighbourCheck fails the stage when any chunk within r of the centre has
// not reached at least want.
func neighbourCheck(r int, want chunk.Status, calls *sync.Map) pipeline.StrategyFunc {
	return func(_ context.Context, c chunk.Access, w *pipeline.Window) error {
		n, _ := calls.LoadOrStore(c.Pos(), new(atomic.Int32))
		n.(*atomic.Int32).Add(1)
		var bad error
		c.Pos().Square(r, func(p chunk.Pos) bool {
			nc, ok := w.Chunk(p)
			if !ok || !nc.IsOrAfter(want) {
				bad = fmt.Errorf("neighbour %s of %s not at %s", p, c.Pos(), want)
				return false
			}
			return true
		})
		return bad
	}
}

type recordingPlacer struct {
	starts, refs sync.Map
}

func (p *recordingPlacer) CreateStarts(_ context.Context, c chunk.Access) error {
	p.starts.Store(c.Pos(), true)
	return nil
}

func (p *recordingPlacer) CreateReferences(_ context.Context, w *pipeline.Window, c chunk.Access) error {
	for _, n := range w.Chunks() {
		if !n.IsOrAfter(chunk.StatusStructureStarts) {
			return fmt.Errorf("neighbour %s has no starts yet", n.Pos())
		}
	}
	p.refs.Store(c.Pos(), true)
	return nil
}

func TestRequestBiomes(t *testing.T) {
	var calls sync.Map
	placer := &recordingPlacer{}
	gc := testContext(pipeline.Generator{Biomes: neighbourCheck(8, chunk.StatusStructureReferences, &calls)})
	gc.Structures = placer
	gc.GenerateStructures = true
	s := New(gc, Options{Workers: 4})
	defer s.Close()

	center := chunk.Pos{}
	c, err := wait(t, s.Request(center, chunk.StatusBiomes))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if c.Status() != chunk.StatusBiomes {
		t.Fatalf("expected status biomes, got %s", c.Status())
	}

	center.Square(16, func(p chunk.Pos) bool {
		got, ok := s.Chunk(p)
		if !ok {
			t.Fatalf("expected chunk %s to be held", p)
		}
		want, _ := pipeline.Required(chunk.StatusBiomes, p.Chebyshev(center))
		if !got.IsOrAfter(want) {
			t.Fatalf("expected %s at %s, got %s", p, want, got.Status())
		}
		if _, ok := placer.starts.Load(p); !ok {
			t.Fatalf("expected starts for %s", p)
		}
		return true
	})
	if _, ok := s.Chunk(chunk.Pos{X: 17}); ok {
		t.Fatalf("expected nothing generated beyond the biome radius")
	}
	if s.Loaded() != 33*33 {
		t.Fatalf("expected %d chunks held, got %d", 33*33, s.Loaded())
	}
	if _, ok := placer.refs.Load(chunk.Pos{X: 9}); ok {
		t.Fatalf("expected no references beyond range 8")
	}
	calls.Range(func(k, v any) bool {
		if k.(chunk.Pos) != center || v.(*atomic.Int32).Load() != 1 {
			t.Fatalf("expected biomes to run once for the centre only, got %v for %v", v.(*atomic.Int32).Load(), k)
		}
		return true
	})
}

func TestRequestsShareWork(t *testing.T) {
	var calls sync.Map
	gc := testContext(pipeline.Generator{Noise: neighbourCheck(8, chunk.StatusBiomes, &calls)})
	s := New(gc, Options{Workers: 8})
	defer s.Close()

	a := s.Request(chunk.Pos{}, chunk.StatusNoise)
	b := s.Request(chunk.Pos{X: 1}, chunk.StatusNoise)
	if a != s.Request(chunk.Pos{}, chunk.StatusNoise) {
		t.Fatalf("expected repeated requests to share a future")
	}
	for _, f := range []*pipeline.Future[chunk.Access]{a, b} {
		if _, err := wait(t, f); err != nil {
			t.Fatalf("request: %v", err)
		}
	}
	calls.Range(func(k, v any) bool {
		if n := v.(*atomic.Int32).Load(); n != 1 {
			t.Fatalf("expected noise to run once for %v, got %d", k, n)
		}
		return true
	})
}

func TestFailurePropagates(t *testing.T) {
	boom := errors.New("boom")
	bad := chunk.Pos{X: 3}
	gc := testContext(pipeline.Generator{Biomes: pipeline.StrategyFunc(func(_ context.Context, c chunk.Access, _ *pipeline.Window) error {
		if c.Pos() == bad {
			return boom
		}
		return nil
	})})
	s := New(gc, Options{Workers: 4})
	defer s.Close()

	_, err := wait(t, s.Request(chunk.Pos{}, chunk.StatusNoise))
	var se *pipeline.StageError
	if !errors.As(err, &se) || !errors.Is(err, boom) || se.Pos != bad || se.Stage != chunk.StatusBiomes {
		t.Fatalf("expected the failure of %s to surface, got %v", bad, err)
	}
	c, ok := s.Chunk(bad)
	if !ok || c.Status() != chunk.StatusStructureReferences {
		t.Fatalf("expected the failed chunk to keep its status")
	}
}

func TestLoadedChunkSkipsNeighbours(t *testing.T) {
	gc := testContext(pipeline.Generator{})
	stored := gc.NewProtoChunk(chunk.Pos{})
	stored.SetStatus(chunk.StatusNoise)
	var loads atomic.Int32
	loader := LoaderFunc(func(_ context.Context, pos chunk.Pos) (chunk.Access, error) {
		loads.Add(1)
		if pos == stored.Pos() {
			return stored, nil
		}
		return nil, nil
	})
	s := New(gc, Options{Workers: 2, Loader: loader})
	defer s.Close()

	c, err := wait(t, s.Request(chunk.Pos{}, chunk.StatusNoise))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if c != chunk.Access(stored) {
		t.Fatalf("expected the stored chunk back")
	}
	if loads.Load() != 1 || s.Loaded() != 1 {
		t.Fatalf("expected no neighbour work, got %d loads and %d chunks", loads.Load(), s.Loaded())
	}
}

func TestLoaderError(t *testing.T) {
	gc := testContext(pipeline.Generator{})
	broken := errors.New("disk on fire")
	s := New(gc, Options{Loader: LoaderFunc(func(context.Context, chunk.Pos) (chunk.Access, error) {
		return nil, broken
	})})
	defer s.Close()
	if _, err := wait(t, s.Request(chunk.Pos{}, chunk.StatusStructureStarts)); !errors.Is(err, broken) {
		t.Fatalf("expected loader error, got %v", err)
	}
}

func TestReleaseCancelsPendingWork(t *testing.T) {
	gate := make(chan struct{})
	gc := testContext(pipeline.Generator{})
	s := New(gc, Options{Workers: 2, Loader: LoaderFunc(func(context.Context, chunk.Pos) (chunk.Access, error) {
		<-gate
		return nil, nil
	})})
	defer s.Close()
	defer close(gate)

	f := s.Request(chunk.Pos{}, chunk.StatusStructureStarts)
	if !s.Release(chunk.Pos{}) {
		t.Fatalf("expected release to find the chunk")
	}
	if _, err := wait(t, f); !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if s.Release(chunk.Pos{}) {
		t.Fatalf("expected a second release to be a no-op")
	}
}

func TestRequestAfterClose(t *testing.T) {
	s := New(testContext(pipeline.Generator{}), Options{})
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := wait(t, s.Request(chunk.Pos{}, chunk.StatusBiomes)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestListenerSeesEveryStage(t *testing.T) {
	var mu sync.Mutex
	seen := map[chunk.Status]int{}
	gc := testContext(pipeline.Generator{})
	s := New(gc, Options{Listener: func(c chunk.Access, st chunk.Status) {
		if c.Pos() != (chunk.Pos{}) {
			return
		}
		mu.Lock()
		seen[st]++
		mu.Unlock()
	}})
	defer s.Close()
	if _, err := wait(t, s.Request(chunk.Pos{}, chunk.StatusSurface)); err != nil {
		t.Fatalf("request: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	for st := chunk.StatusStructureStarts; st <= chunk.StatusSurface; st++ {
		if seen[st] != 1 {
			t.Fatalf("expected one notification for %s, got %d", st, seen[st])
		}
	}
}

// TestFullChunk generates a Full chunk with features writing into every
// direct neighbour and checks no two writers ever overlap.
func TestFullChunk(t *testing.T) {
	if testing.Short() {
		t.Skip("generates the whole full-chunk neighbourhood")
	}
	var (
		busy   sync.Map
		ranFor sync.Map
	)
	gc := testContext(pipeline.Generator{})
	stone := gc.Blocks.MustGet("stone")
	gc.Generator.Features = pipeline.StrategyFunc(func(_ context.Context, c chunk.Access, w *pipeline.Window) error {
		ranFor.Store(c.Pos(), true)
		var claimed []chunk.Pos
		defer func() {
			for _, p := range claimed {
				busy.Delete(p)
			}
		}()
		var err error
		c.Pos().Square(1, func(p chunk.Pos) bool {
			if _, loaded := busy.LoadOrStore(p, c.Pos()); loaded {
				err = fmt.Errorf("%s written by two features tasks", p)
				return false
			}
			claimed = append(claimed, p)
			return true
		})
		if err != nil {
			return err
		}
		h := w.Center().HeightAccessor()
		if !w.SetBlockState(c.Pos().MinBlockX()-1, h.MinY, c.Pos().MinBlockZ()-1, stone) {
			return fmt.Errorf("neighbour write refused")
		}
		return nil
	})
	s := New(gc, Options{Workers: 8})
	defer s.Close()

	c, err := wait(t, s.Request(chunk.Pos{}, chunk.StatusFull))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	v, ok := c.(*chunk.View)
	if !ok || v.Mode() != chunk.ReadOnly {
		t.Fatalf("expected a read-only view, got %T", c)
	}
	chunk.Pos{}.Square(1, func(p chunk.Pos) bool {
		n, _ := s.Chunk(p)
		if !n.IsOrAfter(chunk.StatusFeatures) {
			t.Fatalf("expected %s at features, got %s", p, n.Status())
		}
		if _, ok := ranFor.Load(p); !ok {
			t.Fatalf("expected features to run for %s", p)
		}
		return true
	})
	if _, ok := s.Chunk(chunk.Pos{X: int32(pipeline.MaxDistance())}); !ok {
		t.Fatalf("expected the edge of the neighbourhood to be held")
	}
	if _, ok := s.Chunk(chunk.Pos{X: int32(pipeline.MaxDistance() + 1)}); ok {
		t.Fatalf("expected nothing beyond the neighbourhood")
	}
}
