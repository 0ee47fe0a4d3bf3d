package worldgen

import (
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/astei/chunkforge/block"
	"github.com/astei/chunkforge/chunk"
	"github.com/astei/chunkforge/pipeline"
)

var ErrLightClosed = errors.New("worldgen: light engine closed")

type lightJob struct {
	c      chunk.Access
	wasLit bool
	done   *pipeline.Future[chunk.Access]
}

type lightSourceSetter interface {
	SetLightSources(lights []chunk.BlockPos)
}

// LightEngine lights chunks on its own worker goroutine, one at a time, in
// submission order.
type LightEngine struct {
	mu     sync.Mutex
	jobs   chan lightJob
	closed bool
	group  errgroup.Group
}

// NewLightEngine starts the engine's worker.
func NewLightEngine() *LightEngine {
	e := &LightEngine{jobs: make(chan lightJob, 64)}
	e.group.Go(func() error {
		for job := range e.jobs {
			job.done.Complete(e.light(job.c, job.wasLit))
		}
		return nil
	})
	return e
}

func (e *LightEngine) LightChunk(c chunk.Access, wasLit bool) *pipeline.Future[chunk.Access] {
	f := pipeline.NewFuture[chunk.Access]()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		f.Fail(ErrLightClosed)
		return f
	}
	e.jobs <- lightJob{c: c, wasLit: wasLit, done: f}
	return f
}

// light rescans the chunk for emitting blocks unless its light is already
// correct, then marks it lit.
func (e *LightEngine) light(c chunk.Access, wasLit bool) chunk.Access {
	if wasLit {
		return c
	}
	if setter, ok := c.(lightSourceSetter); ok {
		setter.SetLightSources(LightSources(c))
	}
	c.SetLightCorrect(true)
	return c
}

// LightSources lists every light emitting block of c, skipping sections
// whose palette holds no emitter.
func LightSources(c chunk.Access) []chunk.BlockPos {
	var out []chunk.BlockPos
	emits := func(st *block.State) bool { return st != nil && st.LightEmission > 0 }
	h := c.HeightAccessor()
	x0, z0 := c.Pos().MinBlockX(), c.Pos().MinBlockZ()
	for i, sec := range c.Sections() {
		if sec.HasOnlyAir() || !sec.MaybeHas(emits) {
			continue
		}
		y0 := h.SectionY(i) << 4
		sec.States().ForEach(func(idx int, st *block.State) {
			if !emits(st) {
				return
			}
			x, y, z := sec.States().Strategy().Coords(idx)
			out = append(out, chunk.BlockPos{X: x0 + x, Y: y0 + y, Z: z0 + z})
		})
	}
	return out
}

// Close stops the worker after the queued chunks are lit.
func (e *LightEngine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.jobs)
	e.mu.Unlock()
	return e.group.Wait()
}
