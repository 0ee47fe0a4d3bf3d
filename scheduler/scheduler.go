// Package scheduler drives chunks through the generation pipeline on a
// bounded worker pool. Dependencies between chunks are built lazily as a DAG
// of futures, one per (position, status); workers never wait on a future.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/astei/chunkforge/chunk"
	"github.com/astei/chunkforge/pipeline"
)

var (
	ErrClosed    = errors.New("scheduler: closed")
	ErrCancelled = errors.New("scheduler: chunk released")
)

// Loader reads a chunk from storage. A nil chunk with a nil error means
// nothing is stored at pos and the chunk is generated from scratch.
type Loader interface {
	Load(ctx context.Context, pos chunk.Pos) (chunk.Access, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, pos chunk.Pos) (chunk.Access, error)

func (f LoaderFunc) Load(ctx context.Context, pos chunk.Pos) (chunk.Access, error) {
	return f(ctx, pos)
}

// Listener is told whenever a stage has been generated for a chunk. It runs
// on a worker and must not block for long.
type Listener func(c chunk.Access, s chunk.Status)

type Options struct {
	// Workers bounds the pool; zero means GOMAXPROCS.
	Workers  int
	Loader   Loader
	Listener Listener
	Logger   *log.Logger
}

type holder struct {
	pos chunk.Pos
	// area is held while a stage task runs with this chunk inside its write
	// radius.
	area     sync.Mutex
	released atomic.Bool

	// futures is guarded by Scheduler.mu.
	futures [chunk.NumStatuses]*pipeline.Future[chunk.Access]

	curMu   sync.Mutex
	current chunk.Access
}

func (h *holder) setCurrent(c chunk.Access) {
	h.curMu.Lock()
	h.current = c
	h.curMu.Unlock()
}

func (h *holder) get() chunk.Access {
	h.curMu.Lock()
	defer h.curMu.Unlock()
	return h.current
}

// Scheduler owns every chunk it has been asked about until released.
type Scheduler struct {
	gc       pipeline.Context
	loader   Loader
	listener Listener
	logger   *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	holders map[chunk.Pos]*holder
	closed  bool

	qmu     sync.Mutex
	qcond   *sync.Cond
	queue   []func()
	closing bool
	drained bool

	group      *errgroup.Group
	dispatched chan struct{}

	generated atomic.Int64
}

// New starts a scheduler. The executor of gc is replaced by the scheduler's
// own pool.
func New(gc pipeline.Context, opts Options) *Scheduler {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Scheduler{
		loader:     opts.Loader,
		listener:   opts.Listener,
		logger:     logger,
		holders:    make(map[chunk.Pos]*holder),
		group:      new(errgroup.Group),
		dispatched: make(chan struct{}),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.qcond = sync.NewCond(&s.qmu)
	s.group.SetLimit(workers)

	gc.Executor = s.enqueue
	if gc.Logger == nil {
		gc.Logger = logger
	}
	s.gc = gc

	go s.dispatch()
	return s
}

// Context is the generation context stages run with.
func (s *Scheduler) Context() *pipeline.Context { return &s.gc }

// Request returns the future of pos reaching target, scheduling whatever
// work that needs. Repeated requests share one future.
func (s *Scheduler) Request(pos chunk.Pos, target chunk.Status) *pipeline.Future[chunk.Access] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return pipeline.Failed[chunk.Access](ErrClosed)
	}
	return s.futureLocked(pos, target)
}

// Chunk returns the latest chunk object held for pos.
func (s *Scheduler) Chunk(pos chunk.Pos) (chunk.Access, bool) {
	s.mu.Lock()
	h := s.holders[pos]
	s.mu.Unlock()
	if h == nil {
		return nil, false
	}
	c := h.get()
	return c, c != nil
}

// Loaded is the number of chunks currently held.
func (s *Scheduler) Loaded() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.holders)
}

// Generated is the number of stages run so far.
func (s *Scheduler) Generated() int64 { return s.generated.Load() }

// Release forgets pos. Pending work for it is dropped and its unsettled
// futures fail with ErrCancelled, as do requests depending on them.
func (s *Scheduler) Release(pos chunk.Pos) bool {
	s.mu.Lock()
	h := s.holders[pos]
	if h == nil {
		s.mu.Unlock()
		return false
	}
	delete(s.holders, pos)
	h.released.Store(true)
	futures := h.futures
	s.mu.Unlock()

	for _, f := range futures {
		if f != nil {
			f.Fail(fmt.Errorf("%w: %s", ErrCancelled, pos))
		}
	}
	return true
}

// Close stops the pool. Queued work fails with ErrClosed; Close waits for
// running tasks to finish.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.qmu.Lock()
	s.closing = true
	s.qcond.Broadcast()
	s.qmu.Unlock()
	<-s.dispatched
	return s.group.Wait()
}

func (s *Scheduler) holderLocked(pos chunk.Pos) *holder {
	h := s.holders[pos]
	if h == nil {
		h = &holder{pos: pos}
		s.holders[pos] = h
	}
	return h
}

func (s *Scheduler) futureLocked(pos chunk.Pos, target chunk.Status) *pipeline.Future[chunk.Access] {
	h := s.holderLocked(pos)
	if f := h.futures[target]; f != nil {
		return f
	}
	f := pipeline.NewFuture[chunk.Access]()
	h.futures[target] = f
	if target == chunk.StatusEmpty {
		s.submit(h, f, func() { s.load(h, f) })
		return f
	}
	stage := pipeline.ByStatus(target)
	parent := s.futureLocked(pos, stage.Parent)
	parent.Then(func(c chunk.Access, err error) {
		if err != nil {
			f.Fail(err)
			return
		}
		s.submit(h, f, func() { s.plan(h, stage, c, f) })
	})
	return f
}

// load produces the Empty future: the stored chunk when there is one,
// otherwise a fresh proto chunk.
func (s *Scheduler) load(h *holder, f *pipeline.Future[chunk.Access]) {
	var c chunk.Access
	if s.loader != nil {
		loaded, err := s.loader.Load(s.ctx, h.pos)
		if err != nil {
			s.logger.Printf("failed to load chunk %s: %v", h.pos, err)
			f.Fail(fmt.Errorf("scheduler: load %s: %w", h.pos, err))
			return
		}
		c = loaded
	}
	if c == nil {
		c = s.gc.NewProtoChunk(h.pos)
	}
	h.setCurrent(c)
	f.Complete(c)
}

// plan runs once the chunk itself reached the stage's parent. A chunk that
// already satisfies the stage only needs the load task; otherwise every
// neighbour in range must reach the parent first.
func (s *Scheduler) plan(h *holder, stage *pipeline.Stage, c chunk.Access, f *pipeline.Future[chunk.Access]) {
	if c.IsOrAfter(stage.Status) {
		stage.Load(s.ctx, &s.gc, c).Then(func(c chunk.Access, err error) {
			if err != nil {
				f.Fail(err)
				return
			}
			h.setCurrent(c)
			f.Complete(c)
		})
		return
	}

	radius := stage.WindowRadius()
	deps := make([]*pipeline.Future[chunk.Access], 0, (2*radius+1)*(2*radius+1))
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		f.Fail(ErrClosed)
		return
	}
	h.pos.Square(radius, func(p chunk.Pos) bool {
		deps = append(deps, s.futureLocked(p, stage.Parent))
		return true
	})
	s.mu.Unlock()

	pipeline.All(deps...).Then(func(chunks []chunk.Access, err error) {
		if err != nil {
			f.Fail(err)
			return
		}
		s.submit(h, f, func() { s.run(h, stage, chunks, f) })
	})
}

func (s *Scheduler) run(h *holder, stage *pipeline.Stage, chunks []chunk.Access, f *pipeline.Future[chunk.Access]) {
	w := pipeline.NewWindow(h.pos, stage.WindowRadius(), stage.WriteRadius, stage.Status, chunks)
	unlock := s.lockArea(h.pos, stage.WriteRadius)
	stage.Generate(s.ctx, &s.gc, w, false).Then(func(c chunk.Access, err error) {
		unlock()
		if err != nil {
			s.logger.Printf("%v", err)
			f.Fail(err)
			return
		}
		s.generated.Add(1)
		h.setCurrent(c)
		if s.listener != nil {
			s.listener(c, stage.Status)
		}
		f.Complete(c)
	})
}

// lockArea locks every chunk within r of pos, row by row, so overlapping
// areas always lock in the same order.
func (s *Scheduler) lockArea(pos chunk.Pos, r int) (unlock func()) {
	var area []*holder
	s.mu.Lock()
	pos.Square(r, func(p chunk.Pos) bool {
		if h := s.holders[p]; h != nil {
			area = append(area, h)
		}
		return true
	})
	s.mu.Unlock()
	for _, h := range area {
		h.area.Lock()
	}
	return func() {
		for i := len(area) - 1; i >= 0; i-- {
			area[i].area.Unlock()
		}
	}
}

// submit queues work for h that settles f. The work is skipped, failing f,
// when h was released or the scheduler closed in the meantime.
func (s *Scheduler) submit(h *holder, f *pipeline.Future[chunk.Access], work func()) {
	s.enqueue(func() {
		switch {
		case h.released.Load():
			f.Fail(fmt.Errorf("%w: %s", ErrCancelled, h.pos))
		case s.ctx.Err() != nil:
			f.Fail(ErrClosed)
		default:
			work()
		}
	})
}

// enqueue appends a task to the FIFO queue. Once the dispatcher is gone the
// task runs inline; by then it only settles futures.
func (s *Scheduler) enqueue(task func()) {
	s.qmu.Lock()
	if s.drained {
		s.qmu.Unlock()
		task()
		return
	}
	s.queue = append(s.queue, task)
	s.qcond.Signal()
	s.qmu.Unlock()
}

func (s *Scheduler) dispatch() {
	defer close(s.dispatched)
	for {
		s.qmu.Lock()
		for len(s.queue) == 0 && !s.closing {
			s.qcond.Wait()
		}
		if len(s.queue) == 0 {
			s.drained = true
			s.qmu.Unlock()
			return
		}
		task := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.qmu.Unlock()

		s.group.Go(func() error {
			task()
			return nil
		})
	}
}
