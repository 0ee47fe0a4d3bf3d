// Package pipeline defines the ordered generation stages, the neighbour
// ranges each stage needs, and the tasks that advance a chunk through them.
package pipeline

import (
	"context"
	"fmt"

	"github.com/astei/chunkforge/chunk"
)

// ChunkKind tells whether a stage produces a proto chunk or a level chunk.
type ChunkKind uint8

const (
	KindProto ChunkKind = iota
	KindLevel
)

// SimpleTask runs a stage synchronously.
type SimpleTask func(ctx context.Context, gc *Context, w *Window, c chunk.Access) error

// AsyncTask runs a stage and reports completion through a future. The
// returned chunk replaces c for later stages.
type AsyncTask func(ctx context.Context, gc *Context, w *Window, c chunk.Access) *Future[chunk.Access]

// LoadTask brings a chunk loaded at or past the stage up to date without
// regenerating it.
type LoadTask func(ctx context.Context, gc *Context, c chunk.Access) *Future[chunk.Access]

// StageError reports a failed stage task. The chunk keeps its previous
// status.
type StageError struct {
	Stage chunk.Status
	Pos   chunk.Pos
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline: stage %s failed for chunk %s: %v", e.Stage, e.Pos, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Stage is one step of the generation pipeline.
type Stage struct {
	Status chunk.Status
	Parent chunk.Status
	// Range is the Chebyshev radius of chunks that must be at Parent before
	// the stage runs. Empty has range -1.
	Range int
	// WriteRadius is how far from the centre the stage may place blocks.
	WriteRadius int
	// Heightmaps are the heightmaps kept up to date after the stage.
	Heightmaps []chunk.HeightmapType
	Kind       ChunkKind

	task AsyncTask
	load LoadTask
}

func (s *Stage) String() string { return s.Status.String() }

// WindowRadius is the radius of the window the stage runs against.
func (s *Stage) WindowRadius() int { return max(0, s.Range) }

// Generate runs the stage on the centre of w. It is a no-op returning the
// centre unchanged when the centre is already at or past the stage, unless
// force is set. On success the status is advanced; on failure the future
// fails with a *StageError and the status is left alone.
func (s *Stage) Generate(ctx context.Context, gc *Context, w *Window, force bool) *Future[chunk.Access] {
	c := w.Center()
	if !force && c.IsOrAfter(s.Status) {
		return Completed(c)
	}
	if err := ctx.Err(); err != nil {
		return Failed[chunk.Access](&StageError{Stage: s.Status, Pos: c.Pos(), Err: err})
	}
	return s.finish(c.Pos(), s.task(ctx, gc, w, c))
}

// Load runs the stage's load task on a chunk that was read from storage at
// or past the stage. Stages without a load task pass the chunk through.
func (s *Stage) Load(ctx context.Context, gc *Context, c chunk.Access) *Future[chunk.Access] {
	if s.load == nil {
		c.SetStatus(s.Status)
		return Completed(c)
	}
	return s.finish(c.Pos(), s.load(ctx, gc, c))
}

func (s *Stage) finish(pos chunk.Pos, f *Future[chunk.Access]) *Future[chunk.Access] {
	out := NewFuture[chunk.Access]()
	f.Then(func(c chunk.Access, err error) {
		if err != nil {
			out.Fail(&StageError{Stage: s.Status, Pos: pos, Err: err})
			return
		}
		c.SetStatus(s.Status)
		out.Complete(c)
	})
	return out
}

// stageRanges is the published neighbour range per stage.
var stageRanges = [chunk.NumStatuses]int{
	chunk.StatusEmpty:               -1,
	chunk.StatusStructureStarts:     0,
	chunk.StatusStructureReferences: 8,
	chunk.StatusBiomes:              8,
	chunk.StatusNoise:               8,
	chunk.StatusSurface:             8,
	chunk.StatusCarvers:             8,
	chunk.StatusLiquidCarvers:       8,
	chunk.StatusFeatures:            8,
	chunk.StatusLight:               1,
	chunk.StatusSpawn:               0,
	chunk.StatusHeightmaps:          0,
	chunk.StatusFull:                0,
}

var stages [chunk.NumStatuses]*Stage

func register(status chunk.Status, kind ChunkKind, writeRadius int, task AsyncTask, load LoadTask) {
	stages[status] = &Stage{
		Status:      status,
		Parent:      status.Parent(),
		Range:       stageRanges[status],
		WriteRadius: writeRadius,
		Heightmaps:  status.Heightmaps(),
		Kind:        kind,
		task:        task,
		load:        load,
	}
}

// simple wraps a synchronous task into the asynchronous shape.
func simple(task SimpleTask) AsyncTask {
	return func(ctx context.Context, gc *Context, w *Window, c chunk.Access) *Future[chunk.Access] {
		if err := task(ctx, gc, w, c); err != nil {
			return Failed[chunk.Access](err)
		}
		return Completed(c)
	}
}

func init() {
	register(chunk.StatusEmpty, KindProto, 0, simple(noop), nil)
	register(chunk.StatusStructureStarts, KindProto, 0, simple(structureStarts), nil)
	register(chunk.StatusStructureReferences, KindProto, 0, simple(structureReferences), nil)
	register(chunk.StatusBiomes, KindProto, 0, biomes, nil)
	register(chunk.StatusNoise, KindProto, 0, noise, nil)
	register(chunk.StatusSurface, KindProto, 0, simple(strategy(func(g Generator) Strategy { return g.Surface })), nil)
	register(chunk.StatusCarvers, KindProto, 0, simple(strategy(func(g Generator) Strategy { return g.Carvers })), nil)
	register(chunk.StatusLiquidCarvers, KindProto, 0, simple(strategy(func(g Generator) Strategy { return g.LiquidCarvers })), nil)
	register(chunk.StatusFeatures, KindProto, 1, simple(features), nil)
	register(chunk.StatusLight, KindProto, 0, light, lightLoad)
	register(chunk.StatusSpawn, KindProto, 0, simple(strategy(func(g Generator) Strategy { return g.Spawn })), nil)
	register(chunk.StatusHeightmaps, KindProto, 0, simple(noop), nil)
	register(chunk.StatusFull, KindLevel, 0, full, fullLoad)
}

// ByStatus returns the stage producing s.
func ByStatus(s chunk.Status) *Stage {
	return stages[s]
}

// Stages lists every stage in pipeline order.
func Stages() []*Stage {
	return append([]*Stage(nil), stages[:]...)
}
