package pipeline

import (
	"context"
	"io"
	"log"

	"github.com/astei/chunkforge/biome"
	"github.com/astei/chunkforge/block"
	"github.com/astei/chunkforge/chunk"
)

// Strategy shapes terrain for one stage. Implementations write to the
// centre chunk, or through the window within its write radius.
type Strategy interface {
	Apply(ctx context.Context, c chunk.Access, w *Window) error
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(ctx context.Context, c chunk.Access, w *Window) error

func (f StrategyFunc) Apply(ctx context.Context, c chunk.Access, w *Window) error {
	return f(ctx, c, w)
}

// StructurePlacer decides where structures start and which chunks they
// reach.
type StructurePlacer interface {
	// CreateStarts records the structures whose origin lies in c.
	CreateStarts(ctx context.Context, c chunk.Access) error
	// CreateReferences records, in c, every start in the window whose
	// pieces reach into c. Neighbours are only read.
	CreateReferences(ctx context.Context, w *Window, c chunk.Access) error
}

// LightEngine computes lighting for a chunk.
type LightEngine interface {
	// LightChunk lights c. wasLit is true when c's light data is already
	// correct and only needs to be registered.
	LightChunk(c chunk.Access, wasLit bool) *Future[chunk.Access]
}

// Generator holds the per-stage terrain strategies. A nil strategy leaves
// its stage to only advance the status.
type Generator struct {
	Biomes        Strategy
	Noise         Strategy
	Surface       Strategy
	Carvers       Strategy
	LiquidCarvers Strategy
	Features      Strategy
	Spawn         Strategy
}

// Executor runs a task on some worker. It must not run the task inline
// while holding locks of its own.
type Executor func(task func())

// Context carries what every stage task needs.
type Context struct {
	Seed               int64
	Height             chunk.HeightAccessor
	Blocks             *block.Set
	Biomes             *biome.Set
	Generator          Generator
	Structures         StructurePlacer
	Light              LightEngine
	GenerateStructures bool
	// Executor runs the asynchronous parts of stages. Nil runs them in a new
	// goroutine.
	Executor Executor
	Logger   *log.Logger
}

func (gc *Context) execute(task func()) {
	if gc.Executor != nil {
		gc.Executor(task)
		return
	}
	go task()
}

func (gc *Context) logger() *log.Logger {
	if gc.Logger == nil {
		return log.New(io.Discard, "", 0)
	}
	return gc.Logger
}

// NewProtoChunk creates an empty chunk sized for this world.
func (gc *Context) NewProtoChunk(pos chunk.Pos) *chunk.ProtoChunk {
	return chunk.NewProtoChunk(pos, gc.Height, gc.Blocks, gc.Biomes)
}
