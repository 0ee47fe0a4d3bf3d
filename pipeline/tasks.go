package pipeline

import (
	"context"
	"fmt"

	"github.com/astei/chunkforge/chunk"
)

func noop(context.Context, *Context, *Window, chunk.Access) error { return nil }

func strategy(pick func(Generator) Strategy) SimpleTask {
	return func(ctx context.Context, gc *Context, w *Window, c chunk.Access) error {
		s := pick(gc.Generator)
		if s == nil {
			return nil
		}
		return s.Apply(ctx, c, w)
	}
}

// async runs a strategy on the executor.
func async(pick func(Generator) Strategy) AsyncTask {
	return func(ctx context.Context, gc *Context, w *Window, c chunk.Access) *Future[chunk.Access] {
		s := pick(gc.Generator)
		if s == nil {
			return Completed(c)
		}
		f := NewFuture[chunk.Access]()
		gc.execute(func() {
			if err := s.Apply(ctx, c, w); err != nil {
				f.Fail(err)
				return
			}
			f.Complete(c)
		})
		return f
	}
}

var (
	biomes = async(func(g Generator) Strategy { return g.Biomes })
	noise  = async(func(g Generator) Strategy { return g.Noise })
)

func structureStarts(ctx context.Context, gc *Context, _ *Window, c chunk.Access) error {
	if !gc.GenerateStructures || gc.Structures == nil {
		return nil
	}
	return gc.Structures.CreateStarts(ctx, c)
}

func structureReferences(ctx context.Context, gc *Context, w *Window, c chunk.Access) error {
	if gc.Structures == nil {
		return nil
	}
	return gc.Structures.CreateReferences(ctx, w, c)
}

// features primes the final heightmaps so decoration sees the surface as it
// stands, then decorates.
func features(ctx context.Context, gc *Context, w *Window, c chunk.Access) error {
	c.PrimeHeightmaps(chunk.StatusFeatures.Heightmaps()...)
	if gc.Generator.Features == nil {
		return nil
	}
	return gc.Generator.Features.Apply(ctx, c, w)
}

func light(ctx context.Context, gc *Context, _ *Window, c chunk.Access) *Future[chunk.Access] {
	return lightLoad(ctx, gc, c)
}

func lightLoad(_ context.Context, gc *Context, c chunk.Access) *Future[chunk.Access] {
	if gc.Light == nil {
		return Completed(c)
	}
	wasLit := c.IsOrAfter(chunk.StatusLight) && c.IsLightCorrect()
	return gc.Light.LightChunk(c, wasLit)
}

func full(ctx context.Context, gc *Context, _ *Window, c chunk.Access) *Future[chunk.Access] {
	return fullLoad(ctx, gc, c)
}

// fullLoad promotes a proto chunk to a level chunk on the executor and hands
// back a read-only view of it.
func fullLoad(_ context.Context, gc *Context, c chunk.Access) *Future[chunk.Access] {
	switch c := c.(type) {
	case *chunk.View:
		return Completed[chunk.Access](c)
	case *chunk.ProtoChunk:
		f := NewFuture[chunk.Access]()
		gc.execute(func() {
			c.SetStatus(chunk.StatusFull)
			level := chunk.Promote(c)
			gc.logger().Printf("promoted chunk %s with %d entities", c.Pos(), len(level.Entities()))
			f.Complete(chunk.NewView(level, chunk.ReadOnly))
		})
		return f
	default:
		return Failed[chunk.Access](fmt.Errorf("pipeline: cannot promote %T", c))
	}
}
