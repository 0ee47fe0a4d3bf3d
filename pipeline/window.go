package pipeline

import (
	"fmt"

	"github.com/astei/chunkforge/biome"
	"github.com/astei/chunkforge/block"
	"github.com/astei/chunkforge/chunk"
)

// Window is the square of chunks a stage runs against: the centre plus every
// chunk within the stage's range. Reads may touch any chunk in the window;
// writes are confined to the write radius around the centre.
type Window struct {
	center      chunk.Pos
	radius      int
	writeRadius int
	stage       chunk.Status
	chunks      []chunk.Access
}

// NewWindow builds a window from chunks listed row by row, z outer, starting
// at the north-west corner. It panics when the list does not match the
// radius or a chunk sits at the wrong position.
func NewWindow(center chunk.Pos, radius, writeRadius int, stage chunk.Status, chunks []chunk.Access) *Window {
	side := 2*radius + 1
	if len(chunks) != side*side {
		panic(fmt.Sprintf("pipeline: window of radius %d needs %d chunks, got %d", radius, side*side, len(chunks)))
	}
	w := &Window{center: center, radius: radius, writeRadius: writeRadius, stage: stage, chunks: chunks}
	for i, c := range chunks {
		want := center.Add(i%side-radius, i/side-radius)
		if c.Pos() != want {
			panic(fmt.Sprintf("pipeline: window slot %d holds %s, expected %s", i, c.Pos(), want))
		}
	}
	return w
}

// CollectWindow builds a window by looking up every position.
func CollectWindow(center chunk.Pos, radius, writeRadius int, stage chunk.Status, lookup func(chunk.Pos) chunk.Access) *Window {
	side := 2*radius + 1
	chunks := make([]chunk.Access, 0, side*side)
	center.Square(radius, func(p chunk.Pos) bool {
		chunks = append(chunks, lookup(p))
		return true
	})
	return NewWindow(center, radius, writeRadius, stage, chunks)
}

func (w *Window) Center() chunk.Access { return w.chunks[len(w.chunks)/2] }
func (w *Window) CenterPos() chunk.Pos { return w.center }
func (w *Window) Radius() int { return w.radius }
func (w *Window) WriteRadius() int { return w.writeRadius }
func (w *Window) Stage() chunk.Status { return w.stage }
func (w *Window) Chunks() []chunk.Access { return w.chunks }

// Chunk returns the chunk at p when it lies inside the window.
func (w *Window) Chunk(p chunk.Pos) (chunk.Access, bool) {
	dx, dz := int(p.X-w.center.X), int(p.Z-w.center.Z)
	if dx < -w.radius || dx > w.radius || dz < -w.radius || dz > w.radius {
		return nil, false
	}
	side := 2*w.radius + 1
	return w.chunks[(dz+w.radius)*side+dx+w.radius], true
}

func (w *Window) mustChunk(x, z int) chunk.Access {
	p := chunk.PosFromBlock(x, z)
	c, ok := w.Chunk(p)
	if !ok {
		panic(fmt.Sprintf("pipeline: chunk %s is outside the %s window around %s", p, w.stage, w.center))
	}
	return c
}

// BlockState reads a block in world coordinates. Reading outside the window
// panics.
func (w *Window) BlockState(x, y, z int) *block.State {
	return w.mustChunk(x, z).BlockState(x, y, z)
}

// CanWrite reports whether a write at block (x, y, z) is allowed.
func (w *Window) CanWrite(x, y, z int) bool {
	p := chunk.PosFromBlock(x, z)
	if p.Chebyshev(w.center) > w.writeRadius {
		return false
	}
	return !w.Center().HeightAccessor().IsOutside(y)
}

// SetBlockState writes a block in world coordinates. It reports false and
// leaves the world untouched when the block is outside the write radius or
// the world height.
func (w *Window) SetBlockState(x, y, z int, st *block.State) bool {
	if !w.CanWrite(x, y, z) {
		return false
	}
	w.mustChunk(x, z).SetBlockState(x, y, z, st)
	return true
}

// Height reads a heightmap in world coordinates.
func (w *Window) Height(t chunk.HeightmapType, x, z int) int {
	return w.mustChunk(x, z).Height(t, x, z)
}

// NoiseBiome reads a biome at world quart coordinates.
func (w *Window) NoiseBiome(qx, qy, qz int) *biome.Biome {
	return w.mustChunk(qx<<2, qz<<2).NoiseBiome(qx, qy, qz)
}
