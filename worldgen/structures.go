package worldgen

import (
	"context"

	"github.com/astei/chunkforge/chunk"
	"github.com/astei/chunkforge/pipeline"
)

const (
	Outpost        = "minecraft:pillager_outpost"
	outpostSpacing = 12
	outpostSpread  = 8
)

// Structures places outposts on a grid: every spacing x spacing cell of
// chunks holds at most one, at a seed-derived chunk inside the cell.
type Structures struct {
	world *World
}

// Structures returns the structure placer for g.
func (g *World) Structures() *Structures {
	return &Structures{world: g}
}

// StartChunk returns the chunk holding the outpost of the grid cell around
// p, and whether the cell has one.
func (s *Structures) StartChunk(p chunk.Pos) (chunk.Pos, bool) {
	g := s.world
	cx, cz := FloorDiv(int(p.X), outpostSpacing), FloorDiv(int(p.Z), outpostSpacing)
	r := Hash2(g.Seed+61, cx, cz)
	if r%2 != 0 {
		return chunk.Pos{}, false
	}
	start := chunk.Pos{
		X: int32(cx*outpostSpacing + int(r>>8%outpostSpread)),
		Z: int32(cz*outpostSpacing + int(r>>16%outpostSpread)),
	}
	switch g.BiomeAt(start.MinBlockX()+8, start.MinBlockZ()+8) {
	case g.ocean, g.beach:
		return chunk.Pos{}, false
	}
	return start, true
}

func (s *Structures) CreateStarts(_ context.Context, c chunk.Access) error {
	start, ok := s.StartChunk(c.Pos())
	if !ok || start != c.Pos() {
		return nil
	}
	g := s.world
	h := c.HeightAccessor()
	x, z := start.MinBlockX()+8, start.MinBlockZ()+8
	y := g.SurfaceHeight(h, x, z)
	top := min(y+8, h.MaxY()-2)
	if top <= y {
		return nil
	}
	c.SetStructureStart(&chunk.StructureStart{
		Structure: Outpost,
		Pos:       start,
		Pieces: []chunk.StructurePiece{
			{ID: "tower", Box: chunk.BoundingBox{MinX: x - 3, MinY: y, MinZ: z - 3, MaxX: x + 3, MaxY: top, MaxZ: z + 3}},
			{ID: "fence", Box: chunk.BoundingBox{MinX: x - 12, MinY: y, MinZ: z - 12, MaxX: x + 12, MaxY: y + 1, MaxZ: z + 12}},
		},
	})
	return nil
}

// CreateReferences records every start in the window whose box reaches c.
func (s *Structures) CreateReferences(_ context.Context, w *pipeline.Window, c chunk.Access) error {
	for _, n := range w.Chunks() {
		for name, start := range n.AllStarts() {
			if start.Valid() && start.Box().IntersectsColumn(c.Pos()) {
				c.AddReference(name, n.Pos())
			}
		}
	}
	return nil
}
