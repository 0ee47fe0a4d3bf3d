package worldgen

import (
	"context"

	"github.com/astei/chunkforge/block"
	"github.com/astei/chunkforge/chunk"
	"github.com/astei/chunkforge/pipeline"
)

type ore struct {
	state, deep *block.State
	tries, size int
	maxY        int
}

// decorate places ores, trees and the structure pieces reaching into the
// chunk. Ore veins and tree canopies may spill into direct neighbours. The
// spill-over resolves the same way whatever order neighbours decorate in:
// a richer ore wins over a poorer one, logs win over leaves, and neither
// logs nor leaves enter structure pieces.
func (g *World) decorate(ctx context.Context, c chunk.Access, w *pipeline.Window) error {
	g.placeOres(c, w)
	if err := ctx.Err(); err != nil {
		return err
	}
	g.placeTrees(c, w)
	g.placeStructures(c, w)
	return nil
}

// oreRank is the position of st in the ore table, or -1 for stone and
// deepslate. Other states rank below -1 and are never replaced.
func (g *World) oreRank(st *block.State) int {
	if st == g.stone || st == g.deepslate {
		return -1
	}
	for i, o := range g.ores {
		if st == o.state || st == o.deep {
			return i
		}
	}
	return -2
}

func (g *World) placeOres(c chunk.Access, w *pipeline.Window) {
	h := c.HeightAccessor()
	p := c.Pos()
	for i, o := range g.ores {
		top := min(o.maxY, h.MaxY()-1)
		if top <= h.MinY {
			continue
		}
		for try := 0; try < o.tries; try++ {
			r := Hash3(g.Seed+int64(100+i), int(p.X), try, int(p.Z))
			x := p.MinBlockX() + int(r&15)
			z := p.MinBlockZ() + int(r>>4&15)
			y := h.MinY + int(r>>8%uint64(top-h.MinY))
			for n := 0; n < o.size; n++ {
				step := Hash2(int64(r), n, try)
				bx, by, bz := x+int(step%3)-1, y+int(step>>2%3)-1, z+int(step>>4%3)-1
				if !w.CanWrite(bx, by, bz) {
					continue
				}
				if rank := g.oreRank(w.BlockState(bx, by, bz)); rank < -1 || rank >= i {
					continue
				}
				st := o.state
				if by < 0 {
					st = o.deep
				}
				w.SetBlockState(bx, by, bz, st)
			}
		}
	}
}

// ground is the highest motion blocking block of the column that no tree
// placed.
func (g *World) ground(c chunk.Access, x, z int) int {
	h := c.HeightAccessor()
	for y := h.MaxY() - 1; y >= h.MinY; y-- {
		st := c.BlockState(x, y, z)
		if st.MotionBlocking && st != g.log && st != g.leaves {
			return y
		}
	}
	return h.MinY - 1
}

func (g *World) placeTrees(c chunk.Access, w *pipeline.Window) {
	p := c.Pos()
	x0, z0 := p.MinBlockX(), p.MinBlockZ()
	b := c.NoiseBiome(x0>>2+2, g.SeaLevel>>2, z0>>2+2)
	tries := 0
	switch b {
	case g.forest:
		tries = 5
	case g.plains:
		if Hash2(g.Seed+17, int(p.X), int(p.Z))%4 == 0 {
			tries = 1
		}
	}
	if tries == 0 {
		return
	}
	pieces := g.piecesAround(w)
	for try := 0; try < tries; try++ {
		r := Hash3(g.Seed+23, int(p.X), try, int(p.Z))
		x, z := x0+int(r&15), z0+int(r>>4&15)
		ground := g.ground(c, x, z)
		if c.BlockState(x, ground, z) != g.grass {
			continue
		}
		g.growTree(w, pieces, x, ground+1, z, 4+int(r>>8%3))
	}
}

// piecesAround collects the boxes of every structure piece referenced by a
// chunk inside the write radius.
func (g *World) piecesAround(w *pipeline.Window) []chunk.BoundingBox {
	type startKey struct {
		structure string
		origin    chunk.Pos
	}
	var boxes []chunk.BoundingBox
	seen := make(map[startKey]bool)
	w.CenterPos().Square(w.WriteRadius(), func(p chunk.Pos) bool {
		n, ok := w.Chunk(p)
		if !ok {
			return true
		}
		for structure, origins := range n.AllReferences() {
			for _, origin := range origins {
				key := startKey{structure, origin}
				oc, ok := w.Chunk(origin)
				if !ok || seen[key] {
					continue
				}
				seen[key] = true
				if start := oc.StructureStart(structure); start.Valid() {
					for _, piece := range start.Pieces {
						boxes = append(boxes, piece.Box)
					}
				}
			}
		}
		return true
	})
	return boxes
}

func insideAny(boxes []chunk.BoundingBox, x, y, z int) bool {
	for _, b := range boxes {
		if b.Contains(x, y, z) {
			return true
		}
	}
	return false
}

func (g *World) growTree(w *pipeline.Window, pieces []chunk.BoundingBox, x, y, z, height int) {
	if !w.CanWrite(x, y+height, z) {
		return
	}
	for dy := 0; dy < height; dy++ {
		st := w.BlockState(x, y+dy, z)
		if (st.IsAir() || st == g.leaves) && !insideAny(pieces, x, y+dy, z) {
			w.SetBlockState(x, y+dy, z, g.log)
		}
	}
	w.SetBlockState(x, y-1, z, g.dirt)
	for dy := height - 2; dy <= height+1; dy++ {
		r := 2
		if dy >= height {
			r = 1
		}
		for dz := -r; dz <= r; dz++ {
			for dx := -r; dx <= r; dx++ {
				lx, ly, lz := x+dx, y+dy, z+dz
				if !w.CanWrite(lx, ly, lz) || !w.BlockState(lx, ly, lz).IsAir() || insideAny(pieces, lx, ly, lz) {
					continue
				}
				w.SetBlockState(lx, ly, lz, g.leaves)
			}
		}
	}
}

// placeStructures builds, clipped to this chunk, every structure piece of
// the starts the chunk references.
func (g *World) placeStructures(c chunk.Access, w *pipeline.Window) {
	p := c.Pos()
	for structure, origins := range c.AllReferences() {
		for _, origin := range origins {
			oc, ok := w.Chunk(origin)
			if !ok {
				continue
			}
			start := oc.StructureStart(structure)
			if !start.Valid() {
				continue
			}
			for _, piece := range start.Pieces {
				if piece.Box.IntersectsColumn(p) {
					g.buildPiece(c, piece)
				}
			}
		}
	}
}

// buildPiece outlines the piece's walls in cobblestone and tops each corner
// with a torch.
func (g *World) buildPiece(c chunk.Access, piece chunk.StructurePiece) {
	b := piece.Box
	x0, z0 := c.Pos().MinBlockX(), c.Pos().MinBlockZ()
	for x := max(b.MinX, x0); x <= min(b.MaxX, x0+15); x++ {
		for z := max(b.MinZ, z0); z <= min(b.MaxZ, z0+15); z++ {
			wall := x == b.MinX || x == b.MaxX || z == b.MinZ || z == b.MaxZ
			for y := b.MinY; y <= b.MaxY; y++ {
				switch {
				case y == b.MinY || wall:
					c.SetBlockState(x, y, z, g.cobble)
				default:
					c.SetBlockState(x, y, z, g.air)
				}
			}
			corner := (x == b.MinX || x == b.MaxX) && (z == b.MinZ || z == b.MaxZ)
			if corner {
				c.SetBlockState(x, b.MaxY+1, z, g.torch)
			}
		}
	}
}
