package worldgen

import (
	"context"

	"github.com/astei/chunkforge/biome"
	"github.com/astei/chunkforge/block"
	"github.com/astei/chunkforge/chunk"
	"github.com/astei/chunkforge/pipeline"
)

const (
	caveThreshold = 0.42
	lavaDepth     = 8
)

func (g *World) fillBiomes(_ context.Context, c chunk.Access, _ *pipeline.Window) error {
	c.FillBiomesFromNoise(func(qx, _, qz int) *biome.Biome {
		return g.BiomeAt(qx<<2+2, qz<<2+2)
	})
	return nil
}

// fillNoise lays down the stone body of the chunk and floods everything
// below sea level.
func (g *World) fillNoise(ctx context.Context, c chunk.Access, _ *pipeline.Window) error {
	h := c.HeightAccessor()
	x0, z0 := c.Pos().MinBlockX(), c.Pos().MinBlockZ()
	for z := z0; z < z0+16; z++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for x := x0; x < x0+16; x++ {
			top := g.SurfaceHeight(h, x, z)
			for y := h.MinY; y <= top; y++ {
				st := g.stone
				if y < 0 {
					st = g.deepslate
				}
				c.SetBlockState(x, y, z, st)
			}
			for y := top + 1; y <= g.SeaLevel && y < h.MaxY(); y++ {
				c.SetBlockState(x, y, z, g.water)
			}
		}
	}
	return nil
}

type surfaceRule struct {
	top, under *block.State
	depth      int
}

func (g *World) surfaceFor(b *biome.Biome) surfaceRule {
	switch b {
	case g.desert:
		return surfaceRule{top: g.sand, under: g.sandstone, depth: 5}
	case g.beach:
		return surfaceRule{top: g.sand, under: g.sand, depth: 3}
	case g.snowy:
		return surfaceRule{top: g.snow, under: g.dirt, depth: 3}
	case g.ocean:
		return surfaceRule{top: g.gravel, under: g.sand, depth: 2}
	case g.hills:
		return surfaceRule{top: g.stone, under: g.stone, depth: 1}
	default:
		return surfaceRule{top: g.grass, under: g.dirt, depth: 3}
	}
}

// buildSurface replaces the top of each column according to its biome and
// puts a bedrock floor under the world.
func (g *World) buildSurface(_ context.Context, c chunk.Access, _ *pipeline.Window) error {
	h := c.HeightAccessor()
	x0, z0 := c.Pos().MinBlockX(), c.Pos().MinBlockZ()
	for z := z0; z < z0+16; z++ {
		for x := x0; x < x0+16; x++ {
			top := c.Height(chunk.OceanFloorWG, x, z)
			if top < h.MinY {
				continue
			}
			rule := g.surfaceFor(c.NoiseBiome(x>>2, top>>2, z>>2))
			underwater := c.BlockState(x, top+1, z).HasFluid()
			for d := 0; d < rule.depth && top-d > h.MinY; d++ {
				st := rule.under
				if d == 0 {
					st = rule.top
					if underwater && st == g.grass {
						st = g.dirt
					}
				}
				c.SetBlockState(x, top-d, z, st)
			}

			c.SetBlockState(x, h.MinY, z, g.bedrock)
			for y := h.MinY + 1; y < h.MinY+4 && y < top; y++ {
				if Hash3(g.Seed+11, x, y, z)%4 < uint64(h.MinY+4-y) {
					c.SetBlockState(x, y, z, g.bedrock)
				}
			}
		}
	}
	return nil
}

type carvable interface {
	CarvingMask(step chunk.CarvingStep) *chunk.CarvingMask
}

type fluidTicker interface {
	ScheduleFluidTick(t chunk.ScheduledTick)
}

// carveCaves hollows out noise caves below the surface and records every
// carved block in the AIR mask.
func (g *World) carveCaves(_ context.Context, c chunk.Access, _ *pipeline.Window) error {
	pc, ok := c.(carvable)
	if !ok {
		return nil
	}
	mask := pc.CarvingMask(chunk.CarveAir)
	h := c.HeightAccessor()
	x0, z0 := c.Pos().MinBlockX(), c.Pos().MinBlockZ()
	for z := z0; z < z0+16; z++ {
		for x := x0; x < x0+16; x++ {
			roof := c.Height(chunk.OceanFloorWG, x, z) - 4
			for y := h.MinY + 1; y < roof; y++ {
				st := c.BlockState(x, y, z)
				if st == g.bedrock || st.IsAir() || st.HasFluid() {
					continue
				}
				n := Noise3(g.Seed+300, float64(x)/24, float64(y)/16, float64(z)/24)
				if n < caveThreshold {
					continue
				}
				c.SetBlockState(x, y, z, g.caveAir)
				mask.Set(x, y, z)
			}
		}
	}
	return nil
}

// carveLiquids floods the deepest carved cells with lava. Flooded blocks are
// recorded in the LIQUID mask and get a fluid tick.
func (g *World) carveLiquids(_ context.Context, c chunk.Access, _ *pipeline.Window) error {
	pc, ok := c.(carvable)
	if !ok {
		return nil
	}
	air := pc.CarvingMask(chunk.CarveAir)
	liquid := pc.CarvingMask(chunk.CarveLiquid)
	ticker, _ := c.(fluidTicker)
	floor := c.HeightAccessor().MinY + lavaDepth
	x0, z0 := c.Pos().MinBlockX(), c.Pos().MinBlockZ()
	air.ForEach(func(lx, y, lz int) {
		if y >= floor {
			return
		}
		x, z := x0+lx, z0+lz
		c.SetBlockState(x, y, z, g.lava)
		liquid.Set(x, y, z)
		if ticker != nil {
			ticker.ScheduleFluidTick(chunk.ScheduledTick{Pos: chunk.BlockPos{X: x, Y: y, Z: z}, Type: g.lava.Name})
		}
	})
	return nil
}
