// Package worldgen holds the default terrain strategies. Everything is
// derived from the seed with hash based noise, so a chunk generates the same
// way no matter in which order its neighbours were produced.
package worldgen

import (
	"github.com/astei/chunkforge/biome"
	"github.com/astei/chunkforge/block"
	"github.com/astei/chunkforge/chunk"
	"github.com/astei/chunkforge/pipeline"
)

const regionSize = 96

// World generates terrain for one seed.
type World struct {
	Seed     int64
	SeaLevel int

	blocks *block.Set
	biomes *biome.Set

	air, caveAir, stone, deepslate, dirt, grass, sand, sandstone   *block.State
	gravel, bedrock, snow, water, lava, log, leaves, cobble, torch *block.State
	ores                                                           []ore

	plains, forest, desert, ocean, snowy, hills, beach *biome.Biome
	land                                               []*biome.Biome
}

// New resolves the states and biomes the strategies place. It panics when
// the registries lack any of them.
func New(seed int64, seaLevel int, blocks *block.Set, biomes *biome.Set) *World {
	g := &World{Seed: seed, SeaLevel: seaLevel, blocks: blocks, biomes: biomes}
	g.air = blocks.MustGet("air")
	g.caveAir = blocks.MustGet("cave_air")
	g.stone = blocks.MustGet("stone")
	g.deepslate = blocks.MustGet("deepslate")
	g.dirt = blocks.MustGet("dirt")
	g.grass = blocks.MustGet("grass_block")
	g.sand = blocks.MustGet("sand")
	g.sandstone = blocks.MustGet("sandstone")
	g.gravel = blocks.MustGet("gravel")
	g.bedrock = blocks.MustGet("bedrock")
	g.snow = blocks.MustGet("snow_block")
	g.log = blocks.MustGet("oak_log")
	g.leaves = blocks.MustGet("oak_leaves")
	g.cobble = blocks.MustGet("cobblestone")
	g.torch = blocks.MustGet("torch")
	g.water = fluid(blocks, "water")
	g.lava = fluid(blocks, "lava")
	g.ores = []ore{
		{state: blocks.MustGet("coal_ore"), deep: blocks.MustGet("deepslate_coal_ore"), tries: 12, size: 6, maxY: 128},
		{state: blocks.MustGet("iron_ore"), deep: blocks.MustGet("deepslate_iron_ore"), tries: 8, size: 4, maxY: 64},
		{state: blocks.MustGet("copper_ore"), deep: blocks.MustGet("deepslate_copper_ore"), tries: 6, size: 4, maxY: 96},
		{state: blocks.MustGet("diamond_ore"), deep: blocks.MustGet("deepslate_diamond_ore"), tries: 1, size: 3, maxY: 16},
	}

	g.plains = biomes.MustGet("plains")
	g.forest = biomes.MustGet("forest")
	g.desert = biomes.MustGet("desert")
	g.ocean = biomes.MustGet("ocean")
	g.snowy = biomes.MustGet("snowy_plains")
	g.hills = biomes.MustGet("windswept_hills")
	g.beach = biomes.MustGet("beach")
	g.land = []*biome.Biome{g.plains, g.plains, g.forest, g.forest, g.desert, g.snowy, g.hills}
	return g
}

func fluid(blocks *block.Set, name string) *block.State {
	st, ok := blocks.Lookup(name, map[string]string{"level": "0"})
	if !ok {
		panic("worldgen: missing " + name)
	}
	return st
}

// Generator returns the per-stage strategies.
func (g *World) Generator() pipeline.Generator {
	return pipeline.Generator{
		Biomes:        pipeline.StrategyFunc(g.fillBiomes),
		Noise:         pipeline.StrategyFunc(g.fillNoise),
		Surface:       pipeline.StrategyFunc(g.buildSurface),
		Carvers:       pipeline.StrategyFunc(g.carveCaves),
		LiquidCarvers: pipeline.StrategyFunc(g.carveLiquids),
		Features:      pipeline.StrategyFunc(g.decorate),
		Spawn:         pipeline.StrategyFunc(g.spawnMobs),
	}
}

// continentalness is low over oceans and high inland.
func (g *World) continentalness(x, z int) float64 {
	return Octaves(g.Seed+7, float64(x)/384, float64(z)/384, 4, 0.5)
}

// BiomeAt picks the biome of a block column.
func (g *World) BiomeAt(x, z int) *biome.Biome {
	switch c := g.continentalness(x, z); {
	case c < -0.25:
		return g.ocean
	case c < -0.18:
		return g.beach
	}
	h := Hash2(g.Seed, FloorDiv(x, regionSize), FloorDiv(z, regionSize))
	return g.land[h%uint64(len(g.land))]
}

// SurfaceHeight is the y of the topmost terrain block of a column before
// carving, clamped into the world.
func (g *World) SurfaceHeight(h chunk.HeightAccessor, x, z int) int {
	cont := g.continentalness(x, z)
	detail := Octaves(g.Seed+1, float64(x)/48, float64(z)/48, 3, 0.5)
	y := float64(g.SeaLevel) + cont*40 + detail*5
	if g.BiomeAt(x, z) == g.hills {
		y += max(0, detail) * 30
	}
	return min(max(int(y), h.MinY+1), h.MaxY()-2)
}
