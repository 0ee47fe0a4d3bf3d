package worldgen

import (
	"context"
	"strings"
	"testing"

	"github.com/astei/chunkforge/biome"
	"github.com/astei/chunkforge/block"
	"github.com/astei/chunkforge/chunk"
	"github.com/astei/chunkforge/pipeline"
)

var testHeight = chunk.HeightAccessor{MinY: -16, Height: 64}

func testWorld(seed int64) (*World, *pipeline.Context) {
	blocks, biomes := block.Default(), biome.Default()
	g := New(seed, 20, blocks, biomes)
	return g, &pipeline.Context{
		Seed:      seed,
		Height:    testHeight,
		Blocks:    blocks,
		Biomes:    biomes,
		Generator: g.Generator(),
	}
}

// advance runs every stage up to to on c alone, with no neighbours.
func advance(t *testing.T, gc *pipeline.Context, c chunk.Access, to chunk.Status) {
	t.Helper()
	ctx := context.Background()
	for s := chunk.StatusStructureStarts; s <= to; s++ {
		stage := pipeline.ByStatus(s)
		w := pipeline.NewWindow(c.Pos(), 0, 0, s, []chunk.Access{c})
		if _, err := stage.Generate(ctx, gc, w, false).Wait(ctx); err != nil {
			t.Fatalf("%s: %v", s, err)
		}
	}
}

func TestNoiseRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		x, z := float64(i)*0.37, float64(i)*-1.13
		n := Noise2(5, x, z)
		if n < -1 || n > 1 {
			t.Fatalf("expected noise in [-1, 1], got %f", n)
		}
		if n != Noise2(5, x, z) {
			t.Fatalf("expected noise to be deterministic")
		}
		if o := Octaves(5, x, z, 4, 0.5); o < -1 || o > 1 {
			t.Fatalf("expected octaves in [-1, 1], got %f", o)
		}
	}
	if FloorDiv(-1, 16) != -1 || Mod(-1, 16) != 15 {
		t.Fatalf("unexpected floor division")
	}
}

func TestTerrainStages(t *testing.T) {
	g, gc := testWorld(99)
	c := gc.NewProtoChunk(chunk.Pos{X: 3, Z: -2})
	advance(t, gc, c, chunk.StatusLiquidCarvers)

	x0, z0 := c.Pos().MinBlockX(), c.Pos().MinBlockZ()
	for z := z0; z < z0+16; z++ {
		for x := x0; x < x0+16; x++ {
			if c.BlockState(x, testHeight.MinY, z) != g.bedrock {
				t.Fatalf("expected bedrock floor at %d,%d", x, z)
			}
			top := c.Height(chunk.WorldSurfaceWG, x, z)
			if top < g.SeaLevel && top < g.SurfaceHeight(testHeight, x, z) {
				t.Fatalf("expected column %d,%d to reach sea level or the surface, got %d", x, z, top)
			}
		}
	}

	air := c.CarvingMask(chunk.CarveAir)
	liquid := c.CarvingMask(chunk.CarveLiquid)
	air.ForEach(func(lx, y, lz int) {
		st := c.BlockState(x0+lx, y, z0+lz)
		if st != g.caveAir && st != g.lava {
			t.Fatalf("expected carved block at %d,%d,%d, got %s", lx, y, lz, st)
		}
	})
	liquid.ForEach(func(lx, y, lz int) {
		if !air.Get(lx, y, lz) || y >= testHeight.MinY+lavaDepth {
			t.Fatalf("unexpected liquid carving at %d,%d,%d", lx, y, lz)
		}
		if c.BlockState(x0+lx, y, z0+lz) != g.lava {
			t.Fatalf("expected lava at %d,%d,%d", lx, y, lz)
		}
	})
	if len(c.FluidTicks()) != liquid.Count() {
		t.Fatalf("expected one fluid tick per flooded block, got %d for %d", len(c.FluidTicks()), liquid.Count())
	}
	if c.Status() != chunk.StatusLiquidCarvers {
		t.Fatalf("expected status liquid_carvers, got %s", c.Status())
	}
}

func TestGenerationIsDeterministic(t *testing.T) {
	_, gc := testWorld(4)
	a := gc.NewProtoChunk(chunk.Pos{X: -7, Z: 11})
	b := gc.NewProtoChunk(chunk.Pos{X: -7, Z: 11})
	advance(t, gc, a, chunk.StatusLiquidCarvers)
	advance(t, gc, b, chunk.StatusLiquidCarvers)

	x0, z0 := a.Pos().MinBlockX(), a.Pos().MinBlockZ()
	for y := testHeight.MinY; y < testHeight.MaxY(); y++ {
		for z := z0; z < z0+16; z++ {
			for x := x0; x < x0+16; x++ {
				if a.BlockState(x, y, z) != b.BlockState(x, y, z) {
					t.Fatalf("expected identical chunks, differ at %d,%d,%d", x, y, z)
				}
			}
		}
	}
	if a.NoiseBiome(x0>>2, 0, z0>>2) != b.NoiseBiome(x0>>2, 0, z0>>2) {
		t.Fatalf("expected identical biomes")
	}
}

func TestFeaturesOnlyDecorate(t *testing.T) {
	g, gc := testWorld(12)
	center := chunk.Pos{X: 1, Z: 1}
	w := pipeline.CollectWindow(center, 1, 1, chunk.StatusFeatures, func(p chunk.Pos) chunk.Access {
		c := gc.NewProtoChunk(p)
		advance(t, gc, c, chunk.StatusLiquidCarvers)
		return c
	})

	type key struct{ x, y, z int }
	before := map[key]*block.State{}
	for _, c := range w.Chunks() {
		x0, z0 := c.Pos().MinBlockX(), c.Pos().MinBlockZ()
		for y := testHeight.MinY; y < testHeight.MaxY(); y++ {
			for z := z0; z < z0+16; z++ {
				for x := x0; x < x0+16; x++ {
					before[key{x, y, z}] = c.BlockState(x, y, z)
				}
			}
		}
	}

	stage := pipeline.ByStatus(chunk.StatusFeatures)
	if _, err := stage.Generate(context.Background(), gc, w, false).Wait(context.Background()); err != nil {
		t.Fatalf("features: %v", err)
	}

	allowed := map[*block.State]bool{g.log: true, g.leaves: true, g.dirt: true}
	for _, o := range g.ores {
		allowed[o.state], allowed[o.deep] = true, true
	}
	for k, old := range before {
		now := w.BlockState(k.x, k.y, k.z)
		if now != old && !allowed[now] {
			t.Fatalf("unexpected %s at %v (was %s)", now, k, old)
		}
	}
	if !w.Center().HasHeightmap(chunk.MotionBlocking) {
		t.Fatalf("expected features to prime the final heightmaps")
	}
}

func TestOutpostReferences(t *testing.T) {
	g, gc := testWorld(3)
	s := g.Structures()
	ctx := context.Background()
	withStarts := func(p chunk.Pos) chunk.Access {
		c := gc.NewProtoChunk(p)
		if err := s.CreateStarts(ctx, c); err != nil {
			t.Fatalf("starts: %v", err)
		}
		c.SetStatus(chunk.StatusStructureStarts)
		return c
	}

	var start chunk.Pos
	found := false
	for cx := 0; cx < 200 && !found; cx++ {
		p, ok := s.StartChunk(chunk.Pos{X: int32(cx * outpostSpacing)})
		if ok && withStarts(p).StructureStart(Outpost).Valid() {
			start, found = p, true
		}
	}
	if !found {
		t.Fatalf("expected an outpost within 200 cells")
	}
	if st := withStarts(start).StructureStart(Outpost); st.Pos != start {
		t.Fatalf("expected the outpost start at %s, got %s", start, st.Pos)
	}
	if st := withStarts(start.Add(1, 0)).StructureStart(Outpost); st != nil {
		t.Fatalf("expected no start next to the outpost")
	}

	for _, tt := range []struct {
		offset chunk.Pos
		want   bool
	}{
		{chunk.Pos{}, true},
		{chunk.Pos{X: 1}, true},
		{chunk.Pos{X: -1, Z: 1}, true},
		{chunk.Pos{X: 3}, false},
	} {
		p := start.Add(int(tt.offset.X), int(tt.offset.Z))
		w := pipeline.CollectWindow(p, 8, 0, chunk.StatusStructureReferences, withStarts)
		if err := s.CreateReferences(ctx, w, w.Center()); err != nil {
			t.Fatalf("references: %v", err)
		}
		refs := w.Center().References(Outpost)
		got := len(refs) == 1 && refs[0] == start
		if got != tt.want {
			t.Fatalf("chunk %s: expected reference %v, got %v", p, tt.want, refs)
		}
	}
}

func TestLightEngine(t *testing.T) {
	_, gc := testWorld(1)
	e := NewLightEngine()
	defer e.Close()

	c := gc.NewProtoChunk(chunk.Pos{X: 2})
	glow := gc.Blocks.MustGet("glowstone")
	c.SetBlockState(37, 5, 3, glow)
	c.SetLightSources(nil)

	got, err := e.LightChunk(c, false).Wait(context.Background())
	if err != nil {
		t.Fatalf("light: %v", err)
	}
	if !got.IsLightCorrect() {
		t.Fatalf("expected the chunk to be lit")
	}
	lights := got.LightSources()
	if len(lights) != 1 || lights[0] != (chunk.BlockPos{X: 37, Y: 5, Z: 3}) {
		t.Fatalf("expected the glowstone as only light source, got %v", lights)
	}

	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := e.LightChunk(c, true).Result(); err != ErrLightClosed {
		t.Fatalf("expected ErrLightClosed, got %v", err)
	}
}

func TestEntityIDsAreStable(t *testing.T) {
	p := chunk.Pos{X: 4, Z: -9}
	if EntityID(1, p, 0) != EntityID(1, p, 0) {
		t.Fatalf("expected stable entity ids")
	}
	if EntityID(1, p, 0) == EntityID(1, p, 1) || EntityID(1, p, 0) == EntityID(2, p, 0) {
		t.Fatalf("expected distinct entity ids")
	}
}

// decorateInOrder builds the chunks around the origin to liquid carvers and
// runs features on the 3x3 centres in the given order.
func decorateInOrder(t *testing.T, seed int64, order []chunk.Pos) map[chunk.Pos]chunk.Access {
	t.Helper()
	_, gc := testWorld(seed)
	chunks := make(map[chunk.Pos]chunk.Access)
	chunk.Pos{}.Square(2, func(p chunk.Pos) bool {
		c := gc.NewProtoChunk(p)
		advance(t, gc, c, chunk.StatusLiquidCarvers)
		chunks[p] = c
		return true
	})
	stage := pipeline.ByStatus(chunk.StatusFeatures)
	ctx := context.Background()
	for _, center := range order {
		w := pipeline.CollectWindow(center, 1, 1, chunk.StatusFeatures, func(p chunk.Pos) chunk.Access {
			return chunks[p]
		})
		if _, err := stage.Generate(ctx, gc, w, false).Wait(ctx); err != nil {
			t.Fatalf("features at %s: %v", center, err)
		}
	}
	return chunks
}

func TestFeaturesIgnoreNeighbourOrder(t *testing.T) {
	var forward []chunk.Pos
	chunk.Pos{}.Square(1, func(p chunk.Pos) bool {
		forward = append(forward, p)
		return true
	})
	reverse := make([]chunk.Pos, len(forward))
	for i, p := range forward {
		reverse[len(forward)-1-i] = p
	}

	logs := 0
	for seed := int64(0); seed < 24; seed++ {
		a := decorateInOrder(t, seed, forward)
		b := decorateInOrder(t, seed, reverse)
		for _, p := range forward {
			x0, z0 := p.MinBlockX(), p.MinBlockZ()
			for y := testHeight.MinY; y < testHeight.MaxY(); y++ {
				for z := z0; z < z0+16; z++ {
					for x := x0; x < x0+16; x++ {
						sa, sb := a[p].BlockState(x, y, z), b[p].BlockState(x, y, z)
						if sa != sb {
							t.Fatalf("seed %d: expected %s at %d,%d,%d, got %s", seed, sa, x, y, z, sb)
						}
						if sa.Name == "minecraft:oak_log" {
							logs++
						}
					}
				}
			}
			for _, ht := range []chunk.HeightmapType{chunk.MotionBlocking, chunk.OceanFloor} {
				if ha, hb := a[p].Height(ht, x0+7, z0+7), b[p].Height(ht, x0+7, z0+7); ha != hb {
					t.Fatalf("seed %d: expected %s height %d in %s, got %d", seed, ht, ha, p, hb)
				}
			}
		}
	}
	if logs == 0 {
		t.Fatalf("expected some trees across the seeds")
	}
}

func TestOresHaveMatchingDeepslateVariants(t *testing.T) {
	g, _ := testWorld(1)
	for _, o := range g.ores {
		want := "minecraft:deepslate_" + strings.TrimPrefix(o.state.Name, "minecraft:")
		if o.deep.Name != want {
			t.Fatalf("expected %s below y 0 for %s, got %s", want, o.state.Name, o.deep.Name)
		}
	}
}
