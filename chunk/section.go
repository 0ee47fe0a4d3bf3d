package chunk

import (
	"io"
	"sync/atomic"

	"github.com/astei/chunkforge/biome"
	"github.com/astei/chunkforge/block"
	"github.com/astei/chunkforge/palette"
	"github.com/astei/chunkforge/registry"
)

// BiomeResolver picks the biome for a quart position (block coordinates
// divided by four).
type BiomeResolver func(qx, qy, qz int) *biome.Biome

// Section is one 16 block tall slab of a chunk.
//
// The cached counts are maintained on every write and always equal what a
// full scan of the block container would produce.
type Section struct {
	states *palette.Container[*block.State]
	biomes atomic.Pointer[palette.Container[*biome.Biome]]

	nonEmptyBlocks atomic.Int32
	tickingBlocks  atomic.Int32
	tickingFluids  atomic.Int32
}

// NewSection creates a section filled with id 0 of each registry, which is
// air and the default biome for the standard registries.
func NewSection(states registry.Registry[*block.State], biomes registry.Registry[*biome.Biome]) *Section {
	air, _ := states.ByID(0)
	plains, _ := biomes.ByID(0)
	return NewSectionFrom(
		palette.New(palette.SectionStates, states, air),
		palette.New(palette.SectionBiomes, biomes, plains),
	)
}

// NewSectionFrom wraps existing containers and computes the counts.
func NewSectionFrom(states *palette.Container[*block.State], biomes *palette.Container[*biome.Biome]) *Section {
	s := &Section{states: states}
	s.biomes.Store(biomes)
	s.RecalcBlockCounts()
	return s
}

func nonEmpty(st *block.State) bool { return !st.IsAir() }
func tickingBlock(st *block.State) bool { return !st.IsAir() && st.RandomTicks }
func tickingFluid(st *block.State) bool { return st.HasFluid() && st.FluidTicks }
func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// States exposes the block container.
func (s *Section) States() *palette.Container[*block.State] { return s.states }

// Biomes exposes the biome container.
func (s *Section) Biomes() *palette.Container[*biome.Biome] { return s.biomes.Load() }

// BlockState returns the state at section-local coordinates.
func (s *Section) BlockState(x, y, z int) *block.State {
	return s.states.Get(x, y, z)
}

// Acquire holds the block container's write guard for a run of unchecked
// writes.
func (s *Section) Acquire() { s.states.Acquire() }

// Release gives back the write guard.
func (s *Section) Release() { s.states.Release() }

// SetBlockState replaces the state at section-local coordinates, updates the
// counts and returns the previous state.
func (s *Section) SetBlockState(x, y, z int, st *block.State) *block.State {
	s.Acquire()
	defer s.Release()
	return s.SetBlockStateUnchecked(x, y, z, st)
}

// SetBlockStateUnchecked is SetBlockState for callers holding the guard.
func (s *Section) SetBlockStateUnchecked(x, y, z int, st *block.State) *block.State {
	old := s.states.GetAndSetUnchecked(x, y, z, st)
	if old == st {
		return old
	}
	s.nonEmptyBlocks.Add(boolInt(nonEmpty(st)) - boolInt(nonEmpty(old)))
	s.tickingBlocks.Add(boolInt(tickingBlock(st)) - boolInt(tickingBlock(old)))
	s.tickingFluids.Add(boolInt(tickingFluid(st)) - boolInt(tickingFluid(old)))
	return old
}

// HasOnlyAir reports whether every block is air.
func (s *Section) HasOnlyAir() bool { return s.nonEmptyBlocks.Load() == 0 }

// IsRandomlyTicking reports whether any block or fluid receives random ticks.
func (s *Section) IsRandomlyTicking() bool {
	return s.IsRandomlyTickingBlocks() || s.IsRandomlyTickingFluids()
}

func (s *Section) IsRandomlyTickingBlocks() bool { return s.tickingBlocks.Load() > 0 }
func (s *Section) IsRandomlyTickingFluids() bool { return s.tickingFluids.Load() > 0 }

func (s *Section) NonEmptyBlockCount() int { return int(s.nonEmptyBlocks.Load()) }
func (s *Section) TickingBlockCount() int { return int(s.tickingBlocks.Load()) }
func (s *Section) TickingFluidCount() int { return int(s.tickingFluids.Load()) }

// RecalcBlockCounts rebuilds the counts from a full scan.
func (s *Section) RecalcBlockCounts() {
	var ne, tb, tf int32
	s.states.Count(func(st *block.State, n int) {
		c := int32(n)
		ne += boolInt(nonEmpty(st)) * c
		tb += boolInt(tickingBlock(st)) * c
		tf += boolInt(tickingFluid(st)) * c
	})
	s.nonEmptyBlocks.Store(ne)
	s.tickingBlocks.Store(tb)
	s.tickingFluids.Store(tf)
}

// MaybeHas reports whether any state in the block palette satisfies pred.
func (s *Section) MaybeHas(pred func(*block.State) bool) bool {
	return s.states.MaybeHas(pred)
}

// NoiseBiome returns the biome at section-local quart coordinates.
func (s *Section) NoiseBiome(qx, qy, qz int) *biome.Biome {
	return s.Biomes().Get(qx, qy, qz)
}

// FillBiomesFromNoise replaces the biome container with one resolved from
// resolve. qx, qy and qz are the quart coordinates of the section origin.
func (s *Section) FillBiomesFromNoise(resolve BiomeResolver, qx, qy, qz int) {
	c := s.Biomes().Recreate()
	c.Acquire()
	for y := 0; y < 4; y++ {
		for z := 0; z < 4; z++ {
			for x := 0; x < 4; x++ {
				c.GetAndSetUnchecked(x, y, z, resolve(qx+x, qy+y, qz+z))
			}
		}
	}
	c.Release()
	s.biomes.Store(c)
}

// WriteTo writes the block container followed by the biome container.
func (s *Section) WriteTo(w io.Writer) (n int64, err error) {
	if n, err = s.states.WriteTo(w); err != nil {
		return
	}
	nn, err := s.Biomes().WriteTo(w)
	return n + nn, err
}

// ReadFrom reads both containers and recomputes the counts.
func (s *Section) ReadFrom(r io.Reader) (n int64, err error) {
	if n, err = s.states.ReadFrom(r); err != nil {
		return
	}
	s.RecalcBlockCounts()
	nn, err := s.Biomes().ReadFrom(r)
	return n + nn, err
}

// SerializedSize is the number of bytes WriteTo produces.
func (s *Section) SerializedSize() int {
	return s.states.SerializedSize() + s.Biomes().SerializedSize()
}

// Copy returns an independent section.
func (s *Section) Copy() *Section {
	c := &Section{states: s.states.Copy()}
	c.biomes.Store(s.Biomes().Copy())
	c.nonEmptyBlocks.Store(s.nonEmptyBlocks.Load())
	c.tickingBlocks.Store(s.tickingBlocks.Load())
	c.tickingFluids.Store(s.tickingFluids.Load())
	return c
}
