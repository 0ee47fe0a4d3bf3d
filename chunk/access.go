// Package chunk holds the per-chunk data the generation pipeline mutates:
// sections, heightmaps, structure tables and pending simulation data.
package chunk

import (
	"github.com/astei/chunkforge/biome"
	"github.com/astei/chunkforge/block"
)

// Reader is the read-only surface other subsystems consume. Block
// coordinates are world coordinates; x and z are taken modulo 16.
type Reader interface {
	Pos() Pos
	Status() Status
	IsOrAfter(s Status) bool
	HeightAccessor() HeightAccessor
	BlockState(x, y, z int) *block.State
	// Height returns the y of the highest block the heightmap counts in the
	// column, or MinY-1 for an empty column.
	Height(t HeightmapType, x, z int) int
	NoiseBiome(qx, qy, qz int) *biome.Biome
}

// Access is the mutable chunk surface generation stages work against.
type Access interface {
	Reader

	Sections() []*Section
	Section(index int) *Section
	// SetBlockState places st and returns the previous state. Writes outside
	// the world height are ignored and return nil.
	SetBlockState(x, y, z int, st *block.State) *block.State
	// SetStatus advances the status; it never moves backwards.
	SetStatus(s Status)

	Heightmap(t HeightmapType) *Heightmap
	HasHeightmap(t HeightmapType) bool
	PrimeHeightmaps(types ...HeightmapType)
	FillBiomesFromNoise(resolve BiomeResolver)

	StructureStart(structure string) *StructureStart
	SetStructureStart(s *StructureStart)
	AllStarts() map[string]*StructureStart
	SetAllStarts(starts map[string]*StructureStart)
	References(structure string) []Pos
	AddReference(structure string, from Pos)
	AllReferences() map[string][]Pos
	SetAllReferences(refs map[string][]Pos)

	BlockEntity(pos BlockPos) *BlockEntity
	SetBlockEntity(be *BlockEntity)
	BlockEntities() []*BlockEntity
	AddEntity(e Entity)
	Entities() []Entity

	MarkPostProcessing(pos BlockPos)
	PostProcessing() [][]uint16
	LightSources() []BlockPos
	IsLightCorrect() bool
	SetLightCorrect(v bool)

	Unsaved() bool
	SetUnsaved(v bool)
}
