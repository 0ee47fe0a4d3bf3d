package chunk

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/astei/chunkforge/biome"
	"github.com/astei/chunkforge/block"
)

// data is the state shared by proto and level chunks. A level chunk takes
// over the data of the proto chunk it was promoted from.
type data struct {
	pos      Pos
	height   HeightAccessor
	air      *block.State
	sections []*Section

	heightmaps   [NumHeightmapTypes]atomic.Pointer[Heightmap]
	lightCorrect atomic.Bool
	unsaved      atomic.Bool

	mu             sync.RWMutex
	starts         map[string]*StructureStart
	references     map[string][]Pos
	blockEntities  map[BlockPos]*BlockEntity
	entities       []Entity
	postProcessing [][]uint16
	lights         []BlockPos
}

func newData(pos Pos, h HeightAccessor, air *block.State, sections []*Section) *data {
	if len(sections) != h.SectionCount() {
		panic("chunk: section count does not match the world height")
	}
	return &data{
		pos:            pos,
		height:         h,
		air:            air,
		sections:       sections,
		starts:         make(map[string]*StructureStart),
		references:     make(map[string][]Pos),
		blockEntities:  make(map[BlockPos]*BlockEntity),
		postProcessing: make([][]uint16, len(sections)),
	}
}

func (d *data) Pos() Pos { return d.pos }
func (d *data) HeightAccessor() HeightAccessor { return d.height }
func (d *data) Sections() []*Section { return d.sections }

// Section returns the section at chunk-local index i.
func (d *data) Section(i int) *Section { return d.sections[i] }

func (d *data) BlockState(x, y, z int) *block.State {
	if d.height.IsOutside(y) {
		return d.air
	}
	return d.sections[d.height.SectionIndex(y)].BlockState(x&15, y&15, z&15)
}

func (d *data) setBlockState(x, y, z int, st *block.State, maps []HeightmapType) *block.State {
	if d.height.IsOutside(y) {
		return nil
	}
	sec := d.sections[d.height.SectionIndex(y)]
	lx, lz := x&15, z&15
	if sec.HasOnlyAir() && st == d.air && sec.BlockState(lx, y&15, lz) == d.air {
		return d.air
	}
	old := sec.SetBlockState(lx, y&15, lz, st)
	if old == st {
		return old
	}
	if emitsLight(old) || emitsLight(st) {
		d.updateLightSource(BlockPos{x, y, z}, emitsLight(st))
	}
	var unprimed []*Heightmap
	for _, t := range maps {
		if d.heightmaps[t].Load() == nil {
			m := NewHeightmap(d, t)
			d.heightmaps[t].Store(m)
			unprimed = append(unprimed, m)
		}
	}
	PrimeHeightmaps(d, unprimed...)
	for _, t := range maps {
		d.heightmaps[t].Load().Update(lx, y, lz, st)
	}
	d.unsaved.Store(true)
	return old
}

func emitsLight(st *block.State) bool {
	return st != nil && st.LightEmission > 0
}

// updateLightSource keeps pos in the light source list exactly when emits.
func (d *data) updateLightSource(pos BlockPos, emits bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, p := range d.lights {
		if p == pos {
			if !emits {
				d.lights = append(d.lights[:i], d.lights[i+1:]...)
			}
			return
		}
	}
	if emits {
		d.lights = append(d.lights, pos)
	}
}

// Heightmap returns the heightmap of type t, creating an unprimed one when
// the chunk has none.
func (d *data) Heightmap(t HeightmapType) *Heightmap {
	if m := d.heightmaps[t].Load(); m != nil {
		return m
	}
	m := NewHeightmap(d, t)
	if d.heightmaps[t].CompareAndSwap(nil, m) {
		return m
	}
	return d.heightmaps[t].Load()
}

func (d *data) HasHeightmap(t HeightmapType) bool {
	return d.heightmaps[t].Load() != nil
}

// PrimeHeightmaps recomputes the given heightmaps from the blocks.
func (d *data) PrimeHeightmaps(types ...HeightmapType) {
	maps := make([]*Heightmap, 0, len(types))
	for _, t := range types {
		maps = append(maps, d.Heightmap(t))
	}
	PrimeHeightmaps(d, maps...)
}

// SetHeightmap replaces the heightmap of type t with packed data.
func (d *data) SetHeightmap(t HeightmapType, raw []uint64) error {
	m := NewHeightmap(d, t)
	if err := m.SetRaw(raw); err != nil {
		return err
	}
	d.heightmaps[t].Store(m)
	return nil
}

func (d *data) Height(t HeightmapType, x, z int) int {
	m := d.heightmaps[t].Load()
	if m == nil {
		m = NewHeightmap(d, t)
		PrimeHeightmaps(d, m)
		if !d.heightmaps[t].CompareAndSwap(nil, m) {
			m = d.heightmaps[t].Load()
		}
	}
	return m.FirstAvailable(x&15, z&15) - 1
}

// NoiseBiome returns the biome at world quart coordinates, clamping y into
// the world.
func (d *data) NoiseBiome(qx, qy, qz int) *biome.Biome {
	minQ := d.height.MinY >> 2
	maxQ := minQ + d.height.Height>>2 - 1
	qy = min(max(qy, minQ), maxQ)
	sec := d.sections[d.height.SectionIndex(qy<<2)]
	return sec.NoiseBiome(qx&3, qy&3, qz&3)
}

// FillBiomesFromNoise resolves every biome cell of every section.
func (d *data) FillBiomesFromNoise(resolve BiomeResolver) {
	qx, qz := int(d.pos.X)<<2, int(d.pos.Z)<<2
	for i, sec := range d.sections {
		sec.FillBiomesFromNoise(resolve, qx, d.height.SectionY(i)<<2, qz)
	}
	d.unsaved.Store(true)
}

func (d *data) StructureStart(structure string) *StructureStart {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.starts[structure]
}

func (d *data) SetStructureStart(s *StructureStart) {
	d.mu.Lock()
	d.starts[s.Structure] = s
	d.mu.Unlock()
	d.unsaved.Store(true)
}

func (d *data) AllStarts() map[string]*StructureStart {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]*StructureStart, len(d.starts))
	for k, v := range d.starts {
		out[k] = v
	}
	return out
}

// SetAllStarts replaces the structure starts wholesale.
func (d *data) SetAllStarts(starts map[string]*StructureStart) {
	d.mu.Lock()
	d.starts = make(map[string]*StructureStart, len(starts))
	for k, v := range starts {
		d.starts[k] = v
	}
	d.mu.Unlock()
	d.unsaved.Store(true)
}

func (d *data) References(structure string) []Pos {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Pos(nil), d.references[structure]...)
}

// AddReference records that the chunk at from holds a start of structure
// that reaches into this chunk. Duplicates are ignored.
func (d *data) AddReference(structure string, from Pos) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.references[structure] {
		if p == from {
			return
		}
	}
	d.references[structure] = append(d.references[structure], from)
	d.unsaved.Store(true)
}

func (d *data) AllReferences() map[string][]Pos {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string][]Pos, len(d.references))
	for k, v := range d.references {
		out[k] = append([]Pos(nil), v...)
	}
	return out
}

// SetAllReferences replaces the structure references wholesale.
func (d *data) SetAllReferences(refs map[string][]Pos) {
	d.mu.Lock()
	d.references = make(map[string][]Pos, len(refs))
	for k, v := range refs {
		d.references[k] = append([]Pos(nil), v...)
	}
	d.mu.Unlock()
	d.unsaved.Store(true)
}

func (d *data) BlockEntity(pos BlockPos) *BlockEntity {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.blockEntities[pos]
}

func (d *data) SetBlockEntity(be *BlockEntity) {
	d.mu.Lock()
	d.blockEntities[be.Pos] = be
	d.mu.Unlock()
	d.unsaved.Store(true)
}

// BlockEntities lists the block entities ordered by position.
func (d *data) BlockEntities() []*BlockEntity {
	d.mu.RLock()
	out := make([]*BlockEntity, 0, len(d.blockEntities))
	for _, be := range d.blockEntities {
		out = append(out, be)
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Pos, out[j].Pos
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		if a.Z != b.Z {
			return a.Z < b.Z
		}
		return a.X < b.X
	})
	return out
}

func (d *data) AddEntity(e Entity) {
	d.mu.Lock()
	d.entities = append(d.entities, e)
	d.mu.Unlock()
	d.unsaved.Store(true)
}

func (d *data) Entities() []Entity {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Entity(nil), d.entities...)
}

// PackOffset packs a block position into the per-section post-processing
// form.
func PackOffset(pos BlockPos) uint16 {
	return uint16(pos.X&15 | (pos.Y&15)<<4 | (pos.Z&15)<<8)
}

// UnpackOffset is the inverse of PackOffset for a section of the chunk.
func UnpackOffset(p Pos, sectionY int, packed uint16) BlockPos {
	return BlockPos{
		X: p.MinBlockX() + int(packed&15),
		Y: sectionY<<4 + int(packed>>4&15),
		Z: p.MinBlockZ() + int(packed>>8&15),
	}
}

func (d *data) MarkPostProcessing(pos BlockPos) {
	if d.height.IsOutside(pos.Y) {
		return
	}
	i := d.height.SectionIndex(pos.Y)
	packed := PackOffset(pos)
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.postProcessing[i] {
		if p == packed {
			return
		}
	}
	d.postProcessing[i] = append(d.postProcessing[i], packed)
}

// AddPostProcessing appends a packed offset to section i.
func (d *data) AddPostProcessing(i int, packed uint16) {
	d.mu.Lock()
	d.postProcessing[i] = append(d.postProcessing[i], packed)
	d.mu.Unlock()
}

func (d *data) PostProcessing() [][]uint16 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([][]uint16, len(d.postProcessing))
	for i, l := range d.postProcessing {
		out[i] = append([]uint16(nil), l...)
	}
	return out
}

func (d *data) LightSources() []BlockPos {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]BlockPos(nil), d.lights...)
}

// SetLightSources replaces the recorded light sources.
func (d *data) SetLightSources(lights []BlockPos) {
	d.mu.Lock()
	d.lights = append([]BlockPos(nil), lights...)
	d.mu.Unlock()
}

func (d *data) IsLightCorrect() bool { return d.lightCorrect.Load() }

func (d *data) SetLightCorrect(v bool) {
	d.lightCorrect.Store(v)
	d.unsaved.Store(true)
}

func (d *data) Unsaved() bool { return d.unsaved.Load() }
func (d *data) SetUnsaved(v bool) { d.unsaved.Store(v) }
