package chunk

import (
	"fmt"
	"strings"

	"github.com/astei/chunkforge/block"
	"github.com/astei/chunkforge/palette"
	"github.com/astei/chunkforge/registry"
)

// HeightmapType names a heightmap and decides which blocks it counts.
type HeightmapType uint8

const (
	WorldSurfaceWG HeightmapType = iota
	WorldSurface
	OceanFloorWG
	OceanFloor
	MotionBlocking
	MotionBlockingNoLeaves
)

// NumHeightmapTypes is the number of heightmap types.
const NumHeightmapTypes = int(MotionBlockingNoLeaves) + 1

var heightmapNames = [NumHeightmapTypes]string{
	"WORLD_SURFACE_WG",
	"WORLD_SURFACE",
	"OCEAN_FLOOR_WG",
	"OCEAN_FLOOR",
	"MOTION_BLOCKING",
	"MOTION_BLOCKING_NO_LEAVES",
}

func (t HeightmapType) String() string {
	if int(t) >= NumHeightmapTypes {
		return fmt.Sprintf("HeightmapType(%d)", uint8(t))
	}
	return heightmapNames[t]
}

// ParseHeightmapType resolves a heightmap name as stored on disk.
func ParseHeightmapType(name string) (HeightmapType, bool) {
	for i, n := range heightmapNames {
		if strings.EqualFold(n, name) {
			return HeightmapType(i), true
		}
	}
	return 0, false
}

// Opaque reports whether st stops the column scan of this heightmap.
func (t HeightmapType) Opaque(st *block.State) bool {
	switch t {
	case WorldSurfaceWG, WorldSurface:
		return !st.IsAir()
	case OceanFloorWG, OceanFloor:
		return st != nil && st.MotionBlocking
	case MotionBlocking:
		return st != nil && (st.MotionBlocking || st.HasFluid())
	case MotionBlockingNoLeaves:
		return st != nil && (st.MotionBlocking || st.HasFluid()) && !st.Leaves
	}
	return false
}

// columnReader is what a heightmap needs from its chunk.
type columnReader interface {
	HeightAccessor() HeightAccessor
	BlockState(x, y, z int) *block.State
}

// Heightmap caches, per column, one above the highest block the type treats
// as opaque. Values are stored relative to the world's minimum y.
type Heightmap struct {
	typ    HeightmapType
	chunk  columnReader
	height HeightAccessor
	data   *palette.BitStorage
}

// NewHeightmap creates an unprimed heightmap where every column is at the
// world floor.
func NewHeightmap(c columnReader, t HeightmapType) *Heightmap {
	h := c.HeightAccessor()
	data, err := palette.NewBitStorage(heightmapBits(h), 256, nil)
	if err != nil {
		panic(err)
	}
	return &Heightmap{typ: t, chunk: c, height: h, data: data}
}

func heightmapBits(h HeightAccessor) int {
	return registry.CeilLog2(h.Height + 1)
}

// Type reports the heightmap type.
func (m *Heightmap) Type() HeightmapType { return m.typ }

// FirstAvailable returns the y above the highest opaque block in column
// (x, z), chunk-local.
func (m *Heightmap) FirstAvailable(x, z int) int {
	return m.data.Get(x+z*16) + m.height.MinY
}

// Highest returns the y of the highest opaque block in the column.
func (m *Heightmap) Highest(x, z int) int {
	return m.FirstAvailable(x, z) - 1
}

func (m *Heightmap) setHeight(x, z, y int) {
	m.data.Set(x+z*16, y-m.height.MinY)
}

// Update adjusts the column after st was placed at (x, y, z), chunk-local x
// and z. It reports whether the column height changed.
func (m *Heightmap) Update(x, y, z int, st *block.State) bool {
	top := m.FirstAvailable(x, z)
	if y <= top-2 {
		return false
	}
	if m.typ.Opaque(st) {
		if y >= top {
			m.setHeight(x, z, y+1)
			return true
		}
		return false
	}
	if top-1 != y {
		return false
	}
	for ny := y - 1; ny >= m.height.MinY; ny-- {
		if m.typ.Opaque(m.chunk.BlockState(x, ny, z)) {
			m.setHeight(x, z, ny+1)
			return true
		}
	}
	m.setHeight(x, z, m.height.MinY)
	return true
}

// Raw returns the packed column heights.
func (m *Heightmap) Raw() []uint64 {
	return m.data.Snapshot()
}

// SetRaw replaces the packed column heights.
func (m *Heightmap) SetRaw(data []uint64) error {
	s, err := palette.NewBitStorage(heightmapBits(m.height), 256, data)
	if err != nil {
		return fmt.Errorf("chunk: heightmap %s: %w", m.typ, err)
	}
	m.data = s
	return nil
}

// PrimeHeightmaps computes the given heightmaps of c by scanning every
// column from the top.
func PrimeHeightmaps(c columnReader, maps ...*Heightmap) {
	if len(maps) == 0 {
		return
	}
	h := c.HeightAccessor()
	pending := make([]*Heightmap, 0, len(maps))
	for z := 0; z < 16; z++ {
		for x := 0; x < 16; x++ {
			pending = append(pending[:0], maps...)
			for y := h.MaxY() - 1; y >= h.MinY && len(pending) > 0; y-- {
				st := c.BlockState(x, y, z)
				if st.IsAir() {
					continue
				}
				for i := 0; i < len(pending); {
					if pending[i].typ.Opaque(st) {
						pending[i].setHeight(x, z, y+1)
						pending[i] = pending[len(pending)-1]
						pending = pending[:len(pending)-1]
						continue
					}
					i++
				}
			}
			for _, m := range pending {
				m.setHeight(x, z, h.MinY)
			}
		}
	}
}
