package chunk

import "github.com/willf/bitset"

// CarvingStep selects which carving mask a carver records into.
type CarvingStep uint8

const (
	CarveAir CarvingStep = iota
	CarveLiquid
)

func (s CarvingStep) String() string {
	if s == CarveLiquid {
		return "LIQUID"
	}
	return "AIR"
}

// CarvingMask marks carved blocks of one chunk. Bits are indexed
// x | z<<4 | (y-minY)<<8.
type CarvingMask struct {
	minY int
	bits *bitset.BitSet
}

// NewCarvingMask creates an empty mask for a world of the given height.
func NewCarvingMask(h HeightAccessor) *CarvingMask {
	return &CarvingMask{minY: h.MinY, bits: bitset.New(uint(h.Height) << 8)}
}

func (m *CarvingMask) index(x, y, z int) uint {
	return uint(x&15 | (z&15)<<4 | (y-m.minY)<<8)
}

// Set marks the block.
func (m *CarvingMask) Set(x, y, z int) {
	m.bits.Set(m.index(x, y, z))
}

// Get reports whether the block is marked.
func (m *CarvingMask) Get(x, y, z int) bool {
	return m.bits.Test(m.index(x, y, z))
}

// Count is the number of marked blocks.
func (m *CarvingMask) Count() int {
	return int(m.bits.Count())
}

// ForEach calls fn with the chunk-local x, z and world y of every marked
// block.
func (m *CarvingMask) ForEach(fn func(x, y, z int)) {
	for i, ok := m.bits.NextSet(0); ok; i, ok = m.bits.NextSet(i + 1) {
		fn(int(i&15), int(i>>8)+m.minY, int(i>>4&15))
	}
}

// Words packs the mask into little-endian 64-bit words.
func (m *CarvingMask) Words() []uint64 {
	out := make([]uint64, (m.bits.Len()+63)/64)
	for i, ok := m.bits.NextSet(0); ok; i, ok = m.bits.NextSet(i + 1) {
		out[i/64] |= 1 << (i % 64)
	}
	return out
}

// SetWords replaces the mask with packed words.
func (m *CarvingMask) SetWords(words []uint64) {
	m.bits = bitset.New(m.bits.Len())
	for w, word := range words {
		for b := uint(0); word != 0; b++ {
			if word&1 != 0 {
				m.bits.Set(uint(w)*64 + b)
			}
			word >>= 1
		}
	}
}
