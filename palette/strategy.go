package palette

import "github.com/astei/chunkforge/registry"

// Configuration is the palette kind and storage width a container uses for a
// given requested width.
type Configuration struct {
	Kind Kind
	Bits int
}

// Strategy fixes a container's volume and the thresholds at which it
// switches palette representation.
type Strategy struct {
	name      string
	sizeBits  int
	configure func(registrySize, bits int) Configuration
}

var (
	// SectionStates addresses the 16x16x16 block states of a section.
	SectionStates = Strategy{
		name:     "states",
		sizeBits: 4,
		configure: func(registrySize, bits int) Configuration {
			switch {
			case bits == 0:
				return Configuration{KindSingle, 0}
			case bits <= 4:
				return Configuration{KindLinear, 4}
			case bits <= 8:
				return Configuration{KindHashMap, bits}
			}
			return Configuration{KindGlobal, registry.CeilLog2(registrySize)}
		},
	}
	// SectionBiomes addresses the 4x4x4 biome cells of a section.
	SectionBiomes = Strategy{
		name:     "biomes",
		sizeBits: 2,
		configure: func(registrySize, bits int) Configuration {
			switch {
			case bits == 0:
				return Configuration{KindSingle, 0}
			case bits <= 3:
				return Configuration{KindLinear, bits}
			}
			return Configuration{KindGlobal, registry.CeilLog2(registrySize)}
		},
	}
)

func (s Strategy) String() string { return s.name }

// Edge is the side length of the addressed cube.
func (s Strategy) Edge() int { return 1 << uint(s.sizeBits) }

// Size is the number of values in a container.
func (s Strategy) Size() int { return 1 << uint(3*s.sizeBits) }

// Index maps local coordinates to a storage index: y is the most significant
// axis, then z, then x.
func (s Strategy) Index(x, y, z int) int {
	return (y<<s.sizeBits|z)<<s.sizeBits | x
}

// Coords is the inverse of Index.
func (s Strategy) Coords(i int) (x, y, z int) {
	mask := s.Edge() - 1
	return i & mask, i >> (2 * s.sizeBits) & mask, i >> s.sizeBits & mask
}

// Configuration returns the representation for a requested width.
func (s Strategy) Configuration(registrySize, bits int) Configuration {
	return s.configure(registrySize, bits)
}

// serializationBits is the width packed storage uses for a palette of the
// given size: the minimal width rounded up to the configuration's width,
// except for global configurations which keep the minimal width.
func (s Strategy) serializationBits(registrySize, paletteSize int) int {
	bits := registry.CeilLog2(paletteSize)
	cfg := s.Configuration(registrySize, bits)
	if cfg.Kind == KindGlobal {
		return bits
	}
	return cfg.Bits
}
