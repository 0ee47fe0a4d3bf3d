// Package biome defines biome values and the biome registry.
package biome

import (
	"strings"

	"github.com/astei/chunkforge/registry"
)

// Biome is a canonical biome value; compare by pointer.
type Biome struct {
	Name        string
	Temperature float32
	Downfall    float32
}

func (b *Biome) String() string {
	return b.Name
}

// Set is a biome registry plus name lookup.
type Set struct {
	*registry.IDMap[*Biome]
	byName map[string]*Biome
}

func NewSet() *Set {
	return &Set{IDMap: registry.New[*Biome](), byName: make(map[string]*Biome)}
}

// Register adds b to the set and returns it.
func (s *Set) Register(b *Biome) *Biome {
	if old, ok := s.byName[b.Name]; ok {
		return old
	}
	s.byName[b.Name] = b
	s.Add(b)
	return b
}

// Lookup finds a biome by name; unqualified names are looked up in the
// minecraft namespace.
func (s *Set) Lookup(name string) (*Biome, bool) {
	if !strings.Contains(name, ":") {
		name = "minecraft:" + name
	}
	b, ok := s.byName[name]
	return b, ok
}

func (s *Set) MustGet(name string) *Biome {
	b, ok := s.Lookup(name)
	if !ok {
		panic("biome: unknown biome " + name)
	}
	return b
}

// Default builds the frozen standard biome set. Plains is id 0.
func Default() *Set {
	s := NewSet()
	for _, b := range []*Biome{
		{Name: "minecraft:plains", Temperature: 0.8, Downfall: 0.4},
		{Name: "minecraft:forest", Temperature: 0.7, Downfall: 0.8},
		{Name: "minecraft:desert", Temperature: 2.0, Downfall: 0},
		{Name: "minecraft:ocean", Temperature: 0.5, Downfall: 0.5},
		{Name: "minecraft:river", Temperature: 0.5, Downfall: 0.5},
		{Name: "minecraft:snowy_plains", Temperature: 0, Downfall: 0.5},
		{Name: "minecraft:windswept_hills", Temperature: 0.2, Downfall: 0.3},
		{Name: "minecraft:beach", Temperature: 0.8, Downfall: 0.4},
	} {
		s.Register(b)
	}
	s.Freeze()
	return s
}
