// Package block defines block state values and the block registry a world
// hands to its containers.
package block

import (
	"fmt"
	"sort"
	"strings"

	"github.com/astei/chunkforge/registry"
)

type Fluid uint8

const (
	FluidNone Fluid = iota
	FluidWater
	FluidLava
)

// State is one block state. States are canonical: a registry holds exactly
// one *State per distinct state and values are compared by pointer.
type State struct {
	Name       string
	Properties map[string]string

	Air            bool
	RandomTicks    bool
	Fluid          Fluid
	FluidTicks     bool
	MotionBlocking bool
	Leaves         bool
	LightEmission  uint8
}

// Key is the lookup key used on disk: the name followed by the sorted
// property list, e.g. "minecraft:water[level=0]".
func (s *State) Key() string {
	return Key(s.Name, s.Properties)
}

func (s *State) String() string {
	return s.Key()
}

// IsAir reports whether s is nil or an air state.
func (s *State) IsAir() bool {
	return s == nil || s.Air
}

// HasFluid reports whether s carries a fluid.
func (s *State) HasFluid() bool {
	return s != nil && s.Fluid != FluidNone
}

// Key builds a state key from its parts.
func Key(name string, props map[string]string) string {
	if len(props) == 0 {
		return name
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('[')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(props[k])
	}
	b.WriteByte(']')
	return b.String()
}

// Set is a block registry plus name lookup.
type Set struct {
	*registry.IDMap[*State]
	byKey map[string]*State
}

// NewSet creates an empty, unfrozen block set.
func NewSet() *Set {
	return &Set{
		IDMap: registry.New[*State](),
		byKey: make(map[string]*State),
	}
}

// Register adds s to the set. Registering a state whose key is already taken
// is an error.
func (s *Set) Register(st *State) (*State, error) {
	k := st.Key()
	if _, ok := s.byKey[k]; ok {
		return nil, fmt.Errorf("block: duplicate state %s", k)
	}
	s.byKey[k] = st
	s.Add(st)
	return st, nil
}

// ByKey returns the state registered under the disk key.
func (s *Set) ByKey(key string) (*State, bool) {
	st, ok := s.byKey[key]
	return st, ok
}

// Lookup finds a state by name and properties.
func (s *Set) Lookup(name string, props map[string]string) (*State, bool) {
	st, ok := s.byKey[Key(name, props)]
	if !ok && !strings.Contains(name, ":") {
		st, ok = s.byKey[Key("minecraft:"+name, props)]
	}
	return st, ok
}

// MustGet returns the state with the given name and no properties; it panics
// when the state is not registered.
func (s *Set) MustGet(name string) *State {
	st, ok := s.Lookup(name, nil)
	if !ok {
		panic("block: unknown state " + name)
	}
	return st
}
