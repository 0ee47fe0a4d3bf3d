// Package registry provides the id tables that palettes resolve their global
// ids against. A registry is owned by the world it belongs to and handed to
// every container that needs it; there is no process-wide instance.
package registry

import (
	"fmt"
	"math/bits"
	"sync/atomic"
)

// Registry maps values to dense integer ids and back.
type Registry[T comparable] interface {
	// ID returns the id assigned to v and whether v is registered.
	ID(v T) (int, bool)
	// ByID returns the value registered under id.
	ByID(id int) (T, bool)
	// Size is the number of registered values. Valid ids are [0, Size).
	Size() int
}

// IDMap is an append-only arena id table. Values receive ids in registration
// order. An IDMap must be frozen before it is shared between goroutines; after
// Freeze it is read-only and safe for concurrent use.
type IDMap[T comparable] struct {
	values []T
	ids    map[T]int
	frozen atomic.Bool
}

// New creates an empty IDMap.
func New[T comparable]() *IDMap[T] {
	return &IDMap[T]{ids: make(map[T]int)}
}

// Add registers v and returns its id. Registering the same value twice
// returns the id it already has.
func (m *IDMap[T]) Add(v T) int {
	if m.frozen.Load() {
		panic(fmt.Sprintf("registry: Add(%v) on frozen registry", v))
	}
	if id, ok := m.ids[v]; ok {
		return id
	}
	id := len(m.values)
	m.values = append(m.values, v)
	m.ids[v] = id
	return id
}

// Freeze makes the map read-only.
func (m *IDMap[T]) Freeze() {
	m.frozen.Store(true)
}

// Frozen reports whether Freeze has been called.
func (m *IDMap[T]) Frozen() bool {
	return m.frozen.Load()
}

func (m *IDMap[T]) ID(v T) (int, bool) {
	id, ok := m.ids[v]
	return id, ok
}

func (m *IDMap[T]) ByID(id int) (v T, ok bool) {
	if id < 0 || id >= len(m.values) {
		return v, false
	}
	return m.values[id], true
}

func (m *IDMap[T]) Size() int {
	return len(m.values)
}

// Values returns the registered values in id order. The slice must not be
// modified.
func (m *IDMap[T]) Values() []T {
	return m.values
}

// CeilLog2 returns the number of bits needed to address n distinct ids.
func CeilLog2(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}
