package palette

import (
	"errors"
	"fmt"

	"github.com/astei/chunkforge/registry"
)

// Packed is the disk form of a container: the values actually in use and
// the storage packed at the serialization width. Data is nil when the
// palette holds a single value.
type Packed[T comparable] struct {
	Palette []T
	Data    []uint64
}

// Pack compacts the container to the values present in storage.
func (c *Container[T]) Pack() Packed[T] {
	c.acquire("pack")
	defer c.guard.Unlock()
	d := c.data.Load()

	size := c.strategy.Size()
	ids := make([]int, size)
	d.storage.Unpack(ids)

	var entries []T
	index := make(map[int]int)
	for i, id := range ids {
		local, ok := index[id]
		if !ok {
			local = len(entries)
			index[id] = local
			entries = append(entries, d.value(id))
		}
		ids[i] = local
	}

	bits := c.strategy.serializationBits(c.registry.Size(), len(entries))
	if bits == 0 {
		return Packed[T]{Palette: entries}
	}
	return Packed[T]{Palette: entries, Data: packInts(bits, ids).Raw()}
}

// Unpack rebuilds a container from its disk form. It returns ErrSizeMismatch
// when the data does not hold the required number of words and
// ErrMissingEntry when a packed id has no palette entry.
func Unpack[T comparable](s Strategy, reg registry.Registry[T], p Packed[T]) (*Container[T], error) {
	if len(p.Palette) == 0 {
		return nil, fmt.Errorf("%w: empty palette", ErrMissingEntry)
	}
	for _, v := range p.Palette {
		if _, ok := reg.ID(v); !ok {
			return nil, fmt.Errorf("%w: value %v is not registered", ErrMissingEntry, v)
		}
	}
	size := s.Size()
	bits := s.serializationBits(reg.Size(), len(p.Palette))
	cfg := s.Configuration(reg.Size(), bits)

	c := &Container[T]{strategy: s, registry: reg}
	d := c.newData(cfg)
	if bits == 0 {
		d.palette.IDFor(p.Palette[0])
		c.data.Store(d)
		return c, nil
	}
	if p.Data == nil {
		return nil, errors.New("palette: missing storage for a multi-value palette")
	}

	packed, err := NewBitStorage(bits, size, p.Data)
	if err != nil {
		return nil, err
	}
	ids := make([]int, size)
	packed.Unpack(ids)

	// The local palette is rebuilt in disk order, so ids carry over unless
	// the configuration stores registry ids directly.
	var remap []int
	if cfg.Kind == KindGlobal {
		remap = make([]int, len(p.Palette))
		for i, v := range p.Palette {
			remap[i], _ = reg.ID(v)
		}
	} else {
		if len(p.Palette) > len(d.palette.values) {
			return nil, fmt.Errorf("palette: %d entries exceed the %d-bit palette capacity", len(p.Palette), cfg.Bits)
		}
		for _, v := range p.Palette {
			d.palette.append(int(d.palette.size.Load()), v)
		}
	}
	for i, id := range ids {
		if id >= len(p.Palette) {
			return nil, missingEntry(id)
		}
		if remap != nil {
			ids[i] = remap[id]
		}
	}
	d.storage = packInts(cfg.Bits, ids)
	c.data.Store(d)
	return c, nil
}
