package palette

import (
	"fmt"
	"io"
	"sync/atomic"

	pk "github.com/Tnze/go-mc/net/packet"

	"github.com/astei/chunkforge/registry"
)

// Kind selects how a palette maps local ids to values.
type Kind uint8

const (
	// KindSingle holds exactly one value; storage is zero bits wide.
	KindSingle Kind = iota
	// KindLinear keeps entries in a small array searched linearly.
	KindLinear
	// KindHashMap keeps entries in an array plus a reverse hash index.
	KindHashMap
	// KindGlobal stores registry ids directly.
	KindGlobal
)

func (k Kind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindLinear:
		return "linear"
	case KindHashMap:
		return "hashmap"
	case KindGlobal:
		return "global"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ResizeFunc is called when a palette is full. It must migrate the owning
// container to a palette of at least bits width, add v, and return v's id in
// the new palette.
type ResizeFunc[T comparable] func(bits int, v T) int

// Palette maps local ids to values. Entries are appended by one writer only;
// readers resolve ids through ValueFor without locking. The entry array is
// allocated at its full capacity up front and never reallocated, and the
// entry count is published after the slot is written, so a reader never
// observes a partially added entry.
type Palette[T comparable] struct {
	kind     Kind
	bits     int
	registry registry.Registry[T]
	resize   ResizeFunc[T]

	values []T
	size   atomic.Int32
	// ids is the reverse index of a hashmap palette, used by the writer only.
	ids map[T]int
}

func newPalette[T comparable](kind Kind, bits int, reg registry.Registry[T], resize ResizeFunc[T]) *Palette[T] {
	p := &Palette[T]{kind: kind, bits: bits, registry: reg, resize: resize}
	switch kind {
	case KindSingle:
		p.values = make([]T, 1)
	case KindLinear:
		p.values = make([]T, 1<<uint(bits))
	case KindHashMap:
		p.values = make([]T, 1<<uint(bits))
		p.ids = make(map[T]int)
	case KindGlobal:
	default:
		panic(fmt.Sprintf("palette: unknown kind %d", kind))
	}
	return p
}

// Kind reports the palette representation.
func (p *Palette[T]) Kind() Kind { return p.kind }

// Size is the number of addressable entries. For a global palette this is the
// registry size.
func (p *Palette[T]) Size() int {
	if p.kind == KindGlobal {
		return p.registry.Size()
	}
	return int(p.size.Load())
}

func (p *Palette[T]) mustRegistered(v T) {
	if _, ok := p.registry.ID(v); !ok {
		panic(fmt.Sprintf("palette: value %v is not registered", v))
	}
}

func (p *Palette[T]) append(n int, v T) int {
	p.values[n] = v
	if p.ids != nil {
		p.ids[v] = n
	}
	p.size.Store(int32(n + 1))
	return n
}

// IDFor returns the id of v, adding it when absent. A full palette hands the
// value to its resize callback and returns the id the callback produced.
func (p *Palette[T]) IDFor(v T) int {
	switch p.kind {
	case KindSingle:
		if p.size.Load() == 0 {
			p.mustRegistered(v)
			return p.append(0, v)
		}
		if p.values[0] == v {
			return 0
		}
		p.mustRegistered(v)
		return p.resize(1, v)
	case KindLinear:
		n := int(p.size.Load())
		for i := 0; i < n; i++ {
			if p.values[i] == v {
				return i
			}
		}
		p.mustRegistered(v)
		if n < len(p.values) {
			return p.append(n, v)
		}
		return p.resize(p.bits+1, v)
	case KindHashMap:
		if id, ok := p.ids[v]; ok {
			return id
		}
		p.mustRegistered(v)
		n := int(p.size.Load())
		if n < len(p.values) {
			return p.append(n, v)
		}
		return p.resize(p.bits+1, v)
	default:
		id, ok := p.registry.ID(v)
		if !ok {
			panic(fmt.Sprintf("palette: value %v is not registered", v))
		}
		return id
	}
}

// ValueFor resolves id.
func (p *Palette[T]) ValueFor(id int) (v T, err error) {
	if p.kind == KindGlobal {
		v, ok := p.registry.ByID(id)
		if !ok {
			return v, missingEntry(id)
		}
		return v, nil
	}
	if id < 0 || id >= int(p.size.Load()) {
		return v, missingEntry(id)
	}
	return p.values[id], nil
}

// MaybeHas reports whether any entry satisfies pred. Global palettes answer
// true; the caller has to scan storage to be sure.
func (p *Palette[T]) MaybeHas(pred func(T) bool) bool {
	if p.kind == KindGlobal {
		return true
	}
	n := int(p.size.Load())
	for i := 0; i < n; i++ {
		if pred(p.values[i]) {
			return true
		}
	}
	return false
}

// Entries returns the palette entries in id order. Global palettes have none.
func (p *Palette[T]) Entries() []T {
	if p.kind == KindGlobal {
		return nil
	}
	n := int(p.size.Load())
	out := make([]T, n)
	copy(out, p.values[:n])
	return out
}

// copyWith returns an independent palette that reports resizes to resize.
func (p *Palette[T]) copyWith(resize ResizeFunc[T]) *Palette[T] {
	c := newPalette(p.kind, p.bits, p.registry, resize)
	for _, v := range p.Entries() {
		c.append(int(c.size.Load()), v)
	}
	return c
}

func (p *Palette[T]) registryID(v T) (pk.VarInt, error) {
	id, ok := p.registry.ID(v)
	if !ok {
		return 0, fmt.Errorf("palette: value %v is not registered", v)
	}
	return pk.VarInt(id), nil
}

// WriteTo writes the palette entries as registry ids.
func (p *Palette[T]) WriteTo(w io.Writer) (n int64, err error) {
	switch p.kind {
	case KindSingle:
		if p.size.Load() == 0 {
			return 0, fmt.Errorf("palette: writing uninitialized single value palette")
		}
		id, err := p.registryID(p.values[0])
		if err != nil {
			return 0, err
		}
		return id.WriteTo(w)
	case KindLinear, KindHashMap:
		entries := p.Entries()
		if n, err = pk.VarInt(len(entries)).WriteTo(w); err != nil {
			return
		}
		for _, v := range entries {
			id, err := p.registryID(v)
			if err != nil {
				return n, err
			}
			nn, err := id.WriteTo(w)
			n += nn
			if err != nil {
				return n, err
			}
		}
	}
	return
}

// ReadFrom replaces the entries of an empty palette with registry ids read
// from r.
func (p *Palette[T]) ReadFrom(r io.Reader) (n int64, err error) {
	var id pk.VarInt
	switch p.kind {
	case KindSingle:
		if n, err = id.ReadFrom(r); err != nil {
			return
		}
		v, ok := p.registry.ByID(int(id))
		if !ok {
			return n, missingEntry(int(id))
		}
		p.append(0, v)
	case KindLinear, KindHashMap:
		var size pk.VarInt
		if n, err = size.ReadFrom(r); err != nil {
			return
		}
		if size < 0 || int(size) > len(p.values) {
			return n, fmt.Errorf("palette: %d entries exceed the %d-bit palette capacity", size, p.bits)
		}
		for i := 0; i < int(size); i++ {
			nn, err := id.ReadFrom(r)
			n += nn
			if err != nil {
				return n, err
			}
			v, ok := p.registry.ByID(int(id))
			if !ok {
				return n, missingEntry(int(id))
			}
			p.append(i, v)
		}
	}
	return
}

// serializedSize is the number of bytes WriteTo produces.
func (p *Palette[T]) serializedSize() int {
	switch p.kind {
	case KindSingle:
		if p.size.Load() == 0 {
			return 0
		}
		id, _ := p.registry.ID(p.values[0])
		return varIntSize(id)
	case KindLinear, KindHashMap:
		entries := p.Entries()
		size := varIntSize(len(entries))
		for _, v := range entries {
			id, _ := p.registry.ID(v)
			size += varIntSize(id)
		}
		return size
	}
	return 0
}

func varIntSize(v int) int {
	u := uint32(v)
	n := 1
	for u >= 0x80 {
		u >>= 7
		n++
	}
	return n
}
