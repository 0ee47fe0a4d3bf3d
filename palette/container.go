// Package palette implements palette-compressed voxel containers: a packed
// array of small local ids plus a palette that maps them back to values.
package palette

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	pk "github.com/Tnze/go-mc/net/packet"

	"github.com/astei/chunkforge/registry"
)

type containerData[T comparable] struct {
	config  Configuration
	palette *Palette[T]
	storage *BitStorage
}

func (d *containerData[T]) value(id int) T {
	v, err := d.palette.ValueFor(id)
	if err != nil {
		panic(err)
	}
	return v
}

// Container couples a palette with bit storage over a fixed volume.
//
// Reads are lock free: the palette and storage pair is published through an
// atomic pointer and replaced wholesale when a write needs a wider palette.
// Writes must come from one goroutine at a time; the guarded methods enforce
// this and panic with *ThreadingViolation when entered concurrently or
// recursively.
type Container[T comparable] struct {
	strategy Strategy
	registry registry.Registry[T]
	data     atomic.Pointer[containerData[T]]
	guard    sync.Mutex
}

// New creates a single-value container filled with initial.
func New[T comparable](s Strategy, reg registry.Registry[T], initial T) *Container[T] {
	c := &Container[T]{strategy: s, registry: reg}
	d := c.newData(s.Configuration(reg.Size(), 0))
	d.palette.IDFor(initial)
	c.data.Store(d)
	return c
}

func (c *Container[T]) newData(cfg Configuration) *containerData[T] {
	return &containerData[T]{
		config:  cfg,
		palette: newPalette(cfg.Kind, cfg.Bits, c.registry, c.onResize),
		storage: mustBitStorage(cfg.Bits, c.strategy.Size()),
	}
}

// onResize migrates every stored id into a palette of at least bits width and
// returns the id of v there. It only runs under the write guard.
func (c *Container[T]) onResize(bits int, v T) int {
	old := c.data.Load()
	cfg := c.strategy.Configuration(c.registry.Size(), bits)
	if cfg == old.config {
		panic(fmt.Sprintf("palette: resize to %d bits keeps %s configuration", bits, cfg.Kind))
	}
	d := c.newData(cfg)
	remap := make([]int, old.palette.Size())
	for i := range remap {
		remap[i] = -1
	}
	old.storage.ForEach(func(i, id int) {
		if remap[id] < 0 {
			remap[id] = d.palette.IDFor(old.value(id))
		}
		d.storage.Set(i, remap[id])
	})
	id := d.palette.IDFor(v)
	c.data.Store(d)
	return id
}

// Acquire takes the write guard for a sequence of unchecked operations.
func (c *Container[T]) Acquire() {
	if !c.guard.TryLock() {
		panic(&ThreadingViolation{Op: "acquire"})
	}
}

// Release gives back the write guard.
func (c *Container[T]) Release() {
	c.guard.Unlock()
}

func (c *Container[T]) acquire(op string) {
	if !c.guard.TryLock() {
		panic(&ThreadingViolation{Op: op})
	}
}

// Strategy reports the container's addressing strategy.
func (c *Container[T]) Strategy() Strategy { return c.strategy }

// Bits is the current storage width.
func (c *Container[T]) Bits() int { return c.data.Load().storage.Bits() }

// Kind is the current palette representation.
func (c *Container[T]) Kind() Kind { return c.data.Load().config.Kind }

// PaletteSize is the number of entries in the current palette.
func (c *Container[T]) PaletteSize() int { return c.data.Load().palette.Size() }

// Get returns the value at local coordinates.
func (c *Container[T]) Get(x, y, z int) T {
	return c.GetIndex(c.strategy.Index(x, y, z))
}

// GetIndex returns the value at a storage index.
func (c *Container[T]) GetIndex(i int) T {
	d := c.data.Load()
	return d.value(d.storage.Get(i))
}

// Set replaces the value at local coordinates.
func (c *Container[T]) Set(x, y, z int, v T) {
	c.acquire("set")
	defer c.guard.Unlock()
	c.set(c.strategy.Index(x, y, z), v)
}

func (c *Container[T]) set(i int, v T) {
	id := c.data.Load().palette.IDFor(v)
	c.data.Load().storage.Set(i, id)
}

// GetAndSet replaces the value at local coordinates and returns the old one.
func (c *Container[T]) GetAndSet(x, y, z int, v T) T {
	c.acquire("get and set")
	defer c.guard.Unlock()
	return c.getAndSet(c.strategy.Index(x, y, z), v)
}

// GetAndSetUnchecked is GetAndSet for callers already holding the guard.
func (c *Container[T]) GetAndSetUnchecked(x, y, z int, v T) T {
	return c.getAndSet(c.strategy.Index(x, y, z), v)
}

func (c *Container[T]) getAndSet(i int, v T) T {
	id := c.data.Load().palette.IDFor(v)
	d := c.data.Load()
	return d.value(d.storage.GetAndSet(i, id))
}

// GetAll calls visit once for every distinct value the palette holds. Global
// palettes have no local table, so their storage is scanned instead.
func (c *Container[T]) GetAll(visit func(T)) {
	d := c.data.Load()
	if d.config.Kind != KindGlobal {
		for _, v := range d.palette.Entries() {
			visit(v)
		}
		return
	}
	seen := make(map[int]struct{})
	d.storage.ForEach(func(_, id int) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		visit(d.value(id))
	})
}

// Count calls visit with every value present in storage and the number of
// cells holding it, in ascending id order.
func (c *Container[T]) Count(visit func(v T, n int)) {
	d := c.data.Load()
	if d.palette.Size() == 1 {
		visit(d.value(0), c.strategy.Size())
		return
	}
	counts := make(map[int]int)
	d.storage.ForEach(func(_, id int) {
		counts[id]++
	})
	ids := make([]int, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		visit(d.value(id), counts[id])
	}
}

// MaybeHas reports whether any palette entry satisfies pred. It may report
// true for values no longer present in storage.
func (c *Container[T]) MaybeHas(pred func(T) bool) bool {
	return c.data.Load().palette.MaybeHas(pred)
}

// ForEach calls fn with every storage index and its value.
func (c *Container[T]) ForEach(fn func(i int, v T)) {
	d := c.data.Load()
	d.storage.ForEach(func(i, id int) {
		fn(i, d.value(id))
	})
}

// Copy returns an independent container with the same contents.
func (c *Container[T]) Copy() *Container[T] {
	d := c.data.Load()
	n := &Container[T]{strategy: c.strategy, registry: c.registry}
	n.data.Store(&containerData[T]{
		config:  d.config,
		palette: d.palette.copyWith(n.onResize),
		storage: d.storage.Copy(),
	})
	return n
}

// Recreate returns a fresh single-value container holding the value of
// palette id 0.
func (c *Container[T]) Recreate() *Container[T] {
	return New(c.strategy, c.registry, c.data.Load().value(0))
}

// WriteTo writes the wire form: the storage width byte, the palette entries
// and the packed storage words.
func (c *Container[T]) WriteTo(w io.Writer) (n int64, err error) {
	c.acquire("write")
	defer c.guard.Unlock()
	d := c.data.Load()

	if n, err = pk.UnsignedByte(d.storage.Bits()).WriteTo(w); err != nil {
		return
	}
	nn, err := d.palette.WriteTo(w)
	n += nn
	if err != nil {
		return
	}
	words := d.storage.Snapshot()
	nn, err = pk.VarInt(len(words)).WriteTo(w)
	n += nn
	if err != nil {
		return
	}
	for _, word := range words {
		nn, err = pk.Long(word).WriteTo(w)
		n += nn
		if err != nil {
			return
		}
	}
	return
}

// ReadFrom replaces the container contents with the wire form read from r.
// On error the container is left unchanged.
func (c *Container[T]) ReadFrom(r io.Reader) (n int64, err error) {
	c.acquire("read")
	defer c.guard.Unlock()

	var bits pk.UnsignedByte
	if n, err = bits.ReadFrom(r); err != nil {
		return
	}
	d := c.newData(c.strategy.Configuration(c.registry.Size(), int(bits)))
	nn, err := d.palette.ReadFrom(r)
	n += nn
	if err != nil {
		return
	}

	var length pk.VarInt
	nn, err = length.ReadFrom(r)
	n += nn
	if err != nil {
		return
	}
	want := storageWords(d.config.Bits, c.strategy.Size())
	if int(length) != want {
		return n, fmt.Errorf("%w: read %d words, expected %d", ErrSizeMismatch, length, want)
	}
	words := make([]uint64, length)
	var v pk.Long
	for i := range words {
		nn, err = v.ReadFrom(r)
		n += nn
		if err != nil {
			return
		}
		words[i] = uint64(v)
	}
	storage, err := NewBitStorage(d.config.Bits, c.strategy.Size(), words)
	if err != nil {
		return n, err
	}
	if err = validate(storage, d.palette); err != nil {
		return n, err
	}
	d.storage = storage
	c.data.Store(d)
	return n, nil
}

// SerializedSize is the number of bytes WriteTo produces.
func (c *Container[T]) SerializedSize() int {
	d := c.data.Load()
	words := storageWords(d.storage.Bits(), d.storage.Size())
	return 1 + d.palette.serializedSize() + varIntSize(words) + 8*words
}

// validate checks that every id in storage resolves in p.
func validate[T comparable](storage *BitStorage, p *Palette[T]) (err error) {
	size := p.Size()
	storage.ForEach(func(_, id int) {
		if err == nil && id >= size {
			err = missingEntry(id)
		}
	})
	return
}
