package palette

import (
	"fmt"
	"sync/atomic"
)

// BitStorage is a packed array of fixed-width unsigned integers. Each 64-bit
// word holds 64/bits values; values never span two words, matching the
// on-disk layout since 1.16. A zero-bit storage holds only zeros and has no
// backing words.
//
// Words are loaded and stored atomically, so a single writer may run
// alongside any number of readers.
type BitStorage struct {
	data          []uint64
	bits          int
	size          int
	mask          uint64
	valuesPerLong int
}

// NewBitStorage creates a storage of size values with the given width. data
// is optional; when given it is copied and must hold exactly the number of
// words the width and size require.
func NewBitStorage(bits, size int, data []uint64) (*BitStorage, error) {
	if bits < 0 || bits > 32 {
		return nil, fmt.Errorf("palette: invalid bit width %d", bits)
	}
	want := storageWords(bits, size)
	b := &BitStorage{bits: bits, size: size}
	if bits > 0 {
		b.mask = 1<<uint(bits) - 1
		b.valuesPerLong = 64 / bits
	}
	if data != nil && len(data) != want {
		return nil, fmt.Errorf("%w: got %d words, expected %d for %d values of %d bits",
			ErrSizeMismatch, len(data), want, size, bits)
	}
	b.data = make([]uint64, want)
	copy(b.data, data)
	return b, nil
}

func mustBitStorage(bits, size int) *BitStorage {
	b, err := NewBitStorage(bits, size, nil)
	if err != nil {
		panic(err)
	}
	return b
}

func storageWords(bits, size int) int {
	if bits == 0 {
		return 0
	}
	perLong := 64 / bits
	return (size + perLong - 1) / perLong
}

func (b *BitStorage) locate(i int) (word int, shift uint) {
	if uint(i) >= uint(b.size) {
		panic(fmt.Sprintf("palette: index %d out of range [0,%d)", i, b.size))
	}
	word = i / b.valuesPerLong
	shift = uint((i - word*b.valuesPerLong) * b.bits)
	return
}

func (b *BitStorage) checkValue(v int) {
	if v < 0 || uint64(v) > b.mask {
		panic(fmt.Sprintf("palette: value %d does not fit in %d bits", v, b.bits))
	}
}

// Get returns the value at index i.
func (b *BitStorage) Get(i int) int {
	if b.bits == 0 {
		if uint(i) >= uint(b.size) {
			panic(fmt.Sprintf("palette: index %d out of range [0,%d)", i, b.size))
		}
		return 0
	}
	w, shift := b.locate(i)
	return int(atomic.LoadUint64(&b.data[w]) >> shift & b.mask)
}

// Set stores v at index i.
func (b *BitStorage) Set(i, v int) {
	b.GetAndSet(i, v)
}

// GetAndSet stores v at index i and returns the previous value.
func (b *BitStorage) GetAndSet(i, v int) int {
	if b.bits == 0 {
		b.checkValue(v)
		return b.Get(i)
	}
	b.checkValue(v)
	w, shift := b.locate(i)
	old := atomic.LoadUint64(&b.data[w])
	atomic.StoreUint64(&b.data[w], old&^(b.mask<<shift)|uint64(v)<<shift)
	return int(old >> shift & b.mask)
}

// Size is the number of values held.
func (b *BitStorage) Size() int { return b.size }

// Bits is the width of each value.
func (b *BitStorage) Bits() int { return b.bits }

// Raw returns the backing words. Callers must not race it with writers.
func (b *BitStorage) Raw() []uint64 { return b.data }

// Snapshot returns a copy of the backing words.
func (b *BitStorage) Snapshot() []uint64 {
	out := make([]uint64, len(b.data))
	for i := range b.data {
		out[i] = atomic.LoadUint64(&b.data[i])
	}
	return out
}

// Unpack writes every value into out, which must hold at least Size values.
func (b *BitStorage) Unpack(out []int) {
	if b.bits == 0 {
		clear(out[:b.size])
		return
	}
	i := 0
	for w := range b.data {
		word := atomic.LoadUint64(&b.data[w])
		for j := 0; j < b.valuesPerLong && i < b.size; j++ {
			out[i] = int(word & b.mask)
			word >>= uint(b.bits)
			i++
		}
	}
}

// ForEach calls fn with every index and value in index order.
func (b *BitStorage) ForEach(fn func(i, v int)) {
	if b.bits == 0 {
		for i := 0; i < b.size; i++ {
			fn(i, 0)
		}
		return
	}
	i := 0
	for w := range b.data {
		word := atomic.LoadUint64(&b.data[w])
		for j := 0; j < b.valuesPerLong && i < b.size; j++ {
			fn(i, int(word&b.mask))
			word >>= uint(b.bits)
			i++
		}
	}
}

// Copy returns an independent storage with the same contents.
func (b *BitStorage) Copy() *BitStorage {
	c := *b
	c.data = b.Snapshot()
	return &c
}

// packInts builds a storage of the given width from unpacked values.
func packInts(bits int, values []int) *BitStorage {
	b := mustBitStorage(bits, len(values))
	if bits == 0 {
		return b
	}
	i := 0
	for w := range b.data {
		var word uint64
		for j := 0; j < b.valuesPerLong && i < len(values); j++ {
			b.checkValue(values[i])
			word |= uint64(values[i]) << uint(j*bits)
			i++
		}
		b.data[w] = word
	}
	return b
}
