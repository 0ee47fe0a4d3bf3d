package palette

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	pk "github.com/Tnze/go-mc/net/packet"

	"github.com/astei/chunkforge/registry"
)

func testRegistry(n int) *registry.IDMap[string] {
	reg := registry.New[string]()
	for i := 0; i < n; i++ {
		reg.Add(fmt.Sprintf("v%d", i))
	}
	reg.Freeze()
	return reg
}

func value(i int) string { return fmt.Sprintf("v%d", i) }

func setIndex(c *Container[string], i int, v string) {
	x, y, z := c.Strategy().Coords(i)
	c.Set(x, y, z, v)
}

func fillRandom(c *Container[string], distinct int, seed int64) map[int]string {
	r := rand.New(rand.NewSource(seed))
	want := make(map[int]string)
	for n := 0; n < 2000; n++ {
		x, y, z := r.Intn(16), r.Intn(16), r.Intn(16)
		v := value(r.Intn(distinct))
		c.Set(x, y, z, v)
		want[SectionStates.Index(x, y, z)] = v
	}
	return want
}

func checkCells(t *testing.T, c *Container[string], want map[int]string, fallback string) {
	t.Helper()
	for i := 0; i < c.Strategy().Size(); i++ {
		exp, ok := want[i]
		if !ok {
			exp = fallback
		}
		if got := c.GetIndex(i); got != exp {
			t.Fatalf("cell %d: expected %s, got %s", i, exp, got)
		}
	}
}

func TestReadAfterWrite(t *testing.T) {
	reg := testRegistry(600)
	for _, distinct := range []int{1, 3, 12, 40, 300} {
		c := New(SectionStates, reg, value(0))
		want := fillRandom(c, distinct, int64(distinct))
		checkCells(t, c, want, value(0))
	}
}

func TestResizePreservesValues(t *testing.T) {
	reg := testRegistry(600)
	c := New(SectionStates, reg, value(0))
	want := make(map[int]string)
	lastBits := c.Bits()
	for i := 1; i < 400; i++ {
		idx := i * 7 % 4096
		c.Set(idx&15, idx>>8, idx>>4&15, value(i))
		want[idx] = value(i)
		if c.Bits() < lastBits {
			t.Fatalf("bit width shrank from %d to %d", lastBits, c.Bits())
		}
		if c.Bits() != lastBits {
			checkCells(t, c, want, value(0))
			lastBits = c.Bits()
		}
	}
	checkCells(t, c, want, value(0))
	if c.Kind() != KindGlobal || c.Bits() != 10 {
		t.Fatalf("expected global palette at 10 bits, got %s at %d", c.Kind(), c.Bits())
	}
}

func TestSingleToLinearWithFiveValues(t *testing.T) {
	reg := testRegistry(20)
	c := New(SectionStates, reg, value(0))
	if c.Kind() != KindSingle || c.Bits() != 0 {
		t.Fatalf("expected a fresh single value container, got %s at %d bits", c.Kind(), c.Bits())
	}
	for i := 1; i < 5; i++ {
		c.Set(i, 0, 0, value(i))
	}
	if c.Kind() != KindLinear || c.Bits() != 4 {
		t.Fatalf("expected linear palette at 4 bits, got %s at %d", c.Kind(), c.Bits())
	}
	var got []string
	c.GetAll(func(v string) { got = append(got, v) })
	if len(got) != 5 {
		t.Fatalf("expected 5 palette values, got %v", got)
	}
	for i, v := range got {
		if v != value(i) {
			t.Fatalf("expected %s at palette position %d, got %s", value(i), i, v)
		}
	}
}

func TestConfigurationThresholds(t *testing.T) {
	const regSize = 20000
	tests := []struct {
		strategy Strategy
		bits     int
		want     Configuration
	}{
		{SectionStates, 0, Configuration{KindSingle, 0}},
		{SectionStates, 1, Configuration{KindLinear, 4}},
		{SectionStates, 4, Configuration{KindLinear, 4}},
		{SectionStates, 5, Configuration{KindHashMap, 5}},
		{SectionStates, 8, Configuration{KindHashMap, 8}},
		{SectionStates, 9, Configuration{KindGlobal, 15}},
		{SectionBiomes, 0, Configuration{KindSingle, 0}},
		{SectionBiomes, 1, Configuration{KindLinear, 1}},
		{SectionBiomes, 3, Configuration{KindLinear, 3}},
		{SectionBiomes, 4, Configuration{KindGlobal, 15}},
	}
	for _, tt := range tests {
		if got := tt.strategy.Configuration(regSize, tt.bits); got != tt.want {
			t.Fatalf("%s at %d bits: expected %+v, got %+v", tt.strategy, tt.bits, tt.want, got)
		}
	}
}

func TestIndexLayout(t *testing.T) {
	if got := SectionStates.Index(1, 2, 3); got != 2<<8|3<<4|1 {
		t.Fatalf("unexpected states index %d", got)
	}
	if got := SectionBiomes.Index(1, 2, 3); got != 2<<4|3<<2|1 {
		t.Fatalf("unexpected biomes index %d", got)
	}
	x, y, z := SectionStates.Coords(SectionStates.Index(5, 9, 14))
	if x != 5 || y != 9 || z != 14 {
		t.Fatalf("expected (5,9,14), got (%d,%d,%d)", x, y, z)
	}
}

func TestWireRoundTrip(t *testing.T) {
	reg := testRegistry(600)
	for _, distinct := range []int{1, 4, 30, 300} {
		c := New(SectionStates, reg, value(0))
		want := fillRandom(c, distinct, 99)

		var buf bytes.Buffer
		n, err := c.WriteTo(&buf)
		if err != nil {
			t.Fatalf("write: %v", err)
		}
		if int(n) != buf.Len() || buf.Len() != c.SerializedSize() {
			t.Fatalf("expected %d bytes, wrote %d (reported %d)", c.SerializedSize(), buf.Len(), n)
		}

		read := New(SectionStates, reg, value(0))
		if _, err := read.ReadFrom(&buf); err != nil {
			t.Fatalf("read: %v", err)
		}
		if read.Bits() != c.Bits() || read.Kind() != c.Kind() {
			t.Fatalf("expected %s at %d bits, got %s at %d", c.Kind(), c.Bits(), read.Kind(), read.Bits())
		}
		checkCells(t, read, want, value(0))
	}
}

func TestBiomeWireRoundTrip(t *testing.T) {
	reg := testRegistry(40)
	c := New(SectionBiomes, reg, value(0))
	for i := 0; i < 64; i++ {
		x, y, z := SectionBiomes.Coords(i)
		c.Set(x, y, z, value(i%20))
	}
	if c.Kind() != KindGlobal || c.Bits() != 6 {
		t.Fatalf("expected global biome palette at 6 bits, got %s at %d", c.Kind(), c.Bits())
	}
	var buf bytes.Buffer
	if _, err := c.WriteTo(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	read := New(SectionBiomes, reg, value(0))
	if _, err := read.ReadFrom(&buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	for i := 0; i < 64; i++ {
		if got := read.GetIndex(i); got != value(i%20) {
			t.Fatalf("cell %d: expected %s, got %s", i, value(i%20), got)
		}
	}
}

func writeHeader(buf *bytes.Buffer, bits int, palette []int, words int) {
	pk.UnsignedByte(bits).WriteTo(buf)
	pk.VarInt(len(palette)).WriteTo(buf)
	for _, id := range palette {
		pk.VarInt(id).WriteTo(buf)
	}
	pk.VarInt(words).WriteTo(buf)
}

func TestReadSizeMismatch(t *testing.T) {
	reg := testRegistry(10)
	var buf bytes.Buffer
	writeHeader(&buf, 4, []int{0, 1}, 3)
	for i := 0; i < 3; i++ {
		pk.Long(0).WriteTo(&buf)
	}
	c := New(SectionStates, reg, value(7))
	if _, err := c.ReadFrom(&buf); !errors.Is(err, ErrSizeMismatch) {
		t.Fatalf("expected ErrSizeMismatch, got %v", err)
	}
	if got := c.Get(0, 0, 0); got != value(7) {
		t.Fatalf("expected failed read to leave contents, got %s", got)
	}
}

func TestReadMissingEntry(t *testing.T) {
	reg := testRegistry(10)
	var buf bytes.Buffer
	writeHeader(&buf, 4, []int{0, 1}, 256)
	pk.Long(5).WriteTo(&buf)
	for i := 1; i < 256; i++ {
		pk.Long(0).WriteTo(&buf)
	}
	c := New(SectionStates, reg, value(0))
	if _, err := c.ReadFrom(&buf); !errors.Is(err, ErrMissingEntry) {
		t.Fatalf("expected ErrMissingEntry, got %v", err)
	}
}

func TestReadUnknownRegistryID(t *testing.T) {
	reg := testRegistry(10)
	var buf bytes.Buffer
	pk.UnsignedByte(0).WriteTo(&buf)
	pk.VarInt(55).WriteTo(&buf)
	pk.VarInt(0).WriteTo(&buf)
	c := New(SectionStates, reg, value(0))
	if _, err := c.ReadFrom(&buf); !errors.Is(err, ErrMissingEntry) {
		t.Fatalf("expected ErrMissingEntry, got %v", err)
	}
}

func TestPackUnpack(t *testing.T) {
	reg := testRegistry(600)
	for _, distinct := range []int{1, 5, 17, 300} {
		c := New(SectionStates, reg, value(0))
		want := fillRandom(c, distinct, 7)
		p := c.Pack()
		if distinct == 1 && p.Data != nil {
			t.Fatalf("expected no storage for a single value palette")
		}
		u, err := Unpack(SectionStates, reg, p)
		if err != nil {
			t.Fatalf("unpack %d: %v", distinct, err)
		}
		checkCells(t, u, want, value(0))
	}
}

func TestPackCompactsUnusedEntries(t *testing.T) {
	reg := testRegistry(20)
	c := New(SectionStates, reg, value(0))
	c.Set(0, 0, 0, value(1))
	c.Set(0, 0, 0, value(0))
	if c.PaletteSize() != 2 {
		t.Fatalf("expected the stale entry to stay in the live palette")
	}
	p := c.Pack()
	if len(p.Palette) != 1 || p.Palette[0] != value(0) || p.Data != nil {
		t.Fatalf("expected a compacted single entry, got %+v", p)
	}
}

func TestUnpackErrors(t *testing.T) {
	reg := testRegistry(20)
	if _, err := Unpack(SectionStates, reg, Packed[string]{Palette: []string{value(0), value(1)}, Data: make([]uint64, 3)}); !errors.Is(err, ErrSizeMismatch) {
		t.Fatalf("expected ErrSizeMismatch, got %v", err)
	}
	data := make([]uint64, 256)
	data[10] = 3
	if _, err := Unpack(SectionStates, reg, Packed[string]{Palette: []string{value(0), value(1)}, Data: data}); !errors.Is(err, ErrMissingEntry) {
		t.Fatalf("expected ErrMissingEntry, got %v", err)
	}
	if _, err := Unpack(SectionStates, reg, Packed[string]{Palette: []string{"nope"}}); !errors.Is(err, ErrMissingEntry) {
		t.Fatalf("expected ErrMissingEntry for an unregistered value, got %v", err)
	}
}

func TestCount(t *testing.T) {
	reg := testRegistry(20)
	c := New(SectionStates, reg, value(3))
	var calls int
	c.Count(func(v string, n int) {
		calls++
		if v != value(3) || n != 4096 {
			t.Fatalf("expected (v3, 4096), got (%s, %d)", v, n)
		}
	})
	if calls != 1 {
		t.Fatalf("expected one count, got %d", calls)
	}

	for x := 0; x < 16; x++ {
		c.Set(x, 0, 0, value(1))
	}
	got := make(map[string]int)
	c.Count(func(v string, n int) { got[v] = n })
	if got[value(1)] != 16 || got[value(3)] != 4080 {
		t.Fatalf("unexpected counts %v", got)
	}
}

func TestGetAndSetReturnsOld(t *testing.T) {
	reg := testRegistry(20)
	c := New(SectionStates, reg, value(0))
	if old := c.GetAndSet(1, 2, 3, value(4)); old != value(0) {
		t.Fatalf("expected v0, got %s", old)
	}
	if old := c.GetAndSet(1, 2, 3, value(5)); old != value(4) {
		t.Fatalf("expected v4, got %s", old)
	}
}

func TestCopyIsIndependent(t *testing.T) {
	reg := testRegistry(20)
	c := New(SectionStates, reg, value(0))
	c.Set(0, 0, 0, value(1))
	cp := c.Copy()
	for i := 2; i < 10; i++ {
		cp.Set(i, 0, 0, value(i))
	}
	if c.Get(2, 0, 0) != value(0) || c.PaletteSize() != 2 {
		t.Fatalf("expected the original to be unaffected by writes to the copy")
	}
	if cp.Get(0, 0, 0) != value(1) || cp.Get(9, 0, 0) != value(9) {
		t.Fatalf("unexpected copy contents")
	}
}

func TestRecreate(t *testing.T) {
	reg := testRegistry(20)
	c := New(SectionStates, reg, value(2))
	c.Set(0, 0, 0, value(5))
	r := c.Recreate()
	if r.Kind() != KindSingle || r.Get(0, 0, 0) != value(2) {
		t.Fatalf("expected a single value container of v2, got %s", r.Kind())
	}
}

func TestMaybeHas(t *testing.T) {
	reg := testRegistry(600)
	c := New(SectionStates, reg, value(0))
	if c.MaybeHas(func(v string) bool { return v == value(1) }) {
		t.Fatalf("expected single value palette to rule out v1")
	}
	c.Set(0, 0, 0, value(1))
	if !c.MaybeHas(func(v string) bool { return v == value(1) }) {
		t.Fatalf("expected v1 after set")
	}
	for i := 2; i < 300; i++ {
		setIndex(c, i, value(i))
	}
	if !c.MaybeHas(func(string) bool { return false }) {
		t.Fatalf("expected global palette to answer conservatively")
	}
}

func TestNestedGuardPanics(t *testing.T) {
	reg := testRegistry(20)
	c := New(SectionStates, reg, value(0))
	c.Acquire()
	defer c.Release()
	defer func() {
		r := recover()
		var v *ThreadingViolation
		if err, ok := r.(error); !ok || !errors.As(err, &v) {
			t.Fatalf("expected a ThreadingViolation panic, got %v", r)
		}
	}()
	c.Set(0, 0, 0, value(1))
}

func TestUncheckedUnderGuard(t *testing.T) {
	reg := testRegistry(20)
	c := New(SectionStates, reg, value(0))
	c.Acquire()
	for i := 0; i < 16; i++ {
		c.GetAndSetUnchecked(i, 0, 0, value(i))
	}
	c.Release()
	if c.Get(15, 0, 0) != value(15) {
		t.Fatalf("expected v15")
	}
}

func TestUnregisteredValuePanics(t *testing.T) {
	reg := testRegistry(4)
	c := New(SectionStates, reg, value(0))
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic for an unregistered value")
		}
	}()
	c.Set(0, 0, 0, "unknown")
}

func TestConcurrentReadersDuringResize(t *testing.T) {
	reg := testRegistry(600)
	c := New(SectionStates, reg, value(0))
	c.Set(0, 0, 0, value(1))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if got := c.Get(0, 0, 0); got != value(1) {
					t.Errorf("reader observed %s", got)
					return
				}
			}
		}()
	}
	for i := 1; i < 4096; i++ {
		setIndex(c, i, value(i%500+2))
	}
	close(stop)
	wg.Wait()
}
