package palette

import (
	"errors"
	"testing"
)

func TestBitStorageNoSpanning(t *testing.T) {
	b, err := NewBitStorage(5, 4096, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if len(b.Raw()) != 342 {
		t.Fatalf("expected 342 words for 12 values per word, got %d", len(b.Raw()))
	}
	for i := 0; i < b.Size(); i++ {
		b.Set(i, i%32)
	}
	for i := 0; i < b.Size(); i++ {
		if got := b.Get(i); got != i%32 {
			t.Fatalf("index %d: expected %d, got %d", i, i%32, got)
		}
	}
	// The top four bits of every word are padding.
	for _, w := range b.Raw() {
		if w>>60 != 0 {
			t.Fatalf("expected unused high bits, got %x", w)
		}
	}
}

func TestBitStorageUnpackMatchesGet(t *testing.T) {
	b, _ := NewBitStorage(7, 100, nil)
	for i := 0; i < 100; i++ {
		if old := b.GetAndSet(i, 127-i); old != 0 {
			t.Fatalf("expected zero before first write, got %d", old)
		}
	}
	out := make([]int, 100)
	b.Unpack(out)
	for i, v := range out {
		if v != b.Get(i) {
			t.Fatalf("index %d: unpack %d, get %d", i, v, b.Get(i))
		}
	}
	c := b.Copy()
	c.Set(0, 1)
	if b.Get(0) != 127 {
		t.Fatalf("expected copy to be independent")
	}
}

func TestBitStorageSizeMismatch(t *testing.T) {
	if _, err := NewBitStorage(4, 4096, make([]uint64, 255)); !errors.Is(err, ErrSizeMismatch) {
		t.Fatalf("expected ErrSizeMismatch, got %v", err)
	}
	b, err := NewBitStorage(0, 4096, nil)
	if err != nil || len(b.Raw()) != 0 || b.Get(4095) != 0 {
		t.Fatalf("expected an empty zero-width storage, got %v", err)
	}
}

func TestBitStorageValueTooWide(t *testing.T) {
	b, _ := NewBitStorage(4, 16, nil)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic for a value wider than the storage")
		}
	}()
	b.Set(0, 16)
}
