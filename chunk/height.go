package chunk

import "fmt"

// SectionSize is the edge length of a section in blocks.
const SectionSize = 16

// HeightAccessor describes the vertical range of a world. MinY and Height
// are multiples of the section size.
type HeightAccessor struct {
	MinY   int
	Height int
}

// Validate checks that the range is non-empty and section aligned.
func (h HeightAccessor) Validate() error {
	if h.Height <= 0 || h.Height%SectionSize != 0 || h.MinY%SectionSize != 0 {
		return fmt.Errorf("chunk: height range %d+%d is not a positive multiple of %d", h.MinY, h.Height, SectionSize)
	}
	return nil
}

// MaxY is one past the highest block y.
func (h HeightAccessor) MaxY() int { return h.MinY + h.Height }

// SectionCount is the number of sections in a chunk.
func (h HeightAccessor) SectionCount() int { return h.Height / SectionSize }

// MinSection is the section y of the lowest section.
func (h HeightAccessor) MinSection() int { return h.MinY >> 4 }

// MaxSection is one past the section y of the highest section.
func (h HeightAccessor) MaxSection() int { return h.MinSection() + h.SectionCount() }

// SectionIndex returns the chunk-local index of the section holding block y.
func (h HeightAccessor) SectionIndex(y int) int {
	return y>>4 - h.MinSection()
}

// SectionY returns the section y of the section at index i.
func (h HeightAccessor) SectionY(i int) int {
	return i + h.MinSection()
}

// IsOutside reports whether block y is outside the world.
func (h HeightAccessor) IsOutside(y int) bool {
	return y < h.MinY || y >= h.MaxY()
}
