package chunk

// BoundingBox is an inclusive block-space box.
type BoundingBox struct {
	MinX, MinY, MinZ int
	MaxX, MaxY, MaxZ int
}

// Intersects reports whether the boxes overlap.
func (b BoundingBox) Intersects(o BoundingBox) bool {
	return b.MaxX >= o.MinX && b.MinX <= o.MaxX &&
		b.MaxY >= o.MinY && b.MinY <= o.MaxY &&
		b.MaxZ >= o.MinZ && b.MinZ <= o.MaxZ
}

// IntersectsColumn reports whether the box overlaps the chunk's footprint.
func (b BoundingBox) IntersectsColumn(p Pos) bool {
	minX, minZ := p.MinBlockX(), p.MinBlockZ()
	return b.MaxX >= minX && b.MinX <= minX+15 && b.MaxZ >= minZ && b.MinZ <= minZ+15
}

// Contains reports whether the block lies inside the box.
func (b BoundingBox) Contains(x, y, z int) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY && z >= b.MinZ && z <= b.MaxZ
}

// Encapsulate grows b to cover o.
func (b BoundingBox) Encapsulate(o BoundingBox) BoundingBox {
	return BoundingBox{
		MinX: min(b.MinX, o.MinX), MinY: min(b.MinY, o.MinY), MinZ: min(b.MinZ, o.MinZ),
		MaxX: max(b.MaxX, o.MaxX), MaxY: max(b.MaxY, o.MaxY), MaxZ: max(b.MaxZ, o.MaxZ),
	}
}

// StructurePiece is one placed part of a structure.
type StructurePiece struct {
	ID  string
	Box BoundingBox
}

// StructureStart records a structure placed with its origin in a chunk.
type StructureStart struct {
	Structure  string
	Pos        Pos
	Pieces     []StructurePiece
	References int
}

// Valid reports whether the start placed anything.
func (s *StructureStart) Valid() bool {
	return s != nil && len(s.Pieces) > 0
}

// Box is the bounding box around every piece.
func (s *StructureStart) Box() BoundingBox {
	if len(s.Pieces) == 0 {
		return BoundingBox{}
	}
	b := s.Pieces[0].Box
	for _, p := range s.Pieces[1:] {
		b = b.Encapsulate(p.Box)
	}
	return b
}
