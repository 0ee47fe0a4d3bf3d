package chunk

import "fmt"

// Pos is a chunk position on the horizontal grid.
type Pos struct {
	X, Z int32
}

// PosFromBlock returns the chunk containing block column (x, z).
func PosFromBlock(x, z int) Pos {
	return Pos{X: int32(x >> 4), Z: int32(z >> 4)}
}

// PosFromKey is the inverse of Pos.Key.
func PosFromKey(k int64) Pos {
	return Pos{X: int32(k), Z: int32(k >> 32)}
}

// Key packs the position into one integer, x in the low half.
func (p Pos) Key() int64 {
	return int64(uint32(p.X)) | int64(p.Z)<<32
}

// Add offsets the position by dx, dz chunks.
func (p Pos) Add(dx, dz int) Pos {
	return Pos{X: p.X + int32(dx), Z: p.Z + int32(dz)}
}

// Chebyshev is the chessboard distance between two positions.
func (p Pos) Chebyshev(o Pos) int {
	dx, dz := abs(int(p.X)-int(o.X)), abs(int(p.Z)-int(o.Z))
	if dx > dz {
		return dx
	}
	return dz
}

// MinBlockX is the lowest block x coordinate in the chunk.
func (p Pos) MinBlockX() int { return int(p.X) << 4 }

// MinBlockZ is the lowest block z coordinate in the chunk.
func (p Pos) MinBlockZ() int { return int(p.Z) << 4 }

// Region returns the region file coordinates holding this chunk.
func (p Pos) Region() (rx, rz int) {
	return int(p.X) >> 5, int(p.Z) >> 5
}

// RegionLocal returns the position inside its region.
func (p Pos) RegionLocal() (x, z int) {
	return int(p.X) & 31, int(p.Z) & 31
}

func (p Pos) String() string {
	return fmt.Sprintf("[%d, %d]", p.X, p.Z)
}

// Square calls fn for every position within Chebyshev radius r of p, row by
// row. It stops early when fn returns false.
func (p Pos) Square(r int, fn func(Pos) bool) {
	for dz := -r; dz <= r; dz++ {
		for dx := -r; dx <= r; dx++ {
			if !fn(p.Add(dx, dz)) {
				return
			}
		}
	}
}

// BlockPos is a block position in world coordinates.
type BlockPos struct {
	X, Y, Z int
}

// Chunk returns the chunk containing the block.
func (b BlockPos) Chunk() Pos {
	return PosFromBlock(b.X, b.Z)
}

func (b BlockPos) String() string {
	return fmt.Sprintf("(%d, %d, %d)", b.X, b.Y, b.Z)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
