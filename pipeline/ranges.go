package pipeline

import "github.com/astei/chunkforge/chunk"

// rangeTable answers, for a target status, which status a chunk at a given
// Chebyshev distance from the centre must already have. It is derived from
// the stage ranges: a chunk at distance d from a centre reaching S needs
// whatever a centre reaching parent(S) needs at distance max(0, d-range(S)).
type rangeTable struct {
	// need[s][d] is the required status at distance d; the slice length is
	// the radius plus one.
	need [chunk.NumStatuses][]chunk.Status
}

var ranges = buildRangeTable()

func buildRangeTable() *rangeTable {
	t := &rangeTable{}
	t.need[chunk.StatusEmpty] = []chunk.Status{chunk.StatusEmpty}
	for s := chunk.StatusStructureStarts; s <= chunk.StatusFull; s++ {
		parent := t.need[s.Parent()]
		r := stageRanges[s]
		need := make([]chunk.Status, len(parent)+r)
		need[0] = s
		for d := 1; d < len(need); d++ {
			need[d] = parent[max(0, d-r)]
		}
		t.need[s] = need
	}
	return t
}

// Required returns the status a chunk at distance from the centre must have
// before the centre can reach target. ok is false when nothing is required
// at that distance.
func Required(target chunk.Status, distance int) (s chunk.Status, ok bool) {
	need := ranges.need[target]
	if distance < 0 || distance >= len(need) {
		return chunk.StatusEmpty, false
	}
	return need[distance], true
}

// Radius is the farthest distance at which reaching target requires any
// neighbour work.
func Radius(target chunk.Status) int {
	return len(ranges.need[target]) - 1
}

// MaxDistance is the radius of a Full chunk, the largest neighbourhood the
// pipeline ever touches.
func MaxDistance() int {
	return Radius(chunk.StatusFull)
}

// StatusAround returns the status needed at distance from a Full chunk:
// Full for negative distances, Empty beyond MaxDistance.
func StatusAround(distance int) chunk.Status {
	if distance < 0 {
		return chunk.StatusFull
	}
	s, ok := Required(chunk.StatusFull, distance)
	if !ok {
		return chunk.StatusEmpty
	}
	return s
}

// DistanceFor is the largest distance from a Full chunk at which s is still
// required.
func DistanceFor(s chunk.Status) int {
	need := ranges.need[chunk.StatusFull]
	for d := len(need) - 1; d >= 0; d-- {
		if need[d] >= s {
			return d
		}
	}
	return 0
}
