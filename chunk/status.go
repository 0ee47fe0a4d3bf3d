package chunk

import (
	"errors"
	"fmt"
	"strings"
)

// Status is a chunk's position in the generation pipeline. Statuses are
// ordered; a chunk's status only moves forward.
type Status int8

const (
	StatusEmpty Status = iota
	StatusStructureStarts
	StatusStructureReferences
	StatusBiomes
	StatusNoise
	StatusSurface
	StatusCarvers
	StatusLiquidCarvers
	StatusFeatures
	StatusLight
	StatusSpawn
	StatusHeightmaps
	StatusFull
)

// NumStatuses is the number of pipeline statuses.
const NumStatuses = int(StatusFull) + 1

var ErrUnknownStatus = errors.New("chunk: unknown status")

var statusNames = [NumStatuses]string{
	"empty",
	"structure_starts",
	"structure_references",
	"biomes",
	"noise",
	"surface",
	"carvers",
	"liquid_carvers",
	"features",
	"light",
	"spawn",
	"heightmaps",
	"full",
}

func (s Status) String() string {
	if s < 0 || int(s) >= NumStatuses {
		return fmt.Sprintf("Status(%d)", int8(s))
	}
	return statusNames[s]
}

// ParseStatus resolves a status name, with or without the minecraft
// namespace.
func ParseStatus(name string) (Status, error) {
	name = strings.TrimPrefix(strings.ToLower(name), "minecraft:")
	for i, n := range statusNames {
		if n == name {
			return Status(i), nil
		}
	}
	return StatusEmpty, fmt.Errorf("%w: %q", ErrUnknownStatus, name)
}

// IsOrAfter reports whether s is at or past o.
func (s Status) IsOrAfter(o Status) bool {
	return s >= o
}

// Parent is the status a chunk must have before s can be produced. Empty is
// its own parent.
func (s Status) Parent() Status {
	if s == StatusEmpty {
		return StatusEmpty
	}
	return s - 1
}

// Next returns the status after s; Full is the last.
func (s Status) Next() Status {
	if s >= StatusFull {
		return StatusFull
	}
	return s + 1
}

// Statuses lists every status from Empty through to.
func Statuses(to Status) []Status {
	out := make([]Status, 0, int(to)+1)
	for s := StatusEmpty; s <= to; s++ {
		out = append(out, s)
	}
	return out
}

var (
	worldgenHeightmaps    = []HeightmapType{OceanFloorWG, WorldSurfaceWG}
	postFeatureHeightmaps = []HeightmapType{OceanFloor, WorldSurface, MotionBlocking, MotionBlockingNoLeaves}
)

// Heightmaps lists the heightmaps a chunk at status s keeps up to date on
// every block write. The final set takes over once liquid carving is done,
// so feature placement maintains it.
func (s Status) Heightmaps() []HeightmapType {
	if s.IsOrAfter(StatusLiquidCarvers) {
		return postFeatureHeightmaps
	}
	return worldgenHeightmaps
}
