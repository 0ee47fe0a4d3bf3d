package chunk

import "github.com/astei/chunkforge/block"

// LevelChunk is a fully generated chunk. Its status is always Full.
type LevelChunk struct {
	*data
	blockTicks []ScheduledTick
	fluidTicks []ScheduledTick
}

// Promote builds the level chunk for a proto chunk, taking over its data.
// The proto chunk must not be written to afterwards.
func Promote(p *ProtoChunk) *LevelChunk {
	return &LevelChunk{
		data:       p.data,
		blockTicks: p.BlockTicks(),
		fluidTicks: p.FluidTicks(),
	}
}

func (l *LevelChunk) Status() Status { return StatusFull }
func (l *LevelChunk) IsOrAfter(s Status) bool { return StatusFull.IsOrAfter(s) }

// SetBlockState places st and maintains the final heightmaps.
func (l *LevelChunk) SetBlockState(x, y, z int, st *block.State) *block.State {
	return l.setBlockState(x, y, z, st, postFeatureHeightmaps)
}

func (l *LevelChunk) BlockTicks() []ScheduledTick { return l.blockTicks }
func (l *LevelChunk) FluidTicks() []ScheduledTick { return l.fluidTicks }
