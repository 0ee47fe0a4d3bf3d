package chunk

import (
	"sync"
	"sync/atomic"

	"github.com/astei/chunkforge/biome"
	"github.com/astei/chunkforge/block"
	"github.com/astei/chunkforge/registry"
)

// ProtoChunk is a chunk under generation. Stages mutate it in place and
// advance its status; it is never replaced until promoted to a LevelChunk.
type ProtoChunk struct {
	*data
	status atomic.Int32

	extra      sync.Mutex
	carving    [2]*CarvingMask
	blockTicks []ScheduledTick
	fluidTicks []ScheduledTick
}

// NewProtoChunk creates an empty chunk: every section air, status Empty.
func NewProtoChunk(pos Pos, h HeightAccessor, states registry.Registry[*block.State], biomes registry.Registry[*biome.Biome]) *ProtoChunk {
	sections := make([]*Section, h.SectionCount())
	for i := range sections {
		sections[i] = NewSection(states, biomes)
	}
	return NewProtoChunkFrom(pos, h, states, sections)
}

// NewProtoChunkFrom wraps sections loaded from storage. The status starts at
// Empty; loaders advance it with SetStatus.
func NewProtoChunkFrom(pos Pos, h HeightAccessor, states registry.Registry[*block.State], sections []*Section) *ProtoChunk {
	air, _ := states.ByID(0)
	return &ProtoChunk{data: newData(pos, h, air, sections)}
}

func (p *ProtoChunk) Status() Status {
	return Status(p.status.Load())
}

func (p *ProtoChunk) IsOrAfter(s Status) bool {
	return p.Status().IsOrAfter(s)
}

// SetStatus advances the status to s. Lower statuses are ignored.
func (p *ProtoChunk) SetStatus(s Status) {
	for {
		cur := p.status.Load()
		if int32(s) <= cur {
			return
		}
		if p.status.CompareAndSwap(cur, int32(s)) {
			p.unsaved.Store(true)
			return
		}
	}
}

// SetBlockState places st and keeps the heightmaps of the current status up
// to date.
func (p *ProtoChunk) SetBlockState(x, y, z int, st *block.State) *block.State {
	return p.setBlockState(x, y, z, st, p.Status().Heightmaps())
}

// CarvingMask returns the mask for step, creating it when absent.
func (p *ProtoChunk) CarvingMask(step CarvingStep) *CarvingMask {
	p.extra.Lock()
	defer p.extra.Unlock()
	if p.carving[step] == nil {
		p.carving[step] = NewCarvingMask(p.height)
	}
	return p.carving[step]
}

// HasCarvingMask reports whether a mask for step exists.
func (p *ProtoChunk) HasCarvingMask(step CarvingStep) bool {
	p.extra.Lock()
	defer p.extra.Unlock()
	return p.carving[step] != nil
}

// SetCarvingMask replaces the mask for step.
func (p *ProtoChunk) SetCarvingMask(step CarvingStep, m *CarvingMask) {
	p.extra.Lock()
	p.carving[step] = m
	p.extra.Unlock()
}

// ScheduleBlockTick queues a block update for the simulation.
func (p *ProtoChunk) ScheduleBlockTick(t ScheduledTick) {
	p.extra.Lock()
	p.blockTicks = append(p.blockTicks, t)
	p.extra.Unlock()
}

// ScheduleFluidTick queues a fluid update for the simulation.
func (p *ProtoChunk) ScheduleFluidTick(t ScheduledTick) {
	p.extra.Lock()
	p.fluidTicks = append(p.fluidTicks, t)
	p.extra.Unlock()
}

func (p *ProtoChunk) BlockTicks() []ScheduledTick {
	p.extra.Lock()
	defer p.extra.Unlock()
	return append([]ScheduledTick(nil), p.blockTicks...)
}

func (p *ProtoChunk) FluidTicks() []ScheduledTick {
	p.extra.Lock()
	defer p.extra.Unlock()
	return append([]ScheduledTick(nil), p.fluidTicks...)
}
