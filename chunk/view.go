package chunk

import "github.com/astei/chunkforge/block"

// ViewMode selects whether a View passes writes through.
type ViewMode uint8

const (
	ReadOnly ViewMode = iota
	ReadWrite
)

// View presents a LevelChunk as an Access so full chunks can sit in a
// generation window next to proto chunks. Reads go straight to the level
// chunk. In ReadOnly mode every write is dropped; SetBlockState then returns
// nil.
type View struct {
	*LevelChunk
	mode ViewMode
}

// NewView wraps l.
func NewView(l *LevelChunk, mode ViewMode) *View {
	return &View{LevelChunk: l, mode: mode}
}

// Level returns the wrapped chunk.
func (v *View) Level() *LevelChunk { return v.LevelChunk }

// Mode reports whether writes pass through.
func (v *View) Mode() ViewMode { return v.mode }

func (v *View) writable() bool { return v.mode == ReadWrite }

// SetStatus is a no-op; a view is always Full.
func (v *View) SetStatus(Status) {}

func (v *View) SetBlockState(x, y, z int, st *block.State) *block.State {
	if !v.writable() {
		return nil
	}
	return v.LevelChunk.SetBlockState(x, y, z, st)
}

func (v *View) FillBiomesFromNoise(resolve BiomeResolver) {
	if v.writable() {
		v.LevelChunk.FillBiomesFromNoise(resolve)
	}
}

func (v *View) SetStructureStart(s *StructureStart) {
	if v.writable() {
		v.LevelChunk.SetStructureStart(s)
	}
}

func (v *View) SetAllStarts(starts map[string]*StructureStart) {
	if v.writable() {
		v.LevelChunk.SetAllStarts(starts)
	}
}

func (v *View) AddReference(structure string, from Pos) {
	if v.writable() {
		v.LevelChunk.AddReference(structure, from)
	}
}

func (v *View) SetAllReferences(refs map[string][]Pos) {
	if v.writable() {
		v.LevelChunk.SetAllReferences(refs)
	}
}

func (v *View) SetBlockEntity(be *BlockEntity) {
	if v.writable() {
		v.LevelChunk.SetBlockEntity(be)
	}
}

func (v *View) AddEntity(e Entity) {
	if v.writable() {
		v.LevelChunk.AddEntity(e)
	}
}

func (v *View) MarkPostProcessing(pos BlockPos) {
	if v.writable() {
		v.LevelChunk.MarkPostProcessing(pos)
	}
}

func (v *View) SetLightCorrect(b bool) {
	if v.writable() {
		v.LevelChunk.SetLightCorrect(b)
	}
}

var (
	_ Access = (*ProtoChunk)(nil)
	_ Access = (*View)(nil)
	_ Reader = (*LevelChunk)(nil)
)
