package anvil

import (
	"fmt"

	"github.com/astei/chunkforge/biome"
	"github.com/astei/chunkforge/block"
	"github.com/astei/chunkforge/chunk"
	"github.com/astei/chunkforge/palette"
)

type carvingSource interface {
	HasCarvingMask(step chunk.CarvingStep) bool
	CarvingMask(step chunk.CarvingStep) *chunk.CarvingMask
}

type tickSource interface {
	BlockTicks() []chunk.ScheduledTick
	FluidTicks() []chunk.ScheduledTick
}

var carvingSteps = []chunk.CarvingStep{chunk.CarveAir, chunk.CarveLiquid}

func (s *Store) encode(c chunk.Access) *chunkDoc {
	p := c.Pos()
	h := c.HeightAccessor()
	doc := &chunkDoc{
		DataVersion:  DataVersion,
		XPos:         p.X,
		YPos:         int32(h.MinSection()),
		ZPos:         p.Z,
		Status:       "minecraft:" + c.Status().String(),
		Heightmaps:   make(map[string][]int64),
		CarvingMasks: make(map[string][]int64),
		IsLightOn:    c.IsLightCorrect(),
		Structures: structuresDoc{
			Starts:     make(map[string]startDoc),
			References: make(map[string][]int64),
		},
	}

	for i, sec := range c.Sections() {
		doc.Sections = append(doc.Sections, encodeSection(int8(h.SectionY(i)), sec))
	}
	for t := chunk.HeightmapType(0); int(t) < chunk.NumHeightmapTypes; t++ {
		if c.HasHeightmap(t) {
			doc.Heightmaps[t.String()] = toLongs(c.Heightmap(t).Raw())
		}
	}

	for name, st := range c.AllStarts() {
		sd := startDoc{ID: name, ChunkX: st.Pos.X, ChunkZ: st.Pos.Z, References: int32(st.References)}
		for _, piece := range st.Pieces {
			b := piece.Box
			sd.Children = append(sd.Children, pieceDoc{
				ID: piece.ID,
				BB: []int32{int32(b.MinX), int32(b.MinY), int32(b.MinZ), int32(b.MaxX), int32(b.MaxY), int32(b.MaxZ)},
			})
		}
		doc.Structures.Starts[name] = sd
	}
	for name, refs := range c.AllReferences() {
		keys := make([]int64, len(refs))
		for i, r := range refs {
			keys[i] = r.Key()
		}
		doc.Structures.References[name] = keys
	}

	for _, be := range c.BlockEntities() {
		doc.BlockEntities = append(doc.BlockEntities, blockEntityDoc{
			ID: be.ID, X: int32(be.Pos.X), Y: int32(be.Pos.Y), Z: int32(be.Pos.Z), Data: be.Data,
		})
	}
	for _, e := range c.Entities() {
		doc.Entities = append(doc.Entities, entityDoc{ID: e.ID, UUID: uuidInts(e.UUID), Pos: e.Pos[:]})
	}

	for _, packed := range c.PostProcessing() {
		doc.PostProcess = append(doc.PostProcess, toShorts(packed))
	}
	doc.Lights = make([][]int16, h.SectionCount())
	for i := range doc.Lights {
		doc.Lights[i] = []int16{}
	}
	for _, l := range c.LightSources() {
		if h.IsOutside(l.Y) {
			continue
		}
		i := h.SectionIndex(l.Y)
		doc.Lights[i] = append(doc.Lights[i], int16(chunk.PackOffset(l)))
	}

	if cs, ok := c.(carvingSource); ok {
		for _, step := range carvingSteps {
			if cs.HasCarvingMask(step) {
				doc.CarvingMasks[step.String()] = toLongs(cs.CarvingMask(step).Words())
			}
		}
	}
	if ts, ok := c.(tickSource); ok {
		doc.BlockTicks = encodeTicks(ts.BlockTicks())
		doc.FluidTicks = encodeTicks(ts.FluidTicks())
	}
	return doc
}

func encodeSection(y int8, sec *chunk.Section) sectionDoc {
	states := sec.States().Pack()
	biomes := sec.Biomes().Pack()
	sd := sectionDoc{Y: y}
	for _, st := range states.Palette {
		sd.BlockStates.Palette = append(sd.BlockStates.Palette, blockStateDoc{Name: st.Name, Properties: st.Properties})
	}
	sd.BlockStates.Data = toLongs(states.Data)
	for _, b := range biomes.Palette {
		sd.Biomes.Palette = append(sd.Biomes.Palette, b.Name)
	}
	sd.Biomes.Data = toLongs(biomes.Data)
	return sd
}

func encodeTicks(ticks []chunk.ScheduledTick) []tickDoc {
	out := make([]tickDoc, len(ticks))
	for i, t := range ticks {
		out[i] = tickDoc{ID: t.Type, X: int32(t.Pos.X), Y: int32(t.Pos.Y), Z: int32(t.Pos.Z), Delay: int32(t.Delay)}
	}
	return out
}

func decodeTicks(docs []tickDoc) []chunk.ScheduledTick {
	out := make([]chunk.ScheduledTick, len(docs))
	for i, d := range docs {
		out[i] = chunk.ScheduledTick{
			Pos:   chunk.BlockPos{X: int(d.X), Y: int(d.Y), Z: int(d.Z)},
			Type:  d.ID,
			Delay: int(d.Delay),
		}
	}
	return out
}

// decode rebuilds a chunk from its document. Section errors wrap
// palette.ErrSizeMismatch or palette.ErrMissingEntry.
func (s *Store) decode(p chunk.Pos, doc *chunkDoc) (chunk.Access, error) {
	if doc.XPos != p.X || doc.ZPos != p.Z {
		return nil, fmt.Errorf("anvil: chunk %s stored as %d,%d", p, doc.XPos, doc.ZPos)
	}
	status, err := chunk.ParseStatus(doc.Status)
	if err != nil {
		return nil, err
	}
	h := s.opts.Height

	sections := make([]*chunk.Section, h.SectionCount())
	for _, sd := range doc.Sections {
		y := int(sd.Y)
		if y < h.MinSection() || y >= h.MaxSection() {
			continue
		}
		sec, err := s.decodeSection(sd)
		if err != nil {
			return nil, fmt.Errorf("anvil: chunk %s section %d: %w", p, y, err)
		}
		sections[y-h.MinSection()] = sec
	}
	for i := range sections {
		if sections[i] == nil {
			sections[i] = chunk.NewSection(s.opts.Blocks, s.opts.Biomes)
		}
	}

	proto := chunk.NewProtoChunkFrom(p, h, s.opts.Blocks, sections)
	for name, raw := range doc.Heightmaps {
		t, ok := chunk.ParseHeightmapType(name)
		if !ok {
			continue
		}
		if err := proto.SetHeightmap(t, fromLongs(raw)); err != nil {
			return nil, err
		}
	}

	starts := make(map[string]*chunk.StructureStart, len(doc.Structures.Starts))
	for name, sd := range doc.Structures.Starts {
		st := &chunk.StructureStart{
			Structure:  name,
			Pos:        chunk.Pos{X: sd.ChunkX, Z: sd.ChunkZ},
			References: int(sd.References),
		}
		for _, piece := range sd.Children {
			if len(piece.BB) != 6 {
				return nil, fmt.Errorf("anvil: chunk %s: piece %s has a malformed bounding box", p, piece.ID)
			}
			bb := piece.BB
			st.Pieces = append(st.Pieces, chunk.StructurePiece{ID: piece.ID, Box: chunk.BoundingBox{
				MinX: int(bb[0]), MinY: int(bb[1]), MinZ: int(bb[2]),
				MaxX: int(bb[3]), MaxY: int(bb[4]), MaxZ: int(bb[5]),
			}})
		}
		starts[name] = st
	}
	proto.SetAllStarts(starts)
	refs := make(map[string][]chunk.Pos, len(doc.Structures.References))
	for name, keys := range doc.Structures.References {
		for _, k := range keys {
			refs[name] = append(refs[name], chunk.PosFromKey(k))
		}
	}
	proto.SetAllReferences(refs)

	for _, be := range doc.BlockEntities {
		proto.SetBlockEntity(&chunk.BlockEntity{
			ID:   be.ID,
			Pos:  chunk.BlockPos{X: int(be.X), Y: int(be.Y), Z: int(be.Z)},
			Data: be.Data,
		})
	}
	for _, e := range doc.Entities {
		var pos [3]float64
		copy(pos[:], e.Pos)
		proto.AddEntity(chunk.Entity{ID: e.ID, UUID: uuidFromInts(e.UUID), Pos: pos})
	}

	for i, packed := range doc.PostProcess {
		if i >= h.SectionCount() {
			break
		}
		for _, v := range packed {
			proto.AddPostProcessing(i, uint16(v))
		}
	}
	var lights []chunk.BlockPos
	for i, packed := range doc.Lights {
		if i >= h.SectionCount() {
			break
		}
		for _, v := range packed {
			lights = append(lights, chunk.UnpackOffset(p, h.SectionY(i), uint16(v)))
		}
	}
	proto.SetLightSources(lights)

	for _, step := range carvingSteps {
		if raw, ok := doc.CarvingMasks[step.String()]; ok {
			m := chunk.NewCarvingMask(h)
			m.SetWords(fromLongs(raw))
			proto.SetCarvingMask(step, m)
		}
	}
	for _, t := range decodeTicks(doc.BlockTicks) {
		proto.ScheduleBlockTick(t)
	}
	for _, t := range decodeTicks(doc.FluidTicks) {
		proto.ScheduleFluidTick(t)
	}

	proto.SetLightCorrect(doc.IsLightOn)
	proto.SetStatus(status)
	if status == chunk.StatusFull {
		l := chunk.Promote(proto)
		l.SetUnsaved(false)
		return chunk.NewView(l, chunk.ReadOnly), nil
	}
	proto.SetUnsaved(false)
	return proto, nil
}

func (s *Store) decodeSection(sd sectionDoc) (*chunk.Section, error) {
	states := palette.Packed[*block.State]{Data: fromLongs(sd.BlockStates.Data)}
	for _, e := range sd.BlockStates.Palette {
		st, ok := s.opts.Blocks.Lookup(e.Name, e.Properties)
		if !ok {
			return nil, fmt.Errorf("%w: unknown block state %s", palette.ErrMissingEntry, block.Key(e.Name, e.Properties))
		}
		states.Palette = append(states.Palette, st)
	}
	biomes := palette.Packed[*biome.Biome]{Data: fromLongs(sd.Biomes.Data)}
	for _, name := range sd.Biomes.Palette {
		b, ok := s.opts.Biomes.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown biome %s", palette.ErrMissingEntry, name)
		}
		biomes.Palette = append(biomes.Palette, b)
	}

	sc, err := palette.Unpack(palette.SectionStates, s.opts.Blocks, states)
	if err != nil {
		return nil, err
	}
	bc, err := palette.Unpack(palette.SectionBiomes, s.opts.Biomes, biomes)
	if err != nil {
		return nil, err
	}
	return chunk.NewSectionFrom(sc, bc), nil
}
