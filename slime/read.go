package slime

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/Tnze/go-mc/nbt"
	"github.com/klauspost/compress/zstd"
	"github.com/willf/bitset"

	"github.com/astei/chunkforge/biome"
	"github.com/astei/chunkforge/block"
	"github.com/astei/chunkforge/chunk"
)

// Reader rebuilds chunks from a Slime world written by Write. The registries
// must match the ones the world was written with.
type Reader struct {
	Height chunk.HeightAccessor
	Blocks *block.Set
	Biomes *biome.Set
}

// Read decodes every chunk of the world, ordered z first then x. Full chunks
// come back as read-only views.
func (rd *Reader) Read(r io.Reader) (chunks []chunk.Access, err error) {
	br := bufio.NewReader(r)
	var h header
	if err = binary.Read(br, binary.BigEndian, &h); err != nil {
		return
	}
	if h.Magic != slimeHeader {
		return nil, ErrInvalidMagic
	}
	if h.Version != slimeLatestVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}

	n := int(h.Width) * int(h.Depth)
	mask := make([]byte, (n+7)/8)
	if _, err = io.ReadFull(br, mask); err != nil {
		return
	}
	populated := bitset.New(uint(n))
	for i := 0; i < n; i++ {
		if mask[i/8]&(1<<(i%8)) != 0 {
			populated.Set(uint(i))
		}
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return
	}
	defer dec.Close()

	data, err := readZstdCompressed(br, dec)
	if err != nil {
		return
	}
	blob := bytes.NewReader(data)
	protos := make(map[chunk.Pos]*chunk.ProtoChunk)
	var order []chunk.Pos
	for i, ok := populated.NextSet(0); ok; i, ok = populated.NextSet(i + 1) {
		p := chunk.Pos{
			X: int32(h.MinX) + int32(int(i)%int(h.Width)),
			Z: int32(h.MinZ) + int32(int(i)/int(h.Width)),
		}
		c, err := rd.readChunk(p, blob)
		if err != nil {
			return nil, fmt.Errorf("slime: chunk %s: %w", p, err)
		}
		protos[p] = c
		order = append(order, p)
	}

	if data, err = readZstdCompressed(br, dec); err != nil {
		return
	}
	var tiles tilesDoc
	if err = nbt.Unmarshal(data, &tiles); err != nil {
		return
	}
	for _, t := range tiles.Tiles {
		pos := chunk.BlockPos{X: int(t.X), Y: int(t.Y), Z: int(t.Z)}
		if c := protos[pos.Chunk()]; c != nil {
			c.SetBlockEntity(&chunk.BlockEntity{ID: t.ID, Pos: pos, Data: t.Data})
		}
	}

	hasEntities, err := br.ReadByte()
	if err != nil {
		return
	}
	if hasEntities == 1 {
		if data, err = readZstdCompressed(br, dec); err != nil {
			return
		}
		var entities entitiesDoc
		if err = nbt.Unmarshal(data, &entities); err != nil {
			return
		}
		for _, e := range entities.Entities {
			var pos [3]float64
			copy(pos[:], e.Pos)
			p := chunk.PosFromBlock(int(math.Floor(pos[0])), int(math.Floor(pos[2])))
			if c := protos[p]; c != nil {
				c.AddEntity(chunk.Entity{ID: e.ID, UUID: uuidFromInts(e.UUID), Pos: pos})
			}
		}
	}
	if data, err = readZstdCompressed(br, dec); err != nil {
		return
	}
	if len(data) > 0 {
		var extra extraDoc
		if err = nbt.Unmarshal(data, &extra); err != nil {
			return
		}
		for _, e := range extra.Chunks {
			p := chunk.Pos{X: e.X, Z: e.Z}
			if c := protos[p]; c != nil {
				rd.applyExtra(c, e)
			}
		}
	}

	for _, p := range order {
		c := protos[p]
		if c.Status() == chunk.StatusFull {
			l := chunk.Promote(c)
			l.SetUnsaved(false)
			chunks = append(chunks, chunk.NewView(l, chunk.ReadOnly))
			continue
		}
		c.SetUnsaved(false)
		chunks = append(chunks, c)
	}
	return chunks, nil
}

func (rd *Reader) readChunk(p chunk.Pos, r io.Reader) (*chunk.ProtoChunk, error) {
	var meta struct {
		Status     int8
		MinSection int8
		Sections   uint8
		Populated  uint64
		Heightmaps uint8
	}
	if err := binary.Read(r, binary.BigEndian, &meta); err != nil {
		return nil, err
	}
	if int(meta.MinSection) != rd.Height.MinSection() || int(meta.Sections) != rd.Height.SectionCount() {
		return nil, fmt.Errorf("stored height (section %d, %d sections) does not match the world", meta.MinSection, meta.Sections)
	}
	status := chunk.Status(meta.Status)
	if status < chunk.StatusEmpty || int(status) >= chunk.NumStatuses {
		return nil, fmt.Errorf("%w: %d", chunk.ErrUnknownStatus, meta.Status)
	}

	raw := make(map[chunk.HeightmapType][]uint64, meta.Heightmaps)
	for i := 0; i < int(meta.Heightmaps); i++ {
		var hm [2]uint8
		if err := binary.Read(r, binary.BigEndian, &hm); err != nil {
			return nil, err
		}
		words := make([]uint64, hm[1])
		if err := binary.Read(r, binary.BigEndian, words); err != nil {
			return nil, err
		}
		raw[chunk.HeightmapType(hm[0])] = words
	}

	sections := make([]*chunk.Section, meta.Sections)
	for i := range sections {
		sec := chunk.NewSection(rd.Blocks, rd.Biomes)
		var err error
		if meta.Populated&(1<<uint(i)) != 0 {
			_, err = sec.ReadFrom(r)
		} else {
			_, err = sec.Biomes().ReadFrom(r)
		}
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", i, err)
		}
		sections[i] = sec
	}

	c := chunk.NewProtoChunkFrom(p, rd.Height, rd.Blocks, sections)
	for t, words := range raw {
		if int(t) >= chunk.NumHeightmapTypes {
			continue
		}
		if err := c.SetHeightmap(t, words); err != nil {
			return nil, err
		}
	}
	c.SetStatus(status)
	return c, nil
}

func (rd *Reader) applyExtra(c *chunk.ProtoChunk, e extraChunkDoc) {
	var lights []chunk.BlockPos
	for i, packed := range e.Lights {
		if i >= rd.Height.SectionCount() {
			break
		}
		for _, v := range packed {
			lights = append(lights, chunk.UnpackOffset(c.Pos(), rd.Height.SectionY(i), uint16(v)))
		}
	}
	c.SetLightSources(lights)
	for i, packed := range e.PostProcessing {
		if i >= rd.Height.SectionCount() {
			break
		}
		for _, v := range packed {
			c.AddPostProcessing(i, uint16(v))
		}
	}
}

func readZstdCompressed(r io.Reader, dec *zstd.Decoder) ([]byte, error) {
	var sizes struct {
		Compressed   uint32
		Uncompressed uint32
	}
	if err := binary.Read(r, binary.BigEndian, &sizes); err != nil {
		return nil, err
	}
	compressed := make([]byte, sizes.Compressed)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, err
	}
	out, err := dec.DecodeAll(compressed, make([]byte, 0, sizes.Uncompressed))
	if err != nil {
		return nil, err
	}
	if len(out) != int(sizes.Uncompressed) {
		return nil, fmt.Errorf("slime: blob decompressed to %d bytes, header says %d", len(out), sizes.Uncompressed)
	}
	return out, nil
}
