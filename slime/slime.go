// Package slime exports generated chunks as a single Slime world file: a
// header, a bitmask of populated chunks and zstd-compressed blobs for chunk
// data, block entities, entities and extra data.
package slime

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"sort"

	"github.com/Tnze/go-mc/nbt"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/willf/bitset"

	"github.com/astei/chunkforge/block"
	"github.com/astei/chunkforge/chunk"
)

const slimeHeader = 0xB10B
const slimeLatestVersion = 10

var (
	ErrInvalidMagic       = errors.New("slime: invalid magic")
	ErrUnsupportedVersion = errors.New("slime: unsupported version")
	ErrWorldTooLarge      = errors.New("slime: world does not fit the header")
	ErrNoChunks           = errors.New("slime: no chunks to write")
)

type header struct {
	Magic   uint16
	Version uint8
	MinX    int16
	MinZ    int16
	Width   uint16
	Depth   uint16
}

type tileDoc struct {
	ID   string            `nbt:"id"`
	X    int32             `nbt:"x"`
	Y    int32             `nbt:"y"`
	Z    int32             `nbt:"z"`
	Data map[string]string `nbt:"data"`
}

type entityDoc struct {
	ID   string    `nbt:"id"`
	UUID []int32   `nbt:"UUID"`
	Pos  []float64 `nbt:"Pos"`
}

// extraChunkDoc carries what the chunk blob has no room for, in the same
// per-section packed form the region files use.
type extraChunkDoc struct {
	X              int32     `nbt:"x"`
	Z              int32     `nbt:"z"`
	Lights         [][]int16 `nbt:"Lights"`
	PostProcessing [][]int16 `nbt:"PostProcessing"`
}

type extraDoc struct {
	Chunks []extraChunkDoc `nbt:"chunks"`
}

type tilesDoc struct {
	Tiles []tileDoc `nbt:"tiles"`
}

type entitiesDoc struct {
	Entities []entityDoc `nbt:"entities"`
}

// Write encodes chunks as a Slime world. Every chunk must share one height.
func Write(writer io.Writer, chunks []chunk.Access, logger *log.Logger) error {
	if len(chunks) == 0 {
		return ErrNoChunks
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	w := &slimeWriter{writer: writer, chunks: chunks, logger: logger}
	return w.writeWorld()
}

type slimeWriter struct {
	writer io.Writer
	chunks []chunk.Access
	logger *log.Logger

	minX, minZ    int
	width, depth  int
	sectionsTotal int
}

func (w *slimeWriter) writeWorld() (err error) {
	if err = w.determineChunkBounds(); err != nil {
		return
	}
	w.sortChunks()
	if err = w.writeHeader(); err != nil {
		return
	}
	if err = w.writeChunks(); err != nil {
		return
	}
	if err = w.writeTileEntities(); err != nil {
		return
	}
	if err = w.writeEntities(); err != nil {
		return
	}
	return w.writeExtra()
}

func (w *slimeWriter) determineChunkBounds() error {
	minX, minZ := math.MaxInt32, math.MaxInt32
	maxX, maxZ := math.MinInt32, math.MinInt32
	for _, c := range w.chunks {
		p := c.Pos()
		minX, maxX = min(minX, int(p.X)), max(maxX, int(p.X))
		minZ, maxZ = min(minZ, int(p.Z)), max(maxZ, int(p.Z))
	}
	w.minX, w.minZ = minX, minZ
	w.width, w.depth = maxX-minX+1, maxZ-minZ+1
	if minX < math.MinInt16 || minZ < math.MinInt16 || maxX > math.MaxInt16 || maxZ > math.MaxInt16 ||
		w.width > math.MaxUint16 || w.depth > math.MaxUint16 {
		return fmt.Errorf("%w: chunks span %d,%d to %d,%d", ErrWorldTooLarge, minX, minZ, maxX, maxZ)
	}
	return nil
}

func (w *slimeWriter) index(p chunk.Pos) int {
	return (int(p.Z)-w.minZ)*w.width + int(p.X) - w.minX
}

// sortChunks orders chunks the way the populated bitmask enumerates them.
func (w *slimeWriter) sortChunks() {
	sorted := append([]chunk.Access(nil), w.chunks...)
	sort.Slice(sorted, func(one, two int) bool {
		return w.index(sorted[one].Pos()) < w.index(sorted[two].Pos())
	})
	w.chunks = sorted
}

func (w *slimeWriter) writeHeader() (err error) {
	populated := bitset.New(uint(w.width * w.depth))
	for _, c := range w.chunks {
		populated.Set(uint(w.index(c.Pos())))
	}

	h := header{
		Magic:   slimeHeader,
		Version: slimeLatestVersion,
		MinX:    int16(w.minX),
		MinZ:    int16(w.minZ),
		Width:   uint16(w.width),
		Depth:   uint16(w.depth),
	}
	if err = binary.Write(w.writer, binary.BigEndian, h); err != nil {
		return
	}
	_, err = w.writer.Write(bitsetBytes(populated, w.width*w.depth))
	return
}

// bitsetBytes packs the first n bits of set, least significant bit first.
func bitsetBytes(set *bitset.BitSet, n int) []byte {
	out := make([]byte, (n+7)/8)
	for i, ok := set.NextSet(0); ok && int(i) < n; i, ok = set.NextSet(i + 1) {
		out[i/8] |= 1 << (i % 8)
	}
	return out
}

func (w *slimeWriter) writeChunks() (err error) {
	var out bytes.Buffer
	for _, c := range w.chunks {
		if err = w.writeChunkHeader(c, &out); err != nil {
			return
		}
		for _, section := range c.Sections() {
			if plainAir(section) {
				_, err = section.Biomes().WriteTo(&out)
			} else {
				_, err = section.WriteTo(&out)
			}
			if err != nil {
				return
			}
		}
	}
	w.logger.Printf("wrote %d chunks with %d populated sections", len(w.chunks), w.sectionsTotal)
	return w.writeZstdCompressed(out.Bytes(), "chunks")
}

// plainAir reports whether a section holds nothing but minecraft:air, the
// state an unpopulated section reads back as. Other air variants such as
// cave_air keep their block states.
func plainAir(section *chunk.Section) bool {
	return section.HasOnlyAir() && !section.MaybeHas(func(st *block.State) bool {
		return st.Name != "minecraft:air"
	})
}

func (w *slimeWriter) writeChunkHeader(c chunk.Access, out io.Writer) (err error) {
	sections := c.Sections()
	if len(sections) > 64 {
		return fmt.Errorf("%w: %d sections per chunk", ErrWorldTooLarge, len(sections))
	}
	h := c.HeightAccessor()
	var meta struct {
		Status     int8
		MinSection int8
		Sections   uint8
		Populated  uint64
		Heightmaps uint8
	}
	meta.Status = int8(c.Status())
	meta.MinSection = int8(h.MinSection())
	meta.Sections = uint8(len(sections))
	for i, section := range sections {
		if !plainAir(section) {
			meta.Populated |= 1 << uint(i)
			w.sectionsTotal++
		}
	}
	var heightmaps []chunk.HeightmapType
	for t := chunk.HeightmapType(0); int(t) < chunk.NumHeightmapTypes; t++ {
		if c.HasHeightmap(t) {
			heightmaps = append(heightmaps, t)
		}
	}
	meta.Heightmaps = uint8(len(heightmaps))
	if err = binary.Write(out, binary.BigEndian, meta); err != nil {
		return
	}
	for _, t := range heightmaps {
		raw := c.Heightmap(t).Raw()
		if err = binary.Write(out, binary.BigEndian, [2]uint8{uint8(t), uint8(len(raw))}); err != nil {
			return
		}
		if err = binary.Write(out, binary.BigEndian, raw); err != nil {
			return
		}
	}
	return
}

func (w *slimeWriter) writeZstdCompressed(data []byte, what string) (err error) {
	uncompressedSize := len(data)

	var compressedOutput bytes.Buffer
	zstdWriter, err := zstd.NewWriter(&compressedOutput)
	if err != nil {
		return
	}
	if _, err = zstdWriter.Write(data); err != nil {
		return
	}
	if err = zstdWriter.Close(); err != nil {
		return
	}

	w.logger.Printf("%s: compressed %s to %s", what,
		humanize.Bytes(uint64(uncompressedSize)), humanize.Bytes(uint64(compressedOutput.Len())))

	if err = binary.Write(w.writer, binary.BigEndian, uint32(compressedOutput.Len())); err != nil {
		return
	}
	if err = binary.Write(w.writer, binary.BigEndian, uint32(uncompressedSize)); err != nil {
		return
	}
	_, err = compressedOutput.WriteTo(w.writer)
	return
}

func (w *slimeWriter) writeTileEntities() (err error) {
	doc := tilesDoc{Tiles: []tileDoc{}}
	for _, c := range w.chunks {
		for _, be := range c.BlockEntities() {
			doc.Tiles = append(doc.Tiles, tileDoc{
				ID: be.ID, X: int32(be.Pos.X), Y: int32(be.Pos.Y), Z: int32(be.Pos.Z), Data: be.Data,
			})
		}
	}
	data, err := nbt.Marshal(doc)
	if err != nil {
		return
	}
	return w.writeZstdCompressed(data, "tiles")
}

func (w *slimeWriter) writeEntities() (err error) {
	doc := entitiesDoc{Entities: []entityDoc{}}
	for _, c := range w.chunks {
		for _, e := range c.Entities() {
			doc.Entities = append(doc.Entities, entityDoc{ID: e.ID, UUID: uuidInts(e.UUID), Pos: e.Pos[:]})
		}
	}
	data, err := nbt.Marshal(doc)
	if err != nil {
		return
	}
	if _, err = w.writer.Write([]byte{1}); err != nil {
		return
	}
	return w.writeZstdCompressed(data, "entities")
}

// writeExtra stores the light sources and post-processing marks of every
// chunk that has any.
func (w *slimeWriter) writeExtra() (err error) {
	doc := extraDoc{Chunks: []extraChunkDoc{}}
	for _, c := range w.chunks {
		if e, ok := extraFor(c); ok {
			doc.Chunks = append(doc.Chunks, e)
		}
	}
	data, err := nbt.Marshal(doc)
	if err != nil {
		return
	}
	return w.writeZstdCompressed(data, "extra")
}

func extraFor(c chunk.Access) (e extraChunkDoc, ok bool) {
	h := c.HeightAccessor()
	e.X, e.Z = c.Pos().X, c.Pos().Z
	e.Lights = make([][]int16, h.SectionCount())
	e.PostProcessing = make([][]int16, h.SectionCount())
	for i := range e.Lights {
		e.Lights[i], e.PostProcessing[i] = []int16{}, []int16{}
	}
	for _, l := range c.LightSources() {
		if h.IsOutside(l.Y) {
			continue
		}
		i := h.SectionIndex(l.Y)
		e.Lights[i] = append(e.Lights[i], int16(chunk.PackOffset(l)))
		ok = true
	}
	for i, packed := range c.PostProcessing() {
		if i >= len(e.PostProcessing) {
			break
		}
		for _, v := range packed {
			e.PostProcessing[i] = append(e.PostProcessing[i], int16(v))
			ok = true
		}
	}
	return
}

func uuidInts(id uuid.UUID) []int32 {
	out := make([]int32, 4)
	for i := range out {
		out[i] = int32(binary.BigEndian.Uint32(id[i*4:]))
	}
	return out
}

func uuidFromInts(v []int32) (id uuid.UUID) {
	for i := 0; i < 4 && i < len(v); i++ {
		binary.BigEndian.PutUint32(id[i*4:], uint32(v[i]))
	}
	return
}
