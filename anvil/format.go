package anvil

// DataVersion is written into every saved chunk.
const DataVersion = 3953

type chunkDoc struct {
	DataVersion   int32
	XPos          int32              `nbt:"xPos"`
	YPos          int32              `nbt:"yPos"`
	ZPos          int32              `nbt:"zPos"`
	Status        string             `nbt:"Status"`
	Sections      []sectionDoc       `nbt:"sections"`
	Heightmaps    map[string][]int64 `nbt:"Heightmaps"`
	Structures    structuresDoc      `nbt:"structures"`
	BlockEntities []blockEntityDoc   `nbt:"block_entities"`
	Entities      []entityDoc        `nbt:"entities"`
	PostProcess   [][]int16          `nbt:"PostProcessing"`
	Lights        [][]int16          `nbt:"Lights"`
	CarvingMasks  map[string][]int64 `nbt:"CarvingMasks"`
	BlockTicks    []tickDoc          `nbt:"block_ticks"`
	FluidTicks    []tickDoc          `nbt:"fluid_ticks"`
	IsLightOn     bool               `nbt:"isLightOn"`
}

type sectionDoc struct {
	Y           int8           `nbt:"Y"`
	BlockStates blockStatesDoc `nbt:"block_states"`
	Biomes      biomesDoc      `nbt:"biomes"`
}

type blockStatesDoc struct {
	Palette []blockStateDoc `nbt:"palette"`
	Data    []int64         `nbt:"data"`
}

type blockStateDoc struct {
	Name       string            `nbt:"Name"`
	Properties map[string]string `nbt:"Properties"`
}

type biomesDoc struct {
	Palette []string `nbt:"palette"`
	Data    []int64  `nbt:"data"`
}

type structuresDoc struct {
	Starts     map[string]startDoc `nbt:"starts"`
	References map[string][]int64  `nbt:"References"`
}

type startDoc struct {
	ID         string     `nbt:"id"`
	ChunkX     int32      `nbt:"ChunkX"`
	ChunkZ     int32      `nbt:"ChunkZ"`
	References int32      `nbt:"references"`
	Children   []pieceDoc `nbt:"Children"`
}

type pieceDoc struct {
	ID string  `nbt:"id"`
	BB []int32 `nbt:"BB"`
}

type blockEntityDoc struct {
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

type tickDoc struct {
	ID    string `nbt:"i"`
	X     int32  `nbt:"x"`
	Y     int32  `nbt:"y"`
	Z     int32  `nbt:"z"`
	Delay int32  `nbt:"t"`
}

func toLongs(words []uint64) []int64 {
	out := make([]int64, len(words))
	for i, w := range words {
		out[i] = int64(w)
	}
	return out
}

func fromLongs(longs []int64) []uint64 {
	out := make([]uint64, len(longs))
	for i, l := range longs {
		out[i] = uint64(l)
	}
	return out
}

func toShorts(packed []uint16) []int16 {
	out := make([]int16, len(packed))
	for i, p := range packed {
		out[i] = int16(p)
	}
	return out
}
