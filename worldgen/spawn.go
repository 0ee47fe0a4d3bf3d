package worldgen

import (
	"context"
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/astei/chunkforge/chunk"
	"github.com/astei/chunkforge/pipeline"
)

var mobs = []string{"minecraft:sheep", "minecraft:cow", "minecraft:pig", "minecraft:chicken"}

// EntityID derives a stable UUID for the i-th entity spawned in a chunk, so
// regenerating a chunk yields the same entities.
func EntityID(seed int64, p chunk.Pos, i int) uuid.UUID {
	var buf [20]byte
	binary.BigEndian.PutUint64(buf[0:], uint64(seed))
	binary.BigEndian.PutUint32(buf[8:], uint32(p.X))
	binary.BigEndian.PutUint32(buf[12:], uint32(p.Z))
	binary.BigEndian.PutUint32(buf[16:], uint32(i))
	return uuid.NewSHA1(uuid.NameSpaceOID, buf[:])
}

// spawnMobs places a small herd on grass in grassy biomes.
func (g *World) spawnMobs(_ context.Context, c chunk.Access, _ *pipeline.Window) error {
	p := c.Pos()
	r := Hash2(g.Seed+41, int(p.X), int(p.Z))
	if r%10 >= 3 {
		return nil
	}
	x0, z0 := p.MinBlockX(), p.MinBlockZ()
	mob := mobs[r>>8%uint64(len(mobs))]
	count := 1 + int(r>>16%4)
	for i := 0; i < count; i++ {
		s := Hash3(g.Seed+43, int(p.X), i, int(p.Z))
		x, z := x0+int(s&15), z0+int(s>>4&15)
		ground := c.Height(chunk.MotionBlocking, x, z)
		if c.BlockState(x, ground, z) != g.grass {
			continue
		}
		c.AddEntity(chunk.Entity{
			ID:   mob,
			UUID: EntityID(g.Seed, p, i),
			Pos:  [3]float64{float64(x) + 0.5, float64(ground + 1), float64(z) + 0.5},
		})
	}
	return nil
}
