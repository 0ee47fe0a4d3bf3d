package chunk

import "github.com/google/uuid"

// BlockEntity is block-attached data awaiting the simulation.
type BlockEntity struct {
	ID   string
	Pos  BlockPos
	Data map[string]string
}

// Entity is an entity record spawned during generation.
type Entity struct {
	ID   string
	UUID uuid.UUID
	Pos  [3]float64
}

// ScheduledTick is a block or fluid update queued during generation.
type ScheduledTick struct {
	Pos   BlockPos
	Type  string
	Delay int
}
