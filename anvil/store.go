// Package anvil persists chunks in region files: one .mca file per 32x32
// chunks, each chunk an NBT document compressed with zlib or gzip.
package anvil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"sync"

	"github.com/Tnze/go-mc/nbt"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/astei/chunkforge/biome"
	"github.com/astei/chunkforge/block"
	"github.com/astei/chunkforge/chunk"
	"github.com/astei/chunkforge/palette"
)

type Options struct {
	Height      chunk.HeightAccessor
	Blocks      *block.Set
	Biomes      *biome.Set
	Compression Compression
	Logger      *log.Logger
}

// Store reads and writes chunks under one directory. It is safe for
// concurrent use.
type Store struct {
	dir  string
	opts Options

	mu      sync.Mutex
	regions map[[2]int]*regionFile
	written uint64
}

// Open prepares a store over dir, creating the directory when needed.
func Open(dir string, opts Options) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if opts.Compression == 0 {
		opts.Compression = CompressionZlib
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	return &Store{dir: dir, opts: opts, regions: make(map[[2]int]*regionFile)}, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) region(p chunk.Pos, create bool) (*regionFile, error) {
	rx, rz := p.Region()
	key := [2]int{rx, rz}
	if f := s.regions[key]; f != nil {
		return f, nil
	}
	f, err := openRegion(s.dir, rx, rz, create)
	if err != nil {
		return nil, err
	}
	s.regions[key] = f
	return f, nil
}

// Save writes c and clears its unsaved flag.
func (s *Store) Save(c chunk.Access) error {
	payload, err := nbt.Marshal(s.encode(c))
	if err != nil {
		return fmt.Errorf("anvil: encode chunk %s: %w", c.Pos(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.region(c.Pos(), true)
	if err != nil {
		return err
	}
	x, z := c.Pos().RegionLocal()
	n, err := f.WriteChunk(x, z, payload, s.opts.Compression)
	if err != nil {
		return err
	}
	s.written += uint64(n)
	c.SetUnsaved(false)
	return nil
}

// Written reports the compressed bytes written so far.
func (s *Store) Written() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return humanize.Bytes(s.written)
}

// Load reads the chunk at p. It returns ErrNoChunk when nothing is stored.
// A chunk with a corrupt section comes back as a fresh Empty chunk so it is
// generated again; Full chunks come back as a read-only view.
func (s *Store) Load(p chunk.Pos) (chunk.Access, error) {
	var doc chunkDoc
	if err := s.read(p, &doc); err != nil {
		return nil, err
	}
	c, err := s.decode(p, &doc)
	if errors.Is(err, palette.ErrSizeMismatch) || errors.Is(err, palette.ErrMissingEntry) {
		s.opts.Logger.Printf("discarding chunk %s: %v", p, err)
		return chunk.NewProtoChunk(p, s.opts.Height, s.opts.Blocks, s.opts.Biomes), nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) read(p chunk.Pos, doc *chunkDoc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.region(p, false)
	if err != nil {
		return err
	}
	x, z := p.RegionLocal()
	r, err := f.ReadChunk(x, z)
	if err != nil {
		return err
	}
	if _, err = nbt.NewDecoder(r).Decode(doc); err != nil {
		return fmt.Errorf("anvil: decode chunk %s in %s: %w", p, f.Name, err)
	}
	return nil
}

// LoadContext adapts Load to the scheduler's loader shape: a missing chunk
// is reported as nil without an error.
func (s *Store) LoadContext(ctx context.Context, p chunk.Pos) (chunk.Access, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := s.Load(p)
	if errors.Is(err, ErrNoChunk) {
		return nil, nil
	}
	return c, err
}

// List returns the position and stored status of every chunk, reading
// regions concurrently.
func (s *Store) List() (map[chunk.Pos]chunk.Status, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	type result struct {
		statuses map[chunk.Pos]chunk.Status
		err      error
	}
	var wg sync.WaitGroup
	results := make(chan result, len(entries))
	for _, e := range entries {
		rx, rz, ok := parseRegionName(e.Name())
		if !ok {
			continue
		}
		wg.Add(1)
		go func(rx, rz int) {
			defer wg.Done()
			statuses, err := s.listRegion(rx, rz)
			results <- result{statuses, err}
		}(rx, rz)
	}
	wg.Wait()
	close(results)

	all := make(map[chunk.Pos]chunk.Status)
	for r := range results {
		if r.err != nil {
			return nil, r.err
		}
		for p, st := range r.statuses {
			all[p] = st
		}
	}
	s.opts.Logger.Printf("discovered %d chunks in %s", len(all), s.dir)
	return all, nil
}

type statusOnly struct {
	Status string `nbt:"Status"`
}

func (s *Store) listRegion(rx, rz int) (map[chunk.Pos]chunk.Status, error) {
	f, err := openRegion(s.dir, rx, rz, false)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[chunk.Pos]chunk.Status)
	for z := 0; z < 32; z++ {
		for x := 0; x < 32; x++ {
			if !f.ChunkExists(x, z) {
				continue
			}
			r, err := f.ReadChunk(x, z)
			if err != nil {
				return nil, fmt.Errorf("could not read chunk %d,%d in %s: %w", x, z, f.Name, err)
			}
			var doc statusOnly
			if _, err = nbt.NewDecoder(r).Decode(&doc); err != nil {
				return nil, fmt.Errorf("could not deserialize chunk %d,%d in %s: %w", x, z, f.Name, err)
			}
			st, err := chunk.ParseStatus(doc.Status)
			if err != nil {
				return nil, err
			}
			out[chunk.Pos{X: int32(rx<<5 + x), Z: int32(rz<<5 + z)}] = st
		}
	}
	return out, nil
}

// Positions returns the stored chunks sorted by z, then x.
func (s *Store) Positions() ([]chunk.Pos, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	out := make([]chunk.Pos, 0, len(all))
	for p := range all {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Z != out[j].Z {
			return out[i].Z < out[j].Z
		}
		return out[i].X < out[j].X
	})
	return out, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	for key, f := range s.regions {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
		delete(s.regions, key)
	}
	return first
}

func uuidInts(id uuid.UUID) []int32 {
	out := make([]int32, 4)
	for i := range out {
		out[i] = int32(uint32(id[i*4])<<24 | uint32(id[i*4+1])<<16 | uint32(id[i*4+2])<<8 | uint32(id[i*4+3]))
	}
	return out
}

func uuidFromInts(v []int32) uuid.UUID {
	var id uuid.UUID
	for i := 0; i < 4 && i < len(v); i++ {
		u := uint32(v[i])
		id[i*4], id[i*4+1], id[i*4+2], id[i*4+3] = byte(u>>24), byte(u>>16), byte(u>>8), byte(u)
	}
	return id
}
