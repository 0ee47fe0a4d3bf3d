package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/astei/chunkforge/anvil"
	"github.com/astei/chunkforge/biome"
	"github.com/astei/chunkforge/block"
	"github.com/astei/chunkforge/chunk"
	"github.com/astei/chunkforge/pipeline"
	"github.com/astei/chunkforge/scheduler"
	"github.com/astei/chunkforge/slime"
	"github.com/astei/chunkforge/statusdb"
	"github.com/astei/chunkforge/worldgen"
)

func newLogger(component string) *log.Logger {
	return log.New(os.Stdout, "["+component+"] ", log.LstdFlags|log.Lmicroseconds)
}

func openStore(cfg Config, dir string, blocks *block.Set, biomes *biome.Set, logger *log.Logger) (*anvil.Store, error) {
	compression, err := anvil.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	return anvil.Open(dir, anvil.Options{
		Height:      cfg.HeightAccessor(),
		Blocks:      blocks,
		Biomes:      biomes,
		Compression: compression,
		Logger:      logger,
	})
}

type generateResult struct {
	Requested int
	Saved     int
	Generated int64
	Loaded    int
	Elapsed   time.Duration
}

// generate drives every chunk in the configured square to the target status
// and saves them. Chunks already stored are loaded and only advanced.
func generate(ctx context.Context, cfg Config, logger *log.Logger) (res generateResult, err error) {
	target, err := cfg.Target()
	if err != nil {
		return
	}
	blocks, biomes := block.Default(), biome.Default()
	world := worldgen.New(cfg.Seed, cfg.SeaLevel, blocks, biomes)

	store, err := openStore(cfg, cfg.OutputDir, blocks, biomes, newLogger("anvil"))
	if err != nil {
		return
	}
	defer store.Close()

	index, err := statusdb.Open(cfg.IndexPath)
	if err != nil {
		return
	}
	defer index.Close()
	run, err := index.BeginRun(cfg.Seed, target)
	if err != nil {
		return
	}

	light := worldgen.NewLightEngine()
	defer light.Close()

	gc := pipeline.Context{
		Seed:               cfg.Seed,
		Height:             cfg.HeightAccessor(),
		Blocks:             blocks,
		Biomes:             biomes,
		Generator:          world.Generator(),
		Structures:         world.Structures(),
		Light:              light,
		GenerateStructures: cfg.GenerateStructures,
		Logger:             newLogger("pipeline"),
	}
	sched := scheduler.New(gc, scheduler.Options{
		Workers:  cfg.Workers,
		Loader:   scheduler.LoaderFunc(store.LoadContext),
		Listener: func(c chunk.Access, s chunk.Status) { index.Record(c.Pos(), s) },
		Logger:   newLogger("scheduler"),
	})
	defer sched.Close()

	logger.Printf("run %s: generating radius %d around %s to %s (seed %d)", run, cfg.Radius, cfg.Center(), target, cfg.Seed)
	start := time.Now()

	var positions []chunk.Pos
	var futures []*pipeline.Future[chunk.Access]
	cfg.Center().Square(cfg.Radius, func(p chunk.Pos) bool {
		positions = append(positions, p)
		futures = append(futures, sched.Request(p, target))
		return true
	})
	res.Requested = len(positions)

	// Neighbours within a write radius may still touch a finished chunk, so
	// nothing is saved until every request is done.
	chunks := make([]chunk.Access, len(futures))
	for i, f := range futures {
		if chunks[i], err = f.Wait(ctx); err != nil {
			return res, fmt.Errorf("chunk %s: %w", positions[i], err)
		}
	}
	for _, c := range chunks {
		if err = store.Save(c); err != nil {
			return
		}
		res.Saved++
	}

	res.Generated = sched.Generated()
	res.Loaded = sched.Loaded()
	res.Elapsed = time.Since(start)
	if err = index.Sync(); err != nil {
		return
	}
	logger.Printf("generated %d stages, saved %d chunks (%s written) in %s; %d chunks held",
		res.Generated, res.Saved, store.Written(), res.Elapsed.Round(time.Millisecond), res.Loaded)
	return res, nil
}

type inspectResult struct {
	Total    int
	ByStatus map[chunk.Status]int
	Size     uint64
}

// inspect summarizes the chunks stored in dir.
func inspect(cfg Config, dir string, logger *log.Logger) (res inspectResult, err error) {
	store, err := openStore(cfg, dir, block.Default(), biome.Default(), logger)
	if err != nil {
		return
	}
	defer store.Close()

	stored, err := store.List()
	if err != nil {
		return
	}
	res.ByStatus = make(map[chunk.Status]int)
	for _, st := range stored {
		res.ByStatus[st]++
	}
	res.Total = len(stored)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if info, err := e.Info(); err == nil && !e.IsDir() {
			res.Size += uint64(info.Size())
		}
	}
	return res, nil
}

func (r inspectResult) Print(logger *log.Logger) {
	statuses := make([]chunk.Status, 0, len(r.ByStatus))
	for st := range r.ByStatus {
		statuses = append(statuses, st)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })
	logger.Printf("%d chunks stored in %s", r.Total, humanize.Bytes(r.Size))
	for _, st := range statuses {
		logger.Printf("  %-20s %d", st, r.ByStatus[st])
	}
}

// exportSlime writes every stored Full chunk of dir to a slime file.
func exportSlime(cfg Config, dir, out string, logger *log.Logger) (n int, err error) {
	store, err := openStore(cfg, dir, block.Default(), biome.Default(), logger)
	if err != nil {
		return
	}
	defer store.Close()

	positions, err := store.Positions()
	if err != nil {
		return
	}
	var chunks []chunk.Access
	for _, p := range positions {
		c, err := store.Load(p)
		if err != nil {
			return 0, err
		}
		if c.Status() == chunk.StatusFull {
			chunks = append(chunks, c)
		}
	}
	if len(chunks) == 0 {
		return 0, fmt.Errorf("no full chunks in %s", dir)
	}

	file, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return
	}
	if err = slime.Write(file, chunks, newLogger("slime")); err != nil {
		_ = file.Close()
		return
	}
	if err = file.Close(); err != nil {
		return
	}
	logger.Printf("exported %d chunks to %s", len(chunks), out)
	return len(chunks), nil
}
