// Package statusdb keeps a SQLite index of generation runs and the highest
// status each chunk has reached. The region files stay the source of truth;
// the index answers progress queries without decoding chunks.
package statusdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/astei/chunkforge/chunk"
)

var ErrClosed = errors.New("statusdb: index closed")

type record struct {
	pos    chunk.Pos
	status chunk.Status
	run    uuid.UUID
	synced chan struct{}
}

// Index is safe for concurrent use. Record only queues; a single writer
// goroutine applies the queue in batched transactions.
type Index struct {
	db *sql.DB

	ch     chan record
	sendMu sync.RWMutex
	wg     sync.WaitGroup
	once   sync.Once
	mu     sync.RWMutex

	closed atomic.Bool
	run    atomic.Pointer[uuid.UUID]
	failed atomic.Pointer[error]
}

// Run is one recorded generation run.
type Run struct {
	ID        uuid.UUID
	Seed      int64
	Target    chunk.Status
	StartedAt time.Time
}

func Open(path string) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("statusdb: empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	x := &Index{db: db, ch: make(chan record, 4096)}
	x.wg.Add(1)
	go func() {
		defer x.wg.Done()
		x.loop()
	}()
	return x, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			seed INTEGER NOT NULL,
			target INTEGER NOT NULL,
			started_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			x INTEGER NOT NULL,
			z INTEGER NOT NULL,
			status INTEGER NOT NULL,
			status_name TEXT NOT NULL,
			run_id TEXT,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (x, z)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_status ON chunks(status);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// BeginRun records a new run; later records are attributed to it.
func (x *Index) BeginRun(seed int64, target chunk.Status) (uuid.UUID, error) {
	if x.closed.Load() {
		return uuid.Nil, ErrClosed
	}
	id := uuid.New()
	x.mu.Lock()
	_, err := x.db.Exec(`INSERT INTO runs(id,seed,target,started_at) VALUES(?,?,?,?)`,
		id.String(), seed, int(target), time.Now().UTC().Format(time.RFC3339Nano))
	x.mu.Unlock()
	if err != nil {
		return uuid.Nil, err
	}
	x.run.Store(&id)
	return id, nil
}

// Record queues a status change. A status lower than the stored one is
// ignored when applied.
func (x *Index) Record(p chunk.Pos, s chunk.Status) {
	if x == nil {
		return
	}
	r := record{pos: p, status: s}
	if id := x.run.Load(); id != nil {
		r.run = *id
	}
	x.send(r)
}

func (x *Index) send(r record) bool {
	x.sendMu.RLock()
	defer x.sendMu.RUnlock()
	if x.closed.Load() {
		return false
	}
	x.ch <- r
	return true
}

// Sync waits until everything queued before it is committed and returns the
// first write error seen so far.
func (x *Index) Sync() error {
	done := make(chan struct{})
	if !x.send(record{synced: done}) {
		return ErrClosed
	}
	<-done
	if err := x.failed.Load(); err != nil {
		return *err
	}
	return nil
}

func (x *Index) loop() {
	const commitEvery = 512
	for r := range x.ch {
		batch := []record{r}
	drain:
		for len(batch) < commitEvery {
			select {
			case next, ok := <-x.ch:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}
		if err := x.apply(batch); err != nil {
			x.failed.CompareAndSwap(nil, &err)
		}
		for _, r := range batch {
			if r.synced != nil {
				close(r.synced)
			}
		}
	}
}

func (x *Index) apply(batch []record) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	tx, err := x.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`INSERT INTO chunks(x,z,status,status_name,run_id,updated_at) VALUES(?,?,?,?,?,?)
		ON CONFLICT(x,z) DO UPDATE SET
			status=excluded.status,
			status_name=excluded.status_name,
			run_id=excluded.run_id,
			updated_at=excluded.updated_at
		WHERE excluded.status > chunks.status`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, r := range batch {
		if r.synced != nil {
			continue
		}
		var run any
		if r.run != uuid.Nil {
			run = r.run.String()
		}
		if _, err := stmt.Exec(r.pos.X, r.pos.Z, int(r.status), r.status.String(), run, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Status returns the indexed status of p.
func (x *Index) Status(p chunk.Pos) (s chunk.Status, ok bool, err error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed.Load() {
		return chunk.StatusEmpty, false, ErrClosed
	}
	var v int
	err = x.db.QueryRow(`SELECT status FROM chunks WHERE x=? AND z=?`, p.X, p.Z).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return chunk.StatusEmpty, false, nil
	}
	if err != nil {
		return
	}
	return chunk.Status(v), true, nil
}

// Counts returns how many indexed chunks sit at each status.
func (x *Index) Counts() (map[chunk.Status]int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed.Load() {
		return nil, ErrClosed
	}
	rows, err := x.db.Query(`SELECT status, COUNT(*) FROM chunks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[chunk.Status]int)
	for rows.Next() {
		var s, n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[chunk.Status(s)] = n
	}
	return out, rows.Err()
}

// Runs lists the recorded runs, oldest first.
func (x *Index) Runs() ([]Run, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed.Load() {
		return nil, ErrClosed
	}
	rows, err := x.db.Query(`SELECT id,seed,target,started_at FROM runs ORDER BY started_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		var (
			id, started string
			r           Run
			target      int
		)
		if err := rows.Scan(&id, &r.Seed, &target, &started); err != nil {
			return nil, err
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, err
		}
		r.Target = chunk.Status(target)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close drains the queue and closes the database.
func (x *Index) Close() error {
	var err error
	x.once.Do(func() {
		x.sendMu.Lock()
		x.closed.Store(true)
		close(x.ch)
		x.sendMu.Unlock()
		x.wg.Wait()
		x.mu.Lock()
		err = x.db.Close()
		x.mu.Unlock()
	})
	return err
}
