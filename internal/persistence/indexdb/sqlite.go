package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"nestbox.dev/internal/engine"
	"nestbox.dev/internal/puzzles"
)

// SQLiteIndex is the queryable side of push persistence. Writes are
// asynchronous and lossy under pressure; the JSONL trace logs remain the
// source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqRun reqKind = iota + 1
	reqPush
	reqFinish
)

type req struct {
	kind reqKind

	run  RunStart
	push pushRow
	fin  finishRow
}

// RunStart records one world being built and handed to a driver (a
// websocket session, the checker, a replay).
type RunStart struct {
	RunID     string
	PuzzleID  string
	Source    string
	ScriptSHA string
	StartedAt time.Time
}

type pushRow struct {
	RunID string
	Trace engine.PushTrace
}

type finishRow struct {
	RunID      string
	Status     string
	FinishedAt string
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
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

	s := &SQLiteIndex{
		db: db,
		// High buffer: the checker replaying whole scenario directories can
		// outrun the committer without stalling.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL keeps the append-heavy write path cheap; NORMAL durability is
	// acceptable for an index that can be rebuilt from the trace logs.
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
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS puzzles (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			path TEXT NOT NULL,
			script_sha TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			puzzle_id TEXT NOT NULL,
			source TEXT NOT NULL,
			script_sha TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			status TEXT NOT NULL,
			pushes INTEGER NOT NULL,
			final_digest TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_puzzle_started ON runs(puzzle_id, started_at);`,
		`CREATE TABLE IF NOT EXISTS pushes (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			entity TEXT NOT NULL,
			direction TEXT NOT NULL,
			outcome TEXT NOT NULL,
			reason TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_pushes_entity ON pushes(entity, run_id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) StartRun(run RunStart) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqRun, run: run}:
	default:
		// Writer behind: drop rather than stall the caller. The trace log
		// still has every push.
	}
	return nil
}

func (s *SQLiteIndex) RecordPush(runID string, t engine.PushTrace) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqPush, push: pushRow{RunID: runID, Trace: t}}:
	default:
	}
	return nil
}

func (s *SQLiteIndex) FinishRun(runID, status string) {
	if s == nil || s.closed.Load() {
		return
	}
	if runID == "" {
		return
	}
	r := finishRow{
		RunID:      runID,
		Status:     status,
		FinishedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	select {
	case s.ch <- req{kind: reqFinish, fin: r}:
	default:
	}
}

// UpsertPuzzles records the served catalog so runs can be tied back to the
// exact script revision they were played against.
func (s *SQLiteIndex) UpsertPuzzles(cat *puzzles.Catalog) error {
	if s == nil || cat == nil {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO puzzles(id,name,path,script_sha,updated_at) VALUES(?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, sp := range cat.Specs() {
		sha, ok := cat.ScriptSHA(sp.ID)
		if !ok {
			continue
		}
		if _, err := stmt.Exec(sp.ID, sp.Name, sp.Path, sha, now); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	// Statements are prepared once and rebound to each tx via tx.Stmt.
	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(run_id,puzzle_id,source,script_sha,started_at,status,pushes,final_digest) VALUES(?,?,?,?,?,'active',0,'')`)
	insertPush, _ := s.db.Prepare(`INSERT OR REPLACE INTO pushes(run_id,seq,entity,direction,outcome,reason,raw_json) VALUES(?,?,?,?,?,?,?)`)
	advanceRun, _ := s.db.Prepare(`UPDATE runs SET pushes=?, final_digest=? WHERE run_id=?`)
	finishRun, _ := s.db.Prepare(`UPDATE runs SET finished_at=?, status=? WHERE run_id=?`)
	defer func() {
		if insertRun != nil {
			_ = insertRun.Close()
		}
		if insertPush != nil {
			_ = insertPush.Close()
		}
		if advanceRun != nil {
			_ = advanceRun.Close()
		}
		if finishRun != nil {
			_ = finishRun.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			// No tx, no progress; back off and let the next batch retry.
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqRun:
			run := r.run
			if insertRun != nil {
				if _, err := tx.Stmt(insertRun).Exec(
					run.RunID,
					run.PuzzleID,
					run.Source,
					run.ScriptSHA,
					run.StartedAt.UTC().Format(time.RFC3339Nano),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqPush:
			p := r.push
			raw, _ := json.Marshal(p.Trace)
			if insertPush != nil {
				if _, err := tx.Stmt(insertPush).Exec(
					p.RunID,
					int64(p.Trace.Seq),
					p.Trace.Entity,
					p.Trace.Direction,
					p.Trace.Outcome,
					p.Trace.Reason,
					string(raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			// Seq counts pushes from 1, so the latest trace carries the
			// run's running totals.
			if advanceRun != nil {
				if _, err := tx.Stmt(advanceRun).Exec(
					int64(p.Trace.Seq),
					p.Trace.Digest,
					p.RunID,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqFinish:
			f := r.fin
			if finishRun != nil {
				if _, err := tx.Stmt(finishRun).Exec(
					f.FinishedAt,
					f.Status,
					f.RunID,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}
