// Copyright 2025 CloudWeGo Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package history records runs and their splits in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-delve/delve/pkg/logflags"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run is one recorded run, newest splits last.
type Run struct {
	ID        string
	StartedAt time.Time
	// EndedAt is zero while the run is in progress. A run ends at the
	// next Reset, Start or Close whether or not its route was finished.
	EndedAt  time.Time
	GameTime time.Duration
	Splits   []Split
}

// Split is one split of a run.
type Split struct {
	Seq      int
	Rule     string
	GameTime time.Duration
	At       time.Time
}

// Store persists runs. It implements timer.Timer so it can sit beside
// the real timers; write failures are logged and the run continues.
type Store struct {
	db  *sql.DB
	now func() time.Time

	mu       sync.Mutex
	run      string
	seq      int
	gameTime time.Duration
}

// Open opens the database at path, creating it and its schema if needed.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("history path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping history db: %w", err)
	}
	if err := applyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close ends the current run and closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.Reset()
	return s.db.Close()
}

// Current returns the id of the run in progress, or "".
func (s *Store) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}

// Start begins a new run, ending any run still in progress.
func (s *Store) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endLocked()
	id := uuid.NewString()
	_, err := s.db.Exec(`INSERT INTO runs (id, started_at) VALUES (?, ?)`, id, s.now().UTC().UnixMilli())
	if err != nil {
		logflags.DebuggerLogger().Errorf("history: start run: %v", err)
		return
	}
	s.run, s.seq, s.gameTime = id, 0, 0
}

// Reset ends the run in progress.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endLocked()
}

func (s *Store) endLocked() {
	if s.run == "" {
		return
	}
	_, err := s.db.Exec(`UPDATE runs SET ended_at = ?, game_time_ms = ? WHERE id = ?`,
		s.now().UTC().UnixMilli(), s.gameTime.Milliseconds(), s.run)
	if err != nil {
		logflags.DebuggerLogger().Errorf("history: end run %s: %v", s.run, err)
	}
	s.run = ""
}

// Split records rule at the latest game time.
func (s *Store) Split(rule string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == "" {
		return
	}
	s.seq++
	_, err := s.db.Exec(`
INSERT INTO splits (run_id, seq, rule, game_time_ms, created_at)
VALUES (?, ?, ?, ?, ?)`,
		s.run, s.seq, rule, s.gameTime.Milliseconds(), s.now().UTC().UnixMilli())
	if err != nil {
		logflags.DebuggerLogger().Errorf("history: split %s: %v", rule, err)
	}
}

// SetGameTime remembers d for the next split.
func (s *Store) SetGameTime(d time.Duration) {
	s.mu.Lock()
	s.gameTime = d
	s.mu.Unlock()
}

func (s *Store) PauseGameTime() {}

func (s *Store) SetVariable(key, value string) {}

// Runs returns up to limit runs, newest first, with their splits.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, started_at, ended_at, game_time_ms
FROM runs
ORDER BY started_at DESC, rowid DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r       Run
			started int64
			ended   sql.NullInt64
			gameMs  int64
		)
		if err := rows.Scan(&r.ID, &started, &ended, &gameMs); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started).UTC()
		if ended.Valid {
			r.EndedAt = time.UnixMilli(ended.Int64).UTC()
		}
		r.GameTime = time.Duration(gameMs) * time.Millisecond
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	rows.Close()

	for i := range runs {
		splits, err := s.splits(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Splits = splits
	}
	return runs, nil
}

func (s *Store) splits(ctx context.Context, run string) ([]Split, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT seq, rule, game_time_ms, created_at
FROM splits
WHERE run_id = ?
ORDER BY seq`, run)
	if err != nil {
		return nil, fmt.Errorf("list splits of %s: %w", run, err)
	}
	defer rows.Close()

	var out []Split
	for rows.Next() {
		var (
			sp     Split
			gameMs int64
			at     int64
		)
		if err := rows.Scan(&sp.Seq, &sp.Rule, &gameMs, &at); err != nil {
			return nil, fmt.Errorf("scan split: %w", err)
		}
		sp.GameTime = time.Duration(gameMs) * time.Millisecond
		sp.At = time.UnixMilli(at).UTC()
		out = append(out, sp)
	}
	return out, rows.Err()
}
