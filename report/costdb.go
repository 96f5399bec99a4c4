// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package report

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"go.chromium.org/infra/build/hdrcost/o11y/clog"
)

const costDBSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	root TEXT NOT NULL,
	host TEXT NOT NULL,
	profiler TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS costs (
	run_id TEXT NOT NULL REFERENCES runs(id),
	header TEXT NOT NULL,
	depth INTEGER NOT NULL,
	preprocessed_size INTEGER NOT NULL,
	rss_bytes INTEGER NOT NULL,
	wall_seconds REAL NOT NULL,
	cpu_seconds REAL NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, header)
);
CREATE INDEX IF NOT EXISTS costs_header ON costs(header);
`

// CostDB is a sqlite database of benchmark history.
type CostDB struct {
	db *sql.DB
}

// Run is a benchmark run recorded in CostDB.
type Run struct {
	ID       string
	Root     string
	Host     string
	Profiler string
	Time     time.Time
}

// HistoryEntry is a cost of a header in a past run.
type HistoryEntry struct {
	RunID       string
	Time        time.Time
	RSSBytes    int64
	WallSeconds float64
	CPUSeconds  float64
}

// OpenCostDB opens the cost database at fname, creating it if needed.
func OpenCostDB(ctx context.Context, fname string) (*CostDB, error) {
	err := os.MkdirAll(filepath.Dir(fname), 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sql.Open("sqlite3", fname+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", fname, err)
	}
	_, err = db.ExecContext(ctx, costDBSchema)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize %s: %w", fname, err)
	}
	clog.Infof(ctx, "cost db %s", fname)
	return &CostDB{db: db}, nil
}

// Close closes the database.
func (c *CostDB) Close() error {
	return c.db.Close()
}

// Record records run and its rows in a transaction.
func (c *CostDB) Record(ctx context.Context, run Run, rows []CostRow) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, `INSERT INTO runs (id, root, host, profiler, created_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Root, run.Host, run.Profiler, run.Time.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO costs (run_id, header, depth, preprocessed_size, rss_bytes, wall_seconds, cpu_seconds, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		_, err := stmt.ExecContext(ctx, run.ID, r.Header, r.Depth, r.PreprocessedSize, r.RSSBytes, r.WallSeconds, r.CPUSeconds, r.Error)
		if err != nil {
			return fmt.Errorf("failed to record %s: %w", r.Header, err)
		}
	}
	return tx.Commit()
}

// History returns successful past costs of header, newest first.
func (c *CostDB) History(ctx context.Context, header string) ([]HistoryEntry, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT runs.id, runs.created_at, costs.rss_bytes, costs.wall_seconds, costs.cpu_seconds
FROM costs JOIN runs ON costs.run_id = runs.id
WHERE costs.header = ? AND costs.error = ''
ORDER BY runs.created_at DESC, runs.id`, header)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var hist []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		var ms int64
		err := rows.Scan(&h.RunID, &ms, &h.RSSBytes, &h.WallSeconds, &h.CPUSeconds)
		if err != nil {
			return nil, err
		}
		h.Time = time.UnixMilli(ms)
		hist = append(hist, h)
	}
	return hist, rows.Err()
}

// Previous returns the latest successful cost of each header recorded
// before the run id. Headers never measured are absent.
func (c *CostDB) Previous(ctx context.Context, runID string, headers []string) (map[string]HistoryEntry, error) {
	m := make(map[string]HistoryEntry)
	for _, h := range headers {
		hist, err := c.History(ctx, h)
		if err != nil {
			return nil, err
		}
		for _, e := range hist {
			if e.RunID == runID {
				continue
			}
			m[h] = e
			break
		}
	}
	return m, nil
}
