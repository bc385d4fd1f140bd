// Package scoredb records finished sessions and their per-order score
// breakdown in a sqlite database. Writes go through a single writer
// goroutine; reads hit the database directly.
package scoredb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"plantcourier.game/internal/score"
)

// SessionRow summarizes one finished map run.
type SessionRow struct {
	SessionID       string
	MapID           string
	MapDigest       string
	Seed            int64
	Status          string
	Ticks           uint64
	PlaySeconds     float64
	OrdersCompleted int
	PlantsDelivered int
	Score           int
	FinishedAt      string
}

type writeReq struct {
	row    SessionRow
	orders []score.OrderScore
	done   chan error
}

// DB is the score history store.
type DB struct {
	db   *sql.DB
	ch   chan writeReq
	wg   sync.WaitGroup
	once sync.Once
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id       TEXT PRIMARY KEY,
	map_id           TEXT NOT NULL,
	map_digest       TEXT NOT NULL,
	seed             INTEGER NOT NULL,
	status           TEXT NOT NULL,
	ticks            INTEGER NOT NULL,
	play_seconds     REAL NOT NULL,
	orders_completed INTEGER NOT NULL,
	plants_delivered INTEGER NOT NULL,
	score            INTEGER NOT NULL,
	finished_at      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS order_scores (
	session_id       TEXT NOT NULL,
	order_id         TEXT NOT NULL,
	location         TEXT NOT NULL,
	plants_delivered INTEGER NOT NULL,
	plants_requested INTEGER NOT NULL,
	full_delivery    INTEGER NOT NULL,
	points           INTEGER NOT NULL,
	PRIMARY KEY (session_id, order_id)
);
CREATE INDEX IF NOT EXISTS idx_sessions_map ON sessions(map_id, finished_at);
`

// Open creates or opens the database at path and starts the writer.
func Open(path string) (*DB, error) {
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
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &DB{db: db, ch: make(chan writeReq, 16)}
	s.wg.Add(1)
	go s.writer()
	return s, nil
}

func (s *DB) writer() {
	defer s.wg.Done()
	for req := range s.ch {
		req.done <- s.insert(req.row, req.orders)
	}
}

func (s *DB) insert(row SessionRow, orderScores []score.OrderScore) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if row.FinishedAt == "" {
		row.FinishedAt = time.Now().UTC().Format(time.RFC3339)
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO sessions
		(session_id, map_id, map_digest, seed, status, ticks, play_seconds,
		 orders_completed, plants_delivered, score, finished_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		row.SessionID, row.MapID, row.MapDigest, row.Seed, row.Status, row.Ticks,
		row.PlaySeconds, row.OrdersCompleted, row.PlantsDelivered, row.Score, row.FinishedAt); err != nil {
		return err
	}
	for _, o := range orderScores {
		full := 0
		if o.FullDelivery {
			full = 1
		}
		if _, err := tx.Exec(`INSERT OR REPLACE INTO order_scores
			(session_id, order_id, location, plants_delivered, plants_requested, full_delivery, points)
			VALUES (?,?,?,?,?,?,?)`,
			row.SessionID, o.OrderID, o.Location, o.PlantsDelivered, o.PlantsRequested, full, o.Points); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RecordSession persists a finished run and its order breakdown.
func (s *DB) RecordSession(row SessionRow, orderScores []score.OrderScore) error {
	done := make(chan error, 1)
	s.ch <- writeReq{row: row, orders: orderScores, done: done}
	return <-done
}

// History returns the most recent sessions, newest first.
func (s *DB) History(limit int) ([]SessionRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`SELECT session_id, map_id, map_digest, seed, status,
		ticks, play_seconds, orders_completed, plants_delivered, score, finished_at
		FROM sessions ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		var r SessionRow
		if err := rows.Scan(&r.SessionID, &r.MapID, &r.MapDigest, &r.Seed, &r.Status,
			&r.Ticks, &r.PlaySeconds, &r.OrdersCompleted, &r.PlantsDelivered, &r.Score, &r.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// OrderScores returns the breakdown for one session.
func (s *DB) OrderScores(sessionID string) ([]score.OrderScore, error) {
	rows, err := s.db.Query(`SELECT order_id, location, plants_delivered,
		plants_requested, full_delivery, points
		FROM order_scores WHERE session_id = ? ORDER BY order_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []score.OrderScore
	for rows.Next() {
		var o score.OrderScore
		var full int
		if err := rows.Scan(&o.OrderID, &o.Location, &o.PlantsDelivered,
			&o.PlantsRequested, &full, &o.Points); err != nil {
			return nil, err
		}
		o.FullDelivery = full != 0
		out = append(out, o)
	}
	return out, rows.Err()
}

// Close drains the writer and closes the database.
func (s *DB) Close() error {
	s.once.Do(func() {
		close(s.ch)
	})
	s.wg.Wait()
	return s.db.Close()
}
