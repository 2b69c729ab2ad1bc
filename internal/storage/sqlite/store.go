// Package sqlite persists tracking runs, entry/exit events and per-track
// summaries to a local SQLite database.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sightline-data/facetrack/internal/track"
)

// Store wraps the SQLite connection. The base schema is created on open;
// later schema changes ship as migrations (see migrate.go).
type Store struct {
	*sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id            TEXT PRIMARY KEY,
			source            TEXT,
			config_json       TEXT,
			frames            BIGINT DEFAULT 0,
			started_at        TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			finished_at       TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS face_events (
			event_id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id            TEXT NOT NULL,
			track_id          BIGINT NOT NULL,
			kind              TEXT NOT NULL,
			frame             BIGINT NOT NULL,
			x                 DOUBLE,
			y                 DOUBLE,
			w                 DOUBLE,
			h                 DOUBLE,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(run_id) REFERENCES runs(run_id)
		);
		CREATE INDEX IF NOT EXISTS idx_face_events_run ON face_events(run_id, frame);
		CREATE TABLE IF NOT EXISTS track_summaries (
			run_id            TEXT NOT NULL,
			track_id          BIGINT NOT NULL,
			first_frame       BIGINT,
			last_frame        BIGINT,
			age_frames        BIGINT,
			confirmed         INTEGER,
			avg_speed_pxf     DOUBLE,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (run_id, track_id),
			FOREIGN KEY(run_id) REFERENCES runs(run_id)
		);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db}, nil
}

// Event kinds recorded in face_events.
const (
	EventEntry = "entry" // track confirmed
	EventExit  = "exit"  // track removed from the live set
)

// Event is one recorded lifecycle transition.
type Event struct {
	EventID int64     `json:"event_id"`
	RunID   string    `json:"run_id"`
	TrackID int64     `json:"track_id"`
	Kind    string    `json:"kind"`
	Frame   int64     `json:"frame"`
	Box     track.Box `json:"box"`
}

// Summary is the per-track rollup written when a track dies or a run ends.
type Summary struct {
	RunID       string  `json:"run_id"`
	TrackID     int64   `json:"track_id"`
	FirstFrame  int64   `json:"first_frame"`
	LastFrame   int64   `json:"last_frame"`
	AgeFrames   int64   `json:"age_frames"`
	Confirmed   bool    `json:"confirmed"`
	AvgSpeedPxF float64 `json:"avg_speed_pxf"`
}

// CreateRun registers a new run and returns its ID. The tracker config
// is stored as JSON for later comparison across runs.
func (s *Store) CreateRun(source string, cfg track.ManagerConfig) (string, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal run config: %w", err)
	}
	runID := uuid.NewString()
	_, err = s.Exec(
		"INSERT INTO runs (run_id, source, config_json) VALUES (?, ?, ?)",
		runID, source, string(cfgJSON),
	)
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return runID, nil
}

// FinishRun stamps the run's end time and final frame count.
func (s *Store) FinishRun(runID string, frames int64) error {
	res, err := s.Exec(
		"UPDATE runs SET frames = ?, finished_at = ? WHERE run_id = ?",
		frames, time.Now().UTC(), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("finish run: unknown run %q", runID)
	}
	return nil
}

// RecordEvent appends an entry/exit event for a track.
func (s *Store) RecordEvent(runID string, trackID int64, kind string, frame int64, box track.Box) error {
	if kind != EventEntry && kind != EventExit {
		return fmt.Errorf("record event: unknown kind %q", kind)
	}
	_, err := s.Exec(
		"INSERT INTO face_events (run_id, track_id, kind, frame, x, y, w, h) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		runID, trackID, kind, frame, box.X, box.Y, box.W, box.H,
	)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// RecordSummary upserts the rollup row for one track.
func (s *Store) RecordSummary(sum Summary) error {
	_, err := s.Exec(`
		INSERT INTO track_summaries (run_id, track_id, first_frame, last_frame, age_frames, confirmed, avg_speed_pxf)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, track_id) DO UPDATE SET
			last_frame = excluded.last_frame,
			age_frames = excluded.age_frames,
			confirmed = excluded.confirmed,
			avg_speed_pxf = excluded.avg_speed_pxf`,
		sum.RunID, sum.TrackID, sum.FirstFrame, sum.LastFrame, sum.AgeFrames, sum.Confirmed, sum.AvgSpeedPxF,
	)
	if err != nil {
		return fmt.Errorf("record summary: %w", err)
	}
	return nil
}

// ListEvents returns events for a run in frame order, newest last.
// limit <= 0 means no limit.
func (s *Store) ListEvents(runID string, limit int) ([]Event, error) {
	query := "SELECT event_id, run_id, track_id, kind, frame, x, y, w, h FROM face_events WHERE run_id = ? ORDER BY frame, event_id"
	args := []interface{}{runID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.EventID, &e.RunID, &e.TrackID, &e.Kind, &e.Frame, &e.Box.X, &e.Box.Y, &e.Box.W, &e.Box.H); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ListSummaries returns all per-track rollups for a run in track order.
func (s *Store) ListSummaries(runID string) ([]Summary, error) {
	rows, err := s.Query(
		"SELECT run_id, track_id, first_frame, last_frame, age_frames, confirmed, avg_speed_pxf FROM track_summaries WHERE run_id = ? ORDER BY track_id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	var sums []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.RunID, &sum.TrackID, &sum.FirstFrame, &sum.LastFrame, &sum.AgeFrames, &sum.Confirmed, &sum.AvgSpeedPxF); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		sums = append(sums, sum)
	}
	return sums, rows.Err()
}

// VisitorCount returns the number of distinct confirmed tracks in a run.
// This is the run's visitor total: each entry event is one face that
// survived the confirmation window.
func (s *Store) VisitorCount(runID string) (int, error) {
	var n int
	err := s.QueryRow(
		"SELECT COUNT(DISTINCT track_id) FROM face_events WHERE run_id = ? AND kind = ?",
		runID, EventEntry,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("visitor count: %w", err)
	}
	return n, nil
}
