// Package store persists registration results in a SQLite database so
// batch runs and the server can keep a queryable history of alignments.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fidlab/quadmatch/internal/match"
)

const schema = `
	CREATE TABLE IF NOT EXISTS matches (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		ref_path       TEXT NOT NULL,
		other_path     TEXT NOT NULL,
		ratio          DOUBLE NOT NULL,
		inliers        BIGINT NOT NULL,
		other_points   BIGINT NOT NULL,
		residual       DOUBLE NOT NULL,
		transform_json TEXT NOT NULL,
		duration_ms    BIGINT NOT NULL,
		created_at     BIGINT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_matches_created_at ON matches(created_at);
`

// Record is one persisted registration outcome.
type Record struct {
	ID          int64      `json:"id"`
	RefPath     string     `json:"ref_path"`
	OtherPath   string     `json:"other_path"`
	Ratio       float64    `json:"ratio"`
	Inliers     int        `json:"inliers"`
	OtherPoints int        `json:"other_points"`
	Residual    float64    `json:"residual"`
	Transform   [6]float64 `json:"transform"`
	DurationMs  int64      `json:"duration_ms"`
	CreatedAtNs int64      `json:"created_at_ns"`
}

// NewRecord maps a match result onto a storable record.
func NewRecord(refPath, otherPath string, res *match.Result) *Record {
	return &Record{
		RefPath:     refPath,
		OtherPath:   otherPath,
		Ratio:       res.Ratio,
		Inliers:     res.Inliers(),
		OtherPoints: res.Stats.OtherPoints,
		Residual:    res.MeanResidual,
		Transform:   res.Transform.Coefficients(),
		DurationMs:  res.Stats.Duration.Milliseconds(),
	}
}

// Store provides persistence for match records.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store path is empty")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert persists a record and returns its row ID. A zero CreatedAtNs is
// filled with the current time.
func (s *Store) Insert(rec *Record) (int64, error) {
	if rec.CreatedAtNs == 0 {
		rec.CreatedAtNs = time.Now().UnixNano()
	}

	transformJSON, err := json.Marshal(rec.Transform)
	if err != nil {
		return 0, fmt.Errorf("marshal transform: %w", err)
	}

	result, err := s.db.Exec(`
		INSERT INTO matches (
			ref_path, other_path, ratio, inliers, other_points,
			residual, transform_json, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RefPath,
		rec.OtherPath,
		rec.Ratio,
		rec.Inliers,
		rec.OtherPoints,
		rec.Residual,
		string(transformJSON),
		rec.DurationMs,
		rec.CreatedAtNs,
	)
	if err != nil {
		return 0, fmt.Errorf("insert match: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read insert id: %w", err)
	}
	rec.ID = id

	return id, nil
}

// List returns records ordered newest first. A limit of zero or less
// returns every record.
func (s *Store) List(limit int) ([]*Record, error) {
	query := `
		SELECT id, ref_path, other_path, ratio, inliers, other_points,
		       residual, transform_json, duration_ms, created_at
		FROM matches
		ORDER BY created_at DESC, id DESC
	`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var rec Record
		var transformJSON string

		err := rows.Scan(
			&rec.ID,
			&rec.RefPath,
			&rec.OtherPath,
			&rec.Ratio,
			&rec.Inliers,
			&rec.OtherPoints,
			&rec.Residual,
			&transformJSON,
			&rec.DurationMs,
			&rec.CreatedAtNs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan match row: %w", err)
		}

		if err := json.Unmarshal([]byte(transformJSON), &rec.Transform); err != nil {
			return nil, fmt.Errorf("unmarshal transform: %w", err)
		}

		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list matches rows: %w", err)
	}

	return records, nil
}

// Count returns the number of stored records.
func (s *Store) Count() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM matches`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count matches: %w", err)
	}
	return n, nil
}
