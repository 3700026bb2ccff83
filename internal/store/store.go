// Package store persists ingest runs and their extracted points in SQLite so
// that earlier imports can be listed, inspected and served without parsing
// the export again.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/locationhistory/internal/history"
	"github.com/banshee-data/locationhistory/internal/history/pipeline"
	"github.com/banshee-data/locationhistory/internal/history/sniff"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("run not found")

// Store is a SQLite database of runs and points.
type Store struct {
	*sql.DB
	path string
}

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
	"PRAGMA synchronous = NORMAL",
}

// Open opens (creating if needed) the database at path, applies pragmas and
// runs the embedded migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	// One writer at a time; WAL still allows concurrent readers.
	db.SetMaxOpenConns(1)

	s := &Store{DB: db, path: path}
	if err := s.applyPragmas(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.MigrateUp(Migrations()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) applyPragmas() error {
	for _, p := range pragmas {
		if _, err := s.Exec(p); err != nil {
			return fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return nil
}

// Path is the file the store was opened from.
func (s *Store) Path() string { return s.path }

// Run is one stored ingest run.
type Run struct {
	ID                string     `json:"id"`
	Input             string     `json:"input"`
	Format            string     `json:"format"`
	State             string     `json:"state"`
	IncludeVisits     bool       `json:"include_visits"`
	IncludeActivities bool       `json:"include_activities"`
	IncludeRawPath    bool       `json:"include_raw_path"`
	Interpolate       bool       `json:"interpolate_missing_timestamps"`
	Elements          int        `json:"elements"`
	Points            int        `json:"points"`
	Skipped           int        `json:"skipped"`
	Error             string     `json:"error,omitempty"`
	StartedAt         time.Time  `json:"started_at"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
}

// BeginRun records a new run for opts in the extracting state and returns
// its generated id.
func (s *Store) BeginRun(ctx context.Context, opts history.Options, startedAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := s.ExecContext(ctx, `
		INSERT INTO runs (
			id, input, state, include_visits, include_activities, include_raw_path,
			interpolate, started_at_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, opts.InputPath, pipeline.StateExtracting.String(),
		opts.IncludeVisits, opts.IncludeActivities, opts.IncludeRawPath,
		opts.InterpolateMissingTimestamps, startedAt.UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return id, nil
}

// InsertPoints appends points to run id in one transaction. Sequence numbers
// continue from any points already stored, so batches keep file order.
func (s *Store) InsertPoints(ctx context.Context, id string, points []history.Point) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var next int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq) + 1, 0) FROM points WHERE run_id = ?`, id,
	).Scan(&next); err != nil {
		return fmt.Errorf("failed to read next sequence: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO points (
			run_id, seq, lat, lon, timestamp_ms, place_id, semantic_type, probability, source
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare point insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range points {
		if _, err := stmt.ExecContext(ctx,
			id, next+int64(i), p.Lat, p.Lon,
			nullInt64(p.Timestamp), nullString(p.PlaceID), nullString(p.SemanticType),
			p.Probability, string(p.Source),
		); err != nil {
			return fmt.Errorf("failed to insert point %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit points: %w", err)
	}
	return nil
}

// FinishRun stores the outcome described by report on run id.
func (s *Store) FinishRun(ctx context.Context, id string, report *pipeline.Report) error {
	var errText sql.NullString
	if report.Err != nil {
		errText = sql.NullString{String: report.Err.Error(), Valid: true}
	}
	var format string
	if report.Format != sniff.Unrecognized {
		format = report.Format.String()
	}
	finished := report.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	res, err := s.ExecContext(ctx, `
		UPDATE runs SET
			format = ?, state = ?, elements = ?, points = ?, skipped = ?,
			error = ?, finished_at_ms = ?
		WHERE id = ?`,
		format, report.State.String(), report.Elements, report.Points, report.Skipped,
		errText, finished.UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

const runColumns = `id, input, format, state, include_visits, include_activities,
	include_raw_path, interpolate, elements, points, skipped, error,
	started_at_ms, finished_at_ms`

// Runs lists the most recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at_ms DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns one run or ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, err
}

// Points returns a page of the points of run id in file order.
func (s *Store) Points(ctx context.Context, id string, limit, offset int) ([]history.Point, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT lat, lon, timestamp_ms, place_id, semantic_type, probability, source
		FROM points WHERE run_id = ? ORDER BY seq LIMIT ? OFFSET ?`, id, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}
	defer rows.Close()

	points := []history.Point{}
	for rows.Next() {
		var (
			p        history.Point
			ts       sql.NullInt64
			placeID  sql.NullString
			semantic sql.NullString
			source   string
		)
		if err := rows.Scan(&p.Lat, &p.Lon, &ts, &placeID, &semantic, &p.Probability, &source); err != nil {
			return nil, fmt.Errorf("failed to scan point: %w", err)
		}
		if ts.Valid {
			p.Timestamp = history.Int64Ptr(ts.Int64)
		}
		if placeID.Valid {
			p.PlaceID = history.StringPtr(placeID.String)
		}
		if semantic.Valid {
			p.SemanticType = history.StringPtr(semantic.String)
		}
		p.Source = history.Source(source)
		points = append(points, p)
	}
	return points, rows.Err()
}

// DeleteRun removes a run and, through the foreign key, its points.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r        Run
		errText  sql.NullString
		started  int64
		finished sql.NullInt64
	)
	err := sc.Scan(
		&r.ID, &r.Input, &r.Format, &r.State,
		&r.IncludeVisits, &r.IncludeActivities, &r.IncludeRawPath, &r.Interpolate,
		&r.Elements, &r.Points, &r.Skipped, &errText, &started, &finished,
	)
	if err != nil {
		return Run{}, err
	}
	r.Error = errText.String
	r.StartedAt = time.UnixMilli(started).UTC()
	if finished.Valid {
		t := time.UnixMilli(finished.Int64).UTC()
		r.FinishedAt = &t
	}
	return r, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
