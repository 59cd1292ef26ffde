// Package history records try-on attempts for the results viewer.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"

	"github.com/lehigh-university-libraries/tryon/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS tryon_results (
    id          TEXT PRIMARY KEY,
    session_id  TEXT NOT NULL,
    item_name   TEXT NOT NULL DEFAULT '',
    mode        TEXT NOT NULL DEFAULT '',
    source      TEXT NOT NULL,
    provider    TEXT NOT NULL DEFAULT '',
    error       TEXT NOT NULL DEFAULT '',
    width       INTEGER NOT NULL DEFAULT 0,
    height      INTEGER NOT NULL DEFAULT 0,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tryon_results_created ON tryon_results(created_at);`

// Store persists try-on results in SQLite
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New applies the history schema to db
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to apply history schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Record stores r, assigning an ID and timestamp when missing
func (s *Store) Record(ctx context.Context, r *models.TryOnResult) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tryon_results
		    (id, session_id, item_name, mode, source, provider, error, width, height, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SessionID, r.ItemName, r.Mode, r.Source, r.Provider, r.Error,
		r.Width, r.Height, r.DurationMS, r.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record try-on result: %w", err)
	}
	slog.Debug("Try-on result recorded", "id", r.ID, "session", r.SessionID, "source", r.Source)
	return nil
}

// List returns results newest first. limit <= 0 returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]models.TryOnResult, error) {
	query := `
		SELECT id, session_id, item_name, mode, source, provider, error, width, height, duration_ms, created_at
		FROM tryon_results
		ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list try-on results: %w", err)
	}
	defer rows.Close()

	var out []models.TryOnResult
	for rows.Next() {
		var r models.TryOnResult
		var created int64
		if err := rows.Scan(&r.ID, &r.SessionID, &r.ItemName, &r.Mode, &r.Source, &r.Provider, &r.Error,
			&r.Width, &r.Height, &r.DurationMS, &created); err != nil {
			return nil, fmt.Errorf("failed to scan try-on result: %w", err)
		}
		r.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// parquetRow is the column layout of exported history files
type parquetRow struct {
	ID          string `parquet:"id"`
	SessionID   string `parquet:"session_id"`
	ItemName    string `parquet:"item_name"`
	Mode        string `parquet:"mode"`
	Source      string `parquet:"source"`
	Provider    string `parquet:"provider"`
	Error       string `parquet:"error"`
	Width       int32  `parquet:"width"`
	Height      int32  `parquet:"height"`
	DurationMS  int64  `parquet:"duration_ms"`
	CreatedAtMS int64  `parquet:"created_at_ms"`
}

// ExportParquet writes every recorded result to w
func (s *Store) ExportParquet(ctx context.Context, w io.Writer) (int, error) {
	results, err := s.List(ctx, 0)
	if err != nil {
		return 0, err
	}

	rows := make([]parquetRow, len(results))
	for i, r := range results {
		rows[i] = parquetRow{
			ID:          r.ID,
			SessionID:   r.SessionID,
			ItemName:    r.ItemName,
			Mode:        r.Mode,
			Source:      r.Source,
			Provider:    r.Provider,
			Error:       r.Error,
			Width:       int32(r.Width),
			Height:      int32(r.Height),
			DurationMS:  r.DurationMS,
			CreatedAtMS: r.CreatedAt.UnixMilli(),
		}
	}

	writer := parquet.NewGenericWriter[parquetRow](w)
	if _, err := writer.Write(rows); err != nil {
		return 0, fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("failed to close parquet writer: %w", err)
	}

	slog.Info("History exported", "rows", len(rows))
	return len(rows), nil
}

// ReadParquet loads results from an exported history file
func ReadParquet(r io.ReaderAt, size int64) ([]models.TryOnResult, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[parquetRow](pf)
	defer reader.Close()

	var out []models.TryOnResult
	rows := make([]parquetRow, 128)
	for {
		n, err := reader.Read(rows)
		for _, row := range rows[:n] {
			out = append(out, models.TryOnResult{
				ID:         row.ID,
				SessionID:  row.SessionID,
				ItemName:   row.ItemName,
				Mode:       row.Mode,
				Source:     row.Source,
				Provider:   row.Provider,
				Error:      row.Error,
				Width:      int(row.Width),
				Height:     int(row.Height),
				DurationMS: row.DurationMS,
				CreatedAt:  time.UnixMilli(row.CreatedAtMS).UTC(),
			})
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}
	return out, nil
}
