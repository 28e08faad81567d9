// pkg/persistence/sqlite_store.go
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/aleka07/twinsync/pkg/model"
)

var _ ReadingStore = (*SQLiteStore)(nil)

// SQLiteStore implements ReadingStore on an embedded SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	log logrus.FieldLogger
}

// NewSQLiteStore opens (or creates) the database at path. ":memory:" keeps
// everything in process.
func NewSQLiteStore(ctx context.Context, path string, log logrus.FieldLogger) (*SQLiteStore, error) {
	if path == "" {
		path = "twinsync.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS readings (
		thing_id    TEXT    NOT NULL,
		observed_ns INTEGER NOT NULL,
		value       REAL    NOT NULL,
		reading_ts  TEXT,
		PRIMARY KEY (thing_id, observed_ns)
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create readings table: %w", err)
	}
	log.WithField("path", path).Info("SQLite reading store ready")
	return &SQLiteStore{db: db, log: log}, nil
}

func (s *SQLiteStore) Close() {
	if err := s.db.Close(); err != nil {
		s.log.WithError(err).Warn("closing SQLite store")
	}
}

func (s *SQLiteStore) WriteReading(ctx context.Context, thingID string, e model.HistoryEntry) error {
	var ts sql.NullString
	if e.Timestamp != "" {
		ts = sql.NullString{String: e.Timestamp, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO readings (thing_id, observed_ns, value, reading_ts) VALUES (?, ?, ?, ?)`,
		thingID, e.ObservedAt.UnixNano(), e.Value, ts)
	if err != nil {
		// modernc reports constraint failures only through the message text.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s at %s", ErrConflict, thingID, e.ObservedAt)
		}
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecentReadings(ctx context.Context, thingID string, limit int) ([]model.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT value, reading_ts, observed_ns
		FROM readings
		WHERE thing_id = ?
		ORDER BY observed_ns DESC
		LIMIT ?`, thingID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []model.HistoryEntry{}
	for rows.Next() {
		var (
			value float64
			ts    sql.NullString
			ns    int64
		)
		if err := rows.Scan(&value, &ts, &ns); err != nil {
			return nil, fmt.Errorf("failed to scan reading row: %w", err)
		}
		out = append(out, entryFromRow(value, ts.String, time.Unix(0, ns)))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reading rows: %w", err)
	}
	reverse(out)
	return out, nil
}
