// pkg/persistence/store.go
package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aleka07/twinsync/pkg/model"
)

var (
	ErrConflict      = errors.New("reading already stored")
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// ReadingStore keeps observed readings beyond the in-memory history so the
// ring can be restored after a restart.
type ReadingStore interface {
	// WriteReading stores one observed entry. Storing the same observation
	// twice yields ErrConflict.
	WriteReading(ctx context.Context, thingID string, e model.HistoryEntry) error

	// RecentReadings returns up to limit entries, oldest first.
	RecentReadings(ctx context.Context, thingID string, limit int) ([]model.HistoryEntry, error)

	Close()
}

// Driver names accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open connects the store for the given driver and DSN and creates the
// schema if needed.
func Open(ctx context.Context, driver, dsn string, log logrus.FieldLogger) (ReadingStore, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	switch driver {
	case DriverPostgres:
		return NewPostgresStore(ctx, dsn, log)
	case DriverSQLite:
		return NewSQLiteStore(ctx, dsn, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// entryFromRow rebuilds an entry; the HH:MM:SS label is derived from the
// observation time in local time, as when it was first recorded.
func entryFromRow(value float64, ts string, observed time.Time) model.HistoryEntry {
	observed = observed.Local()
	return model.HistoryEntry{
		Value:      value,
		Timestamp:  ts,
		Time:       observed.Format("15:04:05"),
		ObservedAt: observed,
	}
}

func reverse(es []model.HistoryEntry) {
	for i, j := 0, len(es)-1; i < j; i, j = i+1, j-1 {
		es[i], es[j] = es[j], es[i]
	}
}
