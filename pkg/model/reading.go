// pkg/model/reading.go
package model

import (
	"encoding/json"
	"time"
)

// ReadingStatus is the status reported alongside a sensor value.
type ReadingStatus string

const (
	StatusActive   ReadingStatus = "active"
	StatusInactive ReadingStatus = "inactive"
	StatusUnknown  ReadingStatus = "unknown"
)

// DefaultUnit is assumed when the remote property carries no unit.
const DefaultUnit = "celsius"

// Reading is the content of features/temp/properties.
type Reading struct {
	Value     float64       `json:"value"`
	Unit      string        `json:"unit"`
	Timestamp string        `json:"timestamp"` // ISO-8601, as written by the sensor
	Status    ReadingStatus `json:"status"`
}

// UnmarshalJSON fills the same defaults the dashboard always assumed for
// missing fields: value 0, unit celsius, status unknown.
func (r *Reading) UnmarshalJSON(b []byte) error {
	type raw Reading
	v := raw{Unit: DefaultUnit, Status: StatusUnknown}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v.Status {
	case StatusActive, StatusInactive:
	default:
		v.Status = StatusUnknown
	}
	if v.Unit == "" {
		v.Unit = DefaultUnit
	}
	*r = Reading(v)
	return nil
}

// Properties renders the reading as a feature properties map.
func (r Reading) Properties() map[string]any {
	return map[string]any{
		"value":     r.Value,
		"unit":      r.Unit,
		"timestamp": r.Timestamp,
		"status":    string(r.Status),
	}
}

// HistoryEntry is one observed reading kept by the history ring.
type HistoryEntry struct {
	Value      float64   `json:"value"`
	Timestamp  string    `json:"timestamp"` // reading timestamp from the twin
	Time       string    `json:"time"`      // local observation time, HH:MM:SS
	ObservedAt time.Time `json:"observedAt"`
}

// NewHistoryEntry records r as observed at the given local time.
// An empty reading timestamp falls back to the observation time.
func NewHistoryEntry(r Reading, observed time.Time) HistoryEntry {
	ts := r.Timestamp
	if ts == "" {
		ts = observed.UTC().Format(time.RFC3339)
	}
	return HistoryEntry{
		Value:      r.Value,
		Timestamp:  ts,
		Time:       observed.Format("15:04:05"),
		ObservedAt: observed,
	}
}
