// pkg/model/snapshot.go
package model

import (
	"encoding/json"
	"time"
)

// Status is the health of one subsystem.
type Status string

const (
	StatusUp      Status = "UP"
	StatusDown    Status = "DOWN"
	StatusRunning Status = "RUNNING"
)

// HealthSnapshot is recomputed every tick; it holds no memory of earlier ticks.
type HealthSnapshot struct {
	ServiceUp  bool              `json:"serviceUp"`
	Statuses   map[string]Status `json:"statuses"`
	ObservedAt time.Time         `json:"observedAt"`
}

// TempProperties is the features.temp.properties slot of a snapshot.
// Nil Reading marshals as {}.
type TempProperties struct {
	Properties *Reading `json:"properties"`
}

func (p TempProperties) MarshalJSON() ([]byte, error) {
	if p.Properties == nil {
		return []byte(`{"properties":{}}`), nil
	}
	return json.Marshal(struct {
		Properties Reading `json:"properties"`
	}{*p.Properties})
}

// SnapshotFeatures mirrors the features shape the dashboard consumes.
type SnapshotFeatures struct {
	Temp TempProperties `json:"temp"`
}

// Snapshot is the consolidated view of one tick, the unit broadcast to
// subscribers. It is built once and never edited; everything it references
// is a private copy.
type Snapshot struct {
	ThingID    string           `json:"thingId"`
	PolicyID   string           `json:"policyId"`
	Attributes map[string]any   `json:"attributes"`
	Features   SnapshotFeatures `json:"features"`
	Health     HealthSnapshot   `json:"health"`
	Historical []HistoryEntry   `json:"historical"`

	// Error marks a tick on which nothing could be fetched. The remaining
	// fields then carry the last known state.
	Error   bool   `json:"error,omitempty"`
	Message string `json:"message,omitempty"`

	Thing      *Thing    `json:"-"`
	ObservedAt time.Time `json:"observedAt"`
}

// Reading returns the temperature reading carried by the snapshot, if any.
func (s Snapshot) Reading() (Reading, bool) {
	if s.Features.Temp.Properties == nil {
		return Reading{}, false
	}
	return *s.Features.Temp.Properties, true
}

// MarshalJSON renders absent parts as empty objects and arrays, never null,
// so a dashboard can render whatever is present.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	type plain Snapshot
	p := plain(s)
	if p.Attributes == nil {
		p.Attributes = map[string]any{}
	}
	if p.Historical == nil {
		p.Historical = []HistoryEntry{}
	}
	if p.Health.Statuses == nil {
		p.Health.Statuses = map[string]Status{}
	}
	return json.Marshal(p)
}
