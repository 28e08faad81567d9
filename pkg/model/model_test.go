// pkg/model/model_test.go
package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseThingID(t *testing.T) {
	id, err := ParseThingID("demo:sensor-1")
	require.NoError(t, err)
	assert.Equal(t, ThingID("demo:sensor-1"), id)

	for _, bad := range []string{"", "demo", ":sensor", "demo:"} {
		_, err := ParseThingID(bad)
		if !errors.Is(err, ErrInvalidThingID) {
			t.Errorf("ParseThingID(%q) err = %v, want ErrInvalidThingID", bad, err)
		}
	}
}

func TestReadingDefaults(t *testing.T) {
	var r Reading
	require.NoError(t, json.Unmarshal([]byte(`{"value": 21.5}`), &r))
	assert.Equal(t, Reading{Value: 21.5, Unit: "celsius", Status: StatusUnknown}, r)

	require.NoError(t, json.Unmarshal([]byte(`{"value":1,"unit":"kelvin","status":"bogus"}`), &r))
	assert.Equal(t, "kelvin", r.Unit)
	assert.Equal(t, StatusUnknown, r.Status)
}

func TestSnapshotEmptyShapes(t *testing.T) {
	b, err := json.Marshal(Snapshot{})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))

	assert.Equal(t, map[string]any{}, got["attributes"])
	assert.Equal(t, []any{}, got["historical"])
	assert.Equal(t, map[string]any{"temp": map[string]any{"properties": map[string]any{}}}, got["features"])
	assert.NotContains(t, got, "error")
}

func TestThingCloneIsDeep(t *testing.T) {
	orig := Thing{
		ThingID:    "demo:sensor-1",
		Attributes: map[string]any{"name": "Temperature Sensor", "loc": map[string]any{"room": "a"}},
		Features:   map[string]Feature{"temp": {Properties: map[string]any{"value": 25.0}}},
	}
	c := orig.Clone()
	c.Attributes["name"] = "changed"
	c.Attributes["loc"].(map[string]any)["room"] = "b"
	c.Features["temp"].Properties["value"] = 1.0

	assert.Equal(t, "Temperature Sensor", orig.Attributes["name"])
	assert.Equal(t, "a", orig.Attributes["loc"].(map[string]any)["room"])
	assert.Equal(t, 25.0, orig.Features["temp"].Properties["value"])
}

func TestNewHistoryEntryFallsBackToObservedTime(t *testing.T) {
	at := time.Date(2024, 1, 1, 10, 11, 12, 0, time.UTC)
	e := NewHistoryEntry(Reading{Value: 30}, at)
	assert.Equal(t, "2024-01-01T10:11:12Z", e.Timestamp)
	assert.Equal(t, "10:11:12", e.Time)
}

func TestThingCloneCopiesArrays(t *testing.T) {
	orig := Thing{
		Attributes: map[string]any{"tags": []any{"lab", map[string]any{"floor": 2.0}}},
		Features:   map[string]Feature{"temp": {Properties: map[string]any{"samples": []any{21.0, 22.0}}}},
	}
	c := orig.Clone()
	c.Attributes["tags"].([]any)[0] = "changed"
	c.Attributes["tags"].([]any)[1].(map[string]any)["floor"] = 3.0
	c.Features["temp"].Properties["samples"].([]any)[1] = 0.0

	assert.Equal(t, "lab", orig.Attributes["tags"].([]any)[0])
	assert.Equal(t, 2.0, orig.Attributes["tags"].([]any)[1].(map[string]any)["floor"])
	assert.Equal(t, []any{21.0, 22.0}, orig.Features["temp"].Properties["samples"])
}
