// pkg/model/twin.go
package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidThingID is returned when an identifier is not in namespace:name form.
var ErrInvalidThingID = errors.New("invalid thing id")

// ThingID identifies the monitored twin on the remote service, e.g. "demo:sensor-1".
type ThingID string

// ParseThingID checks the namespace:name form and returns the typed id.
func ParseThingID(s string) (ThingID, error) {
	ns, name, ok := strings.Cut(s, ":")
	if !ok || ns == "" || name == "" {
		return "", fmt.Errorf("%w: %q (want namespace:name)", ErrInvalidThingID, s)
	}
	return ThingID(s), nil
}

func (id ThingID) String() string { return string(id) }

// Feature is a named capability group on a thing, e.g. "temp".
type Feature struct {
	Properties map[string]any `json:"properties,omitempty"`
}

// Thing is the resource state as returned by GET /api/2/things/{id}.
// It is only ever mutated by the remote service.
type Thing struct {
	ThingID    string             `json:"thingId"`
	PolicyID   string             `json:"policyId,omitempty"`
	Definition string             `json:"definition,omitempty"`
	Attributes map[string]any     `json:"attributes,omitempty"`
	Features   map[string]Feature `json:"features,omitempty"`
}

// Clone returns a deep copy so snapshots never share maps with a decoded response.
func (t Thing) Clone() Thing {
	out := t
	out.Attributes = cloneMap(t.Attributes)
	if t.Features != nil {
		out.Features = make(map[string]Feature, len(t.Features))
		for name, f := range t.Features {
			out.Features[name] = Feature{Properties: cloneMap(f.Properties)}
		}
	}
	return out
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue copies the JSON containers (objects and arrays); scalars are immutable.
func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneMap(x)
	case []any:
		if x == nil {
			return x
		}
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
