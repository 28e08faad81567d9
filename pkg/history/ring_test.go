// pkg/history/ring_test.go
package history

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/aleka07/twinsync/pkg/model"
)

func entries(vals ...float64) []model.HistoryEntry {
	out := make([]model.HistoryEntry, len(vals))
	for i, v := range vals {
		out[i] = model.HistoryEntry{Value: v}
	}
	return out
}

func values(es []model.HistoryEntry) []float64 {
	out := make([]float64, len(es))
	for i, e := range es {
		out[i] = e.Value
	}
	return out
}

func TestRingKeepsLastCapacityInOrder(t *testing.T) {
	r := New(100)
	for i := 1; i <= 150; i++ {
		r.Append(model.HistoryEntry{Value: float64(i)})
	}
	assert.Equal(t, 100, r.Len())
	assert.Equal(t, 100, r.Cap())

	got := values(r.Snapshot(100))
	want := make([]float64, 100)
	for i := range want {
		want[i] = float64(51 + i)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Snapshot(100) mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshotClampsAndCopies(t *testing.T) {
	r := New(5)
	r.Seed(entries(1, 2, 3))

	assert.Equal(t, []float64{2, 3}, values(r.Snapshot(2)))
	assert.Equal(t, []float64{1, 2, 3}, values(r.Snapshot(20)))
	assert.Empty(t, r.Snapshot(-1))
	assert.NotNil(t, r.Snapshot(0))

	s := r.Snapshot(3)
	s[0].Value = 99
	assert.Equal(t, []float64{1, 2, 3}, values(r.Snapshot(3)), "snapshot must not alias the ring")
}

func TestSeedEvictsLikeAppend(t *testing.T) {
	r := New(3)
	r.Seed(entries(1, 2, 3, 4, 5))
	r.Append(model.HistoryEntry{Value: 6})
	assert.Equal(t, []float64{4, 5, 6}, values(r.Snapshot(3)))
}

func TestNewDefaultsCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, New(0).Cap())
	assert.Zero(t, New(0).Len())
}
