// pkg/simulator/simulator_test.go
package simulator

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleka07/twinsync/pkg/ditto"
	"github.com/aleka07/twinsync/pkg/model"
)

type fakeWriter struct {
	mu       sync.Mutex
	readings []model.Reading
	err      error
}

func (f *fakeWriter) PutProperties(_ context.Context, id model.ThingID, feature string, r model.Reading) (ditto.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		err := f.err
		f.err = nil
		return 0, err
	}
	f.readings = append(f.readings, r)
	return ditto.Updated, nil
}

func (f *fakeWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.readings)
}

type countingEnsurer struct {
	mu    sync.Mutex
	calls int
}

func (c *countingEnsurer) Ensure(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return nil
}

func (c *countingEnsurer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestNewRejectsBadRange(t *testing.T) {
	_, err := New(&fakeWriter{}, nil, Config{Min: 40, Max: 20, Interval: time.Second})
	assert.Error(t, err)
	_, err = New(&fakeWriter{}, nil, Config{Min: 20, Max: 40})
	assert.Error(t, err)
}

func TestGenerateStaysInRangeWithOneDecimal(t *testing.T) {
	s, err := New(&fakeWriter{}, nil, Config{Min: 20, Max: 40, Interval: time.Second, Rand: rand.New(rand.NewPCG(1, 2))})
	require.NoError(t, err)
	for i := 0; i < 1000; i++ {
		v := s.Generate()
		if v < 20 || v > 40 {
			t.Fatalf("value %g out of range", v)
		}
		if math.Abs(v*10-math.Round(v*10)) > 1e-9 {
			t.Fatalf("value %g has more than one decimal", v)
		}
	}
}

func TestStepWritesActiveReading(t *testing.T) {
	w := &fakeWriter{}
	at := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)
	s, err := New(w, nil, Config{ThingID: "demo:sensor-1", Min: 20, Max: 40, Interval: time.Second, Now: func() time.Time { return at }})
	require.NoError(t, err)

	r, err := s.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, r.Status)
	assert.Equal(t, "celsius", r.Unit)
	assert.Equal(t, "2024-06-01T08:30:00Z", r.Timestamp)
	assert.Equal(t, []model.Reading{r}, w.readings)

	w.err = ditto.ErrForbidden
	_, err = s.Step(context.Background())
	assert.ErrorIs(t, err, ditto.ErrForbidden)
}

func TestRunReprovisionsOnNotFound(t *testing.T) {
	logger, _ := test.NewNullLogger()
	w := &fakeWriter{err: ditto.ErrNotFound}
	ens := &countingEnsurer{}
	s, err := New(w, ens, Config{ThingID: "demo:sensor-1", Min: 20, Max: 40, Interval: 10 * time.Millisecond, Logger: logger})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return w.count() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	// Once at start, once after the 404.
	assert.Equal(t, 2, ens.count())
}
