// pkg/hub/hub_test.go
package hub

import (
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleka07/twinsync/pkg/model"
)

func newTestHub(buffer int) *Hub {
	logger, _ := test.NewNullLogger()
	return New(buffer, logger)
}

func snap(v float64) model.Snapshot {
	r := model.Reading{Value: v, Unit: "celsius", Status: model.StatusActive}
	return model.Snapshot{
		ThingID:    "demo:sensor-1",
		Features:   model.SnapshotFeatures{Temp: model.TempProperties{Properties: &r}},
		Historical: []model.HistoryEntry{{Value: v}},
	}
}

func value(t *testing.T, s model.Snapshot) float64 {
	t.Helper()
	r, ok := s.Reading()
	require.True(t, ok)
	return r.Value
}

func recv(t *testing.T, sub *Subscription) model.Snapshot {
	t.Helper()
	select {
	case s, ok := <-sub.C:
		require.True(t, ok, "channel closed")
		return s
	case <-time.After(time.Second):
		t.Fatal("no snapshot received")
		return model.Snapshot{}
	}
}

func TestPullBeforePublish(t *testing.T) {
	h := newTestHub(0)
	_, ok := h.Pull()
	assert.False(t, ok)

	sub := h.Subscribe()
	select {
	case <-sub.C:
		t.Fatal("nothing should be replayed before the first publish")
	default:
	}
}

func TestSubscribeReplaysLatest(t *testing.T) {
	h := newTestHub(0)
	h.Publish(snap(21))
	h.Publish(snap(22))

	sub := h.Subscribe()
	got := recv(t, sub)
	assert.Equal(t, 22.0, value(t, got))
	assert.Len(t, got.Historical, 1)

	pulled, ok := h.Pull()
	require.True(t, ok)
	assert.Equal(t, 22.0, value(t, pulled))
}

func TestPublishFansOut(t *testing.T) {
	h := newTestHub(0)
	a, b := h.Subscribe(), h.Subscribe()
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, h.Len())

	h.Publish(snap(30))
	assert.Equal(t, 30.0, value(t, recv(t, a)))
	assert.Equal(t, 30.0, value(t, recv(t, b)))
}

func TestSlowSubscriberDropsOldest(t *testing.T) {
	h := newTestHub(2)
	slow := h.Subscribe()
	fast := h.Subscribe()

	for i := 1; i <= 5; i++ {
		h.Publish(snap(float64(i)))
		assert.Equal(t, float64(i), value(t, recv(t, fast)))
	}

	assert.Equal(t, 4.0, value(t, recv(t, slow)))
	assert.Equal(t, 5.0, value(t, recv(t, slow)))
}

func TestUnsubscribeClosesAndIsIdempotent(t *testing.T) {
	h := newTestHub(0)
	sub := h.Subscribe()
	h.Unsubscribe(sub)
	h.Unsubscribe(sub)
	assert.Zero(t, h.Len())

	_, ok := <-sub.C
	assert.False(t, ok)

	h.Publish(snap(1)) // must not panic on the closed channel
}

func TestSubscribeDuringPublish(t *testing.T) {
	h := newTestHub(0)
	stop := make(chan struct{})
	var churn sync.WaitGroup
	for range 20 {
		churn.Add(1)
		go func() {
			defer churn.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				sub := h.Subscribe()
				select {
				case <-sub.C:
				default:
				}
				h.Unsubscribe(sub)
			}
		}()
	}

	var pubs sync.WaitGroup
	for g := range 20 {
		pubs.Add(1)
		go func() {
			defer pubs.Done()
			for i := range 200 {
				h.Publish(snap(float64(g*1000 + i)))
			}
		}()
	}
	pubs.Wait()
	close(stop)
	churn.Wait()

	assert.Zero(t, h.Len())
	late := h.Subscribe()
	latest, ok := h.Pull()
	require.True(t, ok)
	assert.Equal(t, value(t, latest), value(t, recv(t, late)))
}
