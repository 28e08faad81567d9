// pkg/hub/hub.go
package hub

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/aleka07/twinsync/pkg/model"
)

// DefaultBuffer is the number of snapshots queued per subscriber.
const DefaultBuffer = 8

var (
	subscribersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "twinsync",
		Name:      "subscribers",
		Help:      "Currently connected snapshot subscribers.",
	})
	droppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "twinsync",
		Name:      "subscriber_dropped_snapshots_total",
		Help:      "Snapshots discarded because a subscriber fell behind.",
	})
)

// Subscription receives every published snapshot on C, starting with the
// latest one at the time of subscribing.
type Subscription struct {
	ID string
	C  <-chan model.Snapshot

	ch chan model.Snapshot
}

// Hub fans snapshots out to subscribers. Publish never blocks on a slow
// subscriber: when its buffer is full the oldest queued snapshot is dropped.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]*Subscription
	buffer int
	latest atomic.Pointer[model.Snapshot]
	log    logrus.FieldLogger
}

// New returns an empty hub. A non-positive buffer means DefaultBuffer.
func New(buffer int, log logrus.FieldLogger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Hub{subs: make(map[string]*Subscription), buffer: buffer, log: log}
}

// Subscribe registers a new subscriber and queues the latest snapshot for it.
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan model.Snapshot, h.buffer)
	sub := &Subscription{ID: uuid.NewString(), C: ch, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	if s := h.latest.Load(); s != nil {
		ch <- *s
	}
	h.subs[sub.ID] = sub
	subscribersGauge.Set(float64(len(h.subs)))
	h.log.WithField("subscriber", sub.ID).Debug("subscriber joined")
	return sub
}

// Unsubscribe removes sub and closes its channel. Repeated calls are no-ops.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.ID]; !ok {
		return
	}
	delete(h.subs, sub.ID)
	close(sub.ch)
	subscribersGauge.Set(float64(len(h.subs)))
	h.log.WithField("subscriber", sub.ID).Debug("subscriber left")
}

// Publish makes s the latest snapshot and queues it for every subscriber.
func (h *Hub) Publish(s model.Snapshot) {
	h.latest.Store(&s)

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		select {
		case sub.ch <- s:
			continue
		default:
		}
		// Full: drop the oldest queued snapshot and retry once. The receiver
		// may have drained the channel meanwhile, so neither step blocks.
		select {
		case <-sub.ch:
			droppedTotal.Inc()
		default:
		}
		select {
		case sub.ch <- s:
		default:
			droppedTotal.Inc()
		}
	}
}

// Pull returns the latest snapshot, if any has been published.
func (h *Hub) Pull() (model.Snapshot, bool) {
	s := h.latest.Load()
	if s == nil {
		return model.Snapshot{}, false
	}
	return *s, true
}

// Len is the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
