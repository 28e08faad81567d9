// pkg/monitor/loop.go
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aleka07/twinsync/pkg/ditto"
	"github.com/aleka07/twinsync/pkg/health"
	"github.com/aleka07/twinsync/pkg/history"
	"github.com/aleka07/twinsync/pkg/model"
	"github.com/aleka07/twinsync/pkg/persistence"
)

// Phase is the step a sync cycle is in.
type Phase int32

const (
	Idle Phase = iota
	Provisioning
	Fetching
	Aggregating
	Publishing
)

func (p Phase) String() string {
	switch p {
	case Provisioning:
		return "provisioning"
	case Fetching:
		return "fetching"
	case Aggregating:
		return "aggregating"
	case Publishing:
		return "publishing"
	default:
		return "idle"
	}
}

const (
	DefaultInterval = time.Second
	MinInterval     = time.Second
	MaxInterval     = 5 * time.Second
	DefaultTail     = 20
	DefaultFeature  = "temp"

	storeTimeout = 2 * time.Second
)

// Remote is the read side of the twin service client.
type Remote interface {
	GetThing(ctx context.Context, id model.ThingID) (model.Thing, error)
	GetProperties(ctx context.Context, id model.ThingID, feature string) (model.Reading, error)
	CheckHealth(ctx context.Context) bool
}

// Ensurer makes sure the monitored thing exists.
type Ensurer interface {
	Ensure(ctx context.Context) error
}

// Publisher receives every built snapshot.
type Publisher interface {
	Publish(s model.Snapshot)
}

// Config tunes the loop. Zero values take the defaults.
type Config struct {
	ThingID  model.ThingID
	Feature  string
	Interval time.Duration // clamped to [MinInterval, MaxInterval]
	Tail     int           // history entries carried by each snapshot
	Store    persistence.ReadingStore
	Logger   logrus.FieldLogger
	Now      func() time.Time
}

// Loop reconciles the remote thing into snapshots, one tick at a time.
// Only the loop goroutine mutates its state; ticks never overlap.
type Loop struct {
	remote    Remote
	prov      Ensurer
	ring      *history.Ring
	agg       *health.Aggregator
	pub       Publisher
	cfg       Config
	log       logrus.FieldLogger
	phase     atomic.Int32
	ready     bool // provisioned; cleared when the thing disappears
	lastThing *model.Thing
	lastRead  *model.Reading
}

// New wires a loop. prov may be nil when provisioning is handled elsewhere.
func New(remote Remote, prov Ensurer, ring *history.Ring, agg *health.Aggregator, pub Publisher, cfg Config) *Loop {
	if cfg.Feature == "" {
		cfg.Feature = DefaultFeature
	}
	cfg.Interval = ClampInterval(cfg.Interval)
	if cfg.Tail <= 0 {
		cfg.Tail = DefaultTail
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Loop{
		remote: remote,
		prov:   prov,
		ring:   ring,
		agg:    agg,
		pub:    pub,
		cfg:    cfg,
		log:    log.WithField("thing_id", cfg.ThingID),
	}
}

// ClampInterval bounds a tick interval; zero means DefaultInterval.
func ClampInterval(d time.Duration) time.Duration {
	switch {
	case d == 0:
		return DefaultInterval
	case d < MinInterval:
		return MinInterval
	case d > MaxInterval:
		return MaxInterval
	}
	return d
}

// Phase reports the current step, for logs and diagnostics.
func (l *Loop) Phase() Phase { return Phase(l.phase.Load()) }

func (l *Loop) enter(p Phase) {
	l.phase.Store(int32(p))
	l.log.WithField("phase", p).Trace("sync phase")
}

// Restore seeds the history ring from the durable store, if one is configured.
func (l *Loop) Restore(ctx context.Context) error {
	if l.cfg.Store == nil {
		return nil
	}
	entries, err := l.cfg.Store.RecentReadings(ctx, l.cfg.ThingID.String(), l.ring.Cap())
	if err != nil {
		return fmt.Errorf("restore history: %w", err)
	}
	l.ring.Seed(entries)
	historyLength.Set(float64(l.ring.Len()))
	l.log.WithField("entries", len(entries)).Info("history restored")
	return nil
}

// Run ticks every interval until ctx is done. It only returns on cancellation.
func (l *Loop) Run(ctx context.Context) error {
	l.log.WithField("interval", l.cfg.Interval).Info("sync loop started")
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	for {
		l.Tick(ctx)
		select {
		case <-ctx.Done():
			l.log.Info("sync loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick runs exactly one cycle and returns the snapshot it published.
func (l *Loop) Tick(ctx context.Context) model.Snapshot {
	start := time.Now()
	defer func() {
		tickDuration.Observe(time.Since(start).Seconds())
		l.enter(Idle)
	}()

	if l.prov != nil && !l.ready {
		l.enter(Provisioning)
		if err := l.prov.Ensure(ctx); err != nil {
			l.log.WithError(err).Warn("thing not provisioned, will retry next tick")
		} else {
			l.ready = true
		}
	}

	l.enter(Fetching)
	thing, thingErr := l.remote.GetThing(ctx, l.cfg.ThingID)
	if thingErr != nil {
		l.logFetch("thing", thingErr)
	}
	reading, readErr := l.remote.GetProperties(ctx, l.cfg.ThingID, l.cfg.Feature)
	if readErr != nil {
		l.logFetch("reading", readErr)
	}
	if errors.Is(thingErr, ditto.ErrNotFound) {
		l.ready = false
	}

	l.enter(Aggregating)
	now := l.cfg.Now()
	hs := l.agg.Aggregate(l.remote.CheckHealth(ctx), now)

	l.enter(Publishing)
	var snap model.Snapshot
	switch {
	case thingErr != nil && readErr != nil:
		snap = l.errorSnapshot(hs, now, fmt.Errorf("fetch failed: %w", errors.Join(thingErr, readErr)))
		ticksTotal.WithLabelValues("error").Inc()
	default:
		var tp *model.Thing
		if thingErr == nil {
			c := thing.Clone()
			tp = &c
			l.lastThing = tp
		}
		var rp *model.Reading
		if readErr == nil {
			rp = &reading
			l.lastRead = rp
			l.record(ctx, model.NewHistoryEntry(reading, now))
		}
		snap = l.build(tp, rp, hs, now)
		if thingErr != nil || readErr != nil {
			ticksTotal.WithLabelValues("partial").Inc()
		} else {
			ticksTotal.WithLabelValues("ok").Inc()
		}
	}
	l.pub.Publish(snap)
	return snap
}

func (l *Loop) logFetch(what string, err error) {
	entry := l.log.WithField("fetch", what).WithError(err)
	if ditto.IsAuthFailure(err) {
		entry.Error("fetch rejected by twin service")
		return
	}
	entry.Warn("fetch failed")
}

// record appends to the ring and writes through to the store.
func (l *Loop) record(ctx context.Context, e model.HistoryEntry) {
	l.ring.Append(e)
	historyLength.Set(float64(l.ring.Len()))
	if l.cfg.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := l.cfg.Store.WriteReading(ctx, l.cfg.ThingID.String(), e); err != nil {
		if errors.Is(err, persistence.ErrConflict) {
			l.log.WithError(err).Debug("reading already stored")
			return
		}
		l.log.WithError(err).Warn("could not persist reading")
	}
}

func (l *Loop) build(thing *model.Thing, reading *model.Reading, hs model.HealthSnapshot, at time.Time) model.Snapshot {
	snap := model.Snapshot{
		Health:     hs,
		Historical: l.ring.Snapshot(l.cfg.Tail),
		ObservedAt: at,
	}
	if thing != nil {
		c := thing.Clone()
		snap.Thing = &c
		snap.ThingID = c.ThingID
		snap.PolicyID = c.PolicyID
		snap.Attributes = c.Attributes
	}
	if reading != nil {
		r := *reading
		snap.Features.Temp.Properties = &r
	}
	return snap
}

// errorSnapshot flags the tick as failed but keeps the last known state so
// subscribers keep rendering it.
func (l *Loop) errorSnapshot(hs model.HealthSnapshot, at time.Time, err error) model.Snapshot {
	snap := l.build(l.lastThing, l.lastRead, hs, at)
	snap.Error = true
	snap.Message = err.Error()
	return snap
}
