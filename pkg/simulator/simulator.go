// pkg/simulator/simulator.go
package simulator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aleka07/twinsync/pkg/ditto"
	"github.com/aleka07/twinsync/pkg/model"
)

// Writer is the client surface the simulator writes readings through.
type Writer interface {
	PutProperties(ctx context.Context, id model.ThingID, feature string, r model.Reading) (ditto.Outcome, error)
}

// Ensurer makes sure the thing exists before writing.
type Ensurer interface {
	Ensure(ctx context.Context) error
}

type Config struct {
	ThingID  model.ThingID
	Feature  string
	Min, Max float64
	Interval time.Duration
	Logger   logrus.FieldLogger
	Now      func() time.Time
	Rand     *rand.Rand // nil means the global source
}

// Simulator writes a random temperature to the thing every interval.
type Simulator struct {
	w    Writer
	prov Ensurer
	cfg  Config
	log  logrus.FieldLogger
}

// New returns a simulator. prov may be nil.
func New(w Writer, prov Ensurer, cfg Config) (*Simulator, error) {
	if cfg.Min >= cfg.Max {
		return nil, fmt.Errorf("simulator: min %g must be below max %g", cfg.Min, cfg.Max)
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("simulator: interval must be positive")
	}
	if cfg.Feature == "" {
		cfg.Feature = "temp"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Simulator{w: w, prov: prov, cfg: cfg, log: log.WithField("thing_id", cfg.ThingID)}, nil
}

// Generate draws a value in [Min, Max] rounded to one decimal.
func (s *Simulator) Generate() float64 {
	var f float64
	if s.cfg.Rand != nil {
		f = s.cfg.Rand.Float64()
	} else {
		f = rand.Float64()
	}
	v := math.Round((s.cfg.Min+f*(s.cfg.Max-s.cfg.Min))*10) / 10
	return math.Min(math.Max(v, s.cfg.Min), s.cfg.Max)
}

// Step writes one reading and returns it.
func (s *Simulator) Step(ctx context.Context) (model.Reading, error) {
	r := model.Reading{
		Value:     s.Generate(),
		Unit:      model.DefaultUnit,
		Timestamp: s.cfg.Now().UTC().Format("2006-01-02T15:04:05Z"),
		Status:    model.StatusActive,
	}
	if _, err := s.w.PutProperties(ctx, s.cfg.ThingID, s.cfg.Feature, r); err != nil {
		return r, fmt.Errorf("send reading: %w", err)
	}
	return r, nil
}

// Run provisions the thing, then writes a reading every interval until ctx
// is done. Failed writes are logged; a missing thing triggers provisioning
// on the next step.
func (s *Simulator) Run(ctx context.Context) error {
	s.log.WithFields(logrus.Fields{
		"interval": s.cfg.Interval,
		"min":      s.cfg.Min,
		"max":      s.cfg.Max,
	}).Info("temperature simulator started")

	needsProvision := s.prov != nil
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if needsProvision {
			if err := s.prov.Ensure(ctx); err != nil {
				s.log.WithError(err).Warn("thing not provisioned")
			} else {
				needsProvision = false
			}
		}
		r, err := s.Step(ctx)
		switch {
		case err == nil:
			s.log.WithField("value", r.Value).Info("reading sent")
		case errors.Is(err, ditto.ErrNotFound):
			s.log.WithError(err).Error("thing or feature not found")
			needsProvision = s.prov != nil
		case ditto.IsAuthFailure(err):
			s.log.WithError(err).Error("reading rejected")
		default:
			s.log.WithError(err).Warn("reading not sent")
		}

		select {
		case <-ctx.Done():
			s.log.Info("temperature simulator stopped")
			return nil
		case <-ticker.C:
		}
	}
}
