// pkg/provision/provision.go
package provision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aleka07/twinsync/pkg/ditto"
	"github.com/aleka07/twinsync/pkg/model"
)

// ErrFailed wraps the reason provisioning gave up.
var ErrFailed = errors.New("provisioning failed")

// DefaultDefinition is the definition of a freshly created sensor thing.
const DefaultDefinition = "demo:sensor:1.0.0"

// ThingAPI is the part of the remote client the provisioner reads and creates things with.
type ThingAPI interface {
	GetThing(ctx context.Context, id model.ThingID) (model.Thing, error)
	PutThing(ctx context.Context, id model.ThingID, body any) (ditto.Outcome, error)
}

// PolicyAPI creates policies. It may authenticate differently from ThingAPI.
type PolicyAPI interface {
	PutPolicy(ctx context.Context, id string, body any) (ditto.Outcome, error)
}

// Config describes what to provision.
type Config struct {
	ThingID  model.ThingID
	PolicyID string
	// Subject is the user granted access by the policy, as "nginx:{Subject}".
	Subject string
	Retry   RetryPolicy
	Logger  logrus.FieldLogger
	Now     func() time.Time
}

// Provisioner makes sure the thing and its policy exist. It never overwrites
// either one.
type Provisioner struct {
	things   ThingAPI
	policies PolicyAPI
	cfg      Config
	log      logrus.FieldLogger
}

// New returns a provisioner. A nil policies falls back to things when it can
// also write policies.
func New(things ThingAPI, policies PolicyAPI, cfg Config) *Provisioner {
	if policies == nil {
		policies, _ = things.(PolicyAPI)
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.Retry.Retryable == nil {
		cfg.Retry.Retryable = ditto.IsRetryable
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Provisioner{
		things:   things,
		policies: policies,
		cfg:      cfg,
		log:      log.WithField("thing_id", cfg.ThingID),
	}
}

// Ensure returns nil once the thing exists, creating the policy and then the
// thing if it is missing. Auth failures are returned at once; transport
// failures are retried per the configured policy. Any error wraps ErrFailed.
func (p *Provisioner) Ensure(ctx context.Context) error {
	err := p.cfg.Retry.Do(ctx, p.log, "provision", func(attempt int) error {
		return p.ensureOnce(ctx)
	})
	if err != nil {
		if ditto.IsAuthFailure(err) {
			p.log.WithError(err).Error("provisioning rejected by twin service")
		}
		return fmt.Errorf("%w: %w", ErrFailed, err)
	}
	return nil
}

func (p *Provisioner) ensureOnce(ctx context.Context) error {
	_, err := p.things.GetThing(ctx, p.cfg.ThingID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ditto.ErrNotFound) {
		return err
	}

	p.log.Info("thing not found, creating policy and thing")
	if p.policies == nil {
		return errors.New("no policy writer configured")
	}
	if err := p.Validate(); err != nil {
		return err
	}
	out, err := p.policies.PutPolicy(ctx, p.cfg.PolicyID, p.PolicyDocument())
	if err != nil {
		return fmt.Errorf("create policy %s: %w", p.cfg.PolicyID, err)
	}
	p.log.WithFields(logrus.Fields{"policy_id": p.cfg.PolicyID, "outcome": out}).Info("policy ready")

	out, err = p.things.PutThing(ctx, p.cfg.ThingID, p.ThingDocument())
	if err != nil {
		return fmt.Errorf("create thing: %w", err)
	}
	p.log.WithField("outcome", out).Info("thing ready")
	return nil
}

// ThingDocument is the body of a newly created thing.
func (p *Provisioner) ThingDocument() map[string]any {
	r := model.Reading{
		Value:     25.0,
		Unit:      model.DefaultUnit,
		Timestamp: p.cfg.Now().UTC().Format("2006-01-02T15:04:05Z"),
		Status:    model.StatusActive,
	}
	doc := map[string]any{
		"definition": DefaultDefinition,
		"attributes": map[string]any{"name": "Temperature Sensor"},
		"features": map[string]any{
			"temp": map[string]any{"properties": r.Properties()},
		},
	}
	if p.cfg.PolicyID != "" {
		doc["policyId"] = p.cfg.PolicyID
	}
	return doc
}

// PolicyDocument grants the configured subject full access to the thing and
// the policy itself.
func (p *Provisioner) PolicyDocument() map[string]any {
	grant := func() map[string]any {
		return map[string]any{
			"grant":  []string{"READ", "WRITE", "ADMINISTRATE"},
			"revoke": []string{},
		}
	}
	return map[string]any{
		"entries": map[string]any{
			"ditto": map[string]any{
				"subjects": map[string]any{
					"nginx:" + p.cfg.Subject: map[string]any{"type": "user"},
				},
				"resources": map[string]any{
					"thing:/":  grant(),
					"policy:/": grant(),
				},
			},
		},
	}
}
