// cmd/bootstrap/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aleka07/twinsync/pkg/config"
	"github.com/aleka07/twinsync/pkg/ditto"
	"github.com/aleka07/twinsync/pkg/model"
	"github.com/aleka07/twinsync/pkg/provision"
)

// waitPolicy is how long bootstrap waits for the twin service to come up.
var waitPolicy = provision.RetryPolicy{MaxAttempts: 30, Delay: 2 * time.Second}

var errNotReady = errors.New("twin service not ready")

func main() {
	configPath := flag.String("config", "", "path to YAML config (default $TWINSYNC_CONFIG)")
	flag.Parse()

	cfg, err := config.Resolve(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := cfg.Log.NewLogger(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := bootstrap(ctx, cfg, log, waitPolicy); err != nil {
		log.WithError(err).Error("bootstrap failed")
		os.Exit(1)
	}
	log.Info("bootstrap completed successfully")
}

// bootstrap waits for the service, provisions policy and thing, and checks
// the thing can be read back.
func bootstrap(ctx context.Context, cfg config.Config, log logrus.FieldLogger, wait provision.RetryPolicy) error {
	client, err := ditto.New(ditto.Config{
		BaseURL:      cfg.Ditto.URL,
		Username:     cfg.Ditto.Username,
		Password:     cfg.Ditto.Password,
		ReadTimeout:  cfg.Ditto.ReadTimeout,
		WriteTimeout: cfg.Ditto.WriteTimeout,
		Logger:       log,
	})
	if err != nil {
		return err
	}

	log.Info("waiting for twin service")
	if err := wait.Do(ctx, log, "wait-for-service", func(int) error {
		if !client.CheckHealth(ctx) {
			return errNotReady
		}
		return nil
	}); err != nil {
		return fmt.Errorf("service never became healthy: %w", err)
	}

	policyClient := client
	if cfg.Ditto.AdminUsername != "" {
		policyClient = client.WithCredentials(cfg.Ditto.AdminUsername, cfg.Ditto.AdminPassword)
	}
	thingID := model.ThingID(cfg.Thing.ID)
	prov := provision.New(client, policyClient, provision.Config{
		ThingID:  thingID,
		PolicyID: cfg.Thing.PolicyID,
		Subject:  cfg.Ditto.Username,
		Retry:    provision.RetryPolicy{MaxAttempts: cfg.Retry.Attempts, Delay: cfg.Retry.Delay},
		Logger:   log,
	})
	if err := prov.Ensure(ctx); err != nil {
		return err
	}

	thing, err := client.GetThing(ctx, thingID)
	if err != nil {
		return fmt.Errorf("verify thing: %w", err)
	}
	entry := log.WithField("thing_id", thing.ThingID)
	if temp, ok := thing.Features[cfg.Thing.Feature]; ok {
		entry = entry.WithField("value", temp.Properties["value"])
	}
	entry.Info("thing verified")
	return nil
}
