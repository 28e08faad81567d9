// cmd/sensor/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/aleka07/twinsync/pkg/config"
	"github.com/aleka07/twinsync/pkg/ditto"
	"github.com/aleka07/twinsync/pkg/model"
	"github.com/aleka07/twinsync/pkg/provision"
	"github.com/aleka07/twinsync/pkg/simulator"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (default $TWINSYNC_CONFIG)")
	metricsAddr := flag.String("metrics-addr", "", "serve /metrics on this address, e.g. :9102")
	flag.Parse()

	cfg, err := config.Resolve(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := cfg.Log.NewLogger(os.Stdout)

	client, err := ditto.New(ditto.Config{
		BaseURL:      cfg.Ditto.URL,
		Username:     cfg.Ditto.Username,
		Password:     cfg.Ditto.Password,
		ReadTimeout:  cfg.Ditto.ReadTimeout,
		WriteTimeout: cfg.Ditto.WriteTimeout,
		Logger:       log,
	})
	if err != nil {
		log.WithError(err).Fatal("twin service client")
	}
	thingID := model.ThingID(cfg.Thing.ID)
	prov := provision.New(client, nil, provision.Config{
		ThingID:  thingID,
		PolicyID: cfg.Thing.PolicyID,
		Subject:  cfg.Ditto.Username,
		Retry:    provision.RetryPolicy{MaxAttempts: cfg.Retry.Attempts, Delay: cfg.Retry.Delay},
		Logger:   log,
	})
	sim, err := simulator.New(client, prov, simulator.Config{
		ThingID:  thingID,
		Feature:  cfg.Thing.Feature,
		Min:      cfg.Sensor.Min,
		Max:      cfg.Sensor.Max,
		Interval: cfg.Sensor.Interval,
		Logger:   log,
	})
	if err != nil {
		log.WithError(err).Fatal("simulator")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sim.Run(gctx) })
	if *metricsAddr != "" {
		server := &http.Server{Addr: *metricsAddr, Handler: promhttp.Handler(), ReadTimeout: 5 * time.Second}
		g.Go(func() error {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}
	if err := g.Wait(); err != nil {
		log.WithError(err).Fatal("sensor stopped with error")
	}
}
