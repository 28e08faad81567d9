// cmd/dashboard/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/aleka07/twinsync/pkg/api"
	"github.com/aleka07/twinsync/pkg/bridge"
	"github.com/aleka07/twinsync/pkg/config"
	"github.com/aleka07/twinsync/pkg/ditto"
	"github.com/aleka07/twinsync/pkg/health"
	"github.com/aleka07/twinsync/pkg/history"
	"github.com/aleka07/twinsync/pkg/hub"
	"github.com/aleka07/twinsync/pkg/model"
	"github.com/aleka07/twinsync/pkg/monitor"
	"github.com/aleka07/twinsync/pkg/persistence"
	"github.com/aleka07/twinsync/pkg/provision"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (default $TWINSYNC_CONFIG)")
	flag.Parse()

	cfg, err := config.Resolve(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := cfg.Log.NewLogger(os.Stdout)
	log.WithFields(logrus.Fields{"ditto": cfg.Ditto.URL, "thing_id": cfg.Thing.ID}).Info("starting twin dashboard")

	ln, err := net.Listen("tcp", cfg.API.Addr())
	if err != nil {
		log.WithError(err).Fatal("listen")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, ln); err != nil {
		log.WithError(err).Fatal("dashboard stopped with error")
	}
	log.Info("application shutdown finished")
}

// run serves until ctx is cancelled, then shuts everything down.
func run(ctx context.Context, cfg config.Config, log *logrus.Logger, ln net.Listener) error {
	thingID := model.ThingID(cfg.Thing.ID)

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
	policyClient := client
	if cfg.Ditto.AdminUsername != "" {
		policyClient = client.WithCredentials(cfg.Ditto.AdminUsername, cfg.Ditto.AdminPassword)
	}
	prov := provision.New(client, policyClient, provision.Config{
		ThingID:  thingID,
		PolicyID: cfg.Thing.PolicyID,
		Subject:  cfg.Ditto.Username,
		// The loop retries on its next tick; a longer policy would hold back
		// the first snapshot while the service is down.
		Retry:  provision.SingleAttempt(),
		Logger: log,
	})

	agg, err := health.NewAggregator(health.DefaultComponents())
	if err != nil {
		return err
	}

	var store persistence.ReadingStore
	if cfg.Storage.Driver != "" {
		initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		store, err = persistence.Open(initCtx, cfg.Storage.Driver, cfg.Storage.DSN, log)
		cancel()
		if err != nil {
			return err
		}
		defer store.Close()
	}

	h := hub.New(hub.DefaultBuffer, log)
	loop := monitor.New(client, prov, history.New(cfg.Sync.HistoryCapacity), agg, h, monitor.Config{
		ThingID:  thingID,
		Feature:  cfg.Thing.Feature,
		Interval: cfg.Sync.Interval,
		Tail:     cfg.Sync.BroadcastTail,
		Store:    store,
		Logger:   log,
	})
	if err := loop.Restore(ctx); err != nil {
		log.WithError(err).Warn("starting with empty history")
	}

	server := &http.Server{
		Handler:      api.NewAPI(h, log).Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error {
		log.WithField("addr", ln.Addr().String()).Info("server listening")
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, starting graceful shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("graceful server shutdown failed")
			return server.Close()
		}
		return nil
	})

	if cfg.MQTT.Broker != "" {
		pub, err := bridge.Dial(cfg.MQTT.Broker, cfg.MQTT.ClientID, log)
		if err != nil {
			log.WithError(err).Warn("mqtt bridge disabled")
		} else {
			defer pub.Close()
			b := bridge.New(h, pub, cfg.MQTT.TopicPrefix, thingID, log)
			g.Go(func() error { return b.Run(gctx) })
		}
	}

	return g.Wait()
}
