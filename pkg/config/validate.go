// pkg/config/validate.go
package config

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aleka07/twinsync/pkg/model"
)

const maxRequestTimeout = 10 * time.Second

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	// ---- twin service ----
	u, err := url.Parse(cfg.Ditto.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("ditto.url: %q is not an absolute URL", cfg.Ditto.URL)
	}
	if cfg.Ditto.Username == "" {
		return fmt.Errorf("ditto.username must be set")
	}
	if (cfg.Ditto.AdminUsername == "") != (cfg.Ditto.AdminPassword == "") {
		return fmt.Errorf("ditto.admin_username and ditto.admin_password must be set together")
	}
	for name, d := range map[string]time.Duration{
		"ditto.read_timeout":  cfg.Ditto.ReadTimeout,
		"ditto.write_timeout": cfg.Ditto.WriteTimeout,
	} {
		if d <= 0 || d > maxRequestTimeout {
			return fmt.Errorf("%s: %s must be in (0, %s]", name, d, maxRequestTimeout)
		}
	}

	// ---- thing ----
	if _, err := model.ParseThingID(cfg.Thing.ID); err != nil {
		return fmt.Errorf("thing.id: %w", err)
	}
	if cfg.Thing.PolicyID == "" {
		return fmt.Errorf("thing.policy_id must be set")
	}
	if cfg.Thing.Feature == "" {
		return fmt.Errorf("thing.feature must be set")
	}

	// ---- sync ----
	if cfg.Sync.Interval < time.Second || cfg.Sync.Interval > 5*time.Second {
		return fmt.Errorf("sync.interval: %s must be between 1s and 5s", cfg.Sync.Interval)
	}
	if cfg.Sync.HistoryCapacity < 1 {
		return fmt.Errorf("sync.history_capacity must be positive, got %d", cfg.Sync.HistoryCapacity)
	}
	if cfg.Sync.BroadcastTail < 1 || cfg.Sync.BroadcastTail > cfg.Sync.HistoryCapacity {
		return fmt.Errorf("sync.broadcast_tail: %d must be between 1 and history_capacity (%d)",
			cfg.Sync.BroadcastTail, cfg.Sync.HistoryCapacity)
	}
	if cfg.Retry.Attempts < 1 {
		return fmt.Errorf("retry.attempts must be at least 1, got %d", cfg.Retry.Attempts)
	}
	if cfg.Retry.Delay < 0 {
		return fmt.Errorf("retry.delay must not be negative")
	}

	// ---- sensor ----
	if cfg.Sensor.Min >= cfg.Sensor.Max {
		return fmt.Errorf("sensor: min (%g) must be below max (%g)", cfg.Sensor.Min, cfg.Sensor.Max)
	}
	if cfg.Sensor.Interval <= 0 {
		return fmt.Errorf("sensor.interval must be positive")
	}

	// ---- surfaces ----
	if p, err := strconv.Atoi(cfg.API.Port); err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("api.port: %q is not a valid port", cfg.API.Port)
	}
	switch cfg.Storage.Driver {
	case "":
	case "postgres", "sqlite":
		if cfg.Storage.DSN == "" && cfg.Storage.Driver == "postgres" {
			return fmt.Errorf("storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver)
	}
	if cfg.MQTT.Broker != "" {
		if _, err := url.Parse(cfg.MQTT.Broker); err != nil {
			return fmt.Errorf("mqtt.broker: %w", err)
		}
		if cfg.MQTT.TopicPrefix == "" {
			return fmt.Errorf("mqtt.topic_prefix must be set when a broker is configured")
		}
	}

	// ---- logging ----
	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return fmt.Errorf("log.format: %q must be text or json", cfg.Log.Format)
	}
	return nil
}
