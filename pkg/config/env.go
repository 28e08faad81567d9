// pkg/config/env.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// getEnv retrieves environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// ApplyEnv overrides cfg with any of the recognised environment variables.
func ApplyEnv(cfg *Config) error {
	cfg.Ditto.URL = getEnv("DITTO_API_URL", cfg.Ditto.URL)
	cfg.Ditto.Username = getEnv("DITTO_USERNAME", cfg.Ditto.Username)
	cfg.Ditto.Password = getEnv("DITTO_PASSWORD", cfg.Ditto.Password)
	cfg.Ditto.AdminUsername = getEnv("DITTO_ADMIN_USERNAME", cfg.Ditto.AdminUsername)
	cfg.Ditto.AdminPassword = getEnv("DITTO_ADMIN_PASSWORD", cfg.Ditto.AdminPassword)
	cfg.Thing.ID = getEnv("THING_ID", cfg.Thing.ID)
	cfg.Thing.PolicyID = getEnv("POLICY_ID", cfg.Thing.PolicyID)
	cfg.API.Port = getEnv("API_PORT", cfg.API.Port)
	cfg.Storage.Driver = getEnv("STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Storage.DSN = getEnv("DATABASE_DSN", cfg.Storage.DSN)
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", cfg.MQTT.Broker)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	var err error
	if cfg.Sync.Interval, err = envDuration("TICK_INTERVAL", cfg.Sync.Interval); err != nil {
		return err
	}
	if cfg.Sensor.Interval, err = envDuration("SENSOR_INTERVAL", cfg.Sensor.Interval); err != nil {
		return err
	}
	if cfg.Sync.HistoryCapacity, err = envInt("HISTORY_CAPACITY", cfg.Sync.HistoryCapacity); err != nil {
		return err
	}
	if cfg.Sensor.Min, err = envFloat("TEMP_MIN", cfg.Sensor.Min); err != nil {
		return err
	}
	if cfg.Sensor.Max, err = envFloat("TEMP_MAX", cfg.Sensor.Max); err != nil {
		return err
	}
	return nil
}

// envDuration accepts Go durations ("1500ms") or plain seconds ("5").
func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback, fmt.Errorf("%s: invalid number %q", key, v)
	}
	return f, nil
}
