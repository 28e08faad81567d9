// pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Ditto   DittoConfig   `yaml:"ditto"`
	Thing   ThingConfig   `yaml:"thing"`
	Sync    SyncConfig    `yaml:"sync"`
	Retry   RetryConfig   `yaml:"retry"`
	Sensor  SensorConfig  `yaml:"sensor"`
	API     APIConfig     `yaml:"api"`
	Storage StorageConfig `yaml:"storage"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Log     LogConfig     `yaml:"log"`
}

// ---- TWIN SERVICE ----

type DittoConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Optional account for policy writes. Empty means Username/Password.
	AdminUsername string `yaml:"admin_username"`
	AdminPassword string `yaml:"admin_password"`

	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// ---- MONITORED THING ----

type ThingConfig struct {
	ID       string `yaml:"id"`
	PolicyID string `yaml:"policy_id"`
	Feature  string `yaml:"feature"`
}

// ---- SYNC LOOP ----

type SyncConfig struct {
	Interval        time.Duration `yaml:"interval"`
	HistoryCapacity int           `yaml:"history_capacity"`
	BroadcastTail   int           `yaml:"broadcast_tail"`
}

type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
}

// ---- SIMULATOR ----

type SensorConfig struct {
	Min      float64       `yaml:"min"`
	Max      float64       `yaml:"max"`
	Interval time.Duration `yaml:"interval"`
}

// ---- OUTER SURFACES ----

type APIConfig struct {
	Port string `yaml:"port"`
}

// Addr is the listen address for the dashboard server.
func (c APIConfig) Addr() string { return ":" + c.Port }

type StorageConfig struct {
	Driver string `yaml:"driver"` // "", "postgres" or "sqlite"
	DSN    string `yaml:"dsn"`
}

type MQTTConfig struct {
	Broker      string `yaml:"broker"` // e.g. tcp://mosquitto:1883; empty disables the bridge
	TopicPrefix string `yaml:"topic_prefix"`
	ClientID    string `yaml:"client_id"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	return Config{
		Ditto: DittoConfig{
			URL:          "http://nginx:80",
			Username:     "ditto",
			Password:     "ditto",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Thing: ThingConfig{
			ID:       "demo:sensor-1",
			PolicyID: "demo:sensor-policy",
			Feature:  "temp",
		},
		Sync: SyncConfig{
			Interval:        time.Second,
			HistoryCapacity: 100,
			BroadcastTail:   20,
		},
		Retry:  RetryConfig{Attempts: 5, Delay: 5 * time.Second},
		Sensor: SensorConfig{Min: 20, Max: 40, Interval: 5 * time.Second},
		API:    APIConfig{Port: "8080"},
		MQTT:   MQTTConfig{TopicPrefix: "twinsync"},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the YAML file at path over the defaults. An empty path or a
// missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve loads the file, applies environment overrides and validates.
func Resolve(path string) (Config, error) {
	if path == "" {
		path = os.Getenv("TWINSYNC_CONFIG")
	}
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := Validate(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
