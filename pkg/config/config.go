package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/unklstewy/flightwatch/pkg/heading"
	"github.com/unklstewy/flightwatch/pkg/provider"
	"github.com/unklstewy/flightwatch/pkg/reconcile"
)

// Config represents the complete application configuration.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Provider ProviderConfig `json:"provider"`
	Tracker  TrackerConfig  `json:"tracker"`
	Database DatabaseConfig `json:"database"`
	MQTT     MQTTConfig     `json:"mqtt"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Port is the HTTP server port (default: 8080)
	Port string `json:"port"`

	// Host is the server bind address (default: "0.0.0.0")
	Host string `json:"host"`
}

// ProviderConfig contains flight feed settings.
type ProviderConfig struct {
	// BaseURL is the zone feed endpoint
	BaseURL string `json:"base_url"`

	// AirlinesURL is the airline directory endpoint
	AirlinesURL string `json:"airlines_url"`

	// TimeoutSeconds bounds a single HTTP request
	TimeoutSeconds int `json:"timeout_seconds"`

	// RequestsPerSecond limits outbound feed requests (0 = unlimited)
	RequestsPerSecond float64 `json:"requests_per_second"`

	// Burst is the number of requests allowed at once
	Burst int `json:"burst"`

	// MaxRetries is the number of in-request retries for transient failures.
	// The tracker polls again on the next tick, so 0 is usually right.
	MaxRetries int `json:"max_retries"`

	// UserAgent is sent with every request
	UserAgent string `json:"user_agent"`
}

// TrackerConfig controls the polling loop and reconciliation.
type TrackerConfig struct {
	// Airline is an ICAO airline code, or "all" for no filter
	Airline string `json:"airline"`

	// Zone is the named region to watch (europe, northamerica, ...)
	Zone string `json:"zone"`

	// UpdateIntervalSeconds is how often to poll the feed (default: 2)
	UpdateIntervalSeconds int `json:"update_interval_seconds"`

	// FetchTimeoutSeconds bounds one fetch; 0 uses the update interval
	FetchTimeoutSeconds int `json:"fetch_timeout_seconds"`

	// HeadingPolicy is "bearing" (derived from movement) or "track" (provider heading)
	HeadingPolicy string `json:"heading_policy"`

	// OrientationCount is the number of icon orientations; must divide 360
	OrientationCount int `json:"orientation_count"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	// Enabled turns on the Postgres airline directory cache
	Enabled bool `json:"enabled"`

	// Host is the database server hostname
	Host string `json:"host"`

	// Port is the database server port
	Port int `json:"port"`

	// Database is the database name
	Database string `json:"database"`

	// Username for database authentication
	Username string `json:"username"`

	// Password for database authentication (should be loaded from environment)
	Password string `json:"password"`

	// SSLMode for PostgreSQL connections (disable, require, verify-ca, verify-full)
	SSLMode string `json:"ssl_mode"`

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int `json:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int `json:"max_idle_conns"`
}

// MQTTConfig contains settings for relaying snapshots to a broker.
type MQTTConfig struct {
	// Enabled turns on publishing
	Enabled bool `json:"enabled"`

	// Broker is the broker URL (e.g., "tcp://localhost:1883")
	Broker string `json:"broker"`

	// ClientID identifies this publisher to the broker
	ClientID string `json:"client_id"`

	// Topic is the topic prefix; snapshots go to <topic>/<zone>
	Topic string `json:"topic"`

	// QoS is the MQTT quality of service level (0, 1 or 2)
	QoS int `json:"qos"`

	// Retained marks published snapshots as retained messages
	Retained bool `json:"retained"`
}

// Load reads configuration from a JSON file.
// If the file doesn't exist, returns a default configuration.
// Fields absent from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg.applyEnvironmentOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()

	return cfg, nil
}

// Save writes the configuration to a JSON file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultAirline is the airline watched when none is configured.
const DefaultAirline = "AFR"

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "0.0.0.0",
		},
		Provider: ProviderConfig{
			BaseURL:           provider.DefaultFeedURL,
			AirlinesURL:       provider.DefaultAirlinesURL,
			TimeoutSeconds:    10,
			RequestsPerSecond: 1.0,
			Burst:             1,
			MaxRetries:        0,
			UserAgent:         provider.DefaultUserAgent,
		},
		Tracker: TrackerConfig{
			Airline:               DefaultAirline,
			Zone:                  "europe",
			UpdateIntervalSeconds: 2,
			FetchTimeoutSeconds:   0, // same as the update interval
			HeadingPolicy:         reconcile.PolicyBearing.String(),
			OrientationCount:      heading.DefaultCount,
		},
		Database: DatabaseConfig{
			Enabled:      false,
			Host:         "localhost",
			Port:         5432,
			Database:     "flightwatch",
			Username:     "flightwatch",
			SSLMode:      "disable",
			MaxOpenConns: 10,
			MaxIdleConns: 2,
		},
		MQTT: MQTTConfig{
			Enabled:  false,
			Broker:   "tcp://localhost:1883",
			ClientID: "flightwatch",
			Topic:    "flightwatch/flights",
			QoS:      0,
			Retained: true,
		},
	}
}

// UpdateInterval returns the polling interval as a duration.
func (cfg *TrackerConfig) UpdateInterval() time.Duration {
	return time.Duration(cfg.UpdateIntervalSeconds) * time.Second
}

// FetchTimeout returns the per-cycle fetch timeout, defaulting to the update interval.
func (cfg *TrackerConfig) FetchTimeout() time.Duration {
	if cfg.FetchTimeoutSeconds > 0 {
		return time.Duration(cfg.FetchTimeoutSeconds) * time.Second
	}
	return cfg.UpdateInterval()
}

// Timeout returns the HTTP request timeout as a duration.
func (cfg *ProviderConfig) Timeout() time.Duration {
	return time.Duration(cfg.TimeoutSeconds) * time.Second
}

// Validate checks the configuration for values the services cannot run with.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Provider.TimeoutSeconds < 0 {
		errs = append(errs, errors.New("provider.timeout_seconds must not be negative"))
	}
	if c.Provider.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("provider.requests_per_second must not be negative"))
	}
	if c.Provider.MaxRetries < 0 {
		errs = append(errs, errors.New("provider.max_retries must not be negative"))
	}

	if _, err := provider.LookupZone(c.Tracker.Zone); err != nil {
		errs = append(errs, fmt.Errorf("tracker.zone: %w", err))
	}
	if c.Tracker.UpdateIntervalSeconds <= 0 {
		errs = append(errs, errors.New("tracker.update_interval_seconds must be positive"))
	}
	if c.Tracker.FetchTimeoutSeconds < 0 {
		errs = append(errs, errors.New("tracker.fetch_timeout_seconds must not be negative"))
	}
	if _, err := reconcile.ParsePolicy(c.Tracker.HeadingPolicy); err != nil {
		errs = append(errs, fmt.Errorf("tracker.heading_policy: %w", err))
	}
	if _, err := heading.New(c.Tracker.OrientationCount); err != nil {
		errs = append(errs, fmt.Errorf("tracker.orientation_count: %w", err))
	}

	if c.Database.Enabled && c.Database.Host == "" {
		errs = append(errs, errors.New("database.host is required when the database is enabled"))
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			errs = append(errs, errors.New("mqtt.broker is required when mqtt is enabled"))
		}
		if strings.TrimSpace(c.MQTT.Topic) == "" {
			errs = append(errs, errors.New("mqtt.topic is required when mqtt is enabled"))
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS))
		}
	}

	return errors.Join(errs...)
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
// This allows sensitive data like passwords to be kept out of config files.
func (c *Config) applyEnvironmentOverrides() {
	if port := os.Getenv("FLIGHTWATCH_PORT"); port != "" {
		c.Server.Port = port
	}
	if airline := os.Getenv("FLIGHTWATCH_AIRLINE"); airline != "" {
		c.Tracker.Airline = airline
	}
	if zone := os.Getenv("FLIGHTWATCH_ZONE"); zone != "" {
		c.Tracker.Zone = zone
	}
	if dbPassword := os.Getenv("FLIGHTWATCH_DB_PASSWORD"); dbPassword != "" {
		c.Database.Password = dbPassword
	}
	if broker := os.Getenv("FLIGHTWATCH_MQTT_BROKER"); broker != "" {
		c.MQTT.Broker = broker
	}
}
