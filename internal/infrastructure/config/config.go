package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the VLX bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	MQTT          MQTTConfig          `yaml:"mqtt"`
	Gateway       GatewayConfig       `yaml:"gateway"`
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant"`
	Restart       RestartConfig       `yaml:"restart"`
	Database      DatabaseConfig      `yaml:"database"`
	InfluxDB      InfluxDBConfig      `yaml:"influxdb"`
	Status        StatusConfig        `yaml:"status"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig `yaml:"broker"`
	Auth      MQTTAuthConfig   `yaml:"auth"`
	QoS       int              `yaml:"qos"`
	Reconnect RetryConfig      `yaml:"reconnect"`

	// StatusTopic carries the bridge's own online/offline status and LWT.
	StatusTopic string `yaml:"status_topic"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// RetryConfig bounds a connection-attempt sequence.
// Delays are in seconds; MaxAttempts must be positive.
type RetryConfig struct {
	InitialDelay int     `yaml:"initial_delay"`
	MaxDelay     int     `yaml:"max_delay"`
	Multiplier   float64 `yaml:"multiplier"`
	MaxAttempts  int     `yaml:"max_attempts"`
}

// GatewayConfig contains settings for the KLF-200 gateway driver.
type GatewayConfig struct {
	// Driver selects the gateway implementation. Only "sim" is built in.
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Password string `yaml:"password"`

	// CallTimeout bounds how long a command handler waits for a gateway
	// operation to complete, in seconds. 0 waits indefinitely.
	CallTimeout int `yaml:"call_timeout"`

	// MaxInFlight is the number of command handlers admitted to the
	// gateway queue at once.
	MaxInFlight int `yaml:"max_in_flight"`

	// StateUpdateInterval is how often, in seconds, the gateway is pinged
	// and every cover refreshed. Each answer counts as gateway contact for
	// the health check. 0 disables.
	StateUpdateInterval int `yaml:"state_update_interval"`

	Retry RetryConfig `yaml:"retry"`
	Sim   SimConfig   `yaml:"sim"`
}

// SimConfig describes the simulated gateway's nodes.
type SimConfig struct {
	StepIntervalMS int             `yaml:"step_interval_ms"`
	StepPercent    int             `yaml:"step_percent"`
	Nodes          []SimNodeConfig `yaml:"nodes"`
}

// SimNodeConfig is one simulated node.
type SimNodeConfig struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Position int    `yaml:"position"`
}

// HomeAssistantConfig controls entity naming and discovery.
type HomeAssistantConfig struct {
	DiscoveryPrefix string `yaml:"discovery_prefix"`

	// Prefix is prepended to every entity id in topics.
	Prefix string `yaml:"prefix"`

	// InvertAwning reports awnings with extended = closed.
	InvertAwning bool `yaml:"invert_awning"`

	// KeepOpenLimit is the highest device position allowed while a
	// node's keep-open switch is on (0 = fully open, 100 = closed).
	KeepOpenLimit int `yaml:"keep_open_limit"`
}

// RestartConfig controls the health supervisor.
type RestartConfig struct {
	// RestartInterval forces a restart every N hours. 0 disables.
	RestartInterval int `yaml:"restart_interval"`

	// HealthCheckInterval is the health check period in seconds. 0 disables.
	// It relies on gateway.state_update_interval for contact while the
	// covers are idle.
	HealthCheckInterval int `yaml:"health_check_interval"`

	RestartOnError bool `yaml:"restart_on_error"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// StatusConfig contains the status/metrics HTTP server settings.
type StatusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`

	// GatewayDebug enables debug output from the gateway driver only.
	GatewayDebug bool `yaml:"gateway_debug"`
}

// FileLoggingConfig contains file-based logging settings.
// MaxSize is in megabytes, MaxAge in days.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: VLXBRIDGE_SECTION_KEY
// For example: VLXBRIDGE_MQTT_HOST, VLXBRIDGE_GATEWAY_PASSWORD
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			QoS: 1,
			Reconnect: RetryConfig{
				InitialDelay: 10,
				MaxDelay:     120,
				Multiplier:   2,
				MaxAttempts:  10,
			},
			StatusTopic: "vlxbridge/status",
		},
		Gateway: GatewayConfig{
			Driver:      "sim",
			CallTimeout:         30,
			MaxInFlight:         1,
			StateUpdateInterval: 5,
			Retry: RetryConfig{
				InitialDelay: 5,
				MaxDelay:     60,
				Multiplier:   2,
				MaxAttempts:  5,
			},
			Sim: SimConfig{
				StepIntervalMS: 250,
				StepPercent:    5,
			},
		},
		HomeAssistant: HomeAssistantConfig{
			DiscoveryPrefix: "homeassistant",
		},
		Database: DatabaseConfig{
			Path:        "./data/vlxbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Status: StatusConfig{
			Host: "127.0.0.1",
			Port: 9180,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
			File: FileLoggingConfig{
				MaxSize:    10,
				MaxBackups: 5,
				MaxAge:     30,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: VLXBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("VLXBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("VLXBRIDGE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("VLXBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("VLXBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Gateway
	if v := os.Getenv("VLXBRIDGE_GATEWAY_HOST"); v != "" {
		cfg.Gateway.Host = v
	}
	if v := os.Getenv("VLXBRIDGE_GATEWAY_PASSWORD"); v != "" {
		cfg.Gateway.Password = v
	}

	// Storage
	if v := os.Getenv("VLXBRIDGE_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("VLXBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("VLXBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.StatusTopic == "" || strings.ContainsAny(c.MQTT.StatusTopic, "+#") {
		errs = append(errs, "mqtt.status_topic must be a non-empty topic without wildcards")
	}
	errs = append(errs, c.MQTT.Reconnect.validate("mqtt.reconnect")...)

	// Gateway validation
	if c.Gateway.Driver != "sim" {
		errs = append(errs, fmt.Sprintf("gateway.driver %q is not supported", c.Gateway.Driver))
	}
	if c.Gateway.CallTimeout < 0 {
		errs = append(errs, "gateway.call_timeout must not be negative")
	}
	if c.Gateway.MaxInFlight < 1 {
		errs = append(errs, "gateway.max_in_flight must be at least 1")
	}
	if c.Gateway.StateUpdateInterval < 0 {
		errs = append(errs, "gateway.state_update_interval must not be negative")
	}
	errs = append(errs, c.Gateway.Retry.validate("gateway.retry")...)

	// Home Assistant validation
	if c.HomeAssistant.DiscoveryPrefix == "" {
		errs = append(errs, "homeassistant.discovery_prefix is required")
	}
	if strings.ContainsAny(c.HomeAssistant.Prefix, "+#") {
		errs = append(errs, "homeassistant.prefix must not contain MQTT wildcards")
	}
	if c.HomeAssistant.KeepOpenLimit < 0 || c.HomeAssistant.KeepOpenLimit > 100 {
		errs = append(errs, "homeassistant.keep_open_limit must be between 0 and 100")
	}

	// Restart validation
	if c.Restart.RestartInterval < 0 {
		errs = append(errs, "restart.restart_interval must not be negative")
	}
	if c.Restart.HealthCheckInterval < 0 {
		errs = append(errs, "restart.health_check_interval must not be negative")
	}
	if c.Restart.HealthCheckInterval > 0 {
		if c.Gateway.StateUpdateInterval == 0 {
			errs = append(errs, "restart.health_check_interval needs gateway.state_update_interval")
		} else if c.Gateway.StateUpdateInterval > c.Restart.HealthCheckInterval {
			errs = append(errs, "gateway.state_update_interval must not exceed restart.health_check_interval")
		}
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database is enabled")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if c.Status.Enabled && (c.Status.Port < 1 || c.Status.Port > 65535) {
		errs = append(errs, "status.port must be between 1 and 65535")
	}

	if c.Logging.Output == "file" && c.Logging.File.Path == "" {
		errs = append(errs, "logging.file.path is required when logging.output is file")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (r RetryConfig) validate(section string) []string {
	var errs []string
	if r.MaxAttempts < 1 {
		errs = append(errs, section+".max_attempts must be at least 1")
	}
	if r.InitialDelay < 0 || r.MaxDelay < r.InitialDelay {
		errs = append(errs, section+".max_delay must be >= initial_delay >= 0")
	}
	if r.Multiplier < 1 {
		errs = append(errs, section+".multiplier must be at least 1")
	}
	return errs
}

// InitialDelayDuration returns the first retry delay as a Duration.
func (r RetryConfig) InitialDelayDuration() time.Duration {
	return time.Duration(r.InitialDelay) * time.Second
}

// MaxDelayDuration returns the retry delay cap as a Duration.
func (r RetryConfig) MaxDelayDuration() time.Duration {
	return time.Duration(r.MaxDelay) * time.Second
}

// GetCallTimeout returns the gateway call timeout as a Duration.
func (c *Config) GetCallTimeout() time.Duration {
	return time.Duration(c.Gateway.CallTimeout) * time.Second
}

// GetStateUpdateInterval returns the gateway polling period as a Duration.
func (c *Config) GetStateUpdateInterval() time.Duration {
	return time.Duration(c.Gateway.StateUpdateInterval) * time.Second
}

// GetHealthCheckInterval returns the health check period as a Duration.
func (c *Config) GetHealthCheckInterval() time.Duration {
	return time.Duration(c.Restart.HealthCheckInterval) * time.Second
}

// GetRestartInterval returns the forced restart period as a Duration.
func (c *Config) GetRestartInterval() time.Duration {
	return time.Duration(c.Restart.RestartInterval) * time.Hour
}
