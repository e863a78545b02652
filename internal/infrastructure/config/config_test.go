package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
mqtt:
  broker:
    host: "broker.local"
    port: 1884
  auth:
    username: "velux"
gateway:
  host: "klf200.local"
  password: "velux123"
  sim:
    nodes:
      - name: "Bathroom Window"
        type: "window"
        position: 100
homeassistant:
  prefix: "home/"
  invert_awning: true
  keep_open_limit: 20
restart:
  restart_interval: 24
  health_check_interval: 30
  restart_on_error: true
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if cfg.MQTT.Broker.Port != 1884 {
		t.Errorf("MQTT.Broker.Port = %d, want 1884", cfg.MQTT.Broker.Port)
	}
	if cfg.Gateway.Host != "klf200.local" {
		t.Errorf("Gateway.Host = %q, want %q", cfg.Gateway.Host, "klf200.local")
	}
	if len(cfg.Gateway.Sim.Nodes) != 1 || cfg.Gateway.Sim.Nodes[0].Name != "Bathroom Window" {
		t.Errorf("Gateway.Sim.Nodes = %+v, want one Bathroom Window", cfg.Gateway.Sim.Nodes)
	}
	if !cfg.HomeAssistant.InvertAwning {
		t.Error("HomeAssistant.InvertAwning = false, want true")
	}
	if cfg.HomeAssistant.KeepOpenLimit != 20 {
		t.Errorf("HomeAssistant.KeepOpenLimit = %d, want 20", cfg.HomeAssistant.KeepOpenLimit)
	}
	if !cfg.Restart.RestartOnError {
		t.Error("Restart.RestartOnError = false, want true")
	}

	// Defaults survive for keys absent from the file.
	if cfg.HomeAssistant.DiscoveryPrefix != "homeassistant" {
		t.Errorf("DiscoveryPrefix = %q, want default %q", cfg.HomeAssistant.DiscoveryPrefix, "homeassistant")
	}
	if cfg.Gateway.CallTimeout != 30 {
		t.Errorf("Gateway.CallTimeout = %d, want default 30", cfg.Gateway.CallTimeout)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
gateway:
  driver: "klf200-native"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error for unknown driver, got nil")
	}
	if !strings.Contains(err.Error(), "gateway.driver") {
		t.Errorf("error = %v, want mention of gateway.driver", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing broker host",
			mutate:  func(c *Config) { c.MQTT.Broker.Host = "" },
			wantErr: "mqtt.broker.host",
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.MQTT.Broker.Port = 70000 },
			wantErr: "mqtt.broker.port",
		},
		{
			name:    "unbounded reconnect",
			mutate:  func(c *Config) { c.MQTT.Reconnect.MaxAttempts = 0 },
			wantErr: "mqtt.reconnect.max_attempts",
		},
		{
			name:    "shrinking backoff",
			mutate:  func(c *Config) { c.Gateway.Retry.Multiplier = 0.5 },
			wantErr: "gateway.retry.multiplier",
		},
		{
			name:    "max delay below initial",
			mutate:  func(c *Config) { c.MQTT.Reconnect.MaxDelay = 1 },
			wantErr: "mqtt.reconnect.max_delay",
		},
		{
			name:    "negative call timeout",
			mutate:  func(c *Config) { c.Gateway.CallTimeout = -1 },
			wantErr: "gateway.call_timeout",
		},
		{
			name:    "zero in-flight",
			mutate:  func(c *Config) { c.Gateway.MaxInFlight = 0 },
			wantErr: "gateway.max_in_flight",
		},
		{
			name:    "wildcard in prefix",
			mutate:  func(c *Config) { c.HomeAssistant.Prefix = "home/#" },
			wantErr: "homeassistant.prefix",
		},
		{
			name:    "keep open limit above 100",
			mutate:  func(c *Config) { c.HomeAssistant.KeepOpenLimit = 120 },
			wantErr: "keep_open_limit",
		},
		{
			name:    "negative health interval",
			mutate:  func(c *Config) { c.Restart.HealthCheckInterval = -5 },
			wantErr: "health_check_interval",
		},
		{
			name:    "negative state update interval",
			mutate:  func(c *Config) { c.Gateway.StateUpdateInterval = -1 },
			wantErr: "gateway.state_update_interval",
		},
		{
			name: "health check without state updates",
			mutate: func(c *Config) {
				c.Restart.HealthCheckInterval = 60
				c.Gateway.StateUpdateInterval = 0
			},
			wantErr: "needs gateway.state_update_interval",
		},
		{
			name: "state updates slower than health check",
			mutate: func(c *Config) {
				c.Restart.HealthCheckInterval = 2
				c.Gateway.StateUpdateInterval = 5
			},
			wantErr: "must not exceed restart.health_check_interval",
		},
		{
			name: "health check with state updates",
			mutate: func(c *Config) {
				c.Restart.HealthCheckInterval = 60
			},
		},
		{
			name: "influx enabled without url",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.Bucket = "vlx"
			},
			wantErr: "influxdb.url",
		},
		{
			name: "database enabled without path",
			mutate: func(c *Config) {
				c.Database.Enabled = true
				c.Database.Path = ""
			},
			wantErr: "database.path",
		},
		{
			name:    "file logging without path",
			mutate:  func(c *Config) { c.Logging.Output = "file" },
			wantErr: "logging.file.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error mentioning %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := defaultConfig()
	cfg.Gateway.CallTimeout = 15
	cfg.Restart.HealthCheckInterval = 10
	cfg.Restart.RestartInterval = 24
	cfg.Gateway.StateUpdateInterval = 3

	if got := cfg.GetStateUpdateInterval(); got != 3*time.Second {
		t.Errorf("GetStateUpdateInterval() = %v, want 3s", got)
	}
	if got := cfg.GetCallTimeout(); got != 15*time.Second {
		t.Errorf("GetCallTimeout() = %v, want 15s", got)
	}
	if got := cfg.GetHealthCheckInterval(); got != 10*time.Second {
		t.Errorf("GetHealthCheckInterval() = %v, want 10s", got)
	}
	if got := cfg.GetRestartInterval(); got != 24*time.Hour {
		t.Errorf("GetRestartInterval() = %v, want 24h", got)
	}
	if got := cfg.MQTT.Reconnect.InitialDelayDuration(); got != 10*time.Second {
		t.Errorf("InitialDelayDuration() = %v, want 10s", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("VLXBRIDGE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("VLXBRIDGE_MQTT_PORT", "8883")
	t.Setenv("VLXBRIDGE_MQTT_USERNAME", "testuser")
	t.Setenv("VLXBRIDGE_MQTT_PASSWORD", "testpass")
	t.Setenv("VLXBRIDGE_GATEWAY_HOST", "192.168.1.20")
	t.Setenv("VLXBRIDGE_GATEWAY_PASSWORD", "gwpass")
	t.Setenv("VLXBRIDGE_DB_PATH", "/custom/path.db")
	t.Setenv("VLXBRIDGE_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("VLXBRIDGE_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	checks := []struct {
		name string
		got  string
		want string
	}{
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"Gateway.Host", cfg.Gateway.Host, "192.168.1.20"},
		{"Gateway.Password", cfg.Gateway.Password, "gwpass"},
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Logging.Level", cfg.Logging.Level, "debug"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
}

func TestApplyEnvOverrides_BadPortIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("VLXBRIDGE_MQTT_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want unchanged 1883", cfg.MQTT.Broker.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.Gateway.MaxInFlight != 1 {
		t.Errorf("defaultConfig Gateway.MaxInFlight = %d, want 1", cfg.Gateway.MaxInFlight)
	}
	if cfg.Logging.File.MaxSize != 10 || cfg.Logging.File.MaxBackups != 5 {
		t.Errorf("defaultConfig log rotation = %dMB x %d, want 10MB x 5",
			cfg.Logging.File.MaxSize, cfg.Logging.File.MaxBackups)
	}
	if cfg.Restart.RestartInterval != 0 {
		t.Errorf("defaultConfig RestartInterval = %d, want 0 (disabled)", cfg.Restart.RestartInterval)
	}
	if cfg.Restart.HealthCheckInterval != 0 {
		t.Errorf("defaultConfig HealthCheckInterval = %d, want 0 (disabled)", cfg.Restart.HealthCheckInterval)
	}
	if cfg.Gateway.StateUpdateInterval != 5 {
		t.Errorf("defaultConfig StateUpdateInterval = %d, want 5", cfg.Gateway.StateUpdateInterval)
	}
}
