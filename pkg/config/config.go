package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/srg/lednet/internal/device"
)

// MQTTConfig configures the bridge's broker connection
type MQTTConfig struct {
	Broker      string `yaml:"broker" json:"broker"`
	ClientID    string `yaml:"client_id" json:"client_id" default:"ledctl"`
	TopicPrefix string `yaml:"topic_prefix" json:"topic_prefix" default:"lednet"`
	Username    string `yaml:"username" json:"username"`
	Password    string `yaml:"password" json:"-"`
	QoS         int    `yaml:"qos" json:"qos" default:"0"`
}

// Config holds application configuration
type Config struct {
	LogLevel           string        `yaml:"log_level" json:"log_level" default:"info"`
	ScanTimeout        time.Duration `yaml:"scan_timeout" json:"scan_timeout" default:"10s"`
	ConnectTimeout     time.Duration `yaml:"connect_timeout" json:"connect_timeout" default:"15s"`
	StateQueryTimeout  time.Duration `yaml:"state_query_timeout" json:"state_query_timeout" default:"3s"`
	LedSettingsTimeout time.Duration `yaml:"led_settings_timeout" json:"led_settings_timeout" default:"3s"`
	ProbeQueryTimeout  time.Duration `yaml:"probe_query_timeout" json:"probe_query_timeout" default:"5s"`
	ProbeSettleDelay   time.Duration `yaml:"probe_settle_delay" json:"probe_settle_delay" default:"500ms"`
	ProbeTolerance     int           `yaml:"probe_tolerance" json:"probe_tolerance" default:"6"`
	CapabilityFile     string        `yaml:"capability_file" json:"capability_file"`
	StorePath          string        `yaml:"store_path" json:"store_path" default:"ledctl.db"`
	OutputFormat       string        `yaml:"output_format" json:"output_format" default:"table"` // table, json
	MQTT               MQTTConfig    `yaml:"mqtt" json:"mqtt"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load builds the configuration from defaults, the YAML file at path (when
// path is not empty) and LEDCTL_* environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LEDCTL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LEDCTL_STORE_PATH"); v != "" {
		cfg.StorePath = v
	}
	if v := os.Getenv("LEDCTL_CAPABILITY_FILE"); v != "" {
		cfg.CapabilityFile = v
	}
	if v := os.Getenv("LEDCTL_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv("LEDCTL_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("LEDCTL_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	var errs []string

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Sprintf("log_level %q is not a valid level", c.LogLevel))
	}
	switch c.OutputFormat {
	case "table", "json":
	default:
		errs = append(errs, fmt.Sprintf("output_format %q must be table or json", c.OutputFormat))
	}
	timeouts := []struct {
		name string
		d    time.Duration
	}{
		{"connect_timeout", c.ConnectTimeout},
		{"state_query_timeout", c.StateQueryTimeout},
		{"led_settings_timeout", c.LedSettingsTimeout},
		{"probe_query_timeout", c.ProbeQueryTimeout},
	}
	for _, t := range timeouts {
		if t.d <= 0 {
			errs = append(errs, t.name+" must be positive")
		}
	}
	if c.ProbeSettleDelay < 0 {
		errs = append(errs, "probe_settle_delay must not be negative")
	}
	if c.ProbeTolerance <= 0 || c.ProbeTolerance > 0x32 {
		errs = append(errs, "probe_tolerance must be between 1 and 50")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if len(errs) > 0 {
		return errors.New("configuration errors: " + strings.Join(errs, "; "))
	}
	return nil
}

// Level returns the parsed log level, InfoLevel when unparsable.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// DeviceOptions maps the timeouts onto device actor options.
func (c *Config) DeviceOptions() device.Options {
	return device.Options{
		ConnectTimeout:     c.ConnectTimeout,
		StateQueryTimeout:  c.StateQueryTimeout,
		LedSettingsTimeout: c.LedSettingsTimeout,
		ProbeQueryTimeout:  c.ProbeQueryTimeout,
		ProbeSettleDelay:   c.ProbeSettleDelay,
		ProbeTolerance:     c.ProbeTolerance,
	}
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
