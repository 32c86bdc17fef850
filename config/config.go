// Package config loads run configuration from TOML or YAML files and
// QUIESCE_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/vinayprograms/quiesce/errors"
	"github.com/vinayprograms/quiesce/logging"
)

const (
	DefaultDrainTime     = 2 * time.Nanosecond
	DefaultSamples       = 10
	DefaultPeriod        = 10 * time.Nanosecond
	DefaultLatency       = 5 * time.Nanosecond
	DefaultInjectPercent = 50.0
	DefaultLogLevel      = "info"
	DefaultTraceURL      = "file://."
	DefaultTraceKey      = "dump.jsonl"
)

type (
	// Config holds all settings for a run.
	Config struct {
		Objection ObjectionConfig `toml:"objection" yaml:"objection"`
		Stimulus  StimulusConfig  `toml:"stimulus" yaml:"stimulus"`
		Behavior  BehaviorConfig  `toml:"behavior" yaml:"behavior"`
		Log       LogConfig       `toml:"log" yaml:"log"`
		Trace     TraceConfig     `toml:"trace" yaml:"trace"`
	}

	// ObjectionConfig configures the shutdown coordinator.
	ObjectionConfig struct {
		DrainTime   Duration `toml:"drain_time" yaml:"drain_time"`
		Timeout     Duration `toml:"timeout" yaml:"timeout"`
		UniqueNames bool     `toml:"unique_names" yaml:"unique_names"`
	}

	// StimulusConfig configures sample generation.
	StimulusConfig struct {
		Samples int      `toml:"samples" yaml:"samples"`
		Period  Duration `toml:"period" yaml:"period"`
		Seed    int64    `toml:"seed" yaml:"seed"`
	}

	// BehaviorConfig configures the device under test.
	BehaviorConfig struct {
		Latency       Duration `toml:"latency" yaml:"latency"`
		Inject        bool     `toml:"inject" yaml:"inject"`
		InjectPercent float64  `toml:"inject_percent" yaml:"inject_percent"`
	}

	// LogConfig configures console output.
	LogConfig struct {
		Level string   `toml:"level" yaml:"level"`
		Debug []string `toml:"debug" yaml:"debug"`
		Quiet bool     `toml:"quiet" yaml:"quiet"`
	}

	// TraceConfig configures the trace recorder.
	TraceConfig struct {
		Enabled bool   `toml:"enabled" yaml:"enabled"`
		URL     string `toml:"url" yaml:"url"`
		Key     string `toml:"key" yaml:"key"`
	}
)

// Default returns a configuration with the demo defaults.
func Default() *Config {
	return &Config{
		Objection: ObjectionConfig{
			DrainTime: Duration(DefaultDrainTime),
		},
		Stimulus: StimulusConfig{
			Samples: DefaultSamples,
			Period:  Duration(DefaultPeriod),
			Seed:    1,
		},
		Behavior: BehaviorConfig{
			Latency:       Duration(DefaultLatency),
			InjectPercent: DefaultInjectPercent,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
		Trace: TraceConfig{
			URL: DefaultTraceURL,
			Key: DefaultTraceKey,
		},
	}
}

// StandardPaths returns the config file locations in order of priority.
func StandardPaths() []string {
	paths := []string{"quiesce.toml", "quiesce.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "quiesce", "quiesce.toml"))
	}

	return paths
}

// LoadDefault loads the first config file found in StandardPaths on top of
// the defaults. It returns the path used, empty when no file exists.
func LoadDefault() (*Config, string, error) {
	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err == nil {
			cfg, err := Load(path)
			return cfg, path, err
		}
	}
	return Default(), "", nil
}

// Load reads a TOML or YAML file, chosen by extension, on top of the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrCodeInvalidConfig,
				fmt.Sprintf("decoding %s", path))
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrCodeInvalidConfig,
				fmt.Sprintf("decoding %s", path))
		}
	default:
		return nil, errors.New(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("unsupported config format %q", filepath.Ext(path)))
	}
	return cfg, nil
}

// ApplyEnv overrides settings from QUIESCE_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := loadEnvDuration("QUIESCE_DRAIN_TIME", &c.Objection.DrainTime); err != nil {
		return err
	}
	if err := loadEnvDuration("QUIESCE_TIMEOUT", &c.Objection.Timeout); err != nil {
		return err
	}
	if err := loadEnvDuration("QUIESCE_PERIOD", &c.Stimulus.Period); err != nil {
		return err
	}
	if err := loadEnvDuration("QUIESCE_LATENCY", &c.Behavior.Latency); err != nil {
		return err
	}
	if v := os.Getenv("QUIESCE_SAMPLES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError("QUIESCE_SAMPLES", v, err)
		}
		c.Stimulus.Samples = n
	}
	if v := os.Getenv("QUIESCE_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return envError("QUIESCE_SEED", v, err)
		}
		c.Stimulus.Seed = n
	}
	if v := os.Getenv("QUIESCE_INJECT"); v != "" {
		pct, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return envError("QUIESCE_INJECT", v, err)
		}
		c.Behavior.Inject = true
		c.Behavior.InjectPercent = pct
	}
	if v := os.Getenv("QUIESCE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("QUIESCE_TRACE_URL"); v != "" {
		c.Trace.Enabled = true
		c.Trace.URL = v
	}
	return nil
}

// Validate checks the configuration for values no component can use.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...interface{}) {
		errs = append(errs, errors.New(errors.ErrCodeInvalidConfig, fmt.Sprintf(format, args...)))
	}

	if c.Objection.DrainTime < 0 {
		invalid("objection.drain_time must not be negative, got %v", c.Objection.DrainTime)
	}
	if c.Objection.Timeout < 0 {
		invalid("objection.timeout must not be negative, got %v", c.Objection.Timeout)
	}
	if c.Stimulus.Period <= 0 {
		invalid("stimulus.period must be positive, got %v", c.Stimulus.Period)
	}
	if c.Behavior.Latency < 0 {
		invalid("behavior.latency must not be negative, got %v", c.Behavior.Latency)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		invalid("log.level: %v", err)
	}
	if c.Trace.Enabled && c.Trace.URL == "" {
		invalid("trace.url is required when tracing is enabled")
	}
	return errors.Join(errs...)
}

func loadEnvDuration(name string, target *Duration) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	d, err := ParseDuration(v)
	if err != nil {
		return envError(name, v, err)
	}
	*target = d
	return nil
}

func envError(name, value string, err error) error {
	return errors.WrapWithCode(err, errors.ErrCodeInvalidConfig,
		fmt.Sprintf("invalid %s=%q", name, value))
}
