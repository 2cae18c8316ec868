package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the whole l14box configuration. Sections map one to one
// onto the top-level keys of l14box.yaml.
type Config struct {
	Logger LoggerConfig `mapstructure:"logger" yaml:"logger"`
	Engine EngineConfig `mapstructure:"engine" yaml:"engine"`
	Loader LoaderConfig `mapstructure:"loader" yaml:"loader"`
	Reflow ReflowConfig `mapstructure:"reflow" yaml:"reflow"`
}

// LoggerConfig configures the process-wide logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig names the terminal color used for each log level.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// EngineConfig tunes the box construction driver.
type EngineConfig struct {
	// YieldEvery suspends a pass after this many elements. Zero never yields.
	YieldEvery int `mapstructure:"yield_every" yaml:"yield_every"`
	MaxDepth   int `mapstructure:"max_depth" yaml:"max_depth"`
	MaxColumns int `mapstructure:"max_columns" yaml:"max_columns"`
	// RecordBudget caps live engine objects; zero means unbounded.
	RecordBudget int            `mapstructure:"record_budget" yaml:"record_budget"`
	ReducedMode  bool           `mapstructure:"reduced_mode" yaml:"reduced_mode"`
	Viewport     ViewportConfig `mapstructure:"viewport" yaml:"viewport"`
	// Blocked lists URL substrings whose replaced elements get no box.
	Blocked []string `mapstructure:"blocked" yaml:"blocked"`
	Scripts bool     `mapstructure:"scripts" yaml:"scripts"`
}

type ViewportConfig struct {
	Width  float64 `mapstructure:"width" yaml:"width"`
	Height float64 `mapstructure:"height" yaml:"height"`
}

// LoaderConfig configures the asynchronous resource loader.
type LoaderConfig struct {
	Workers int           `mapstructure:"workers" yaml:"workers"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// BaseURL resolves relative references when the input is read from stdin.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// ReflowConfig bounds how often a session re-runs construction passes.
type ReflowConfig struct {
	RatePerSecond float64 `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	Burst         int     `mapstructure:"burst" yaml:"burst"`
	MaxPasses     int     `mapstructure:"max_passes" yaml:"max_passes"`
}

// NewDefaultConfig returns a Config populated from SetDefaults alone.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration key.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "l14box")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 28)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Engine --
	v.SetDefault("engine.yield_every", 0)
	v.SetDefault("engine.max_depth", 512)
	v.SetDefault("engine.max_columns", 1000)
	v.SetDefault("engine.record_budget", 0)
	v.SetDefault("engine.reduced_mode", false)
	v.SetDefault("engine.viewport.width", 800)
	v.SetDefault("engine.viewport.height", 600)
	v.SetDefault("engine.blocked", []string{})
	v.SetDefault("engine.scripts", true)

	// -- Loader --
	v.SetDefault("loader.workers", 4)
	v.SetDefault("loader.timeout", "10s")
	v.SetDefault("loader.base_url", "")

	// -- Reflow --
	v.SetDefault("reflow.rate_per_second", 0)
	v.SetDefault("reflow.burst", 1)
	v.SetDefault("reflow.max_passes", 16)
}

// NewConfigFromViper unmarshals v and validates the result.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	var errs []error
	switch c.Logger.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logger.format must be \"console\" or \"json\", got %q", c.Logger.Format))
	}
	if c.Engine.YieldEvery < 0 {
		errs = append(errs, errors.New("engine.yield_every must not be negative"))
	}
	if c.Engine.MaxDepth <= 0 {
		errs = append(errs, errors.New("engine.max_depth must be a positive integer"))
	}
	if c.Engine.MaxColumns <= 0 {
		errs = append(errs, errors.New("engine.max_columns must be a positive integer"))
	}
	if c.Engine.RecordBudget < 0 {
		errs = append(errs, errors.New("engine.record_budget must not be negative"))
	}
	if c.Engine.Viewport.Width <= 0 || c.Engine.Viewport.Height <= 0 {
		errs = append(errs, errors.New("engine.viewport must have a positive width and height"))
	}
	if c.Loader.Workers <= 0 {
		errs = append(errs, errors.New("loader.workers must be a positive integer"))
	}
	if c.Loader.Timeout < 0 {
		errs = append(errs, errors.New("loader.timeout must not be negative"))
	}
	if c.Reflow.RatePerSecond < 0 {
		errs = append(errs, errors.New("reflow.rate_per_second must not be negative"))
	}
	if c.Reflow.MaxPasses <= 0 {
		errs = append(errs, errors.New("reflow.max_passes must be a positive integer"))
	}
	return errors.Join(errs...)
}
