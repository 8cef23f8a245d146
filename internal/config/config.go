// Package config loads applock configuration from defaults, an optional YAML
// file and APPLOCK_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/focusd/app_lock/internal/engine"
	"github.com/eliteGoblin/focusd/app_lock/internal/usecase"
)

// EnvPrefix prefixes every environment override, e.g. APPLOCK_SESSION_PIN_INTERVAL.
const EnvPrefix = "APPLOCK"

// Backend names.
const (
	BackendAuto     = "auto"
	BackendDarwin   = "darwin"
	BackendX11      = "x11"
	BackendHeadless = "headless"
)

// MaxOverlap is the largest accepted region overlap in pixels.
const MaxOverlap = 3

// Config holds all application configuration.
type Config struct {
	Backend    string           `yaml:"backend" split_words:"true"`
	DataDir    string           `yaml:"data_dir" split_words:"true"`
	Session    SessionConfig    `yaml:"session"`
	Coverage   CoverageConfig   `yaml:"coverage"`
	Preference PreferenceConfig `yaml:"preference"`
	Display    DisplayConfig    `yaml:"display"`
	Overlay    OverlayConfig    `yaml:"overlay"`
	Logging    LogConfig        `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// SessionConfig holds enforcement timing.
type SessionConfig struct {
	PinInterval      time.Duration `yaml:"pin_interval" split_words:"true"`
	WatchdogInterval time.Duration `yaml:"watchdog_interval" split_words:"true"`
	CallTimeout      time.Duration `yaml:"call_timeout" split_words:"true"`
	TeardownTimeout  time.Duration `yaml:"teardown_timeout" split_words:"true"`
	MaxPinFailures   int           `yaml:"max_pin_failures" split_words:"true"`
	Measure          bool          `yaml:"measure" split_words:"true"`
	PadMargin        int           `yaml:"pad_margin" split_words:"true"`
}

// CoverageConfig holds coverage region appearance.
type CoverageConfig struct {
	CapHeight      int             `yaml:"cap_height" split_words:"true"`
	Overlap        int             `yaml:"overlap" split_words:"true"`
	Color          string          `yaml:"color" split_words:"true"`
	ExitHint       string          `yaml:"exit_hint" split_words:"true"`
	ReassertDelays []time.Duration `yaml:"reassert_delays" ignored:"true"`
}

// PreferenceConfig holds the session preference toggle.
type PreferenceConfig struct {
	Enabled      bool          `yaml:"enabled" split_words:"true"`
	Key          string        `yaml:"key" split_words:"true"`
	SessionValue bool          `yaml:"session_value" split_words:"true"`
	SettleDelay  time.Duration `yaml:"settle_delay" split_words:"true"`
}

// DisplayConfig holds display geometry overrides.
type DisplayConfig struct {
	MenuBarInset int `yaml:"menu_bar_inset" split_words:"true"`
}

// OverlayConfig holds the coverage helper settings.
type OverlayConfig struct {
	HelperPath string `yaml:"helper_path" split_words:"true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	File  string `yaml:"file" split_words:"true"`
	Level string `yaml:"level" split_words:"true"`
}

// MetricsConfig holds the optional Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr" split_words:"true"`
}

// Default returns default configuration.
func Default() *Config {
	dataDir := DefaultDataDir()
	cov := usecase.DefaultCoverageConfig()
	pin := usecase.DefaultPinConfig()
	pref := usecase.DefaultPreferenceConfig()
	eng := engine.DefaultConfig()

	return &Config{
		Backend: BackendAuto,
		DataDir: dataDir,
		Session: SessionConfig{
			PinInterval:      eng.PinInterval,
			WatchdogInterval: eng.WatchdogInterval,
			CallTimeout:      eng.CallTimeout,
			TeardownTimeout:  eng.TeardownTimeout,
			MaxPinFailures:   pin.MaxFailures,
			Measure:          pin.Measure,
			PadMargin:        pin.PadMargin,
		},
		Coverage: CoverageConfig{
			CapHeight:      cov.CapHeight,
			Overlap:        cov.Overlap,
			Color:          cov.Color,
			ExitHint:       cov.ExitHint,
			ReassertDelays: cov.ReassertDelays,
		},
		Preference: PreferenceConfig{
			Enabled:      pref.Enabled,
			Key:          pref.Key,
			SessionValue: pref.SessionValue,
			SettleDelay:  pref.SettleDelay,
		},
		Display: DisplayConfig{
			MenuBarInset: 25,
		},
		Overlay: OverlayConfig{
			HelperPath: "applock-overlay",
		},
		Logging: LogConfig{
			File:  filepath.Join(dataDir, "applock.log"),
			Level: "info",
		},
	}
}

// DefaultDataDir returns ~/.applock, or a temp dir if home is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "applock")
	}
	return filepath.Join(home, ".applock")
}

// DefaultPath returns the config file read when --config is not given.
func DefaultPath() string {
	return filepath.Join(DefaultDataDir(), "config.yaml")
}

// Load builds the configuration. An explicit path must exist; when path is
// empty the default file is read if present.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if err := cfg.mergeFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendAuto, BackendDarwin, BackendX11, BackendHeadless:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}

	if c.Session.PinInterval <= 0 || c.Session.WatchdogInterval <= 0 {
		return errors.New("session intervals must be positive")
	}
	if c.Session.CallTimeout <= 0 || c.Session.TeardownTimeout <= 0 {
		return errors.New("session timeouts must be positive")
	}
	if c.Session.MaxPinFailures < 1 {
		return fmt.Errorf("max_pin_failures must be at least 1, got %d", c.Session.MaxPinFailures)
	}
	if c.Session.PadMargin < 0 {
		return fmt.Errorf("pad_margin must not be negative, got %d", c.Session.PadMargin)
	}

	if c.Coverage.Overlap < 0 || c.Coverage.Overlap > MaxOverlap {
		return fmt.Errorf("coverage overlap must be within 0..%d, got %d", MaxOverlap, c.Coverage.Overlap)
	}
	if c.Coverage.CapHeight < 0 {
		return fmt.Errorf("cap_height must not be negative, got %d", c.Coverage.CapHeight)
	}
	for _, d := range c.Coverage.ReassertDelays {
		if d < 0 {
			return fmt.Errorf("reassert delay must not be negative, got %s", d)
		}
	}

	if c.Preference.Enabled && c.Preference.Key == "" {
		return errors.New("preference key is required when the preference toggle is enabled")
	}
	if c.Preference.SettleDelay < 0 {
		return fmt.Errorf("settle_delay must not be negative, got %s", c.Preference.SettleDelay)
	}

	if c.Display.MenuBarInset < 0 {
		return fmt.Errorf("menu_bar_inset must not be negative, got %d", c.Display.MenuBarInset)
	}

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

// Engine returns the engine configuration.
func (c *Config) Engine() engine.Config {
	return engine.Config{
		PinInterval:      c.Session.PinInterval,
		WatchdogInterval: c.Session.WatchdogInterval,
		CallTimeout:      c.Session.CallTimeout,
		TeardownTimeout:  c.Session.TeardownTimeout,
		Coverage: usecase.CoverageConfig{
			CapHeight:      c.Coverage.CapHeight,
			Overlap:        c.Coverage.Overlap,
			Color:          c.Coverage.Color,
			ExitHint:       c.Coverage.ExitHint,
			ReassertDelays: c.Coverage.ReassertDelays,
		},
		Pin: usecase.PinConfig{
			MaxFailures: c.Session.MaxPinFailures,
			Measure:     c.Session.Measure,
			PadMargin:   c.Session.PadMargin,
		},
		Preference: usecase.PreferenceConfig{
			Enabled:      c.Preference.Enabled,
			Key:          c.Preference.Key,
			SessionValue: c.Preference.SessionValue,
			SettleDelay:  c.Preference.SettleDelay,
		},
	}
}

// RegistryPath returns the instance registry file.
func (c *Config) RegistryPath() string {
	return filepath.Join(c.DataDir, "instance.json")
}
