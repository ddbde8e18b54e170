// Package config loads container settings from defaults and an ordered
// chain of feeders, and can watch the source file for changes.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	golobbyconfig "github.com/golobby/config/v3"
)

// Defaults
const (
	DefaultExecutionContext = "main"
	DefaultHandoffTimeout   = 5 * time.Second
	DefaultPollInterval     = 100 * time.Millisecond
	DefaultLogLevel         = "info"
)

// Static errors for configuration package
var (
	ErrInvalidPollInterval   = errors.New("poll interval must be positive")
	ErrEmptyExecutionContext = errors.New("execution context name is empty")
	ErrInvalidLogLevel       = errors.New("unknown log level")
	ErrNoWatchableSource     = errors.New("no feeder reads a file that can be watched")
	ErrWatcherAlreadyStarted = errors.New("watcher already started")
)

// Config holds the container settings.
type Config struct {
	// ExecutionContext is the name of the context the container builds on.
	// Beans with this thread affinity are not handed off.
	ExecutionContext string `yaml:"execution_context" toml:"execution_context" env:"EXECUTION_CONTEXT" validate:"required"`

	// HandoffTimeout bounds the wait for a thread affinity handoff.
	// A negative value waits forever.
	HandoffTimeout time.Duration `yaml:"handoff_timeout" toml:"handoff_timeout" env:"HANDOFF_TIMEOUT"`

	// PollInterval is how often a pending handoff is checked.
	PollInterval time.Duration `yaml:"poll_interval" toml:"poll_interval" env:"POLL_INTERVAL" validate:"gt=0"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" toml:"log_level" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`

	// PluginDir is registered as the {plugins} path placeholder.
	PluginDir string `yaml:"plugin_dir" toml:"plugin_dir" env:"PLUGIN_DIR"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	return &Config{
		ExecutionContext: DefaultExecutionContext,
		HandoffTimeout:   DefaultHandoffTimeout,
		PollInterval:     DefaultPollInterval,
		LogLevel:         DefaultLogLevel,
	}
}

var validate = validator.New()

// Validate checks the settings against their validate tags and reports the
// first violation as one of the package's sentinel errors.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	switch fieldErrs[0].StructField() {
	case "ExecutionContext":
		return ErrEmptyExecutionContext
	case "PollInterval":
		return fmt.Errorf("%w: %s", ErrInvalidPollInterval, c.PollInterval)
	case "LogLevel":
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}
	return err
}

// Feeder fills a config struct from one source.
type Feeder interface {
	Feed(structure any) error
}

// KeyFeeder is a Feeder that can decode a single named section.
type KeyFeeder interface {
	Feeder
	FeedKey(key string, target any) error
}

// Load builds a Config from the defaults and then each feeder in order, so
// later feeders override earlier ones. When section is non-empty, feeders
// implementing KeyFeeder only decode that section.
func Load(section string, feeders ...Feeder) (*Config, error) {
	cfg := Default()
	for i, f := range feeders {
		var err error
		if kf, ok := f.(KeyFeeder); ok && section != "" {
			err = kf.FeedKey(section, cfg)
		} else {
			err = golobbyconfig.New().AddFeeder(f).AddStruct(cfg).Feed()
		}
		if err != nil {
			return nil, fmt.Errorf("config feeder %d (%T): %w", i, f, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
