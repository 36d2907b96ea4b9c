package shapeflow

import (
	"fmt"
	"os"

	"github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"
)

// Options configures the analysis.
type Options struct {
	// Folding limits bound the size of compiled constants
	MaxFoldedSequenceLength int `yaml:"maxFoldedSequenceLength"` // default: 256
	MaxFoldedIntegerBits    int `yaml:"maxFoldedIntegerBits"`    // default: 4096

	// Fixpoint bounds
	MaxPasses         int `yaml:"maxPasses"`         // whole-function passes (default: 16)
	MaxLoopIterations int `yaml:"maxLoopIterations"` // loop body re-analysis (default: 8)

	// Behavior flags
	StrictTables   bool `yaml:"strictTables"`   // If true, table defects abort the build (default: false)
	EnableWarnings bool `yaml:"enableWarnings"` // If true, collect precision-loss warnings (default: true)

	// Logging configuration
	LogLevel     string `yaml:"logLevel"`     // "error", "warn", "info", "debug" (default: "warn")
	LogMaxShapes int    `yaml:"logMaxShapes"` // Max alternative members to show in logs (default: 5)
}

// Environment variables that override file and default options.
const (
	EnvLogLevel     = "SHAPEFLOW_LOG_LEVEL"
	EnvStrictTables = "SHAPEFLOW_STRICT_TABLES"
	EnvMaxPasses    = "SHAPEFLOW_MAX_PASSES"
)

// DefaultOptions returns the default configuration.
func DefaultOptions() Options {
	return Options{
		MaxFoldedSequenceLength: 256,
		MaxFoldedIntegerBits:    4096,
		MaxPasses:               16,
		MaxLoopIterations:       8,
		StrictTables:            false,
		EnableWarnings:          true,
		LogLevel:                "warn",
		LogMaxShapes:            5,
	}
}

// LoadOptions reads options from a YAML file on top of the defaults and then
// applies environment overrides. An empty path skips the file.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return opts, fmt.Errorf("failed to read options: %w", err)
		}
		if err := yaml.Unmarshal(data, &opts); err != nil {
			return opts, fmt.Errorf("failed to parse options %s: %w", path, err)
		}
	}
	opts = opts.WithEnv()
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// WithEnv returns a copy of o with environment overrides applied. The
// environment is reread on every call.
func (o Options) WithEnv() Options {
	env.Load()
	if env.Has(EnvLogLevel) {
		o.LogLevel = env.Str(EnvLogLevel, o.LogLevel)
	}
	if env.Has(EnvStrictTables) {
		o.StrictTables = env.Bool(EnvStrictTables)
	}
	if env.Has(EnvMaxPasses) {
		o.MaxPasses = env.Int(EnvMaxPasses, o.MaxPasses)
	}
	return o
}

// Validate rejects limits that would stop the fixpoint from running at all.
func (o Options) Validate() error {
	if o.MaxPasses < 1 {
		return fmt.Errorf("maxPasses must be at least 1, got %d", o.MaxPasses)
	}
	if o.MaxLoopIterations < 1 {
		return fmt.Errorf("maxLoopIterations must be at least 1, got %d", o.MaxLoopIterations)
	}
	if o.MaxFoldedSequenceLength < 0 || o.MaxFoldedIntegerBits < 0 {
		return fmt.Errorf("folding limits must not be negative")
	}
	if o.LogLevel != "" {
		if _, err := ParseLogLevel(o.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

// NewLoggerFromOptions builds the logger described by o, writing to stderr.
// An empty LogLevel disables logging.
func NewLoggerFromOptions(o Options) Logger {
	if o.LogLevel == "" {
		return NewNoopLogger()
	}
	level, err := ParseLogLevel(o.LogLevel)
	if err != nil {
		level = LevelWarn
	}
	return NewLogger(level, nil)
}
