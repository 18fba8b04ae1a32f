// Package config holds the tmengine configuration.
//
// Configuration comes from three layers, later layers winning:
//
//  1. Default() values
//  2. an optional YAML file read with LoadFile
//  3. TMENGINE_* environment variables applied by ApplyEnv
//
// Example Usage:
//
//	cfg, err := config.Load("tmengine.yaml")
//	if err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//	fmt.Println(cfg)
//
// Environment Variables:
//   - TMENGINE_AUTO_MERGE=true
//   - TMENGINE_REMOVE_DUPLICATES=true
//   - TMENGINE_CONVERT_TYPE_INSTANCE=true
//   - TMENGINE_DEFAULT_BASE="http://tmengine.local/map/"
//   - TMENGINE_LOG_LEVEL=INFO
//   - TMENGINE_LOG_FORMAT=text
//   - TMENGINE_LOG_OUTPUT=stderr
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all tmengine configuration.
//
// Configuration is organized into logical sections:
//   - Engine: topic map behavior (merging, end-of-load passes)
//   - Logging: logger construction
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Logging LoggingConfig `yaml:"logging"`
}

// EngineConfig controls the topic map engine.
type EngineConfig struct {
	// AutoMerge merges topics whose identifiers collide. When false the
	// collision is reported as an error.
	AutoMerge bool `yaml:"auto_merge"`

	// RemoveDuplicatesOnEnd runs a duplicate-removal pass when ingestion of a
	// topic map ends.
	RemoveDuplicatesOnEnd bool `yaml:"remove_duplicates_on_end"`

	// ConvertTypeInstance rewrites plain type-instance associations into topic
	// types when ingestion of a topic map ends.
	ConvertTypeInstance bool `yaml:"convert_type_instance"`

	// StrictVariantScope requires a variant's scope to be a strict superset
	// of its name's scope. It cannot be disabled.
	StrictVariantScope bool `yaml:"strict_variant_scope"`

	// DefaultBase is the base locator used for documents that do not name one.
	DefaultBase string `yaml:"default_base"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level (DEBUG, INFO, WARN, ERROR)
	Level string `yaml:"level"`
	// Format (json, text)
	Format string `yaml:"format"`
	// Output path (stdout, stderr, or file path)
	Output string `yaml:"output"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			AutoMerge:             true,
			RemoveDuplicatesOnEnd: true,
			ConvertTypeInstance:   true,
			StrictVariantScope:    true,
			DefaultBase:           "http://tmengine.local/map/",
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stderr",
		},
	}
}

// LoadFile reads a YAML configuration file on top of Default(). Keys missing
// from the file keep their default value.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// Load builds the effective configuration: defaults, then path if not
// empty, then the environment. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides c with TMENGINE_* environment variables that are set.
func (c *Config) ApplyEnv() {
	c.Engine.AutoMerge = getEnvBool("TMENGINE_AUTO_MERGE", c.Engine.AutoMerge)
	c.Engine.RemoveDuplicatesOnEnd = getEnvBool("TMENGINE_REMOVE_DUPLICATES", c.Engine.RemoveDuplicatesOnEnd)
	c.Engine.ConvertTypeInstance = getEnvBool("TMENGINE_CONVERT_TYPE_INSTANCE", c.Engine.ConvertTypeInstance)
	c.Engine.DefaultBase = getEnv("TMENGINE_DEFAULT_BASE", c.Engine.DefaultBase)

	c.Logging.Level = getEnv("TMENGINE_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("TMENGINE_LOG_FORMAT", c.Logging.Format)
	c.Logging.Output = getEnv("TMENGINE_LOG_OUTPUT", c.Logging.Output)
}

// Validate checks the configuration for values the engine cannot honor.
//
// Returns nil if configuration is valid, or an error describing the problem.
func (c *Config) Validate() error {
	if !c.Engine.StrictVariantScope {
		return errors.New("strict_variant_scope cannot be disabled")
	}
	if c.Engine.DefaultBase == "" {
		return errors.New("default_base must not be empty")
	}
	switch strings.ToUpper(c.Logging.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}
	if c.Logging.Output == "" {
		return errors.New("log output must not be empty")
	}
	return nil
}

// String returns a one-line summary suitable for logging.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{AutoMerge: %v, RemoveDuplicates: %v, ConvertTypeInstance: %v, Base: %s, Log: %s/%s}",
		c.Engine.AutoMerge, c.Engine.RemoveDuplicatesOnEnd, c.Engine.ConvertTypeInstance,
		c.Engine.DefaultBase, c.Logging.Level, c.Logging.Format,
	)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
		val = strings.ToLower(val)
		return val == "yes" || val == "on"
	}
	return defaultVal
}
