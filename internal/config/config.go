// Package config defines all configuration structures for msegconv.  No I/O
// or parsing logic lives here, only plain data types and validation.
package config

import (
	"fmt"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// PathsConfig locates the run inputs.  Relative file names are resolved
// against InputDir (data files) or TableDir (weight tables) by the pipeline.
type PathsConfig struct {
	InputDir    string `mapstructure:"input_dir"`
	TableDir    string `mapstructure:"table_dir"`
	Metadata    string `mapstructure:"metadata"`
	Reference   string `mapstructure:"reference"`   // envelope / MELs cost, performance, lifetime
	Conversions string `mapstructure:"conversions"` // cost unit conversion factors
	Shares      string `mapstructure:"shares"`      // optional end-use share table
}

// ConvertConfig holds the run choices.  A zero choice is asked for
// interactively.
type ConvertConfig struct {
	Data     int  `mapstructure:"data"`   // 1 energy/stock, 2 cost/performance/lifetime
	Geo      int  `mapstructure:"geo"`    // 1 AIA, 2 EMM, 3 state
	Fuel     int  `mapstructure:"fuel"`   // 1 electricity only, 2 all fuels
	Detail   int  `mapstructure:"detail"` // 1 technology, 2 end use
	Captured bool `mapstructure:"captured"`
	Workers  int  `mapstructure:"workers"`
}

// OutputConfig controls where and how results are written.
type OutputConfig struct {
	Dir         string `mapstructure:"dir"`
	Indent      int    `mapstructure:"indent"`
	DisableGzip bool   `mapstructure:"disable_gzip"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `mapstructure:"format"` // "json" | "console"
	Output string `mapstructure:"output"`
}

// MetricsConfig controls the Prometheus textfile written after each run.
type MetricsConfig struct {
	Textfile  string `mapstructure:"textfile"`
	Namespace string `mapstructure:"namespace"`
}

// MinIOConfig holds MinIO / S3-compatible parameters for publishing outputs.
type MinIOConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure.
type Config struct {
	Paths        PathsConfig   `mapstructure:"paths"`
	Convert      ConvertConfig `mapstructure:"convert"`
	Output       OutputConfig  `mapstructure:"output"`
	Log          LogConfig     `mapstructure:"log"`
	Metrics      MetricsConfig `mapstructure:"metrics"`
	MinIO        MinIOConfig   `mapstructure:"minio"`
	TaxonomyFile string        `mapstructure:"taxonomy_file"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered.
func (c *Config) Validate() error {
	if c.Paths.InputDir == "" {
		return fmt.Errorf("config: paths.input_dir is required")
	}
	if c.Paths.TableDir == "" {
		return fmt.Errorf("config: paths.table_dir is required")
	}
	if c.Paths.Metadata == "" {
		return fmt.Errorf("config: paths.metadata is required")
	}

	for _, ch := range []struct {
		name string
		val  int
		max  int
	}{
		{"convert.data", c.Convert.Data, 2},
		{"convert.geo", c.Convert.Geo, 3},
		{"convert.fuel", c.Convert.Fuel, 2},
		{"convert.detail", c.Convert.Detail, 2},
	} {
		if ch.val < 0 || ch.val > ch.max {
			return fmt.Errorf("config: %s %d is invalid; expected 1..%d or 0 to prompt", ch.name, ch.val, ch.max)
		}
	}
	if c.Convert.Workers < 1 {
		return fmt.Errorf("config: convert.workers must be ≥ 1, got %d", c.Convert.Workers)
	}
	if c.Output.Indent < 0 {
		return fmt.Errorf("config: output.indent must be ≥ 0, got %d", c.Output.Indent)
	}

	if c.MinIO.Enabled {
		if c.MinIO.Endpoint == "" {
			return fmt.Errorf("config: minio.endpoint is required when minio is enabled")
		}
		if c.MinIO.Bucket == "" {
			return fmt.Errorf("config: minio.bucket is required when minio is enabled")
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}

//Personal.AI order the ending
