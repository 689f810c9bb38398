package config

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultInputDir    = "inputs"
	DefaultTableDir    = "convert_data/geo_map"
	DefaultMetadata    = "inputs/metadata.json"
	DefaultReference   = "convert_data/cpl_envelope_mels.json"
	DefaultConversions = "convert_data/ecm_cost_convert.json"

	DefaultWorkers = 4

	DefaultOutputDir    = "."
	DefaultOutputIndent = 2

	DefaultMetricsNamespace = "msegconv"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "mseg-outputs"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"
	DefaultLogOutput = "stderr"
)

// ApplyDefaults fills every zero-value field in cfg with its default.  Fields
// already set (non-zero values) are left unchanged so that explicit
// configuration always wins.  Run choices are never defaulted: zero means
// "ask".
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Paths ─────────────────────────────────────────────────────────────────
	if cfg.Paths.InputDir == "" {
		cfg.Paths.InputDir = DefaultInputDir
	}
	if cfg.Paths.TableDir == "" {
		cfg.Paths.TableDir = DefaultTableDir
	}
	if cfg.Paths.Metadata == "" {
		cfg.Paths.Metadata = DefaultMetadata
	}
	if cfg.Paths.Reference == "" {
		cfg.Paths.Reference = DefaultReference
	}
	if cfg.Paths.Conversions == "" {
		cfg.Paths.Conversions = DefaultConversions
	}

	// ── Convert ───────────────────────────────────────────────────────────────
	if cfg.Convert.Workers == 0 {
		cfg.Convert.Workers = DefaultWorkers
	}

	// ── Output ────────────────────────────────────────────────────────────────
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = DefaultOutputDir
	}
	// Indent 0 is a valid explicit value (compact output) but cannot be told
	// apart from "unset"; the default wins.
	if cfg.Output.Indent == 0 {
		cfg.Output.Indent = DefaultOutputIndent
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = DefaultLogOutput
	}
}

//Personal.AI order the ending
