// Package config provides configuration loading, defaults, and validation for
// msegconv.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all settings.
const envPrefix = "MSEG"

// newViper builds a pre-configured Viper instance: YAML file type, MSEG_ env
// prefix, automatic env binding, and a key replacer that maps "." → "_" so
// that nested keys like "convert.workers" resolve to "MSEG_CONVERT_WORKERS".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindEnvs(v, reflect.TypeOf(Config{}), "")
	return v
}

// bindEnvs registers every mapstructure key so that Unmarshal sees env
// overrides for keys absent from the config file.
func bindEnvs(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, f.Type, key)
			continue
		}
		_ = v.BindEnv(key)
	}
}

// SearchPaths returns the config files tried, in order, when no explicit path
// is given.
func SearchPaths() []string {
	paths := []string{"msegconv.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".msegconv", "config.yaml"))
	}
	return paths
}

// Load reads the YAML file at configPath, merges any MSEG_* environment
// variable overrides, applies defaults for unset fields, and validates the
// result.  With an empty configPath the first existing file of SearchPaths is
// used; when none exists the configuration comes from the environment alone.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		for _, p := range SearchPaths() {
			if _, err := os.Stat(p); err == nil {
				configPath = p
				break
			}
		}
	}
	if configPath == "" {
		return LoadFromEnv()
	}

	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}
	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from MSEG_* environment variables.
//
// Environment variable naming convention:
//
//	MSEG_<SECTION>_<FIELD>   e.g.  MSEG_PATHS_TABLE_DIR, MSEG_CONVERT_GEO
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

//Personal.AI order the ending
