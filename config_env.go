package goSession

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by [LoadConfigFromEnv].
const EnvPrefix = "GOSESSION_"

// LoadConfigFromEnv returns [DefaultConfig] overlaid with GOSESSION_* variables,
// for example GOSESSION_SERVER_INSTANCE_URL or GOSESSION_HTTP_TIMEOUT=10s.
// Unset variables keep their defaults.
func LoadConfigFromEnv() (Config, error) {
	cfg := defaultConfig()
	if err := applyEnv(&cfg, nil); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, environment map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix}
	if environment != nil {
		opts.Environment = environment
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse env config: %w", err)
	}
	return nil
}

// LoadConfigFile reads a YAML file over [DefaultConfig]. Keys missing from the
// file keep their defaults. Environment variables are applied on top when
// withEnv is true.
func LoadConfigFile(path string, withEnv bool) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	cfg, err := parseConfigYAML(data)
	if err != nil {
		return Config{}, err
	}
	if withEnv {
		if err := applyEnv(&cfg, nil); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

func parseConfigYAML(data []byte) (Config, error) {
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}
