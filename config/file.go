package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// LoadFile overlays the YAML file at path onto the environment-derived
// configuration. Keys absent from the file keep their Load() values.
// An empty path returns Load() unchanged.
func LoadFile(path string) (*Config, error) {
	cfg := Load()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// FromEnv loads the file named by BLOTTER_CONFIG, if any.
func FromEnv() (*Config, error) {
	return LoadFile(os.Getenv("BLOTTER_CONFIG"))
}
