package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Paths   Paths   `yaml:"paths"`
	Sample  Sample  `yaml:"sample"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
}

// Paths holds the file locations the pipeline operates on. The
// documented defaults are applied here at the boundary; the core
// packages only ever see explicit paths.
type Paths struct {
	CSV    string `yaml:"csv"`
	DB     string `yaml:"db"`
	Schema string `yaml:"schema"`
}

type Sample struct {
	StartDate string `yaml:"start_date"`
	Days      int    `yaml:"days"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ./kpimon.yaml > none (built-in defaults).
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}
	if _, err := os.Stat("kpimon.yaml"); err == nil {
		return "kpimon.yaml", nil
	}
	return "", nil
}

// Load reads and parses a config YAML file. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return parse(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Paths: Paths{
			CSV:    "data/raw_metrics.csv",
			DB:     "data/content_kpi.db",
			Schema: "sql/schema.sql",
		},
		Sample:  Sample{StartDate: "2025-09-01", Days: 30},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if len(data) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}
