package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const defaultTriagePriority = 99

// Load reads and parses a fixfactory configuration from the given YAML
// file path. After parsing, it applies defaults to fields left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault searches for a config in standard locations and loads the
// first one found. Search order: ./fixfactory.yaml, ~/.fixfactory/config.yaml
func LoadDefault() (*Config, error) {
	candidates := []string{"fixfactory.yaml"}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".fixfactory", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	return nil, fmt.Errorf("no fixfactory config found (searched: %v)", candidates)
}

// applyDefaults fills in unset fields: parser names, loop tuning, and
// the triage priority.
func applyDefaults(cfg *Config) {
	for i := range cfg.Checks {
		c := &cfg.Checks[i]
		if c.Parser == "" {
			c.Parser = "generic"
		}
	}

	l := &cfg.Loop
	if l.MaxIterations == 0 {
		l.MaxIterations = 5
	}
	if l.StagnationWindow == 0 {
		l.StagnationWindow = 3
	}
	if l.AcceptanceThreshold == 0 {
		l.AcceptanceThreshold = 0.30
	}
	if l.CacheThreshold == 0 {
		l.CacheThreshold = 0.70
	}

	if cfg.Triage.Priority == 0 {
		cfg.Triage.Priority = defaultTriagePriority
	}
}
