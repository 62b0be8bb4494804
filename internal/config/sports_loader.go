package config

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

type SportFeed struct {
	Key   string `yaml:"key"`
	Label string `yaml:"label"`
	// Periods is "quarters" or "halves"; informational for display.
	Periods string `yaml:"periods"`
}

// SportsConfig is the optional YAML overlay for the sports the system follows
// and extra upstream status vocabulary.
type SportsConfig struct {
	Sports          []SportFeed       `yaml:"sports"`
	StatusOverrides map[string]string `yaml:"status_overrides"`
}

func LoadSports(path string) (SportsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SportsConfig{}, fmt.Errorf("read sports config: %w", err)
	}

	var sc SportsConfig
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return SportsConfig{}, fmt.Errorf("parse sports config: %w", err)
	}

	for i, s := range sc.Sports {
		if s.Key == "" {
			return SportsConfig{}, fmt.Errorf("sports config: entry %d has no key", i)
		}
	}
	for raw, status := range sc.StatusOverrides {
		if !slices.Contains([]string{"scheduled", "live", "final"}, status) {
			return SportsConfig{}, fmt.Errorf("sports config: status override %q -> %q is not scheduled|live|final", raw, status)
		}
	}
	return sc, nil
}

// Keys returns the sport tags, or fallback when the file lists none.
func (sc SportsConfig) Keys(fallback []string) []string {
	if len(sc.Sports) == 0 {
		return fallback
	}
	keys := make([]string, 0, len(sc.Sports))
	for _, s := range sc.Sports {
		keys = append(keys, s.Key)
	}
	return keys
}

// ResolveSports loads the YAML overlay when cfg names one and returns the
// effective sport list.
func ResolveSports(cfg *Config) (SportsConfig, []string, error) {
	if cfg.SportsConfigPath == "" {
		return SportsConfig{}, cfg.SRSports, nil
	}
	sc, err := LoadSports(cfg.SportsConfigPath)
	if err != nil {
		return SportsConfig{}, nil, err
	}
	return sc, sc.Keys(cfg.SRSports), nil
}
