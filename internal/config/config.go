package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all crosslink configuration.
type Config struct {
	Vaults      []VaultConfig     `yaml:"vaults"`
	Rules       RulesConfig       `yaml:"rules"`
	Database    DatabaseConfig    `yaml:"database"`
	Matcher     MatcherConfig     `yaml:"matcher"`
	Correlation CorrelationConfig `yaml:"correlation"`
	Optimizer   OptimizerConfig   `yaml:"optimizer"`
	Server      ServerConfig      `yaml:"server"`
}

// VaultConfig identifies one document corpus. Name prefixes document
// identities when more than one vault is configured.
type VaultConfig struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

type RulesConfig struct {
	Path string `yaml:"path"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type MatcherConfig struct {
	MinStrength     float64 `yaml:"min_strength"`     // matches below this are dropped
	StrongThreshold float64 `yaml:"strong_threshold"` // tier boundaries for reporting
	MediumThreshold float64 `yaml:"medium_threshold"`
	ReadConcurrency int     `yaml:"read_concurrency"` // parallel document reads
}

type CorrelationConfig struct {
	MinJointSamples int     `yaml:"min_joint_samples"` // docs containing both tags
	MinScore        float64 `yaml:"min_score"`
	MaxPairs        int     `yaml:"max_pairs"`
}

type OptimizerConfig struct {
	MaxDelta           float64 `yaml:"max_delta"` // per-rule per-cycle strength change ceiling
	PromoteRatio       float64 `yaml:"promote_ratio"`
	DemoteRatio        float64 `yaml:"demote_ratio"`
	MinDecisions       int     `yaml:"min_decisions"` // resolved outcomes needed before promote/demote
	StrengthFloor      float64 `yaml:"strength_floor"`
	SynthesisThreshold float64 `yaml:"synthesis_threshold"`
	SynthesisStrength  float64 `yaml:"synthesis_strength"`
	RetentionCycles    int     `yaml:"retention_cycles"` // cycles until an unreversed match counts as retained
	StatsWindow        int     `yaml:"stats_window"`     // cycles of history consulted for promote/demote
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Rules: RulesConfig{
			Path: "crosslink-rules.yaml",
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Matcher: MatcherConfig{
			MinStrength:     0.05,
			StrongThreshold: 0.5,
			MediumThreshold: 0.25,
			ReadConcurrency: 8,
		},
		Correlation: CorrelationConfig{
			MinJointSamples: 3,
			MinScore:        0.3,
			MaxPairs:        100,
		},
		Optimizer: OptimizerConfig{
			MaxDelta:           0.1,
			PromoteRatio:       0.7,
			DemoteRatio:        0.5,
			MinDecisions:       3,
			StrengthFloor:      0.1,
			SynthesisThreshold: 0.75,
			SynthesisStrength:  0.3,
			RetentionCycles:    3,
			StatsWindow:        10,
		},
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37878,
		},
	}
}

// Load reads a YAML config file over the defaults. Env overrides
// CROSSLINK_RULES and CROSSLINK_DB win over both.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if v := os.Getenv("CROSSLINK_RULES"); v != "" {
		cfg.Rules.Path = v
	}
	if v := os.Getenv("CROSSLINK_DB"); v != "" {
		cfg.Database.Path = v
	}

	return cfg, nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
