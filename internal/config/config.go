package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/danielpatrickdp/mkw-classifier/internal/agent"
	"github.com/danielpatrickdp/mkw-classifier/internal/gate"
	"gopkg.in/yaml.v3"
)

// #region types
// File is the on-disk controller configuration.
type File struct {
	// Agent is the config used for agents created without explicit parameters.
	Agent   agent.Config  `yaml:"agent"`
	Service ServiceConfig `yaml:"service"`
	Store   StoreConfig   `yaml:"store"`
	Gate    GateConfig    `yaml:"gate"`
	Replay  ReplayConfig  `yaml:"replay"`
}

// ServiceConfig controls the gRPC decision service.
type ServiceConfig struct {
	Addr        string `yaml:"addr"`
	MetricsAddr string `yaml:"metrics_addr"` // empty disables /metrics
	// SnapshotEvery commits a snapshot every N turns per agent (0 = never).
	SnapshotEvery int `yaml:"snapshot_every"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// GateConfig mirrors gate.GateConfig with YAML tags.
type GateConfig struct {
	MaxAbsStrength float64 `yaml:"max_abs_strength"`
}

// ReplayConfig controls offline replay of recorded sessions.
type ReplayConfig struct {
	Workers int `yaml:"workers"`
}

// #endregion types

// #region defaults
// Default returns the configuration used when no file is given.
func Default() File {
	return File{
		Agent: agent.DefaultConfig(),
		Service: ServiceConfig{
			Addr:          "localhost:50061",
			MetricsAddr:   "localhost:9464",
			SnapshotEvery: 1,
		},
		Store:  StoreConfig{Path: "mkw_agents.db"},
		Gate:   GateConfig{MaxAbsStrength: gate.DefaultGateConfig().MaxAbsStrength},
		Replay: ReplayConfig{Workers: 4},
	}
}

// ToGateConfig converts to the gate package's config.
func (g GateConfig) ToGateConfig() gate.GateConfig {
	return gate.GateConfig{MaxAbsStrength: g.MaxAbsStrength}
}

// #endregion defaults

// #region load
// Load reads a YAML file over the defaults, then applies environment
// overrides. An empty path skips the file.
func Load(path string) (File, error) {
	f := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return File{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &f); err != nil {
			return File{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := ApplyEnv(&f, os.Getenv); err != nil {
		return File{}, err
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// ApplyEnv overrides fields from MKW_* variables.
func ApplyEnv(f *File, getenv func(string) string) error {
	f.Store.Path = envOr(getenv, "MKW_DB", f.Store.Path)
	f.Service.Addr = envOr(getenv, "MKW_ADDR", f.Service.Addr)
	f.Service.MetricsAddr = envOr(getenv, "MKW_METRICS_ADDR", f.Service.MetricsAddr)
	if v := getenv("MKW_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MKW_SEED: %w", err)
		}
		f.Agent.Seed = seed
	}
	return nil
}

// Validate checks the parts of the file that would otherwise fail late.
func (f File) Validate() error {
	if err := f.Agent.Validate(); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	if f.Service.SnapshotEvery < 0 {
		return fmt.Errorf("service.snapshot_every must be >= 0, got %d", f.Service.SnapshotEvery)
	}
	if f.Replay.Workers < 1 {
		return fmt.Errorf("replay.workers must be >= 1, got %d", f.Replay.Workers)
	}
	return nil
}

// #endregion load

// #region helpers
func envOr(getenv func(string) string, key, fallback string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
