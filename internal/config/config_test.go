package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/mkw-classifier/internal/agent"
	"github.com/danielpatrickdp/mkw-classifier/internal/goods"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mkw.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
agent:
  b11: 0.35
  b12: 0.35
  production_good: 2
  consumption_good: 1
  storing_costs: [0.1, 0.2, 0.3]
  seed: 17
service:
  addr: "0.0.0.0:7000"
replay:
  workers: 8
`)
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.Agent.B11 != 0.35 || f.Agent.B12 != 0.35 {
		t.Fatalf("b11/b12 not loaded: %+v", f.Agent)
	}
	if f.Agent.B21 != agent.DefaultConfig().B21 {
		t.Fatalf("unset b21 should keep default, got %f", f.Agent.B21)
	}
	if f.Agent.ProductionGood != goods.Good2 || f.Agent.ConsumptionGood != goods.Good1 {
		t.Fatalf("goods not loaded: %+v", f.Agent)
	}
	if f.Agent.StoringCosts != [3]float64{0.1, 0.2, 0.3} {
		t.Fatalf("storing costs not loaded: %v", f.Agent.StoringCosts)
	}
	if f.Service.Addr != "0.0.0.0:7000" || f.Service.MetricsAddr != Default().Service.MetricsAddr {
		t.Fatalf("unexpected service config: %+v", f.Service)
	}
	if f.Replay.Workers != 8 {
		t.Fatalf("expected 8 workers, got %d", f.Replay.Workers)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	f, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.Store.Path == "" {
		t.Fatal("expected default store path")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := writeFile(t, "agent: [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadInvalidAgent(t *testing.T) {
	path := writeFile(t, "agent:\n  production_good: 0\n  consumption_good: 0\n")
	_, err := Load(path)
	if !errors.Is(err, agent.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	f := Default()
	env := map[string]string{
		"MKW_DB":   "/tmp/x.db",
		"MKW_ADDR": ":9999",
		"MKW_SEED": "42",
	}
	if err := ApplyEnv(&f, func(k string) string { return env[k] }); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if f.Store.Path != "/tmp/x.db" || f.Service.Addr != ":9999" || f.Agent.Seed != 42 {
		t.Fatalf("env not applied: %+v", f)
	}
	if f.Service.MetricsAddr != Default().Service.MetricsAddr {
		t.Fatal("unset env var should keep existing value")
	}
}

func TestApplyEnvBadSeed(t *testing.T) {
	f := Default()
	err := ApplyEnv(&f, func(k string) string {
		if k == "MKW_SEED" {
			return "not-a-number"
		}
		return ""
	})
	if err == nil {
		t.Fatal("expected error for bad seed")
	}
}

func TestValidateWorkers(t *testing.T) {
	f := Default()
	f.Replay.Workers = 0
	if err := f.Validate(); err == nil {
		t.Fatal("expected error for zero workers")
	}
}
