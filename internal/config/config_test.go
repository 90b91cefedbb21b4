package config

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Scenario != "straight" {
		t.Errorf("expected scenario straight, got %s", cfg.Scenario)
	}
	if cfg.Dt <= 0 {
		t.Error("dt should be positive")
	}
	if len(cfg.Controllers) == 0 {
		t.Error("expected a default controller chain")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("straight", "offset")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.InitState.LateralOffset != 0.8 {
		t.Errorf("expected lateral offset 0.8, got %f", cfg.InitState.LateralOffset)
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	cfg := GetPreset("straight", "nonexistent")
	if cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}

	cfg = GetPreset("nonexistent", "nominal")
	if cfg != nil {
		t.Error("expected nil for nonexistent scenario")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets("curve")
	if len(presets) != 3 || presets[0] != "fast" {
		t.Errorf("expected sorted curve presets, got %v", presets)
	}

	presets = ListPresets("nonexistent")
	if presets != nil {
		t.Error("expected nil for nonexistent scenario")
	}
}

func TestApplyPresetKeepsChain(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Controllers = []string{"StubController"}
	cfg.Apply(GetPreset("stop", "hard"))

	if cfg.Scenario != "stop" || cfg.InitState.InitialSpeed != 12 {
		t.Errorf("preset not applied: %+v", cfg)
	}
	if len(cfg.Controllers) != 1 || cfg.Controllers[0] != "StubController" {
		t.Errorf("preset should not touch the controller chain: %v", cfg.Controllers)
	}
}

func TestLoad(t *testing.T) {
	g := NewWithT(t)
	dir := t.TempDir()
	t.Setenv("CONTROLSIM_TEST_RUNS", filepath.Join(dir, "runs"))

	path := filepath.Join(dir, "controlsim.yaml")
	g.Expect(os.WriteFile(path, []byte("scenario: curve\nruns_dir: ${CONTROLSIM_TEST_RUNS}\ninit_state:\n  lateral_offset: 0.2\n"), 0644)).To(Succeed())

	cfg, err := Load(path)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cfg.Scenario).To(Equal("curve"))
	g.Expect(cfg.RunsDir).To(Equal(filepath.Join(dir, "runs")))
	g.Expect(cfg.InitState.LateralOffset).To(Equal(0.2))
	g.Expect(cfg.Dt).To(Equal(DefaultDt), "unset keys keep their defaults")
}

func TestLoadRejects(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{"unknown key", "scenari: curve\n"},
		{"negative dt", "dt: -1\n"},
		{"empty chain", "controllers: []\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "bad.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	g := NewWithT(t)
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := DefaultConfig()
	cfg.Watch = true

	g.Expect(Save(path, cfg)).To(Succeed())
	loaded, err := Load(path)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(loaded).To(Equal(cfg))
}
