// Package config holds the controlsim run configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/a8m/envsubst"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDt             = 0.01
	DefaultScenario       = "straight"
	DefaultIntegrator     = "rk4"
	DefaultHistoryLen     = 10
	DefaultLogLevel       = "info"
	DefaultRunsDir        = "runs"
	DefaultPluginIndex    = "conf/plugin_index.yaml"
	DefaultCalibrationTbl = "conf/calibration_table.pb.txt"
)

type Config struct {
	Controllers          []string        `yaml:"controllers"`
	PluginIndex          string          `yaml:"plugin_index"`
	PluginSearchPaths    []string        `yaml:"plugin_search_paths,omitempty"`
	CalibrationTableFile string          `yaml:"calibration_table_file"`
	Scenario             string          `yaml:"scenario"`
	Integrator           string          `yaml:"integrator"`
	Dt                   float64         `yaml:"dt"`
	Duration             float64         `yaml:"duration"` // 0 uses the scenario's own duration
	HistoryLen           int             `yaml:"history_len"`
	LogLevel             string          `yaml:"log_level"`
	RunsDir              string          `yaml:"runs_dir"`
	Watch                bool            `yaml:"watch"`
	InitState            InitStateConfig `yaml:"init_state"`
}

type InitStateConfig struct {
	LateralOffset float64 `yaml:"lateral_offset"`
	HeadingOffset float64 `yaml:"heading_offset"`
	InitialSpeed  float64 `yaml:"initial_speed"`
	TargetSpeed   float64 `yaml:"target_speed"`
}

func DefaultConfig() *Config {
	return &Config{
		Controllers:          []string{"LonController", "LatController"},
		PluginIndex:          DefaultPluginIndex,
		CalibrationTableFile: DefaultCalibrationTbl,
		Scenario:             DefaultScenario,
		Integrator:           DefaultIntegrator,
		Dt:                   DefaultDt,
		HistoryLen:           DefaultHistoryLen,
		LogLevel:             DefaultLogLevel,
		RunsDir:              DefaultRunsDir,
	}
}

// Load reads path over the defaults. ${VAR} references are expanded from
// the environment first and unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := envsubst.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	switch {
	case len(c.Controllers) == 0:
		return errors.New("at least one controller is required")
	case c.Dt <= 0:
		return fmt.Errorf("dt must be positive, got %f", c.Dt)
	case c.Duration < 0:
		return fmt.Errorf("duration must not be negative, got %f", c.Duration)
	case c.HistoryLen < 0:
		return fmt.Errorf("history_len must not be negative, got %d", c.HistoryLen)
	}
	return nil
}
