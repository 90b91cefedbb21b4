package config

import "sort"

// Presets are named starting conditions per scenario.
var Presets = map[string]map[string]*Config{
	"straight": {
		"nominal": {
			Scenario: "straight", Dt: 0.01,
			InitState: InitStateConfig{TargetSpeed: 10},
		},
		"offset": {
			Scenario: "straight", Dt: 0.01,
			InitState: InitStateConfig{LateralOffset: 0.8, HeadingOffset: 0.05, TargetSpeed: 10},
		},
		"highway": {
			Scenario: "straight", Dt: 0.01, Duration: 15,
			InitState: InitStateConfig{InitialSpeed: 15, TargetSpeed: 20},
		},
	},
	"curve": {
		"nominal": {
			Scenario: "curve", Dt: 0.01,
		},
		"offset": {
			Scenario: "curve", Dt: 0.01,
			InitState: InitStateConfig{LateralOffset: -0.5},
		},
		"fast": {
			Scenario: "curve", Dt: 0.01, Duration: 18,
			InitState: InitStateConfig{InitialSpeed: 9, TargetSpeed: 9},
		},
	},
	"stop": {
		"nominal": {
			Scenario: "stop", Dt: 0.01,
		},
		"hard": {
			Scenario: "stop", Dt: 0.01,
			InitState: InitStateConfig{InitialSpeed: 12, TargetSpeed: 12},
		},
	},
}

func GetPreset(scenario, preset string) *Config {
	scenarioPresets, ok := Presets[scenario]
	if !ok {
		return nil
	}
	cfg, ok := scenarioPresets[preset]
	if !ok {
		return nil
	}
	return cfg
}

func ListPresets(scenario string) []string {
	scenarioPresets, ok := Presets[scenario]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(scenarioPresets))
	for name := range scenarioPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply copies the scenario, timing and initial state of p onto c, keeping
// the controller chain and paths of c.
func (c *Config) Apply(p *Config) {
	c.Scenario = p.Scenario
	if p.Dt > 0 {
		c.Dt = p.Dt
	}
	c.Duration = p.Duration
	c.InitState = p.InitState
}
