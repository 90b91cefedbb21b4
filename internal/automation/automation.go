// Package automation runs many closed-loop experiments from one request:
// scripted suites with metric expectations, parameter sweeps over the
// initial state and Monte Carlo perturbation trials.
package automation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/a8m/envsubst"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/gengqx/apollo/internal/config"
	"github.com/gengqx/apollo/internal/controltask"
	"github.com/gengqx/apollo/internal/experiment"
	"github.com/gengqx/apollo/internal/sim"
)

var (
	ErrEmptySuite   = errors.New("automation: suite has no steps")
	ErrUnknownParam = errors.New("automation: unknown sweep parameter")
)

// Suite is a scripted sequence of runs.
type Suite struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Steps       []Step `yaml:"steps"`
}

// Step is a single run of a suite. Zero fields keep the base configuration.
type Step struct {
	Name        string                  `yaml:"name"`
	Scenario    string                  `yaml:"scenario"`
	Preset      string                  `yaml:"preset"`
	Controllers []string                `yaml:"controllers"`
	Integrator  string                  `yaml:"integrator"`
	Dt          float64                 `yaml:"dt"`
	Duration    float64                 `yaml:"duration"`
	InitState   *config.InitStateConfig `yaml:"init_state"`
	Expect      map[string]Bound        `yaml:"expect"`
}

// Bound limits a metric. A nil side is open.
type Bound struct {
	Min *float64 `yaml:"min"`
	Max *float64 `yaml:"max"`
}

func (b Bound) check(metric string, v float64) error {
	if b.Min != nil && v < *b.Min {
		return fmt.Errorf("%s = %.4f, want >= %.4f", metric, v, *b.Min)
	}
	if b.Max != nil && v > *b.Max {
		return fmt.Errorf("%s = %.4f, want <= %.4f", metric, v, *b.Max)
	}
	return nil
}

type StepResult struct {
	Step     Step
	Config   config.Config
	Result   *sim.Result
	Failures []string
}

func (r StepResult) Passed() bool { return len(r.Failures) == 0 }

// LoadSuite reads a suite from a yaml file, expanding ${VAR} references
// first. Unknown keys are rejected.
func LoadSuite(path string) (*Suite, error) {
	data, err := envsubst.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var suite Suite
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&suite); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("suite %s: %w", path, err)
	}
	if len(suite.Steps) == 0 {
		return nil, fmt.Errorf("suite %s: %w", path, ErrEmptySuite)
	}
	return &suite, nil
}

// Config layers the step over base: the preset first, then explicit fields.
func (s Step) Config(base *config.Config) (*config.Config, error) {
	c := *base
	if s.Scenario != "" {
		c.Scenario = s.Scenario
	}
	if s.Preset != "" {
		p := config.GetPreset(c.Scenario, s.Preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset %q for %s", s.Preset, c.Scenario)
		}
		c.Apply(p)
	}
	if len(s.Controllers) > 0 {
		c.Controllers = s.Controllers
	}
	if s.Integrator != "" {
		c.Integrator = s.Integrator
	}
	if s.Dt > 0 {
		c.Dt = s.Dt
	}
	if s.Duration > 0 {
		c.Duration = s.Duration
	}
	if s.InitState != nil {
		c.InitState = *s.InitState
	}
	return &c, c.Validate()
}

func (s Step) label(i int) string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("step %d", i+1)
}

// RunSuite executes the steps in order, each with a fresh controller chain.
// Failed expectations are reported per step; setup or run errors abort the
// suite and return the results so far.
func RunSuite(ctx context.Context, suite *Suite, base *config.Config, deps controltask.Deps) ([]StepResult, error) {
	logger := loggerOf(deps)
	results := make([]StepResult, 0, len(suite.Steps))

	for i, step := range suite.Steps {
		cfg, err := step.Config(base)
		if err != nil {
			return results, fmt.Errorf("%s: %w", step.label(i), err)
		}
		logger.Infow("running step", "step", step.label(i), "n", i+1, "of", len(suite.Steps), "scenario", cfg.Scenario)

		res, err := runOnce(ctx, cfg, deps)
		if err != nil {
			return results, fmt.Errorf("%s: %w", step.label(i), err)
		}

		sr := StepResult{Step: step, Config: *cfg, Result: res}
		metrics := make([]string, 0, len(step.Expect))
		for m := range step.Expect {
			metrics = append(metrics, m)
		}
		sort.Strings(metrics)
		for _, m := range metrics {
			v, ok := res.Metrics[m]
			if !ok {
				sr.Failures = append(sr.Failures, fmt.Sprintf("%s: no such metric", m))
				continue
			}
			if err := step.Expect[m].check(m, v); err != nil {
				sr.Failures = append(sr.Failures, err.Error())
			}
		}
		if !sr.Passed() {
			logger.Warnw("step failed expectations", "step", step.label(i), "failures", sr.Failures)
		}
		results = append(results, sr)
	}
	return results, nil
}

func runOnce(ctx context.Context, cfg *config.Config, deps controltask.Deps) (*sim.Result, error) {
	e, err := experiment.New(cfg, deps)
	if err != nil {
		return nil, err
	}
	defer e.Close()
	return e.Run(ctx)
}

func loggerOf(deps controltask.Deps) *zap.SugaredLogger {
	if deps.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return deps.Logger
}
