// Package experiment assembles one closed loop from a run configuration:
// the scenario's reference, a controller chain built from the registry and
// the bicycle model, with the standard tracking metrics attached.
package experiment

import (
	"context"
	"fmt"

	"github.com/gengqx/apollo/internal/config"
	"github.com/gengqx/apollo/internal/controlloop"
	"github.com/gengqx/apollo/internal/controltask"
	"github.com/gengqx/apollo/internal/injector"
	"github.com/gengqx/apollo/internal/integrators"
	"github.com/gengqx/apollo/internal/metrics"
	"github.com/gengqx/apollo/internal/models"
	"github.com/gengqx/apollo/internal/sim"
	"github.com/gengqx/apollo/internal/storage"
)

const (
	// OnTrackThreshold is the lateral error, in meters, still counted as on track.
	OnTrackThreshold = 0.5
	// SteeringNoiseFloor is the steering amplitude, in percent, below which
	// oscillation is ignored.
	SteeringNoiseFloor = 2.0
)

type Experiment struct {
	cfg       config.Config
	scenario  *sim.Scenario
	agent     *controlloop.Agent
	simulator *sim.Simulator
	deps      controltask.Deps
}

// New builds and initialises the closed loop for cfg. The returned
// experiment owns a running controller chain; Close stops it.
func New(cfg *config.Config, deps controltask.Deps) (*Experiment, error) {
	sc, err := sim.NewScenario(cfg.Scenario, ScenarioOptions(cfg))
	if err != nil {
		return nil, err
	}
	integ, err := integrators.New(cfg.Integrator)
	if err != nil {
		return nil, err
	}

	agent, err := controlloop.NewAgentFromRegistry(cfg.Controllers, deps, injector.New(cfg.HistoryLen))
	if err != nil {
		return nil, err
	}
	if err := agent.Init(); err != nil {
		agent.Stop()
		return nil, fmt.Errorf("init %v: %w", cfg.Controllers, err)
	}

	s := sim.New(models.NewBicycle(), integ, agent, sc.Trajectory)
	s.AddMetric(metrics.NewLateralError(sc.Trajectory))
	s.AddMetric(metrics.NewSpeedError(sc.Trajectory))
	s.AddMetric(metrics.NewPedalEffort())
	s.AddMetric(metrics.NewSteeringActivity())
	s.AddMetric(metrics.NewOnTrack(sc.Trajectory, OnTrackThreshold))
	s.AddMetric(metrics.NewSteeringOscillation(SteeringNoiseFloor))

	return &Experiment{cfg: *cfg, scenario: sc, agent: agent, simulator: s, deps: deps}, nil
}

// ScenarioOptions maps the configured initial state onto the scenario.
func ScenarioOptions(cfg *config.Config) sim.ScenarioOptions {
	return sim.ScenarioOptions{
		LateralOffset: cfg.InitState.LateralOffset,
		HeadingOffset: cfg.InitState.HeadingOffset,
		InitialSpeed:  cfg.InitState.InitialSpeed,
		TargetSpeed:   cfg.InitState.TargetSpeed,
	}
}

func (e *Experiment) Config() config.Config        { return e.cfg }
func (e *Experiment) Scenario() *sim.Scenario      { return e.scenario }
func (e *Experiment) Agent() *controlloop.Agent    { return e.agent }
func (e *Experiment) Deps() controltask.Deps       { return e.deps }
func (e *Experiment) GetSimulator() *sim.Simulator { return e.simulator }

// SimConfig is the run timing; a zero configured duration uses the
// scenario's own.
func (e *Experiment) SimConfig() sim.Config {
	sc := sim.DefaultConfig()
	sc.Dt = e.cfg.Dt
	sc.Duration = e.cfg.Duration
	if sc.Duration == 0 {
		sc.Duration = e.scenario.Duration
	}
	return sc
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	return e.simulator.Run(ctx, e.scenario.Initial, e.SimConfig())
}

// Job wraps the experiment for sim.RunBatch.
func (e *Experiment) Job(name string) sim.Job {
	return sim.Job{Name: name, Sim: e.simulator, Initial: e.scenario.Initial, Config: e.SimConfig()}
}

// Metadata describes a run of this experiment for storage.
func (e *Experiment) Metadata() storage.RunMetadata {
	sc := e.SimConfig()
	return storage.RunMetadata{
		Scenario:    e.scenario.Name,
		Controllers: e.agent.Tasks(),
		Integrator:  e.cfg.Integrator,
		Dt:          sc.Dt,
		Duration:    sc.Duration,
	}
}

// Reload swaps in a fresh instance of the named task, then resets the chain
// so the next Run replays from the post-Init baseline.
func (e *Experiment) Reload(task string) error {
	if err := e.agent.Reload(task, e.deps); err != nil {
		return err
	}
	return e.agent.Reset()
}

func (e *Experiment) Close() {
	e.agent.Stop()
}
