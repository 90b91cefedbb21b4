package automation

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/gengqx/apollo/internal/config"
	"github.com/gengqx/apollo/internal/controltask"
	"github.com/gengqx/apollo/internal/experiment"
	"github.com/gengqx/apollo/internal/sim"
)

// Sweepable initial-state parameters.
const (
	ParamLateralOffset = "lateral_offset"
	ParamHeadingOffset = "heading_offset"
	ParamInitialSpeed  = "initial_speed"
	ParamTargetSpeed   = "target_speed"
)

func SweepParams() []string {
	return []string{ParamHeadingOffset, ParamInitialSpeed, ParamLateralOffset, ParamTargetSpeed}
}

func setParam(s *config.InitStateConfig, name string, v float64) error {
	switch name {
	case ParamLateralOffset:
		s.LateralOffset = v
	case ParamHeadingOffset:
		s.HeadingOffset = v
	case ParamInitialSpeed:
		s.InitialSpeed = v
	case ParamTargetSpeed:
		s.TargetSpeed = v
	default:
		return fmt.Errorf("%w: %q (have %v)", ErrUnknownParam, name, SweepParams())
	}
	return nil
}

// ParameterSweep runs the base configuration across evenly spaced values of
// one initial-state parameter.
type ParameterSweep struct {
	Param    string
	Min, Max float64
	NumSteps int
	Workers  int
}

type SweepResult struct {
	Value   float64
	Metrics map[string]float64
	Errors  int
}

func (sw *ParameterSweep) values() []float64 {
	if sw.NumSteps <= 1 {
		return []float64{sw.Min}
	}
	step := (sw.Max - sw.Min) / float64(sw.NumSteps-1)
	out := make([]float64, sw.NumSteps)
	for i := range out {
		out[i] = sw.Min + float64(i)*step
	}
	return out
}

// batch builds one experiment per config and runs them together. Results
// come back in config order.
func batch(ctx context.Context, cfgs []*config.Config, deps controltask.Deps, workers int) ([]*sim.Result, error) {
	exps := make([]*experiment.Experiment, 0, len(cfgs))
	defer func() {
		for _, e := range exps {
			e.Close()
		}
	}()

	jobs := make([]sim.Job, 0, len(cfgs))
	for i, cfg := range cfgs {
		e, err := experiment.New(cfg, deps)
		if err != nil {
			return nil, err
		}
		exps = append(exps, e)
		jobs = append(jobs, e.Job(strconv.Itoa(i)))
	}

	byName, err := sim.RunBatch(ctx, jobs, workers)
	if err != nil {
		return nil, err
	}
	out := make([]*sim.Result, len(cfgs))
	for i := range cfgs {
		out[i] = byName[strconv.Itoa(i)]
	}
	return out, nil
}

// RunSweep runs every sweep value concurrently and returns the results in
// ascending parameter order.
func RunSweep(ctx context.Context, sw *ParameterSweep, base *config.Config, deps controltask.Deps) ([]SweepResult, error) {
	values := sw.values()
	cfgs := make([]*config.Config, len(values))
	for i, v := range values {
		c := *base
		if err := setParam(&c.InitState, sw.Param, v); err != nil {
			return nil, err
		}
		cfgs[i] = &c
	}

	loggerOf(deps).Infow("sweeping", "param", sw.Param, "min", sw.Min, "max", sw.Max, "steps", len(values))
	results, err := batch(ctx, cfgs, deps, sw.Workers)
	if err != nil {
		return nil, err
	}

	out := make([]SweepResult, len(values))
	for i, res := range results {
		out[i] = SweepResult{Value: values[i], Metrics: res.Metrics, Errors: len(res.Errors)}
	}
	return out, nil
}

// MonteCarloConfig perturbs the base initial state uniformly within the
// given magnitudes.
type MonteCarloConfig struct {
	MaxLateralOffset float64
	MaxHeadingOffset float64
	NumTrials        int
	Seed             int64
	Workers          int

	// MinOnTrack is the on_track fraction a stable trial must reach.
	MinOnTrack float64
}

type MonteCarloResult struct {
	TrialID   int
	InitState config.InitStateConfig
	Metrics   map[string]float64
	Stable    bool
}

// RunMonteCarlo executes NumTrials perturbed runs. A trial is stable when no
// cycle failed and it stayed on track often enough. Seed 0 draws a seed
// from the clock.
func RunMonteCarlo(ctx context.Context, mc *MonteCarloConfig, base *config.Config, deps controltask.Deps) ([]MonteCarloResult, error) {
	if mc.NumTrials <= 0 {
		return nil, fmt.Errorf("automation: trials must be positive, got %d", mc.NumTrials)
	}
	rng := rand.New(rand.NewSource(mc.Seed))
	if mc.Seed == 0 {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	minOnTrack := mc.MinOnTrack
	if minOnTrack <= 0 {
		minOnTrack = 0.95
	}

	cfgs := make([]*config.Config, mc.NumTrials)
	for i := range cfgs {
		c := *base
		c.InitState.LateralOffset += (rng.Float64() - 0.5) * 2 * mc.MaxLateralOffset
		c.InitState.HeadingOffset += (rng.Float64() - 0.5) * 2 * mc.MaxHeadingOffset
		cfgs[i] = &c
	}

	loggerOf(deps).Infow("monte carlo", "trials", mc.NumTrials, "scenario", base.Scenario)
	results, err := batch(ctx, cfgs, deps, mc.Workers)
	if err != nil {
		return nil, err
	}

	out := make([]MonteCarloResult, len(results))
	for i, res := range results {
		onTrack, ok := res.Metrics["on_track"]
		out[i] = MonteCarloResult{
			TrialID:   i,
			InitState: cfgs[i].InitState,
			Metrics:   res.Metrics,
			Stable:    ok && onTrack >= minOnTrack && len(res.Errors) == 0,
		}
	}
	return out, nil
}

// MonteCarloStats computes summary statistics from Monte Carlo results
func MonteCarloStats(results []MonteCarloResult) (stableCount int, unstableCount int) {
	for _, r := range results {
		if r.Stable {
			stableCount++
		} else {
			unstableCount++
		}
	}
	return
}
