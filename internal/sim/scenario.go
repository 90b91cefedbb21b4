package sim

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/gengqx/apollo/internal/msgs"
)

var ErrUnknownScenario = errors.New("sim: unknown scenario")

// Scenario is a reference trajectory plus the vehicle state it starts from.
type Scenario struct {
	Name        string
	Description string
	Trajectory  *msgs.ADCTrajectory
	Initial     State
	Duration    float64
}

// ScenarioOptions perturbs the start of a scenario.
type ScenarioOptions struct {
	LateralOffset float64
	HeadingOffset float64
	InitialSpeed  float64
	TargetSpeed   float64
}

type scenarioBuilder struct {
	description string
	build       func(opts ScenarioOptions) Scenario
}

var scenarios = map[string]scenarioBuilder{
	"straight": {"cruise along a straight line", straightScenario},
	"curve":    {"straight lead-in into a 90 degree left arc", curveScenario},
	"stop":     {"cruise then brake to a standstill", stopScenario},
}

func ScenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func NewScenario(name string, opts ScenarioOptions) (*Scenario, error) {
	b, ok := scenarios[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScenario, name)
	}
	sc := b.build(opts)
	sc.Name = name
	sc.Description = b.description
	sc.Initial[IdxY] += opts.LateralOffset
	sc.Initial[IdxHeading] += opts.HeadingOffset
	return &sc, nil
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func straightScenario(opts ScenarioOptions) Scenario {
	v := orDefault(opts.TargetSpeed, 10)
	const length = 250.0
	path := make([]msgs.PathPoint, 0, int(length)+1)
	for s := 0.0; s <= length; s++ {
		path = append(path, msgs.PathPoint{X: s, S: s})
	}
	return Scenario{
		Trajectory: buildTrajectory(path, func(float64) (float64, float64) { return v, 0 }),
		Initial:    State{0, 0, 0, opts.InitialSpeed},
		Duration:   20,
	}
}

func curveScenario(opts ScenarioOptions) Scenario {
	v := orDefault(opts.TargetSpeed, 6)
	const (
		leadIn  = 30.0
		radius  = 40.0
		leadOut = 60.0
	)
	arc := radius * math.Pi / 2
	total := leadIn + arc + leadOut

	path := make([]msgs.PathPoint, 0, int(total)+1)
	for s := 0.0; s <= total; s++ {
		var p msgs.PathPoint
		switch {
		case s < leadIn:
			p = msgs.PathPoint{X: s}
		case s < leadIn+arc:
			phi := (s - leadIn) / radius
			p = msgs.PathPoint{
				X:     leadIn + radius*math.Sin(phi),
				Y:     radius * (1 - math.Cos(phi)),
				Theta: phi,
				Kappa: 1 / radius,
			}
		default:
			p = msgs.PathPoint{X: leadIn + radius, Y: radius + (s - leadIn - arc), Theta: math.Pi / 2}
		}
		p.S = s
		path = append(path, p)
	}
	return Scenario{
		Trajectory: buildTrajectory(path, func(float64) (float64, float64) { return v, 0 }),
		Initial:    State{0, 0, 0, orDefault(opts.InitialSpeed, v)},
		Duration:   25,
	}
}

func stopScenario(opts ScenarioOptions) Scenario {
	v := orDefault(opts.TargetSpeed, 8)
	const (
		brakeAt = 30.0
		stopAt  = 55.0
		length  = 70.0
	)
	decel := v * v / (2 * (stopAt - brakeAt))

	path := make([]msgs.PathPoint, 0, int(length)+1)
	for s := 0.0; s <= length; s++ {
		path = append(path, msgs.PathPoint{X: s, S: s})
	}
	profile := func(s float64) (float64, float64) {
		switch {
		case s < brakeAt:
			return v, 0
		case s < stopAt:
			return math.Sqrt(math.Max(0, v*v-2*decel*(s-brakeAt))), -decel
		default:
			return 0, 0
		}
	}
	return Scenario{
		Trajectory: buildTrajectory(path, profile),
		Initial:    State{0, 0, 0, orDefault(opts.InitialSpeed, v)},
		Duration:   15,
	}
}

// buildTrajectory attaches a speed profile to path and derives relative
// times from it. Points the vehicle never reaches share the last time.
func buildTrajectory(path []msgs.PathPoint, profile func(s float64) (v, a float64)) *msgs.ADCTrajectory {
	traj := &msgs.ADCTrajectory{
		Header:           msgs.Header{ModuleName: "planning"},
		Gear:             msgs.GearDrive,
		TrajectoryPoints: make([]msgs.TrajectoryPoint, 0, len(path)),
	}
	t := 0.0
	for i, p := range path {
		v, a := profile(p.S)
		if i > 0 {
			prev := traj.TrajectoryPoints[i-1]
			if avg := (prev.V + v) / 2; avg > 1e-3 {
				t += (p.S - prev.PathPoint.S) / avg
			}
		}
		traj.TrajectoryPoints = append(traj.TrajectoryPoints, msgs.TrajectoryPoint{
			PathPoint:    p,
			V:            v,
			A:            a,
			RelativeTime: t,
		})
	}
	last := path[len(path)-1]
	traj.TotalPathLength = last.S
	traj.TotalPathTime = t
	return traj
}
