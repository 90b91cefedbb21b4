package sim

import (
	"context"
	"fmt"

	"github.com/gengqx/apollo/internal/msgs"
)

// Simulator closes the loop between a control chain and a vehicle model
// tracking a fixed trajectory.
type Simulator struct {
	dyn        Dynamics
	integrator Integrator
	controller Controller
	traj       *msgs.ADCTrajectory
	metrics    []Metric
	observers  []Observer
}

func New(dyn Dynamics, integrator Integrator, controller Controller, traj *msgs.ADCTrajectory) *Simulator {
	return &Simulator{
		dyn:        dyn,
		integrator: integrator,
		controller: controller,
		traj:       traj,
		metrics:    make([]Metric, 0),
		observers:  make([]Observer, 0),
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// VehicleMessages builds the localization and chassis the control chain
// sees for vehicle state x at time t.
func VehicleMessages(x State, t float64, seq uint32) (*msgs.LocalizationEstimate, *msgs.Chassis) {
	header := msgs.Header{TimestampSec: t, ModuleName: "sim", SequenceNum: seq}
	loc := &msgs.LocalizationEstimate{
		Header:          header,
		MeasurementTime: t,
		Pose: msgs.Pose{
			Position: msgs.Vec3{X: x[IdxX], Y: x[IdxY]},
			Heading:  x[IdxHeading],
		},
	}
	chassis := &msgs.Chassis{
		Header:        header,
		EngineStarted: true,
		SpeedMps:      x[IdxSpeed],
		GearLocation:  msgs.GearDrive,
		DrivingMode:   msgs.CompleteAutoDrive,
	}
	return loc, chassis
}

func (s *Simulator) Run(ctx context.Context, x0 State, cfg Config) (*Result, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}
	if len(x0) != s.dyn.StateDim() {
		return nil, fmt.Errorf("initial state has %d elements, model wants %d", len(x0), s.dyn.StateDim())
	}

	steps := int(cfg.Duration/cfg.Dt + 0.5)
	result := &Result{
		States:   make([]State, 0, steps+1),
		Controls: make([]Control, 0, steps),
		Commands: make([]msgs.ControlCommand, 0, steps),
		Times:    make([]float64, 0, steps+1),
		Metrics:  make(map[string]float64),
		Errors:   make([]error, 0),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	x := x0.Clone()
	t := 0.0
	dt := cfg.Dt

	result.States = append(result.States, x.Clone())
	result.Times = append(result.Times, t)

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		loc, chassis := VehicleMessages(x, t, uint32(i))
		cmd := msgs.ControlCommand{Header: msgs.Header{TimestampSec: t, ModuleName: "control", SequenceNum: uint32(i)}}
		if err := s.controller.ComputeControlCommand(loc, chassis, s.traj, &cmd); err != nil {
			result.Errors = append(result.Errors, CycleError{Time: t, Step: i, Err: err})
			cmd.SetSafeDefaults(chassis)
		}
		u := ControlFromCommand(&cmd)

		for _, m := range s.metrics {
			m.Observe(x, u, t)
		}
		for _, obs := range s.observers {
			obs.OnStep(x, &cmd, t)
		}

		newX := s.integrator.Step(s.dyn, x, u, t, dt)
		if cfg.ValidateState && !newX.IsValid() {
			result.Errors = append(result.Errors, SimError{Time: t, Step: i, Message: "invalid state (NaN/Inf)"})
			break
		}

		x = newX
		t += dt
		result.StepsTaken++

		result.States = append(result.States, x.Clone())
		result.Controls = append(result.Controls, u)
		result.Commands = append(result.Commands, cmd)
		result.Times = append(result.Times, t)
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	return result, nil
}

func (s *Simulator) validateConfig(cfg Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %f", cfg.Duration)
	}
	if err := s.traj.Validate(); err != nil {
		return fmt.Errorf("reference trajectory: %w", err)
	}
	return nil
}
