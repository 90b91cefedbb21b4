package sim

import (
	"fmt"
	"math"

	"github.com/gengqx/apollo/internal/msgs"
)

// Vehicle state layout shared by models, metrics and the simulator.
const (
	IdxX = iota
	IdxY
	IdxHeading
	IdxSpeed
	VehicleStateDim
)

// Actuator layout of a Control, all in percent.
const (
	IdxThrottle = iota
	IdxBrake
	IdxSteering
	VehicleControlDim
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

type Control []float64

// ControlFromCommand maps the actuator fields of cmd onto a Control.
func ControlFromCommand(cmd *msgs.ControlCommand) Control {
	u := make(Control, VehicleControlDim)
	u[IdxThrottle] = cmd.Throttle
	u[IdxBrake] = cmd.Brake
	u[IdxSteering] = cmd.SteeringTarget
	return u
}

type Dynamics interface {
	Derivative(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

type Integrator interface {
	Step(dyn Dynamics, x State, u Control, t float64, dt float64) State
}

// Controller is what the simulator drives each cycle. *controlloop.Agent
// satisfies it.
type Controller interface {
	ComputeControlCommand(
		loc *msgs.LocalizationEstimate,
		chassis *msgs.Chassis,
		traj *msgs.ADCTrajectory,
		cmd *msgs.ControlCommand,
	) error
}

type Metric interface {
	Name() string
	Observe(x State, u Control, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(x State, cmd *msgs.ControlCommand, t float64)
}

type Config struct {
	Dt            float64
	Duration      float64
	ValidateState bool
}

// DefaultConfig runs at the 100 Hz control rate.
func DefaultConfig() Config {
	return Config{Dt: 0.01, Duration: 20, ValidateState: true}
}

type Result struct {
	States     []State
	Controls   []Control
	Commands   []msgs.ControlCommand
	Times      []float64
	Metrics    map[string]float64
	Errors     []error
	StepsTaken int
}

// CycleError records a failed control cycle. The simulator keeps going
// with the safe default command for that cycle.
type CycleError struct {
	Time float64
	Step int
	Err  error
}

func (e CycleError) Error() string {
	return fmt.Sprintf("cycle %d at t=%.3f: %v", e.Step, e.Time, e.Err)
}

func (e CycleError) Unwrap() error {
	return e.Err
}

type SimError struct {
	Time    float64
	Step    int
	Message string
}

func (e SimError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %s", e.Step, e.Time, e.Message)
}
