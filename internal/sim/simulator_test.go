package sim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/gengqx/apollo/internal/msgs"
)

// testDynamics moves along heading at the current speed; throttle percent
// is acceleration in cm/s^2 so the arithmetic stays obvious.
type testDynamics struct{}

func (t *testDynamics) Derivative(x State, u Control, time float64) State {
	return State{x[IdxSpeed] * math.Cos(x[IdxHeading]), x[IdxSpeed] * math.Sin(x[IdxHeading]), 0, u[IdxThrottle] / 100}
}

func (t *testDynamics) StateDim() int   { return VehicleStateDim }
func (t *testDynamics) ControlDim() int { return VehicleControlDim }

type testIntegrator struct{}

func (t *testIntegrator) Step(dyn Dynamics, x State, u Control, time float64, dt float64) State {
	dx := dyn.Derivative(x, u, time)
	out := make(State, len(x))
	for i := range x {
		out[i] = x[i] + dt*dx[i]
	}
	return out
}

type testController struct {
	throttle float64
	failAt   map[int]bool
	calls    int
	lastLoc  *msgs.LocalizationEstimate
}

func (c *testController) ComputeControlCommand(loc *msgs.LocalizationEstimate, chassis *msgs.Chassis, traj *msgs.ADCTrajectory, cmd *msgs.ControlCommand) error {
	defer func() { c.calls++ }()
	c.lastLoc = loc
	cmd.Throttle = c.throttle
	if c.failAt[c.calls] {
		return errors.New("controller failed")
	}
	return nil
}

func testTrajectory() *msgs.ADCTrajectory {
	return &msgs.ADCTrajectory{TrajectoryPoints: []msgs.TrajectoryPoint{{V: 1}, {PathPoint: msgs.PathPoint{X: 1}, V: 1}}}
}

func TestSimulatorRun(t *testing.T) {
	ctrl := &testController{throttle: 100}
	sim := New(&testDynamics{}, &testIntegrator{}, ctrl, testTrajectory())

	cfg := Config{
		Dt:       0.1,
		Duration: 1.0,
	}

	x0 := State{0, 0, 0, 0}
	result, err := sim.Run(context.Background(), x0, cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(result.States) != 11 {
		t.Errorf("expected 11 states, got %d", len(result.States))
	}

	if len(result.Times) != 11 {
		t.Errorf("expected 11 times, got %d", len(result.Times))
	}

	if len(result.Commands) != 10 || ctrl.calls != 10 {
		t.Errorf("expected 10 control cycles, got %d commands and %d calls", len(result.Commands), ctrl.calls)
	}

	finalSpeed := result.States[len(result.States)-1][IdxSpeed]
	if math.Abs(finalSpeed-1.0) > 1e-9 {
		t.Errorf("expected final speed 1.0, got %.4f", finalSpeed)
	}

	if ctrl.lastLoc.Pose.Position.X <= 0 || ctrl.lastLoc.MeasurementTime <= 0 {
		t.Errorf("controller did not see the moving vehicle: %+v", ctrl.lastLoc)
	}
}

func TestSimulatorInvalidConfig(t *testing.T) {
	sim := New(&testDynamics{}, &testIntegrator{}, &testController{}, testTrajectory())

	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero dt", Config{Dt: 0, Duration: 1.0}},
		{"negative dt", Config{Dt: -0.1, Duration: 1.0}},
		{"zero duration", Config{Dt: 0.1, Duration: 0}},
		{"negative duration", Config{Dt: 0.1, Duration: -1.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x0 := State{0, 0, 0, 0}
			_, err := sim.Run(context.Background(), x0, tt.cfg)
			if err == nil {
				t.Error("expected error, got nil")
			}
		})
	}

	empty := New(&testDynamics{}, &testIntegrator{}, &testController{}, &msgs.ADCTrajectory{})
	if _, err := empty.Run(context.Background(), State{0, 0, 0, 0}, DefaultConfig()); !errors.Is(err, msgs.ErrEmptyTrajectory) {
		t.Errorf("expected ErrEmptyTrajectory, got %v", err)
	}
	if _, err := sim.Run(context.Background(), State{0, 0}, DefaultConfig()); err == nil {
		t.Error("expected error for a short initial state")
	}
}

type testMetric struct {
	count int
	sum   float64
}

func (t *testMetric) Name() string { return "test" }
func (t *testMetric) Observe(x State, u Control, time float64) {
	t.count++
	t.sum += x[IdxSpeed]
}
func (t *testMetric) Value() float64 {
	if t.count == 0 {
		return 0
	}
	return t.sum / float64(t.count)
}
func (t *testMetric) Reset() {
	t.count = 0
	t.sum = 0
}

func TestSimulatorMetrics(t *testing.T) {
	sim := New(&testDynamics{}, &testIntegrator{}, &testController{}, testTrajectory())

	metric := &testMetric{}
	sim.AddMetric(metric)

	cfg := Config{Dt: 0.1, Duration: 1.0}
	x0 := State{0, 0, 0, 1}

	result, err := sim.Run(context.Background(), x0, cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if _, ok := result.Metrics["test"]; !ok {
		t.Error("metric not found in result")
	}

	if metric.count != 10 {
		t.Errorf("expected 10 observations, got %d", metric.count)
	}
}

func TestSimulatorRecordsCycleErrors(t *testing.T) {
	ctrl := &testController{throttle: 50, failAt: map[int]bool{2: true, 5: true}}
	sim := New(&testDynamics{}, &testIntegrator{}, ctrl, testTrajectory())

	result, err := sim.Run(context.Background(), State{0, 0, 0, 0}, Config{Dt: 0.1, Duration: 1.0})
	if err != nil {
		t.Fatalf("cycle errors must not abort the run: %v", err)
	}
	if len(result.Errors) != 2 {
		t.Fatalf("expected 2 recorded errors, got %d", len(result.Errors))
	}

	var ce CycleError
	if !errors.As(result.Errors[0], &ce) || ce.Step != 2 {
		t.Errorf("expected a CycleError at step 2, got %v", result.Errors[0])
	}
	if result.Commands[2].Throttle != 0 || result.Commands[3].Throttle != 50 {
		t.Errorf("a failed cycle should fall back to safe defaults: %+v", result.Commands[2])
	}
}

func TestSimulatorStopsOnInvalidState(t *testing.T) {
	ctrl := &testController{throttle: math.Inf(1)}
	sim := New(&testDynamics{}, &testIntegrator{}, ctrl, testTrajectory())

	result, err := sim.Run(context.Background(), State{0, 0, 0, 0}, Config{Dt: 0.1, Duration: 1.0, ValidateState: true})
	if err != nil {
		t.Fatal(err)
	}
	if result.StepsTaken != 0 {
		t.Errorf("expected no accepted steps, got %d", result.StepsTaken)
	}
	var se SimError
	if len(result.Errors) != 1 || !errors.As(result.Errors[0], &se) {
		t.Errorf("expected one SimError, got %v", result.Errors)
	}
}

func TestSimulatorHonoursContext(t *testing.T) {
	sim := New(&testDynamics{}, &testIntegrator{}, &testController{}, testTrajectory())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := sim.Run(ctx, State{0, 0, 0, 0}, Config{Dt: 0.1, Duration: 1.0})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if result == nil || len(result.States) != 1 {
		t.Error("expected the partial result with the initial state")
	}
}
