// Package injector holds the runtime state shared by every control task.
//
// A single DependencyInjector is created by the control loop and handed to
// each task's Init. Tasks keep a non-owning reference; the injector outlives
// all of them. All methods are safe for concurrent use.
package injector

import (
	"math"
	"sync"

	"github.com/gengqx/apollo/internal/msgs"
)

const DefaultHistoryLen = 10

// VehicleState is the condensed view of localization and chassis that
// controllers read between cycles.
type VehicleState struct {
	X                  float64
	Y                  float64
	Heading            float64
	LinearVelocity     float64
	LinearAcceleration float64
	Gear               msgs.GearPosition
	DrivingMode        msgs.DrivingMode
	Timestamp          float64
}

type DependencyInjector struct {
	mu      sync.RWMutex
	state   VehicleState
	history []VehicleState
	head    int
	size    int
	prevCmd msgs.ControlCommand
}

func New(historyLen int) *DependencyInjector {
	if historyLen <= 0 {
		historyLen = DefaultHistoryLen
	}
	return &DependencyInjector{
		history: make([]VehicleState, historyLen),
	}
}

// UpdateVehicleState folds the latest inputs into the current vehicle state
// and pushes it onto the history ring. Nil inputs leave their fields as they were.
func (d *DependencyInjector) UpdateVehicleState(loc *msgs.LocalizationEstimate, chassis *msgs.Chassis) VehicleState {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.state
	if loc != nil {
		s.X = loc.Pose.Position.X
		s.Y = loc.Pose.Position.Y
		s.Heading = loc.Pose.Heading
		s.LinearAcceleration = math.Hypot(loc.Pose.LinearAcceleration.X, loc.Pose.LinearAcceleration.Y)
		s.Timestamp = loc.MeasurementTime
	}
	if chassis != nil {
		s.LinearVelocity = chassis.SpeedMps
		s.Gear = chassis.GearLocation
		s.DrivingMode = chassis.DrivingMode
	}
	d.state = s

	d.history[d.head] = s
	d.head = (d.head + 1) % len(d.history)
	if d.size < len(d.history) {
		d.size++
	}
	return s
}

func (d *DependencyInjector) VehicleState() VehicleState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// History returns a copy of the recorded states, oldest first.
func (d *DependencyInjector) History() []VehicleState {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]VehicleState, 0, d.size)
	start := (d.head - d.size + len(d.history)) % len(d.history)
	for i := 0; i < d.size; i++ {
		out = append(out, d.history[(start+i)%len(d.history)])
	}
	return out
}

func (d *DependencyInjector) SetPreviousControlCommand(cmd *msgs.ControlCommand) {
	if cmd == nil {
		return
	}
	d.mu.Lock()
	d.prevCmd = *cmd
	d.mu.Unlock()
}

func (d *DependencyInjector) PreviousControlCommand() msgs.ControlCommand {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.prevCmd
}

// Reset drops the history and the previous command. The current vehicle
// state is kept since it still describes the vehicle.
func (d *DependencyInjector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.history {
		d.history[i] = VehicleState{}
	}
	d.head = 0
	d.size = 0
	d.prevCmd = msgs.ControlCommand{}
}
