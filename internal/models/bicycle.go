package models

import (
	"math"

	"github.com/gengqx/apollo/internal/sim"
)

// Bicycle is a kinematic bicycle model driven by actuator percentages.
//
// State: [x, y, heading, speed]. Control: [throttle %, brake %, steering %].
// Positive steering turns left.
type Bicycle struct {
	Wheelbase        float64
	SteerRatio       float64
	MaxSteerAngleDeg float64 // at the steering wheel
	MaxAcceleration  float64 // at 100% throttle
	MaxDeceleration  float64 // at 100% brake
	Drag             float64 // linear, 1/s
}

func NewBicycle() *Bicycle {
	return &Bicycle{
		Wheelbase:        2.8,
		SteerRatio:       16,
		MaxSteerAngleDeg: 470,
		MaxAcceleration:  4.0,
		MaxDeceleration:  8.0,
		Drag:             0.02,
	}
}

func (b *Bicycle) StateDim() int {
	return sim.VehicleStateDim
}

func (b *Bicycle) ControlDim() int {
	return sim.VehicleControlDim
}

// WheelAngle converts a steering percentage to the front wheel angle in radians.
func (b *Bicycle) WheelAngle(steeringPct float64) float64 {
	pct := math.Max(-100, math.Min(100, steeringPct))
	return pct / 100 * b.MaxSteerAngleDeg * math.Pi / 180 / b.SteerRatio
}

func (b *Bicycle) Derivative(x sim.State, u sim.Control, t float64) sim.State {
	heading := x[sim.IdxHeading]
	v := x[sim.IdxSpeed]

	throttle, brake, steering := 0.0, 0.0, 0.0
	if len(u) >= sim.VehicleControlDim {
		throttle = math.Max(0, math.Min(100, u[sim.IdxThrottle]))
		brake = math.Max(0, math.Min(100, u[sim.IdxBrake]))
		steering = u[sim.IdxSteering]
	}

	accel := throttle/100*b.MaxAcceleration - b.Drag*v
	if v > 0 {
		accel -= brake / 100 * b.MaxDeceleration
	}
	// Braking and drag stop the vehicle; they never drive it backwards.
	if v <= 0 && accel < 0 {
		accel = 0
	}

	sin, cos := math.Sincos(heading)
	return sim.State{
		v * cos,
		v * sin,
		v / b.Wheelbase * math.Tan(b.WheelAngle(steering)),
		accel,
	}
}
