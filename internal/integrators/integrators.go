// Package integrators advances the vehicle state over one control period.
//
// The control is held for the whole step, as the actuators see it. After
// every step a vehicle state has its heading wrapped into [-pi, pi) and its
// speed kept at or above zero: the bicycle model only stops when braking, so
// a step that crosses zero speed lands on zero instead of reversing.
package integrators

import (
	"errors"
	"fmt"
	"math"

	"github.com/gengqx/apollo/internal/sim"
)

var ErrUnknownIntegrator = errors.New("integrators: unknown integrator")

func Names() []string {
	return []string{"euler", "rk4"}
}

// New returns a fresh integrator. RK4 keeps stage buffers, so concurrent
// simulations each need their own.
func New(name string) (sim.Integrator, error) {
	switch name {
	case "rk4", "":
		return NewRK4(), nil
	case "euler":
		return NewEuler(), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownIntegrator, name)
	}
}

// settle applies the vehicle state constraints in place. Other state
// layouts pass through untouched.
func settle(x sim.State) sim.State {
	if len(x) != sim.VehicleStateDim {
		return x
	}
	x[sim.IdxHeading] = wrapAngle(x[sim.IdxHeading])
	if x[sim.IdxSpeed] < 0 {
		x[sim.IdxSpeed] = 0
	}
	return x
}

func wrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// offset writes x + h*k into dst.
func offset(dst, x, k sim.State, h float64) sim.State {
	for i := range x {
		dst[i] = x[i] + h*k[i]
	}
	return dst
}

// Euler is the explicit first-order step, a cheap baseline for RK4.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (Euler) Step(dyn sim.Dynamics, x sim.State, u sim.Control, t, dt float64) sim.State {
	return settle(offset(make(sim.State, len(x)), x, dyn.Derivative(x, u, t), dt))
}

// RK4 is the classic fourth-order Runge-Kutta step.
type RK4 struct {
	k     [4]sim.State
	stage sim.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) Step(dyn sim.Dynamics, x sim.State, u sim.Control, t, dt float64) sim.State {
	n := len(x)
	if len(r.stage) != n {
		for i := range r.k {
			r.k[i] = make(sim.State, n)
		}
		r.stage = make(sim.State, n)
	}

	// Derivative may return a shared slice, so every stage is copied out.
	copy(r.k[0], dyn.Derivative(x, u, t))
	copy(r.k[1], dyn.Derivative(offset(r.stage, x, r.k[0], dt/2), u, t+dt/2))
	copy(r.k[2], dyn.Derivative(offset(r.stage, x, r.k[1], dt/2), u, t+dt/2))
	copy(r.k[3], dyn.Derivative(offset(r.stage, x, r.k[2], dt), u, t+dt))

	next := make(sim.State, n)
	for i := range x {
		next[i] = x[i] + dt/6*(r.k[0][i]+2*r.k[1][i]+2*r.k[2][i]+r.k[3][i])
	}
	return settle(next)
}
