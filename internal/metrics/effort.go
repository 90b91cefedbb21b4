package metrics

import (
	"math"

	"github.com/gengqx/apollo/internal/sim"
)

// PedalEffort is the mean throttle plus brake percentage per cycle.
// Switches counts changes between throttle and brake, ignoring coasting
// cycles in between.
type PedalEffort struct {
	sum      float64
	samples  int
	switches int
	lastPed  int // 1 throttle, -1 brake, 0 none yet
}

func NewPedalEffort() *PedalEffort {
	return &PedalEffort{}
}

func (p *PedalEffort) Name() string { return "pedal_effort" }

func (p *PedalEffort) Observe(x sim.State, u sim.Control, t float64) {
	if len(u) < sim.VehicleControlDim {
		return
	}
	throttle, brake := math.Max(0, u[sim.IdxThrottle]), math.Max(0, u[sim.IdxBrake])
	p.sum += throttle + brake
	p.samples++

	pedal := 0
	switch {
	case throttle > brake:
		pedal = 1
	case brake > throttle:
		pedal = -1
	}
	if pedal != 0 {
		if p.lastPed != 0 && pedal != p.lastPed {
			p.switches++
		}
		p.lastPed = pedal
	}
}

func (p *PedalEffort) Value() float64 {
	if p.samples == 0 {
		return 0
	}
	return p.sum / float64(p.samples)
}

func (p *PedalEffort) Switches() int { return p.switches }

func (p *PedalEffort) Reset() {
	*p = PedalEffort{}
}

// SteeringActivity is the steering travel per second of the run, in percent
// per second: the sum of absolute steering changes over elapsed time.
type SteeringActivity struct {
	travel  float64
	start   float64
	last    float64
	prev    float64
	samples int
}

func NewSteeringActivity() *SteeringActivity {
	return &SteeringActivity{}
}

func (s *SteeringActivity) Name() string { return "steering_rate_mean" }

func (s *SteeringActivity) Observe(x sim.State, u sim.Control, t float64) {
	if len(u) < sim.VehicleControlDim {
		return
	}
	steer := u[sim.IdxSteering]
	if s.samples == 0 {
		s.start = t
	} else {
		s.travel += math.Abs(steer - s.prev)
	}
	s.prev, s.last = steer, t
	s.samples++
}

func (s *SteeringActivity) Value() float64 {
	elapsed := s.last - s.start
	if s.samples < 2 || elapsed <= 0 {
		return 0
	}
	return s.travel / elapsed
}

func (s *SteeringActivity) Reset() {
	*s = SteeringActivity{}
}
