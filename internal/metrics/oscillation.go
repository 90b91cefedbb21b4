package metrics

import (
	"github.com/gengqx/apollo/internal/analysis"
	"github.com/gengqx/apollo/internal/sim"
)

// SteeringOscillation reports the dominant frequency, in Hz, of the steering
// command over the run. Components weaker than minAmplitude percent are
// treated as noise and read as 0.
type SteeringOscillation struct {
	name         string
	minAmplitude float64
	steering     []float64
	first, last  float64
}

func NewSteeringOscillation(minAmplitude float64) *SteeringOscillation {
	return &SteeringOscillation{
		name:         "steering_dominant_hz",
		minAmplitude: minAmplitude,
	}
}

func (s *SteeringOscillation) Name() string { return s.name }

func (s *SteeringOscillation) Observe(x sim.State, u sim.Control, t float64) {
	if len(u) <= sim.IdxSteering {
		return
	}
	if len(s.steering) == 0 {
		s.first = t
	}
	s.last = t
	s.steering = append(s.steering, u[sim.IdxSteering])
}

func (s *SteeringOscillation) Value() float64 {
	n := len(s.steering)
	if n < 4 || s.last <= s.first {
		return 0
	}
	hz, amp := analysis.DominantFrequency(s.steering, (s.last-s.first)/float64(n-1))
	if amp < s.minAmplitude {
		return 0
	}
	return hz
}

func (s *SteeringOscillation) Reset() {
	s.steering = s.steering[:0]
	s.first, s.last = 0, 0
}
