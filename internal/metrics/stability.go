package metrics

import (
	"math"

	"github.com/gengqx/apollo/internal/msgs"
	"github.com/gengqx/apollo/internal/sim"
)

// OnTrack is the fraction of samples whose cross-track error stays within
// threshold metres.
type OnTrack struct {
	name       string
	threshold  float64
	ref        reference
	violations int
	samples    int
}

func NewOnTrack(traj *msgs.ADCTrajectory, threshold float64) *OnTrack {
	return &OnTrack{
		name:      "on_track",
		threshold: threshold,
		ref:       newReference(traj),
	}
}

func (s *OnTrack) Name() string {
	return s.name
}

func (s *OnTrack) Observe(x sim.State, u sim.Control, t float64) {
	p, ok := s.ref.match(x)
	if !ok {
		return
	}
	s.samples++
	if math.Abs(lateralOffset(p.PathPoint, x)) > s.threshold {
		s.violations++
	}
}

func (s *OnTrack) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *OnTrack) Reset() {
	s.ref.reset()
	s.violations = 0
	s.samples = 0
}
