package metrics

import (
	"math"

	"github.com/gengqx/apollo/internal/msgs"
	"github.com/gengqx/apollo/internal/sim"
)

// reference finds the trajectory point nearest to a vehicle state.
type reference struct {
	points []msgs.TrajectoryPoint
	last   int
}

func newReference(traj *msgs.ADCTrajectory) reference {
	if traj == nil {
		return reference{}
	}
	return reference{points: traj.TrajectoryPoints}
}

// match searches forward from the previous match so a path that crosses
// itself is not matched to the wrong lap.
func (r *reference) match(x sim.State) (msgs.TrajectoryPoint, bool) {
	if len(r.points) == 0 {
		return msgs.TrajectoryPoint{}, false
	}
	px, py := x[sim.IdxX], x[sim.IdxY]
	best, bestDist := r.last, math.Inf(1)
	for i := r.last; i < len(r.points); i++ {
		p := r.points[i].PathPoint
		d := math.Hypot(p.X-px, p.Y-py)
		if d < bestDist {
			best, bestDist = i, d
		} else if d > bestDist+5 {
			break
		}
	}
	r.last = best
	return r.points[best], true
}

func (r *reference) reset() { r.last = 0 }

// lateralOffset is positive left of p.
func lateralOffset(p msgs.PathPoint, x sim.State) float64 {
	sin, cos := math.Sincos(p.Theta)
	return cos*(x[sim.IdxY]-p.Y) - sin*(x[sim.IdxX]-p.X)
}

// LateralError is the RMS cross-track error against the reference path.
type LateralError struct {
	name    string
	ref     reference
	sumSq   float64
	max     float64
	samples int
}

func NewLateralError(traj *msgs.ADCTrajectory) *LateralError {
	return &LateralError{name: "lateral_error_rms", ref: newReference(traj)}
}

func (l *LateralError) Name() string { return l.name }

func (l *LateralError) Observe(x sim.State, u sim.Control, t float64) {
	p, ok := l.ref.match(x)
	if !ok {
		return
	}
	e := lateralOffset(p.PathPoint, x)
	l.sumSq += e * e
	l.max = math.Max(l.max, math.Abs(e))
	l.samples++
}

func (l *LateralError) Value() float64 {
	if l.samples == 0 {
		return 0
	}
	return math.Sqrt(l.sumSq / float64(l.samples))
}

// Max is the largest absolute cross-track error seen.
func (l *LateralError) Max() float64 { return l.max }

func (l *LateralError) Reset() {
	l.ref.reset()
	l.sumSq = 0
	l.max = 0
	l.samples = 0
}

// SpeedError is the mean absolute difference between vehicle speed and the
// reference speed at the matched point.
type SpeedError struct {
	name    string
	ref     reference
	sum     float64
	samples int
}

func NewSpeedError(traj *msgs.ADCTrajectory) *SpeedError {
	return &SpeedError{name: "speed_error_mean", ref: newReference(traj)}
}

func (s *SpeedError) Name() string { return s.name }

func (s *SpeedError) Observe(x sim.State, u sim.Control, t float64) {
	p, ok := s.ref.match(x)
	if !ok {
		return
	}
	s.sum += math.Abs(x[sim.IdxSpeed] - p.V)
	s.samples++
}

func (s *SpeedError) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return s.sum / float64(s.samples)
}

func (s *SpeedError) Reset() {
	s.ref.reset()
	s.sum = 0
	s.samples = 0
}
