package controllers

import (
	"fmt"
	"math"

	"github.com/gengqx/apollo/internal/controltask"
	"github.com/gengqx/apollo/internal/msgs"
)

// checkInputs rejects structurally invalid compute inputs.
func checkInputs(loc *msgs.LocalizationEstimate, chassis *msgs.Chassis, traj *msgs.ADCTrajectory, cmd *msgs.ControlCommand) error {
	switch {
	case loc == nil:
		return fmt.Errorf("%w: nil localization", controltask.ErrInvalidInput)
	case chassis == nil:
		return fmt.Errorf("%w: nil chassis", controltask.ErrInvalidInput)
	case cmd == nil:
		return fmt.Errorf("%w: nil command", controltask.ErrInvalidInput)
	}
	if err := traj.Validate(); err != nil {
		return fmt.Errorf("%w: %w", controltask.ErrInvalidInput, err)
	}
	if !loc.Pose.Position.IsValid() || !finite(loc.Pose.Heading) || !finite(chassis.SpeedMps) {
		return fmt.Errorf("%w: vehicle state is not finite", controltask.ErrInvalidInput)
	}
	return nil
}

// nearestPoint returns the index of the trajectory point closest to (x, y).
func nearestPoint(points []msgs.TrajectoryPoint, x, y float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, p := range points {
		d := math.Hypot(p.PathPoint.X-x, p.PathPoint.Y-y)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// pointAtTime returns the first point at or after relative time t, or the
// last point when t is beyond the trajectory.
func pointAtTime(points []msgs.TrajectoryPoint, from int, t float64) msgs.TrajectoryPoint {
	for i := from; i < len(points); i++ {
		if points[i].RelativeTime >= t {
			return points[i]
		}
	}
	return points[len(points)-1]
}

// trackErrors returns the lateral and longitudinal offsets of (x, y) in the
// frame of p: lateral is positive left of the path, longitudinal positive
// ahead of p.
func trackErrors(p msgs.PathPoint, x, y float64) (lateral, longitudinal float64) {
	dx, dy := x-p.X, y-p.Y
	sin, cos := math.Sincos(p.Theta)
	return cos*dy - sin*dx, cos*dx + sin*dy
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func normalizeAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
