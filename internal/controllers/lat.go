package controllers

import (
	"fmt"
	"math"

	"github.com/gengqx/apollo/internal/controltask"
	"github.com/gengqx/apollo/internal/injector"
	"github.com/gengqx/apollo/internal/msgs"
)

const LatName = "LatController"

type LatConf struct {
	Ts                 float64   `yaml:"ts"`
	Wheelbase          float64   `yaml:"wheelbase"`
	SteerRatio         float64   `yaml:"steer_ratio"`
	MaxSteerAngleDeg   float64   `yaml:"max_steer_angle_deg"`
	SteeringRate       float64   `yaml:"steering_rate"`
	PreviewWindow      int       `yaml:"preview_window"`
	HeadingErrorFilter float64   `yaml:"heading_error_filter"`
	EnableFeedforward  bool      `yaml:"enable_feedforward"`
	Gains              []float64 `yaml:"matrix_k"`

	// EnableSteerRateLimit holds the steering target within SteeringRate
	// (percent per second) of the previous cycle's command.
	EnableSteerRateLimit bool `yaml:"enable_maximum_steer_rate_limit"`
}

func (c LatConf) validate() error {
	if c.Ts <= 0 || c.Wheelbase <= 0 || c.SteerRatio <= 0 || c.MaxSteerAngleDeg <= 0 {
		return fmt.Errorf("ts, wheelbase, steer_ratio and max_steer_angle_deg must be positive")
	}
	if len(c.Gains) != 2 {
		return fmt.Errorf("matrix_k needs 2 gains (lateral, heading), got %d", len(c.Gains))
	}
	if c.HeadingErrorFilter < 0 || c.HeadingErrorFilter >= 1 {
		return fmt.Errorf("heading_error_filter must be in [0, 1)")
	}
	if c.EnableSteerRateLimit && c.SteeringRate <= 0 {
		return fmt.Errorf("steering_rate must be positive with the steer rate limit enabled")
	}
	return nil
}

// LatController steers with state feedback on lateral and heading error
// against the nearest trajectory point, plus curvature feedforward. The
// heading error is low-pass filtered; Reset clears the filter. With the steer
// rate limit on, the target moves at most SteeringRate*Ts per cycle from the
// previous command. It only writes the steering fields of the command.
type LatController struct {
	*controltask.Base
	conf         LatConf
	injector     *injector.DependencyInjector
	life         lifecycle
	headingErr   float64
	filterPrimed bool
}

func NewLat(deps controltask.Deps) *LatController {
	return &LatController{Base: controltask.NewBase(LatName, deps)}
}

func (c *LatController) Init(inj *injector.DependencyInjector) error {
	if err := c.life.checkInit(); err != nil {
		return controltask.Wrap(c.Name(), "init", err)
	}
	if inj == nil {
		return controltask.Wrap(c.Name(), "init", fmt.Errorf("%w: nil injector", controltask.ErrInvalidInput))
	}

	var conf LatConf
	if err := c.LoadConfig(&conf); err != nil {
		return controltask.Wrap(c.Name(), "init", err)
	}
	if err := conf.validate(); err != nil {
		return controltask.Wrap(c.Name(), "init", fmt.Errorf("%w: %w", controltask.ErrConfigParseFailure, err))
	}

	c.conf = conf
	c.injector = inj
	c.resetFilter()
	c.life.markInitialized()
	return nil
}

func (c *LatController) ComputeControlCommand(
	loc *msgs.LocalizationEstimate,
	chassis *msgs.Chassis,
	traj *msgs.ADCTrajectory,
	cmd *msgs.ControlCommand,
) error {
	if err := c.life.checkReady(); err != nil {
		return controltask.Wrap(c.Name(), "compute", err)
	}
	if err := checkInputs(loc, chassis, traj, cmd); err != nil {
		return controltask.Wrap(c.Name(), "compute", err)
	}

	pos := loc.Pose.Position
	idx := nearestPoint(traj.TrajectoryPoints, pos.X, pos.Y)
	matched := traj.TrajectoryPoints[idx].PathPoint

	lateral, _ := trackErrors(matched, pos.X, pos.Y)
	heading := normalizeAngle(loc.Pose.Heading - matched.Theta)
	if c.filterPrimed {
		a := c.conf.HeadingErrorFilter
		heading = a*c.headingErr + (1-a)*heading
	}
	c.headingErr = heading
	c.filterPrimed = true

	// u = -K e over e = [lateral, heading]
	e := [2]float64{lateral, heading}
	wheel := 0.0
	for i, k := range c.conf.Gains {
		wheel -= k * e[i]
	}

	if c.conf.EnableFeedforward {
		kappa := c.previewKappa(traj.TrajectoryPoints, idx)
		wheel += math.Atan(c.conf.Wheelbase * kappa)
	}

	maxWheel := c.conf.MaxSteerAngleDeg * math.Pi / 180 / c.conf.SteerRatio
	steering := clamp(wheel/maxWheel*100, -100, 100)
	if c.conf.EnableSteerRateLimit {
		prev := c.injector.PreviousControlCommand().SteeringTarget
		step := c.conf.SteeringRate * c.conf.Ts
		steering = clamp(steering, prev-step, prev+step)
	}
	if math.IsNaN(steering) {
		return controltask.Wrap(c.Name(), "compute", fmt.Errorf("%w: non-finite steering", controltask.ErrComputationFailure))
	}

	cmd.SteeringTarget = steering
	cmd.SteeringRate = c.conf.SteeringRate
	cmd.Debug.LateralError = lateral
	cmd.Debug.HeadingError = heading
	cmd.Debug.MatchedPointIndex = idx
	return nil
}

// previewKappa averages curvature over the preview window starting at idx.
func (c *LatController) previewKappa(points []msgs.TrajectoryPoint, idx int) float64 {
	n := c.conf.PreviewWindow
	if n < 1 {
		n = 1
	}
	sum, count := 0.0, 0
	for i := idx; i < len(points) && count < n; i++ {
		sum += points[i].PathPoint.Kappa
		count++
	}
	return sum / float64(count)
}

func (c *LatController) resetFilter() {
	c.headingErr = 0
	c.filterPrimed = false
}

func (c *LatController) Reset() error {
	if err := c.life.checkReady(); err != nil {
		return controltask.Wrap(c.Name(), "reset", err)
	}
	c.resetFilter()
	c.life.markReset()
	return nil
}

func (c *LatController) Stop() {
	c.life.markStopped()
	c.injector = nil
	c.Logger().Debug("stopped")
}

func init() {
	controltask.Register(LatName, func(deps controltask.Deps) controltask.ControlTask {
		return NewLat(deps)
	})
}
