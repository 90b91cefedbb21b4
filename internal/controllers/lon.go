package controllers

import (
	"fmt"
	"math"

	"github.com/gengqx/apollo/internal/calibration"
	"github.com/gengqx/apollo/internal/controltask"
	"github.com/gengqx/apollo/internal/injector"
	"github.com/gengqx/apollo/internal/msgs"
)

const LonName = "LonController"

type LonConf struct {
	Ts               float64 `yaml:"ts"`
	PreviewTime      float64 `yaml:"preview_time"`
	StationPID       PIDConf `yaml:"station_pid_conf"`
	SpeedPID         PIDConf `yaml:"speed_pid_conf"`
	MaxAcceleration  float64 `yaml:"max_acceleration"`
	MaxDeceleration  float64 `yaml:"max_deceleration"`
	ThrottleMax      float64 `yaml:"throttle_max"`
	BrakeMax         float64 `yaml:"brake_max"`
	ThrottleDeadzone float64 `yaml:"throttle_deadzone"`
	BrakeDeadzone    float64 `yaml:"brake_deadzone"`
	StandstillBrake  float64 `yaml:"standstill_brake"`
	StopSpeed        float64 `yaml:"stop_speed"`
	// MaxJerk bounds the change of acceleration demand against the previous
	// cycle's command, in m/s^3. Zero disables it.
	MaxJerk float64 `yaml:"max_jerk"`
}

func (c LonConf) validate() error {
	if c.Ts <= 0 {
		return fmt.Errorf("ts must be positive, got %f", c.Ts)
	}
	if c.ThrottleMax <= 0 || c.ThrottleMax > 100 || c.BrakeMax <= 0 || c.BrakeMax > 100 {
		return fmt.Errorf("throttle_max and brake_max must be in (0, 100]")
	}
	if c.MaxAcceleration <= 0 || c.MaxDeceleration <= 0 {
		return fmt.Errorf("max_acceleration and max_deceleration must be positive")
	}
	if c.MaxJerk < 0 {
		return fmt.Errorf("max_jerk must not be negative, got %f", c.MaxJerk)
	}
	return nil
}

// LonController tracks the trajectory's station and speed with a cascaded
// PID and maps the acceleration demand to throttle or brake through the
// calibration table. The acceleration demand is jerk limited against the
// previous command held by the injector. It only writes the longitudinal
// fields of the command.
type LonController struct {
	*controltask.Base
	conf       LonConf
	calib      *calibration.Interpolator
	stationPID *PID
	speedPID   *PID
	injector   *injector.DependencyInjector
	life       lifecycle
}

func NewLon(deps controltask.Deps) *LonController {
	return &LonController{Base: controltask.NewBase(LonName, deps)}
}

func (l *LonController) Init(inj *injector.DependencyInjector) error {
	if err := l.life.checkInit(); err != nil {
		return controltask.Wrap(l.Name(), "init", err)
	}
	if inj == nil {
		return controltask.Wrap(l.Name(), "init", fmt.Errorf("%w: nil injector", controltask.ErrInvalidInput))
	}

	var conf LonConf
	if err := l.LoadConfig(&conf); err != nil {
		return controltask.Wrap(l.Name(), "init", err)
	}
	if err := conf.validate(); err != nil {
		return controltask.Wrap(l.Name(), "init", fmt.Errorf("%w: %w", controltask.ErrConfigParseFailure, err))
	}

	var table calibration.Table
	if err := l.LoadCalibrationTable(&table); err != nil {
		return controltask.Wrap(l.Name(), "init", err)
	}
	calib, err := calibration.NewInterpolator(table)
	if err != nil {
		return controltask.Wrap(l.Name(), "init", fmt.Errorf("%w: %w", controltask.ErrCalibrationParseFailure, err))
	}

	l.conf = conf
	l.calib = calib
	l.stationPID = NewPID(conf.StationPID)
	l.speedPID = NewPID(conf.SpeedPID)
	l.injector = inj
	l.life.markInitialized()
	return nil
}

func (l *LonController) ComputeControlCommand(
	loc *msgs.LocalizationEstimate,
	chassis *msgs.Chassis,
	traj *msgs.ADCTrajectory,
	cmd *msgs.ControlCommand,
) error {
	if err := l.life.checkReady(); err != nil {
		return controltask.Wrap(l.Name(), "compute", err)
	}
	if err := checkInputs(loc, chassis, traj, cmd); err != nil {
		return controltask.Wrap(l.Name(), "compute", err)
	}

	pos := loc.Pose.Position
	idx := nearestPoint(traj.TrajectoryPoints, pos.X, pos.Y)
	matched := traj.TrajectoryPoints[idx]
	preview := pointAtTime(traj.TrajectoryPoints, idx, matched.RelativeTime+l.conf.PreviewTime)

	_, ahead := trackErrors(matched.PathPoint, pos.X, pos.Y)
	stationErr := -ahead
	speed := chassis.SpeedMps
	if chassis.GearLocation == msgs.GearReverse {
		speed = -speed
	}

	speedOffset := l.stationPID.Control(stationErr, l.conf.Ts)
	speedErr := preview.V + speedOffset - speed
	accel := l.speedPID.Control(speedErr, l.conf.Ts) + preview.A
	accel = clamp(accel, -l.conf.MaxDeceleration, l.conf.MaxAcceleration)
	if l.conf.MaxJerk > 0 {
		prev := l.injector.PreviousControlCommand().Acceleration
		step := l.conf.MaxJerk * l.conf.Ts
		accel = clamp(accel, prev-step, prev+step)
	}

	value := l.calib.Command(math.Abs(speed), accel)

	throttle, brake := 0.0, 0.0
	switch {
	case preview.V <= l.conf.StopSpeed && math.Abs(speed) <= l.conf.StopSpeed:
		brake = l.conf.StandstillBrake
	case value >= 0:
		throttle = math.Max(value, l.conf.ThrottleDeadzone)
	default:
		brake = math.Max(-value, l.conf.BrakeDeadzone)
	}

	if traj.Estop.IsEstop {
		throttle, brake = 0, l.conf.BrakeMax
		cmd.Estop = true
	}

	cmd.Throttle = clamp(throttle, 0, l.conf.ThrottleMax)
	cmd.Brake = clamp(brake, 0, l.conf.BrakeMax)
	cmd.Acceleration = accel
	cmd.Speed = preview.V
	cmd.GearLocation = traj.Gear
	cmd.Debug.StationError = stationErr
	cmd.Debug.SpeedError = speedErr
	cmd.Debug.CalibrationCommand = value
	cmd.Debug.MatchedPointIndex = idx

	if math.IsNaN(cmd.Throttle) || math.IsNaN(cmd.Brake) || math.IsNaN(accel) {
		return controltask.Wrap(l.Name(), "compute", fmt.Errorf("%w: non-finite longitudinal output", controltask.ErrComputationFailure))
	}
	return nil
}

func (l *LonController) Reset() error {
	if err := l.life.checkReady(); err != nil {
		return controltask.Wrap(l.Name(), "reset", err)
	}
	l.stationPID.Reset()
	l.speedPID.Reset()
	l.life.markReset()
	return nil
}

func (l *LonController) Stop() {
	l.life.markStopped()
	l.injector = nil
	l.Logger().Debug("stopped")
}

func init() {
	controltask.Register(LonName, func(deps controltask.Deps) controltask.ControlTask {
		return NewLon(deps)
	})
}
