package msgs

import (
	"fmt"
	"math"
)

type Header struct {
	TimestampSec float64 `yaml:"timestamp_sec" json:"timestamp_sec"`
	ModuleName   string  `yaml:"module_name" json:"module_name"`
	SequenceNum  uint32  `yaml:"sequence_num" json:"sequence_num"`
}

type Vec3 struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
	Z float64 `yaml:"z" json:"z"`
}

func (v Vec3) IsValid() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

type GearPosition int

const (
	GearNeutral GearPosition = iota
	GearDrive
	GearReverse
	GearParking
	GearLow
	GearInvalid
	GearNone
)

func (g GearPosition) String() string {
	switch g {
	case GearNeutral:
		return "NEUTRAL"
	case GearDrive:
		return "DRIVE"
	case GearReverse:
		return "REVERSE"
	case GearParking:
		return "PARKING"
	case GearLow:
		return "LOW"
	case GearInvalid:
		return "INVALID"
	case GearNone:
		return "NONE"
	default:
		return fmt.Sprintf("GearPosition(%d)", int(g))
	}
}

type DrivingMode int

const (
	CompleteManual DrivingMode = iota
	CompleteAutoDrive
	AutoSteerOnly
	AutoSpeedOnly
	EmergencyMode
)

func (m DrivingMode) String() string {
	switch m {
	case CompleteManual:
		return "COMPLETE_MANUAL"
	case CompleteAutoDrive:
		return "COMPLETE_AUTO_DRIVE"
	case AutoSteerOnly:
		return "AUTO_STEER_ONLY"
	case AutoSpeedOnly:
		return "AUTO_SPEED_ONLY"
	case EmergencyMode:
		return "EMERGENCY_MODE"
	default:
		return fmt.Sprintf("DrivingMode(%d)", int(m))
	}
}

type Pose struct {
	Position           Vec3    `yaml:"position" json:"position"`
	Heading            float64 `yaml:"heading" json:"heading"`
	LinearVelocity     Vec3    `yaml:"linear_velocity" json:"linear_velocity"`
	LinearAcceleration Vec3    `yaml:"linear_acceleration" json:"linear_acceleration"`
	AngularVelocity    Vec3    `yaml:"angular_velocity" json:"angular_velocity"`
}

// LocalizationEstimate is the vehicle pose produced by localization.
type LocalizationEstimate struct {
	Header          Header  `yaml:"header" json:"header"`
	Pose            Pose    `yaml:"pose" json:"pose"`
	MeasurementTime float64 `yaml:"measurement_time" json:"measurement_time"`
}

func (l *LocalizationEstimate) Clone() *LocalizationEstimate {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}

// Chassis is the vehicle state reported by the canbus.
type Chassis struct {
	Header             Header       `yaml:"header" json:"header"`
	EngineStarted      bool         `yaml:"engine_started" json:"engine_started"`
	SpeedMps           float64      `yaml:"speed_mps" json:"speed_mps"`
	ThrottlePercentage float64      `yaml:"throttle_percentage" json:"throttle_percentage"`
	BrakePercentage    float64      `yaml:"brake_percentage" json:"brake_percentage"`
	SteeringPercentage float64      `yaml:"steering_percentage" json:"steering_percentage"`
	GearLocation       GearPosition `yaml:"gear_location" json:"gear_location"`
	DrivingMode        DrivingMode  `yaml:"driving_mode" json:"driving_mode"`
	ErrorCode          int          `yaml:"error_code" json:"error_code"`
}

func (c *Chassis) Clone() *Chassis {
	if c == nil {
		return nil
	}
	cc := *c
	return &cc
}

type PathPoint struct {
	X     float64 `yaml:"x" json:"x"`
	Y     float64 `yaml:"y" json:"y"`
	Theta float64 `yaml:"theta" json:"theta"`
	Kappa float64 `yaml:"kappa" json:"kappa"`
	S     float64 `yaml:"s" json:"s"`
}

type TrajectoryPoint struct {
	PathPoint    PathPoint `yaml:"path_point" json:"path_point"`
	V            float64   `yaml:"v" json:"v"`
	A            float64   `yaml:"a" json:"a"`
	RelativeTime float64   `yaml:"relative_time" json:"relative_time"`
}

func (p TrajectoryPoint) IsValid() bool {
	return isFinite(p.PathPoint.X) && isFinite(p.PathPoint.Y) && isFinite(p.PathPoint.Theta) &&
		isFinite(p.PathPoint.Kappa) && isFinite(p.V) && isFinite(p.A) && isFinite(p.RelativeTime)
}

type Estop struct {
	IsEstop bool   `yaml:"is_estop" json:"is_estop"`
	Reason  string `yaml:"reason" json:"reason"`
}

// ADCTrajectory is the trajectory produced by planning.
type ADCTrajectory struct {
	Header           Header            `yaml:"header" json:"header"`
	TotalPathLength  float64           `yaml:"total_path_length" json:"total_path_length"`
	TotalPathTime    float64           `yaml:"total_path_time" json:"total_path_time"`
	TrajectoryPoints []TrajectoryPoint `yaml:"trajectory_point" json:"trajectory_point"`
	Gear             GearPosition      `yaml:"gear" json:"gear"`
	Estop            Estop             `yaml:"estop" json:"estop"`
}

func (t *ADCTrajectory) Clone() *ADCTrajectory {
	if t == nil {
		return nil
	}
	c := *t
	c.TrajectoryPoints = make([]TrajectoryPoint, len(t.TrajectoryPoints))
	copy(c.TrajectoryPoints, t.TrajectoryPoints)
	return &c
}

// Validate reports whether the trajectory can be tracked at all.
func (t *ADCTrajectory) Validate() error {
	if t == nil || len(t.TrajectoryPoints) == 0 {
		return ErrEmptyTrajectory
	}
	for i, p := range t.TrajectoryPoints {
		if !p.IsValid() {
			return &PointError{Index: i, Wrapped: ErrInvalidPoint}
		}
	}
	return nil
}

type Debug struct {
	LateralError       float64 `yaml:"lateral_error" json:"lateral_error"`
	HeadingError       float64 `yaml:"heading_error" json:"heading_error"`
	SpeedError         float64 `yaml:"speed_error" json:"speed_error"`
	StationError       float64 `yaml:"station_error" json:"station_error"`
	CalibrationCommand float64 `yaml:"calibration_command" json:"calibration_command"`
	MatchedPointIndex  int     `yaml:"matched_point_index" json:"matched_point_index"`
}

// ControlCommand is the output of a control cycle. Throttle, brake and
// steering are percentages.
type ControlCommand struct {
	Header         Header       `yaml:"header" json:"header"`
	Throttle       float64      `yaml:"throttle" json:"throttle"`
	Brake          float64      `yaml:"brake" json:"brake"`
	SteeringRate   float64      `yaml:"steering_rate" json:"steering_rate"`
	SteeringTarget float64      `yaml:"steering_target" json:"steering_target"`
	Acceleration   float64      `yaml:"acceleration" json:"acceleration"`
	Speed          float64      `yaml:"speed" json:"speed"`
	GearLocation   GearPosition `yaml:"gear_location" json:"gear_location"`
	ParkingBrake   bool         `yaml:"parking_brake" json:"parking_brake"`
	Estop          bool         `yaml:"estop" json:"estop"`
	Debug          Debug        `yaml:"debug" json:"debug"`
}

// SetSafeDefaults puts the actuation fields into the no-op state: no throttle,
// no brake, wheels straight. The gear follows the chassis when one is given.
func (c *ControlCommand) SetSafeDefaults(chassis *Chassis) {
	c.Throttle = 0
	c.Brake = 0
	c.SteeringRate = 0
	c.SteeringTarget = 0
	c.Acceleration = 0
	c.Speed = 0
	c.ParkingBrake = false
	c.Estop = false
	c.Debug = Debug{}
	c.GearLocation = GearNeutral
	if chassis != nil {
		c.GearLocation = chassis.GearLocation
	}
}

// IsValid reports whether every actuation field is finite and within
// the percentage range.
func (c *ControlCommand) IsValid() bool {
	for _, v := range []float64{c.Throttle, c.Brake, c.SteeringTarget} {
		if !isFinite(v) || v < -100 || v > 100 {
			return false
		}
	}
	return c.Throttle >= 0 && c.Brake >= 0 && isFinite(c.SteeringRate) && isFinite(c.Acceleration)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
