package controllers

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/gengqx/apollo/internal/controltask"
	"github.com/gengqx/apollo/internal/logging"
	"github.com/gengqx/apollo/internal/msgs"
	"github.com/gengqx/apollo/internal/pluginpath"
)

const lonConfText = `ts: 0.01
preview_time: 0.1
station_pid_conf:
  kp: 0.2
  ki: 0.0
  kd: 0.0
speed_pid_conf:
  kp: 1.5
  ki: 0.5
  kd: 0.0
  integrator_enable: true
  integrator_saturation_level: 0.3
max_acceleration: 2.0
max_deceleration: 4.0
throttle_max: 80
brake_max: 60
throttle_deadzone: 5
brake_deadzone: 10
standstill_brake: 30
stop_speed: 0.1
`

const latConfText = `ts: 0.01
wheelbase: 2.8
steer_ratio: 16
max_steer_angle_deg: 470
steering_rate: 100
preview_window: 3
heading_error_filter: 0.5
enable_feedforward: true
matrix_k: [0.3, 1.2]
`

const calibText = `calibration:
  - {speed: 0, acceleration: -4, command: -60}
  - {speed: 0, acceleration: 0, command: 0}
  - {speed: 0, acceleration: 2, command: 40}
  - {speed: 20, acceleration: -4, command: -50}
  - {speed: 20, acceleration: 0, command: 15}
  - {speed: 20, acceleration: 2, command: 70}
`

type fixture struct {
	root  string
	calib string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{root: t.TempDir()}
	f.writeConf(t, StubName, "enable_estop_passthrough: true\n")
	f.writeConf(t, LonName, lonConfText)
	f.writeConf(t, LatName, latConfText)
	f.calib = filepath.Join(f.root, "calibration_table.pb.txt")
	if err := os.WriteFile(f.calib, []byte(calibText), 0644); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f *fixture) writeConf(t *testing.T, class, content string) {
	t.Helper()
	path := filepath.Join(f.root, class, controltask.DefaultConfRelativePath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) deps(t *testing.T) controltask.Deps {
	return controltask.Deps{
		Resolver:             pluginpath.NewManager(nil, f.root),
		Logger:               logging.NewTestLogger(t),
		CalibrationTableFile: f.calib,
	}
}

// straightTrajectory runs along +x at speed v with points every metre.
func straightTrajectory(n int, v float64) *msgs.ADCTrajectory {
	traj := &msgs.ADCTrajectory{Gear: msgs.GearDrive}
	for i := 0; i < n; i++ {
		traj.TrajectoryPoints = append(traj.TrajectoryPoints, msgs.TrajectoryPoint{
			PathPoint:    msgs.PathPoint{X: float64(i), S: float64(i)},
			V:            v,
			RelativeTime: float64(i) / math.Max(v, 1),
		})
	}
	return traj
}

func localizationAt(x, y, heading float64) *msgs.LocalizationEstimate {
	return &msgs.LocalizationEstimate{Pose: msgs.Pose{Position: msgs.Vec3{X: x, Y: y}, Heading: heading}}
}

func chassisAt(speed float64) *msgs.Chassis {
	return &msgs.Chassis{SpeedMps: speed, GearLocation: msgs.GearDrive, DrivingMode: msgs.CompleteAutoDrive}
}
