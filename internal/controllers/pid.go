package controllers

import "math"

type PIDConf struct {
	Kp                   float64 `yaml:"kp"`
	Ki                   float64 `yaml:"ki"`
	Kd                   float64 `yaml:"kd"`
	IntegratorSaturation float64 `yaml:"integrator_saturation_level"`
	IntegratorEnable     bool    `yaml:"integrator_enable"`
}

// PID is a discrete PID with a saturating integrator. It is stepped with the
// control period from configuration, never wall-clock time.
type PID struct {
	Kp         float64
	Ki         float64
	Kd         float64
	Saturation float64
	integrate  bool
	integral   float64
	prevErr    float64
	first      bool
}

func NewPID(conf PIDConf) *PID {
	return &PID{
		Kp:         conf.Kp,
		Ki:         conf.Ki,
		Kd:         conf.Kd,
		Saturation: math.Abs(conf.IntegratorSaturation),
		integrate:  conf.IntegratorEnable,
		first:      true,
	}
}

func (p *PID) Control(err, dt float64) float64 {
	if dt <= 0 {
		return p.Kp * err
	}

	derivative := 0.0
	if p.first {
		p.first = false
	} else {
		derivative = (err - p.prevErr) / dt
	}
	p.prevErr = err

	if p.integrate {
		p.integral += err * dt * p.Ki
		if p.Saturation > 0 {
			p.integral = clamp(p.integral, -p.Saturation, p.Saturation)
		}
	}

	return p.Kp*err + p.integral + p.Kd*derivative
}

// Reset clears integral and derivative state
func (p *PID) Reset() {
	p.integral = 0
	p.prevErr = 0
	p.first = true
}
