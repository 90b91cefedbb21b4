package controllers

import (
	"github.com/gengqx/apollo/internal/controltask"
	"github.com/gengqx/apollo/internal/injector"
	"github.com/gengqx/apollo/internal/msgs"
)

const StubName = "StubController"

type StubConf struct {
	// EnableEstopPassthrough copies the trajectory's estop flag into the command.
	EnableEstopPassthrough bool `yaml:"enable_estop_passthrough"`
}

// StubController applies no control law. Every cycle it emits the safe
// default command. Init may be repeated only after Reset; otherwise it
// returns ErrAlreadyInitialized and leaves the instance as it was.
type StubController struct {
	*controltask.Base
	conf   StubConf
	life   lifecycle
	cycles int
}

func NewStub(deps controltask.Deps) *StubController {
	return &StubController{Base: controltask.NewBase(StubName, deps)}
}

func (s *StubController) Init(*injector.DependencyInjector) error {
	if err := s.life.checkInit(); err != nil {
		return controltask.Wrap(s.Name(), "init", err)
	}

	var conf StubConf
	if err := s.LoadConfig(&conf); err != nil {
		return controltask.Wrap(s.Name(), "init", err)
	}

	s.conf = conf
	s.cycles = 0
	s.life.markInitialized()
	return nil
}

func (s *StubController) ComputeControlCommand(
	loc *msgs.LocalizationEstimate,
	chassis *msgs.Chassis,
	traj *msgs.ADCTrajectory,
	cmd *msgs.ControlCommand,
) error {
	if err := s.life.checkReady(); err != nil {
		return controltask.Wrap(s.Name(), "compute", err)
	}
	if err := checkInputs(loc, chassis, traj, cmd); err != nil {
		return controltask.Wrap(s.Name(), "compute", err)
	}

	cmd.SetSafeDefaults(chassis)
	if s.conf.EnableEstopPassthrough && traj.Estop.IsEstop {
		cmd.Estop = true
	}
	s.cycles++
	return nil
}

func (s *StubController) Reset() error {
	if err := s.life.checkReady(); err != nil {
		return controltask.Wrap(s.Name(), "reset", err)
	}
	s.cycles = 0
	s.life.markReset()
	return nil
}

// Cycles is the number of successful computes since the last Init or Reset.
func (s *StubController) Cycles() int {
	return s.cycles
}

func (s *StubController) Stop() {
	s.life.markStopped()
	s.Logger().Debugw("stopped", "cycles", s.cycles)
}

func init() {
	controltask.Register(StubName, func(deps controltask.Deps) controltask.ControlTask {
		return NewStub(deps)
	})
}
