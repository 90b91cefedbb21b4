// Package controlloop runs an ordered chain of control tasks against a
// shared dependency injector.
package controlloop

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gengqx/apollo/internal/controltask"
	"github.com/gengqx/apollo/internal/injector"
	"github.com/gengqx/apollo/internal/msgs"
)

var (
	ErrNotInitialized = errors.New("controlloop: agent not initialized")
	ErrStopped        = errors.New("controlloop: agent stopped")
	ErrNoTasks        = errors.New("controlloop: no control tasks")
	ErrUnknownTask    = errors.New("controlloop: task not in chain")
)

type agentState int

const (
	stateCreated agentState = iota
	stateReady
	stateStopped
)

// Agent owns the task chain. Each cycle every task writes into the same
// command in order, so a lateral task after a longitudinal one only fills
// in the fields it owns.
type Agent struct {
	mu     sync.Mutex
	logger *zap.SugaredLogger
	inj    *injector.DependencyInjector
	tasks  []controltask.ControlTask
	state  agentState
}

func NewAgent(logger *zap.SugaredLogger, inj *injector.DependencyInjector, tasks ...controltask.ControlTask) *Agent {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if inj == nil {
		inj = injector.New(0)
	}
	return &Agent{
		logger: logger,
		inj:    inj,
		tasks:  tasks,
	}
}

// NewAgentFromRegistry builds the named tasks from the default registry, in
// the order given.
func NewAgentFromRegistry(names []string, deps controltask.Deps, inj *injector.DependencyInjector) (*Agent, error) {
	if len(names) == 0 {
		return nil, ErrNoTasks
	}
	tasks := make([]controltask.ControlTask, 0, len(names))
	for _, name := range names {
		task, err := controltask.New(name, deps)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return NewAgent(deps.Logger, inj, tasks...), nil
}

func (a *Agent) Injector() *injector.DependencyInjector {
	return a.inj
}

// Tasks returns the task names in execution order.
func (a *Agent) Tasks() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	names := make([]string, len(a.tasks))
	for i, t := range a.tasks {
		names[i] = t.Name()
	}
	return names
}

// Init initializes every task in order. On the first failure the tasks
// already initialized are stopped in reverse order and the agent is stopped;
// build a new agent to retry.
func (a *Agent) Init() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case stateStopped:
		return ErrStopped
	case stateReady:
		return controltask.ErrAlreadyInitialized
	}
	if len(a.tasks) == 0 {
		return ErrNoTasks
	}

	for i, t := range a.tasks {
		if err := t.Init(a.inj); err != nil {
			a.logger.Errorw("control task init failed", "task", t.Name(), "error", err)
			for j := i - 1; j >= 0; j-- {
				a.tasks[j].Stop()
			}
			a.state = stateStopped
			return err
		}
		a.logger.Infow("control task initialized", "task", t.Name())
	}
	a.state = stateReady
	return nil
}

// ComputeControlCommand folds the inputs into the injector, runs each task
// on cmd and records the result as the previous command. A failing task
// aborts the cycle; cmd then holds whatever the chain wrote so far.
func (a *Agent) ComputeControlCommand(
	loc *msgs.LocalizationEstimate,
	chassis *msgs.Chassis,
	traj *msgs.ADCTrajectory,
	cmd *msgs.ControlCommand,
) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.checkReady(); err != nil {
		return err
	}

	a.inj.UpdateVehicleState(loc, chassis)
	for _, t := range a.tasks {
		if err := t.ComputeControlCommand(loc, chassis, traj, cmd); err != nil {
			return err
		}
	}
	a.inj.SetPreviousControlCommand(cmd)
	return nil
}

// Reset resets every task and the injector history. All tasks are reset even
// when one fails.
func (a *Agent) Reset() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.checkReady(); err != nil {
		return err
	}

	var errs error
	for _, t := range a.tasks {
		errs = multierr.Append(errs, t.Reset())
	}
	a.inj.Reset()
	return errs
}

// Stop stops every task once. Later calls are no-ops.
func (a *Agent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == stateStopped {
		return
	}
	for _, t := range a.tasks {
		t.Stop()
		a.logger.Debugw("control task stopped", "task", t.Name())
	}
	a.state = stateStopped
}

// Reload replaces the named task with a freshly built and initialized
// instance. On any failure the running instance is kept.
func (a *Agent) Reload(name string, deps controltask.Deps) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.checkReady(); err != nil {
		return err
	}

	idx := -1
	for i, t := range a.tasks {
		if t.Name() == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}

	fresh, err := controltask.New(name, deps)
	if err != nil {
		return err
	}
	if err := fresh.Init(a.inj); err != nil {
		a.logger.Warnw("reload failed, keeping running instance", "task", name, "error", err)
		fresh.Stop()
		return err
	}

	old := a.tasks[idx]
	a.tasks[idx] = fresh
	old.Stop()
	a.logger.Infow("control task reloaded", "task", name)
	return nil
}

func (a *Agent) checkReady() error {
	switch a.state {
	case stateCreated:
		return ErrNotInitialized
	case stateStopped:
		return ErrStopped
	}
	return nil
}
