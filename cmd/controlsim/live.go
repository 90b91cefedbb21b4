package main

import (
	"context"
	"errors"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/gengqx/apollo/internal/experiment"
	"github.com/gengqx/apollo/internal/viz"
)

// interactive reports whether stdout can host the monitor.
func interactive() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// newMonitor starts the monitor for e and feeds it every simulated step at
// up to fps frames per second.
func newMonitor(ctx context.Context, e *experiment.Experiment, fps int, quitOnDone bool) *tea.Program {
	sc := e.Scenario()
	m := viz.NewMonitor(sc.Name, sc.Trajectory, quitOnDone)
	p := tea.NewProgram(m, tea.WithContext(ctx))
	e.GetSimulator().AddObserver(viz.NewMonitorFeed(p.Send, fps))
	return p
}

// runMonitored runs e once under the monitor. Quitting the monitor cancels
// the run.
func runMonitored(ctx context.Context, e *experiment.Experiment, fps int, save bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	p := newMonitor(ctx, e, fps, true)

	done := make(chan struct{})
	go func() {
		defer close(done)
		res, err := e.Run(ctx)
		if err != nil {
			p.Send(viz.RunDoneMsg{Err: err})
			return
		}
		summary, err := summarize(e, res, save)
		p.Send(viz.RunDoneMsg{Summary: summary, Err: err})
	}()

	final, err := p.Run()
	cancel()
	<-done
	return monitorErr(final, err)
}

// monitorErr folds the program's exit and the last run's outcome. An
// interrupted run is a clean stop.
func monitorErr(final tea.Model, err error) error {
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	if m, ok := final.(viz.Monitor); ok {
		if err := m.Err(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return nil
}
