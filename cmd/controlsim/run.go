package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gengqx/apollo/internal/config"
	"github.com/gengqx/apollo/internal/controlloop"
	"github.com/gengqx/apollo/internal/controltask"
	"github.com/gengqx/apollo/internal/experiment"
	"github.com/gengqx/apollo/internal/integrators"
	"github.com/gengqx/apollo/internal/sim"
	"github.com/gengqx/apollo/internal/storage"
	"github.com/gengqx/apollo/internal/viz"
)

type runOptions struct {
	preset      string
	dt          float64
	duration    float64
	controllers []string
	integrator  string
	offset      float64
	heading     float64
	speed       float64
	targetSpeed float64
	all         bool
	workers     int
	noSave      bool
	live        int
}

func (o *runOptions) addFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&o.preset, "preset", "p", "", "scenario preset")
	fs.Float64Var(&o.dt, "dt", config.DefaultDt, "control cycle (s)")
	fs.Float64VarP(&o.duration, "time", "t", 0, "simulated time (s), 0 uses the scenario's")
	fs.StringSliceVarP(&o.controllers, "controllers", "c", nil, "controller chain, in execution order")
	fs.StringVarP(&o.integrator, "integrator", "i", config.DefaultIntegrator, fmt.Sprintf("integrator %v", integrators.Names()))
	fs.Float64Var(&o.offset, "offset", 0, "initial lateral offset (m, left positive)")
	fs.Float64Var(&o.heading, "heading", 0, "initial heading offset (rad)")
	fs.Float64Var(&o.speed, "speed", 0, "initial speed (m/s)")
	fs.Float64Var(&o.targetSpeed, "target-speed", 0, "cruise speed of the reference (m/s)")
}

// resolve layers the scenario argument, the preset and changed flags over
// the loaded config.
func (o *runOptions) resolve(cmd *cobra.Command, args []string) (*config.Config, error) {
	c := *cfg
	if len(args) > 0 {
		c.Scenario = args[0]
	}
	if o.preset != "" {
		p := config.GetPreset(c.Scenario, o.preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset %q for %s (have %v)", o.preset, c.Scenario, config.ListPresets(c.Scenario))
		}
		c.Apply(p)
	}

	fs := cmd.Flags()
	if fs.Changed("dt") {
		c.Dt = o.dt
	}
	if fs.Changed("time") {
		c.Duration = o.duration
	}
	if fs.Changed("controllers") {
		c.Controllers = o.controllers
	}
	if fs.Changed("integrator") {
		c.Integrator = o.integrator
	}
	if fs.Changed("offset") {
		c.InitState.LateralOffset = o.offset
	}
	if fs.Changed("heading") {
		c.InitState.HeadingOffset = o.heading
	}
	if fs.Changed("speed") {
		c.InitState.InitialSpeed = o.speed
	}
	if fs.Changed("target-speed") {
		c.InitState.TargetSpeed = o.targetSpeed
	}
	return &c, c.Validate()
}

// summarize saves the result unless disabled and renders its summary.
func summarize(e *experiment.Experiment, res *sim.Result, save bool) (string, error) {
	meta := e.Metadata()
	if save {
		st := storage.New(cfg.RunsDir)
		if err := st.Init(); err != nil {
			return "", err
		}
		id, err := st.Save(meta, res)
		if err != nil {
			return "", err
		}
		saved, err := st.Load(id)
		if err != nil {
			return "", err
		}
		meta = *saved
	} else {
		meta.ID = e.Scenario().Name + " (not saved)"
		meta.Steps = res.StepsTaken
		meta.Metrics = res.Metrics
		for _, err := range res.Errors {
			meta.Errors = append(meta.Errors, err.Error())
		}
	}

	lat := make([]float64, len(res.Commands))
	for i := range res.Commands {
		lat[i] = res.Commands[i].Debug.LateralError
	}
	return viz.RunSummary(&meta) + "\n" + viz.Subtle.Render("lateral error ") + viz.Sparkline(lat, 60), nil
}

// report prints what summarize renders.
func report(e *experiment.Experiment, res *sim.Result, save bool) error {
	summary, err := summarize(e, res, save)
	if err != nil {
		return err
	}
	fmt.Println(summary)
	return nil
}

func newRunCmd() *cobra.Command {
	var o runOptions
	cmd := &cobra.Command{
		Use:   "run [scenario]",
		Short: "run a scenario closed-loop and store the result",
		Long:  fmt.Sprintf("Run the controller chain against a scenario %v. --all runs every scenario concurrently.", sim.ScenarioNames()),
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.resolve(cmd, args)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if o.all {
				return runAll(ctx, c, o.workers, !o.noSave)
			}
			if c.Watch {
				return watchLoop(ctx, c, o.live, !o.noSave)
			}

			deps, err := newDeps()
			if err != nil {
				return err
			}
			e, err := experiment.New(c, deps)
			if err != nil {
				return err
			}
			defer e.Close()

			if o.live > 0 && interactive() {
				return runMonitored(ctx, e, o.live, !o.noSave)
			}
			if o.live > 0 {
				live := viz.NewLiveRenderer(os.Stdout, e.Scenario().Trajectory, o.live)
				e.GetSimulator().AddObserver(live)
				live.Start()
				defer live.Stop()
			}

			logger.Infow("running", "scenario", c.Scenario, "controllers", e.Agent().Tasks(), "integrator", c.Integrator)
			res, err := e.Run(ctx)
			if err != nil {
				return err
			}
			return report(e, res, !o.noSave)
		},
	}
	o.addFlags(cmd)
	cmd.Flags().BoolVar(&o.all, "all", false, "run every scenario")
	cmd.Flags().IntVarP(&o.workers, "workers", "w", 0, "concurrent scenarios with --all, 0 for no limit")
	cmd.Flags().BoolVar(&o.noSave, "no-save", false, "print the summary without storing the run")
	cmd.Flags().IntVar(&o.live, "live", 0, "draw the vehicle live at this many frames per second")
	return cmd
}

// runAll runs every scenario, each with its own controller chain.
func runAll(ctx context.Context, base *config.Config, workers int, save bool) error {
	deps, err := newDeps()
	if err != nil {
		return err
	}

	exps := make(map[string]*experiment.Experiment)
	defer func() {
		for _, e := range exps {
			e.Close()
		}
	}()

	jobs := make([]sim.Job, 0, len(sim.ScenarioNames()))
	for _, name := range sim.ScenarioNames() {
		c := *base
		c.Scenario = name
		e, err := experiment.New(&c, deps)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		exps[name] = e
		jobs = append(jobs, e.Job(name))
	}

	results, err := sim.RunBatch(ctx, jobs, workers)
	if err != nil {
		return err
	}
	for _, name := range sim.ScenarioNames() {
		if err := report(exps[name], results[name], save); err != nil {
			return err
		}
	}
	return nil
}

func newWatchCmd() *cobra.Command {
	var o runOptions
	cmd := &cobra.Command{
		Use:   "watch [scenario]",
		Short: "rerun a scenario whenever a controller's configuration changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.resolve(cmd, args)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watchLoop(ctx, c, o.live, !o.noSave)
		},
	}
	o.addFlags(cmd)
	cmd.Flags().BoolVar(&o.noSave, "no-save", false, "print summaries without storing the runs")
	cmd.Flags().IntVar(&o.live, "live", 0, "show every rerun in the live monitor at this many frames per second")
	return cmd
}

// watchLoop runs c once, then reloads the changed task, resets the chain and
// reruns on every write to a controller's configuration file. A task whose
// new configuration fails Init keeps running with the old one. With live > 0
// on a terminal the reruns, reload events and summaries go to the monitor.
func watchLoop(ctx context.Context, c *config.Config, live int, save bool) error {
	deps, err := newDeps()
	if err != nil {
		return err
	}
	e, err := experiment.New(c, deps)
	if err != nil {
		return err
	}
	defer e.Close()

	changed := make(chan string, 8)
	w, err := controlloop.NewWatcher(logger, func(task string) {
		select {
		case changed <- task:
		default:
		}
	})
	if err != nil {
		return err
	}
	defer w.Close()

	paths := make(map[string]string)
	for _, name := range e.Agent().Tasks() {
		path, err := deps.Resolver.ConfPath(name, controltask.DefaultConfRelativePath)
		if err != nil {
			return err
		}
		if err := w.Watch(name, path); err != nil {
			return err
		}
		paths[name] = path
	}

	if live <= 0 || !interactive() {
		for name, path := range paths {
			logger.Infow("watching", "task", name, "path", path)
		}
		go w.Run(ctx)
		return rerunOnChange(ctx, e, changed, save,
			func(task string, err error) {
				logger.Warnw("reload failed, keeping the running instance", "task", task, "error", err)
			},
			func(summary string) { fmt.Println(summary) })
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	p := newMonitor(ctx, e, live, false)
	go w.Run(ctx)

	done := make(chan error, 1)
	go func() {
		for name, path := range paths {
			p.Send(viz.EventMsg(fmt.Sprintf("watching %s at %s", name, path)))
		}
		done <- rerunOnChange(ctx, e, changed, save,
			func(task string, err error) {
				p.Send(viz.EventMsg(fmt.Sprintf("reload of %s failed, keeping the running instance: %v", task, err)))
			},
			func(summary string) { p.Send(viz.RunDoneMsg{Summary: summary}) })
		p.Quit()
	}()

	final, err := p.Run()
	cancel()
	if loopErr := <-done; loopErr != nil {
		return loopErr
	}
	return monitorErr(final, err)
}

// rerunOnChange runs e, then again after every successful reload of a task
// named on changed, until ctx ends.
func rerunOnChange(ctx context.Context, e *experiment.Experiment, changed <-chan string, save bool,
	reloadFailed func(task string, err error), show func(summary string)) error {
	rerun := func() error {
		res, err := e.Run(ctx)
		if err != nil {
			return err
		}
		summary, err := summarize(e, res, save)
		if err != nil {
			return err
		}
		show(summary)
		return nil
	}
	if err := rerun(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case task := <-changed:
			if err := e.Reload(task); err != nil {
				reloadFailed(task, err)
				continue
			}
			if err := rerun(); err != nil && ctx.Err() == nil {
				return err
			}
		}
	}
}
