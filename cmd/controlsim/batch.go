package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gengqx/apollo/internal/automation"
	"github.com/gengqx/apollo/internal/viz"
)

func newSuiteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suite [file]",
		Short: "run a yaml suite of scenarios and check metric expectations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			suite, err := automation.LoadSuite(args[0])
			if err != nil {
				return err
			}
			deps, err := newDeps()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			results, err := automation.RunSuite(ctx, suite, cfg, deps)
			if err != nil {
				return err
			}

			fmt.Println(viz.Title.Render(suite.Name) + " " + viz.Subtle.Render(suite.Description))
			failed := 0
			for i, r := range results {
				name := r.Step.Name
				if name == "" {
					name = fmt.Sprintf("step %d", i+1)
				}
				if r.Passed() {
					fmt.Printf("  %s %s\n", viz.Positive.Render("PASS"), name)
					continue
				}
				failed++
				fmt.Printf("  %s %s\n", viz.Negative.Render("FAIL"), name)
				for _, f := range r.Failures {
					fmt.Printf("       %s\n", f)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d steps failed", failed, len(results))
			}
			return nil
		},
	}
}

func newSweepCmd() *cobra.Command {
	var (
		o  runOptions
		sw automation.ParameterSweep
	)
	cmd := &cobra.Command{
		Use:   "sweep [scenario]",
		Short: "run a scenario across a range of one initial-state parameter",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.resolve(cmd, args)
			if err != nil {
				return err
			}
			deps, err := newDeps()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			results, err := automation.RunSweep(ctx, &sw, c, deps)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\tLAT RMS\tSPEED ERR\tON TRACK\tSTEER HZ\tERRORS\n", strings.ToUpper(sw.Param))
			for _, r := range results {
				fmt.Fprintf(w, "%.4f\t%.4f\t%.4f\t%.3f\t%.2f\t%d\n",
					r.Value,
					r.Metrics["lateral_error_rms"],
					r.Metrics["speed_error_mean"],
					r.Metrics["on_track"],
					r.Metrics["steering_dominant_hz"],
					r.Errors,
				)
			}
			return w.Flush()
		},
	}
	o.addFlags(cmd)
	fs := cmd.Flags()
	fs.StringVar(&sw.Param, "param", automation.ParamLateralOffset, fmt.Sprintf("parameter to sweep %v", automation.SweepParams()))
	fs.Float64Var(&sw.Min, "min", 0, "first value")
	fs.Float64Var(&sw.Max, "max", 1, "last value")
	fs.IntVar(&sw.NumSteps, "steps", 5, "number of values")
	fs.IntVarP(&sw.Workers, "workers", "w", 0, "concurrent runs, 0 for no limit")
	return cmd
}

func newMonteCarloCmd() *cobra.Command {
	var (
		o  runOptions
		mc automation.MonteCarloConfig
	)
	cmd := &cobra.Command{
		Use:   "montecarlo [scenario]",
		Short: "run randomly perturbed starts and count the stable ones",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.resolve(cmd, args)
			if err != nil {
				return err
			}
			deps, err := newDeps()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			results, err := automation.RunMonteCarlo(ctx, &mc, c, deps)
			if err != nil {
				return err
			}

			worst := results[0]
			for _, r := range results[1:] {
				if r.Metrics["lateral_error_rms"] > worst.Metrics["lateral_error_rms"] {
					worst = r
				}
			}
			stable, unstable := automation.MonteCarloStats(results)
			fmt.Printf("%s %d stable, %d unstable of %d trials\n",
				viz.Title.Render(c.Scenario), stable, unstable, len(results))
			fmt.Printf("worst trial %d: offset %.3fm heading %.3frad, lateral rms %.4fm\n",
				worst.TrialID, worst.InitState.LateralOffset, worst.InitState.HeadingOffset, worst.Metrics["lateral_error_rms"])
			return nil
		},
	}
	o.addFlags(cmd)
	fs := cmd.Flags()
	fs.IntVarP(&mc.NumTrials, "trials", "n", 20, "number of trials")
	fs.Int64Var(&mc.Seed, "seed", 0, "random seed, 0 for a time based one")
	fs.Float64Var(&mc.MaxLateralOffset, "max-offset", 0.5, "largest lateral perturbation (m)")
	fs.Float64Var(&mc.MaxHeadingOffset, "max-heading", 0.1, "largest heading perturbation (rad)")
	fs.Float64Var(&mc.MinOnTrack, "min-on-track", 0.95, "on-track fraction a stable trial reaches")
	fs.IntVarP(&mc.Workers, "workers", "w", 0, "concurrent runs, 0 for no limit")
	return cmd
}
