package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gengqx/apollo/internal/calibration"
	"github.com/gengqx/apollo/internal/config"
	"github.com/gengqx/apollo/internal/controltask"
	"github.com/gengqx/apollo/internal/flags"
	"github.com/gengqx/apollo/internal/sim"
	"github.com/gengqx/apollo/internal/textconf"
	"github.com/gengqx/apollo/internal/viz"
)

func newControllersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "controllers",
		Short: "list registered controllers and their plugin directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newResolver()
			if err != nil {
				return err
			}
			fmt.Println(viz.Controllers(controltask.Names(), mgr.Descriptors()))
			return nil
		},
	}
}

func newResolveCmd() *cobra.Command {
	var relative string
	cmd := &cobra.Command{
		Use:   "resolve [class]",
		Short: "print the configuration file a controller would load",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newResolver()
			if err != nil {
				return err
			}
			path, err := mgr.ConfPath(args[0], relative)
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	}
	cmd.Flags().StringVar(&relative, "relative", controltask.DefaultConfRelativePath, "path relative to the plugin directory")
	return cmd
}

func newCalibCmd() *cobra.Command {
	var (
		speed float64
		accel float64
	)
	cmd := &cobra.Command{
		Use:   "calib [file]",
		Short: "show a calibration table, the configured one by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := flags.CalibrationTableFile()
			if len(args) > 0 {
				path = args[0]
			}

			var table calibration.Table
			if err := textconf.ParseFromFile(path, &table); err != nil {
				return err
			}
			if err := table.Validate(); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Println(viz.Calibration(path, table))

			ip, err := calibration.NewInterpolator(table)
			if err != nil {
				return err
			}
			lo, hi := ip.SpeedRange()
			fmt.Println(viz.Subtle.Render(fmt.Sprintf("speed range %.1f..%.1f m/s", lo, hi)))
			if cmd.Flags().Changed("speed") || cmd.Flags().Changed("accel") {
				fmt.Printf("%s %s\n",
					viz.MetricLabel.Render(fmt.Sprintf("command(v=%.2f, a=%.2f)", speed, accel)),
					viz.MetricValue.Render(fmt.Sprintf("%.2f%%", ip.Command(speed, accel))))
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&speed, "speed", 0, "lookup speed (m/s)")
	cmd.Flags().Float64Var(&accel, "accel", 0, "lookup acceleration (m/s²)")
	return cmd
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets [scenario]",
		Short: "list scenario presets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarios := sim.ScenarioNames()
			if len(args) > 0 {
				scenarios = args
			}
			for _, sc := range scenarios {
				names := config.ListPresets(sc)
				if names == nil {
					return fmt.Errorf("%w: %s", sim.ErrUnknownScenario, sc)
				}
				fmt.Println(viz.Title.Render(sc))
				for _, n := range names {
					p := config.GetPreset(sc, n)
					fmt.Printf("  %-10s %s\n", n, describePreset(p))
				}
			}
			return nil
		},
	}
}

func describePreset(p *config.Config) string {
	var parts []string
	if p.Duration > 0 {
		parts = append(parts, fmt.Sprintf("duration=%.0fs", p.Duration))
	}
	s := p.InitState
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"offset", s.LateralOffset},
		{"heading", s.HeadingOffset},
		{"speed", s.InitialSpeed},
		{"target", s.TargetSpeed},
	} {
		if f.v != 0 {
			parts = append(parts, fmt.Sprintf("%s=%g", f.name, f.v))
		}
	}
	if len(parts) == 0 {
		return viz.Subtle.Render("scenario defaults")
	}
	return strings.Join(parts, " ")
}
