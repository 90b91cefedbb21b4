package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gengqx/apollo/internal/export"
	"github.com/gengqx/apollo/internal/sim"
	"github.com/gengqx/apollo/internal/storage"
	"github.com/gengqx/apollo/internal/viz"
)

func newRunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "list stored runs, newest first",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(cfg.RunsDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tTIME\tDURATION\tDT\tINTEG\tCONTROLLERS\tLAT RMS\tERRORS")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%s\t%s\t%.4f\t%d\n",
			run.ID,
			run.Scenario,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Integrator,
			strings.Join(run.Controllers, ","),
			run.Metrics["lateral_error_rms"],
			len(run.Errors),
		)
	}

	return w.Flush()
}

func newPlotCmd() *cobra.Command {
	var (
		columns []string
		width   int
		height  int
	)
	cmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot stored series of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(cfg.RunsDir)
			meta, err := st.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Println(viz.RunSummary(meta))

			for _, col := range columns {
				_, values, err := st.LoadSeries(meta.ID, col)
				if err != nil {
					return err
				}
				fmt.Println(viz.Plot(values, col, width, height))
				fmt.Println()
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&columns, "column", []string{"y", "speed", "steering"},
		fmt.Sprintf("series to plot, any of %v", storage.Columns))
	cmd.Flags().IntVar(&width, "width", 80, "plot width")
	cmd.Flags().IntVar(&height, "height", 10, "plot height")
	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		format string
		width  int
		height int
	)
	cmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run as json (metadata and series) or svg (driven and reference paths)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(cfg.RunsDir)
			switch format {
			case "json":
				return st.Export(args[0], os.Stdout)
			case "svg":
				return exportSVG(st, args[0], width, height)
			default:
				return fmt.Errorf("unknown format %q, want json or svg", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "json or svg")
	cmd.Flags().IntVar(&width, "width", 800, "svg width")
	cmd.Flags().IntVar(&height, "height", 600, "svg height")
	return cmd
}

// exportSVG draws the driven path over the scenario's reference. Scenario
// options never move the reference geometry, so the defaults rebuild it.
func exportSVG(st *storage.Store, runID string, width, height int) error {
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	_, xs, err := st.LoadSeries(runID, "x")
	if err != nil {
		return err
	}
	_, ys, err := st.LoadSeries(runID, "y")
	if err != nil {
		return err
	}

	layers := []export.Layer{export.DrivenLayer(xs, ys)}
	if sc, err := sim.NewScenario(meta.Scenario, sim.ScenarioOptions{}); err == nil {
		layers = append([]export.Layer{export.ReferenceLayer(sc.Trajectory)}, layers...)
	} else {
		logger.Warnw("no reference for run", "run", runID, "scenario", meta.Scenario, "error", err)
	}
	return export.WriteSVG(os.Stdout, layers, width, height)
}
