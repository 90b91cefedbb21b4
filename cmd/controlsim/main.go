package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gengqx/apollo/internal/config"
	"github.com/gengqx/apollo/internal/controltask"
	"github.com/gengqx/apollo/internal/flags"
	"github.com/gengqx/apollo/internal/logging"
	"github.com/gengqx/apollo/internal/pluginpath"

	_ "github.com/gengqx/apollo/internal/controllers"
)

var (
	configFile string
	dataDir    string
	logLevel   string

	// Resolved in PersistentPreRunE.
	cfg    *config.Config
	logger *zap.SugaredLogger
)

// main wires the controlsim commands. Global control flags live on the
// root so every subcommand resolves controllers the same way.
func main() {
	rootCmd := &cobra.Command{
		Use:               "controlsim",
		Short:             "closed-loop bench for pluggable control tasks",
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "run config file (yaml)")
	pf.StringVar(&dataDir, "data", "", "runs directory (overrides runs_dir)")
	pf.StringVar(&logLevel, "log-level", "", "log level (overrides log_level)")
	flags.AddFlags(pf)

	rootCmd.AddCommand(
		newRunCmd(),
		newWatchCmd(),
		newSuiteCmd(),
		newSweepCmd(),
		newMonteCarloCmd(),
		newControllersCmd(),
		newResolveCmd(),
		newCalibCmd(),
		newPresetsCmd(),
		newRunsCmd(),
		newPlotCmd(),
		newExportCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup merges defaults, the config file and the command line, in that
// order of increasing precedence, and publishes the global flags.
func setup(cmd *cobra.Command, args []string) error {
	flags.Apply()

	cfg = config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	pf := cmd.Flags()
	if pf.Changed("calibration_table_file") {
		cfg.CalibrationTableFile = flags.CalibrationTableFile()
	} else {
		flags.SetCalibrationTableFile(cfg.CalibrationTableFile)
	}
	if pf.Changed("plugin_index") {
		cfg.PluginIndex = flags.PluginIndex()
	} else {
		flags.SetPluginIndex(cfg.PluginIndex)
	}
	if pf.Changed("plugin_search_path") {
		cfg.PluginSearchPaths = flags.PluginSearchPath()
	} else {
		flags.SetPluginSearchPath(strings.Join(cfg.PluginSearchPaths, ":"))
	}
	if dataDir != "" {
		cfg.RunsDir = dataDir
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger = logging.NewLogger("controlsim", cfg.LogLevel)
	return nil
}

// newResolver builds the plugin path manager from the merged settings.
func newResolver() (*pluginpath.Manager, error) {
	mgr := pluginpath.NewManager(logger, cfg.PluginSearchPaths...)
	if cfg.PluginIndex != "" {
		if err := mgr.LoadIndex(cfg.PluginIndex); err != nil {
			return nil, err
		}
	}
	return mgr, nil
}

func newDeps() (controltask.Deps, error) {
	mgr, err := newResolver()
	if err != nil {
		return controltask.Deps{}, err
	}
	// CalibrationTableFile stays empty: tasks read the published flag.
	return controltask.Deps{Resolver: mgr, Logger: logger}, nil
}
