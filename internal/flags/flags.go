// Package flags holds the process-wide settings shared by every control task,
// most importantly the calibration table location.
package flags

import (
	"strings"
	"sync"

	"github.com/spf13/pflag"
)

const (
	DefaultCalibrationTableFile = "/apollo/modules/control/control_component/conf/calibration_table.pb.txt"
	DefaultPluginIndex          = ""
)

var (
	mu                   sync.RWMutex
	calibrationTableFile = DefaultCalibrationTableFile
	pluginIndex          = DefaultPluginIndex
	pluginSearchPath     []string
)

type values struct {
	calibrationTableFile string
	pluginIndex          string
	pluginSearchPath     []string
}

var bound values

// AddFlags registers the global flags on fs. Values take effect once Apply is
// called after parsing.
func AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&bound.calibrationTableFile, "calibration_table_file", DefaultCalibrationTableFile, "calibration table file path")
	fs.StringVar(&bound.pluginIndex, "plugin_index", DefaultPluginIndex, "plugin index (yaml) mapping controller names to plugin directories")
	fs.StringSliceVar(&bound.pluginSearchPath, "plugin_search_path", nil, "directories searched for <controller>/conf/... when a controller has no index entry")
}

// Apply publishes the parsed flag values.
func Apply() {
	mu.Lock()
	defer mu.Unlock()
	calibrationTableFile = bound.calibrationTableFile
	pluginIndex = bound.pluginIndex
	pluginSearchPath = append([]string(nil), bound.pluginSearchPath...)
}

func CalibrationTableFile() string {
	mu.RLock()
	defer mu.RUnlock()
	return calibrationTableFile
}

func SetCalibrationTableFile(path string) {
	mu.Lock()
	calibrationTableFile = path
	mu.Unlock()
}

func PluginIndex() string {
	mu.RLock()
	defer mu.RUnlock()
	return pluginIndex
}

func SetPluginIndex(path string) {
	mu.Lock()
	pluginIndex = path
	mu.Unlock()
}

func PluginSearchPath() []string {
	mu.RLock()
	defer mu.RUnlock()
	return append([]string(nil), pluginSearchPath...)
}

// SetPluginSearchPath accepts a colon-separated list, the same shape as PATH.
func SetPluginSearchPath(list string) {
	var dirs []string
	for _, d := range strings.Split(list, ":") {
		if d = strings.TrimSpace(d); d != "" {
			dirs = append(dirs, d)
		}
	}
	mu.Lock()
	pluginSearchPath = dirs
	mu.Unlock()
}
