package controltask

import (
	"github.com/gengqx/apollo/internal/injector"
	"github.com/gengqx/apollo/internal/msgs"
)

// DefaultConfRelativePath is where a task's own configuration lives inside
// its plugin directory.
const DefaultConfRelativePath = "conf/controller_conf.pb.txt"

// ControlTask is implemented by every controller the control loop can run.
type ControlTask interface {
	// Init performs all one-time setup, including loading configuration.
	// A second Init without an intervening Reset is undefined unless the
	// implementation documents otherwise.
	Init(inj *injector.DependencyInjector) error

	// ComputeControlCommand computes one cycle's command from read-only
	// inputs. It must not retain the inputs or block.
	ComputeControlCommand(
		loc *msgs.LocalizationEstimate,
		chassis *msgs.Chassis,
		traj *msgs.ADCTrajectory,
		cmd *msgs.ControlCommand,
	) error

	// Reset returns internal state to the post-Init baseline without
	// reloading configuration.
	Reset() error

	// Name is stable for the lifetime of the instance and is the identity
	// used to resolve the configuration path.
	Name() string

	// Stop releases resources. It is terminal for control purposes.
	Stop()
}
