// Package controltask defines the contract every vehicle controller satisfies
// so a control loop can drive it without knowing its internals.
//
// A [ControlTask] goes through a fixed lifecycle:
//
//   - Init once, with the shared [injector.DependencyInjector]. This is where
//     the task loads its configuration and, if it needs one, the calibration
//     table. A failed Init means the instance must not be used.
//   - ComputeControlCommand once per control cycle. Inputs are read-only
//     snapshots; the task writes only into the command it is given.
//   - Reset any number of times, to return to the post-Init baseline without
//     touching the disk.
//   - Stop once at the end of life.
//
// Concrete controllers embed [Base] to get the configuration helpers:
//
//	type MyController struct {
//		*controltask.Base
//		conf MyConf
//	}
//
//	func (c *MyController) Init(inj *injector.DependencyInjector) error {
//		return c.LoadConfig(&c.conf)
//	}
//
// [Base.LoadConfig] resolves "conf/controller_conf.pb.txt" for the task's
// declared name through a [pluginpath.Resolver] and parses it with
// [textconf.ParseFromFile]. Tasks are registered by that same name with
// [Register] and built with [New].
//
// # Concurrency
//
// A task instance is not re-entrant: callers must not run any two lifecycle
// calls on the same instance at once. Distinct instances share nothing except
// the injector, which synchronizes itself.
package controltask
