package controlloop_test

import (
	"errors"
	"sync"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/gengqx/apollo/internal/controlloop"
	"github.com/gengqx/apollo/internal/controltask"
	"github.com/gengqx/apollo/internal/injector"
	"github.com/gengqx/apollo/internal/logging"
	"github.com/gengqx/apollo/internal/msgs"
)

const reloadableName = "ReloadableTask"

// reloadGeneration counts the instances built by the registered factory;
// failReloadInit makes the next built instance fail Init.
var (
	reloadMu         sync.Mutex
	reloadGeneration int
	failReloadInit   bool
)

func init() {
	controltask.Register(reloadableName, func(controltask.Deps) controltask.ControlTask {
		reloadMu.Lock()
		defer reloadMu.Unlock()
		reloadGeneration++
		t := &recordingTask{name: reloadableName, steer: float64(reloadGeneration)}
		if failReloadInit {
			t.initErr = controltask.ErrConfigParseFailure
		}
		return t
	})
}

type recordingTask struct {
	name     string
	log      *[]string
	throttle float64
	steer    float64
	initErr  error
	resetErr error
	stopped  int
}

func (r *recordingTask) record(op string) {
	if r.log != nil {
		*r.log = append(*r.log, r.name+"."+op)
	}
}

func (r *recordingTask) Init(*injector.DependencyInjector) error {
	r.record("init")
	return r.initErr
}

func (r *recordingTask) ComputeControlCommand(_ *msgs.LocalizationEstimate, _ *msgs.Chassis, _ *msgs.ADCTrajectory, cmd *msgs.ControlCommand) error {
	r.record("compute")
	if r.throttle != 0 {
		cmd.Throttle = r.throttle
	}
	if r.steer != 0 {
		cmd.SteeringTarget = r.steer
	}
	return nil
}

func (r *recordingTask) Reset() error {
	r.record("reset")
	return r.resetErr
}

func (r *recordingTask) Name() string { return r.name }

func (r *recordingTask) Stop() {
	r.record("stop")
	r.stopped++
}

func inputs() (*msgs.LocalizationEstimate, *msgs.Chassis, *msgs.ADCTrajectory) {
	loc := &msgs.LocalizationEstimate{Pose: msgs.Pose{Position: msgs.Vec3{X: 1, Y: 2}, Heading: 0.5}}
	chassis := &msgs.Chassis{SpeedMps: 3, GearLocation: msgs.GearDrive}
	traj := &msgs.ADCTrajectory{TrajectoryPoints: []msgs.TrajectoryPoint{{V: 3}}}
	return loc, chassis, traj
}

var _ = ginkgo.Describe("Agent", func() {
	var (
		calls []string
		lon   *recordingTask
		lat   *recordingTask
		inj   *injector.DependencyInjector
		agent *controlloop.Agent
	)

	ginkgo.BeforeEach(func() {
		calls = nil
		lon = &recordingTask{name: "lon", log: &calls, throttle: 40}
		lat = &recordingTask{name: "lat", log: &calls, steer: -12}
		inj = injector.New(4)
		agent = controlloop.NewAgent(logging.NewTestLogger(ginkgo.GinkgoT()), inj, lon, lat)
	})

	ginkgo.It("rejects compute before Init", func() {
		cmd := &msgs.ControlCommand{}
		loc, chassis, traj := inputs()
		err := agent.ComputeControlCommand(loc, chassis, traj, cmd)
		gomega.Expect(errors.Is(err, controlloop.ErrNotInitialized)).To(gomega.BeTrue())
		gomega.Expect(calls).To(gomega.BeEmpty())
	})

	ginkgo.It("runs the chain in order on one command", func() {
		gomega.Expect(agent.Init()).To(gomega.Succeed())
		gomega.Expect(agent.Tasks()).To(gomega.Equal([]string{"lon", "lat"}))

		cmd := &msgs.ControlCommand{}
		loc, chassis, traj := inputs()
		gomega.Expect(agent.ComputeControlCommand(loc, chassis, traj, cmd)).To(gomega.Succeed())

		gomega.Expect(calls).To(gomega.Equal([]string{"lon.init", "lat.init", "lon.compute", "lat.compute"}))
		gomega.Expect(cmd.Throttle).To(gomega.Equal(40.0))
		gomega.Expect(cmd.SteeringTarget).To(gomega.Equal(-12.0))

		gomega.Expect(inj.PreviousControlCommand()).To(gomega.Equal(*cmd))
		gomega.Expect(inj.VehicleState().LinearVelocity).To(gomega.Equal(3.0))
		gomega.Expect(inj.History()).To(gomega.HaveLen(1))
	})

	ginkgo.It("stops at the first failing Init", func() {
		lon.initErr = controltask.ErrConfigPathUnresolved

		err := agent.Init()
		gomega.Expect(errors.Is(err, controltask.ErrConfigPathUnresolved)).To(gomega.BeTrue())
		gomega.Expect(calls).To(gomega.Equal([]string{"lon.init"}))

		cmd := &msgs.ControlCommand{}
		loc, chassis, traj := inputs()
		gomega.Expect(errors.Is(agent.ComputeControlCommand(loc, chassis, traj, cmd), controlloop.ErrStopped)).To(gomega.BeTrue())
	})

	ginkgo.It("stops the initialized tasks when a later Init fails", func() {
		lat.initErr = controltask.ErrConfigParseFailure

		err := agent.Init()
		gomega.Expect(errors.Is(err, controltask.ErrConfigParseFailure)).To(gomega.BeTrue())
		gomega.Expect(calls).To(gomega.Equal([]string{"lon.init", "lat.init", "lon.stop"}))

		gomega.Expect(errors.Is(agent.Init(), controlloop.ErrStopped)).To(gomega.BeTrue())
		agent.Stop()
		gomega.Expect(lon.stopped).To(gomega.Equal(1))
		gomega.Expect(lat.stopped).To(gomega.BeZero())
	})

	ginkgo.It("rejects a second Init", func() {
		gomega.Expect(agent.Init()).To(gomega.Succeed())
		gomega.Expect(errors.Is(agent.Init(), controltask.ErrAlreadyInitialized)).To(gomega.BeTrue())
	})

	ginkgo.It("resets every task and aggregates failures", func() {
		gomega.Expect(agent.Init()).To(gomega.Succeed())
		loc, chassis, traj := inputs()
		gomega.Expect(agent.ComputeControlCommand(loc, chassis, traj, &msgs.ControlCommand{})).To(gomega.Succeed())

		lon.resetErr = errors.New("lon reset")
		lat.resetErr = errors.New("lat reset")
		err := agent.Reset()
		gomega.Expect(err).To(gomega.HaveOccurred())
		gomega.Expect(err.Error()).To(gomega.ContainSubstring("lon reset"))
		gomega.Expect(err.Error()).To(gomega.ContainSubstring("lat reset"))
		gomega.Expect(calls).To(gomega.ContainElements("lon.reset", "lat.reset"))

		gomega.Expect(inj.History()).To(gomega.BeEmpty())
		gomega.Expect(inj.PreviousControlCommand()).To(gomega.Equal(msgs.ControlCommand{}))
	})

	ginkgo.It("stops once and is terminal", func() {
		gomega.Expect(agent.Init()).To(gomega.Succeed())
		agent.Stop()
		agent.Stop()
		gomega.Expect(lon.stopped).To(gomega.Equal(1))
		gomega.Expect(lat.stopped).To(gomega.Equal(1))

		loc, chassis, traj := inputs()
		gomega.Expect(errors.Is(agent.ComputeControlCommand(loc, chassis, traj, &msgs.ControlCommand{}), controlloop.ErrStopped)).To(gomega.BeTrue())
		gomega.Expect(errors.Is(agent.Reset(), controlloop.ErrStopped)).To(gomega.BeTrue())
		gomega.Expect(errors.Is(agent.Init(), controlloop.ErrStopped)).To(gomega.BeTrue())
	})
})

var _ = ginkgo.Describe("Agent reload", func() {
	var (
		deps  controltask.Deps
		agent *controlloop.Agent
	)

	ginkgo.BeforeEach(func() {
		reloadMu.Lock()
		reloadGeneration = 0
		failReloadInit = false
		reloadMu.Unlock()

		deps = controltask.Deps{Logger: logging.NewTestLogger(ginkgo.GinkgoT())}
		var err error
		agent, err = controlloop.NewAgentFromRegistry([]string{reloadableName}, deps, nil)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(agent.Init()).To(gomega.Succeed())
	})

	steering := func() float64 {
		cmd := &msgs.ControlCommand{}
		loc, chassis, traj := inputs()
		gomega.Expect(agent.ComputeControlCommand(loc, chassis, traj, cmd)).To(gomega.Succeed())
		return cmd.SteeringTarget
	}

	ginkgo.It("swaps in a fresh instance", func() {
		gomega.Expect(steering()).To(gomega.Equal(1.0))
		gomega.Expect(agent.Reload(reloadableName, deps)).To(gomega.Succeed())
		gomega.Expect(steering()).To(gomega.Equal(2.0))
	})

	ginkgo.It("keeps the running instance when the new one fails Init", func() {
		reloadMu.Lock()
		failReloadInit = true
		reloadMu.Unlock()

		err := agent.Reload(reloadableName, deps)
		gomega.Expect(errors.Is(err, controltask.ErrConfigParseFailure)).To(gomega.BeTrue())
		gomega.Expect(steering()).To(gomega.Equal(1.0))
	})

	ginkgo.It("rejects tasks outside the chain", func() {
		err := agent.Reload("StubController", deps)
		gomega.Expect(errors.Is(err, controlloop.ErrUnknownTask)).To(gomega.BeTrue())
	})

	ginkgo.It("rejects unknown registry names", func() {
		_, err := controlloop.NewAgentFromRegistry([]string{"NoSuchController"}, deps, nil)
		gomega.Expect(errors.Is(err, controltask.ErrUnknownTask)).To(gomega.BeTrue())
	})
})
