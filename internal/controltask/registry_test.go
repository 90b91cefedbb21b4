package controltask

import (
	"errors"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/gengqx/apollo/internal/injector"
	"github.com/gengqx/apollo/internal/msgs"
)

type fakeTask struct {
	*Base
}

func (f *fakeTask) Init(*injector.DependencyInjector) error { return nil }
func (f *fakeTask) ComputeControlCommand(*msgs.LocalizationEstimate, *msgs.Chassis, *msgs.ADCTrajectory, *msgs.ControlCommand) error {
	return nil
}
func (f *fakeTask) Reset() error { return nil }
func (f *fakeTask) Stop()        {}

var _ ControlTask = (*fakeTask)(nil)

func fakeFactory(name string) Factory {
	return func(deps Deps) ControlTask { return &fakeTask{Base: NewBase(name, deps)} }
}

func TestRegistryNew(t *testing.T) {
	g := NewWithT(t)
	r := NewRegistry()
	r.Register("Fake", fakeFactory("Fake"))

	task, err := r.New("Fake", Deps{})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(task.Name()).To(Equal("Fake"))

	_, err = r.New("Nope", Deps{})
	g.Expect(errors.Is(err, ErrUnknownTask)).To(BeTrue())
}

func TestRegistryRejectsNameMismatch(t *testing.T) {
	r := NewRegistry()
	r.Register("Fake", fakeFactory("Other"))

	if _, err := r.New("Fake", Deps{}); err == nil {
		t.Error("expected error when the task name differs from its registration")
	}
}

func TestRegistryRejectsNilTask(t *testing.T) {
	r := NewRegistry()
	r.Register("Nil", func(Deps) ControlTask { return nil })

	if _, err := r.New("Nil", Deps{}); err == nil {
		t.Error("expected error for nil task")
	}
}

func TestRegistryDuplicatePanics(t *testing.T) {
	g := NewWithT(t)
	r := NewRegistry()
	r.Register("Fake", fakeFactory("Fake"))

	g.Expect(func() { r.Register("Fake", fakeFactory("Fake")) }).To(Panic())
	g.Expect(func() { r.Register("", fakeFactory("")) }).To(Panic())
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry()
	r.Register("b", fakeFactory("b"))
	r.Register("a", fakeFactory("a"))

	NewWithT(t).Expect(r.Names()).To(Equal([]string{"a", "b"}))
}
