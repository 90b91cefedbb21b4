package integrators

import (
	"testing"

	"github.com/gengqx/apollo/internal/models"
	"github.com/gengqx/apollo/internal/sim"
)

func benchmarkBicycle(b *testing.B, integrator sim.Integrator) {
	dyn := models.NewBicycle()
	x := sim.State{0, 0, 0, 5}
	u := sim.Control{20, 0, 10}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x = integrator.Step(dyn, x, u, 0, 0.01)
	}
}

func BenchmarkEuler(b *testing.B) {
	benchmarkBicycle(b, NewEuler())
}

func BenchmarkRK4(b *testing.B) {
	benchmarkBicycle(b, NewRK4())
}
