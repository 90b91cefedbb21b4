package export

import (
	"bytes"
	"strings"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/gengqx/apollo/internal/msgs"
)

func TestWriteSVG(t *testing.T) {
	g := NewWithT(t)
	traj := &msgs.ADCTrajectory{TrajectoryPoints: []msgs.TrajectoryPoint{
		{PathPoint: msgs.PathPoint{X: 0, Y: 0}},
		{PathPoint: msgs.PathPoint{X: 10, Y: 0}},
		{PathPoint: msgs.PathPoint{X: 10, Y: 10}},
	}}

	var buf bytes.Buffer
	err := WriteSVG(&buf, []Layer{
		ReferenceLayer(traj),
		DrivenLayer([]float64{0, 5, 10}, []float64{0.5, 0.2, 5}),
		{Name: "empty"},
	}, 200, 100)
	g.Expect(err).NotTo(HaveOccurred())

	out := buf.String()
	g.Expect(out).To(HavePrefix("<?xml"))
	g.Expect(out).To(HaveSuffix("</svg>\n"))
	g.Expect(strings.Count(out, "<path")).To(Equal(2))
	g.Expect(out).To(ContainSubstring(`id="reference"`))
	g.Expect(out).To(ContainSubstring(`stroke-dasharray`))
	g.Expect(out).To(ContainSubstring(`id="driven"`))
	g.Expect(out).NotTo(ContainSubstring(`id="empty"`))
}

func TestWriteSVGKeepsAspect(t *testing.T) {
	g := NewWithT(t)
	var buf bytes.Buffer
	// A 10x10 square in a wide canvas: the y scale bounds both axes, so the
	// drawing is 100 units wide, not 400.
	err := WriteSVG(&buf, []Layer{{Name: "sq", Points: []Point{{0, 0}, {10, 0}, {10, 10}}}}, 400, 120)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(buf.String()).To(ContainSubstring("M10.0,110.0 L110.0,110.0 L110.0,10.0"))
}

func TestWriteSVGNothingToDraw(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSVG(&buf, []Layer{DrivenLayer([]float64{1}, []float64{1})}, 10, 10); err == nil {
		t.Error("expected an error for a single point")
	}
}
