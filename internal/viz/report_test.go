package viz

import (
	"strings"
	"testing"
	"unicode/utf8"

	. "github.com/onsi/gomega"

	"github.com/gengqx/apollo/internal/calibration"
	"github.com/gengqx/apollo/internal/pluginpath"
	"github.com/gengqx/apollo/internal/storage"
)

func TestCalibrationSortsBySpeed(t *testing.T) {
	g := NewWithT(t)
	out := Calibration("calib.pb.txt", calibration.Table{Calibration: []calibration.Entry{
		{Speed: 10, Acceleration: 1, Command: 30},
		{Speed: 0, Acceleration: -2, Command: -25},
	}})

	g.Expect(out).To(ContainSubstring("calib.pb.txt"))
	g.Expect(out).To(ContainSubstring("2 entries"))
	g.Expect(strings.Index(out, "-25.00")).To(BeNumerically("<", strings.Index(out, "30.00")))
}

func TestControllersShowsDescriptors(t *testing.T) {
	g := NewWithT(t)
	out := Controllers([]string{"LatController", "StubController"}, []pluginpath.Descriptor{
		{ClassName: "LatController", Path: "/plugins/lat", Version: "1.2.0"},
	})

	g.Expect(out).To(ContainSubstring("LatController"))
	g.Expect(out).To(ContainSubstring("/plugins/lat"))
	g.Expect(out).To(ContainSubstring("1.2.0"))
	g.Expect(out).To(ContainSubstring("StubController"))
}

func TestRunSummary(t *testing.T) {
	g := NewWithT(t)
	out := RunSummary(&storage.RunMetadata{
		ID:          "curve_0a1b2c3d",
		Scenario:    "curve",
		Controllers: []string{"LonController", "LatController"},
		Metrics:     map[string]float64{"lateral_error_rms": 0.125},
		Errors:      []string{"cycle 3 at t=0.030: boom"},
	})

	g.Expect(out).To(ContainSubstring("curve_0a1b2c3d"))
	g.Expect(out).To(ContainSubstring("LonController -> LatController"))
	g.Expect(out).To(ContainSubstring("0.1250"))
	g.Expect(out).To(ContainSubstring("1 failed cycles"))
}

func TestSparkline(t *testing.T) {
	if got := Sparkline(nil, 4); got != "────" {
		t.Errorf("expected flat line for no data, got %q", got)
	}

	got := Sparkline([]float64{0, 1, 2, 3, 4, 5, 6, 7}, 8)
	if got != "▁▂▃▄▅▆▇█" {
		t.Errorf("unexpected sparkline %q", got)
	}

	if n := utf8.RuneCountInString(Sparkline(make([]float64, 100), 10)); n != 10 {
		t.Errorf("expected 10 runes, got %d", n)
	}
}

func TestPlot(t *testing.T) {
	g := NewWithT(t)
	g.Expect(Plot(nil, "speed", 40, 5)).To(ContainSubstring("no data"))
	g.Expect(Plot([]float64{0, 1, 2, 1, 0}, "speed", 40, 5)).To(ContainSubstring("speed"))
}
