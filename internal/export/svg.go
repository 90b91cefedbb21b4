// Package export renders stored runs into files for other tools.
package export

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/gengqx/apollo/internal/msgs"
)

type Point struct{ X, Y float64 }

// Layer is one polyline of a drawing.
type Layer struct {
	Name   string
	Points []Point
	Stroke string
	Dashed bool
}

// ReferenceLayer draws the path of a planned trajectory.
func ReferenceLayer(traj *msgs.ADCTrajectory) Layer {
	pts := make([]Point, len(traj.TrajectoryPoints))
	for i, p := range traj.TrajectoryPoints {
		pts[i] = Point{p.PathPoint.X, p.PathPoint.Y}
	}
	return Layer{Name: "reference", Points: pts, Stroke: "#666688", Dashed: true}
}

// DrivenLayer draws the vehicle path from parallel x and y series.
func DrivenLayer(xs, ys []float64) Layer {
	n := min(len(xs), len(ys))
	pts := make([]Point, n)
	for i := 0; i < n; i++ {
		pts[i] = Point{xs[i], ys[i]}
	}
	return Layer{Name: "driven", Points: pts, Stroke: "#00ccff"}
}

// WriteSVG draws the layers in world coordinates, north up, with one scale
// on both axes so curves keep their shape. Layers with fewer than two
// points are skipped.
func WriteSVG(w io.Writer, layers []Layer, width, height int) error {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	drawn := 0
	for _, l := range layers {
		if len(l.Points) < 2 {
			continue
		}
		drawn++
		for _, p := range l.Points {
			minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
			minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
		}
	}
	if drawn == 0 {
		return fmt.Errorf("export: nothing to draw")
	}

	// Add padding
	rangeX := math.Max(maxX-minX, 1)
	rangeY := math.Max(maxY-minY, 1)
	minX -= rangeX * 0.1
	minY -= rangeY * 0.1
	rangeX *= 1.2
	rangeY *= 1.2
	scale := math.Min(float64(width)/rangeX, float64(height)/rangeY)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))

	for _, l := range layers {
		if len(l.Points) < 2 {
			continue
		}
		dash := ""
		if l.Dashed {
			dash = ` stroke-dasharray="4 3"`
		}
		sb.WriteString(fmt.Sprintf(`<path id=%q fill="none" stroke=%q stroke-width="1.5"%s d="M`, l.Name, l.Stroke, dash))
		for i, p := range l.Points {
			x := (p.X - minX) * scale
			y := float64(height) - (p.Y-minY)*scale
			if i == 0 {
				sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
			} else {
				sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
			}
		}
		sb.WriteString("\"/>\n")
	}

	sb.WriteString("</svg>\n")
	_, err := io.WriteString(w, sb.String())
	return err
}
