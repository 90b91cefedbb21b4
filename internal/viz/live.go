package viz

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/gengqx/apollo/internal/msgs"
	"github.com/gengqx/apollo/internal/sim"
)

const (
	liveWidth   = 70
	liveHeight  = 20
	clearScreen = "\033[2J\033[H"
	hideCursor  = "\033[?25l"
	showCursor  = "\033[?25h"
)

type cell struct{ x, y int }

// LiveRenderer draws a top-down view around the vehicle as the simulation
// steps: the reference path, the recent trail and the vehicle itself.
type LiveRenderer struct {
	out       io.Writer
	path      []msgs.PathPoint
	scale     float64 // meters per column; rows are twice as tall
	frameRate int
	lastFrame time.Time
	canvas    [][]rune
	trail     [][2]float64
	clear     bool
}

// NewLiveRenderer renders to out at most frameRate times per second; zero
// renders every step without clearing the screen.
func NewLiveRenderer(out io.Writer, traj *msgs.ADCTrajectory, frameRate int) *LiveRenderer {
	canvas := make([][]rune, liveHeight)
	for i := range canvas {
		canvas[i] = make([]rune, liveWidth)
	}
	path := make([]msgs.PathPoint, len(traj.TrajectoryPoints))
	for i, p := range traj.TrajectoryPoints {
		path[i] = p.PathPoint
	}
	return &LiveRenderer{
		out:       out,
		path:      path,
		scale:     1.0,
		frameRate: frameRate,
		canvas:    canvas,
		trail:     make([][2]float64, 0, 40),
		clear:     frameRate > 0,
	}
}

func (r *LiveRenderer) OnStep(x sim.State, cmd *msgs.ControlCommand, t float64) {
	if len(x) < sim.VehicleStateDim {
		return
	}
	r.track(x)

	if r.frameRate > 0 {
		if time.Since(r.lastFrame) < time.Second/time.Duration(r.frameRate) {
			return
		}
		r.lastFrame = time.Now()
	}

	frame := r.frame(x, cmd, t)
	if r.clear {
		frame = clearScreen + frame
	}
	fmt.Fprint(r.out, frame)
}

// track appends the vehicle position to the trail.
func (r *LiveRenderer) track(x sim.State) {
	r.trail = append(r.trail, [2]float64{x[sim.IdxX], x[sim.IdxY]})
	if len(r.trail) > 40 {
		r.trail = r.trail[1:]
	}
}

// frame draws the view around x with a status line on top.
func (r *LiveRenderer) frame(x sim.State, cmd *msgs.ControlCommand, t float64) string {
	r.reset()
	r.draw(x)
	return r.render(x, cmd, t)
}

func (r *LiveRenderer) reset() {
	for y := range r.canvas {
		for x := range r.canvas[y] {
			r.canvas[y][x] = ' '
		}
	}
}

func (r *LiveRenderer) set(c cell, ch rune) {
	if c.x >= 0 && c.x < liveWidth && c.y >= 0 && c.y < liveHeight {
		r.canvas[c.y][c.x] = ch
	}
}

// project maps world coordinates to a cell, centered on (cx, cy) with north up.
func (r *LiveRenderer) project(wx, wy, cx, cy float64) cell {
	col := liveWidth/2 + int(math.Round((wx-cx)/r.scale))
	row := liveHeight/2 - int(math.Round((wy-cy)/(2*r.scale)))
	return cell{col, row}
}

func (r *LiveRenderer) draw(x sim.State) {
	cx, cy := x[sim.IdxX], x[sim.IdxY]
	for _, p := range r.path {
		r.set(r.project(p.X, p.Y, cx, cy), '.')
	}
	for _, p := range r.trail {
		r.set(r.project(p[0], p[1], cx, cy), 'o')
	}
	r.set(r.project(cx, cy, cx, cy), headingGlyph(x[sim.IdxHeading]))
}

// headingGlyph picks the arrow closest to heading, counter-clockwise from east.
func headingGlyph(heading float64) rune {
	arrows := []rune{'→', '↗', '↑', '↖', '←', '↙', '↓', '↘'}
	octant := int(math.Round(heading/(math.Pi/4))) % 8
	if octant < 0 {
		octant += 8
	}
	return arrows[octant]
}

func (r *LiveRenderer) render(x sim.State, cmd *msgs.ControlCommand, t float64) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("  t=%.2fs  v=%.2fm/s", t, x[sim.IdxSpeed]))
	if cmd != nil {
		b.WriteString(fmt.Sprintf("  throttle=%.1f%% brake=%.1f%% steer=%.1f%%  lat=%.3fm",
			cmd.Throttle, cmd.Brake, cmd.SteeringTarget, cmd.Debug.LateralError))
	}
	b.WriteString("\n  " + strings.Repeat("-", liveWidth) + "\n")

	for _, row := range r.canvas {
		b.WriteString("  ")
		b.WriteString(string(row))
		b.WriteString("\n")
	}
	b.WriteString("  " + strings.Repeat("-", liveWidth) + "\n")
	return b.String()
}

func (r *LiveRenderer) Start() { fmt.Fprint(r.out, hideCursor) }
func (r *LiveRenderer) Stop()  { fmt.Fprint(r.out, showCursor) }
