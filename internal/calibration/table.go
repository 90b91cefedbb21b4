// Package calibration holds the vehicle calibration table: the throttle or
// brake command that produces a given acceleration at a given speed.
package calibration

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"
)

var (
	ErrEmptyTable   = errors.New("calibration: table has no entries")
	ErrInvalidEntry = errors.New("calibration: entry is not finite")
)

type Entry struct {
	Speed        float64 `yaml:"speed" json:"speed"`
	Acceleration float64 `yaml:"acceleration" json:"acceleration"`
	Command      float64 `yaml:"command" json:"command"`
}

type Table struct {
	Calibration []Entry `yaml:"calibration" json:"calibration"`
}

func (t *Table) Validate() error {
	if t == nil || len(t.Calibration) == 0 {
		return ErrEmptyTable
	}
	for i, e := range t.Calibration {
		if !finite(e.Speed) || !finite(e.Acceleration) || !finite(e.Command) {
			return fmt.Errorf("entry %d: %w", i, ErrInvalidEntry)
		}
	}
	return nil
}

type row struct {
	speed float64
	curve interp.Predictor
}

// Interpolator answers Command(speed, acceleration) lookups over a table.
// Within a speed row the acceleration->command curve is piecewise linear;
// between rows the two neighbouring rows are blended linearly. Inputs outside
// the table are clamped to its edges.
type Interpolator struct {
	rows []row
}

type constant float64

func (c constant) Predict(float64) float64 { return float64(c) }

func NewInterpolator(t Table) (*Interpolator, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	bySpeed := make(map[float64]map[float64][]float64)
	for _, e := range t.Calibration {
		if bySpeed[e.Speed] == nil {
			bySpeed[e.Speed] = make(map[float64][]float64)
		}
		bySpeed[e.Speed][e.Acceleration] = append(bySpeed[e.Speed][e.Acceleration], e.Command)
	}

	speeds := make([]float64, 0, len(bySpeed))
	for s := range bySpeed {
		speeds = append(speeds, s)
	}
	sort.Float64s(speeds)

	rows := make([]row, 0, len(speeds))
	for _, s := range speeds {
		points := bySpeed[s]
		accels := make([]float64, 0, len(points))
		for a := range points {
			accels = append(accels, a)
		}
		sort.Float64s(accels)

		// duplicate (speed, acceleration) pairs are averaged
		cmds := make([]float64, len(accels))
		for i, a := range accels {
			cmds[i] = mean(points[a])
		}

		if len(accels) == 1 {
			rows = append(rows, row{speed: s, curve: constant(cmds[0])})
			continue
		}
		var pl interp.PiecewiseLinear
		if err := pl.Fit(accels, cmds); err != nil {
			return nil, fmt.Errorf("calibration: speed %.3f: %w", s, err)
		}
		rows = append(rows, row{speed: s, curve: pl})
	}

	return &Interpolator{rows: rows}, nil
}

func (ip *Interpolator) Command(speed, acceleration float64) float64 {
	n := len(ip.rows)
	if speed <= ip.rows[0].speed {
		return ip.rows[0].curve.Predict(acceleration)
	}
	if speed >= ip.rows[n-1].speed {
		return ip.rows[n-1].curve.Predict(acceleration)
	}

	i := sort.Search(n, func(i int) bool { return ip.rows[i].speed >= speed })
	lo, hi := ip.rows[i-1], ip.rows[i]
	w := (speed - lo.speed) / (hi.speed - lo.speed)
	return (1-w)*lo.curve.Predict(acceleration) + w*hi.curve.Predict(acceleration)
}

// SpeedRange returns the lowest and highest speeds covered by the table.
func (ip *Interpolator) SpeedRange() (float64, float64) {
	return ip.rows[0].speed, ip.rows[len(ip.rows)-1].speed
}

func mean(vs []float64) float64 {
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
