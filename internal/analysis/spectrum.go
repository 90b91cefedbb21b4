package analysis

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// PowerSpectrum returns the one-sided amplitude spectrum of data with the
// mean removed. Bin i sits at i/(len(data)*dt) Hz. Any length works.
func PowerSpectrum(data []float64) []float64 {
	if len(data) < 2 {
		return nil
	}

	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(len(data))

	centered := make([]float64, len(data))
	for i, v := range data {
		centered[i] = v - mean
	}

	coeff := fourier.NewFFT(len(centered)).Coefficients(nil, centered)
	ps := make([]float64, len(coeff))
	scale := 2 / float64(len(data))
	for i, c := range coeff {
		ps[i] = cmplx.Abs(c) * scale
	}
	ps[0] /= 2
	return ps
}

// DominantFrequency returns the frequency in Hz and the amplitude of the
// strongest component of data sampled every dt seconds. A flat or too
// short signal yields zeros.
func DominantFrequency(data []float64, dt float64) (float64, float64) {
	if dt <= 0 {
		return 0, 0
	}
	ps := PowerSpectrum(data)
	best, amp := 0, 0.0
	for i := 1; i < len(ps); i++ {
		if ps[i] > amp {
			best, amp = i, ps[i]
		}
	}
	if best == 0 {
		return 0, 0
	}
	return float64(best) / (float64(len(data)) * dt), amp
}
