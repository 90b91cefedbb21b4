// Package analysis inspects recorded control signals.
//
// The main use is spotting oscillation in a controller's output:
//
//   - [PowerSpectrum]: one-sided amplitude spectrum of a uniformly sampled signal
//   - [DominantFrequency]: the strongest non-DC frequency, in Hz
//
// # Steering chatter
//
// A lateral controller with too much gain weaves around the reference. The
// weave shows up as a dominant steering frequency well above the path's own
// curvature changes:
//
//	hz, amp := analysis.DominantFrequency(steering, dt)
//	if hz > 0.5 && amp > 5 {
//	    // steering oscillates
//	}
package analysis
