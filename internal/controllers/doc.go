// Package controllers provides the control tasks shipped with the control
// loop. Each one registers itself with [controltask.Register] under its
// name:
//
//   - [StubController]: no control law, emits the safe default command
//   - [LonController]: station/speed PID with calibration-table actuation
//   - [LatController]: lateral/heading state feedback with curvature feedforward
//
// All three share one lifecycle policy: Init may be repeated only after
// Reset, and every call after Stop fails with [controltask.ErrStopped].
package controllers
