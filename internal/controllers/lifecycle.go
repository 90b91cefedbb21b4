package controllers

import "github.com/gengqx/apollo/internal/controltask"

// lifecycle enforces the policy shared by the controllers in this package:
// a repeated Init is accepted only after a Reset, nothing is accepted after
// Stop, and compute requires a successful Init.
type lifecycle struct {
	initialized bool
	resetSince  bool
	stopped     bool
}

func (l *lifecycle) checkInit() error {
	if l.stopped {
		return controltask.ErrStopped
	}
	if l.initialized && !l.resetSince {
		return controltask.ErrAlreadyInitialized
	}
	return nil
}

func (l *lifecycle) markInitialized() {
	l.initialized = true
	l.resetSince = false
}

func (l *lifecycle) checkReady() error {
	if l.stopped {
		return controltask.ErrStopped
	}
	if !l.initialized {
		return controltask.ErrNotInitialized
	}
	return nil
}

func (l *lifecycle) markReset() {
	l.resetSince = true
}

func (l *lifecycle) markStopped() {
	l.stopped = true
}
