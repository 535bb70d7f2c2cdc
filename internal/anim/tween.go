// Package anim samples time-based transitions against an injected clock.
package anim

import "time"

// EaseCubicInOut is the default transition easing: slow start and end.
func EaseCubicInOut(t float64) float64 {
	t *= 2
	if t <= 1 {
		return t * t * t / 2
	}
	t -= 2
	return (t*t*t + 2) / 2
}

// Tween is a transition window starting at Start and lasting Duration.
type Tween struct {
	Start    time.Time
	Duration time.Duration
}

// Progress returns the eased progress at now in [0, 1] and whether the
// tween has finished. A non-positive duration finishes immediately.
func (tw Tween) Progress(now time.Time) (float64, bool) {
	if tw.Duration <= 0 {
		return 1, true
	}
	elapsed := now.Sub(tw.Start)
	if elapsed >= tw.Duration {
		return 1, true
	}
	if elapsed <= 0 {
		return 0, false
	}
	return EaseCubicInOut(float64(elapsed) / float64(tw.Duration)), false
}
