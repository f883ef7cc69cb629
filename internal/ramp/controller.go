// Package ramp provides a time-indexed submission-rate function that
// warms a benchmark up from a low initial rate to its configured
// steady-state rate.
package ramp

import "time"

// Controller computes the target submission rate (work items per
// second) at a point in time, interpolating linearly from an initial
// rate to the target rate over the ramp window.
//
// RateAt mutates a monotonicity memo on read, so concurrent calls need
// external synchronization; the generator's single scheduler loop is
// the only intended caller.
type Controller struct {
	initialRate  float64
	targetRate   float64
	rampDuration time.Duration
	anchor       time.Time

	// lastEmittedRate enforces the monotonic-increase guarantee against
	// float jitter and non-increasing query clocks. Never exposed.
	lastEmittedRate float64
}

// NewController creates a controller anchored at now.
//
// With rampDuration == 0 there is no warm-up and the rate is targetRate
// from the first query. Otherwise the initial rate is
// max(targetRate*0.1, 1.0): never a zero-rate cold start, and never the
// degenerate near-zero product when targetRate itself is tiny.
func NewController(targetRate float64, rampDuration time.Duration) *Controller {
	c := &Controller{
		targetRate:   targetRate,
		rampDuration: rampDuration,
	}
	if rampDuration <= 0 {
		c.rampDuration = 0
		c.initialRate = targetRate
	} else {
		c.initialRate = targetRate * 0.1
		if c.initialRate < 1.0 {
			c.initialRate = 1.0
		}
	}
	c.Reset(time.Now())
	return c
}

// Reset re-anchors the ramp to start at the given time and clears the
// monotonicity memo. Called when a generation run (re)starts.
func (c *Controller) Reset(at time.Time) {
	c.anchor = at
	c.lastEmittedRate = 0
}

// RateAt returns the target rate at time t. Before the anchor it
// returns the initial rate; at or past anchor+rampDuration it returns
// the target rate; in between it interpolates by elapsed fraction.
// The returned rate never drops below a rate previously returned.
func (c *Controller) RateAt(t time.Time) float64 {
	rate := c.rateAt(t)
	if rate < c.lastEmittedRate {
		rate = c.lastEmittedRate
	}
	c.lastEmittedRate = rate
	return rate
}

func (c *Controller) rateAt(t time.Time) float64 {
	if c.rampDuration == 0 {
		return c.targetRate
	}

	elapsed := t.Sub(c.anchor)
	if elapsed <= 0 {
		return c.initialRate
	}
	if elapsed >= c.rampDuration {
		return c.targetRate
	}

	fraction := float64(elapsed) / float64(c.rampDuration)
	return c.initialRate + (c.targetRate-c.initialRate)*fraction
}

// IsRampUpComplete reports whether the ramp has reached the target rate
// at time t.
func (c *Controller) IsRampUpComplete(t time.Time) bool {
	return c.rampDuration == 0 || !t.Before(c.anchor.Add(c.rampDuration))
}

// InitialRate returns the rate the ramp starts from.
func (c *Controller) InitialRate() float64 {
	return c.initialRate
}

// TargetRate returns the configured steady-state rate.
func (c *Controller) TargetRate() float64 {
	return c.targetRate
}
