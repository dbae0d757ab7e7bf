package stabilizer

import (
	"gonum.org/v1/gonum/spatial/r3"

	"capture-walking-core/utils"
)

// LowPassVelocityFilter estimates a velocity from successive position
// readings through a first-order low pass. It is the only cross-cycle
// state the stabilizer keeps.
type LowPassVelocityFilter struct {
	dt           float64
	cutoffPeriod float64
	pos          r3.Vec
	vel          r3.Vec
	initialized  bool
}

// NewLowPassVelocityFilter builds a filter for readings dt seconds apart.
func NewLowPassVelocityFilter(dt, cutoffPeriod float64) *LowPassVelocityFilter {
	f := &LowPassVelocityFilter{dt: dt}
	f.SetCutoffPeriod(cutoffPeriod)
	return f
}

// SetCutoffPeriod saturates the smoothing period into [dt, 1] s.
func (f *LowPassVelocityFilter) SetCutoffPeriod(period float64) {
	f.cutoffPeriod = utils.Clamp(period, f.dt, 1.)
}

// Reset seeds the filter at a known position with zero velocity.
func (f *LowPassVelocityFilter) Reset(pos r3.Vec) {
	f.pos = pos
	f.vel = r3.Vec{}
	f.initialized = true
}

// Update ingests a new position reading and returns the filtered velocity.
func (f *LowPassVelocityFilter) Update(pos r3.Vec) r3.Vec {
	if !f.initialized {
		f.Reset(pos)
		return f.vel
	}
	raw := r3.Scale(1/f.dt, r3.Sub(pos, f.pos))
	alpha := f.dt / f.cutoffPeriod
	f.vel = r3.Add(r3.Scale(1-alpha, f.vel), r3.Scale(alpha, raw))
	f.pos = pos
	return f.vel
}

// Velocity is the current filtered estimate.
func (f *LowPassVelocityFilter) Velocity() r3.Vec { return f.vel }
