// Package defs collects physical and timing constants shared across the
// walking core.
package defs

const (
	// Gravity is the standard gravitational acceleration in m/s².
	Gravity = 9.80665

	// SamplingPeriod is the pattern-generation discretization step in
	// seconds. Phase durations are quantized to multiples of it so that
	// phase-transition timers always land on a preview sample boundary.
	SamplingPeriod = 0.1

	// ControlPeriod is the default control cycle duration in seconds.
	ControlPeriod = 0.005

	// PreviewHorizonSteps is the number of SamplingPeriod steps covered by
	// a single horizontal-MPC solve.
	PreviewHorizonSteps = 16
)
