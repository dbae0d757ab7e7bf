package wpg

import (
	"capture-walking-core/footstep"
	"capture-walking-core/pendulum"
)

// Input is the state a strategy is seeded from at each update. Both
// strategies consume the same input so that switching between them cannot
// introduce a discontinuity: the first preview sample always equals the
// live pendulum state.
type Input struct {
	// Pendulum is the live pendulum state; read-only for strategies.
	Pendulum *pendulum.State

	// Support and Target are the current plan cursor contacts.
	Support footstep.Contact
	Target  footstep.Contact

	// RemainingPhase is the time left in the current gait phase.
	RemainingPhase float64

	// DoubleSupportDuration is the DSP duration scheduled after the
	// current phase.
	DoubleSupportDuration float64

	// StartTime is the controller time at which the update is invoked;
	// it becomes the preview's first-sample time.
	StartTime float64
}

// PatternGenerator turns the current balance state and plan cursor into a
// preview. Implementations either return a preview whose span covers at
// least the time until the next scheduled update, or report infeasibility
// with an error wrapping ErrInfeasible; they never return partial results.
type PatternGenerator interface {
	Name() string
	Update(in Input) (*Preview, error)
}
