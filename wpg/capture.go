package wpg

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"capture-walking-core/defs"
)

// CaptureProblem is the capturability strategy: a local, short-horizon
// solve for the minimal ZMP correction that drives the instantaneous
// capture point into the target support rectangle before the current
// single-support phase ends.
type CaptureProblem struct {
	// FeasibilityMargin grows the support rectangle when checking
	// whether the required ZMP is physically realizable.
	FeasibilityMargin float64 // [m]

	// TailSteps extends the preview past the capture instant so the
	// controller never outruns it between scheduled updates.
	TailSteps int
}

// NewCaptureProblem returns the strategy with its nominal tuning.
func NewCaptureProblem() *CaptureProblem {
	return &CaptureProblem{
		FeasibilityMargin: 0.02,
		TailSteps:         defs.PreviewHorizonSteps,
	}
}

func (cp *CaptureProblem) Name() string { return "cps" }

// Update solves the capture problem and integrates the resulting pendulum
// trajectory into a preview.
func (cp *CaptureProblem) Update(in Input) (*Preview, error) {
	s := in.Pendulum
	omega := s.Omega()
	dt := defs.SamplingPeriod

	groundZ := in.Target.Position().Z
	dcm := s.DCM()
	dcm.Z = groundZ

	// Minimal correction: capture onto the point of the target polygon
	// closest to the current capture point.
	capturePoint := in.Target.WorldClamp(dcm)

	// Capture must complete before the phase ends.
	T := math.Max(in.RemainingPhase, 2*dt)
	k := math.Exp(omega * T)

	// Constant ZMP steering the DCM onto the capture point at time T:
	// xi(T) = z + e^(omega T) (xi0 - z).
	z := r3.Scale(1/(1-k), r3.Sub(capturePoint, r3.Scale(k, dcm)))
	z.Z = in.Support.Position().Z

	if !in.Support.WorldContains(z, cp.FeasibilityMargin) {
		return nil, fmt.Errorf("%w: required ZMP (%.3f, %.3f) escapes support area",
			ErrInfeasible, z.X, z.Y)
	}
	z = in.Support.WorldClamp(z)

	n := int(math.Ceil(T/dt)) + cp.TailSteps
	com := make([]r3.Vec, n+1)
	comd := make([]r3.Vec, n+1)
	zmp := make([]r3.Vec, n+1)

	c0, cd0 := s.Com(), s.Comd()
	cT, _ := lipmAt(c0, cd0, z, omega, T)
	for i := 0; i <= n; i++ {
		t := float64(i) * dt
		if t <= T {
			com[i], comd[i] = lipmAt(c0, cd0, z, omega, t)
			zmp[i] = z
		} else {
			// Past the capture instant the ZMP sits on the capture
			// point and the CoM decays to rest above it.
			tau := t - T
			decay := math.Exp(-omega * tau)
			com[i] = r3.Add(capturePoint, r3.Scale(decay, r3.Sub(cT, capturePoint)))
			com[i].Z = cT.Z
			comd[i] = r3.Scale(-omega*decay, r3.Sub(cT, capturePoint))
			comd[i].Z = 0
			zmp[i] = capturePoint
		}
	}
	return NewPreview(in.StartTime, dt, com, comd, zmp)
}

// lipmAt advances the horizontal LIPM analytically under a constant ZMP.
// The vertical CoM component is held.
func lipmAt(c0, cd0, z r3.Vec, omega, t float64) (c, cd r3.Vec) {
	ch := math.Cosh(omega * t)
	sh := math.Sinh(omega * t)
	dx, dy := c0.X-z.X, c0.Y-z.Y
	c = r3.Vec{
		X: z.X + dx*ch + cd0.X/omega*sh,
		Y: z.Y + dy*ch + cd0.Y/omega*sh,
		Z: c0.Z,
	}
	cd = r3.Vec{
		X: omega*dx*sh + cd0.X*ch,
		Y: omega*dy*sh + cd0.Y*ch,
	}
	return c, cd
}
