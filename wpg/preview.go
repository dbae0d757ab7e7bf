// Package wpg generates walking pattern previews: short-horizon CoM/ZMP
// trajectories produced by one of two interchangeable strategies and
// consumed sample by sample from the control loop.
package wpg

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"capture-walking-core/pendulum"
)

var (
	// ErrInfeasible reports a pattern-generation solve that found no
	// trajectory keeping the ZMP inside the support area.
	ErrInfeasible = errors.New("pattern generation infeasible")

	// ErrStalePreview reports a sample request outside the preview's
	// valid time span.
	ErrStalePreview = errors.New("stale preview")
)

// Preview is an ordered, time-indexed CoM/ZMP trajectory spanning from its
// generation instant to a fixed horizon. Previews are regenerated
// wholesale on every successful update, never patched.
type Preview struct {
	startTime float64
	dt        float64
	com       []r3.Vec
	comd      []r3.Vec
	zmp       []r3.Vec
}

// NewPreview builds a preview from parallel sample slices. All slices must
// hold the same number (at least two) of samples spaced dt apart.
func NewPreview(startTime, dt float64, com, comd, zmp []r3.Vec) (*Preview, error) {
	if len(com) < 2 || len(com) != len(comd) || len(com) != len(zmp) {
		return nil, fmt.Errorf("preview needs >= 2 aligned samples, got %d/%d/%d",
			len(com), len(comd), len(zmp))
	}
	if dt <= 0 {
		return nil, fmt.Errorf("preview sample period must be positive, got %g", dt)
	}
	return &Preview{startTime: startTime, dt: dt, com: com, comd: comd, zmp: zmp}, nil
}

// StartTime is the controller time of the first sample.
func (p *Preview) StartTime() float64 { return p.startTime }

// EndTime is the controller time of the last sample.
func (p *Preview) EndTime() float64 {
	return p.startTime + float64(len(p.com)-1)*p.dt
}

const sampleSlack = 1e-9

// Sample interpolates the preview at controller time t. Outside the valid
// span it fails with ErrStalePreview; the caller must not extrapolate.
func (p *Preview) Sample(t float64) (com, comd, zmp r3.Vec, err error) {
	rel := t - p.startTime
	span := float64(len(p.com)-1) * p.dt
	if rel < -sampleSlack || rel > span+sampleSlack {
		return com, comd, zmp,
			fmt.Errorf("%w: t=%.4f outside [%.4f, %.4f]", ErrStalePreview, t, p.startTime, p.EndTime())
	}
	if rel < 0 {
		rel = 0
	}
	if rel > span {
		rel = span
	}
	i := int(rel / p.dt)
	if i > len(p.com)-2 {
		i = len(p.com) - 2
	}
	a := (rel - float64(i)*p.dt) / p.dt
	return lerp(p.com[i], p.com[i+1], a),
		lerp(p.comd[i], p.comd[i+1], a),
		lerp(p.zmp[i], p.zmp[i+1], a),
		nil
}

// Integrate advances the pendulum to the preview state at time t.
func (p *Preview) Integrate(s *pendulum.State, t float64) error {
	com, comd, zmp, err := p.Sample(t)
	if err != nil {
		return err
	}
	s.Set(com, comd, zmp)
	return nil
}

func lerp(a, b r3.Vec, t float64) r3.Vec {
	return r3.Add(r3.Scale(1-t, a), r3.Scale(t, b))
}
