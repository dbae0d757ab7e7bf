package stabilizer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"

	"capture-walking-core/defs"
	"capture-walking-core/footstep"
	"capture-walking-core/geom"
)

func supportContact() footstep.Contact {
	return footstep.Contact{
		Pose:    geom.Translate(r3.Vec{Y: 0.09}),
		Polygon: geom.Rect{HalfLength: 0.112, HalfWidth: 0.065},
	}
}

func restReference(support footstep.Contact) Reference {
	com := support.Position()
	com.Z += 0.78
	return Reference{Com: com, ZMP: support.Position(), Omega: 3.55}
}

func TestRunTracksReferenceAtEquilibrium(t *testing.T) {
	support := supportContact()
	ref := restReference(support)
	s := New(38, defs.ControlPeriod)
	s.Reset(ref.Com)

	mg := 38 * defs.Gravity
	obs := Observed{
		Com:    ref.Com,
		Wrench: geom.Wrench{Force: r3.Vec{Z: mg}, Torque: r3.Vec{X: ref.ZMP.Y * mg, Y: -ref.ZMP.X * mg}},
	}
	cmd := s.Run(ref, obs, support, 0.5)

	assert.InDelta(t, ref.ZMP.X, cmd.ZMP.X, 1e-9, "no error, no correction")
	assert.InDelta(t, ref.ZMP.Y, cmd.ZMP.Y, 1e-9)
	assert.InDelta(t, 0., cmd.ComAdmittance.X, 1e-9)
	assert.InDelta(t, 0., cmd.ComAdmittance.Y, 1e-9)
	assert.InDelta(t, mg/2, cmd.LeftWrench.Force.Z, 1e-6, "even weight split")
	assert.InDelta(t, mg/2, cmd.RightWrench.Force.Z, 1e-6)
}

func TestRunSaturatesCommandedZMP(t *testing.T) {
	support := supportContact()
	ref := restReference(support)
	s := New(38, defs.ControlPeriod)
	s.Reset(ref.Com)

	// A gross CoM error demands a ZMP far outside the foot; the command
	// must still land inside the support rectangle.
	obs := Observed{Com: r3.Add(ref.Com, r3.Vec{X: 1.0, Y: 1.0})}
	for i := 0; i < 50; i++ {
		cmd := s.Run(ref, obs, support, 0.5)
		assert.True(t, support.WorldContains(cmd.ZMP, 1e-9),
			"cycle %d: commanded ZMP must stay inside the support polygon", i)
	}
}

func TestRunWeightSplit(t *testing.T) {
	support := supportContact()
	ref := restReference(support)
	s := New(38, defs.ControlPeriod)
	s.Reset(ref.Com)

	obs := Observed{Com: ref.Com}
	cmd := s.Run(ref, obs, support, 1.0)
	assert.InDelta(t, 38*defs.Gravity, cmd.LeftWrench.Force.Z, 1e-6)
	assert.InDelta(t, 0., cmd.RightWrench.Force.Z, 1e-6)

	// Out-of-range ratios saturate rather than produce negative loads.
	cmd = s.Run(ref, obs, support, 1.7)
	assert.InDelta(t, 38*defs.Gravity, cmd.LeftWrench.Force.Z, 1e-6)
	assert.InDelta(t, 0., cmd.RightWrench.Force.Z, 1e-6)
}

func TestRunBoundsDCMIntegrator(t *testing.T) {
	support := supportContact()
	ref := restReference(support)
	s := New(38, defs.ControlPeriod)
	s.Reset(ref.Com)

	// A sustained gross error must not wind the integrator up without
	// limit while the commanded ZMP sits clamped at the foot edge.
	obs := Observed{Com: r3.Add(ref.Com, r3.Vec{X: 0.5, Y: -0.5})}
	for i := 0; i < 5000; i++ {
		s.Run(ref, obs, support, 0.5)
		assert.LessOrEqual(t, math.Abs(s.dcmIntegrator.X), maxDCMIntegral, "cycle %d", i)
		assert.LessOrEqual(t, math.Abs(s.dcmIntegrator.Y), maxDCMIntegral, "cycle %d", i)
	}
}

func TestGainSetterClamps(t *testing.T) {
	s := New(38, defs.ControlPeriod)
	s.SetMass(-5)
	assert.Equal(t, 1., s.mass)
	s.SetDCMGain(99)
	assert.Equal(t, 10., s.dcmGain)
	s.SetDCMIntegralGain(-1)
	assert.Equal(t, 0., s.dcmIntegralGain)
	s.SetComAdmittance(r3.Vec{X: 5, Y: -5})
	assert.Equal(t, 0.1, s.comAdmittance.X)
	assert.Equal(t, 0., s.comAdmittance.Y)
}

func TestZMPFromWrench(t *testing.T) {
	mg := 38 * defs.Gravity
	w := geom.Wrench{Force: r3.Vec{Z: mg}, Torque: r3.Vec{X: 0.02 * mg, Y: -0.05 * mg}}
	zmp := ZMPFromWrench(w, 0.01)
	assert.InDelta(t, 0.05, zmp.X, 1e-9)
	assert.InDelta(t, 0.02, zmp.Y, 1e-9)
	assert.Equal(t, 0.01, zmp.Z)

	// Unloaded feet pin the CoP at the origin instead of dividing by zero.
	zmp = ZMPFromWrench(geom.Wrench{}, 0)
	assert.Equal(t, r3.Vec{}, zmp)
}

func TestLowPassVelocityFilter(t *testing.T) {
	f := NewLowPassVelocityFilter(0.005, 0.05)

	// First reading only seeds the filter.
	assert.Equal(t, r3.Vec{}, f.Update(r3.Vec{X: 1}))

	// A constant-velocity ramp converges on the true velocity.
	pos := r3.Vec{X: 1}
	for i := 0; i < 1000; i++ {
		pos.X += 0.1 * 0.005
		f.Update(pos)
	}
	assert.InDelta(t, 0.1, f.Velocity().X, 1e-6)

	// Cutoff saturates below one sample period.
	f.SetCutoffPeriod(0.0001)
	assert.Equal(t, 0.005, f.cutoffPeriod)
}
