package wpg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"capture-walking-core/defs"
	"capture-walking-core/footstep"
	"capture-walking-core/geom"
	"capture-walking-core/pendulum"
)

func contactAt(id int, x, y float64) footstep.Contact {
	return footstep.Contact{
		ID:      id,
		Pose:    geom.Translate(r3.Vec{X: x, Y: y}),
		Polygon: geom.Rect{HalfLength: 0.112, HalfWidth: 0.065},
	}
}

// restInput seats the pendulum at rest over the support contact.
func restInput(support, target footstep.Contact) Input {
	pend := pendulum.New(0.78)
	com := support.Position()
	com.Z += 0.78
	pend.Reset(com, support.Position())
	return Input{
		Pendulum:              pend,
		Support:               support,
		Target:                target,
		RemainingPhase:        0.8,
		DoubleSupportDuration: 0.2,
		StartTime:             0,
	}
}

func assertStartsAtPendulum(t *testing.T, p *Preview, s *pendulum.State, start float64) {
	t.Helper()
	com, comd, _, err := p.Sample(start)
	require.NoError(t, err)
	assert.InDelta(t, s.Com().X, com.X, 1e-9)
	assert.InDelta(t, s.Com().Y, com.Y, 1e-9)
	assert.InDelta(t, s.Comd().X, comd.X, 1e-9)
	assert.InDelta(t, s.Comd().Y, comd.Y, 1e-9)
	assert.GreaterOrEqual(t, p.EndTime(), start+defs.SamplingPeriod,
		"preview horizon must cover the next scheduled update")
}

func TestCaptureProblemFromRest(t *testing.T) {
	support := contactAt(0, 0, 0.09)
	target := contactAt(1, 0.2, -0.09)
	in := restInput(support, target)

	cps := NewCaptureProblem()
	p, err := cps.Update(in)
	require.NoError(t, err)

	assertStartsAtPendulum(t, p, in.Pendulum, 0)

	// The trajectory must come to rest on the capture point inside the
	// target polygon.
	end := p.EndTime()
	com, comd, zmp, err := p.Sample(end)
	require.NoError(t, err)
	assert.True(t, target.WorldContains(zmp, 1e-6), "terminal ZMP sits in the target polygon")
	assert.InDelta(t, 0., comd.X, 5e-2, "trajectory nearly at rest at the horizon")
	assert.InDelta(t, 0., comd.Y, 5e-2)
	assert.InDelta(t, 0.78, com.Z-support.Position().Z, 1e-9, "CoM height held")
}

func TestCaptureProblemInfeasible(t *testing.T) {
	support := contactAt(0, 0, 0.09)
	target := contactAt(1, 0.2, -0.09)
	in := restInput(support, target)

	// A large forward velocity pushes the required ZMP far behind the
	// support heel.
	com := in.Pendulum.Com()
	in.Pendulum.Set(com, r3.Vec{X: 2.0}, in.Pendulum.ZMP())

	_, err := NewCaptureProblem().Update(in)
	assert.ErrorIs(t, err, ErrInfeasible)
}

func TestHorizontalMPCStanding(t *testing.T) {
	support := contactAt(0, 0, 0.09)
	in := restInput(support, support)

	hmpc := NewHorizontalMPC()
	p, err := hmpc.Update(in)
	require.NoError(t, err)

	assertStartsAtPendulum(t, p, in.Pendulum, 0)

	// Standing in place: the ZMP never needs to leave the support polygon.
	for ts := 0.0; ts <= p.EndTime(); ts += 0.1 {
		_, _, zmp, serr := p.Sample(ts)
		require.NoError(t, serr)
		assert.True(t, support.WorldContains(zmp, hmpc.ConstraintMargin+1e-9),
			"ZMP at t=%.1f stays in support polygon", ts)
	}
}

func TestStrategySwitchContinuity(t *testing.T) {
	support := contactAt(0, 0, 0.09)
	target := contactAt(1, 0.2, -0.09)
	in := restInput(support, target)

	cps := NewCaptureProblem()
	first, err := cps.Update(in)
	require.NoError(t, err)

	// Consume the capture preview for a while, then switch strategies.
	const tSwitch = 0.35
	require.NoError(t, first.Integrate(in.Pendulum, tSwitch))

	in.RemainingPhase = 0.8 - tSwitch
	in.StartTime = tSwitch
	second, err := NewHorizontalMPC().Update(in)
	require.NoError(t, err)

	// No position or velocity jump at the handoff.
	assertStartsAtPendulum(t, second, in.Pendulum, tSwitch)

	// And back again shortly after, while the capture point is still
	// reachable from the support foot.
	require.NoError(t, second.Integrate(in.Pendulum, tSwitch+0.05))
	in.RemainingPhase = 0.8 - tSwitch - 0.05
	in.StartTime = tSwitch + 0.05
	third, err := cps.Update(in)
	require.NoError(t, err)
	assertStartsAtPendulum(t, third, in.Pendulum, tSwitch+0.05)
}
