package controller

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"capture-walking-core/footstep"
	"capture-walking-core/geom"
	"capture-walking-core/sensors"
	"capture-walking-core/utils"
)

// idealObserver echoes the controller's own reference CoM, simulating a
// robot that tracks perfectly.
type idealObserver struct {
	ctrl *Controller
}

func (o *idealObserver) Observe() (Observation, error) {
	if o.ctrl == nil {
		return Observation{}, nil
	}
	return Observation{Com: o.ctrl.Snapshot().Com}, nil
}

func testPlanSet() footstep.PlanSet {
	return footstep.PlanSet{
		"forward": {
			Contacts: []footstep.ContactConfig{
				{Surface: "left", Position: [3]float64{0, 0.09, 0}},
				{Surface: "right", Position: [3]float64{0, -0.09, 0}},
				{Surface: "left", Position: [3]float64{0.2, 0.09, 0}},
				{Surface: "right", Position: [3]float64{0.2, -0.09, 0}},
			},
		},
		"in_place": {
			Contacts: []footstep.ContactConfig{
				{Surface: "left", Position: [3]float64{0, 0.09, 0}},
				{Surface: "right", Position: [3]float64{0, -0.09, 0}},
			},
		},
	}
}

func newTestController(t *testing.T) (*Controller, *idealObserver) {
	t.Helper()
	log := utils.NewWriterLogger(io.Discard, utils.ERROR)
	obs := &idealObserver{}
	c := New(Config{Mass: 38}, testPlanSet(), obs, sensors.StaticWrenches{}, log)
	obs.ctrl = c
	return c, obs
}

func TestAvailablePlans(t *testing.T) {
	c, _ := newTestController(t)
	assert.Equal(t, []string{"forward", "in_place"}, c.AvailablePlans())
}

func TestLoadFootstepPlan(t *testing.T) {
	c, _ := newTestController(t)

	err := c.LoadFootstepPlan("nope")
	require.ErrorIs(t, err, ErrUnknownPlan)
	assert.False(t, c.Run(), "no plan installed after a failed load")

	require.NoError(t, c.LoadFootstepPlan("forward"))
	snap := c.Snapshot()
	assert.Equal(t, "forward", snap.PlanName)
	assert.Equal(t, 0, snap.SupportID)
	assert.InDelta(t, 0.78, snap.Com.Z, 1e-9, "pendulum seated at CoM height over the support")
	assert.InDelta(t, 0.09, snap.Com.Y, 1e-9)
	assert.False(t, c.IsLastSSP())
	assert.False(t, c.IsLastDSP())
}

func TestRunCyclesFromStanding(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.LoadFootstepPlan("forward"))

	for i := 0; i < 200; i++ {
		require.True(t, c.Run(), "cycle %d", i)
	}
	snap := c.Snapshot()
	assert.Greater(t, snap.Time, 0.9)
	assert.Greater(t, snap.CPSUpdates, uint(0), "capture previews were generated")
	assert.Zero(t, snap.CPSFailures)
	// Standing on the first support: the command stays over the foot.
	support := c.SupportContact()
	assert.True(t, support.WorldContains(c.Command().ZMP, 1e-6))
}

func TestStrategySelection(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.LoadFootstepPlan("forward"))

	assert.Equal(t, StrategyCapture, c.Strategy())
	c.SetStrategy(StrategyHMPC)
	assert.Equal(t, StrategyHMPC, c.Strategy())
	c.SetStrategy("bogus")
	assert.Equal(t, StrategyHMPC, c.Strategy(), "unknown strategy names are ignored")

	for i := 0; i < 50; i++ {
		require.True(t, c.Run())
	}
	assert.Greater(t, c.Snapshot().HMPCUpdates, uint(0))
}

func TestDoubleSupportDurationOverrideIsOneShot(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.LoadFootstepPlan("forward"))

	base := c.DoubleSupportDuration()
	c.SetNextDoubleSupportDuration(0.4)
	assert.Equal(t, 0.4, c.DoubleSupportDuration(), "override consumed once")
	assert.Equal(t, base, c.DoubleSupportDuration(), "then back to the plan value")
}

func TestPhaseTimer(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.LoadFootstepPlan("forward"))

	c.StartPhase(0.1)
	assert.InDelta(t, 0.1, c.RemainingPhaseTime(), 1e-9)
	for i := 0; i < 30; i++ {
		c.Run()
	}
	assert.Equal(t, 0., c.RemainingPhaseTime(), "phase time never goes negative")
}

func TestPauseFreezesCursorButKeepsBalance(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.LoadFootstepPlan("forward"))
	require.True(t, c.Run())

	c.SetPauseWalking(true)
	before := c.Snapshot()
	c.GoToNextFootstep()
	assert.Equal(t, before.SupportID, c.Snapshot().SupportID, "cursor frozen while paused")

	// Balance holding continues on the retained preview.
	assert.True(t, c.Run())

	c.SetPauseWalking(false)
	c.GoToNextFootstep()
	assert.Equal(t, 1, c.Snapshot().TargetID)
}

func TestPausedControllerGoesStaleEventually(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.LoadFootstepPlan("forward"))
	require.True(t, c.Run(), "first cycle generates a preview")

	// Preview updates are suspended; once the retained preview's horizon
	// elapses the cycle must report failure instead of extrapolating.
	c.SetPauseWalking(true)
	stale := false
	for i := 0; i < 2000 && !stale; i++ {
		stale = !c.Run()
	}
	assert.True(t, stale, "stale preview must surface as a failed cycle")
}

func TestEmergencyStopFreezesCursor(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.LoadFootstepPlan("forward"))

	c.SetEmergencyStop(true)
	c.GoToNextFootstep()
	c.GoToNextFootstepAt(geom.Translate(r3.Vec{X: 0.1}))
	snap := c.Snapshot()
	assert.Equal(t, 0, snap.TargetID)
	assert.True(t, snap.EmergencyStop)
}

func TestDriftCorrectedAdvance(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.LoadFootstepPlan("forward"))

	c.GoToNextFootstep() // arm the first step: target = C1
	actual := geom.Translate(r3.Vec{X: 0.01, Y: -0.08})
	c.GoToNextFootstepAt(actual)
	assert.Equal(t, 1, c.Snapshot().SupportID)
	assert.Equal(t, actual, c.SupportContact().Pose)
}

func TestRestorePreviousFootstep(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.LoadFootstepPlan("forward"))

	c.GoToNextFootstep()
	require.NoError(t, c.RestorePreviousFootstep())
	assert.ErrorIs(t, c.RestorePreviousFootstep(), footstep.ErrInvalidPlanTransition)
}

func TestLeftFootRatio(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.LoadFootstepPlan("forward"))

	assert.Equal(t, 0.5, c.LeftFootRatio())
	c.SetLeftFootRatio(1.8)
	assert.Equal(t, 1., c.LeftFootRatio(), "ratio saturates into [0, 1]")
	assert.Equal(t, 0.5, c.MeasuredLeftFootRatio(), "unloaded sensors report an even split")
}

func TestLogSegments(t *testing.T) {
	c, _ := newTestController(t)

	c.StartLogSegment("trial")
	name := c.Snapshot().SegmentName
	assert.Contains(t, name, "trial-")
	assert.Greater(t, len(name), len("trial-"))

	c.StartLogSegment("trial")
	assert.NotEqual(t, name, c.Snapshot().SegmentName, "segment names are unique")

	c.StopLogSegment()
	assert.Empty(t, c.Snapshot().SegmentName)
}

func TestFailureCountStartsAtZero(t *testing.T) {
	c, _ := newTestController(t)
	assert.Zero(t, c.FailureCount(StrategyCapture))
	assert.Zero(t, c.FailureCount(StrategyHMPC))
}
