package controller

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Snapshot is a copy of the controller state safe to hand to the
// non-real-time side. All fields are values; nothing aliases controller
// internals.
type Snapshot struct {
	Time float64

	PlanName  string
	SupportID int
	TargetID  int
	NextID    int
	LastSSP   bool
	LastDSP   bool

	Com   r3.Vec
	Comd  r3.Vec
	Comdd r3.Vec
	ZMP   r3.Vec
	DCM   r3.Vec

	CommandZMP    r3.Vec
	LeftFootRatio float64

	Strategy     Strategy
	CPSUpdates   uint
	CPSFailures  uint
	HMPCUpdates  uint
	HMPCFailures uint

	EmergencyStop bool
	PauseWalking  bool
	SegmentName   string
}

// Snapshot copies the current state under a short-lived lock. The caller
// must never hold controller state across cycles by reference; this is
// the only sanctioned read path off the control thread.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Time:          c.ctlTime,
		Strategy:      c.strategy,
		CPSUpdates:    c.cpsUpdates,
		CPSFailures:   c.cpsFailures,
		HMPCUpdates:   c.hmpcUpdates,
		HMPCFailures:  c.hmpcFailures,
		EmergencyStop: c.emergencyStop,
		PauseWalking:  c.pauseWalking,
		SegmentName:   c.segmentName,
		LeftFootRatio: c.leftFootRatio,
		CommandZMP:    c.command.ZMP,
	}
	if c.plan != nil {
		s.PlanName = c.plan.Name
		s.SupportID = c.plan.SupportContact().ID
		s.TargetID = c.plan.TargetContact().ID
		s.NextID = c.plan.NextContact().ID
		s.LastSSP = s.TargetID > s.NextID
		s.LastDSP = s.SupportID > s.TargetID
	}
	if c.pend != nil {
		s.Com = c.pend.Com()
		s.Comd = c.pend.Comd()
		s.Comdd = c.pend.Comdd()
		s.ZMP = c.pend.ZMP()
		s.DCM = c.pend.DCM()
	}
	return s
}

// FailureCount reports the consecutive-failure signal the external FSM
// uses to decide on an emergency stop. The core only counts; it never
// halts the walk itself.
func (c *Controller) FailureCount(s Strategy) uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == StrategyHMPC {
		return c.hmpcFailures
	}
	return c.cpsFailures
}
