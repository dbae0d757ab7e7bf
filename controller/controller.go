// Package controller runs the per-cycle walking loop: observer input,
// scheduled pattern-generation updates, pendulum integration from the
// active preview, stabilization, and the narrow mutation surface used by
// the external gait-phase state machine.
package controller

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"capture-walking-core/defs"
	"capture-walking-core/footstep"
	"capture-walking-core/geom"
	"capture-walking-core/pendulum"
	"capture-walking-core/sensors"
	"capture-walking-core/stabilizer"
	"capture-walking-core/utils"
	"capture-walking-core/wpg"
)

// ErrUnknownPlan rejects a plan-load request whose name is not in the
// configured plan set.
var ErrUnknownPlan = errors.New("unknown footstep plan")

// Strategy selects the active pattern generator.
type Strategy string

const (
	StrategyCapture Strategy = "cps"
	StrategyHMPC    Strategy = "hmpc"
)

// Observation is the external observers' per-cycle estimate.
type Observation struct {
	Com          r3.Vec
	FloatingBase geom.Transform
}

// Observer supplies the floating-base and CoM estimates. The observer
// implementation (kinematic, simulated) is external.
type Observer interface {
	Observe() (Observation, error)
}

// Config bundles construction parameters.
type Config struct {
	Mass                float64 // [kg]
	ControlPeriod       float64 // [s]
	PreviewUpdatePeriod float64 // [s]
	Sole                footstep.Sole
}

// Controller owns the balance core state. A single real-time goroutine
// calls Run once per control period; the telemetry side only ever takes
// copy-based snapshots under a short-lived lock.
type Controller struct {
	mu  sync.Mutex
	log *utils.Logger

	dt    float64
	plans footstep.PlanSet
	sole  footstep.Sole

	plan *footstep.Plan
	pend *pendulum.State
	stab *stabilizer.Stabilizer

	cps      *wpg.CaptureProblem
	hmpc     *wpg.HorizontalMPC
	strategy Strategy

	preview             *wpg.Preview
	previewUpdatePeriod float64
	nextUpdate          float64
	phaseDeadline       float64

	observer Observer
	wrench   sensors.WrenchProvider

	command stabilizer.Command
	ctlTime float64

	emergencyStop bool
	pauseWalking  bool

	doubleSupportDurationOverride float64
	leftFootRatio                 float64

	cpsFailures  uint
	cpsUpdates   uint
	hmpcFailures uint
	hmpcUpdates  uint

	segmentName string
}

// New builds a controller over a plan set. No plan is installed until
// LoadFootstepPlan succeeds.
func New(cfg Config, plans footstep.PlanSet, obs Observer, wrench sensors.WrenchProvider, log *utils.Logger) *Controller {
	dt := cfg.ControlPeriod
	if dt <= 0 {
		dt = defs.ControlPeriod
	}
	updatePeriod := cfg.PreviewUpdatePeriod
	if updatePeriod < dt {
		updatePeriod = defs.SamplingPeriod
	}
	sole := cfg.Sole
	if sole.HalfLength == 0 {
		sole = footstep.DefaultSole()
	}
	return &Controller{
		log:                           log,
		dt:                            dt,
		plans:                         plans,
		sole:                          sole,
		stab:                          stabilizer.New(cfg.Mass, dt),
		cps:                           wpg.NewCaptureProblem(),
		hmpc:                          wpg.NewHorizontalMPC(),
		strategy:                      StrategyCapture,
		previewUpdatePeriod:           updatePeriod,
		observer:                      obs,
		wrench:                        wrench,
		doubleSupportDurationOverride: -1,
		leftFootRatio:                 0.5,
	}
}

// AvailablePlans lists the configured plan names in sorted order.
func (c *Controller) AvailablePlans() []string {
	names := make([]string, 0, len(c.plans))
	for name := range c.plans {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadFootstepPlan installs the named plan and re-seats the pendulum over
// its first support contact. An unknown name or malformed plan leaves the
// previous plan in place.
func (c *Controller) LoadFootstepPlan(name string) error {
	cfg, ok := c.plans[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPlan, name)
	}
	plan := footstep.NewPlan()
	if err := plan.Load(cfg); err != nil {
		return fmt.Errorf("plan %q: %w", name, err)
	}
	plan.Name = name
	plan.Complete(c.sole)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.plan = plan
	support := plan.SupportContact()
	com := support.Position()
	com.Z += plan.ComHeight()
	c.pend = pendulum.New(plan.ComHeight())
	c.pend.Reset(com, support.Position())
	c.stab.Reset(com)
	c.preview = nil
	c.nextUpdate = c.ctlTime
	c.phaseDeadline = c.ctlTime + plan.InitDSPDuration()
	c.log.Info("loaded footstep plan %q with %d contacts", name, len(plan.Contacts()))
	return nil
}

// Run executes one control cycle and reports whether it completed without
// a fatal error. Balance holding (observation, pendulum tracking,
// stabilization) runs unconditionally; only pattern-generation updates
// honor the cooperative stop/pause flags.
func (c *Controller) Run() bool {
	obs, err := c.observer.Observe()
	if err != nil {
		c.log.Error("observer failed: %v", err)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.plan == nil {
		c.log.Error("no footstep plan loaded")
		return false
	}

	ok := true
	if !c.emergencyStop && !c.pauseWalking && c.ctlTime >= c.nextUpdate-1e-9 {
		c.updatePreview()
	}

	if c.preview != nil {
		if err := c.preview.Integrate(c.pend, c.ctlTime); err != nil {
			// Stale preview: fatal for the cycle, but keep stabilizing
			// on the last pendulum state rather than dropping balance.
			c.log.Error("pendulum integration: %v", err)
			ok = false
		}
	}

	ref := stabilizer.Reference{
		Com:   c.pend.Com(),
		Comd:  c.pend.Comd(),
		ZMP:   c.pend.ZMP(),
		Omega: c.pend.Omega(),
	}
	observed := stabilizer.Observed{Com: obs.Com, Wrench: sensors.NetWrench(c.wrench)}
	c.command = c.stab.Run(ref, observed, c.plan.SupportContact(), c.leftFootRatio)

	c.ctlTime += c.dt
	return ok
}

// updatePreview invokes the active strategy; on failure the previous
// preview is kept and the per-strategy failure counter advances. Called
// with the lock held.
func (c *Controller) updatePreview() {
	gen := c.activeGenerator()
	in := wpg.Input{
		Pendulum:              c.pend,
		Support:               c.plan.SupportContact(),
		Target:                c.plan.TargetContact(),
		RemainingPhase:        c.remainingPhaseLocked(),
		DoubleSupportDuration: c.plan.DoubleSupportDuration(),
		StartTime:             c.ctlTime,
	}
	preview, err := gen.Update(in)
	switch {
	case err != nil && c.strategy == StrategyCapture:
		c.cpsFailures++
		c.log.Warn("capture solve failed (%d so far): %v", c.cpsFailures, err)
	case err != nil:
		c.hmpcFailures++
		c.log.Warn("horizontal MPC solve failed (%d so far): %v", c.hmpcFailures, err)
	case c.strategy == StrategyCapture:
		c.cpsUpdates++
		c.preview = preview
	default:
		c.hmpcUpdates++
		c.preview = preview
	}
	c.nextUpdate = c.ctlTime + c.previewUpdatePeriod
}

func (c *Controller) activeGenerator() wpg.PatternGenerator {
	if c.strategy == StrategyHMPC {
		return c.hmpc
	}
	return c.cps
}

// SetStrategy toggles the active pattern generator. Both strategies are
// seeded from the live pendulum state, so switching cannot introduce a
// trajectory discontinuity.
func (c *Controller) SetStrategy(s Strategy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s != StrategyCapture && s != StrategyHMPC {
		return
	}
	c.strategy = s
}

// Strategy returns the active pattern generator selection.
func (c *Controller) Strategy() Strategy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.strategy
}

// StartPhase arms the phase timer used as the remaining-time input to the
// pattern generators. Called by the external gait FSM at phase entry.
func (c *Controller) StartPhase(duration float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phaseDeadline = c.ctlTime + duration
}

// RemainingPhaseTime is the time left before the current phase deadline.
func (c *Controller) RemainingPhaseTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remainingPhaseLocked()
}

func (c *Controller) remainingPhaseLocked() float64 {
	rem := c.phaseDeadline - c.ctlTime
	if rem < 0 {
		return 0
	}
	return rem
}

// DoubleSupportDuration is the next DSP duration. A pending one-shot
// override is consumed by this call.
func (c *Controller) DoubleSupportDuration() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.doubleSupportDurationOverride > 0 {
		d := c.doubleSupportDurationOverride
		c.doubleSupportDurationOverride = -1
		return d
	}
	return c.plan.DoubleSupportDuration()
}

// SetNextDoubleSupportDuration arms the one-shot DSP duration override.
func (c *Controller) SetNextDoubleSupportDuration(duration float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.doubleSupportDurationOverride = duration
}

// SingleSupportDuration is the next SSP duration.
func (c *Controller) SingleSupportDuration() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plan.SingleSupportDuration()
}

// InitDSPDuration is the double-support duration opening the walk.
func (c *Controller) InitDSPDuration() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plan.InitDSPDuration()
}

// FinalDSPDuration is the double-support duration closing the walk.
func (c *Controller) FinalDSPDuration() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plan.FinalDSPDuration()
}

// Plan-cursor accessors for the external FSM.

func (c *Controller) PrevContact() footstep.Contact {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plan.PrevContact()
}

func (c *Controller) SupportContact() footstep.Contact {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plan.SupportContact()
}

func (c *Controller) TargetContact() footstep.Contact {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plan.TargetContact()
}

func (c *Controller) NextContact() footstep.Contact {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plan.NextContact()
}

// IsLastSSP is true during the last step.
func (c *Controller) IsLastSSP() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plan.TargetContact().ID > c.plan.NextContact().ID
}

// IsLastDSP is true after the last step.
func (c *Controller) IsLastDSP() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plan.SupportContact().ID > c.plan.TargetContact().ID
}

// GoToNextFootstep advances the plan cursor. Suspended while stopped or
// paused; the FSM's timers keep running but the plan holds position.
func (c *Controller) GoToNextFootstep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.emergencyStop || c.pauseWalking {
		return
	}
	c.plan.GoToNextFootstep()
}

// GoToNextFootstepAt advances the cursor with drift correction.
func (c *Controller) GoToNextFootstepAt(actualTargetPose geom.Transform) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.emergencyStop || c.pauseWalking {
		return
	}
	c.plan.GoToNextFootstepAt(actualTargetPose)
}

// RestorePreviousFootstep rewinds the cursor by one footstep.
func (c *Controller) RestorePreviousFootstep() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plan.RestorePreviousFootstep()
}

// SetEmergencyStop raises or clears the cooperative stop flag. Balance
// holding continues regardless.
func (c *Controller) SetEmergencyStop(stop bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emergencyStop = stop
	if stop {
		c.log.Critical("emergency stop raised")
	}
}

// SetPauseWalking raises or clears the cooperative pause flag.
func (c *Controller) SetPauseWalking(pause bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pauseWalking = pause
}

// UpdateRobotMass propagates a new mass estimate to the stabilizer.
func (c *Controller) UpdateRobotMass(mass float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stab.SetMass(mass)
}

// LeftFootRatio is the commanded fraction of weight on the left foot.
func (c *Controller) LeftFootRatio() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.leftFootRatio
}

// SetLeftFootRatio saturates the commanded ratio into [0, 1].
func (c *Controller) SetLeftFootRatio(ratio float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leftFootRatio = utils.Clamp(ratio, 0., 1.)
}

// MeasuredLeftFootRatio estimates the weight split from the force sensors.
func (c *Controller) MeasuredLeftFootRatio() float64 {
	return sensors.LeftFootRatio(c.wrench)
}

// MeasuredContactWrench is the net wrench over both feet.
func (c *Controller) MeasuredContactWrench() geom.Wrench {
	return sensors.NetWrench(c.wrench)
}

// Command is the latest corrected balance command for the IK layer.
func (c *Controller) Command() stabilizer.Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.command
}

// StartLogSegment opens a named telemetry segment. The label gets a
// generated suffix so repeated segments stay distinguishable.
func (c *Controller) StartLogSegment(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.segmentName = label + "-" + uuid.NewString()[:8]
	c.log.Info("log segment %q started", c.segmentName)
}

// StopLogSegment closes the current telemetry segment.
func (c *Controller) StopLogSegment() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.segmentName != "" {
		c.log.Info("log segment %q stopped", c.segmentName)
	}
	c.segmentName = ""
}
