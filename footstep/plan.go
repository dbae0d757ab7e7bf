package footstep

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"capture-walking-core/defs"
	"capture-walking-core/geom"
	"capture-walking-core/utils"
)

var (
	// ErrConfig rejects malformed plan configurations at load time.
	ErrConfig = errors.New("invalid plan configuration")

	// ErrInvalidPlanTransition rejects cursor moves that would break the
	// one-shot rewind contract.
	ErrInvalidPlanTransition = errors.New("invalid footstep plan transition")
)

// RobotModel supplies the nominal stance geometry needed to place the
// floating base over a contact. The actual model loading is external.
type RobotModel interface {
	// NominalStanceOffset is the floating-base position in the support
	// foot frame when the robot stands at rest.
	NominalStanceOffset() r3.Vec
}

// cursor is the 4-slot window into the contact sequence plus the index of
// the next contact to consume.
type cursor struct {
	prev, support, target, next int
	nextFootstep                int
}

// Plan is a footstep sequence with gait parameters and the walking cursor.
//
// Cursor invariant: contacts[support].ID <= contacts[target].ID <=
// contacts[next].ID, and the cursor only moves forward except for a single
// one-shot rewind.
type Plan struct {
	Name string

	contacts []Contact
	cur      cursor
	rewind   *cursor // set after each advance, consumed by one rewind

	comHeight             float64
	doubleSupportDuration float64
	finalDSPDuration      float64
	initDSPDuration       float64
	landingPitch          float64
	landingRatio          float64
	singleSupportDuration float64
	swingHeight           float64
	takeoffOffset         r3.Vec
	takeoffPitch          float64
	takeoffRatio          float64
}

// NewPlan returns an empty plan with default gait parameters.
func NewPlan() *Plan {
	return &Plan{
		comHeight:             0.78,
		doubleSupportDuration: 0.2,
		finalDSPDuration:      0.6,
		initDSPDuration:       0.6,
		landingPitch:          0.,
		landingRatio:          0.05,
		singleSupportDuration: 0.8,
		swingHeight:           0.04,
		takeoffPitch:          0.,
		takeoffRatio:          0.05,
	}
}

// Complete derives support-polygon geometry from the sole shape for every
// contact that lacks it. Idempotent on already-complete contacts.
func (p *Plan) Complete(sole Sole) {
	for i := range p.contacts {
		if !p.contacts[i].completed() {
			p.contacts[i].Polygon = geom.Rect{
				HalfLength: sole.HalfLength,
				HalfWidth:  sole.HalfWidth,
			}
		}
	}
}

// Reset places the cursor so that support, target and next all point at
// contacts[startIndex], with prev at the contact immediately before it (or
// itself at index 0). Any pending rewind slot is discarded.
func (p *Plan) Reset(startIndex int) error {
	if startIndex < 0 || startIndex >= len(p.contacts) {
		return fmt.Errorf("reset: start index %d out of range [0, %d)", startIndex, len(p.contacts))
	}
	prev := startIndex
	if startIndex > 0 {
		prev = startIndex - 1
	}
	p.cur = cursor{
		prev:         prev,
		support:      startIndex,
		target:       startIndex,
		next:         startIndex,
		nextFootstep: startIndex + 1,
	}
	p.rewind = nil
	return nil
}

// GoToNextFootstep shifts the cursor forward by one footstep. The indices
// saturate at the final contact; the plan never wraps or extends.
func (p *Plan) GoToNextFootstep() {
	saved := p.cur
	last := len(p.contacts) - 1
	p.cur.prev = p.cur.support
	p.cur.support = p.cur.target
	p.cur.target = min(p.cur.nextFootstep, last)
	p.cur.next = min(p.cur.nextFootstep+1, last)
	p.cur.nextFootstep = saved.nextFootstep + 1
	p.rewind = &saved
}

// GoToNextFootstepAt performs the same forward shift after overwriting the
// becoming-support contact's pose with the pose actually reached by the
// swing foot.
func (p *Plan) GoToNextFootstepAt(actualTargetPose geom.Transform) {
	p.contacts[p.cur.target].Pose = actualTargetPose
	p.GoToNextFootstep()
}

// RestorePreviousFootstep undoes exactly one forward shift. It is only
// valid right after an advance; a second consecutive call fails with
// ErrInvalidPlanTransition and leaves the cursor untouched.
func (p *Plan) RestorePreviousFootstep() error {
	if p.rewind == nil {
		return fmt.Errorf("%w: no footstep to restore", ErrInvalidPlanTransition)
	}
	p.cur = *p.rewind
	p.rewind = nil
	return nil
}

// ComputeInitialTransform returns the floating-base pose that places the
// robot's feet over the first support contact. Pure function of the plan
// and the robot's nominal stance.
func (p *Plan) ComputeInitialTransform(robot RobotModel) geom.Transform {
	first := p.contacts[0]
	base := robot.NominalStanceOffset()
	base.Z = p.comHeight
	return first.Pose.Compose(geom.Translate(base))
}

// Contacts returns a copy of the ordered contact sequence. Contact poses
// only ever change through the drift-corrected advance, never through this
// accessor.
func (p *Plan) Contacts() []Contact {
	out := make([]Contact, len(p.contacts))
	copy(out, p.contacts)
	return out
}

func (p *Plan) PrevContact() Contact    { return p.contacts[p.cur.prev] }
func (p *Plan) SupportContact() Contact { return p.contacts[p.cur.support] }
func (p *Plan) TargetContact() Contact  { return p.contacts[p.cur.target] }
func (p *Plan) NextContact() Contact    { return p.contacts[p.cur.next] }

// ComHeight is the default CoM height above the support contact.
func (p *Plan) ComHeight() float64 { return p.comHeight }

// SetComHeight saturates into [0.70, 0.85] m.
func (p *Plan) SetComHeight(height float64) {
	p.comHeight = utils.Clamp(height, 0.70, 0.85)
}

// DoubleSupportDuration is the default DSP duration, unless the support
// contact carries an override.
func (p *Plan) DoubleSupportDuration() float64 {
	if d := p.SupportContact().DoubleSupportDuration; d != nil {
		return *d
	}
	return p.doubleSupportDuration
}

// SetDoubleSupportDuration rounds to the sampling period and saturates
// into [0, 1] s.
func (p *Plan) SetDoubleSupportDuration(duration float64) {
	duration = utils.Quantize(duration, defs.SamplingPeriod)
	p.doubleSupportDuration = utils.Clamp(duration, 0., 1.)
}

// SingleSupportDuration is the default SSP duration, unless the target
// contact carries an override.
func (p *Plan) SingleSupportDuration() float64 {
	if d := p.TargetContact().SingleSupportDuration; d != nil {
		return *d
	}
	return p.singleSupportDuration
}

// SetSingleSupportDuration rounds to the sampling period and saturates
// into [0, 2] s.
func (p *Plan) SetSingleSupportDuration(duration float64) {
	duration = utils.Quantize(duration, defs.SamplingPeriod)
	p.singleSupportDuration = utils.Clamp(duration, 0., 2.)
}

// FinalDSPDuration is the double-support duration closing the walk.
func (p *Plan) FinalDSPDuration() float64 { return p.finalDSPDuration }

// SetFinalDSPDuration saturates into [0, 1.6] s.
func (p *Plan) SetFinalDSPDuration(duration float64) {
	p.finalDSPDuration = utils.Clamp(duration, 0., 1.6)
}

// InitDSPDuration is the double-support duration opening the walk.
func (p *Plan) InitDSPDuration() float64 { return p.initDSPDuration }

// SetInitDSPDuration saturates into [0, 1.6] s.
func (p *Plan) SetInitDSPDuration(duration float64) {
	p.initDSPDuration = utils.Clamp(duration, 0., 1.6)
}

// LandingPitch is the swing-foot landing pitch angle, taking the previous
// contact's override when present.
func (p *Plan) LandingPitch() float64 {
	if v := p.PrevContact().Swing.LandingPitch; v != nil {
		return *v
	}
	return p.landingPitch
}

// SetLandingPitch saturates into [-1, 1] rad.
func (p *Plan) SetLandingPitch(pitch float64) {
	p.landingPitch = utils.ClampSym(pitch, 1.)
}

// LandingRatio is the fraction of the swing spent decelerating into the
// landing, taking the support contact's override when present.
func (p *Plan) LandingRatio() float64 {
	if v := p.SupportContact().Swing.LandingRatio; v != nil {
		return *v
	}
	return p.landingRatio
}

// SetLandingRatio saturates into [0, 0.5].
func (p *Plan) SetLandingRatio(ratio float64) {
	p.landingRatio = utils.Clamp(ratio, 0., 0.5)
}

// SwingHeight is the swing-foot apex height, taking the previous contact's
// override when present.
func (p *Plan) SwingHeight() float64 {
	if v := p.PrevContact().Swing.Height; v != nil {
		return *v
	}
	return p.swingHeight
}

// SetSwingHeight saturates into [0, 0.25] m.
func (p *Plan) SetSwingHeight(height float64) {
	p.swingHeight = utils.Clamp(height, 0., 0.25)
}

// TakeoffOffset is the swing-foot takeoff displacement, taking the
// previous contact's override when present.
func (p *Plan) TakeoffOffset() r3.Vec {
	if v := p.PrevContact().Swing.TakeoffOffset; v != nil {
		return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
	}
	return p.takeoffOffset
}

// SetTakeoffOffset stores the offset as given; it is not bounded.
func (p *Plan) SetTakeoffOffset(offset r3.Vec) {
	p.takeoffOffset = offset
}

// TakeoffPitch is the swing-foot takeoff pitch angle, taking the previous
// contact's override when present.
func (p *Plan) TakeoffPitch() float64 {
	if v := p.PrevContact().Swing.TakeoffPitch; v != nil {
		return *v
	}
	return p.takeoffPitch
}

// SetTakeoffPitch saturates into [-1, 1] rad.
func (p *Plan) SetTakeoffPitch(pitch float64) {
	p.takeoffPitch = utils.ClampSym(pitch, 1.)
}

// TakeoffRatio is the fraction of the swing spent accelerating out of the
// takeoff, taking the support contact's override when present.
func (p *Plan) TakeoffRatio() float64 {
	if v := p.SupportContact().Swing.TakeoffRatio; v != nil {
		return *v
	}
	return p.takeoffRatio
}

// SetTakeoffRatio saturates into [0, 0.5].
func (p *Plan) SetTakeoffRatio(ratio float64) {
	p.takeoffRatio = utils.Clamp(ratio, 0., 0.5)
}
