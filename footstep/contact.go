// Package footstep holds the footstep plan: the ordered contact sequence,
// the prev/support/target/next cursor and the plan-wide gait parameters.
package footstep

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"capture-walking-core/geom"
)

// Foot identifies which foot a contact belongs to.
type Foot int

const (
	LeftFoot Foot = iota
	RightFoot
)

func (f Foot) String() string {
	switch f {
	case LeftFoot:
		return "left"
	case RightFoot:
		return "right"
	default:
		return "unknown"
	}
}

// ParseFoot maps a configuration surface name to a Foot.
func ParseFoot(s string) (Foot, error) {
	switch s {
	case "left":
		return LeftFoot, nil
	case "right":
		return RightFoot, nil
	default:
		return LeftFoot, fmt.Errorf("%w: unknown surface %q", ErrConfig, s)
	}
}

// Sole describes the physical foot-sole geometry used to complete contacts
// that carry no explicit support polygon.
type Sole struct {
	HalfLength float64 // [m]
	HalfWidth  float64 // [m]
	Friction   float64
}

// DefaultSole matches the HRP-4 sole dimensions used throughout.
func DefaultSole() Sole {
	return Sole{HalfLength: 0.112, HalfWidth: 0.065, Friction: 0.7}
}

// SwingOverrides are optional per-contact swing-trajectory parameters. A
// nil field means "use the plan-wide default".
type SwingOverrides struct {
	LandingPitch  *float64    `json:"landing_pitch,omitempty"`
	LandingRatio  *float64    `json:"landing_ratio,omitempty"`
	Height        *float64    `json:"height,omitempty"`
	TakeoffOffset *[3]float64 `json:"takeoff_offset,omitempty"`
	TakeoffPitch  *float64    `json:"takeoff_pitch,omitempty"`
	TakeoffRatio  *float64    `json:"takeoff_ratio,omitempty"`
}

// Contact is one foot placement in the plan. ID is the insertion index and
// defines walking order; contacts are never reordered. A contact's pose is
// immutable once planned except for the drift correction applied when its
// step completes.
type Contact struct {
	ID      int
	Surface Foot
	Pose    geom.Transform
	Polygon geom.Rect
	Swing   SwingOverrides

	// Optional per-contact phase-duration overrides, already clamped and
	// quantized at load time.
	SingleSupportDuration *float64
	DoubleSupportDuration *float64
}

// Position is the contact frame origin in the world frame.
func (c Contact) Position() r3.Vec {
	return c.Pose.Translation
}

// WorldClamp saturates a world-frame ground point into the contact's
// support rectangle.
func (c Contact) WorldClamp(p r3.Vec) r3.Vec {
	local := c.Pose.Inv().Apply(p)
	return c.Pose.Apply(c.Polygon.Clamp(local))
}

// WorldContains reports whether a world-frame ground point lies inside the
// contact's support rectangle grown by margin.
func (c Contact) WorldContains(p r3.Vec, margin float64) bool {
	return c.Polygon.Contains(c.Pose.Inv().Apply(p), margin)
}

// completed reports whether the contact already has polygon geometry.
func (c Contact) completed() bool {
	return c.Polygon.HalfLength > 0 && c.Polygon.HalfWidth > 0
}
