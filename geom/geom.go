// Package geom provides the rigid-body geometry used by the walking core:
// 6-DoF transforms, contact wrenches and support rectangles. Vectors and
// rotations come from gonum's spatial/r3.
package geom

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"capture-walking-core/utils"
)

// Transform is a rigid displacement: rotation about the origin followed by
// a translation. The zero value is treated as the identity rotation with
// zero translation, so struct literals with only a Translation are valid.
type Transform struct {
	Rotation    r3.Rotation
	Translation r3.Vec
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{Rotation: r3.Rotation(quat.Number{Real: 1})}
}

// Translate returns a pure translation.
func Translate(v r3.Vec) Transform {
	t := Identity()
	t.Translation = v
	return t
}

// YawRotation returns a rotation of angle radians about the vertical axis.
func YawRotation(angle float64) Transform {
	return Transform{Rotation: r3.NewRotation(angle, r3.Vec{Z: 1})}
}

// PitchRotation returns a rotation of angle radians about the lateral axis.
func PitchRotation(angle float64) Transform {
	return Transform{Rotation: r3.NewRotation(angle, r3.Vec{Y: 1})}
}

func (t Transform) rot() r3.Rotation {
	if t.Rotation == (r3.Rotation{}) {
		return r3.Rotation(quat.Number{Real: 1})
	}
	return t.Rotation
}

// Apply maps a point from the transform's local frame to the world frame.
func (t Transform) Apply(v r3.Vec) r3.Vec {
	return r3.Add(t.rot().Rotate(v), t.Translation)
}

// Compose returns the transform equivalent to applying u first, then t.
func (t Transform) Compose(u Transform) Transform {
	tr, ur := quat.Number(t.rot()), quat.Number(u.rot())
	return Transform{
		Rotation:    r3.Rotation(quat.Mul(tr, ur)),
		Translation: r3.Add(t.rot().Rotate(u.Translation), t.Translation),
	}
}

// Inv returns the inverse transform.
func (t Transform) Inv() Transform {
	inv := r3.Rotation(quat.Conj(quat.Number(t.rot())))
	return Transform{
		Rotation:    inv,
		Translation: r3.Scale(-1, inv.Rotate(t.Translation)),
	}
}

// Yaw extracts the heading angle about the vertical axis.
func (t Transform) Yaw() float64 {
	q := quat.Number(t.rot())
	return math.Atan2(2*(q.Real*q.Kmag+q.Imag*q.Jmag), 1-2*(q.Jmag*q.Jmag+q.Kmag*q.Kmag))
}

// Wrench is a spatial force: net force and torque at a common frame.
type Wrench struct {
	Force  r3.Vec
	Torque r3.Vec
}

// Add returns the sum of two wrenches expressed in the same frame.
func (w Wrench) Add(o Wrench) Wrench {
	return Wrench{
		Force:  r3.Add(w.Force, o.Force),
		Torque: r3.Add(w.Torque, o.Torque),
	}
}

// Rect is an axis-aligned support rectangle in a contact's local frame,
// described by half-extents along the walking (X) and lateral (Y) axes.
type Rect struct {
	HalfLength float64
	HalfWidth  float64
}

// Clamp saturates a local-frame point into the rectangle, leaving the
// vertical component untouched.
func (r Rect) Clamp(p r3.Vec) r3.Vec {
	p.X = utils.Clamp(p.X, -r.HalfLength, r.HalfLength)
	p.Y = utils.Clamp(p.Y, -r.HalfWidth, r.HalfWidth)
	return p
}

// Contains reports whether a local-frame point lies inside the rectangle
// grown by margin on every side.
func (r Rect) Contains(p r3.Vec, margin float64) bool {
	return math.Abs(p.X) <= r.HalfLength+margin && math.Abs(p.Y) <= r.HalfWidth+margin
}
