// Package pendulum models the single linear inverted pendulum driven by
// the active preview once per control cycle.
package pendulum

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"capture-walking-core/defs"
)

// State is the pendulum state. The acceleration is never free: it is
// always derived from the double-integrator relation
//
//	comdd = omega² (com - zmp) + g
//
// so Comdd is recomputed whenever com or zmp change.
type State struct {
	com   r3.Vec
	comd  r3.Vec
	comdd r3.Vec
	zmp   r3.Vec
	omega float64
}

// New returns a pendulum at rest over the origin with the given CoM
// height.
func New(comHeight float64) *State {
	s := &State{}
	s.Reset(r3.Vec{Z: comHeight}, r3.Vec{})
	return s
}

func (s *State) Com() r3.Vec    { return s.com }
func (s *State) Comd() r3.Vec   { return s.comd }
func (s *State) Comdd() r3.Vec  { return s.comdd }
func (s *State) ZMP() r3.Vec    { return s.zmp }
func (s *State) Omega() float64 { return s.omega }

// DCM is the divergent component of motion (capture point):
// com + comd / omega.
func (s *State) DCM() r3.Vec {
	return r3.Add(s.com, r3.Scale(1/s.omega, s.comd))
}

// Reset places the pendulum at rest at com with its ZMP directly below.
func (s *State) Reset(com, zmp r3.Vec) {
	height := com.Z - zmp.Z
	if height < 1e-3 {
		height = 1e-3
	}
	s.com = com
	s.comd = r3.Vec{}
	s.zmp = zmp
	s.omega = math.Sqrt(defs.Gravity / height)
	s.refresh()
}

// Set overwrites position, velocity and ZMP at once, rederiving the
// acceleration. The natural frequency is kept.
func (s *State) Set(com, comd, zmp r3.Vec) {
	s.com = com
	s.comd = comd
	s.zmp = zmp
	s.refresh()
}

func (s *State) refresh() {
	s.comdd = r3.Add(
		r3.Scale(s.omega*s.omega, r3.Sub(s.com, s.zmp)),
		r3.Vec{Z: -defs.Gravity},
	)
}
