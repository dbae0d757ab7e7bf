// Package stabilizer reconciles the previewed pendulum reference with the
// observed robot state and emits a corrected balance command for the
// downstream inverse-kinematics layer.
package stabilizer

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"capture-walking-core/defs"
	"capture-walking-core/footstep"
	"capture-walking-core/geom"
	"capture-walking-core/utils"
)

// Reference is the per-cycle pendulum reference.
type Reference struct {
	Com   r3.Vec
	Comd  r3.Vec
	ZMP   r3.Vec
	Omega float64
}

// Observed is the per-cycle sensed state. Velocity is not an input; the
// stabilizer derives it through its internal low-pass filter.
type Observed struct {
	Com    r3.Vec
	Wrench geom.Wrench
}

// Command is the corrected balance output. The commanded ZMP is always
// inside the support rectangle; that saturation is a safety invariant, not
// a tuning choice.
type Command struct {
	ZMP           r3.Vec
	ComAdmittance r3.Vec
	LeftWrench    geom.Wrench
	RightWrench   geom.Wrench
}

// maxDCMIntegral bounds the leaky DCM integrator per axis. A sustained
// error saturates the commanded ZMP anyway; letting the integrator wind
// up past foot scale would only delay recovery once the error reverses.
const maxDCMIntegral = 0.05 // [m·s]

// Stabilizer is a feedback function of its per-cycle inputs plus bounded
// filter state: DCM proportional/integral feedback onto the commanded
// ZMP, plus a CoM admittance from the ZMP tracking error.
type Stabilizer struct {
	dt   float64
	mass float64 // [kg]

	dcmGain         float64
	dcmIntegralGain float64
	integralDecay   float64
	comAdmittance   r3.Vec

	velFilter     *LowPassVelocityFilter
	dcmIntegrator r3.Vec
}

// New returns a stabilizer with nominal gains for a robot of the given
// mass, running at the given control period.
func New(mass, dt float64) *Stabilizer {
	s := &Stabilizer{
		dt:            dt,
		integralDecay: math.Exp(-dt / 10.),
		velFilter:     NewLowPassVelocityFilter(dt, 0.05),
	}
	s.SetMass(mass)
	s.SetDCMGain(1.4)
	s.SetDCMIntegralGain(2.5)
	s.SetComAdmittance(r3.Vec{X: 0.008, Y: 0.008})
	return s
}

// SetMass saturates the mass estimate into [1, 500] kg.
func (s *Stabilizer) SetMass(mass float64) {
	s.mass = utils.Clamp(mass, 1., 500.)
}

// SetDCMGain saturates the proportional DCM gain into [0, 10].
func (s *Stabilizer) SetDCMGain(gain float64) {
	s.dcmGain = utils.Clamp(gain, 0., 10.)
}

// SetDCMIntegralGain saturates the integral DCM gain into [0, 20].
func (s *Stabilizer) SetDCMIntegralGain(gain float64) {
	s.dcmIntegralGain = utils.Clamp(gain, 0., 20.)
}

// SetComAdmittance saturates each horizontal admittance into [0, 0.1].
func (s *Stabilizer) SetComAdmittance(a r3.Vec) {
	s.comAdmittance = r3.Vec{
		X: utils.Clamp(a.X, 0., 0.1),
		Y: utils.Clamp(a.Y, 0., 0.1),
	}
}

// Reset clears the filter and integrator around a known CoM position.
func (s *Stabilizer) Reset(com r3.Vec) {
	s.velFilter.Reset(com)
	s.dcmIntegrator = r3.Vec{}
}

// Run computes the corrected balance command for one cycle. The support
// contact bounds the commanded ZMP; leftRatio distributes the desired
// wrench across the feet.
func (s *Stabilizer) Run(ref Reference, obs Observed, support footstep.Contact, leftRatio float64) Command {
	comdMeas := s.velFilter.Update(obs.Com)

	omega := ref.Omega
	dcmRef := r3.Add(ref.Com, r3.Scale(1/omega, ref.Comd))
	dcmMeas := r3.Add(obs.Com, r3.Scale(1/omega, comdMeas))
	dcmError := r3.Sub(dcmMeas, dcmRef)
	dcmError.Z = 0

	s.dcmIntegrator = r3.Add(r3.Scale(s.integralDecay, s.dcmIntegrator), r3.Scale(s.dt, dcmError))
	s.dcmIntegrator.X = utils.ClampSym(s.dcmIntegrator.X, maxDCMIntegral)
	s.dcmIntegrator.Y = utils.ClampSym(s.dcmIntegrator.Y, maxDCMIntegral)

	zmpCmd := r3.Add(ref.ZMP,
		r3.Add(r3.Scale(s.dcmGain, dcmError), r3.Scale(s.dcmIntegralGain, s.dcmIntegrator)))
	zmpCmd.Z = support.Position().Z
	zmpCmd = support.WorldClamp(zmpCmd)

	// CoM admittance against the measured CoP.
	zmpMeas := ZMPFromWrench(obs.Wrench, zmpCmd.Z)
	zmpError := r3.Sub(zmpMeas, zmpCmd)
	comAdmit := r3.Vec{
		X: s.comAdmittance.X * zmpError.X,
		Y: s.comAdmittance.Y * zmpError.Y,
	}

	// Desired net wrench from the pendulum relation about the commanded
	// ZMP, split across the feet by the weight ratio.
	force := r3.Scale(s.mass*omega*omega, r3.Sub(ref.Com, zmpCmd))
	force.Z = s.mass * defs.Gravity
	leftRatio = utils.Clamp(leftRatio, 0., 1.)
	left := geom.Wrench{Force: r3.Scale(leftRatio, force)}
	right := geom.Wrench{Force: r3.Scale(1-leftRatio, force)}

	return Command{
		ZMP:           zmpCmd,
		ComAdmittance: comAdmit,
		LeftWrench:    left,
		RightWrench:   right,
	}
}

// ZMPFromWrench locates the center of pressure of a net contact wrench on
// the ground plane at height groundZ. A vanishing normal force pins the
// CoP at the frame origin.
func ZMPFromWrench(w geom.Wrench, groundZ float64) r3.Vec {
	if w.Force.Z < 1. {
		return r3.Vec{Z: groundZ}
	}
	return r3.Vec{
		X: -w.Torque.Y / w.Force.Z,
		Y: w.Torque.X / w.Force.Z,
		Z: groundZ,
	}
}
