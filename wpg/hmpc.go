package wpg

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"capture-walking-core/defs"
	"capture-walking-core/footstep"
)

// HorizontalMPC is the model-predictive strategy: a linear solve over a
// fixed rolling horizon, tracking a ZMP reference that walks from the
// support contact to the target contact. The decision variable is the CoM
// jerk at each horizon step; the condensed problem is a dense least
// squares solved with gonum/mat.
type HorizontalMPC struct {
	// Steps is the horizon length in sampling periods.
	Steps int

	// ZMPWeight, JerkWeight and TerminalWeight shape the cost.
	ZMPWeight      float64
	JerkWeight     float64
	TerminalWeight float64

	// ConstraintMargin grows the support rectangles when checking the
	// predicted ZMP trajectory.
	ConstraintMargin float64 // [m]
}

// NewHorizontalMPC returns the strategy with its nominal tuning.
func NewHorizontalMPC() *HorizontalMPC {
	return &HorizontalMPC{
		Steps:            defs.PreviewHorizonSteps,
		ZMPWeight:        1.0,
		JerkWeight:       1e-6,
		TerminalWeight:   10.0,
		ConstraintMargin: 0.01,
	}
}

func (h *HorizontalMPC) Name() string { return "hmpc" }

// Update builds and solves the horizon problem, then verifies the
// predicted ZMP against the phase support rectangles.
func (h *HorizontalMPC) Update(in Input) (*Preview, error) {
	s := in.Pendulum
	omega := s.Omega()
	dt := defs.SamplingPeriod
	n := h.Steps

	// Triple-integrator dynamics per horizontal axis, jerk input.
	A := [3][3]float64{
		{1, dt, dt * dt / 2},
		{0, 1, dt},
		{0, 0, 1},
	}
	B := [3]float64{dt * dt * dt / 6, dt * dt / 2, dt}
	// ZMP output under the pendulum model: z = c - cdd / omega².
	C := [3]float64{1, 0, -1 / (omega * omega)}
	// Divergent component for the terminal condition: xi = c + cd / omega.
	D := [3]float64{1, 1 / omega, 0}

	// ca[k] = C·A^k and da[k] = D·A^k; impulse responses follow by a dot
	// with B.
	ca := make([][3]float64, n+1)
	da := make([][3]float64, n+1)
	ca[0], da[0] = C, D
	for k := 1; k <= n; k++ {
		ca[k] = rowTimes(ca[k-1], A)
		da[k] = rowTimes(da[k-1], A)
	}
	cab := make([]float64, n)
	dab := make([]float64, n)
	for m := 0; m < n; m++ {
		cab[m] = dot3(ca[m], B)
		dab[m] = dot3(da[m], B)
	}

	refX, refY, allowed := h.schedule(in, n)

	solveAxis := func(x0 [3]float64, zref []float64) ([]float64, error) {
		rows := 2*n + 1
		am := mat.NewDense(rows, n, nil)
		bv := mat.NewVecDense(rows, nil)
		sz := math.Sqrt(h.ZMPWeight)
		su := math.Sqrt(h.JerkWeight)
		st := math.Sqrt(h.TerminalWeight)
		for k := 1; k <= n; k++ {
			for j := 0; j < k; j++ {
				am.Set(k-1, j, sz*cab[k-1-j])
			}
			bv.SetVec(k-1, sz*(zref[k-1]-dot3(ca[k], x0)))
		}
		for j := 0; j < n; j++ {
			am.Set(n+j, j, su)
			am.Set(2*n, j, st*dab[n-1-j])
		}
		bv.SetVec(2*n, st*(zref[n-1]-dot3(da[n], x0)))

		var qr mat.QR
		qr.Factorize(am)
		var u mat.VecDense
		if err := qr.SolveVecTo(&u, false, bv); err != nil {
			return nil, fmt.Errorf("%w: horizon solve: %v", ErrInfeasible, err)
		}
		out := make([]float64, n)
		for j := 0; j < n; j++ {
			out[j] = u.AtVec(j)
		}
		return out, nil
	}

	c0, cd0, cdd0 := s.Com(), s.Comd(), s.Comdd()
	ux, err := solveAxis([3]float64{c0.X, cd0.X, cdd0.X}, refX)
	if err != nil {
		return nil, err
	}
	uy, err := solveAxis([3]float64{c0.Y, cd0.Y, cdd0.Y}, refY)
	if err != nil {
		return nil, err
	}

	// Roll the horizon out and check the predicted ZMP before committing
	// to a preview.
	groundZ := in.Support.Position().Z
	com := make([]r3.Vec, n+1)
	comd := make([]r3.Vec, n+1)
	zmp := make([]r3.Vec, n+1)
	com[0], comd[0] = c0, cd0
	zmp[0] = s.ZMP()
	xs := [3]float64{c0.X, cd0.X, cdd0.X}
	ys := [3]float64{c0.Y, cd0.Y, cdd0.Y}
	for k := 1; k <= n; k++ {
		xs = step(A, B, xs, ux[k-1])
		ys = step(A, B, ys, uy[k-1])
		z := r3.Vec{X: dot3(C, xs), Y: dot3(C, ys), Z: groundZ}
		if !zmpAllowed(z, allowed[k-1], h.ConstraintMargin) {
			return nil, fmt.Errorf("%w: predicted ZMP (%.3f, %.3f) at step %d escapes support area",
				ErrInfeasible, z.X, z.Y, k)
		}
		com[k] = r3.Vec{X: xs[0], Y: ys[0], Z: c0.Z}
		comd[k] = r3.Vec{X: xs[1], Y: ys[1]}
		zmp[k] = z
	}
	return NewPreview(in.StartTime, dt, com, comd, zmp)
}

// schedule lays the ZMP reference and the admissible contact set over the
// horizon: support foot during the remaining single-support time, a ramp
// onto the target during the following double support, target afterwards.
func (h *HorizontalMPC) schedule(in Input, n int) (refX, refY []float64, allowed [][]footstep.Contact) {
	dt := defs.SamplingPeriod
	tss := math.Max(in.RemainingPhase, 0)
	tds := math.Max(in.DoubleSupportDuration, dt)
	sp := in.Support.Position()
	tp := in.Target.Position()

	refX = make([]float64, n)
	refY = make([]float64, n)
	allowed = make([][]footstep.Contact, n)
	for k := 1; k <= n; k++ {
		t := float64(k) * dt
		switch {
		case t <= tss+sampleSlack:
			refX[k-1], refY[k-1] = sp.X, sp.Y
			allowed[k-1] = []footstep.Contact{in.Support}
		case t <= tss+tds+sampleSlack:
			a := (t - tss) / tds
			refX[k-1] = (1-a)*sp.X + a*tp.X
			refY[k-1] = (1-a)*sp.Y + a*tp.Y
			allowed[k-1] = []footstep.Contact{in.Support, in.Target}
		default:
			refX[k-1], refY[k-1] = tp.X, tp.Y
			allowed[k-1] = []footstep.Contact{in.Target}
		}
	}
	return refX, refY, allowed
}

// zmpAllowed checks the predicted ZMP against the admissible region. With
// a single support contact that is its rectangle; in double support the
// ZMP travels between the feet, so the region is the hull of both
// rectangles, approximated by their world-frame bounding box.
func zmpAllowed(z r3.Vec, contacts []footstep.Contact, margin float64) bool {
	if len(contacts) == 1 {
		return contacts[0].WorldContains(z, margin)
	}
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, c := range contacts {
		l, w := c.Polygon.HalfLength, c.Polygon.HalfWidth
		for _, corner := range [4]r3.Vec{
			{X: l, Y: w}, {X: l, Y: -w}, {X: -l, Y: -w}, {X: -l, Y: w},
		} {
			p := c.Pose.Apply(corner)
			minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
			minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
		}
	}
	return z.X >= minX-margin && z.X <= maxX+margin &&
		z.Y >= minY-margin && z.Y <= maxY+margin
}

func rowTimes(r [3]float64, a [3][3]float64) [3]float64 {
	var out [3]float64
	for j := 0; j < 3; j++ {
		out[j] = r[0]*a[0][j] + r[1]*a[1][j] + r[2]*a[2][j]
	}
	return out
}

func dot3(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func step(a [3][3]float64, b [3]float64, x [3]float64, u float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = a[i][0]*x[0] + a[i][1]*x[1] + a[i][2]*x[2] + b[i]*u
	}
	return out
}
