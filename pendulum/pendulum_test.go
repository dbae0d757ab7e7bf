package pendulum

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"

	"capture-walking-core/defs"
)

func TestResetAtRest(t *testing.T) {
	s := New(0.78)
	assert.InDelta(t, math.Sqrt(defs.Gravity/0.78), s.Omega(), 1e-12)
	assert.Equal(t, r3.Vec{}, s.Comd())
	// At rest over the ZMP the only acceleration is gravity cancellation.
	assert.InDelta(t, 0., s.Comdd().X, 1e-12)
	assert.InDelta(t, 0., s.Comdd().Y, 1e-12)
}

func TestAccelerationFollowsDoubleIntegrator(t *testing.T) {
	s := New(0.78)
	com := r3.Vec{X: 0.1, Y: -0.05, Z: 0.78}
	zmp := r3.Vec{X: 0.02, Y: 0.01}
	s.Set(com, r3.Vec{X: 0.3}, zmp)

	w2 := s.Omega() * s.Omega()
	assert.InDelta(t, w2*(com.X-zmp.X), s.Comdd().X, 1e-12)
	assert.InDelta(t, w2*(com.Y-zmp.Y), s.Comdd().Y, 1e-12)
	assert.InDelta(t, w2*(com.Z-zmp.Z)-defs.Gravity, s.Comdd().Z, 1e-12)
}

func TestDCM(t *testing.T) {
	s := New(0.78)
	s.Set(r3.Vec{X: 0.1, Z: 0.78}, r3.Vec{X: 0.2}, r3.Vec{})
	want := 0.1 + 0.2/s.Omega()
	assert.InDelta(t, want, s.DCM().X, 1e-12)
	assert.InDelta(t, 0., s.DCM().Y, 1e-12)
}

func TestResetGuardsDegenerateHeight(t *testing.T) {
	s := New(0.78)
	s.Reset(r3.Vec{Z: 0.5}, r3.Vec{Z: 0.5})
	assert.False(t, math.IsNaN(s.Omega()))
	assert.False(t, math.IsInf(s.Omega(), 0))
}
