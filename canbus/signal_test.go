package canbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestVecRoundTrip(t *testing.T) {
	v := r3.Vec{X: 12.35, Y: -101.8, Z: 383.1}
	f, err := EncodeVec(LeftFootForce, v)
	require.NoError(t, err)
	assert.Equal(t, uint32(LeftFootForceID), uint32(f.ID))
	assert.Equal(t, uint8(6), f.Length)

	got, err := DecodeVec(LeftFootForce, f)
	require.NoError(t, err)
	// Force signals carry 0.05 N resolution.
	assert.InDelta(t, v.X, got.X, 0.05/2+1e-9)
	assert.InDelta(t, v.Y, got.Y, 0.05/2+1e-9)
	assert.InDelta(t, v.Z, got.Z, 0.05/2+1e-9)
}

func TestEncodeSaturatesOutOfRange(t *testing.T) {
	// 16-bit signed at 0.05 N/bit tops out at ~1638 N.
	f, err := EncodeVec(LeftFootForce, r3.Vec{X: 1e6, Y: -1e6})
	require.NoError(t, err)
	got, err := DecodeVec(LeftFootForce, f)
	require.NoError(t, err)
	assert.InDelta(t, 32767*0.05, got.X, 1e-9)
	assert.InDelta(t, -32768*0.05, got.Y, 1e-9)
}

func TestDecodeRejectsWrongFrame(t *testing.T) {
	f, err := EncodeVec(LeftFootForce, r3.Vec{X: 1})
	require.NoError(t, err)

	_, err = RightFootForce.Decode(f)
	assert.Error(t, err, "mismatched frame ID")

	f.Length = 2
	_, err = LeftFootForce.Decode(f)
	assert.Error(t, err, "truncated frame")
}

func TestPlanCursorRoundTrip(t *testing.T) {
	in := map[string]float64{
		"support_id": 3, "target_id": 4, "next_id": 5,
		"last_ssp": 0, "last_dsp": 1,
	}
	f, err := PlanCursor.Encode(in)
	require.NoError(t, err)
	out, err := PlanCursor.Decode(f)
	require.NoError(t, err)
	for name, want := range in {
		assert.Equal(t, want, out[name], name)
	}
}

func TestWalkStatusRatioResolution(t *testing.T) {
	f, err := WalkStatus.Encode(map[string]float64{"left_foot_ratio": 0.37, "cps_failures": 12})
	require.NoError(t, err)
	out, err := WalkStatus.Decode(f)
	require.NoError(t, err)
	assert.InDelta(t, 0.37, out["left_foot_ratio"], 1./255/2+1e-9)
	assert.Equal(t, 12., out["cps_failures"])
	assert.Equal(t, 0., out["emergency_stop"])
}

func TestByID(t *testing.T) {
	m, ok := ByID(PendulumComID)
	require.True(t, ok)
	assert.Equal(t, "PENDULUM_COM", m.Name)

	_, ok = ByID(0x7FF)
	assert.False(t, ok)
}
