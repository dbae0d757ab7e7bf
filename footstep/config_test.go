package footstep

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanConfigRoundTrip(t *testing.T) {
	height := 0.06
	cfg := PlanConfig{
		ComHeight:             ptr(0.80),
		DoubleSupportDuration: ptr(0.3),
		SingleSupportDuration: ptr(0.9),
		InitDSPDuration:       ptr(0.5),
		FinalDSPDuration:      ptr(0.7),
		LandingPitch:          ptr(0.1),
		LandingRatio:          ptr(0.1),
		SwingHeight:           ptr(0.05),
		TakeoffOffset:         &[3]float64{-0.02, 0, 0},
		TakeoffPitch:          ptr(-0.1),
		TakeoffRatio:          ptr(0.1),
		Contacts: []ContactConfig{
			{Surface: "left", Position: [3]float64{0, 0.09, 0}, HalfLength: ptr(0.112), HalfWidth: ptr(0.065)},
			{Surface: "right", Position: [3]float64{0, -0.09, 0}, HalfLength: ptr(0.112), HalfWidth: ptr(0.065),
				Swing: &SwingOverrides{Height: &height}},
		},
	}

	p := NewPlan()
	require.NoError(t, p.Load(cfg))
	saved := p.Save()

	opts := cmpopts.EquateApprox(0, 1e-9)
	if diff := cmp.Diff(cfg, saved, opts); diff != "" {
		t.Errorf("plan config round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanLoadRejectsBadConfig(t *testing.T) {
	p := NewPlan()

	err := p.Load(PlanConfig{})
	assert.ErrorIs(t, err, ErrConfig)

	err = p.Load(PlanConfig{Contacts: []ContactConfig{{Surface: "hand", Position: [3]float64{0, 0, 0}}}})
	assert.ErrorIs(t, err, ErrConfig)
	assert.Empty(t, p.Contacts(), "no partial plan may be installed")
}

func TestLoadPlanSet(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "plans.json")
	set := PlanSet{
		"demo": {Contacts: []ContactConfig{{Surface: "left", Position: [3]float64{0, 0.09, 0}}}},
	}
	data, err := json.Marshal(set)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	got, err := LoadPlanSet(path)
	require.NoError(t, err)
	require.Contains(t, got, "demo")
	assert.Len(t, got["demo"].Contacts, 1)

	_, err = LoadPlanSet(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("{}"), 0644))
	_, err = LoadPlanSet(empty)
	assert.ErrorIs(t, err, ErrConfig)
}
