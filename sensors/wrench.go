// Package sensors acquires the foot force/torque readings and aggregates
// them into the net contact wrench consumed by the stabilizer.
package sensors

import (
	"fmt"
	"math"
	"sync"

	"go.einride.tech/can"

	"capture-walking-core/canbus"
	"capture-walking-core/geom"
)

// WrenchProvider hands out the latest foot wrenches. The controller only
// depends on this interface so tests can inject fixed readings.
type WrenchProvider interface {
	// FootWrenches returns the latest left and right foot wrenches.
	FootWrenches() (left, right geom.Wrench)
}

// NetWrench aggregates both feet into a single contact wrench.
func NetWrench(p WrenchProvider) geom.Wrench {
	left, right := p.FootWrenches()
	return left.Add(right)
}

// LeftFootRatio estimates the fraction of weight on the left foot from the
// vertical foot forces. Negative readings are floored at zero; with no
// vertical load at all the ratio defaults to an even split.
func LeftFootRatio(p WrenchProvider) float64 {
	left, right := p.FootWrenches()
	lz := math.Max(0, left.Force.Z)
	rz := math.Max(0, right.Force.Z)
	if lz+rz < 1e-3 {
		return 0.5
	}
	return lz / (lz + rz)
}

// ForceSensorSet collects force/torque frames from both feet. Ingest runs
// on the receive goroutine; readers take a short lock.
type ForceSensorSet struct {
	mu    sync.Mutex
	left  geom.Wrench
	right geom.Wrench
}

// Ingest decodes a force-sensor frame and updates the matching component.
// Frames with other IDs are ignored.
func (s *ForceSensorSet) Ingest(f can.Frame) error {
	var msg canbus.Message
	switch f.ID {
	case canbus.LeftFootForceID:
		msg = canbus.LeftFootForce
	case canbus.LeftFootTorqueID:
		msg = canbus.LeftFootTorque
	case canbus.RightFootForceID:
		msg = canbus.RightFootForce
	case canbus.RightFootTorqueID:
		msg = canbus.RightFootTorque
	default:
		return nil
	}
	v, err := canbus.DecodeVec(msg, f)
	if err != nil {
		return fmt.Errorf("decode %s: %w", msg.Name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch f.ID {
	case canbus.LeftFootForceID:
		s.left.Force = v
	case canbus.LeftFootTorqueID:
		s.left.Torque = v
	case canbus.RightFootForceID:
		s.right.Force = v
	case canbus.RightFootTorqueID:
		s.right.Torque = v
	}
	return nil
}

// FootWrenches implements WrenchProvider.
func (s *ForceSensorSet) FootWrenches() (left, right geom.Wrench) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.left, s.right
}

// StaticWrenches is a WrenchProvider with fixed readings, for tests and
// dry runs without a bus.
type StaticWrenches struct {
	Left  geom.Wrench
	Right geom.Wrench
}

func (s StaticWrenches) FootWrenches() (left, right geom.Wrench) {
	return s.Left, s.Right
}
