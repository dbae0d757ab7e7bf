package canbus

import (
	"go.einride.tech/can"

	"gonum.org/v1/gonum/spatial/r3"
)

// Frame IDs. 0x31x are sensor inputs, 0x32x telemetry outputs.
const (
	LeftFootForceID   = 0x310
	LeftFootTorqueID  = 0x311
	RightFootForceID  = 0x312
	RightFootTorqueID = 0x313

	PendulumComID = 0x320
	PendulumZMPID = 0x321
	PendulumDCMID = 0x322
	PlanCursorID  = 0x323
	WalkStatusID  = 0x324
)

// vecMessage packs a 3-vector as three 16-bit signed signals.
func vecMessage(id uint32, name string, factor float64) Message {
	sig := func(n string, start int) Signal {
		return Signal{Name: n, StartBit: start, BitLength: 16, Signed: true, Factor: factor}
	}
	return Message{
		ID:      id,
		Name:    name,
		Length:  6,
		Signals: []Signal{sig("x", 0), sig("y", 16), sig("z", 32)},
	}
}

var (
	LeftFootForce   = vecMessage(LeftFootForceID, "LEFT_FOOT_FORCE", 0.05)
	LeftFootTorque  = vecMessage(LeftFootTorqueID, "LEFT_FOOT_TORQUE", 0.002)
	RightFootForce  = vecMessage(RightFootForceID, "RIGHT_FOOT_FORCE", 0.05)
	RightFootTorque = vecMessage(RightFootTorqueID, "RIGHT_FOOT_TORQUE", 0.002)

	PendulumCom = vecMessage(PendulumComID, "PENDULUM_COM", 0.001)
	PendulumZMP = vecMessage(PendulumZMPID, "PENDULUM_ZMP", 0.001)
	PendulumDCM = vecMessage(PendulumDCMID, "PENDULUM_DCM", 0.001)

	PlanCursor = Message{
		ID:     PlanCursorID,
		Name:   "PLAN_CURSOR",
		Length: 8,
		Signals: []Signal{
			{Name: "support_id", StartBit: 0, BitLength: 16, Factor: 1},
			{Name: "target_id", StartBit: 16, BitLength: 16, Factor: 1},
			{Name: "next_id", StartBit: 32, BitLength: 16, Factor: 1},
			{Name: "last_ssp", StartBit: 48, BitLength: 1, Factor: 1},
			{Name: "last_dsp", StartBit: 49, BitLength: 1, Factor: 1},
		},
	}

	WalkStatus = Message{
		ID:     WalkStatusID,
		Name:   "WALK_STATUS",
		Length: 8,
		Signals: []Signal{
			{Name: "emergency_stop", StartBit: 0, BitLength: 1, Factor: 1},
			{Name: "pause_walking", StartBit: 1, BitLength: 1, Factor: 1},
			{Name: "cps_failures", StartBit: 8, BitLength: 16, Factor: 1},
			{Name: "hmpc_failures", StartBit: 24, BitLength: 16, Factor: 1},
			{Name: "left_foot_ratio", StartBit: 40, BitLength: 8, Factor: 1. / 255},
		},
	}
)

// byID indexes every known message for the receive path.
var byID = map[uint32]Message{}

func init() {
	for _, m := range []Message{
		LeftFootForce, LeftFootTorque, RightFootForce, RightFootTorque,
		PendulumCom, PendulumZMP, PendulumDCM, PlanCursor, WalkStatus,
	} {
		byID[m.ID] = m
	}
}

// ByID looks a message definition up by frame ID.
func ByID(id uint32) (Message, bool) {
	m, ok := byID[id]
	return m, ok
}

// EncodeVec is a convenience for the three-signal vector messages.
func EncodeVec(m Message, v r3.Vec) (can.Frame, error) {
	return m.Encode(map[string]float64{"x": v.X, "y": v.Y, "z": v.Z})
}

// DecodeVec is the inverse of EncodeVec.
func DecodeVec(m Message, f can.Frame) (r3.Vec, error) {
	values, err := m.Decode(f)
	if err != nil {
		return r3.Vec{}, err
	}
	return r3.Vec{X: values["x"], Y: values["y"], Z: values["z"]}, nil
}
