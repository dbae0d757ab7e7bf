// Package canbus defines the CAN messages exchanged by the walking core:
// foot force/torque sensor frames on the receive side, balance-state
// telemetry frames on the transmit side. Signals are little-endian
// bit-packed with factor/offset scaling.
package canbus

import (
	"fmt"
	"math"

	"go.einride.tech/can"
)

type Signal struct {
	Name      string
	StartBit  int
	BitLength int
	Signed    bool
	Factor    float64
	Offset    float64
}

type Message struct {
	ID      uint32
	Name    string
	Length  uint8
	Signals []Signal
}

// Encode packs physical values into a CAN frame. Missing values encode as
// zero; out-of-range raw values saturate to the signal's bit range.
func (m Message) Encode(values map[string]float64) (can.Frame, error) {
	if m.Length == 0 || m.Length > 8 {
		return can.Frame{}, fmt.Errorf("message %s has invalid length %d", m.Name, m.Length)
	}
	var payload uint64
	for _, s := range m.Signals {
		v := values[s.Name]
		raw := clampRaw(int64(math.Round((v-s.Offset)/s.Factor)), s.BitLength, s.Signed)
		payload = setBits(payload, s.StartBit, s.BitLength, rawToUnsigned(raw, s.BitLength))
	}
	var f can.Frame
	f.ID = m.ID
	f.Length = m.Length
	for i := 0; i < int(m.Length); i++ {
		f.Data[i] = byte((payload >> (8 * i)) & 0xFF)
	}
	return f, nil
}

// Decode unpacks a CAN frame into physical values.
func (m Message) Decode(f can.Frame) (map[string]float64, error) {
	if f.ID != m.ID {
		return nil, fmt.Errorf("message %s expects id 0x%X, got 0x%X", m.Name, m.ID, f.ID)
	}
	if f.Length < m.Length {
		return nil, fmt.Errorf("message %s expects %d bytes, got %d", m.Name, m.Length, f.Length)
	}
	var payload uint64
	for i := 0; i < int(m.Length); i++ {
		payload |= uint64(f.Data[i]) << (8 * i)
	}
	out := make(map[string]float64, len(m.Signals))
	for _, s := range m.Signals {
		raw := unsignedToRaw(getBits(payload, s.StartBit, s.BitLength), s.BitLength, s.Signed)
		out[s.Name] = float64(raw)*s.Factor + s.Offset
	}
	return out, nil
}

func getBits(payload uint64, startBit, bitLen int) uint64 {
	if bitLen <= 0 || bitLen > 64 {
		return 0
	}
	mask := uint64(1)<<bitLen - 1
	return (payload >> startBit) & mask
}

func setBits(payload uint64, startBit, bitLen int, value uint64) uint64 {
	if bitLen <= 0 || bitLen > 64 {
		return payload
	}
	mask := uint64(1)<<bitLen - 1
	payload &^= mask << startBit
	payload |= (value & mask) << startBit
	return payload
}

func unsignedToRaw(u uint64, bitLen int, signed bool) int64 {
	if !signed {
		return int64(u)
	}
	signBit := uint64(1) << (bitLen - 1)
	if u&signBit == 0 {
		return int64(u)
	}
	full := uint64(1)<<bitLen - 1
	return -int64((^u + 1) & full)
}

func rawToUnsigned(raw int64, bitLen int) uint64 {
	full := uint64(1)<<bitLen - 1
	if raw >= 0 {
		return uint64(raw) & full
	}
	return (^uint64(-raw) + 1) & full
}

func clampRaw(raw int64, bitLen int, signed bool) int64 {
	var lo, hi int64
	if signed {
		hi = int64(1)<<(bitLen-1) - 1
		lo = -hi - 1
	} else {
		lo, hi = 0, int64(1)<<bitLen-1
	}
	if raw < lo {
		return lo
	}
	if raw > hi {
		return hi
	}
	return raw
}
