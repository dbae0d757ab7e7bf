package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.einride.tech/can"

	"capture-walking-core/canbus"
	"capture-walking-core/controller"
	"capture-walking-core/utils"
)

// SnapshotSource hands out copy-based controller snapshots.
type SnapshotSource interface {
	Snapshot() controller.Snapshot
}

// Publisher periodically snapshots the controller and publishes the
// balance state. It runs on its own goroutine at a rate far below the
// control frequency and holds no controller references between ticks.
type Publisher struct {
	src    SnapshotSource
	writer CANWriter
	store  *Store
	log    *utils.Logger
	period time.Duration

	lastSegment string
}

// NewPublisher wires a publisher. writer and store are each optional.
func NewPublisher(src SnapshotSource, writer CANWriter, store *Store, period time.Duration, log *utils.Logger) *Publisher {
	if period <= 0 {
		period = 100 * time.Millisecond
	}
	return &Publisher{src: src, writer: writer, store: store, log: log, period: period}
}

// Run publishes until the context is canceled.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.Publish(ctx); err != nil {
				p.log.Warn("telemetry publish: %v", err)
			}
		}
	}
}

// Publish takes one snapshot and fans it out.
func (p *Publisher) Publish(ctx context.Context) error {
	snap := p.src.Snapshot()

	if p.writer != nil {
		if err := p.transmit(ctx, snap); err != nil {
			return err
		}
	}
	if p.store != nil {
		if err := p.record(snap); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) transmit(ctx context.Context, snap controller.Snapshot) error {
	frames := make([]can.Frame, 0, 5)
	for _, enc := range []struct {
		msg canbus.Message
		v   [3]float64
	}{
		{canbus.PendulumCom, [3]float64{snap.Com.X, snap.Com.Y, snap.Com.Z}},
		{canbus.PendulumZMP, [3]float64{snap.ZMP.X, snap.ZMP.Y, snap.ZMP.Z}},
		{canbus.PendulumDCM, [3]float64{snap.DCM.X, snap.DCM.Y, snap.DCM.Z}},
	} {
		f, err := enc.msg.Encode(map[string]float64{"x": enc.v[0], "y": enc.v[1], "z": enc.v[2]})
		if err != nil {
			return fmt.Errorf("encode %s: %w", enc.msg.Name, err)
		}
		frames = append(frames, f)
	}

	cursor, err := canbus.PlanCursor.Encode(map[string]float64{
		"support_id": float64(snap.SupportID),
		"target_id":  float64(snap.TargetID),
		"next_id":    float64(snap.NextID),
		"last_ssp":   boolToFloat(snap.LastSSP),
		"last_dsp":   boolToFloat(snap.LastDSP),
	})
	if err != nil {
		return fmt.Errorf("encode %s: %w", canbus.PlanCursor.Name, err)
	}
	status, err := canbus.WalkStatus.Encode(map[string]float64{
		"emergency_stop":  boolToFloat(snap.EmergencyStop),
		"pause_walking":   boolToFloat(snap.PauseWalking),
		"cps_failures":    float64(snap.CPSFailures),
		"hmpc_failures":   float64(snap.HMPCFailures),
		"left_foot_ratio": snap.LeftFootRatio,
	})
	if err != nil {
		return fmt.Errorf("encode %s: %w", canbus.WalkStatus.Name, err)
	}
	frames = append(frames, cursor, status)

	for _, f := range frames {
		if err := p.writer.WriteFrame(ctx, f); err != nil {
			return fmt.Errorf("transmit 0x%X: %w", uint32(f.ID), err)
		}
	}
	return nil
}

func (p *Publisher) record(snap controller.Snapshot) error {
	if snap.SegmentName != p.lastSegment {
		if p.lastSegment != "" {
			if err := p.store.MarkSegment(p.lastSegment, "stop", snap.Time); err != nil {
				return err
			}
		}
		if snap.SegmentName != "" {
			if err := p.store.MarkSegment(snap.SegmentName, "start", snap.Time); err != nil {
				return err
			}
		}
		p.lastSegment = snap.SegmentName
	}
	return p.store.RecordSnapshot(snap)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
