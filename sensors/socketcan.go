//go:build linux || darwin

package sensors

import (
	"context"
	"fmt"
	"net"

	"go.einride.tech/can/pkg/socketcan"

	"capture-walking-core/utils"
)

// Receiver reads force-sensor frames from a SocketCAN interface into a
// ForceSensorSet. It runs on its own goroutine, never on the control
// thread.
type Receiver struct {
	conn net.Conn
	recv *socketcan.Receiver
}

// NewReceiver opens the given SocketCAN interface for reading.
func NewReceiver(ctx context.Context, iface string) (*Receiver, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial: %w", err)
	}
	return &Receiver{conn: conn, recv: socketcan.NewReceiver(conn)}, nil
}

// Run feeds frames into the sensor set until the context is canceled or
// the bus fails.
func (r *Receiver) Run(ctx context.Context, set *ForceSensorSet, log *utils.Logger) error {
	log.Debug("force-sensor RX loop started")
	defer log.Debug("force-sensor RX loop stopped")
	for r.recv.Receive() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := set.Ingest(r.recv.Frame()); err != nil {
			log.Warn("force-sensor frame dropped: %v", err)
		}
	}
	if err := r.recv.Err(); err != nil {
		return fmt.Errorf("socketcan receive: %w", err)
	}
	return nil
}

// Close closes the CAN socket, unblocking Run.
func (r *Receiver) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
