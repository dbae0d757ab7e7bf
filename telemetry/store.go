package telemetry

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"capture-walking-core/controller"
)

// Store persists controller snapshots and log-segment markers to sqlite.
type Store struct {
	*sql.DB
}

// OpenStore opens (creating if needed) the recording database.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			ctl_time DOUBLE,
			plan TEXT,
			support_id INTEGER,
			target_id INTEGER,
			next_id INTEGER,
			com_x DOUBLE, com_y DOUBLE, com_z DOUBLE,
			zmp_x DOUBLE, zmp_y DOUBLE,
			dcm_x DOUBLE, dcm_y DOUBLE,
			cmd_zmp_x DOUBLE, cmd_zmp_y DOUBLE,
			strategy TEXT,
			cps_failures INTEGER,
			hmpc_failures INTEGER,
			segment TEXT,
			recorded TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS segments (
			name TEXT,
			event TEXT,
			ctl_time DOUBLE,
			recorded TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init telemetry schema: %w", err)
	}
	return &Store{db}, nil
}

// RecordSnapshot appends one controller snapshot.
func (s *Store) RecordSnapshot(snap controller.Snapshot) error {
	_, err := s.Exec(`INSERT INTO snapshots (
			ctl_time, plan, support_id, target_id, next_id,
			com_x, com_y, com_z, zmp_x, zmp_y, dcm_x, dcm_y,
			cmd_zmp_x, cmd_zmp_y, strategy, cps_failures, hmpc_failures, segment
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.Time, snap.PlanName, snap.SupportID, snap.TargetID, snap.NextID,
		snap.Com.X, snap.Com.Y, snap.Com.Z, snap.ZMP.X, snap.ZMP.Y,
		snap.DCM.X, snap.DCM.Y, snap.CommandZMP.X, snap.CommandZMP.Y,
		string(snap.Strategy), snap.CPSFailures, snap.HMPCFailures, snap.SegmentName)
	return err
}

// MarkSegment records a log-segment boundary ("start" or "stop").
func (s *Store) MarkSegment(name, event string, ctlTime float64) error {
	_, err := s.Exec(`INSERT INTO segments (name, event, ctl_time) VALUES (?, ?, ?)`,
		name, event, ctlTime)
	return err
}

// SnapshotCount reports how many snapshots are recorded; used by tools
// and tests.
func (s *Store) SnapshotCount() (int, error) {
	var n int
	err := s.QueryRow(`SELECT COUNT(*) FROM snapshots`).Scan(&n)
	return n, err
}

// LastSnapshotTime returns the newest recorded controller time.
func (s *Store) LastSnapshotTime() (float64, error) {
	var t float64
	err := s.QueryRow(`SELECT ctl_time FROM snapshots ORDER BY rowid DESC LIMIT 1`).Scan(&t)
	return t, err
}
