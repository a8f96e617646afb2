package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/solmag/spinchain/internal/mobility"
	"github.com/solmag/spinchain/internal/phase"
	"github.com/solmag/spinchain/internal/track"
)

// Results is the sqlite-backed store for aggregate sweep output: phase
// points, velocity measurements, and mobility points, keyed by a sweep
// id so several scans can share one database.
type Results struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS phase_points (
	sweep_id TEXT NOT NULL,
	d REAL NOT NULL,
	da REAL NOT NULL,
	label TEXT NOT NULL,
	energy REAL NOT NULL,
	converged INTEGER NOT NULL,
	PRIMARY KEY (sweep_id, d, da)
);
CREATE TABLE IF NOT EXISTS velocity_measurements (
	sweep_id TEXT NOT NULL,
	alpha REAL NOT NULL,
	hz REAL NOT NULL,
	velocity REAL NOT NULL,
	stderr REAL NOT NULL,
	fit_start REAL NOT NULL,
	fit_end REAL NOT NULL,
	samples INTEGER NOT NULL,
	PRIMARY KEY (sweep_id, alpha, hz)
);
CREATE TABLE IF NOT EXISTS mobility_points (
	sweep_id TEXT NOT NULL,
	alpha REAL NOT NULL,
	mobility REAL NOT NULL,
	mobility_stderr REAL NOT NULL,
	intrinsic REAL NOT NULL,
	intrinsic_stderr REAL NOT NULL,
	r_squared REAL NOT NULL,
	field_points INTEGER NOT NULL,
	PRIMARY KEY (sweep_id, alpha)
);
`

func OpenResults(path string) (*Results, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init results schema: %w", err)
	}
	return &Results{db: db}, nil
}

func (r *Results) Close() error { return r.db.Close() }

func (r *Results) SavePhaseMap(ctx context.Context, sweepID string, m *phase.Map) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO phase_points
		(sweep_id, d, da, label, energy, converged) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range m.Points {
		for _, pt := range row {
			converged := 0
			if pt.Err == nil {
				converged = 1
			}
			if _, err := stmt.ExecContext(ctx, sweepID, pt.D, pt.Da, string(pt.Label), pt.Energy, converged); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (r *Results) SaveVelocities(ctx context.Context, sweepID string, ms []track.Measurement) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO velocity_measurements
		(sweep_id, alpha, hz, velocity, stderr, fit_start, fit_end, samples)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range ms {
		if _, err := stmt.ExecContext(ctx, sweepID, m.Alpha, m.Hz, m.Velocity, m.Stderr, m.TStart, m.TEnd, m.Samples); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Results) SaveMobility(ctx context.Context, sweepID string, points []mobility.Point) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO mobility_points
		(sweep_id, alpha, mobility, mobility_stderr, intrinsic, intrinsic_stderr, r_squared, field_points)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, sweepID, p.Alpha, p.Mobility, p.MobilityStderr,
			p.Intrinsic, p.IntrinsicStderr, p.RSquared, p.FieldPoints); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// MobilityCurve reads back one sweep's mobility points ordered by alpha.
func (r *Results) MobilityCurve(ctx context.Context, sweepID string) ([]mobility.Point, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT alpha, mobility, mobility_stderr,
		intrinsic, intrinsic_stderr, r_squared, field_points
		FROM mobility_points WHERE sweep_id = ? ORDER BY alpha`, sweepID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []mobility.Point
	for rows.Next() {
		var p mobility.Point
		if err := rows.Scan(&p.Alpha, &p.Mobility, &p.MobilityStderr,
			&p.Intrinsic, &p.IntrinsicStderr, &p.RSquared, &p.FieldPoints); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PhaseLabels reads back one sweep's phase map as (d, da) -> label.
func (r *Results) PhaseLabels(ctx context.Context, sweepID string) (map[[2]float64]phase.Label, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT d, da, label FROM phase_points WHERE sweep_id = ?`, sweepID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[[2]float64]phase.Label)
	for rows.Next() {
		var d, da float64
		var label string
		if err := rows.Scan(&d, &da, &label); err != nil {
			return nil, err
		}
		out[[2]float64{d, da}] = phase.Label(label)
	}
	return out, rows.Err()
}

// Velocities reads back one sweep's velocity measurements ordered by
// (alpha, hz).
func (r *Results) Velocities(ctx context.Context, sweepID string) ([]track.Measurement, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT alpha, hz, velocity, stderr, fit_start, fit_end, samples
		FROM velocity_measurements WHERE sweep_id = ? ORDER BY alpha, hz`, sweepID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []track.Measurement
	for rows.Next() {
		var m track.Measurement
		if err := rows.Scan(&m.Alpha, &m.Hz, &m.Velocity, &m.Stderr, &m.TStart, &m.TEnd, &m.Samples); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
