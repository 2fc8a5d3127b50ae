package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"safecar-edge/internal/model"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:safecar-edge.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS readings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id TEXT NOT NULL,
			vehicle_id INTEGER NOT NULL,
			driver_id INTEGER NOT NULL,
			location TEXT NOT NULL,
			cabin_temp_c REAL,
			cabin_humidity_pct REAL,
			engine_temp_c REAL,
			engine_humidity_pct REAL,
			gas_type TEXT,
			gas_ppm REAL,
			current_a REAL,
			latitude REAL,
			longitude REAL,
			ts TIMESTAMP NOT NULL,
			severity TEXT NOT NULL,
			telemetry_type TEXT NOT NULL,
			outcome TEXT NOT NULL,
			backend_synced INTEGER NOT NULL DEFAULT 0,
			sample_json TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_vehicle_ts ON readings(vehicle_id, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_device_ts ON readings(device_id, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_unsynced ON readings(backend_synced, outcome)`,
		`CREATE TABLE IF NOT EXISTS devices (
			device_id TEXT PRIMARY KEY,
			api_key TEXT NOT NULL,
			vehicle_id INTEGER NOT NULL,
			driver_id INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) SaveReading(ctx context.Context, rec model.LedgerRecord, sampleJSON []byte) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO readings (device_id, vehicle_id, driver_id, location,
			cabin_temp_c, cabin_humidity_pct, engine_temp_c, engine_humidity_pct,
			gas_type, gas_ppm, current_a, latitude, longitude,
			ts, severity, telemetry_type, outcome, backend_synced, sample_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		readingArgs(rec, sampleJSON)...,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqliteStore) MarkSynced(ctx context.Context, readingID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE readings SET backend_synced = 1 WHERE id = ?`, readingID)
	return err
}

func (s *sqliteStore) GetReading(ctx context.Context, readingID int64) (model.LedgerRecord, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+readingColumns+` FROM readings WHERE id = ?`, readingID)
	rec, err := scanReading(row)
	if err == sql.ErrNoRows {
		return model.LedgerRecord{}, false, nil
	}
	if err != nil {
		return model.LedgerRecord{}, false, err
	}
	return rec, true, nil
}

func (s *sqliteStore) ListVehicleReadings(ctx context.Context, vehicleID int64, q ReadingQuery) ([]model.LedgerRecord, error) {
	query := `SELECT ` + readingColumns + ` FROM readings WHERE vehicle_id = ?`
	args := []any{vehicleID}
	if q.Start != nil {
		query += ` AND ts >= ?`
		args = append(args, q.Start.UTC())
	}
	if q.End != nil {
		query += ` AND ts <= ?`
		args = append(args, q.End.UTC())
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` ORDER BY ts DESC LIMIT %d`, limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectReadings(rows)
}

func (s *sqliteStore) RecentDeviceReadings(ctx context.Context, deviceID string, limit int) ([]model.LedgerRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+readingColumns+` FROM readings WHERE device_id = ? ORDER BY ts DESC LIMIT ?`,
		deviceID, limit)
	if err != nil {
		return nil, err
	}
	return collectReadings(rows)
}

func (s *sqliteStore) ListUnsynced(ctx context.Context, limit int) ([]UnsyncedSample, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sample_json FROM readings
		WHERE backend_synced = 0 AND outcome = 'accepted' AND sample_json IS NOT NULL
		ORDER BY id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]UnsyncedSample, 0)
	for rows.Next() {
		var u UnsyncedSample
		var payload string
		if err := rows.Scan(&u.ReadingID, &payload); err != nil {
			return nil, err
		}
		u.SampleJSON = []byte(payload)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *sqliteStore) SaveDevice(ctx context.Context, dev model.Device) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO devices (device_id, api_key, vehicle_id, driver_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			api_key = excluded.api_key,
			vehicle_id = excluded.vehicle_id,
			driver_id = excluded.driver_id`,
		dev.DeviceID, dev.APIKey, dev.VehicleID, dev.DriverID, dev.CreatedAt.UTC())
	return err
}

func (s *sqliteStore) GetDevice(ctx context.Context, deviceID string) (model.Device, bool, error) {
	var dev model.Device
	err := s.db.QueryRowContext(ctx,
		`SELECT device_id, api_key, vehicle_id, driver_id, created_at FROM devices WHERE device_id = ?`,
		deviceID).Scan(&dev.DeviceID, &dev.APIKey, &dev.VehicleID, &dev.DriverID, &dev.CreatedAt)
	if err == sql.ErrNoRows {
		return model.Device{}, false, nil
	}
	if err != nil {
		return model.Device{}, false, err
	}
	return dev, true, nil
}
