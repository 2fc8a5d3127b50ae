package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"safecar-edge/internal/model"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/safecar_edge?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS readings (
			id BIGSERIAL PRIMARY KEY,
			device_id TEXT NOT NULL,
			vehicle_id BIGINT NOT NULL,
			driver_id BIGINT NOT NULL,
			location TEXT NOT NULL,
			cabin_temp_c DOUBLE PRECISION,
			cabin_humidity_pct DOUBLE PRECISION,
			engine_temp_c DOUBLE PRECISION,
			engine_humidity_pct DOUBLE PRECISION,
			gas_type TEXT,
			gas_ppm DOUBLE PRECISION,
			current_a DOUBLE PRECISION,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			ts TIMESTAMPTZ NOT NULL,
			severity TEXT NOT NULL,
			telemetry_type TEXT NOT NULL,
			outcome TEXT NOT NULL,
			backend_synced BOOLEAN NOT NULL DEFAULT FALSE,
			sample_json JSONB,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_vehicle_ts ON readings(vehicle_id, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_device_ts ON readings(device_id, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_unsynced ON readings(backend_synced, outcome)`,
		`CREATE TABLE IF NOT EXISTS devices (
			device_id TEXT PRIMARY KEY,
			api_key TEXT NOT NULL,
			vehicle_id BIGINT NOT NULL,
			driver_id BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *postgresStore) SaveReading(ctx context.Context, rec model.LedgerRecord, sampleJSON []byte) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO readings (device_id, vehicle_id, driver_id, location,
			cabin_temp_c, cabin_humidity_pct, engine_temp_c, engine_humidity_pct,
			gas_type, gas_ppm, current_a, latitude, longitude,
			ts, severity, telemetry_type, outcome, backend_synced, sample_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING id`,
		readingArgs(rec, sampleJSON)...,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *postgresStore) MarkSynced(ctx context.Context, readingID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE readings SET backend_synced = TRUE WHERE id = $1`, readingID)
	return err
}

func (s *postgresStore) GetReading(ctx context.Context, readingID int64) (model.LedgerRecord, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+readingColumns+` FROM readings WHERE id = $1`, readingID)
	rec, err := scanReading(row)
	if err == sql.ErrNoRows {
		return model.LedgerRecord{}, false, nil
	}
	if err != nil {
		return model.LedgerRecord{}, false, err
	}
	return rec, true, nil
}

func (s *postgresStore) ListVehicleReadings(ctx context.Context, vehicleID int64, q ReadingQuery) ([]model.LedgerRecord, error) {
	query := `SELECT ` + readingColumns + ` FROM readings WHERE vehicle_id = $1`
	args := []any{vehicleID}
	if q.Start != nil {
		args = append(args, q.Start.UTC())
		query += fmt.Sprintf(` AND ts >= $%d`, len(args))
	}
	if q.End != nil {
		args = append(args, q.End.UTC())
		query += fmt.Sprintf(` AND ts <= $%d`, len(args))
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

func (s *postgresStore) RecentDeviceReadings(ctx context.Context, deviceID string, limit int) ([]model.LedgerRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+readingColumns+` FROM readings WHERE device_id = $1 ORDER BY ts DESC LIMIT $2`,
		deviceID, limit)
	if err != nil {
		return nil, err
	}
	return collectReadings(rows)
}

func (s *postgresStore) ListUnsynced(ctx context.Context, limit int) ([]UnsyncedSample, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sample_json FROM readings
		WHERE backend_synced = FALSE AND outcome = 'accepted' AND sample_json IS NOT NULL
		ORDER BY id ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]UnsyncedSample, 0)
	for rows.Next() {
		var u UnsyncedSample
		var payload []byte
		if err := rows.Scan(&u.ReadingID, &payload); err != nil {
			return nil, err
		}
		u.SampleJSON = payload
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *postgresStore) SaveDevice(ctx context.Context, dev model.Device) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO devices (device_id, api_key, vehicle_id, driver_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (device_id) DO UPDATE SET
			api_key = EXCLUDED.api_key,
			vehicle_id = EXCLUDED.vehicle_id,
			driver_id = EXCLUDED.driver_id`,
		dev.DeviceID, dev.APIKey, dev.VehicleID, dev.DriverID, dev.CreatedAt.UTC())
	return err
}

func (s *postgresStore) GetDevice(ctx context.Context, deviceID string) (model.Device, bool, error) {
	var dev model.Device
	err := s.db.QueryRowContext(ctx,
		`SELECT device_id, api_key, vehicle_id, driver_id, created_at FROM devices WHERE device_id = $1`,
		deviceID).Scan(&dev.DeviceID, &dev.APIKey, &dev.VehicleID, &dev.DriverID, &dev.CreatedAt)
	if err == sql.ErrNoRows {
		return model.Device{}, false, nil
	}
	if err != nil {
		return model.Device{}, false, err
	}
	return dev, true, nil
}
