// Package storage is the local ledger: a durable copy of every reading the
// edge unit has seen, raw measurements plus classification and forwarding
// outcome, kept for audit and replay. The backend remains the system of
// record; this store does not own the backend schema.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"safecar-edge/internal/config"
	"safecar-edge/internal/model"
)

// ReadingQuery bounds a vehicle history lookup.
type ReadingQuery struct {
	Start *time.Time
	End   *time.Time
	Limit int
}

// UnsyncedSample is an accepted reading whose forward attempt did not reach
// the backend. SampleJSON is the normalized payload exactly as it should be
// replayed.
type UnsyncedSample struct {
	ReadingID  int64
	SampleJSON []byte
}

type Store interface {
	Init(ctx context.Context) error
	Close() error

	SaveReading(ctx context.Context, rec model.LedgerRecord, sampleJSON []byte) (int64, error)
	MarkSynced(ctx context.Context, readingID int64) error
	GetReading(ctx context.Context, readingID int64) (model.LedgerRecord, bool, error)
	ListVehicleReadings(ctx context.Context, vehicleID int64, q ReadingQuery) ([]model.LedgerRecord, error)
	RecentDeviceReadings(ctx context.Context, deviceID string, limit int) ([]model.LedgerRecord, error)
	ListUnsynced(ctx context.Context, limit int) ([]UnsyncedSample, error)

	SaveDevice(ctx context.Context, dev model.Device) error
	GetDevice(ctx context.Context, deviceID string) (model.Device, bool, error)
}

func NewStore(cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "sqlite", "":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// readingColumns is the shared SELECT list; scanReading must stay in step
// with it.
const readingColumns = `id, device_id, vehicle_id, driver_id, location,
	cabin_temp_c, cabin_humidity_pct, engine_temp_c, engine_humidity_pct,
	gas_type, gas_ppm, current_a, latitude, longitude,
	ts, severity, telemetry_type, outcome, backend_synced, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(row rowScanner) (model.LedgerRecord, error) {
	var rec model.LedgerRecord
	var location, severity, telemetryType, outcome string
	var cabinTemp, cabinHum, engineTemp, engineHum, gasPpm, current, lat, lon sql.NullFloat64
	var gasType sql.NullString
	err := row.Scan(
		&rec.ID,
		&rec.Device.DeviceID,
		&rec.Device.VehicleID,
		&rec.Device.DriverID,
		&location,
		&cabinTemp,
		&cabinHum,
		&engineTemp,
		&engineHum,
		&gasType,
		&gasPpm,
		&current,
		&lat,
		&lon,
		&rec.Reading.Timestamp,
		&severity,
		&telemetryType,
		&outcome,
		&rec.BackendSynced,
		&rec.CreatedAt,
	)
	if err != nil {
		return model.LedgerRecord{}, err
	}
	rec.Reading.Location = model.SensorLocation(location)
	rec.Severity = model.Severity(severity)
	rec.TelemetryType = model.TelemetryType(telemetryType)
	rec.Outcome = model.ReadingOutcome(outcome)
	rec.Reading.CabinTempC = nullableFloat(cabinTemp)
	rec.Reading.CabinHumidityPct = nullableFloat(cabinHum)
	rec.Reading.EngineTempC = nullableFloat(engineTemp)
	rec.Reading.EngineHumidityPct = nullableFloat(engineHum)
	rec.Reading.GasPpm = nullableFloat(gasPpm)
	rec.Reading.CurrentA = nullableFloat(current)
	rec.Reading.Latitude = nullableFloat(lat)
	rec.Reading.Longitude = nullableFloat(lon)
	if gasType.Valid {
		g := model.GasType(gasType.String)
		rec.Reading.GasType = &g
	}
	return rec, nil
}

// readingArgs produces the insert arguments matching the column order used
// by both drivers. Absent measurements insert as NULL, never as zero.
func readingArgs(rec model.LedgerRecord, sampleJSON []byte) []any {
	var gasType any
	if rec.Reading.GasType != nil {
		gasType = string(*rec.Reading.GasType)
	}
	var sample any
	if len(sampleJSON) > 0 {
		sample = string(sampleJSON)
	}
	return []any{
		rec.Device.DeviceID,
		rec.Device.VehicleID,
		rec.Device.DriverID,
		string(rec.Reading.Location),
		floatArg(rec.Reading.CabinTempC),
		floatArg(rec.Reading.CabinHumidityPct),
		floatArg(rec.Reading.EngineTempC),
		floatArg(rec.Reading.EngineHumidityPct),
		gasType,
		floatArg(rec.Reading.GasPpm),
		floatArg(rec.Reading.CurrentA),
		floatArg(rec.Reading.Latitude),
		floatArg(rec.Reading.Longitude),
		rec.Reading.Timestamp.UTC(),
		string(rec.Severity),
		string(rec.TelemetryType),
		string(rec.Outcome),
		rec.BackendSynced,
		sample,
		rec.CreatedAt.UTC(),
	}
}

func floatArg(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func collectReadings(rows *sql.Rows) ([]model.LedgerRecord, error) {
	defer rows.Close()
	out := make([]model.LedgerRecord, 0)
	for rows.Next() {
		rec, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
