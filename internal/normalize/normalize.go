// Package normalize shapes validated, classified readings into the SafeCar
// backend's canonical telemetry sample.
package normalize

import (
	"time"

	"safecar-edge/internal/model"
)

// BuildSample assembles the backend-facing sample from a validated reading
// and its computed severity and telemetry type. Every present measurement is
// copied unchanged into its named slot; absent measurements are omitted, not
// zeroed. Total for any validated reading: no re-validation, no failure.
func BuildSample(r model.ValidatedReading, severity model.Severity, t model.TelemetryType, dev model.DeviceIdentity) model.NormalizedSample {
	sample := model.NormalizedSample{
		Type:      t,
		Severity:  severity,
		Timestamp: model.SampleTimestamp{OccurredAt: r.Timestamp.UTC().Format(time.RFC3339Nano)},
		VehicleID: model.VehicleIDValue{VehicleID: dev.VehicleID},
		DriverID:  model.DriverIDValue{DriverID: dev.DriverID},
		DeviceID:  model.DeviceIDValue{DeviceID: dev.DeviceID},
	}
	if r.HasCabinTemp() {
		sample.CabinTemp = &model.TemperatureValue{Celsius: *r.CabinTempC}
	}
	if r.HasCabinHumidity() {
		sample.CabinHumidity = &model.HumidityValue{Percent: *r.CabinHumidityPct}
	}
	if r.HasEngineTemp() {
		sample.EngineTemp = &model.TemperatureValue{Celsius: *r.EngineTempC}
	}
	if r.HasEngineHumidity() {
		sample.EngineHum = &model.HumidityValue{Percent: *r.EngineHumidityPct}
	}
	if r.HasGas() {
		sample.CabinGasLevel = &model.GasLevelValue{Type: *r.GasType, ConcentrationPpm: *r.GasPpm}
	}
	if r.HasCurrent() {
		sample.Current = &model.CurrentValue{Amperes: *r.CurrentA}
	}
	if r.HasPosition() {
		sample.Location = &model.GeoPositionValue{Latitude: *r.Latitude, Longitude: *r.Longitude}
	}
	return sample
}
