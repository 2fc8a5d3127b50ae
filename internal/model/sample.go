package model

// NormalizedSample is the canonical structure forwarded to the SafeCar
// backend. Field names and nesting follow the backend's telemetry contract
// and must not change.
type NormalizedSample struct {
	Type          TelemetryType     `json:"type"`
	Severity      Severity          `json:"severity"`
	Timestamp     SampleTimestamp   `json:"timestamp"`
	VehicleID     VehicleIDValue    `json:"vehicleId"`
	DriverID      DriverIDValue     `json:"driverId"`
	DeviceID      DeviceIDValue     `json:"deviceId"`
	CabinTemp     *TemperatureValue `json:"cabinTemperature,omitempty"`
	CabinHumidity *HumidityValue    `json:"cabinHumidity,omitempty"`
	EngineTemp    *TemperatureValue `json:"engineTemperature,omitempty"`
	EngineHum     *HumidityValue    `json:"engineHumidity,omitempty"`
	CabinGasLevel *GasLevelValue    `json:"cabinGasLevel,omitempty"`
	Current       *CurrentValue     `json:"electricalCurrent,omitempty"`
	Location      *GeoPositionValue `json:"location,omitempty"`
}

type SampleTimestamp struct {
	OccurredAt string `json:"occurredAt"`
}

type VehicleIDValue struct {
	VehicleID int64 `json:"vehicleId"`
}

type DriverIDValue struct {
	DriverID int64 `json:"driverId"`
}

type DeviceIDValue struct {
	DeviceID string `json:"deviceId"`
}

type TemperatureValue struct {
	Celsius float64 `json:"celsius"`
}

type HumidityValue struct {
	Percent float64 `json:"percent"`
}

type GasLevelValue struct {
	Type             GasType `json:"type"`
	ConcentrationPpm float64 `json:"concentrationPpm"`
}

type CurrentValue struct {
	Amperes float64 `json:"amperes"`
}

type GeoPositionValue struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
