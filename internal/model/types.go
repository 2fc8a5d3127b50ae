package model

import "time"

type SensorLocation string

const (
	LocationCabin  SensorLocation = "CABIN"
	LocationEngine SensorLocation = "ENGINE"
)

type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityCritical: 2,
}

// Max returns the worse of two severities. INFO < WARNING < CRITICAL.
func (s Severity) Max(other Severity) Severity {
	if severityRank[other] > severityRank[s] {
		return other
	}
	return s
}

type TelemetryType string

const (
	TypeTemperatureAnomaly TelemetryType = "TEMPERATURE_ANOMALY"
	TypeCabinGasDetected   TelemetryType = "CABIN_GAS_DETECTED"
	TypeEngineOverheat     TelemetryType = "ENGINE_OVERHEAT"
	TypeElectricalFault    TelemetryType = "ELECTRICAL_FAULT"
	TypeLocationUpdate     TelemetryType = "LOCATION_UPDATE"
)

type GasType string

const (
	GasLPG      GasType = "lpg"
	GasButane   GasType = "butane"
	GasPropane  GasType = "propane"
	GasMethane  GasType = "methane"
	GasAlcohol  GasType = "alcohol"
	GasHydrogen GasType = "hydrogen"
)

// SupportedGasTypes lists the gases the MQ2 sensor reports.
var SupportedGasTypes = []GasType{GasLPG, GasButane, GasPropane, GasMethane, GasAlcohol, GasHydrogen}

// RawReading is one inbound sensor payload. Measurement fields are pointers
// so an unequipped sensor is distinguishable from a sensor that read zero.
type RawReading struct {
	Location          SensorLocation `json:"location"`
	CabinTempC        *float64       `json:"cabin_temperature_celsius,omitempty"`
	CabinHumidityPct  *float64       `json:"cabin_humidity_percent,omitempty"`
	EngineTempC       *float64       `json:"engine_temperature_celsius,omitempty"`
	EngineHumidityPct *float64       `json:"engine_humidity_percent,omitempty"`
	GasType           *GasType       `json:"gas_type,omitempty"`
	GasPpm            *float64       `json:"gas_concentration_ppm,omitempty"`
	CurrentA          *float64       `json:"current_amperes,omitempty"`
	Latitude          *float64       `json:"latitude,omitempty"`
	Longitude         *float64       `json:"longitude,omitempty"`
	Timestamp         time.Time      `json:"timestamp"`
}

func (r RawReading) HasCabinTemp() bool      { return r.CabinTempC != nil }
func (r RawReading) HasCabinHumidity() bool  { return r.CabinHumidityPct != nil }
func (r RawReading) HasEngineTemp() bool     { return r.EngineTempC != nil }
func (r RawReading) HasEngineHumidity() bool { return r.EngineHumidityPct != nil }
func (r RawReading) HasGas() bool            { return r.GasType != nil && r.GasPpm != nil }
func (r RawReading) HasCurrent() bool        { return r.CurrentA != nil }
func (r RawReading) HasPosition() bool       { return r.Latitude != nil && r.Longitude != nil }

// HasMeasurement reports whether at least one sensor value is present.
func (r RawReading) HasMeasurement() bool {
	return r.HasCabinTemp() || r.HasCabinHumidity() ||
		r.HasEngineTemp() || r.HasEngineHumidity() ||
		r.HasGas() || r.HasCurrent() || r.HasPosition()
}

// ValidatedReading is a RawReading whose present fields all passed their
// range checks. Constructed only by the validator.
type ValidatedReading struct {
	RawReading
}

// DeviceIdentity carries the identities resolved during device
// authentication. Passed through to the sample unchanged.
type DeviceIdentity struct {
	DeviceID  string `json:"device_id"`
	VehicleID int64  `json:"vehicle_id"`
	DriverID  int64  `json:"driver_id"`
}

type ForwardStatus string

const (
	ForwardDelivered   ForwardStatus = "delivered"
	ForwardRejected    ForwardStatus = "rejected"
	ForwardUnreachable ForwardStatus = "unreachable"
)

// ForwardOutcome is the result of one synchronous forward attempt.
type ForwardOutcome struct {
	Status ForwardStatus
	Reason string
}

func (o ForwardOutcome) Delivered() bool { return o.Status == ForwardDelivered }

type ReadingOutcome string

const (
	OutcomeAccepted ReadingOutcome = "accepted"
	OutcomeRejected ReadingOutcome = "rejected"
)

// LedgerRecord is a reading as persisted in the local ledger, together with
// its classification and forwarding state.
type LedgerRecord struct {
	ID            int64          `json:"id"`
	Device        DeviceIdentity `json:"device"`
	Reading       RawReading     `json:"reading"`
	Severity      Severity       `json:"severity,omitempty"`
	TelemetryType TelemetryType  `json:"telemetry_type,omitempty"`
	Outcome       ReadingOutcome `json:"outcome"`
	BackendSynced bool           `json:"backend_synced"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Device is a provisioned edge device and the vehicle/driver it reports for.
type Device struct {
	DeviceID  string    `json:"device_id"`
	APIKey    string    `json:"-"`
	VehicleID int64     `json:"vehicle_id"`
	DriverID  int64     `json:"driver_id"`
	CreatedAt time.Time `json:"created_at"`
}
