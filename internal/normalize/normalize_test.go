package normalize_test

import (
	"strings"
	"testing"
	"time"

	"safecar-edge/internal/engine"
	"safecar-edge/internal/gateway"
	"safecar-edge/internal/model"
	"safecar-edge/internal/normalize"
)

func f(v float64) *float64 { return &v }

func mustValidate(t *testing.T, r model.RawReading) model.ValidatedReading {
	t.Helper()
	v, err := engine.Validate(r)
	if err != nil {
		t.Fatalf("reading did not validate: %v", err)
	}
	return v
}

func testDevice() model.DeviceIdentity {
	return model.DeviceIdentity{DeviceID: "device-001", VehicleID: 7, DriverID: 3}
}

func TestBuildSampleFaithfulCopy(t *testing.T) {
	gasType := model.GasMethane
	ts := time.Date(2024, 5, 12, 9, 30, 0, 0, time.UTC)
	r := mustValidate(t, model.RawReading{
		CabinTempC:        f(22.5),
		CabinHumidityPct:  f(55),
		EngineTempC:       f(95),
		EngineHumidityPct: f(40),
		GasType:           &gasType,
		GasPpm:            f(150),
		CurrentA:          f(2.1),
		Latitude:          f(-12.0464),
		Longitude:         f(-77.0428),
		Timestamp:         ts,
	})

	sample := normalize.BuildSample(r, model.SeverityWarning, model.TypeEngineOverheat, testDevice())

	if sample.Type != model.TypeEngineOverheat || sample.Severity != model.SeverityWarning {
		t.Fatalf("classification not carried: %s %s", sample.Type, sample.Severity)
	}
	if sample.Timestamp.OccurredAt != ts.Format(time.RFC3339Nano) {
		t.Fatalf("wrong timestamp: %s", sample.Timestamp.OccurredAt)
	}
	if sample.VehicleID.VehicleID != 7 || sample.DriverID.DriverID != 3 || sample.DeviceID.DeviceID != "device-001" {
		t.Fatalf("identity not carried: %+v", sample)
	}
	if sample.CabinTemp == nil || sample.CabinTemp.Celsius != 22.5 {
		t.Fatalf("cabin temperature not copied")
	}
	if sample.EngineTemp == nil || sample.EngineTemp.Celsius != 95 {
		t.Fatalf("engine temperature not copied")
	}
	if sample.CabinHumidity == nil || sample.CabinHumidity.Percent != 55 {
		t.Fatalf("cabin humidity not copied")
	}
	if sample.EngineHum == nil || sample.EngineHum.Percent != 40 {
		t.Fatalf("engine humidity not copied")
	}
	if sample.CabinGasLevel == nil || sample.CabinGasLevel.Type != model.GasMethane || sample.CabinGasLevel.ConcentrationPpm != 150 {
		t.Fatalf("gas level not copied")
	}
	if sample.Current == nil || sample.Current.Amperes != 2.1 {
		t.Fatalf("current not copied")
	}
	if sample.Location == nil || sample.Location.Latitude != -12.0464 || sample.Location.Longitude != -77.0428 {
		t.Fatalf("position not copied, sign must be preserved")
	}
}

func TestBuildSampleOmitsAbsentFields(t *testing.T) {
	r := mustValidate(t, model.RawReading{CabinTempC: f(22), Timestamp: time.Now()})
	sample := normalize.BuildSample(r, model.SeverityInfo, model.TypeTemperatureAnomaly, testDevice())

	if sample.CabinTemp == nil {
		t.Fatalf("present field missing")
	}
	if sample.EngineTemp != nil || sample.CabinHumidity != nil || sample.EngineHum != nil ||
		sample.CabinGasLevel != nil || sample.Current != nil || sample.Location != nil {
		t.Fatalf("absent fields must stay absent: %+v", sample)
	}

	payload, err := gateway.EncodeCommand(sample)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	body := string(payload)
	for _, absent := range []string{"engineTemperature", "cabinHumidity", "engineHumidity", "cabinGasLevel", "electricalCurrent", "location"} {
		if strings.Contains(body, absent) {
			t.Fatalf("absent field %q serialized: %s", absent, body)
		}
	}
}

func TestBuildSampleWireNames(t *testing.T) {
	gasType := model.GasLPG
	r := mustValidate(t, model.RawReading{
		GasType:   &gasType,
		GasPpm:    f(150),
		Timestamp: time.Date(2024, 5, 12, 9, 30, 0, 0, time.UTC),
	})
	sample := normalize.BuildSample(r, model.SeverityInfo, model.TypeCabinGasDetected, testDevice())

	payload, err := gateway.EncodeCommand(sample)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	body := string(payload)
	for _, want := range []string{
		`"sample"`, `"type":"CABIN_GAS_DETECTED"`, `"severity":"INFO"`,
		`"occurredAt"`, `"vehicleId"`, `"driverId"`, `"deviceId"`,
		`"cabinGasLevel"`, `"concentrationPpm":150`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("payload missing %s: %s", want, body)
		}
	}
}

func TestClassificationRoundTrip(t *testing.T) {
	gasType := model.GasPropane
	original := mustValidate(t, model.RawReading{
		EngineTempC: f(120),
		GasType:     &gasType,
		GasPpm:      f(500),
		Timestamp:   time.Now().UTC(),
	})
	severity := engine.ClassifySeverity(original)
	telemetryType, err := engine.ResolveType(original)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sample := normalize.BuildSample(original, severity, telemetryType, testDevice())

	// Rebuild a reading from the sample's fields and classify again.
	rebuilt := model.RawReading{}
	if sample.EngineTemp != nil {
		rebuilt.EngineTempC = f(sample.EngineTemp.Celsius)
	}
	if sample.CabinGasLevel != nil {
		g := sample.CabinGasLevel.Type
		rebuilt.GasType = &g
		rebuilt.GasPpm = f(sample.CabinGasLevel.ConcentrationPpm)
	}
	revalidated := mustValidate(t, rebuilt)
	if got := engine.ClassifySeverity(revalidated); got != severity {
		t.Fatalf("severity changed on round trip: %s vs %s", got, severity)
	}
	if got, err := engine.ResolveType(revalidated); err != nil || got != telemetryType {
		t.Fatalf("type changed on round trip: %s vs %s (%v)", got, telemetryType, err)
	}
}
