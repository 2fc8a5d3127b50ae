package engine

import (
	"testing"

	"safecar-edge/internal/model"
)

func TestResolveTypeScenarios(t *testing.T) {
	cases := []struct {
		name    string
		reading model.RawReading
		want    model.TelemetryType
	}{
		{"engine warning temp", model.RawReading{EngineTempC: f(95), Location: model.LocationEngine}, model.TypeEngineOverheat},
		{"engine critical temp", model.RawReading{EngineTempC: f(120)}, model.TypeEngineOverheat},
		{"gas only", model.RawReading{GasType: gas(model.GasMethane), GasPpm: f(150)}, model.TypeCabinGasDetected},
		{"current beats temperature", model.RawReading{CurrentA: f(4.9), EngineTempC: f(120)}, model.TypeElectricalFault},
		{"position only", model.RawReading{Latitude: f(-12.0464), Longitude: f(-77.0428)}, model.TypeLocationUpdate},
		{"cabin temp only", model.RawReading{CabinTempC: f(22)}, model.TypeTemperatureAnomaly},
		{"engine temp below overheat floor", model.RawReading{EngineTempC: f(70)}, model.TypeTemperatureAnomaly},
		{"humidity only", model.RawReading{EngineHumidityPct: f(40)}, model.TypeTemperatureAnomaly},
		{"overheat beats gas", model.RawReading{EngineTempC: f(95), GasType: gas(model.GasLPG), GasPpm: f(500)}, model.TypeEngineOverheat},
		{"gas beats position", model.RawReading{GasType: gas(model.GasLPG), GasPpm: f(50), Latitude: f(1), Longitude: f(1)}, model.TypeCabinGasDetected},
	}
	for _, tc := range cases {
		got, err := ResolveType(validated(t, tc.reading))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestResolveTypeDeterministic(t *testing.T) {
	r := validated(t, model.RawReading{EngineTempC: f(95), GasType: gas(model.GasLPG), GasPpm: f(500)})
	first, err := ResolveType(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := ResolveType(r)
		if err != nil || again != first {
			t.Fatalf("resolution not deterministic: %s then %s (%v)", first, again, err)
		}
	}
}

func TestResolveTypeUnclassifiable(t *testing.T) {
	// Bypasses the validator on purpose: an empty reading has no matching rule.
	_, err := ResolveType(model.ValidatedReading{})
	if err != ErrUnclassifiableReading {
		t.Fatalf("expected ErrUnclassifiableReading, got %v", err)
	}
}
