package engine

import (
	"strings"

	"safecar-edge/internal/model"
)

// fieldRange is the inclusive physical/operational range for one sensor field.
type fieldRange struct {
	Field string
	Min   float64
	Max   float64
	Value func(model.RawReading) *float64
}

// validRanges lists every rangeable field. The validator walks this table in
// order and fails on the first present field outside its range. Cabin
// temperature is capped at the cabin sensor's reporting bound (-40..80);
// engine temperature follows the LM35 bound (-55..150), wide enough to
// observe an overheat.
var validRanges = []fieldRange{
	{Field: "cabinTemperature", Min: -40, Max: 80, Value: func(r model.RawReading) *float64 { return r.CabinTempC }},
	{Field: "cabinHumidity", Min: 0, Max: 100, Value: func(r model.RawReading) *float64 { return r.CabinHumidityPct }},
	{Field: "engineTemperature", Min: -55, Max: 150, Value: func(r model.RawReading) *float64 { return r.EngineTempC }},
	{Field: "engineHumidity", Min: 0, Max: 100, Value: func(r model.RawReading) *float64 { return r.EngineHumidityPct }},
	{Field: "gasConcentration", Min: 0, Max: 10000, Value: func(r model.RawReading) *float64 { return r.GasPpm }},
	{Field: "electricalCurrent", Min: 0, Max: 5, Value: func(r model.RawReading) *float64 { return r.CurrentA }},
	{Field: "latitude", Min: -90, Max: 90, Value: func(r model.RawReading) *float64 { return r.Latitude }},
	{Field: "longitude", Min: -180, Max: 180, Value: func(r model.RawReading) *float64 { return r.Longitude }},
}

// Validate checks every present field of the reading against its valid
// range. It is atomic: either every present field passes and a
// ValidatedReading is returned, or the first violation is reported and
// nothing is constructed. Absent fields are not checked and never defaulted.
func Validate(r model.RawReading) (model.ValidatedReading, error) {
	if !r.HasMeasurement() {
		return model.ValidatedReading{}, &IncompleteReadingError{Reason: "no sensor value present"}
	}
	if (r.GasType == nil) != (r.GasPpm == nil) {
		return model.ValidatedReading{}, &IncompleteReadingError{Reason: "gas type and concentration must be supplied together"}
	}
	if (r.Latitude == nil) != (r.Longitude == nil) {
		return model.ValidatedReading{}, &IncompleteReadingError{Reason: "latitude and longitude must be supplied together"}
	}
	if r.GasType != nil {
		if !supportedGas(*r.GasType) {
			return model.ValidatedReading{}, &UnsupportedGasError{GasType: string(*r.GasType)}
		}
	}
	for _, fr := range validRanges {
		v := fr.Value(r)
		if v == nil {
			continue
		}
		if *v < fr.Min || *v > fr.Max {
			return model.ValidatedReading{}, &OutOfRangeError{Field: fr.Field, Value: *v, Min: fr.Min, Max: fr.Max}
		}
	}
	return model.ValidatedReading{RawReading: r}, nil
}

func supportedGas(g model.GasType) bool {
	n := model.GasType(strings.ToLower(strings.TrimSpace(string(g))))
	for _, s := range model.SupportedGasTypes {
		if n == s {
			return true
		}
	}
	return false
}
