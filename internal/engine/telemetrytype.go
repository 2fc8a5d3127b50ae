package engine

import "safecar-edge/internal/model"

// engineOverheatFloor is the engine temperature at which a reading stops
// being a plain temperature signal and becomes an overheat event. It equals
// the lower bound of the engine temperature WARNING band.
const engineOverheatFloor = 90.0

// typeRule pairs a predicate with the telemetry type it selects. The rules
// are evaluated in order, first match wins; the ordering encodes safety
// criticality (most dangerous first) and is part of the contract.
type typeRule struct {
	Type  model.TelemetryType
	Match func(model.ValidatedReading) bool
}

var typeRules = []typeRule{
	{model.TypeElectricalFault, func(r model.ValidatedReading) bool {
		return r.HasCurrent()
	}},
	{model.TypeEngineOverheat, func(r model.ValidatedReading) bool {
		return r.HasEngineTemp() && *r.EngineTempC >= engineOverheatFloor
	}},
	{model.TypeCabinGasDetected, func(r model.ValidatedReading) bool {
		return r.HasGas()
	}},
	{model.TypeLocationUpdate, func(r model.ValidatedReading) bool {
		return r.HasPosition()
	}},
	{model.TypeTemperatureAnomaly, func(r model.ValidatedReading) bool {
		return r.HasCabinTemp() || r.HasEngineTemp() || r.HasCabinHumidity() || r.HasEngineHumidity()
	}},
}

// ResolveType assigns exactly one telemetry type to a validated reading.
// Deterministic for a given input. ErrUnclassifiableReading should be
// unreachable: the validator requires at least one measurement field.
func ResolveType(r model.ValidatedReading) (model.TelemetryType, error) {
	for _, rule := range typeRules {
		if rule.Match(r) {
			return rule.Type, nil
		}
	}
	return "", ErrUnclassifiableReading
}
