package engine

import "safecar-edge/internal/model"

// severityBand maps a half-open slice of a field's value space to a
// severity. Bounds are pointers so a band can be open on either side.
type severityBand struct {
	Above    *float64 // value > Above
	AtLeast  *float64 // value >= AtLeast
	Below    *float64 // value < Below
	AtMost   *float64 // value <= AtMost
	Severity model.Severity
}

func (b severityBand) matches(v float64) bool {
	if b.Above != nil && !(v > *b.Above) {
		return false
	}
	if b.AtLeast != nil && !(v >= *b.AtLeast) {
		return false
	}
	if b.Below != nil && !(v < *b.Below) {
		return false
	}
	if b.AtMost != nil && !(v <= *b.AtMost) {
		return false
	}
	return true
}

type fieldBands struct {
	Field string
	Value func(model.ValidatedReading) *float64
	Bands []severityBand
}

func bound(v float64) *float64 { return &v }

// severityTable drives ClassifySeverity. Humidity and GPS fields carry no
// bands: they are informational only. Adding a sensor means adding a row
// here, not new branching.
var severityTable = []fieldBands{
	{
		Field: "engineTemperature",
		Value: func(r model.ValidatedReading) *float64 { return r.EngineTempC },
		Bands: []severityBand{
			{Above: bound(110), Severity: model.SeverityCritical},
			{AtLeast: bound(90), AtMost: bound(110), Severity: model.SeverityWarning},
		},
	},
	{
		Field: "cabinTemperature",
		Value: func(r model.ValidatedReading) *float64 { return r.CabinTempC },
		Bands: []severityBand{
			{Above: bound(45), Severity: model.SeverityWarning},
			{Below: bound(0), Severity: model.SeverityWarning},
		},
	},
	{
		Field: "gasConcentration",
		Value: func(r model.ValidatedReading) *float64 { return r.GasPpm },
		Bands: []severityBand{
			{Above: bound(1000), Severity: model.SeverityCritical},
			{AtLeast: bound(300), AtMost: bound(1000), Severity: model.SeverityWarning},
		},
	},
	{
		Field: "electricalCurrent",
		Value: func(r model.ValidatedReading) *float64 { return r.CurrentA },
		Bands: []severityBand{
			{Above: bound(4.8), Severity: model.SeverityCritical},
			{Above: bound(4), Severity: model.SeverityWarning},
		},
	},
}

// ClassifySeverity returns the maximum severity triggered by any present
// field. Monotonic: a worse value on any field never lowers the result.
// Readings that trigger no band are INFO.
func ClassifySeverity(r model.ValidatedReading) model.Severity {
	severity := model.SeverityInfo
	for _, fb := range severityTable {
		v := fb.Value(r)
		if v == nil {
			continue
		}
		for _, band := range fb.Bands {
			if band.matches(*v) {
				severity = severity.Max(band.Severity)
				break
			}
		}
	}
	return severity
}
