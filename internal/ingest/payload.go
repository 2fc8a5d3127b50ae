package ingest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/encoding/json"

	"safecar-edge/internal/model"
)

// readingPayload is the JSON body posted by the ESP32 firmware. The older
// firmware sends bare temperature_celsius / humidity_percent fields; those
// are routed to the cabin or engine slot by the declared location.
type readingPayload struct {
	Location          string   `json:"location"`
	CabinTempC        *float64 `json:"cabin_temperature_celsius"`
	CabinHumidityPct  *float64 `json:"cabin_humidity_percent"`
	EngineTempC       *float64 `json:"engine_temperature_celsius"`
	EngineHumidityPct *float64 `json:"engine_humidity_percent"`
	TempC             *float64 `json:"temperature_celsius"`
	HumidityPct       *float64 `json:"humidity_percent"`
	GasType           *string  `json:"gas_type"`
	GasPpm            *float64 `json:"gas_concentration_ppm"`
	CurrentA          *float64 `json:"current_amperes"`
	Latitude          *float64 `json:"latitude"`
	Longitude         *float64 `json:"longitude"`
	Timestamp         string   `json:"timestamp"`
}

// ParseReading decodes one reading payload into a RawReading. Shape errors
// (bad JSON, unknown location, bad timestamp) are reported here; range and
// completeness checks belong to the validator.
func ParseReading(data []byte) (model.RawReading, error) {
	var p readingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return model.RawReading{}, fmt.Errorf("decode reading: %w", err)
	}
	return p.toReading()
}

func (p readingPayload) toReading() (model.RawReading, error) {
	loc, err := parseLocation(p.Location, p)
	if err != nil {
		return model.RawReading{}, err
	}
	r := model.RawReading{
		Location:          loc,
		CabinTempC:        p.CabinTempC,
		CabinHumidityPct:  p.CabinHumidityPct,
		EngineTempC:       p.EngineTempC,
		EngineHumidityPct: p.EngineHumidityPct,
		GasPpm:            p.GasPpm,
		CurrentA:          p.CurrentA,
		Latitude:          p.Latitude,
		Longitude:         p.Longitude,
	}
	if p.GasType != nil {
		g := model.GasType(strings.ToLower(strings.TrimSpace(*p.GasType)))
		r.GasType = &g
	}
	// Legacy single-sensor fields land on the side the device sits on.
	if p.TempC != nil {
		if loc == model.LocationEngine {
			if r.EngineTempC == nil {
				r.EngineTempC = p.TempC
			}
		} else if r.CabinTempC == nil {
			r.CabinTempC = p.TempC
		}
	}
	if p.HumidityPct != nil {
		if loc == model.LocationEngine {
			if r.EngineHumidityPct == nil {
				r.EngineHumidityPct = p.HumidityPct
			}
		} else if r.CabinHumidityPct == nil {
			r.CabinHumidityPct = p.HumidityPct
		}
	}
	if p.Timestamp != "" {
		ts, err := ParseTimestamp(p.Timestamp)
		if err != nil {
			return model.RawReading{}, err
		}
		r.Timestamp = ts
	}
	return r, nil
}

func parseLocation(value string, p readingPayload) (model.SensorLocation, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case string(model.LocationCabin):
		return model.LocationCabin, nil
	case string(model.LocationEngine):
		return model.LocationEngine, nil
	case "":
		if p.EngineTempC != nil || p.EngineHumidityPct != nil || p.CurrentA != nil {
			return model.LocationEngine, nil
		}
		return model.LocationCabin, nil
	default:
		return "", fmt.Errorf("unknown sensor location: %q", value)
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp accepts ISO 8601 timestamps, with or without zone. Naive
// timestamps are taken as UTC.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp format: %q, use ISO 8601", value)
}
