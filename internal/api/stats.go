package api

import "safecar-edge/internal/model"

type valueStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Count int     `json:"count"`
}

type deviceStats struct {
	DeviceID        string              `json:"device_id"`
	TotalReadings   int                 `json:"total_readings"`
	LatestReading   *model.LedgerRecord `json:"latest_reading"`
	CabinTempStats  *valueStats         `json:"cabin_temperature_stats,omitempty"`
	EngineTempStats *valueStats         `json:"engine_temperature_stats,omitempty"`
	GasStats        *valueStats         `json:"gas_stats,omitempty"`
	CurrentStats    *valueStats         `json:"current_stats,omitempty"`
}

// buildDeviceStats summarizes a device's recent readings. Quantities a
// device never reported are omitted rather than zeroed.
func buildDeviceStats(deviceID string, recent []model.LedgerRecord) deviceStats {
	stats := deviceStats{
		DeviceID:      deviceID,
		TotalReadings: len(recent),
	}
	if len(recent) == 0 {
		return stats
	}
	latest := recent[0]
	stats.LatestReading = &latest

	var cabinTemps, engineTemps, gasLevels, currents []float64
	for _, rec := range recent {
		if rec.Reading.CabinTempC != nil {
			cabinTemps = append(cabinTemps, *rec.Reading.CabinTempC)
		}
		if rec.Reading.EngineTempC != nil {
			engineTemps = append(engineTemps, *rec.Reading.EngineTempC)
		}
		if rec.Reading.GasPpm != nil {
			gasLevels = append(gasLevels, *rec.Reading.GasPpm)
		}
		if rec.Reading.CurrentA != nil {
			currents = append(currents, *rec.Reading.CurrentA)
		}
	}
	stats.CabinTempStats = statsOf(cabinTemps)
	stats.EngineTempStats = statsOf(engineTemps)
	stats.GasStats = statsOf(gasLevels)
	stats.CurrentStats = statsOf(currents)
	return stats
}

func statsOf(values []float64) *valueStats {
	if len(values) == 0 {
		return nil
	}
	min, max, sum := values[0], values[0], 0.0
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	return &valueStats{
		Min:   min,
		Max:   max,
		Avg:   sum / float64(len(values)),
		Count: len(values),
	}
}
