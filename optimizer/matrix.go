package optimizer

import "time"

// BuildMatrix zips the aligned import/export rates, PV power, load power
// and nearest-neighbour temperature into the 288-row forecast matrix (C4).
// No numerical transformation beyond assembly happens here.
func BuildMatrix(start time.Time, importRate, exportRate, pvKw, loadKw [SlotsPerDay]float64, weather []WeatherSample) [SlotsPerDay]ForecastRow {
	var matrix [SlotsPerDay]ForecastRow

	for slot := 0; slot < SlotsPerDay; slot++ {
		periodStart := start.Add(time.Duration(slot) * SlotDuration)
		row := ForecastRow{
			SlotIndex:   slot,
			PeriodStart: periodStart,
			PeriodEnd:   periodStart.Add(SlotDuration),
			ImportRateC: importRate[slot],
			ExportRateC: exportRate[slot],
			PVKw:        pvKw[slot],
			LoadKw:      loadKw[slot],
		}
		if t := nearestTemperature(weather, periodStart.Add(SlotDuration/2)); t != nil {
			row.TempC = t
		}
		matrix[slot] = row
	}
	return matrix
}

func nearestTemperature(weather []WeatherSample, at time.Time) *float64 {
	if len(weather) == 0 {
		return nil
	}
	best := weather[0]
	bestDiff := absDuration(best.Time.Sub(at))
	for _, w := range weather[1:] {
		if d := absDuration(w.Time.Sub(at)); d < bestDiff {
			best, bestDiff = w, d
		}
	}
	temp := best.TempC
	return &temp
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
