package optimizer

import (
	"fmt"
	"sort"
	"time"
)

// AlignTariff expands a sequence of possibly heterogeneous-duration tariff
// intervals into a dense per-slot rate function over [start, start+24h) (C1).
// Prices are policy, not physics: a slot not covered by any interval fails
// the whole tick rather than being interpolated.
func AlignTariff(intervals []TariffInterval, start time.Time) ([SlotsPerDay]float64, error) {
	var out [SlotsPerDay]float64

	sorted := make([]TariffInterval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PeriodStart.Before(sorted[j].PeriodStart) })

	for slot := 0; slot < SlotsPerDay; slot++ {
		slotStart := start.Add(time.Duration(slot) * SlotDuration)
		mid := slotStart.Add(SlotDuration / 2)

		rate, ok := lookupRate(sorted, mid)
		if !ok {
			return out, fmt.Errorf("%w: slot %d at %s", ErrTariffGap, slot, slotStart.Format(time.RFC3339))
		}
		out[slot] = rate
	}
	return out, nil
}

func lookupRate(intervals []TariffInterval, t time.Time) (float64, bool) {
	// Linear scan is fine: intervals per day rarely exceed a few hundred,
	// and this runs once per alignment, not per candidate in the solve.
	for _, iv := range intervals {
		if !t.Before(iv.PeriodStart) && t.Before(iv.PeriodEnd) {
			return iv.PerKwh, true
		}
	}
	return 0, false
}

// AlignPV converts half-hour accumulated PV energy estimates into per-slot
// kW by uniform attribution across the six 5-minute slots each half-hour
// window spans (C2). Uniform attribution is chosen over a linear ramp
// because providers report accumulated energy, not instantaneous power.
func AlignPV(estimates []PVEstimate, start time.Time) [SlotsPerDay]float64 {
	var out [SlotsPerDay]float64

	byWindowEnd := make(map[time.Time]float64, len(estimates))
	for _, e := range estimates {
		byWindowEnd[e.PeriodEnd] = e.EnergyKwh
	}

	for slot := 0; slot < SlotsPerDay; slot++ {
		slotStart := start.Add(time.Duration(slot) * SlotDuration)
		windowEnd := snapToHalfHourEnd(slotStart)
		energy, ok := byWindowEnd[windowEnd]
		if !ok {
			continue // no estimate for this window; slot stays at zero PV
		}
		out[slot] = 2 * energy // E/6 kWh attributed to the slot == 2*E kW average
	}
	return out
}

// snapToHalfHourEnd returns the end-of-window instant (on a 30-minute
// boundary) that slotStart falls within.
func snapToHalfHourEnd(slotStart time.Time) time.Time {
	minute := slotStart.Minute()
	windowStartMinute := (minute / 30) * 30
	windowStart := time.Date(slotStart.Year(), slotStart.Month(), slotStart.Day(),
		slotStart.Hour(), windowStartMinute, 0, 0, slotStart.Location())
	return windowStart.Add(30 * time.Minute)
}
