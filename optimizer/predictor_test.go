package optimizer

import (
	"errors"
	"testing"
	"time"
)

func TestPredictLoadReportsInsufficientHistory(t *testing.T) {
	start := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	samples := []LoadHistorySample{
		{LastChanged: start.Add(-2 * time.Hour), StateKwh: 0},
		{LastChanged: start.Add(-1 * time.Hour), StateKwh: 1},
	}

	var weather [SlotsPerDay]*float64
	_, degraded, err := PredictLoad(samples, start, weather, PredictorConfig{})
	if !degraded {
		t.Error("expected the forecast to be marked degraded")
	}
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Errorf("expected ErrInsufficientHistory, got %v", err)
	}
}

// TestPredictLoadRepairsMidnightReset verifies a negative delta (counter
// rollover) is replaced with the last valid delta instead of zero.
func TestPredictLoadRepairsMidnightReset(t *testing.T) {
	start := time.Date(2026, 1, 2, 0, 10, 0, 0, time.UTC)
	samples := []LoadHistorySample{
		{LastChanged: start.Add(-48 * time.Hour), StateKwh: 0},
		{LastChanged: start.Add(-5 * time.Minute), StateKwh: 10}, // steady climb to 10kWh
		{LastChanged: start, StateKwh: 0.1},                      // counter reset in the last 5 minutes
	}

	deltas := deltaSeries(samples, start)
	if len(deltas) < 2 {
		t.Fatal("expected at least two deltas")
	}
	last := deltas[len(deltas)-1]
	prev := deltas[len(deltas)-2]
	if last.kw != prev.kw {
		t.Errorf("expected the reset delta to be repaired to the last valid delta %.4f, got %.4f", prev.kw, last.kw)
	}
}

func TestPredictLoadAppliesTemperatureSensitivity(t *testing.T) {
	start := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)
	var samples []LoadHistorySample
	for d := 5 * 24; d >= 0; d-- {
		ts := start.Add(-time.Duration(d) * time.Hour)
		samples = append(samples, LoadHistorySample{LastChanged: ts, StateKwh: float64(120*24-d) * 0.05})
	}

	var weather [SlotsPerDay]*float64
	hot := 30.0
	weather[0] = &hot

	cfg := PredictorConfig{TempSensitivity: 0.1, TempBaselineC: 20}
	withTemp, _, err := PredictLoad(samples, start, weather, cfg)
	if err != nil {
		t.Fatalf("PredictLoad returned error: %v", err)
	}

	baseline, _, err := PredictLoad(samples, start, weather, PredictorConfig{})
	if err != nil {
		t.Fatalf("PredictLoad returned error: %v", err)
	}

	if withTemp[0] == baseline[0] {
		t.Error("expected temperature sensitivity to change slot 0's forecast")
	}
}
