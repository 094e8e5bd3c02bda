package optimizer

import (
	"errors"
	"testing"
	"time"
)

func TestAlignTariffFillsEverySlot(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	intervals := []TariffInterval{
		{PeriodStart: start, PeriodEnd: start.Add(24 * time.Hour), PerKwh: 12.5},
	}

	rates, err := AlignTariff(intervals, start)
	if err != nil {
		t.Fatalf("AlignTariff returned error: %v", err)
	}
	for i, r := range rates {
		if r != 12.5 {
			t.Fatalf("slot %d: expected 12.5, got %.2f", i, r)
		}
	}
}

func TestAlignTariffReportsGap(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	intervals := []TariffInterval{
		{PeriodStart: start, PeriodEnd: start.Add(12 * time.Hour), PerKwh: 12.5},
	}

	_, err := AlignTariff(intervals, start)
	if !errors.Is(err, ErrTariffGap) {
		t.Fatalf("expected ErrTariffGap, got %v", err)
	}
}

func TestAlignPVAttributesEnergyAcrossSlots(t *testing.T) {
	start := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	estimates := []PVEstimate{
		{PeriodEnd: start.Add(30 * time.Minute), EnergyKwh: 3.0},
	}

	pvKw := AlignPV(estimates, start)
	for slot := 0; slot < 6; slot++ {
		if got := pvKw[slot]; got != 6.0 {
			t.Errorf("slot %d: expected 6.0kW (2*3), got %.2f", slot, got)
		}
	}
	if pvKw[6] != 0 {
		t.Errorf("slot 6 (outside the estimate's window): expected 0, got %.2f", pvKw[6])
	}
}
