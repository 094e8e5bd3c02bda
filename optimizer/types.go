// Package optimizer implements the forecast alignment, compression and
// dynamic-programming search that turn a day-ahead tariff, PV and load
// forecast into a battery dispatch policy.
package optimizer

import (
	"errors"
	"time"
)

// Sentinel errors surfaced through the diagnostic channel. None of these
// propagate past the supervisor that owns a Dispatcher.
var (
	// ErrTariffGap means a forecast slot has no covering price interval.
	// Non-recoverable for the tick; the caller should hold the previous action.
	ErrTariffGap = errors.New("optimizer: tariff gap at slot")

	// ErrInsufficientHistory means fewer than 24h of usable load history
	// remain after filtering. The predictor falls back to a flat mean and
	// the caller should mark the forecast degraded.
	ErrInsufficientHistory = errors.New("optimizer: insufficient load history")

	// ErrSolveTimeout means the DP search exceeded its budget.
	ErrSolveTimeout = errors.New("optimizer: solve timeout")

	// ErrInfeasibleInitialSoC means the measured SoC fell outside
	// [soc_min, soc_max]. Non-fatal: callers clamp into range, emit a
	// warning through the diagnostic channel, and proceed.
	ErrInfeasibleInitialSoC = errors.New("optimizer: initial SoC outside configured range")

	// ErrConfigInvalid means battery parameters are out of range. Fatal:
	// the optimizer refuses to run until reconfigured.
	ErrConfigInvalid = errors.New("optimizer: invalid battery parameters")
)

// SlotsPerDay is the number of 5-minute slots spanning 24 hours.
const SlotsPerDay = 288

// SlotDuration is the width of one forecast slot.
const SlotDuration = 5 * time.Minute

// ForecastRow is one 5-minute row of the aligned forecast matrix (C4 output).
type ForecastRow struct {
	SlotIndex   int
	PeriodStart time.Time
	PeriodEnd   time.Time
	ImportRateC float64 // cents/kWh paid for grid energy consumed
	ExportRateC float64 // cents/kWh received for grid energy produced; may be negative
	PVKw        float64
	LoadKw      float64
	TempC       *float64 // optional, used only by the load predictor's temperature sensitivity
}

// BalanceKw is load minus PV for the row, positive meaning net demand.
func (r ForecastRow) BalanceKw() float64 {
	return r.LoadKw - r.PVKw
}

// signOf returns the sign class of a balance: -1, 0 or +1.
func signOf(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// Block is one compressed interval of equal prices and constant balance
// sign (C5 output).
type Block struct {
	BlockIndex       int
	StartSlot        int
	EndSlotExclusive int
	DurationH        float64
	ImportRateC      float64
	ExportRateC      float64
	BalanceKwh       float64
	BalanceSign      int
}

// BatteryParameters are the process-wide calibration values read as an
// immutable snapshot by each solve.
type BatteryParameters struct {
	CapacityKwh     float64 // default 27.0
	MaxChargeKw     float64 // default 6.3
	MaxDischargeKw  float64 // default 6.3
	InverterLimitKw float64 // default 10.0; clamps net grid flow for the action mapper only
	SocMinPct       float64 // default 0
	SocMaxPct       float64 // default 100
	SocGridPct      float64 // discretization step of candidate end-of-block SoCs, default 5
}

// Validate enforces the ConfigInvalid error taxonomy entry: non-positive
// capacity, negative power limits, or a soc_grid_pct outside the allowed set
// are all fatal.
func (p BatteryParameters) Validate() error {
	if p.CapacityKwh <= 0 {
		return errors.Join(ErrConfigInvalid, errors.New("capacity_kwh must be positive"))
	}
	if p.MaxChargeKw < 0 || p.MaxDischargeKw < 0 {
		return errors.Join(ErrConfigInvalid, errors.New("charge/discharge power limits must be non-negative"))
	}
	if p.InverterLimitKw < 0 {
		return errors.Join(ErrConfigInvalid, errors.New("inverter_limit_kw must be non-negative"))
	}
	if p.SocMinPct < 0 || p.SocMaxPct > 100 || p.SocMinPct >= p.SocMaxPct {
		return errors.Join(ErrConfigInvalid, errors.New("soc_min_pct/soc_max_pct out of range"))
	}
	switch p.SocGridPct {
	case 1, 5, 10, 25:
	default:
		return errors.Join(ErrConfigInvalid, errors.New("soc_grid_pct must be one of 1, 5, 10, 25"))
	}
	return nil
}

// Policy is the C6 output: an ordered sequence of length B+1 of SoC
// percentages. Policy[0] is the current measured SoC, clamped into
// [SocMinPct, SocMaxPct] and snapped to the nearest SoC grid point, so it
// can differ from the raw measurement by up to half a grid step; Policy[b]
// is the target SoC at the end of block b-1.
type Policy struct {
	SoC      []float64
	CostC    float64 // expected total cost in cents over the solved horizon
	Degraded bool
}

// LoadHistorySample is one raw meter reading consumed by the load predictor.
type LoadHistorySample struct {
	EntityID    string
	StateKwh    float64
	LastChanged time.Time
}

// TariffInterval is one raw provider-reported price interval, of
// heterogeneous duration (5 or 30 minutes in practice).
type TariffInterval struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	PerKwh      float64
}

// PVEstimate is one half-hour accumulated energy estimate keyed by the end
// of the window it covers.
type PVEstimate struct {
	PeriodEnd time.Time
	EnergyKwh float64
}

// WeatherSample is one point of a hourly-or-denser temperature series.
type WeatherSample struct {
	Time  time.Time
	TempC float64
}
