// Package providers defines the adapter contracts spec.md §6 names as
// external collaborators to the optimizer core, and the hook executor
// contract for the four hardware command interfaces.
package providers

import (
	"context"
	"time"

	"github.com/devskill-org/battery-optimizer/optimizer"
)

// TariffProvider supplies the current price plus a forecast series for
// import and export separately.
type TariffProvider interface {
	CurrentImportRateC(ctx context.Context) (float64, error)
	ForecastImport(ctx context.Context, from time.Time, horizon time.Duration) ([]optimizer.TariffInterval, error)
	ForecastExport(ctx context.Context, from time.Time, horizon time.Duration) ([]optimizer.TariffInterval, error)
}

// PVProvider supplies half-hour accumulated PV energy estimates keyed by
// period end.
type PVProvider interface {
	ForecastPV(ctx context.Context, from time.Time, horizon time.Duration) ([]optimizer.PVEstimate, error)
}

// WeatherProvider supplies an hourly-or-denser temperature series.
type WeatherProvider interface {
	ForecastTemperature(ctx context.Context, from time.Time, horizon time.Duration) ([]optimizer.WeatherSample, error)
}

// HistoryProvider returns five days of cumulative energy samples, sorted
// ascending, ending at the given instant.
type HistoryProvider interface {
	LoadHistory(ctx context.Context, entityID string, end time.Time, lookback time.Duration) ([]optimizer.LoadHistorySample, error)
}

// HookExecutor invokes the four optional hardware command hooks. Only
// state transitions should trigger an invocation; implementations are
// responsible for deduplicating against the last-issued state. If a hook
// is unconfigured the system runs observation-only for that hook.
type HookExecutor interface {
	ChargeStart(ctx context.Context, limitKw float64) error
	ChargeStop(ctx context.Context) error
	DischargeStart(ctx context.Context, limitKw float64) error
	DischargeStop(ctx context.Context) error
}
