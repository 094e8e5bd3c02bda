// Command batteryd runs the residential battery dispatch optimizer:
// tariff, PV and load forecasts in, a solved charge/discharge policy out,
// on a fixed tick cadence.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devskill-org/battery-optimizer/config"
	"github.com/devskill-org/battery-optimizer/diagnostics"
	"github.com/devskill-org/battery-optimizer/dispatcher"
	"github.com/devskill-org/battery-optimizer/hardware"
	"github.com/devskill-org/battery-optimizer/meteo"
	"github.com/devskill-org/battery-optimizer/optimizer"
	"github.com/devskill-org/battery-optimizer/persistence"
	"github.com/devskill-org/battery-optimizer/providers"
	"github.com/devskill-org/battery-optimizer/sigenergy"
)

func main() {
	var (
		configFile = flag.String("config", "config.json", "Configuration file path")
		info       = flag.Bool("info", false, "Show plant information and exit")
		help       = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Println("Error loading configuration:", err)
		os.Exit(1)
	}

	if *info {
		if cfg.PlantModbusAddress == "" {
			fmt.Println("plant_modbus_address not configured")
			os.Exit(1)
		}
		if err := sigenergy.ShowPlantInfo(cfg.PlantModbusAddress); err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		return
	}

	logger := log.New(os.Stdout, "[BATTERYD] ", log.LstdFlags)
	logger.Printf("Starting battery optimizer: capacity=%.1fkWh tick=%s", cfg.Battery.CapacityKwh, cfg.TickInterval)
	if cfg.DryRun {
		logger.Printf("Mode: DRY-RUN (hardware hooks disabled)")
	}

	loc, err := time.LoadLocation(cfg.Location)
	if err != nil {
		logger.Printf("Unknown location %q, defaulting to UTC: %v", cfg.Location, err)
		loc = time.UTC
	}

	tariff := &providers.EntsoeTariffProvider{
		SecurityToken:      cfg.SecurityToken,
		URLFormat:          cfg.UrlFormat,
		Location:           loc,
		ImportOperatorFeeC: cfg.ImportPriceOperatorFee,
		ImportDeliveryFeeC: cfg.ImportPriceDeliveryFee,
		ExportOperatorFeeC: cfg.ExportPriceOperatorFee,
	}

	weather := providers.NewMeteoWeatherProvider(cfg.UserAgent, meteo.Location{
		Latitude:  cfg.Latitude,
		Longitude: cfg.Longitude,
	}, cfg.WeatherCacheTTL)

	pv := &providers.SolarPVProvider{
		Latitude:    cfg.Latitude,
		Longitude:   cfg.Longitude,
		PeakPowerKw: cfg.PeakPowerKw,
		Weather:     weather,
	}

	var store *persistence.PolicyStore
	var history providers.HistoryProvider
	if cfg.PostgresConnString != "" {
		store, err = persistence.Open(cfg.PostgresConnString, logger)
		if err != nil {
			logger.Printf("Persistence disabled: %v", err)
		} else {
			defer store.Close()
			history = persistence.NewHistoryStore(store)
		}
	}

	var hooks providers.HookExecutor
	if cfg.PlantModbusAddress != "" && !cfg.DryRun {
		client, err := sigenergy.NewTCPClient(cfg.PlantModbusAddress, sigenergy.PlantAddress)
		if err != nil {
			logger.Printf("Hardware hooks disabled, could not connect to plant: %v", err)
		} else {
			hooks = hardware.NewSigenergyHooks(client)
		}
	}

	diag := diagnostics.NewServer(cfg.DiagnosticsPort)
	if diag != nil {
		if err := diag.Start(); err != nil {
			logger.Printf("Diagnostics server failed to start: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := tariff.Refresh(ctx); err != nil {
		logger.Printf("Initial tariff refresh failed: %v", err)
	}

	solve := buildSolveFunc(logger, cfg, tariff, pv, weather, history)

	var lastState optimizer.LogicalState
	onResult := func(tick time.Time, action optimizer.Action, policy optimizer.Policy, err error) {
		if err != nil {
			logger.Printf("Solve for tick %s failed: %v", tick.Format(time.RFC3339), err)
			return
		}
		logger.Printf("Tick %s: state=%s limit=%.2fkW cost=%.2fc degraded=%v",
			tick.Format(time.RFC3339), action.State, action.LimitKw, policy.CostC, policy.Degraded)

		applyAction(ctx, logger, hooks, lastState, action)
		lastState = action.State

		diag.Publish(diagnostics.Snapshot{
			Timestamp:      tick,
			State:          string(action.State),
			Reason:         "tick",
			SoCPct:         firstOrZero(policy.SoC),
			BatteryPowerKw: action.LimitKw,
			Policy:         &policy,
			Degraded:       policy.Degraded,
		})

		if store != nil {
			go func() {
				saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := store.SavePolicy(saveCtx, tick, nil, policy); err != nil {
					logger.Printf("Failed to persist policy: %v", err)
				}
			}()
		}
	}

	d := dispatcher.New(solve, onResult, cfg.SolveTimeout, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go d.Run(ctx, cfg.TickInterval)

	logger.Printf("Dispatcher started. Press Ctrl+C to stop...")
	<-sigChan
	logger.Printf("Shutdown signal received, stopping...")

	cancel()
	d.Stop()
	if diag != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		diag.Stop(shutdownCtx)
	}
	logger.Printf("Stopped.")
}

// buildSolveFunc closes over the providers and runs the full C1-C7
// pipeline for one tick: align, predict, build, compress, solve, map.
func buildSolveFunc(
	logger *log.Logger,
	cfg *config.Config,
	tariff *providers.EntsoeTariffProvider,
	pv *providers.SolarPVProvider,
	weather *providers.MeteoWeatherProvider,
	history providers.HistoryProvider,
) dispatcher.SolveFunc {
	return func(ctx context.Context, tick time.Time) (optimizer.Action, optimizer.Policy, error) {
		horizon := optimizer.SlotsPerDay * optimizer.SlotDuration

		if err := tariff.Refresh(ctx); err != nil {
			logger.Printf("Tariff refresh failed, reusing last document: %v", err)
		}

		importIntervals, err := tariff.ForecastImport(ctx, tick, horizon)
		if err != nil {
			return optimizer.Action{}, optimizer.Policy{}, fmt.Errorf("forecast import: %w", err)
		}
		exportIntervals, err := tariff.ForecastExport(ctx, tick, horizon)
		if err != nil {
			return optimizer.Action{}, optimizer.Policy{}, fmt.Errorf("forecast export: %w", err)
		}

		importRate, err := optimizer.AlignTariff(importIntervals, tick)
		if err != nil {
			return optimizer.Action{}, optimizer.Policy{}, err
		}
		exportRate, err := optimizer.AlignTariff(exportIntervals, tick)
		if err != nil {
			return optimizer.Action{}, optimizer.Policy{}, err
		}

		pvEstimates, err := pv.ForecastPV(ctx, tick, horizon)
		if err != nil {
			return optimizer.Action{}, optimizer.Policy{}, fmt.Errorf("forecast pv: %w", err)
		}
		pvKw := optimizer.AlignPV(pvEstimates, tick)

		weatherSamples, err := weather.ForecastTemperature(ctx, tick, horizon)
		if err != nil {
			logger.Printf("Weather forecast failed, continuing without temperature sensitivity: %v", err)
		}

		var loadKw [optimizer.SlotsPerDay]float64
		degraded := false
		if history != nil {
			samples, err := history.LoadHistory(ctx, cfg.LoadEntityID, tick, cfg.HistoryLookback)
			if err != nil {
				logger.Printf("Load history unavailable: %v", err)
				degraded = true
			} else {
				var weatherBySlot [optimizer.SlotsPerDay]*float64
				loadKw, degraded, err = optimizer.PredictLoad(samples, tick, weatherBySlot, optimizer.PredictorConfig{})
				if err != nil {
					logger.Printf("Load prediction degraded: %v", err)
				}
			}
		} else {
			degraded = true
		}

		matrix := optimizer.BuildMatrix(tick, importRate, exportRate, pvKw, loadKw, weatherSamples)
		blocks := optimizer.CompressBlocks(matrix)

		// Real deployments read current SoC from the plant's telemetry; absent
		// a live reading here, start from the configured minimum so the solve
		// still produces a usable (conservative) policy.
		initialSoc := cfg.Battery.SocMinPct

		policy, err := optimizer.Solve(ctx, initialSoc, blocks, cfg.Battery)
		if err != nil {
			return optimizer.Action{}, optimizer.Policy{}, fmt.Errorf("solve: %w", err)
		}
		policy.Degraded = policy.Degraded || degraded

		action := optimizer.MapAction(policy, blocks, cfg.Battery)
		return action, policy, nil
	}
}

// applyAction invokes the hardware hooks for a state transition only,
// matching the deduplicating-executor contract spec.md §6 names.
func applyAction(ctx context.Context, logger *log.Logger, hooks providers.HookExecutor, last optimizer.LogicalState, action optimizer.Action) {
	if hooks == nil || last == action.State {
		return
	}

	switch last {
	case optimizer.StateChargeGrid, optimizer.StateChargeSolar:
		if err := hooks.ChargeStop(ctx); err != nil {
			logger.Printf("ChargeStop failed: %v", err)
		}
	case optimizer.StateDischargeHome:
		if err := hooks.DischargeStop(ctx); err != nil {
			logger.Printf("DischargeStop failed: %v", err)
		}
	}

	switch action.State {
	case optimizer.StateChargeGrid, optimizer.StateChargeSolar:
		if err := hooks.ChargeStart(ctx, action.LimitKw); err != nil {
			logger.Printf("ChargeStart failed: %v", err)
		}
	case optimizer.StateDischargeHome:
		if err := hooks.DischargeStart(ctx, action.LimitKw); err != nil {
			logger.Printf("DischargeStart failed: %v", err)
		}
	}
}

func firstOrZero(soc []float64) float64 {
	if len(soc) == 0 {
		return 0
	}
	return soc[0]
}

func showHelp() {
	fmt.Println("batteryd - residential battery dispatch optimizer")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Combines day-ahead dynamic tariffs, PV forecasts, and predicted load")
	fmt.Println("  into a dynamic-programming-optimized battery charge/discharge policy,")
	fmt.Println("  re-solved on a fixed tick cadence and dispatched to hardware hooks.")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  batteryd [OPTIONS]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  batteryd --config=config.json")
	fmt.Println("  batteryd -info")
}
