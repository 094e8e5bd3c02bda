package optimizer

import "math"

// PowerThresholdKw suppresses chatter around zero battery power target.
const PowerThresholdKw = 0.05 // 50 W

// LogicalState is the advisory dispatch state handed to the hardware layer.
type LogicalState string

const (
	StateChargeGrid    LogicalState = "CHARGE_GRID"
	StateChargeSolar   LogicalState = "CHARGE_SOLAR"
	StateDischargeHome LogicalState = "DISCHARGE_HOME"
	StatePreserve      LogicalState = "PRESERVE"
	StateIdle          LogicalState = "IDLE"
)

// Action is the first-tick decision produced from a solved policy (C7).
type Action struct {
	State   LogicalState
	LimitKw float64
}

// MapAction derives the logical state and power limit for the hardware
// layer from the first block's initial/target SoC, its duration and
// balance, and the battery parameters. policy and blocks must both be
// non-empty and describe the same horizon.
func MapAction(policy Policy, blocks []Block, params BatteryParameters) Action {
	if len(policy.SoC) < 2 || len(blocks) == 0 {
		return Action{State: StateIdle}
	}

	block0 := blocks[0]
	batteryKwTarget := (policy.SoC[1] - policy.SoC[0]) / 100 * params.CapacityKwh / block0.DurationH

	switch {
	case batteryKwTarget > PowerThresholdKw:
		limit := math.Min(batteryKwTarget, math.Min(params.MaxChargeKw, params.InverterLimitKw))
		if block0.BalanceKwh < 0 {
			// Net PV excess over the block: solar alone can plausibly cover
			// the charge, so route it as CHARGE_SOLAR.
			return Action{State: StateChargeSolar, LimitKw: limit}
		}
		return Action{State: StateChargeGrid, LimitKw: limit}

	case batteryKwTarget < -PowerThresholdKw:
		limit := math.Min(-batteryKwTarget, params.MaxDischargeKw)
		return Action{State: StateDischargeHome, LimitKw: limit}

	default:
		if upcomingChargeWithinHour(policy, blocks) {
			return Action{State: StatePreserve}
		}
		return Action{State: StateIdle}
	}
}

// upcomingChargeWithinHour reports whether any block boundary within the
// next hour targets a SoC above the current one.
func upcomingChargeWithinHour(policy Policy, blocks []Block) bool {
	var elapsed float64
	for b := 0; b < len(blocks) && elapsed < 1.0; b++ {
		elapsed += blocks[b].DurationH
		if b+1 < len(policy.SoC) && policy.SoC[b+1] > policy.SoC[0] {
			return true
		}
	}
	return false
}
