package optimizer

import (
	"context"
	"math"
)

// SolveTimeout bounds a single solve; exceeding it yields ErrSolveTimeout.
const SolveTimeout = 30 // seconds, matches spec's solver budget; wired via context by callers

// socState is the dense, cache-friendly memoization cell for one
// (block_index, soc_index) pair: the minimal cost-to-go from this state and
// the index of the successor soc' that achieves it. A flat array indexed by
// block*numStates+socIndex is used instead of a map because recursion order
// is fixed and iteration order must never affect the result (determinism,
// P5).
type socState struct {
	cost     float64
	succ     int // index into the soc grid of the chosen soc'; -1 if unset
	hasValue bool
}

// Solve runs the memoized backward search over end-of-block SoC candidates
// and returns the resulting policy (C6). ctx is checked once per block
// boundary; cancellation or deadline expiry aborts the solve and returns
// ErrSolveTimeout with no policy.
func Solve(ctx context.Context, initialSocPct float64, blocks []Block, params BatteryParameters) (Policy, error) {
	if err := params.Validate(); err != nil {
		return Policy{}, err
	}

	clampedInitial := clamp(initialSocPct, params.SocMinPct, params.SocMaxPct)

	grid := buildSocGrid(params)
	numStates := len(grid)
	numBlocks := len(blocks)

	// table[b*numStates+s] is the state for block b, soc index s. b ranges
	// 0..numBlocks inclusive (numBlocks is the terminal "end of horizon"
	// block with cost 0 everywhere).
	table := make([]socState, (numBlocks+1)*numStates)
	for s := 0; s < numStates; s++ {
		table[numBlocks*numStates+s] = socState{cost: 0, succ: -1, hasValue: true}
	}

	for b := numBlocks - 1; b >= 0; b-- {
		select {
		case <-ctx.Done():
			return Policy{}, ErrSolveTimeout
		default:
		}

		block := blocks[b]
		for s := 0; s < numStates; s++ {
			best, bestSucc, ok := bestTransition(grid, s, block, params, table, (b+1)*numStates)
			if !ok {
				continue
			}
			table[b*numStates+s] = socState{cost: best, succ: bestSucc, hasValue: true}
		}
	}

	startIdx := nearestGridIndex(grid, clampedInitial)
	start := table[startIdx]
	if !start.hasValue {
		return Policy{}, ErrSolveTimeout
	}

	policy := make([]float64, numBlocks+1)
	policy[0] = grid[startIdx]
	curIdx := startIdx
	for b := 0; b < numBlocks; b++ {
		cell := table[b*numStates+curIdx]
		if cell.succ < 0 {
			// No feasible transition recorded; idle is always a candidate
			// so this should be unreachable, but stay put defensively.
			policy[b+1] = grid[curIdx]
			continue
		}
		curIdx = cell.succ
		policy[b+1] = grid[curIdx]
	}

	return Policy{SoC: policy, CostC: start.cost}, nil
}

// bestTransition evaluates every feasible soc' for block's constraints from
// soc index s, applying the tie-break rule: closest soc' to current soc
// wins; if still tied, the lower soc' wins.
func bestTransition(grid []float64, s int, block Block, params BatteryParameters, table []socState, nextBase int) (float64, int, bool) {
	soc := grid[s]
	bestCost := math.Inf(1)
	bestSucc := -1
	bestDistance := math.Inf(1)

	for sp := 0; sp < len(grid); sp++ {
		socPrime := grid[sp]
		if !feasibleCandidate(soc, socPrime, block, params) {
			continue
		}
		next := table[nextBase+sp]
		if !next.hasValue {
			continue
		}

		cost := stepCost(soc, socPrime, block, params) + next.cost
		distance := math.Abs(socPrime - soc)

		switch {
		case cost < bestCost-1e-9:
			bestCost, bestSucc, bestDistance = cost, sp, distance
		case math.Abs(cost-bestCost) <= 1e-9:
			if distance < bestDistance-1e-9 || (math.Abs(distance-bestDistance) <= 1e-9 && socPrime < grid[bestSucc]) {
				bestCost, bestSucc, bestDistance = cost, sp, distance
			}
		}
	}

	if bestSucc < 0 {
		return 0, -1, false
	}
	return bestCost, bestSucc, true
}

// feasibleCandidate implements §4.6's candidate enumeration: soc'==soc
// (idle) is always feasible; any other soc' must respect the charge or
// discharge power limit for the block's duration.
func feasibleCandidate(soc, socPrime float64, block Block, params BatteryParameters) bool {
	if socPrime == soc {
		return true
	}
	delta := (socPrime - soc) / 100 * params.CapacityKwh
	if delta >= 0 {
		return delta <= params.MaxChargeKw*block.DurationH+1e-9
	}
	return -delta <= params.MaxDischargeKw*block.DurationH+1e-9
}

// stepCost implements the unified signed step-cost formula from §4.6: the
// sign of grid_kwh alone decides which rate applies, with no further
// special-casing.
func stepCost(soc, socPrime float64, block Block, params BatteryParameters) float64 {
	batteryDeltaKwh := (socPrime - soc) / 100 * params.CapacityKwh
	gridKwh := block.BalanceKwh + batteryDeltaKwh
	if gridKwh >= 0 {
		return gridKwh * block.ImportRateC
	}
	return gridKwh * block.ExportRateC
}

// buildSocGrid enumerates the quantized SoC candidates, inclusive of both
// endpoints.
func buildSocGrid(params BatteryParameters) []float64 {
	var grid []float64
	for v := params.SocMinPct; v <= params.SocMaxPct+1e-9; v += params.SocGridPct {
		grid = append(grid, math.Round(v*1000)/1000)
	}
	return grid
}

func nearestGridIndex(grid []float64, soc float64) int {
	best := 0
	bestDiff := math.Abs(grid[0] - soc)
	for i, v := range grid[1:] {
		if d := math.Abs(v - soc); d < bestDiff {
			best, bestDiff = i+1, d
		}
	}
	return best
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
