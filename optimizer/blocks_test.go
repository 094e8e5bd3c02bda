package optimizer

import "testing"

func TestCompressBlocksMergesEqualRatesAndSign(t *testing.T) {
	var matrix [SlotsPerDay]ForecastRow
	for i := range matrix {
		matrix[i] = ForecastRow{SlotIndex: i, ImportRateC: 10, ExportRateC: 5, LoadKw: 2, PVKw: 0}
	}

	blocks := CompressBlocks(matrix)
	if len(blocks) != 1 {
		t.Fatalf("expected a single block for a uniform matrix, got %d", len(blocks))
	}
	if blocks[0].StartSlot != 0 || blocks[0].EndSlotExclusive != SlotsPerDay {
		t.Errorf("expected block spanning the whole day, got [%d,%d)", blocks[0].StartSlot, blocks[0].EndSlotExclusive)
	}
}

func TestCompressBlocksSplitsOnRateChange(t *testing.T) {
	var matrix [SlotsPerDay]ForecastRow
	for i := range matrix {
		rate := 10.0
		if i >= 144 {
			rate = 20.0
		}
		matrix[i] = ForecastRow{SlotIndex: i, ImportRateC: rate, ExportRateC: 5, LoadKw: 2, PVKw: 0}
	}

	blocks := CompressBlocks(matrix)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks on a rate change, got %d", len(blocks))
	}
	if blocks[0].EndSlotExclusive != 144 || blocks[1].StartSlot != 144 {
		t.Errorf("expected the split exactly at slot 144, got end=%d start=%d", blocks[0].EndSlotExclusive, blocks[1].StartSlot)
	}
}

func TestCompressBlocksNetZeroIsItsOwnSignClass(t *testing.T) {
	var matrix [SlotsPerDay]ForecastRow
	for i := range matrix {
		switch {
		case i < 96:
			matrix[i] = ForecastRow{SlotIndex: i, ImportRateC: 10, ExportRateC: 5, LoadKw: 2, PVKw: 0} // positive balance
		case i < 192:
			matrix[i] = ForecastRow{SlotIndex: i, ImportRateC: 10, ExportRateC: 5, LoadKw: 2, PVKw: 2} // zero balance
		default:
			matrix[i] = ForecastRow{SlotIndex: i, ImportRateC: 10, ExportRateC: 5, LoadKw: 0, PVKw: 2} // negative balance
		}
	}

	blocks := CompressBlocks(matrix)
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks (positive/zero/negative balance sign), got %d", len(blocks))
	}
	if blocks[1].BalanceSign != 0 {
		t.Errorf("expected the middle block's balance sign to be 0, got %d", blocks[1].BalanceSign)
	}
}

func TestCompressBlocksBalanceKwhIntegratesPower(t *testing.T) {
	var matrix [SlotsPerDay]ForecastRow
	for i := range matrix {
		matrix[i] = ForecastRow{SlotIndex: i, ImportRateC: 10, ExportRateC: 5, LoadKw: 12, PVKw: 0}
	}

	blocks := CompressBlocks(matrix)
	if len(blocks) != 1 {
		t.Fatalf("expected a single block, got %d", len(blocks))
	}
	// 12kW load for 24h = 288 kWh.
	if got := blocks[0].BalanceKwh; got < 287.9 || got > 288.1 {
		t.Errorf("expected ~288 kWh balance, got %.2f", got)
	}
}
