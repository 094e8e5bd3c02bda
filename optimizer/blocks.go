package optimizer

// CompressBlocks collapses contiguous matrix rows sharing equal import
// price, equal export price and the same balance sign into blocks (C5).
// A slot whose net balance is exactly zero is its own sign class, neither
// charging nor discharging territory, so it never merges into a
// charge-favouring or discharge-favouring neighbour.
func CompressBlocks(matrix [SlotsPerDay]ForecastRow) []Block {
	blocks := make([]Block, 0, 32)

	start := 0
	for start < SlotsPerDay {
		end := start + 1
		sign := signOf(matrix[start].BalanceKw())
		for end < SlotsPerDay &&
			matrix[end].ImportRateC == matrix[start].ImportRateC &&
			matrix[end].ExportRateC == matrix[start].ExportRateC &&
			signOf(matrix[end].BalanceKw()) == sign {
			end++
		}

		blocks = append(blocks, buildBlock(matrix, len(blocks), start, end, sign))
		start = end
	}

	return blocks
}

func buildBlock(matrix [SlotsPerDay]ForecastRow, index, start, end, sign int) Block {
	var balanceKwh float64
	for i := start; i < end; i++ {
		balanceKwh += matrix[i].BalanceKw() * (SlotDuration.Hours())
	}

	return Block{
		BlockIndex:       index,
		StartSlot:        start,
		EndSlotExclusive: end,
		DurationH:        float64(end-start) * SlotDuration.Hours(),
		ImportRateC:      matrix[start].ImportRateC,
		ExportRateC:      matrix[start].ExportRateC,
		BalanceKwh:       balanceKwh,
		BalanceSign:      sign,
	}
}
