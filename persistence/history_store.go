package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/devskill-org/battery-optimizer/optimizer"
)

// HistoryStore implements providers.HistoryProvider against the same
// metrics table the teacher's scheduler/data.go populates, reading the
// load_power column as the cumulative energy series.
type HistoryStore struct {
	store *PolicyStore
}

// NewHistoryStore shares a PolicyStore's connection.
func NewHistoryStore(store *PolicyStore) *HistoryStore {
	return &HistoryStore{store: store}
}

// LoadHistory returns cumulative load samples for entityID ending at end,
// covering the requested lookback window, ordered ascending by time.
func (h *HistoryStore) LoadHistory(ctx context.Context, entityID string, end time.Time, lookback time.Duration) ([]optimizer.LoadHistorySample, error) {
	start := end.Add(-lookback)

	rows, err := h.store.db.QueryContext(ctx, `
		SELECT timestamp, load_power
		FROM metrics
		WHERE metric_name = $1 AND timestamp BETWEEN $2 AND $3
		ORDER BY timestamp ASC
	`, entityID, start, end)
	if err != nil {
		return nil, fmt.Errorf("persistence: query load history: %w", err)
	}
	defer rows.Close()

	var samples []optimizer.LoadHistorySample
	for rows.Next() {
		var sample optimizer.LoadHistorySample
		sample.EntityID = entityID
		if err := rows.Scan(&sample.LastChanged, &sample.StateKwh); err != nil {
			return nil, fmt.Errorf("persistence: scan history row: %w", err)
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("persistence: history row iteration: %w", err)
	}

	return samples, nil
}
