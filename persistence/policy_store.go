// Package persistence stores solved policies in Postgres, grounded on the
// teacher's scheduler/mpc_persistence.go transactional upsert pattern.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"

	"github.com/devskill-org/battery-optimizer/optimizer"
)

// PolicyStore persists every solved Policy and the Block plan it was
// computed against, keyed by the tick it was solved for.
type PolicyStore struct {
	db     *sql.DB
	logger *log.Logger
}

// Open connects to Postgres using a lib/pq DSN.
func Open(dsn string, logger *log.Logger) (*PolicyStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("persistence: open: %w", err)
	}
	return &PolicyStore{db: db, logger: logger}, nil
}

func (s *PolicyStore) Close() error {
	return s.db.Close()
}

// SavePolicy upserts a solved policy keyed by the tick timestamp,
// replacing any prior run for that tick.
func (s *PolicyStore) SavePolicy(ctx context.Context, tick time.Time, blocks []optimizer.Block, policy optimizer.Policy) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persistence: begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO dispatch_policies (
			tick, block_index, start_slot, end_slot, import_rate_c, export_rate_c,
			balance_kwh, soc_pct, cost_c, degraded
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tick, block_index) DO UPDATE SET
			start_slot = EXCLUDED.start_slot,
			end_slot = EXCLUDED.end_slot,
			import_rate_c = EXCLUDED.import_rate_c,
			export_rate_c = EXCLUDED.export_rate_c,
			balance_kwh = EXCLUDED.balance_kwh,
			soc_pct = EXCLUDED.soc_pct,
			cost_c = EXCLUDED.cost_c,
			degraded = EXCLUDED.degraded
	`)
	if err != nil {
		return fmt.Errorf("persistence: prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, block := range blocks {
		var socPct float64
		if i < len(policy.SoC) {
			socPct = policy.SoC[i]
		}
		_, err := stmt.ExecContext(ctx,
			tick, block.BlockIndex, block.StartSlot, block.EndSlotExclusive,
			block.ImportRateC, block.ExportRateC, block.BalanceKwh,
			socPct, policy.CostC, policy.Degraded,
		)
		if err != nil {
			return fmt.Errorf("persistence: insert block %d: %w", block.BlockIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("persistence: commit: %w", err)
	}

	s.logger.Printf("persisted policy for tick %s: %d blocks, cost %.2fc", tick.Format(time.RFC3339), len(blocks), policy.CostC)
	return nil
}

// LatestPolicy loads the most recently persisted policy for ticks at or
// after the given cutoff, mirroring the teacher's "timestamp >= now -
// CheckPriceInterval" recency window.
func (s *PolicyStore) LatestPolicy(ctx context.Context, cutoff time.Time) (optimizer.Policy, []optimizer.Block, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT block_index, start_slot, end_slot, import_rate_c, export_rate_c,
		       balance_kwh, soc_pct, cost_c, degraded
		FROM dispatch_policies
		WHERE tick = (
			SELECT tick FROM dispatch_policies WHERE tick >= $1 ORDER BY tick DESC LIMIT 1
		)
		ORDER BY block_index ASC
	`, cutoff)
	if err != nil {
		return optimizer.Policy{}, nil, fmt.Errorf("persistence: query latest policy: %w", err)
	}
	defer rows.Close()

	var blocks []optimizer.Block
	var policy optimizer.Policy
	for rows.Next() {
		var block optimizer.Block
		var socPct float64
		if err := rows.Scan(
			&block.BlockIndex, &block.StartSlot, &block.EndSlotExclusive,
			&block.ImportRateC, &block.ExportRateC, &block.BalanceKwh,
			&socPct, &policy.CostC, &policy.Degraded,
		); err != nil {
			return optimizer.Policy{}, nil, fmt.Errorf("persistence: scan row: %w", err)
		}
		blocks = append(blocks, block)
		policy.SoC = append(policy.SoC, socPct)
	}
	if err := rows.Err(); err != nil {
		return optimizer.Policy{}, nil, fmt.Errorf("persistence: row iteration: %w", err)
	}

	if len(blocks) == 0 {
		s.logger.Printf("persistence: no policy found at or after %s", cutoff.Format(time.RFC3339))
	}

	return policy, blocks, nil
}
