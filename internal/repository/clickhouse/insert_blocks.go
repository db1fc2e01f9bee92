package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/goodnatureofminers/blockledger/internal/model"
)

const insertBlocksQuery = `
INSERT INTO ledger_blocks (
	chain_id,
	height,
	hash,
	previous_hash,
	timestamp,
	nonce,
	tx_count
) VALUES`

// InsertBlocks stores block rows in ClickHouse.
func (r *Repository) InsertBlocks(ctx context.Context, blocks []model.Block) (err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("insert_blocks", err, start)
	}()

	if len(blocks) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, insertBlocksQuery)
	if err != nil {
		return fmt.Errorf("prepare blocks batch for chain %s: %w", firstChainID(blocks), err)
	}

	for _, block := range blocks {
		if err = batch.Append(
			block.ChainID,
			block.Height,
			block.Hash,
			block.PreviousHash,
			block.Timestamp,
			block.Nonce,
			block.TxCount,
		); err != nil {
			return fmt.Errorf("append block %d: %w", block.Height, err)
		}
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("insert blocks: %w", err)
	}
	return nil
}
