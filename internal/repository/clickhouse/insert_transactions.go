package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/goodnatureofminers/blockledger/internal/model"
)

const insertTransactionsQuery = `
INSERT INTO ledger_transactions (
	chain_id,
	tx_id,
	block_height,
	block_hash,
	position,
	sender,
	receiver,
	amount,
	timestamp,
	signature
) VALUES`

// InsertTransactions stores transaction rows in ClickHouse.
func (r *Repository) InsertTransactions(ctx context.Context, txs []model.Transaction) (err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("insert_transactions", err, start)
	}()

	if len(txs) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, insertTransactionsQuery)
	if err != nil {
		return fmt.Errorf("prepare transactions batch for chain %s: %w", firstChainID(txs), err)
	}

	for _, tx := range txs {
		if err = batch.Append(
			tx.ChainID,
			tx.TxID,
			tx.BlockHeight,
			tx.BlockHash,
			tx.Position,
			tx.Sender,
			tx.Receiver,
			tx.Amount,
			tx.Timestamp,
			tx.Signature,
		); err != nil {
			return fmt.Errorf("append transaction %s: %w", tx.TxID, err)
		}
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("insert transactions: %w", err)
	}
	return nil
}
