package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/goodnatureofminers/blockledger/internal/model"
)

const addressTransactionsQuery = `
SELECT chain_id, tx_id, block_height, block_hash, position, sender, receiver, amount, timestamp, signature
FROM ledger_transactions FINAL
WHERE chain_id = ? AND (sender = ? OR receiver = ?)
ORDER BY block_height, position
LIMIT ?`

// AddressTransactions returns up to limit sealed transactions touching address, oldest first.
func (r *Repository) AddressTransactions(ctx context.Context, chainID, address string, limit uint64) (out []model.Transaction, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("address_transactions", err, start)
	}()

	rows, err := r.conn.Query(ctx, addressTransactionsQuery, chainID, address, address, limit)
	if err != nil {
		return nil, fmt.Errorf("query address transactions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var tx model.Transaction
		if err = rows.Scan(
			&tx.ChainID,
			&tx.TxID,
			&tx.BlockHeight,
			&tx.BlockHash,
			&tx.Position,
			&tx.Sender,
			&tx.Receiver,
			&tx.Amount,
			&tx.Timestamp,
			&tx.Signature,
		); err != nil {
			return nil, fmt.Errorf("scan address transaction: %w", err)
		}
		out = append(out, tx)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate address transactions: %w", err)
	}
	return out, nil
}
