// Package model defines the persisted shape of sealed ledger data.
package model

import "time"

// Block is a sealed block row. ChainID is the genesis hash of the chain the
// block belongs to, so restarts with a fresh genesis never collide.
type Block struct {
	ChainID      string
	Height       uint64
	Hash         string
	PreviousHash string
	Timestamp    time.Time
	Nonce        uint32
	TxCount      uint32
}

// Transaction is a transaction row positioned inside its block.
type Transaction struct {
	ChainID     string
	TxID        string
	BlockHeight uint64
	BlockHash   string
	Position    uint32
	Sender      string
	Receiver    string
	Amount      int64
	Timestamp   time.Time
	Signature   string
}

// InsertBlock groups a block with its transactions for batch insertion.
type InsertBlock struct {
	Block Block
	Txs   []Transaction
}
