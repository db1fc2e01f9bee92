package ledger

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/blockledger/internal/clock"
)

// Block seals an ordered list of transactions under a content hash linked to
// the previous block. Blocks are not modified after NewBlock returns.
type Block struct {
	Hash         string
	PreviousHash string
	Transactions []Transaction
	Timestamp    uint32
	// Nonce is reserved for proof of work and is always zero for now.
	Nonce uint32
}

// NewBlock stamps, hashes and returns a block over a copy of txs.
func NewBlock(txs []Transaction, previousHash string, clk clock.Clock) *Block {
	b := &Block{
		PreviousHash: previousHash,
		Transactions: append([]Transaction(nil), txs...),
		Timestamp:    clk.Now(),
	}
	b.Hash = HashBlock(b.PreviousHash, b.Timestamp, b.Nonce, b.Transactions)
	return b
}

// HashBlock returns the lowercase hex sha256 of
//
//	previousHash || timestamp || nonce || payload(tx0) "," payload(tx1) "," ...
//
// with integers in base 10 and payloads as in Transaction.Payload.
func HashBlock(previousHash string, timestamp, nonce uint32, txs []Transaction) string {
	buf := make([]byte, 0, len(previousHash)+20+len(txs)*96)
	buf = append(buf, previousHash...)
	buf = strconv.AppendUint(buf, uint64(timestamp), 10)
	buf = strconv.AppendUint(buf, uint64(nonce), 10)
	for i, tx := range txs {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = tx.appendPayload(buf)
	}
	return hex.EncodeToString(chainhash.HashB(buf))
}

// CalculateHash recomputes the hash from the stored fields.
func (b *Block) CalculateHash() string {
	return HashBlock(b.PreviousHash, b.Timestamp, b.Nonce, b.Transactions)
}

// Verify reports ErrHashMismatch when the stored hash is stale.
func (b *Block) Verify() error {
	if got := b.CalculateHash(); got != b.Hash {
		return fmt.Errorf("%w: stored %s, calculated %s", ErrHashMismatch, b.Hash, got)
	}
	return nil
}

// IsGenesis reports whether the block carries the genesis sentinel.
func (b *Block) IsGenesis() bool {
	return b.PreviousHash == GenesisPreviousHash
}
