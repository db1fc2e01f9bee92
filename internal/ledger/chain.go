package ledger

import (
	"context"
	"fmt"

	"github.com/goodnatureofminers/blockledger/internal/clock"
	"github.com/goodnatureofminers/blockledger/pkg/workerpool"
)

// Chain is an append-only sequence of blocks starting at a genesis block.
type Chain struct {
	clock  clock.Clock
	blocks []*Block
}

// NewChain creates a chain holding only an empty genesis block.
func NewChain(clk clock.Clock) *Chain {
	return &Chain{
		clock:  clk,
		blocks: []*Block{NewBlock(nil, GenesisPreviousHash, clk)},
	}
}

// AddBlock seals txs into a block linked to the current tip and appends it.
func (c *Chain) AddBlock(txs []Transaction) *Block {
	b := NewBlock(txs, c.LatestHash(), c.clock)
	c.blocks = append(c.blocks, b)
	return b
}

// Latest returns the tip of the chain.
func (c *Chain) Latest() *Block {
	return c.blocks[len(c.blocks)-1]
}

// LatestHash returns the hash of the tip.
func (c *Chain) LatestHash() string {
	return c.Latest().Hash
}

// Len returns the number of blocks including genesis.
func (c *Chain) Len() int {
	return len(c.blocks)
}

// Block returns the block at height.
func (c *Chain) Block(height uint64) (*Block, bool) {
	if height >= uint64(len(c.blocks)) {
		return nil, false
	}
	return c.blocks[height], true
}

// Blocks returns the blocks in order. The slice is a copy; the blocks are shared.
func (c *Chain) Blocks() []*Block {
	return append([]*Block(nil), c.blocks...)
}

// Validate checks the genesis sentinel, every previous-hash link and every
// block hash. Hashes are recomputed on up to workers goroutines.
func (c *Chain) Validate(ctx context.Context, workers int) error {
	return ValidateBlocks(ctx, c.blocks, workers)
}

// ValidateBlocks runs the chain checks over an arbitrary block sequence.
func ValidateBlocks(ctx context.Context, blocks []*Block, workers int) error {
	if len(blocks) == 0 {
		return fmt.Errorf("%w: empty chain", ErrInvalidGenesis)
	}
	if !blocks[0].IsGenesis() {
		return fmt.Errorf("%w: previous hash %q", ErrInvalidGenesis, blocks[0].PreviousHash)
	}
	for i := 1; i < len(blocks); i++ {
		if blocks[i].PreviousHash != blocks[i-1].Hash {
			return fmt.Errorf("block %d: %w: expected %s, got %s", i, ErrBrokenLink, blocks[i-1].Hash, blocks[i].PreviousHash)
		}
	}

	heights := make([]int, len(blocks))
	for i := range heights {
		heights[i] = i
	}
	return workerpool.Process(ctx, workers, heights, func(_ context.Context, height int) error {
		if err := blocks[height].Verify(); err != nil {
			return fmt.Errorf("block %d: %w", height, err)
		}
		return nil
	})
}
