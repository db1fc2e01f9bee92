package service

import (
	"context"
	"fmt"
	"time"

	"github.com/goodnatureofminers/blockledger/internal/ledger"
	"github.com/goodnatureofminers/blockledger/internal/model"
	"github.com/goodnatureofminers/blockledger/pkg/safe"
	"go.uber.org/zap"
)

// Seal moves up to MaxBlockTransactions pending transactions into a new block
// and hands it to the block writer, returning the height it was sealed at.
// The block is nil when nothing is pending. A write failure is reported
// alongside the block, which stays on the chain.
func (s *LedgerService) Seal(ctx context.Context) (uint64, *ledger.Block, error) {
	s.chainMu.Lock()
	defer s.chainMu.Unlock()

	if len(s.pending) == 0 {
		return 0, nil, nil
	}

	started := time.Now()
	if err := ctx.Err(); err != nil {
		s.metrics.ObserveSeal(err, 0, started)
		return 0, nil, err
	}

	n := min(len(s.pending), s.cfg.MaxBlockTransactions)
	block := s.chain.AddBlock(s.pending[:n])
	s.pending = append([]ledger.Transaction(nil), s.pending[n:]...)
	height := uint64(s.chain.Len() - 1)

	s.metrics.SetPending(len(s.pending))
	s.metrics.SetHeight(height)

	// Once on the chain the block must reach the writer even if the caller goes away.
	if err := s.write(context.WithoutCancel(ctx), height, block); err != nil {
		s.metrics.ObserveSeal(err, n, started)
		s.logger.Error("sealed block not persisted", zap.Uint64("height", height), zap.String("hash", block.Hash), zap.Error(err))
		return height, block, err
	}
	s.metrics.ObserveSeal(nil, n, started)

	s.logger.Info("block sealed",
		zap.Uint64("height", height),
		zap.String("hash", block.Hash),
		zap.Int("transactions", n),
		zap.Int("pending", len(s.pending)),
	)
	return height, block, nil
}

// Latest returns the tip of the chain and its height.
func (s *LedgerService) Latest() (uint64, ledger.Block) {
	s.chainMu.Lock()
	defer s.chainMu.Unlock()
	return uint64(s.chain.Len() - 1), *s.chain.Latest()
}

// Block returns the block at height.
func (s *LedgerService) Block(height uint64) (ledger.Block, bool) {
	s.chainMu.Lock()
	defer s.chainMu.Unlock()
	b, ok := s.chain.Block(height)
	if !ok {
		return ledger.Block{}, false
	}
	return *b, true
}

// Validate checks the whole chain. The chain lock is only held to copy the
// block list; hashes are verified concurrently outside it.
func (s *LedgerService) Validate(ctx context.Context) (err error) {
	started := time.Now()
	defer func() {
		s.metrics.ObserveValidate(err, started)
	}()

	s.chainMu.Lock()
	blocks := s.chain.Blocks()
	s.chainMu.Unlock()

	if err = ledger.ValidateBlocks(ctx, blocks, s.cfg.ValidateWorkers); err != nil {
		s.logger.Error("chain validation failed", zap.Int("blocks", len(blocks)), zap.Error(err))
		return fmt.Errorf("validate chain: %w", err)
	}
	return nil
}

// Run seals pending transactions every SealInterval until ctx is canceled.
// Transactions still pending at shutdown are sealed into a final block.
func (s *LedgerService) Run(ctx context.Context) error {
	// The writer outlives ctx so that Stop flushes the final block.
	s.writer.Start(context.WithoutCancel(ctx))
	defer s.writer.Stop()

	s.chainMu.Lock()
	genesis, _ := s.chain.Block(0)
	err := s.write(ctx, 0, genesis)
	s.chainMu.Unlock()
	if err != nil {
		return fmt.Errorf("write genesis: %w", err)
	}

	for {
		if err := s.sleep(ctx, s.cfg.SealInterval); err != nil {
			s.sealOnShutdown(context.WithoutCancel(ctx))
			return err
		}
		if err := s.run(ctx); err != nil {
			s.logger.Warn("seal iteration failed, backing off", zap.Error(err), zap.Duration("sleep", sleepDuration))
			if sleepErr := s.sleep(ctx, sleepDuration); sleepErr != nil {
				s.sealOnShutdown(context.WithoutCancel(ctx))
				return sleepErr
			}
		}
	}
}

func (s *LedgerService) run(ctx context.Context) error {
	for {
		_, block, err := s.Seal(ctx)
		if err != nil {
			return err
		}
		if block == nil || s.pendingCount() == 0 {
			return nil
		}
	}
}

func (s *LedgerService) pendingCount() int {
	s.chainMu.Lock()
	defer s.chainMu.Unlock()
	return len(s.pending)
}

func (s *LedgerService) sealOnShutdown(ctx context.Context) {
	if err := s.run(ctx); err != nil {
		s.logger.Error("final seal failed", zap.Error(err))
	}
}

// write must be called with chainMu held so blocks reach the writer in height order.
func (s *LedgerService) write(ctx context.Context, height uint64, block *ledger.Block) error {
	insert, err := toInsertBlock(s.chainID, height, block)
	if err != nil {
		return fmt.Errorf("convert block %d: %w", height, err)
	}
	if err = s.writer.WriteBlock(ctx, insert); err != nil {
		return fmt.Errorf("write block %d: %w", height, err)
	}
	return nil
}

func toInsertBlock(chainID string, height uint64, b *ledger.Block) (model.InsertBlock, error) {
	txCount, err := safe.Uint32(len(b.Transactions))
	if err != nil {
		return model.InsertBlock{}, fmt.Errorf("tx count: %w", err)
	}

	txs := make([]model.Transaction, 0, len(b.Transactions))
	for i, tx := range b.Transactions {
		position, err := safe.Uint32(i)
		if err != nil {
			return model.InsertBlock{}, fmt.Errorf("tx position: %w", err)
		}
		txs = append(txs, model.Transaction{
			ChainID:     chainID,
			TxID:        tx.ID(),
			BlockHeight: height,
			BlockHash:   b.Hash,
			Position:    position,
			Sender:      tx.Sender.String(),
			Receiver:    tx.Receiver.String(),
			Amount:      int64(tx.Amount),
			Timestamp:   unixTime(tx.Timestamp),
			Signature:   tx.Signature,
		})
	}

	return model.InsertBlock{
		Block: model.Block{
			ChainID:      chainID,
			Height:       height,
			Hash:         b.Hash,
			PreviousHash: b.PreviousHash,
			Timestamp:    unixTime(b.Timestamp),
			Nonce:        b.Nonce,
			TxCount:      txCount,
		},
		Txs: txs,
	}, nil
}

func unixTime(ts uint32) time.Time {
	return time.Unix(int64(ts), 0).UTC()
}
