package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goodnatureofminers/blockledger/internal/model"
	"github.com/goodnatureofminers/blockledger/pkg/batcher"
	"go.uber.org/zap"
)

const transactionFlushThreshold = 10_000

// RepositoryBlockWriter buffers sealed blocks and stores them in batches.
type RepositoryBlockWriter struct {
	repo         Repository
	metrics      BlockWriterMetrics
	logger       *zap.Logger
	blockBatcher *batcher.Batcher[model.InsertBlock]
}

// NewRepositoryBlockWriter builds a writer flushing into repo.
func NewRepositoryBlockWriter(repo Repository, metrics BlockWriterMetrics, logger *zap.Logger) (*RepositoryBlockWriter, error) {
	if repo == nil {
		return nil, errors.New("block writer repository is required")
	}
	if metrics == nil {
		return nil, errors.New("block writer metrics is required")
	}

	w := &RepositoryBlockWriter{
		repo:    repo,
		metrics: metrics,
		logger:  logger,
	}

	b, err := batcher.New[model.InsertBlock](
		logger.Named("blockBatcher"),
		w.flush,
		batcher.Options{
			FlushSize:     blockBatcherCapacity,
			FlushInterval: blockBatcherFlushPeriod,
			RPS:           blockBatcherRPS,
			DrainAttempts: blockDrainAttempts,
			DrainBackoff:  blockDrainBackoff,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("create block batcher: %w", err)
	}
	w.blockBatcher = b
	return w, nil
}

// Start begins background flushing.
func (w *RepositoryBlockWriter) Start(ctx context.Context) {
	w.blockBatcher.Start(ctx)
}

// Stop flushes queued blocks and stops.
func (w *RepositoryBlockWriter) Stop() {
	w.blockBatcher.Stop()
}

// WriteBlock queues a block for the next flush. Blocks whose flush fails stay
// queued and are retried until Stop gives up after blockDrainAttempts.
func (w *RepositoryBlockWriter) WriteBlock(ctx context.Context, b model.InsertBlock) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return w.blockBatcher.Add(ctx, b)
}

// flush stores transactions before their blocks, so a persisted block row
// always has its transactions in place. A failed flush is retried by the
// batcher with the same blocks; rows already written are collapsed by the
// ReplacingMergeTree keys.
func (w *RepositoryBlockWriter) flush(ctx context.Context, insertBlocks []model.InsertBlock) (err error) {
	started := time.Now()
	defer func() {
		w.metrics.ObserveFlush(err, len(insertBlocks), started)
	}()

	blocks := make([]model.Block, 0, len(insertBlocks))
	txs := make([]model.Transaction, 0, len(insertBlocks))

	for _, block := range insertBlocks {
		blocks = append(blocks, block.Block)
		txs = append(txs, block.Txs...)
		if len(txs) >= transactionFlushThreshold {
			if err = w.repo.InsertTransactions(ctx, txs); err != nil {
				return err
			}
			w.logger.Debug("InsertTransactions", zap.Int("count", len(txs)))
			txs = txs[:0]
		}
	}

	if err = w.repo.InsertTransactions(ctx, txs); err != nil {
		return err
	}

	return w.repo.InsertBlocks(ctx, blocks)
}

type discardBlockWriter struct{}

func (discardBlockWriter) Start(context.Context) {}

func (discardBlockWriter) Stop() {}

func (discardBlockWriter) WriteBlock(ctx context.Context, _ model.InsertBlock) error {
	return ctx.Err()
}
