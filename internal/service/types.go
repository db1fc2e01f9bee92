package service

import (
	"context"
	"time"

	"github.com/goodnatureofminers/blockledger/internal/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	Repository interface {
		InsertBlocks(ctx context.Context, blocks []model.Block) error
		InsertTransactions(ctx context.Context, txs []model.Transaction) error
		AddressTransactions(ctx context.Context, chainID, address string, limit uint64) ([]model.Transaction, error)
	}
	BlockWriter interface {
		Start(ctx context.Context)
		Stop()
		WriteBlock(ctx context.Context, b model.InsertBlock) error
	}
	LedgerMetrics interface {
		ObserveTransfer(err error, started time.Time)
		ObserveSeal(err error, txs int, started time.Time)
		ObserveValidate(err error, started time.Time)
		SetPending(n int)
		SetHeight(height uint64)
	}
	BlockWriterMetrics interface {
		ObserveFlush(err error, blocks int, started time.Time)
	}
)
