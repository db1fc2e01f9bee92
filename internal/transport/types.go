package transport

import (
	"context"
	"time"

	"github.com/goodnatureofminers/blockledger/internal/ledger"
	"github.com/goodnatureofminers/blockledger/internal/model"
	"github.com/goodnatureofminers/blockledger/internal/service"
)

type (
	Ledger interface {
		OpenEntity(address ledger.Address, balance ledger.Amount, publicKey, privateKey string, opts ...ledger.EntityOption) (service.EntitySnapshot, error)
		Entity(address ledger.Address) (service.EntitySnapshot, error)
		Addresses() []ledger.Address
		TotalSupply() ledger.Amount
		Transfer(ctx context.Context, from, to ledger.Address, amount ledger.Amount) (ledger.Transaction, error)
		Pending() []ledger.Transaction
		Seal(ctx context.Context) (uint64, *ledger.Block, error)
		Latest() (uint64, ledger.Block)
		Block(height uint64) (ledger.Block, bool)
		Validate(ctx context.Context) error
		SealedHistory(ctx context.Context, address ledger.Address, limit uint64) ([]model.Transaction, error)
		ChainID() string
	}
	Metrics interface {
		ObserveRequest(route string, code int, started time.Time)
	}
)
