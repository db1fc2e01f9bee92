// Package service runs the ledger: a registry of entities safe for concurrent
// transfers, a pool of executed transactions and the sealing of that pool into
// blocks handed off for persistence.
package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/goodnatureofminers/blockledger/internal/clock"
	"github.com/goodnatureofminers/blockledger/internal/ledger"
	"github.com/goodnatureofminers/blockledger/internal/model"
	"go.uber.org/zap"
)

// Config tunes a LedgerService. Zero values fall back to defaults.
type Config struct {
	SealInterval         time.Duration
	ValidateWorkers      int
	MaxBlockTransactions int
	HistoryLimit         uint64
}

func (c Config) withDefaults() Config {
	if c.SealInterval <= 0 {
		c.SealInterval = defaultSealInterval
	}
	if c.ValidateWorkers <= 0 {
		c.ValidateWorkers = defaultValidateWorkers
	}
	if c.MaxBlockTransactions <= 0 {
		c.MaxBlockTransactions = maxBlockTransactions
	}
	if c.HistoryLimit == 0 {
		c.HistoryLimit = defaultHistoryLimit
	}
	return c
}

// EntitySnapshot is a consistent copy of an entity's public state.
type EntitySnapshot struct {
	Address   ledger.Address
	Balance   ledger.Amount
	PublicKey string
	History   []ledger.Transaction
}

type account struct {
	mu     sync.Mutex
	entity *ledger.Entity
}

func (a *account) snapshot() EntitySnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return EntitySnapshot{
		Address:   a.entity.Address(),
		Balance:   a.entity.Balance(),
		PublicKey: a.entity.PublicKey(),
		History:   a.entity.History(),
	}
}

// LedgerService serializes access to ledger entities and the chain.
//
// Each entity has its own lock. A transfer takes both locks in address order,
// so transfers between disjoint pairs run in parallel and never deadlock. The
// chain and the pending pool share one lock, always taken after entity locks.
type LedgerService struct {
	logger   *zap.Logger
	repo     Repository
	writer   BlockWriter
	metrics  LedgerMetrics
	clock    clock.Clock
	cfg      Config
	sleep    func(context.Context, time.Duration) error
	chainID  string
	mu       sync.RWMutex
	accounts map[ledger.Address]*account

	chainMu sync.Mutex
	chain   *ledger.Chain
	pending []ledger.Transaction
}

// NewLedgerService builds a LedgerService with a fresh genesis block.
// repo may be nil when persistence is disabled; writer then defaults to a
// writer that drops blocks.
func NewLedgerService(
	repo Repository,
	writer BlockWriter,
	metrics LedgerMetrics,
	clk clock.Clock,
	cfg Config,
	logger *zap.Logger,
) (*LedgerService, error) {
	if metrics == nil {
		return nil, errors.New("ledger metrics is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if clk == nil {
		clk = clock.System{}
	}
	if writer == nil {
		writer = discardBlockWriter{}
	}

	chain := ledger.NewChain(clk)
	chainID := chain.LatestHash()

	return &LedgerService{
		logger:   logger.With(zap.String("chain_id", chainID)),
		repo:     repo,
		writer:   writer,
		metrics:  metrics,
		clock:    clk,
		cfg:      cfg.withDefaults(),
		sleep:    clock.SleepWithContext,
		chainID:  chainID,
		accounts: make(map[ledger.Address]*account),
		chain:    chain,
	}, nil
}

// ChainID identifies this chain by its genesis hash.
func (s *LedgerService) ChainID() string {
	return s.chainID
}

// OpenEntity registers a new entity.
func (s *LedgerService) OpenEntity(
	address ledger.Address,
	balance ledger.Amount,
	publicKey, privateKey string,
	opts ...ledger.EntityOption,
) (EntitySnapshot, error) {
	entity, err := ledger.NewEntity(address, balance, publicKey, privateKey, opts...)
	if err != nil {
		return EntitySnapshot{}, fmt.Errorf("open entity %s: %w", address, err)
	}

	s.mu.Lock()
	if _, ok := s.accounts[address]; ok {
		s.mu.Unlock()
		return EntitySnapshot{}, fmt.Errorf("%w: %s", ErrEntityExists, address)
	}
	acc := &account{entity: entity}
	s.accounts[address] = acc
	s.mu.Unlock()

	s.logger.Info("entity opened", zap.String("address", address.String()), zap.Stringer("balance", balance))
	return acc.snapshot(), nil
}

// Entity returns a snapshot of the entity registered at address.
func (s *LedgerService) Entity(address ledger.Address) (EntitySnapshot, error) {
	acc, err := s.account(address)
	if err != nil {
		return EntitySnapshot{}, err
	}
	return acc.snapshot(), nil
}

// Addresses lists registered addresses in ascending order.
func (s *LedgerService) Addresses() []ledger.Address {
	s.mu.RLock()
	out := make([]ledger.Address, 0, len(s.accounts))
	for addr := range s.accounts {
		out = append(out, addr)
	}
	s.mu.RUnlock()

	slices.Sort(out)
	return out
}

// TotalSupply sums every balance while holding all entity locks, so the
// result is never observed halfway through a transfer.
func (s *LedgerService) TotalSupply() ledger.Amount {
	s.mu.RLock()
	accs := make([]*account, 0, len(s.accounts))
	for _, acc := range s.accounts {
		accs = append(accs, acc)
	}
	s.mu.RUnlock()

	slices.SortFunc(accs, func(a, b *account) int {
		return cmp.Compare(a.entity.Address(), b.entity.Address())
	})
	for _, acc := range accs {
		acc.mu.Lock()
	}
	var total ledger.Amount
	for _, acc := range accs {
		total += acc.entity.Balance()
	}
	for i := len(accs) - 1; i >= 0; i-- {
		accs[i].mu.Unlock()
	}
	return total
}

// Transfer moves amount from one registered entity to another and queues the
// signed transaction for the next block.
func (s *LedgerService) Transfer(ctx context.Context, from, to ledger.Address, amount ledger.Amount) (tx ledger.Transaction, err error) {
	started := time.Now()
	defer func() {
		s.metrics.ObserveTransfer(err, started)
	}()

	if err = ctx.Err(); err != nil {
		return ledger.Transaction{}, err
	}
	if from == to {
		return ledger.Transaction{}, fmt.Errorf("%w: self-transfer from %s", ledger.ErrInvalidInput, from)
	}

	sender, err := s.account(from)
	if err != nil {
		return ledger.Transaction{}, err
	}
	receiver, err := s.account(to)
	if err != nil {
		return ledger.Transaction{}, err
	}

	unlock := lockPair(sender, receiver)
	defer unlock()

	tx, err = ledger.CreateAndExecute(sender.entity, receiver.entity, amount, s.clock)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("transfer %s -> %s: %w", from, to, err)
	}

	s.chainMu.Lock()
	s.pending = append(s.pending, tx)
	pending := len(s.pending)
	s.chainMu.Unlock()
	s.metrics.SetPending(pending)

	s.logger.Debug("transfer executed",
		zap.String("tx_id", tx.ID()),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.Stringer("amount", amount),
	)
	return tx, nil
}

// Pending returns a copy of the executed transactions not yet sealed.
func (s *LedgerService) Pending() []ledger.Transaction {
	s.chainMu.Lock()
	defer s.chainMu.Unlock()
	return append([]ledger.Transaction(nil), s.pending...)
}

// SealedHistory reads persisted transactions touching address, oldest first.
func (s *LedgerService) SealedHistory(ctx context.Context, address ledger.Address, limit uint64) ([]model.Transaction, error) {
	if s.repo == nil {
		return nil, ErrPersistenceDisabled
	}
	if limit == 0 || limit > s.cfg.HistoryLimit {
		limit = s.cfg.HistoryLimit
	}
	txs, err := s.repo.AddressTransactions(ctx, s.chainID, address.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("sealed history for %s: %w", address, err)
	}
	return txs, nil
}

func (s *LedgerService) account(address ledger.Address) (*account, error) {
	s.mu.RLock()
	acc, ok := s.accounts[address]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, address)
	}
	return acc, nil
}

// lockPair locks two distinct accounts in address order and returns the unlock.
func lockPair(a, b *account) func() {
	if cmp.Compare(a.entity.Address(), b.entity.Address()) > 0 {
		a, b = b, a
	}
	a.mu.Lock()
	b.mu.Lock()
	return func() {
		b.mu.Unlock()
		a.mu.Unlock()
	}
}
