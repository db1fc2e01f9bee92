package ledger

import (
	"fmt"

	"github.com/goodnatureofminers/blockledger/pkg/safe"
)

// Entity is a ledger participant. It is mutated in place by Debit, Credit and
// Record and is never deleted.
type Entity struct {
	address    Address
	balance    Amount
	history    []Transaction
	publicKey  string
	privateKey string
	signer     Signer
}

// EntityOption customizes an Entity at construction.
type EntityOption func(*Entity) error

// WithSigner replaces the default KeyedHash signer.
func WithSigner(s Signer) EntityOption {
	return func(e *Entity) error {
		if s == nil {
			return fmt.Errorf("%w: nil signer", ErrInvalidInput)
		}
		e.signer = s
		return nil
	}
}

// WithSecp256k1 signs with ECDSA using the entity's hex key pair.
func WithSecp256k1() EntityOption {
	return func(e *Entity) error {
		s, err := NewSecp256k1(e.publicKey, e.privateKey)
		if err != nil {
			return err
		}
		e.signer = s
		return nil
	}
}

// NewEntity creates an entity with an empty history. Unless an option says
// otherwise it signs with KeyedHash over privateKey.
func NewEntity(address Address, initialBalance Amount, publicKey, privateKey string, opts ...EntityOption) (*Entity, error) {
	if address.IsZero() {
		return nil, fmt.Errorf("%w: empty address", ErrInvalidInput)
	}
	if initialBalance < 0 {
		return nil, fmt.Errorf("%w: negative initial balance %s", ErrInvalidInput, initialBalance)
	}

	e := &Entity{
		address:    address,
		balance:    initialBalance,
		publicKey:  publicKey,
		privateKey: privateKey,
		signer:     NewKeyedHash(privateKey),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("entity %s: %w", address, err)
		}
	}
	return e, nil
}

// Address returns the entity's identifier.
func (e *Entity) Address() Address {
	return e.address
}

// PublicKey returns the public half of the key pair as supplied at creation.
func (e *Entity) PublicKey() string {
	return e.publicKey
}

// Balance returns the current balance.
func (e *Entity) Balance() Amount {
	return e.balance
}

// History returns a copy of the transactions the entity took part in, oldest first.
func (e *Entity) History() []Transaction {
	out := make([]Transaction, len(e.history))
	copy(out, e.history)
	return out
}

// CanSend reports whether amount is positive and covered by the balance.
func (e *Entity) CanSend(amount Amount) bool {
	return amount > 0 && amount <= e.balance
}

// Debit subtracts amount from the balance.
func (e *Entity) Debit(amount Amount) error {
	if amount <= 0 {
		return fmt.Errorf("%w: debit amount %s must be positive", ErrInvalidInput, amount)
	}
	if !e.CanSend(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds, e.address, e.balance, amount)
	}
	balance, err := safe.SubInt64(e.balance, amount)
	if err != nil {
		return fmt.Errorf("%w: debit %s: %v", ErrInvalidInput, e.address, err)
	}
	e.balance = balance
	return nil
}

// Credit adds amount to the balance.
func (e *Entity) Credit(amount Amount) error {
	if amount <= 0 {
		return fmt.Errorf("%w: credit amount %s must be positive", ErrInvalidInput, amount)
	}
	balance, err := safe.AddInt64(e.balance, amount)
	if err != nil {
		return fmt.Errorf("%w: credit %s: %v", ErrInvalidInput, e.address, err)
	}
	e.balance = balance
	return nil
}

// Record appends tx to the history.
func (e *Entity) Record(tx Transaction) {
	e.history = append(e.history, tx)
}

// Sign signs payload with the entity's signer.
func (e *Entity) Sign(payload []byte) (string, error) {
	return e.signer.Sign(payload)
}

// Verify checks a signature produced by this entity's key.
func (e *Entity) Verify(payload []byte, signature string) bool {
	return e.signer.Verify(payload, signature)
}

// Signer exposes the signer used for this entity's transactions.
func (e *Entity) Signer() Signer {
	return e.signer
}
