package ledger

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/blockledger/internal/clock"
)

// Transaction records a value transfer between two addresses. It is a value:
// histories and blocks keep their own copies and nothing mutates it after
// construction.
type Transaction struct {
	Sender    Address
	Receiver  Address
	Amount    Amount
	Timestamp uint32
	Signature string
}

// NewTransaction builds an unsigned transaction.
func NewTransaction(sender, receiver Address, amount Amount, timestamp uint32) (Transaction, error) {
	if err := validateTransfer(sender, receiver, amount); err != nil {
		return Transaction{}, err
	}
	return Transaction{
		Sender:    sender,
		Receiver:  receiver,
		Amount:    amount,
		Timestamp: timestamp,
	}, nil
}

func validateTransfer(sender, receiver Address, amount Amount) error {
	switch {
	case amount <= 0:
		return fmt.Errorf("%w: amount %s must be positive", ErrInvalidInput, amount)
	case sender.IsZero() || receiver.IsZero():
		return fmt.Errorf("%w: empty sender or receiver address", ErrInvalidInput)
	case sender == receiver:
		return fmt.Errorf("%w: self-transfer from %s", ErrInvalidInput, sender)
	}
	return nil
}

// Payload is the canonical signing input:
// sender || receiver || amount (minor units) || timestamp.
func (t Transaction) Payload() []byte {
	return t.appendPayload(nil)
}

func (t Transaction) appendPayload(buf []byte) []byte {
	buf = append(buf, t.Sender...)
	buf = append(buf, t.Receiver...)
	buf = append(buf, t.Amount.canonical()...)
	buf = strconv.AppendUint(buf, uint64(t.Timestamp), 10)
	return buf
}

// ID is the hex sha256 of the payload followed by the signature.
func (t Transaction) ID() string {
	buf := t.appendPayload(nil)
	buf = append(buf, t.Signature...)
	return hex.EncodeToString(chainhash.HashB(buf))
}

// CreateAndSign builds a transaction stamped with clk and signed by sender.
func CreateAndSign(sender *Entity, receiver Address, amount Amount, clk clock.Clock) (Transaction, error) {
	if sender == nil {
		return Transaction{}, fmt.Errorf("%w: nil sender", ErrInvalidInput)
	}
	tx, err := NewTransaction(sender.Address(), receiver, amount, clk.Now())
	if err != nil {
		return Transaction{}, err
	}
	tx.Signature, err = sender.Sign(tx.Payload())
	if err != nil {
		return Transaction{}, fmt.Errorf("sign transaction: %w", err)
	}
	return tx, nil
}

// VerifyTransaction checks tx's signature with signer.
func VerifyTransaction(tx Transaction, signer Signer) error {
	if tx.Signature == "" || !signer.Verify(tx.Payload(), tx.Signature) {
		return fmt.Errorf("%w: transaction %s -> %s", ErrInvalidSignature, tx.Sender, tx.Receiver)
	}
	return nil
}

// CreateAndExecute validates, signs, verifies and applies a transfer. Either
// every step succeeds or neither entity is changed.
func CreateAndExecute(sender, receiver *Entity, amount Amount, clk clock.Clock) (Transaction, error) {
	if sender == nil || receiver == nil {
		return Transaction{}, fmt.Errorf("%w: nil entity", ErrInvalidInput)
	}
	if err := validateTransfer(sender.Address(), receiver.Address(), amount); err != nil {
		return Transaction{}, err
	}
	if !sender.CanSend(amount) {
		return Transaction{}, fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds, sender.Address(), sender.Balance(), amount)
	}

	tx, err := CreateAndSign(sender, receiver.Address(), amount, clk)
	if err != nil {
		return Transaction{}, err
	}
	if err = VerifyTransaction(tx, sender.Signer()); err != nil {
		return Transaction{}, err
	}

	if err = sender.Debit(amount); err != nil {
		return Transaction{}, err
	}
	if err = receiver.Credit(amount); err != nil {
		sender.balance += amount
		return Transaction{}, err
	}

	sender.Record(tx)
	receiver.Record(tx)
	return tx, nil
}
