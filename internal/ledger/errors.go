package ledger

import "errors"

var (
	// ErrInvalidInput covers non-positive amounts, empty addresses, self-transfers and malformed keys.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInsufficientFunds is returned when a sender cannot cover an amount.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidSignature is returned when a transaction signature does not verify.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrHashMismatch is returned when a stored block hash differs from its recomputed value.
	ErrHashMismatch = errors.New("block hash mismatch")
	// ErrBrokenLink is returned when a block does not reference its predecessor's hash.
	ErrBrokenLink = errors.New("broken previous hash link")
	// ErrInvalidGenesis is returned when a chain does not start with a genesis block.
	ErrInvalidGenesis = errors.New("invalid genesis block")
)
