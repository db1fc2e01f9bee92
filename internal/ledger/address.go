package ledger

// Address identifies an entity. It is a weak reference: holding one says
// nothing about whether the entity exists, and the ledger core never checks
// uniqueness.
type Address string

// GenesisPreviousHash is the previous-hash sentinel of the first block.
const GenesisPreviousHash = "0"

func (a Address) String() string {
	return string(a)
}

// IsZero reports whether the address is empty.
func (a Address) IsZero() bool {
	return a == ""
}
