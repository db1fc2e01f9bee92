package ledger

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// addressVersion is the base58check version byte of derived addresses.
const addressVersion = 0x00

// Signer produces and checks signatures over canonical payloads.
// Sign must be deterministic: the same payload always yields the same signature.
type Signer interface {
	Sign(payload []byte) (string, error)
	Verify(payload []byte, signature string) bool
}

// KeyedHash is the reference signing scheme: hex(sha256(payload || secret)).
//
// It is a keyed hash, not an asymmetric signature. Anyone able to verify a
// signature holds the secret and can forge one, so a public key alone cannot
// check it.
type KeyedHash struct {
	secret string
}

// NewKeyedHash returns a KeyedHash signer over secret.
func NewKeyedHash(secret string) *KeyedHash {
	return &KeyedHash{secret: secret}
}

// Sign hashes the payload followed by the secret.
func (k *KeyedHash) Sign(payload []byte) (string, error) {
	data := make([]byte, 0, len(payload)+len(k.secret))
	data = append(data, payload...)
	data = append(data, k.secret...)
	return hex.EncodeToString(chainhash.HashB(data)), nil
}

// Verify recomputes the keyed hash and compares in constant time.
func (k *KeyedHash) Verify(payload []byte, signature string) bool {
	want, _ := k.Sign(payload)
	return subtle.ConstantTimeCompare([]byte(want), []byte(signature)) == 1
}

// Secp256k1 signs with ECDSA over secp256k1 (RFC 6979 deterministic nonces).
// Signatures are hex-encoded DER over sha256(payload).
type Secp256k1 struct {
	priv *btcec.PrivateKey
	pub  *btcec.PublicKey
}

// NewSecp256k1 builds a signer from a hex private key. When publicKeyHex is
// not empty it must be the compressed encoding of the matching public key.
func NewSecp256k1(publicKeyHex, privateKeyHex string) (*Secp256k1, error) {
	raw, err := hex.DecodeString(privateKeyHex)
	if err != nil || len(raw) != btcec.PrivKeyBytesLen {
		return nil, fmt.Errorf("%w: private key must be %d hex-encoded bytes", ErrInvalidInput, btcec.PrivKeyBytesLen)
	}
	priv, pub := btcec.PrivKeyFromBytes(raw)
	if publicKeyHex != "" && publicKeyHex != hex.EncodeToString(pub.SerializeCompressed()) {
		return nil, fmt.Errorf("%w: public key does not match private key", ErrInvalidInput)
	}
	return &Secp256k1{priv: priv, pub: pub}, nil
}

// PublicKey returns the compressed public key as hex.
func (s *Secp256k1) PublicKey() string {
	return hex.EncodeToString(s.pub.SerializeCompressed())
}

// Sign returns a hex DER signature over sha256(payload).
func (s *Secp256k1) Sign(payload []byte) (string, error) {
	sig := ecdsa.Sign(s.priv, chainhash.HashB(payload))
	return hex.EncodeToString(sig.Serialize()), nil
}

// Verify checks signature against the signer's own public key.
func (s *Secp256k1) Verify(payload []byte, signature string) bool {
	return VerifySecp256k1(s.PublicKey(), payload, signature)
}

// VerifySecp256k1 checks a hex DER signature using only the public key.
func VerifySecp256k1(publicKeyHex string, payload []byte, signature string) bool {
	rawPub, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return false
	}
	pub, err := btcec.ParsePubKey(rawPub)
	if err != nil {
		return false
	}
	rawSig, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(rawSig)
	if err != nil {
		return false
	}
	return sig.Verify(chainhash.HashB(payload), pub)
}

// GenerateSecp256k1Keys creates a fresh key pair, both hex encoded.
func GenerateSecp256k1Keys() (publicKey, privateKey string, err error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return "", "", fmt.Errorf("generate private key: %w", err)
	}
	return hex.EncodeToString(priv.PubKey().SerializeCompressed()), hex.EncodeToString(priv.Serialize()), nil
}

// DeriveAddress maps a hex public key to base58check(hash160(pubkey)).
func DeriveAddress(publicKeyHex string) (Address, error) {
	raw, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return "", fmt.Errorf("%w: decode public key: %v", ErrInvalidInput, err)
	}
	if _, err = btcec.ParsePubKey(raw); err != nil {
		return "", fmt.Errorf("%w: parse public key: %v", ErrInvalidInput, err)
	}
	return Address(base58.CheckEncode(btcutil.Hash160(raw), addressVersion)), nil
}
