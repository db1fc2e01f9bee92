package transport

import (
	"time"

	"github.com/goodnatureofminers/blockledger/internal/ledger"
	"github.com/goodnatureofminers/blockledger/internal/model"
	"github.com/goodnatureofminers/blockledger/internal/service"
)

const (
	schemeKeyedHash = "keyed-hash"
	schemeSecp256k1 = "secp256k1"
)

type openEntityRequest struct {
	Address    string `json:"address"`
	Balance    string `json:"balance"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
	Scheme     string `json:"scheme"`
}

type transferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type transactionResponse struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver"`
	Amount    string `json:"amount"`
	Timestamp uint32 `json:"timestamp"`
	Signature string `json:"signature"`
}

type entityResponse struct {
	Address   string                `json:"address"`
	Balance   string                `json:"balance"`
	PublicKey string                `json:"public_key,omitempty"`
	History   []transactionResponse `json:"history"`
	// PrivateKey is only set when the server generated the key pair.
	PrivateKey string `json:"private_key,omitempty"`
}

type blockResponse struct {
	Height       uint64                `json:"height"`
	Hash         string                `json:"hash"`
	PreviousHash string                `json:"previous_hash"`
	Timestamp    uint32                `json:"timestamp"`
	Nonce        uint32                `json:"nonce"`
	Transactions []transactionResponse `json:"transactions"`
}

type sealedTransactionResponse struct {
	ID          string    `json:"id"`
	BlockHeight uint64    `json:"block_height"`
	BlockHash   string    `json:"block_hash"`
	Position    uint32    `json:"position"`
	Sender      string    `json:"sender"`
	Receiver    string    `json:"receiver"`
	Amount      string    `json:"amount"`
	Timestamp   time.Time `json:"timestamp"`
	Signature   string    `json:"signature"`
}

type validateResponse struct {
	ChainID string `json:"chain_id"`
	Height  uint64 `json:"height"`
	Valid   bool   `json:"valid"`
	Error   string `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toTransactionResponse(tx ledger.Transaction) transactionResponse {
	return transactionResponse{
		ID:        tx.ID(),
		Sender:    tx.Sender.String(),
		Receiver:  tx.Receiver.String(),
		Amount:    tx.Amount.String(),
		Timestamp: tx.Timestamp,
		Signature: tx.Signature,
	}
}

func toTransactionResponses(txs []ledger.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionResponse(tx))
	}
	return out
}

func toEntityResponse(e service.EntitySnapshot) entityResponse {
	return entityResponse{
		Address:   e.Address.String(),
		Balance:   e.Balance.String(),
		PublicKey: e.PublicKey,
		History:   toTransactionResponses(e.History),
	}
}

func toBlockResponse(height uint64, b ledger.Block) blockResponse {
	return blockResponse{
		Height:       height,
		Hash:         b.Hash,
		PreviousHash: b.PreviousHash,
		Timestamp:    b.Timestamp,
		Nonce:        b.Nonce,
		Transactions: toTransactionResponses(b.Transactions),
	}
}

func toSealedTransactionResponses(txs []model.Transaction) []sealedTransactionResponse {
	out := make([]sealedTransactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, sealedTransactionResponse{
			ID:          tx.TxID,
			BlockHeight: tx.BlockHeight,
			BlockHash:   tx.BlockHash,
			Position:    tx.Position,
			Sender:      tx.Sender,
			Receiver:    tx.Receiver,
			Amount:      ledger.Amount(tx.Amount).String(),
			Timestamp:   tx.Timestamp,
			Signature:   tx.Signature,
		})
	}
	return out
}
