package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goodnatureofminers/blockledger/internal/clock"
	"github.com/goodnatureofminers/blockledger/internal/ledger"
	"github.com/goodnatureofminers/blockledger/internal/metrics"
	"github.com/goodnatureofminers/blockledger/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	mux    *http.ServeMux
	ledger *service.LedgerService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	svc, err := service.NewLedgerService(nil, nil, metrics.NewLedger(), clock.Fixed(1_700_000_000), service.Config{}, zap.NewNop())
	require.NoError(t, err)

	h, err := NewLedgerHandler(svc, metrics.NewHTTP(), zap.NewNop())
	require.NoError(t, err)

	mux := http.NewServeMux()
	h.Register(mux)
	return &testServer{mux: mux, ledger: svc}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestNewLedgerHandler(t *testing.T) {
	_, err := NewLedgerHandler(nil, metrics.NewHTTP(), zap.NewNop())
	assert.Error(t, err)
}

func TestLedgerHandler_TransferFlow(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/v1/entities", openEntityRequest{Address: "A", Balance: "100", PrivateKey: "privA", PublicKey: "pubA"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	a := decodeBody[entityResponse](t, rec)
	assert.Equal(t, "100.00", a.Balance)
	assert.Empty(t, a.PrivateKey)

	rec = s.do(t, http.MethodPost, "/v1/entities", openEntityRequest{Address: "B", Balance: "0", PrivateKey: "privB"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/v1/transfers", transferRequest{From: "A", To: "B", Amount: "50"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tx := decodeBody[transactionResponse](t, rec)
	assert.Equal(t, "50.00", tx.Amount)
	assert.Equal(t, uint32(1_700_000_000), tx.Timestamp)
	assert.Len(t, tx.ID, 64)

	rec = s.do(t, http.MethodGet, "/v1/entities/B", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	b := decodeBody[entityResponse](t, rec)
	assert.Equal(t, "50.00", b.Balance)
	require.Len(t, b.History, 1)
	assert.Equal(t, tx, b.History[0])

	rec = s.do(t, http.MethodGet, "/v1/transactions/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/blocks", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	block := decodeBody[blockResponse](t, rec)
	assert.Equal(t, uint64(1), block.Height)
	assert.Equal(t, s.ledger.ChainID(), block.PreviousHash)
	require.Len(t, block.Transactions, 1)

	rec = s.do(t, http.MethodPost, "/v1/blocks", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/blocks/latest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, block.Hash, decodeBody[blockResponse](t, rec).Hash)

	rec = s.do(t, http.MethodGet, "/v1/blocks/0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ledger.GenesisPreviousHash, decodeBody[blockResponse](t, rec).PreviousHash)

	rec = s.do(t, http.MethodGet, "/v1/chain/validate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeBody[validateResponse](t, rec)
	assert.True(t, v.Valid)
	assert.Equal(t, uint64(1), v.Height)

	rec = s.do(t, http.MethodGet, "/v1/supply", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "100.00", decodeBody[map[string]string](t, rec)["total"])

	rec = s.do(t, http.MethodGet, "/v1/entities", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"A", "B"}, decodeBody[map[string][]string](t, rec)["addresses"])
}

func TestLedgerHandler_Errors(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		path     string
		body     any
		wantCode int
	}{
		{name: "insufficient funds", method: http.MethodPost, path: "/v1/transfers", body: transferRequest{From: "A", To: "B", Amount: "100.01"}, wantCode: http.StatusConflict},
		{name: "zero amount", method: http.MethodPost, path: "/v1/transfers", body: transferRequest{From: "A", To: "B", Amount: "0"}, wantCode: http.StatusBadRequest},
		{name: "negative amount", method: http.MethodPost, path: "/v1/transfers", body: transferRequest{From: "A", To: "B", Amount: "-5"}, wantCode: http.StatusBadRequest},
		{name: "too many decimals", method: http.MethodPost, path: "/v1/transfers", body: transferRequest{From: "A", To: "B", Amount: "1.001"}, wantCode: http.StatusBadRequest},
		{name: "self transfer", method: http.MethodPost, path: "/v1/transfers", body: transferRequest{From: "A", To: "A", Amount: "1"}, wantCode: http.StatusBadRequest},
		{name: "unknown sender", method: http.MethodPost, path: "/v1/transfers", body: transferRequest{From: "Z", To: "A", Amount: "1"}, wantCode: http.StatusNotFound},
		{name: "unknown field", method: http.MethodPost, path: "/v1/transfers", body: map[string]string{"from": "A", "memo": "x"}, wantCode: http.StatusBadRequest},
		{name: "duplicate entity", method: http.MethodPost, path: "/v1/entities", body: openEntityRequest{Address: "A", Balance: "1"}, wantCode: http.StatusConflict},
		{name: "negative balance", method: http.MethodPost, path: "/v1/entities", body: openEntityRequest{Address: "C", Balance: "-1"}, wantCode: http.StatusBadRequest},
		{name: "missing address", method: http.MethodPost, path: "/v1/entities", body: openEntityRequest{Balance: "1"}, wantCode: http.StatusBadRequest},
		{name: "unknown scheme", method: http.MethodPost, path: "/v1/entities", body: openEntityRequest{Address: "C", Balance: "1", Scheme: "rsa"}, wantCode: http.StatusBadRequest},
		{name: "bad secp256k1 key", method: http.MethodPost, path: "/v1/entities", body: openEntityRequest{Address: "C", Balance: "1", Scheme: schemeSecp256k1, PrivateKey: "zz"}, wantCode: http.StatusBadRequest},
		{name: "unknown entity", method: http.MethodGet, path: "/v1/entities/Z", wantCode: http.StatusNotFound},
		{name: "sealed history without repository", method: http.MethodGet, path: "/v1/entities/A/sealed", wantCode: http.StatusServiceUnavailable},
		{name: "bad limit", method: http.MethodGet, path: "/v1/entities/A/sealed?limit=x", wantCode: http.StatusBadRequest},
		{name: "missing block", method: http.MethodGet, path: "/v1/blocks/9", wantCode: http.StatusNotFound},
		{name: "bad height", method: http.MethodGet, path: "/v1/blocks/tip", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			_, err := s.ledger.OpenEntity("A", 10000, "pubA", "privA")
			require.NoError(t, err)
			_, err = s.ledger.OpenEntity("B", 0, "pubB", "privB")
			require.NoError(t, err)

			rec := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decodeBody[errorResponse](t, rec).Error)

			a, err := s.ledger.Entity("A")
			require.NoError(t, err)
			assert.Equal(t, ledger.Amount(10000), a.Balance)
		})
	}
}

func TestLedgerHandler_Secp256k1Entity(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/v1/entities", openEntityRequest{Balance: "10", Scheme: schemeSecp256k1})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[entityResponse](t, rec)
	assert.NotEmpty(t, created.PrivateKey)
	assert.Len(t, created.PublicKey, 66)

	derived, err := ledger.DeriveAddress(created.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, derived.String(), created.Address)

	_, err = s.ledger.OpenEntity("B", 0, "pubB", "privB")
	require.NoError(t, err)

	rec = s.do(t, http.MethodPost, "/v1/transfers", transferRequest{From: created.Address, To: "B", Amount: "2.50"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tx := decodeBody[transactionResponse](t, rec)

	payload := ledger.Transaction{
		Sender:    ledger.Address(tx.Sender),
		Receiver:  ledger.Address(tx.Receiver),
		Amount:    250,
		Timestamp: tx.Timestamp,
	}.Payload()
	assert.True(t, ledger.VerifySecp256k1(created.PublicKey, payload, tx.Signature))
}

func TestLedgerHandler_ValidateReportsTampering(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.ledger.OpenEntity("A", 100, "pubA", "privA")
	require.NoError(t, err)
	_, err = s.ledger.OpenEntity("B", 0, "pubB", "privB")
	require.NoError(t, err)
	_, err = s.ledger.Transfer(ctx, "A", "B", 10)
	require.NoError(t, err)
	_, _, err = s.ledger.Seal(ctx)
	require.NoError(t, err)

	_, latest := s.ledger.Latest()
	latest.Transactions[0].Amount = 99

	rec := s.do(t, http.MethodGet, "/v1/chain/validate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeBody[validateResponse](t, rec)
	assert.False(t, v.Valid)
	assert.Contains(t, v.Error, ledger.ErrHashMismatch.Error())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: ledger.ErrInvalidSignature, want: http.StatusBadRequest},
		{err: service.ErrEntityExists, want: http.StatusConflict},
		{err: context.Canceled, want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
