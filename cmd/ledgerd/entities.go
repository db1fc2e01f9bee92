package main

import (
	"fmt"
	"strings"

	"github.com/goodnatureofminers/blockledger/internal/ledger"
	"github.com/goodnatureofminers/blockledger/internal/service"
	"go.uber.org/zap"
)

type entityOpener interface {
	OpenEntity(address ledger.Address, balance ledger.Amount, publicKey, privateKey string, opts ...ledger.EntityOption) (service.EntitySnapshot, error)
}

type entitySeed struct {
	address ledger.Address
	balance ledger.Amount
}

func parseEntitySeed(raw string) (entitySeed, error) {
	addr, balance, ok := strings.Cut(strings.TrimSpace(raw), "=")
	if !ok || addr == "" {
		return entitySeed{}, fmt.Errorf("entity %q: want address=balance", raw)
	}
	amount, err := ledger.ParseAmount(balance)
	if err != nil {
		return entitySeed{}, fmt.Errorf("entity %q: %w", raw, err)
	}
	return entitySeed{address: ledger.Address(addr), balance: amount}, nil
}

// openEntities registers each address=balance pair with a fresh secp256k1 key.
func openEntities(svc entityOpener, seeds []string, logger *zap.Logger) error {
	for _, raw := range seeds {
		seed, err := parseEntitySeed(raw)
		if err != nil {
			return err
		}
		pub, priv, err := ledger.GenerateSecp256k1Keys()
		if err != nil {
			return err
		}
		if _, err = svc.OpenEntity(seed.address, seed.balance, pub, priv, ledger.WithSecp256k1()); err != nil {
			return err
		}
		logger.Info("entity opened from config",
			zap.String("address", seed.address.String()),
			zap.Stringer("balance", seed.balance),
			zap.String("public_key", pub),
		)
	}
	return nil
}
