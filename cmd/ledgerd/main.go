package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodnatureofminers/blockledger/internal/clock"
	"github.com/goodnatureofminers/blockledger/internal/metrics"
	"github.com/goodnatureofminers/blockledger/internal/repository/clickhouse"
	"github.com/goodnatureofminers/blockledger/internal/service"
	"github.com/goodnatureofminers/blockledger/internal/transport"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type config struct {
	Addr                 string        `long:"addr" env:"LEDGERD_ADDR" description:"HTTP listen address" default:":8080"`
	ClickhouseDSN        string        `long:"clickhouse-dsn" env:"LEDGERD_CLICKHOUSE_DSN" description:"ClickHouse DSN; sealed blocks are not persisted when empty"`
	SealInterval         time.Duration `long:"seal-interval" env:"LEDGERD_SEAL_INTERVAL" description:"how often pending transactions are sealed into a block" default:"10s"`
	MaxBlockTransactions int           `long:"max-block-transactions" env:"LEDGERD_MAX_BLOCK_TRANSACTIONS" description:"upper bound of transactions per block" default:"10000"`
	ValidateWorkers      int           `long:"validate-workers" env:"LEDGERD_VALIDATE_WORKERS" description:"goroutines used to verify block hashes" default:"4"`
	HistoryLimit         uint64        `long:"history-limit" env:"LEDGERD_HISTORY_LIMIT" description:"max rows returned by sealed history queries" default:"1000"`
	Entities             []string      `long:"entity" env:"LEDGERD_ENTITIES" env-delim:"," description:"address=balance opened at startup with a generated secp256k1 key (repeatable)"`
}

func main() {
	cfg := config{}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()

	if _, err := flags.ParseArgs(&cfg, os.Args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		logger.Fatal("failed to parse flags", zap.Error(err))
	}

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("ledgerd failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	var (
		repo   service.Repository
		writer service.BlockWriter
	)
	if cfg.ClickhouseDSN != "" {
		chRepo, err := clickhouse.NewRepository(cfg.ClickhouseDSN, metrics.NewClickhouseRepository())
		if err != nil {
			return fmt.Errorf("init repository: %w", err)
		}
		defer func() {
			if err := chRepo.Close(); err != nil {
				logger.Warn("close repository", zap.Error(err))
			}
		}()
		w, err := service.NewRepositoryBlockWriter(chRepo, metrics.NewBlockWriter(), logger.Named("blockWriter"))
		if err != nil {
			return fmt.Errorf("init block writer: %w", err)
		}
		repo, writer = chRepo, w
	} else {
		logger.Warn("ClickHouse DSN not set; sealed blocks stay in memory only")
	}

	svc, err := service.NewLedgerService(
		repo,
		writer,
		metrics.NewLedger(),
		clock.System{},
		service.Config{
			SealInterval:         cfg.SealInterval,
			ValidateWorkers:      cfg.ValidateWorkers,
			MaxBlockTransactions: cfg.MaxBlockTransactions,
			HistoryLimit:         cfg.HistoryLimit,
		},
		logger.Named("ledger"),
	)
	if err != nil {
		return fmt.Errorf("init ledger service: %w", err)
	}

	if err := openEntities(svc, cfg.Entities, logger); err != nil {
		return err
	}

	handler, err := transport.NewLedgerHandler(svc, metrics.NewHTTP(), logger.Named("http"))
	if err != nil {
		return fmt.Errorf("init http handler: %w", err)
	}

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           cors.Default().Handler(mux),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.Run(ctx)
	})
	g.Go(func() error {
		logger.Info("starting HTTP server", zap.String("addr", cfg.Addr), zap.String("chain_id", svc.ChainID()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen and serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down the http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown http server", zap.Error(err))
		}
		return nil
	})
	return g.Wait()
}
