// Package main runs the pump.fun trading agent.
//
// Usage:
//
//	agent -config config.toml
//	PUMPAGENT_SANDBOX=false PUMPAGENT_WALLET_PRIVATE_KEY=... agent -config config.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"pump-agent/internal/agent"
	"pump-agent/internal/chain"
	"pump-agent/internal/cleanup"
	"pump-agent/internal/config"
	"pump-agent/internal/fees"
	"pump-agent/internal/listener"
	"pump-agent/internal/market"
	"pump-agent/internal/observability"
	"pump-agent/internal/solana"
	"pump-agent/internal/storage"
	chstore "pump-agent/internal/storage/clickhouse"
	"pump-agent/internal/storage/memory"
	"pump-agent/internal/storage/migrations"
	pgstore "pump-agent/internal/storage/postgres"
	"pump-agent/internal/trader"
)

const gaugeInterval = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to a TOML or YAML config file")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (overrides metrics.addr)")
	flag.Parse()

	logger := log.New(os.Stdout, "[pump-agent] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}
	red := cfg.Redacted()
	logger.Printf("Loaded config: bot=%s sandbox=%v chain=%s storage=%s rpc=%s",
		red.Main.BotName, red.Main.Sandbox, red.Monitoring.Chain, red.Storage.Driver, red.Endpoint.RPC)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
			cancel()
		case <-done:
			return
		}

		// Post-session cleanup may take a while; a second signal forces exit.
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, cfg, logger)
	close(done)
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Agent error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// run wires every component and blocks until the agent finishes.
func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	started := time.Now()

	stores, err := openStores(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer stores.Close()

	rpc := solana.NewHTTPClient(cfg.Endpoint.RPC, solana.WithObserver(observability.RecordRPCLatency))

	chainOpts := chain.DefaultOptions()
	chainOpts.Logger = logger
	chainOpts.OnRetry = func(int, error) { observability.RecordSendRetry() }
	cc := chain.New(rpc, chainOpts)
	cc.Start(ctx)
	defer cc.Close()

	signer, err := loadSigner(cfg)
	if err != nil {
		return err
	}
	logger.Printf("Wallet: %s", signer.PublicKey())

	opts := agent.OptionsFromConfig(cfg)
	if !cfg.Main.Sandbox {
		lamports, err := cc.Balance(ctx, signer.PublicKey().String())
		if err != nil {
			return fmt.Errorf("wallet balance: %w", err)
		}
		opts.InitBalance = decimal.NewFromInt(int64(lamports)).Shift(-9).InexactFloat64()
	}

	feeEst := fees.New(rpc, fees.Config{
		Dynamic:  cfg.Priority.Dynamic,
		Fixed:    cfg.Priority.Fixed,
		FixedFee: cfg.Priority.Lamports,
		Extra:    cfg.Priority.Extra,
		HardCap:  cfg.Priority.HardCap,
	}, logger)
	feeEst.OnFee = observability.RecordPriorityFee

	pump := market.NewPumpClient()
	oracle := market.NewOracle("", 0, nil, logger)
	enricher := market.NewEnricher(pump, stores.snapshots, oracle, logger)
	holders := market.NewHolderLookup(pump, cc, logger)

	wsCfg := solana.DefaultWSConfig()
	wsCfg.Logger = logger
	wsCfg.OnReconnect = observability.RecordReconnect
	ws, err := solana.NewWSClient(ctx, cfg.Endpoint.WSS, &wsCfg)
	if err != nil {
		return fmt.Errorf("connect websocket: %w", err)
	}
	defer ws.Close()

	filter := listener.NewFilter(listener.FilterOptionsFromConfig(cfg), enricher, holders, logger)
	tokens, err := listener.New(ws, filter, listener.Options{Chain: cfg.Monitoring.Chain, Logger: logger})
	if err != nil {
		return err
	}

	tradeOpts := trader.OptionsFromConfig(cfg)
	buyer := trader.NewBuyer(cc, cc, feeEst, signer, tradeOpts, logger)
	seller := trader.NewSeller(cc, cc, feeEst, signer, tradeOpts, logger)

	// Sandbox trades never create token accounts.
	cleanSigner := signer
	if cfg.Main.Sandbox {
		cleanSigner = nil
	}
	cleaner := cleanup.New(cc, feeEst, cleanSigner, cleanup.OptionsFromConfig(cfg), logger)

	ag, err := agent.New(opts, agent.Deps{
		Tokens:  tokens,
		Buyer:   buyer,
		Seller:  seller,
		Curves:  cc,
		Cleanup: cleaner,
		Store:   stores.trades,
		Journal: stores.journal,
		Samples: stores.samples,
		Chain:   cc,
		Oracle:  oracle,
		Caches:  []agent.Pruner{enricher},
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)
	defer stop()

	if cfg.Metrics.Addr != "" {
		srv := newMetricsServer(cfg.Metrics.Addr)
		g.Go(func() error {
			logger.Printf("Starting metrics server on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-runCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(gaugeInterval)
		defer ticker.Stop()
		last := started
		for {
			select {
			case <-runCtx.Done():
				return nil
			case now := <-ticker.C:
				observability.SetBlockhashAge(cc.BlockhashAge())
				observability.RecordUptime(now.Sub(last))
				last = now
			}
		}
	})

	g.Go(func() error {
		defer stop()
		return ag.Run(runCtx)
	})

	return g.Wait()
}

func newMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

// loadSigner parses the configured key. Sandbox runs without one get a
// throwaway key so trades still have an owner address.
func loadSigner(cfg *config.Config) (*chain.Keypair, error) {
	if cfg.Wallet.PrivateKey != "" {
		kp, err := chain.KeypairFromBase58(cfg.Wallet.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("wallet: %w", err)
		}
		return kp, nil
	}
	if !cfg.Main.Sandbox {
		return nil, errors.New("wallet: privatekey is required outside sandbox mode")
	}
	return chain.NewRandomKeypair()
}

// agentStores are the persistence backends selected by the storage group.
type agentStores struct {
	trades    storage.TradeStore
	snapshots storage.SnapshotStore
	journal   storage.TradeJournal
	samples   storage.PriceSampleStore
	closers   []func()
}

func (s *agentStores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStores(ctx context.Context, cfg *config.Config, logger *log.Logger) (*agentStores, error) {
	sc := cfg.Storage
	s := &agentStores{}

	switch sc.Driver {
	case config.DriverPostgres:
		pool, err := pgstore.NewPool(ctx, sc.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		s.closers = append(s.closers, pool.Close)
		if sc.Migrate {
			if err := migrations.RunPostgres(ctx, pool); err != nil {
				s.Close()
				return nil, fmt.Errorf("postgres migrations: %w", err)
			}
		}
		s.trades = pgstore.NewTradeStore(pool)
		s.snapshots = pgstore.NewSnapshotStore(pool)
		logger.Printf("Using PostgreSQL trade store")
	default:
		s.trades = memory.NewTradeStore()
		s.snapshots = memory.NewSnapshotStore()
		logger.Printf("Using in-memory trade store")
	}

	if sc.RedisAddr != "" {
		rdb, err := market.NewRedisClient(ctx, market.RedisConfig{
			Addr:     sc.RedisAddr,
			Password: sc.RedisPassword,
			DB:       sc.RedisDB,
		})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		s.closers = append(s.closers, func() { rdb.Close() })
		s.snapshots = market.NewRedisSnapshotStore(rdb)
		logger.Printf("Using Redis snapshot cache at %s", sc.RedisAddr)
	}

	if sc.ClickHouseDSN != "" {
		var conn *chstore.Conn
		var err error
		if sc.Migrate {
			conn, err = migrations.RunClickHouse(ctx, sc.ClickHouseDSN)
		} else {
			conn, err = chstore.NewConn(ctx, sc.ClickHouseDSN)
		}
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("clickhouse: %w", err)
		}
		s.closers = append(s.closers, func() { conn.Close() })
		s.journal = chstore.NewTradeJournal(conn)
		s.samples = chstore.NewPriceSampleStore(conn)
		logger.Printf("Using ClickHouse trade journal and price samples")
	} else {
		s.journal = memory.NewTradeJournal()
		s.samples = memory.NewPriceSampleStore()
	}

	return s, nil
}
