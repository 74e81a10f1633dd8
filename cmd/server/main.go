// Package main provides the unified trading service:
// - Signal intake (continuous): webhook ingestion, gating, execution
// - Optimization (scheduled or triggered): advisory-driven promotion
// - Backtest (triggered): grid search over recorded alert history
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
	"strings"
	"syscall"
	"time"

	"trade-signal-lab/internal/advisory"
	"trade-signal-lab/internal/backtest"
	"trade-signal-lab/internal/exchange"
	"trade-signal-lab/internal/executor"
	"trade-signal-lab/internal/gate"
	"trade-signal-lab/internal/observability"
	"trade-signal-lab/internal/optimizer"
	"trade-signal-lab/internal/server"
	"trade-signal-lab/internal/storage"
	chstore "trade-signal-lab/internal/storage/clickhouse"
	"trade-signal-lab/internal/storage/memory"
	"trade-signal-lab/internal/storage/migrations"
	pgstore "trade-signal-lab/internal/storage/postgres"
)

// allStores holds all storage implementations.
type allStores struct {
	configStore    storage.StrategyConfigStore
	executionStore storage.ExecutionStore
	tradeLogStore  storage.TradeLogStore
	alertStore     storage.AlertStore
	resultStore    storage.BacktestResultStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	addr := flag.String("addr", envOr("LISTEN_ADDR", ":8080"), "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	migrate := flag.Bool("migrate", false, "Apply database migrations on startup")
	paper := flag.Bool("paper", false, "Paper mode: simulate fills instead of placing orders")
	tickerFeed := flag.Bool("ticker-feed", true, "Connect the mark price feed in paper mode")
	optimizeInterval := flag.Duration("optimize-interval", 0, "Scheduled optimization interval (0 disables)")
	geminiModel := flag.String("gemini-model", os.Getenv("GEMINI_MODEL"), "Gemini model for the advisory call")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Create stores
	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory, *migrate)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Exchange gateways, one per network
	mainnet := createGateway(exchange.BybitMainnetURL, os.Getenv("BYBIT_API_KEY_MAIN"), os.Getenv("BYBIT_SECRET_MAIN"))
	testnet := createGateway(exchange.BybitTestnetURL, os.Getenv("BYBIT_API_KEY_DEMO"), os.Getenv("BYBIT_SECRET_DEMO"))
	if mainnet == nil {
		logger.Println("Mainnet credentials not configured, mainnet signals will fail")
	}
	if testnet == nil {
		logger.Println("Testnet credentials not configured, testnet signals will fail")
	}

	// Mark price feed for paper fills
	var prices executor.PriceSource
	if *paper && *tickerFeed {
		feed, err := exchange.NewMarkPriceFeed(ctx, exchange.BybitMainnetWSURL, nil,
			log.New(os.Stdout, "[ticker] ", log.LstdFlags))
		if err != nil {
			logger.Printf("Mark price feed unavailable, paper fills use alert price: %v", err)
		} else {
			defer feed.Close()
			prices = feed
		}
	}

	// Pipeline components
	exec := executor.New(mainnet, testnet, stores.executionStore, prices,
		executor.Config{Paper: *paper},
		log.New(os.Stdout, "", log.LstdFlags|log.Lshortfile))
	g := gate.New(stores.configStore, stores.alertStore, stores.tradeLogStore, exec,
		log.New(os.Stdout, "", log.LstdFlags|log.Lshortfile))

	advisor := advisory.NewGeminiAdvisor(os.Getenv("GEMINI_API_KEY"), *geminiModel)
	opt := optimizer.New(stores.tradeLogStore, stores.configStore, advisor,
		log.New(os.Stdout, "", log.LstdFlags|log.Lshortfile))

	engine := backtest.NewEngine(backtest.NewRandomOutcome(time.Now().UnixNano()))
	runner := backtest.NewRunner(engine, stores.alertStore, stores.resultStore,
		log.New(os.Stdout, "", log.LstdFlags|log.Lshortfile))

	srv := server.New(g, opt, runner,
		stores.configStore, stores.executionStore, stores.resultStore,
		server.Config{OptimizeSecret: os.Getenv("CRON_SECRET")}, logger)

	httpServer := &http.Server{
		Addr:    *addr,
		Handler: srv.Handler(),
	}

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP shutdown error: %v", err)
		}

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	// Scheduled optimization
	if *optimizeInterval > 0 {
		go runOptimizeScheduler(ctx, opt, *optimizeInterval, logger)
	}

	// Uptime counter
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.DefaultMetrics.UptimeSeconds.Inc()
			}
		}
	}()

	logger.Printf("Listening on %s (paper=%v, memory=%v)", *addr, *paper, *useMemory)
	err = httpServer.ListenAndServe()
	done <- err
	cancel()

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createGateway creates a Bybit gateway, nil when credentials are absent.
func createGateway(baseURL, apiKey, secret string) exchange.Gateway {
	creds := exchange.Credentials{APIKey: apiKey, Secret: secret}
	if !creds.Configured() {
		return nil
	}
	return exchange.NewBybit(baseURL, creds)
}

// createStores creates all required stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory, migrate bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			configStore:    memory.NewStrategyConfigStore(),
			executionStore: memory.NewExecutionStore(),
			tradeLogStore:  memory.NewTradeLogStore(),
			alertStore:     memory.NewAlertStore(),
			resultStore:    memory.NewBacktestResultStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// ClickHouse
	chConn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	if migrate {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			chConn.Close()
			pool.Close()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		if err := migrations.RunClickhouseMigrations(ctx, chConn); err != nil {
			chConn.Close()
			pool.Close()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
	}

	stores := &allStores{
		// PostgreSQL stores (source of truth)
		configStore:    pgstore.NewStrategyConfigStore(pool),
		executionStore: pgstore.NewExecutionStore(pool),
		tradeLogStore:  pgstore.NewTradeLogStore(pool),

		// ClickHouse stores (append-heavy audit/analytics)
		alertStore:  chstore.NewAlertStore(chConn),
		resultStore: chstore.NewBacktestResultStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// runOptimizeScheduler triggers optimization on a fixed interval, the
// same path the HTTP trigger uses.
func runOptimizeScheduler(ctx context.Context, opt *optimizer.Optimizer, interval time.Duration, logger *log.Logger) {
	logger.Printf("Starting optimization scheduler (interval: %v)...", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			outcome, err := opt.Run(ctx)
			switch {
			case errors.Is(err, optimizer.ErrNoTrades):
				logger.Println("Optimization skipped: no trades to analyze")
			case errors.Is(err, optimizer.ErrNoActiveConfig):
				logger.Println("Optimization skipped: no active configuration")
			case err != nil:
				logger.Printf("Optimization error: %v", err)
			default:
				logger.Printf("Optimization promoted %s: %s = %g",
					outcome.NewConfig.ConfigID[:12], outcome.Suggestion.Parameter, outcome.Suggestion.Value)
			}
		}
	}
}

// envOr returns the env value or a default.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
