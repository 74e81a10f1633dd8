package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"trade-signal-lab/internal/backtest"
	"trade-signal-lab/internal/storage"
	chstore "trade-signal-lab/internal/storage/clickhouse"
	"trade-signal-lab/internal/storage/memory"
)

func main() {
	// Parse flags
	topN := flag.Int("top", backtest.DefaultTopN, "Number of top results to keep")
	seed := flag.Int64("seed", 1, "Outcome model seed (fixed seed gives reproducible runs)")
	strategy := flag.String("strategy", "", "Strategy name stamped on results")
	version := flag.String("version", "", "Strategy version stamped on results")

	// Storage
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage (mostly useful with -json)")

	// Output
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	if !*useMemory && *clickhouseDSN == "" {
		logger.Fatal("--clickhouse-dsn is required (use --use-memory for in-memory storage)")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Println("Interrupted")
		cancel()
	}()

	// Create stores
	var alerts storage.AlertStore
	var results storage.BacktestResultStore
	if *useMemory {
		alerts = memory.NewAlertStore()
		results = memory.NewBacktestResultStore()
	} else {
		conn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("Failed to connect to ClickHouse: %v", err)
		}
		defer conn.Close()
		alerts = chstore.NewAlertStore(conn)
		results = chstore.NewBacktestResultStore(conn)
	}

	// Run the search
	engine := backtest.NewEngine(backtest.NewRandomOutcome(*seed))
	runner := backtest.NewRunner(engine, alerts, results, logger)

	report, err := runner.Run(ctx, backtest.DefaultRanges(), backtest.Options{
		TopN:     *topN,
		Strategy: *strategy,
		Version:  *version,
	})
	if err != nil {
		logger.Fatalf("Backtest failed: %v", err)
	}

	// Output
	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			logger.Fatalf("Encode report: %v", err)
		}
		return
	}

	fmt.Printf("Tested %d configurations\n\n", report.TotalTested)
	for i, r := range report.Top {
		fmt.Printf("#%d  winRate=%.2f%%  pnl=%.2f  trades=%d  config=%v\n",
			i+1, r.WinRate*100, r.PnL, r.Trades, r.Config)
	}
}
