// Package main runs one optimization pass from the command line, the
// same path the scheduled trigger and POST /api/optimize use.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"trade-signal-lab/internal/advisory"
	"trade-signal-lab/internal/optimizer"
	"trade-signal-lab/internal/storage"
	"trade-signal-lab/internal/storage/memory"
	pgstore "trade-signal-lab/internal/storage/postgres"
)

func main() {
	loadEnvFile()

	// Parse flags
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	geminiModel := flag.String("gemini-model", os.Getenv("GEMINI_MODEL"), "Gemini model for the advisory call")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage (dry runs only)")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[optimize] ", log.LstdFlags)

	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for a dry run)")
	}
	if os.Getenv("GEMINI_API_KEY") == "" {
		logger.Fatal("GEMINI_API_KEY is required")
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
	var tradeLogs storage.TradeLogStore
	var configs storage.StrategyConfigStore
	if *useMemory {
		tradeLogs = memory.NewTradeLogStore()
		configs = memory.NewStrategyConfigStore()
	} else {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("Failed to connect to postgres: %v", err)
		}
		defer pool.Close()
		tradeLogs = pgstore.NewTradeLogStore(pool)
		configs = pgstore.NewStrategyConfigStore(pool)
	}

	advisor := advisory.NewGeminiAdvisor(os.Getenv("GEMINI_API_KEY"), *geminiModel)
	opt := optimizer.New(tradeLogs, configs, advisor, logger)

	outcome, err := opt.Run(ctx)
	switch {
	case errors.Is(err, optimizer.ErrNoTrades):
		logger.Println("No trades found to analyze")
		return
	case errors.Is(err, optimizer.ErrNoActiveConfig):
		logger.Fatal("No active strategy configuration found")
	case err != nil:
		logger.Fatalf("Optimization failed: %v", err)
	}

	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(outcome); err != nil {
			logger.Fatalf("Encode outcome: %v", err)
		}
		return
	}

	fmt.Printf("Analyzed %d trades (winRate=%.2f%%, pnl=%.2f)\n",
		outcome.TradesAnalyzed, outcome.WinRate*100, outcome.TotalPnL)
	fmt.Printf("Promoted %s: %s = %g\n",
		outcome.NewConfig.ConfigID[:12], outcome.Suggestion.Parameter, outcome.Suggestion.Value)
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
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

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
