package memory

import (
	"context"
	"testing"

	"trade-signal-lab/internal/domain"
)

func TestTradeLogStore_GetRecentOrderAndLimit(t *testing.T) {
	store := NewTradeLogStore()
	ctx := context.Background()

	entries := []*domain.TradeLogEntry{
		{PnL: 10, ExitTime: 1000, Side: domain.SideLong},
		{PnL: -5, ExitTime: 3000, Side: domain.SideShort},
		{PnL: 2, ExitTime: 2000, Side: domain.SideLong},
	}
	for _, e := range entries {
		if err := store.Insert(ctx, e); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := store.GetRecent(ctx, 2)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(got))
	}
	if got[0].ExitTime != 3000 || got[1].ExitTime != 2000 {
		t.Errorf("Expected exit_time desc, got [%d %d]", got[0].ExitTime, got[1].ExitTime)
	}
}

func TestBacktestResultStore_GetTop(t *testing.T) {
	store := NewBacktestResultStore()
	ctx := context.Background()

	results := []*domain.BacktestResult{
		{Config: map[string]float64{"tp_mult": 1.0}, WinRate: 0.50, Trades: 10},
		{Config: map[string]float64{"tp_mult": 1.2}, WinRate: 0.65, Trades: 10},
		{Config: map[string]float64{"tp_mult": 1.4}, WinRate: 0.55, Trades: 10},
	}
	if err := store.InsertBulk(ctx, results); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetTop(ctx, 2)
	if err != nil {
		t.Fatalf("GetTop failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(got))
	}
	if got[0].WinRate != 0.65 || got[1].WinRate != 0.55 {
		t.Errorf("Expected win_rate desc, got [%g %g]", got[0].WinRate, got[1].WinRate)
	}
}
