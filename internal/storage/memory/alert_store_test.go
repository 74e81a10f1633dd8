package memory

import (
	"context"
	"testing"

	"trade-signal-lab/internal/domain"
)

func TestAlertStore_NoDedup(t *testing.T) {
	store := NewAlertStore()
	ctx := context.Background()

	a := &domain.AlertRecord{Symbol: "BTC/USDT", Side: "long", Price: 50000, Timestamp: 1000}
	if err := store.Insert(ctx, a); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	if err := store.Insert(ctx, a); err != nil {
		t.Fatalf("Second insert failed: %v", err)
	}

	if store.Len() != 2 {
		t.Errorf("Expected 2 independent rows for identical alerts, got %d", store.Len())
	}
}

func TestAlertStore_GetPricedFiltersAndOrders(t *testing.T) {
	store := NewAlertStore()
	ctx := context.Background()

	alerts := []*domain.AlertRecord{
		{Symbol: "BTC/USDT", Side: "long", Price: 50000, Timestamp: 3000},
		{Symbol: "", Side: "long", Price: 50000, Timestamp: 1000},       // no symbol
		{Symbol: "ETH/USDT", Side: "", Price: 3000, Timestamp: 1500},    // no side
		{Symbol: "ETH/USDT", Side: "short", Price: 0, Timestamp: 2000},  // no price
		{Symbol: "ETH/USDT", Side: "short", Price: 3000, Timestamp: 1000},
	}
	for _, a := range alerts {
		if err := store.Insert(ctx, a); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := store.GetPriced(ctx)
	if err != nil {
		t.Fatalf("GetPriced failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 priced alerts, got %d", len(got))
	}
	if got[0].Timestamp != 1000 || got[1].Timestamp != 3000 {
		t.Errorf("Expected timestamp asc order, got [%d %d]", got[0].Timestamp, got[1].Timestamp)
	}
}
