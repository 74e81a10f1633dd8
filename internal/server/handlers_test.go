package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"trade-signal-lab/internal/advisory"
	advisorystub "trade-signal-lab/internal/advisory/stub"
	"trade-signal-lab/internal/backtest"
	"trade-signal-lab/internal/domain"
	exchangestub "trade-signal-lab/internal/exchange/stub"
	"trade-signal-lab/internal/executor"
	"trade-signal-lab/internal/gate"
	"trade-signal-lab/internal/optimizer"
	"trade-signal-lab/internal/storage/memory"
)

type serverFixture struct {
	server *Server

	configs    *memory.StrategyConfigStore
	executions *memory.ExecutionStore
	tradeLogs  *memory.TradeLogStore
	alerts     *memory.AlertStore
	results    *memory.BacktestResultStore

	gateway *exchangestub.Gateway
	advisor *advisorystub.Advisor
}

func newServerFixture(t *testing.T, config Config) *serverFixture {
	t.Helper()

	logger := log.New(io.Discard, "", 0)

	f := &serverFixture{
		configs:    memory.NewStrategyConfigStore(),
		executions: memory.NewExecutionStore(),
		tradeLogs:  memory.NewTradeLogStore(),
		alerts:     memory.NewAlertStore(),
		results:    memory.NewBacktestResultStore(),
		gateway:    exchangestub.NewGateway(),
		advisor:    advisorystub.NewAdvisor(&advisory.Suggestion{Parameter: "adx_len", Value: 16}),
	}
	f.gateway.AddLinearMarket("BTCUSDT")
	f.gateway.FillPrice = 50100

	exec := executor.New(f.gateway, f.gateway, f.executions, nil, executor.Config{}, logger)
	g := gate.New(f.configs, f.alerts, f.tradeLogs, exec, logger)
	opt := optimizer.New(f.tradeLogs, f.configs, f.advisor, logger)
	engine := backtest.NewEngine(backtest.NewRandomOutcome(1))
	runner := backtest.NewRunner(engine, f.alerts, f.results, logger)

	f.server = New(g, opt, runner, f.configs, f.executions, f.results, config, logger)
	return f
}

func (f *serverFixture) seedActiveConfig(t *testing.T) {
	t.Helper()
	cfg := &domain.StrategyConfig{
		ConfigID:   "cfg1",
		Strategy:   "CCA_v1",
		Version:    "v1.0",
		Parameters: map[string]float64{"adx_len": 14},
		PromotedAt: 1000,
	}
	if err := f.configs.Promote(context.Background(), cfg); err != nil {
		t.Fatalf("Seed config: %v", err)
	}
}

func (f *serverFixture) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Decode response %q: %v", w.Body.String(), err)
	}
	return body
}

const entrySignal = `{"symbol": "BTCUSDT", "side": "Long", "price": 50000, "qty": 0.5, "leverage": 10, "strategy": "CCA_v1", "version": "v1.0"}`

func TestWebhook_AcceptedSignalExecutes(t *testing.T) {
	f := newServerFixture(t, Config{})
	f.seedActiveConfig(t)

	w := f.do(t, http.MethodPost, "/api/webhook", entrySignal, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, body %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	if body["message"] != "trade signal processed" {
		t.Errorf("message = %v", body["message"])
	}
	execution, ok := body["execution"].(map[string]any)
	if !ok {
		t.Fatalf("Missing execution in response: %v", body)
	}
	if execution["status"] != "executed" {
		t.Errorf("status = %v, want executed", execution["status"])
	}
	if execution["executed_price"] != 50100.0 {
		t.Errorf("executed_price = %v, want 50100", execution["executed_price"])
	}

	if len(f.gateway.OrderCalls) != 1 {
		t.Fatalf("Expected 1 order, got %d", len(f.gateway.OrderCalls))
	}
	records, err := f.executions.GetRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("Expected 1 persisted execution, got %d", len(records))
	}
}

func TestWebhook_RejectedSignals(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			"malformed json",
			`{"symbol": `,
			"malformed signal",
		},
		{
			"missing symbol",
			`{"side": "long", "price": 50000, "strategy": "CCA_v1", "version": "v1.0"}`,
			"missing symbol",
		},
		{
			"strategy mismatch",
			`{"symbol": "BTCUSDT", "side": "long", "price": 50000, "strategy": "other", "version": "v1.0"}`,
			"strategy mismatch",
		},
		{
			"version mismatch",
			`{"symbol": "BTCUSDT", "side": "long", "price": 50000, "strategy": "CCA_v1", "version": "v9"}`,
			"strategy mismatch",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newServerFixture(t, Config{})
			f.seedActiveConfig(t)

			w := f.do(t, http.MethodPost, "/api/webhook", tc.body, nil)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("Status = %d, want 400, body %s", w.Code, w.Body.String())
			}
			errMsg, _ := decodeBody(t, w)["error"].(string)
			if !strings.Contains(errMsg, tc.wantErr) {
				t.Errorf("error = %q, want substring %q", errMsg, tc.wantErr)
			}
			if len(f.gateway.OrderCalls) != 0 {
				t.Error("Rejected signal must not reach the exchange")
			}
		})
	}
}

func TestWebhook_NoActiveStrategy(t *testing.T) {
	f := newServerFixture(t, Config{})

	w := f.do(t, http.MethodPost, "/api/webhook", entrySignal, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Status = %d, want 400", w.Code)
	}
	if f.alerts.Len() != 1 {
		t.Errorf("Audit rows = %d, rejection must still be audited", f.alerts.Len())
	}
}

func TestWebhook_ClosureSignalLogsTrade(t *testing.T) {
	f := newServerFixture(t, Config{})
	f.seedActiveConfig(t)

	body := `{"symbol": "BTCUSDT", "side": "long", "price": 50000, "qty": 0.5, "strategy": "CCA_v1", "version": "v1.0",
		"pnl": -12.5, "exit_time": 1700000000000, "mci_at_entry": 0.6, "adx_score_at_entry": 22, "snr_score_at_entry": 1.4}`
	w := f.do(t, http.MethodPost, "/api/webhook", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, body %s", w.Code, w.Body.String())
	}
	if decodeBody(t, w)["trade_logged"] != true {
		t.Error("trade_logged = false, want true")
	}

	logs, err := f.tradeLogs.GetRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(logs) != 1 || logs[0].PnL != -12.5 {
		t.Errorf("Trade log not recorded: %+v", logs)
	}
}

func TestWebhook_Liveness(t *testing.T) {
	f := newServerFixture(t, Config{})

	w := f.do(t, http.MethodGet, "/api/webhook", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "send POST requests") {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestOptimize_Auth(t *testing.T) {
	f := newServerFixture(t, Config{OptimizeSecret: "s3cret"})
	f.seedActiveConfig(t)

	cases := []struct {
		name    string
		headers map[string]string
	}{
		{"no header", nil},
		{"wrong secret", map[string]string{"Authorization": "Bearer wrong"}},
		{"not bearer", map[string]string{"Authorization": "s3cret"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/optimize", "", tc.headers)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("Status = %d, want 401", w.Code)
			}
		})
	}
	if len(f.advisor.Reports) != 0 {
		t.Error("Unauthorized calls must not reach the advisor")
	}
}

func TestOptimize_DisabledWithoutSecret(t *testing.T) {
	f := newServerFixture(t, Config{})

	w := f.do(t, http.MethodPost, "/api/optimize", "", map[string]string{"Authorization": "Bearer anything"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401 when no secret is configured", w.Code)
	}
}

func TestOptimize_Promotes(t *testing.T) {
	f := newServerFixture(t, Config{OptimizeSecret: "s3cret"})
	f.seedActiveConfig(t)
	for _, e := range []*domain.TradeLogEntry{
		{PnL: 10, ExitTime: 2000},
		{PnL: -4, ExitTime: 1000},
	} {
		if err := f.tradeLogs.Insert(context.Background(), e); err != nil {
			t.Fatalf("Seed trade: %v", err)
		}
	}

	w := f.do(t, http.MethodPost, "/api/optimize", "", map[string]string{"Authorization": "Bearer s3cret"})
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, body %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	if body["success"] != true {
		t.Errorf("success = %v", body["success"])
	}
	if body["trades_analyzed"] != 2.0 {
		t.Errorf("trades_analyzed = %v, want 2", body["trades_analyzed"])
	}
	params, ok := body["new_parameters"].(map[string]any)
	if !ok || params["adx_len"] != 16.0 {
		t.Errorf("new_parameters = %v, want adx_len 16", body["new_parameters"])
	}
}

func TestOptimize_NoTrades(t *testing.T) {
	f := newServerFixture(t, Config{OptimizeSecret: "s3cret"})
	f.seedActiveConfig(t)

	w := f.do(t, http.MethodPost, "/api/optimize", "", map[string]string{"Authorization": "Bearer s3cret"})
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, body %s", w.Code, w.Body.String())
	}
	if decodeBody(t, w)["message"] != "no trades found to analyze" {
		t.Errorf("Body = %s", w.Body.String())
	}
}

func TestOptimize_NoActiveConfig(t *testing.T) {
	f := newServerFixture(t, Config{OptimizeSecret: "s3cret"})
	if err := f.tradeLogs.Insert(context.Background(), &domain.TradeLogEntry{PnL: 1, ExitTime: 1000}); err != nil {
		t.Fatalf("Seed trade: %v", err)
	}

	w := f.do(t, http.MethodPost, "/api/optimize", "", map[string]string{"Authorization": "Bearer s3cret"})
	if w.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want 404, body %s", w.Code, w.Body.String())
	}
}

func TestPromote(t *testing.T) {
	f := newServerFixture(t, Config{})

	body := `{"strategy": "CCA_v1", "version": "v1.0", "config": {"adx_len": 14, "coherence_threshold": 0.7}}`
	w := f.do(t, http.MethodPost, "/api/strategy/promote", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, body %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	if resp["config_id"] == "" {
		t.Error("Missing config_id in response")
	}

	active, err := f.configs.GetActive(context.Background())
	if err != nil {
		t.Fatalf("GetActive failed: %v", err)
	}
	if active.Strategy != "CCA_v1" || active.Parameters["adx_len"] != 14 {
		t.Errorf("Promoted config = %+v", active)
	}
}

func TestPromote_MissingFields(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"no strategy", `{"version": "v1.0", "config": {"adx_len": 14}}`},
		{"no version", `{"strategy": "CCA_v1", "config": {"adx_len": 14}}`},
		{"no config", `{"strategy": "CCA_v1", "version": "v1.0"}`},
		{"not json", `promote please`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newServerFixture(t, Config{})
			w := f.do(t, http.MethodPost, "/api/strategy/promote", tc.body, nil)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Status = %d, want 400, body %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestPromote_Duplicate(t *testing.T) {
	f := newServerFixture(t, Config{})

	body := `{"strategy": "CCA_v1", "version": "v1.0", "config": {"adx_len": 14}}`
	if w := f.do(t, http.MethodPost, "/api/strategy/promote", body, nil); w.Code != http.StatusOK {
		t.Fatalf("First promote: status %d", w.Code)
	}

	// The config id hashes the promotion timestamp in milliseconds, so a
	// replay within the same millisecond maps to 409 and a later one
	// promotes a fresh row. Both are acceptable; anything else is a bug.
	w := f.do(t, http.MethodPost, "/api/strategy/promote", body, nil)
	if w.Code != http.StatusConflict && w.Code != http.StatusOK {
		t.Errorf("Status = %d, want 409 or 200", w.Code)
	}
}

func TestActiveStrategy(t *testing.T) {
	f := newServerFixture(t, Config{})

	w := f.do(t, http.MethodGet, "/api/strategy/active", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != "null" {
		t.Errorf("Body = %q, want null when nothing is active", w.Body.String())
	}

	f.seedActiveConfig(t)
	w = f.do(t, http.MethodGet, "/api/strategy/active", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["config_id"] != "cfg1" || body["is_active"] != true {
		t.Errorf("Body = %v", body)
	}
}

func TestExecutions(t *testing.T) {
	f := newServerFixture(t, Config{})

	for i := 0; i < 3; i++ {
		record := &domain.ExecutionRecord{
			ExecutionID: "exec" + string(rune('a'+i)),
			Symbol:      "BTCUSDT",
			Side:        domain.SideLong,
			EntryPrice:  50000,
			Strategy:    "CCA_v1",
			Version:     "v1.0",
			Status:      domain.ExecutionStatusExecuted,
			Timestamp:   int64(1000 + i),
		}
		if err := f.executions.Insert(context.Background(), record); err != nil {
			t.Fatalf("Seed execution %d: %v", i, err)
		}
	}

	w := f.do(t, http.MethodGet, "/api/executions", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d", w.Code)
	}
	var records []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &records); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("Got %d executions, want 3", len(records))
	}
	for _, r := range records {
		if r["symbol"] != "BTCUSDT" || r["status"] != "executed" {
			t.Errorf("Record = %v", r)
		}
	}
}

func TestResults(t *testing.T) {
	f := newServerFixture(t, Config{})
	seed := []*domain.BacktestResult{
		{Config: map[string]float64{"atr_mult": 0.5}, WinRate: 0.4, PnL: 10, Trades: 5},
		{Config: map[string]float64{"atr_mult": 0.6}, WinRate: 0.8, PnL: 25, Trades: 5},
	}
	if err := f.results.InsertBulk(context.Background(), seed); err != nil {
		t.Fatalf("Seed results: %v", err)
	}

	w := f.do(t, http.MethodGet, "/api/results", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d", w.Code)
	}
	var results []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &results); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Got %d results, want 2", len(results))
	}
	if results[0]["win_rate"] != 0.8 {
		t.Errorf("Results not ordered by win rate: %v", results)
	}
}

func TestBacktest(t *testing.T) {
	f := newServerFixture(t, Config{})
	for i := 0; i < 5; i++ {
		alert := &domain.AlertRecord{
			Symbol:    "BTCUSDT",
			Side:      "long",
			Price:     50000 + float64(i),
			Timestamp: int64(1000 + i),
		}
		if err := f.alerts.Insert(context.Background(), alert); err != nil {
			t.Fatalf("Seed alert: %v", err)
		}
	}

	w := f.do(t, http.MethodPost, "/api/backtest", `{"top_n": 3}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	top, ok := body["top"].([]any)
	if !ok || len(top) != 3 {
		t.Fatalf("top = %v, want 3 entries", body["top"])
	}
	if body["total_tested"] != 2310.0 {
		t.Errorf("total_tested = %v, want 2310", body["total_tested"])
	}
}

func TestBacktest_NoHistory(t *testing.T) {
	f := newServerFixture(t, Config{})

	w := f.do(t, http.MethodPost, "/api/backtest", "", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Status = %d, want 500", w.Code)
	}
	if decodeBody(t, w)["error"] != "no alerts to test" {
		t.Errorf("Body = %s", w.Body.String())
	}
}

func TestHealthAndStatus(t *testing.T) {
	f := newServerFixture(t, Config{})

	w := f.do(t, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK || decodeBody(t, w)["status"] != "ok" {
		t.Errorf("Health: status %d body %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/status", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Status endpoint: %d", w.Code)
	}
	if decodeBody(t, w)["service"] != "trade-signal-lab" {
		t.Errorf("Body = %s", w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Metrics endpoint: %d", w.Code)
	}
}
