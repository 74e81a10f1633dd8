package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// Bybit REST endpoints.
const (
	BybitMainnetURL = "https://api.bybit.com"
	BybitTestnetURL = "https://api-testnet.bybit.com"

	bybitRecvWindow = "5000"
)

// Bybit implements Gateway against the Bybit v5 REST API, linear
// (USDT-settled) derivatives only.
type Bybit struct {
	client *resty.Client
	creds  Credentials
}

// BybitOption configures the Bybit gateway.
type BybitOption func(*Bybit)

// WithHTTPTimeout sets the request timeout.
func WithHTTPTimeout(d time.Duration) BybitOption {
	return func(b *Bybit) {
		b.client.SetTimeout(d)
	}
}

// NewBybit creates a Bybit gateway for the given base URL and credentials.
func NewBybit(baseURL string, creds Credentials, opts ...BybitOption) *Bybit {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json")

	b := &Bybit{client: client, creds: creds}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Compile-time interface check.
var _ Gateway = (*Bybit)(nil)

// bybitResponse is the v5 envelope every endpoint returns.
type bybitResponse struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

// retCodeLeverageNotModified means leverage already has the target value.
const retCodeLeverageNotModified = 110043

// GetMarket resolves market metadata for a symbol.
func (b *Bybit) GetMarket(ctx context.Context, symbol string) (*Market, error) {
	var envelope bybitResponse
	resp, err := b.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"category": "linear",
			"symbol":   instrumentSymbol(symbol),
		}).
		SetResult(&envelope).
		Get("/v5/market/instruments-info")
	if err != nil {
		return nil, fmt.Errorf("get instruments info: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get instruments info: http %d", resp.StatusCode())
	}
	if envelope.RetCode != 0 {
		return nil, fmt.Errorf("get instruments info: %s (code %d)", envelope.RetMsg, envelope.RetCode)
	}

	var result struct {
		List []struct {
			Symbol       string `json:"symbol"`
			BaseCoin     string `json:"baseCoin"`
			QuoteCoin    string `json:"quoteCoin"`
			ContractType string `json:"contractType"`
		} `json:"list"`
	}
	if err := json.Unmarshal(envelope.Result, &result); err != nil {
		return nil, fmt.Errorf("decode instruments info: %w", err)
	}
	if len(result.List) == 0 {
		return nil, ErrMarketNotFound
	}

	info := result.List[0]
	return &Market{
		Symbol:   symbol,
		Base:     info.BaseCoin,
		Quote:    info.QuoteCoin,
		Linear:   strings.HasPrefix(info.ContractType, "Linear"),
		Contract: info.ContractType != "",
	}, nil
}

// SetLeverage sets leverage and margin mode for a symbol.
// Bybit reports "leverage not modified" as an error code; that is a
// no-op here, not a failure.
func (b *Bybit) SetLeverage(ctx context.Context, symbol string, leverage int, marginMode MarginMode) error {
	lev := strconv.Itoa(leverage)
	body := map[string]string{
		"category":     "linear",
		"symbol":       instrumentSymbol(symbol),
		"buyLeverage":  lev,
		"sellLeverage": lev,
		"tradeMode":    tradeMode(marginMode),
	}

	envelope, err := b.signedPost(ctx, "/v5/position/set-leverage", body)
	if err != nil {
		return fmt.Errorf("set leverage: %w", err)
	}
	if envelope.RetCode != 0 && envelope.RetCode != retCodeLeverageNotModified {
		return fmt.Errorf("set leverage: %s (code %d)", envelope.RetMsg, envelope.RetCode)
	}
	return nil
}

// CreateMarketOrder places a market order and resolves its execution state.
func (b *Bybit) CreateMarketOrder(ctx context.Context, symbol string, side OrderSide, qty float64) (*Order, error) {
	body := map[string]string{
		"category":  "linear",
		"symbol":    instrumentSymbol(symbol),
		"side":      bybitSide(side),
		"orderType": "Market",
		"qty":       decimal.NewFromFloat(qty).String(),
	}

	envelope, err := b.signedPost(ctx, "/v5/order/create", body)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	if envelope.RetCode != 0 {
		return nil, fmt.Errorf("create order: %s (code %d)", envelope.RetMsg, envelope.RetCode)
	}

	var created struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(envelope.Result, &created); err != nil {
		return nil, fmt.Errorf("decode create order result: %w", err)
	}

	return b.getOrder(ctx, symbol, side, created.OrderID)
}

// getOrder fetches the realtime state of a placed order.
func (b *Bybit) getOrder(ctx context.Context, symbol string, side OrderSide, orderID string) (*Order, error) {
	params := map[string]string{
		"category": "linear",
		"symbol":   instrumentSymbol(symbol),
		"orderId":  orderID,
	}

	envelope, err := b.signedGet(ctx, "/v5/order/realtime", params)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if envelope.RetCode != 0 {
		return nil, fmt.Errorf("get order: %s (code %d)", envelope.RetMsg, envelope.RetCode)
	}

	var result struct {
		List []struct {
			OrderStatus string `json:"orderStatus"`
			AvgPrice    string `json:"avgPrice"`
			CumExecQty  string `json:"cumExecQty"`
			CumExecVal  string `json:"cumExecValue"`
		} `json:"list"`
	}
	if err := json.Unmarshal(envelope.Result, &result); err != nil {
		return nil, fmt.Errorf("decode order result: %w", err)
	}
	if len(result.List) == 0 {
		return &Order{ID: orderID, Symbol: symbol, Side: side, Status: "unknown"}, nil
	}

	o := result.List[0]
	return &Order{
		ID:      orderID,
		Symbol:  symbol,
		Side:    side,
		Status:  normalizeStatus(o.OrderStatus),
		Average: parseWireNumber(o.AvgPrice),
		Filled:  parseWireNumber(o.CumExecQty),
		Cost:    parseWireNumber(o.CumExecVal),
	}, nil
}

// signedPost sends an authenticated POST per the Bybit v5 signing scheme:
// sign = HMAC-SHA256(secret, timestamp + apiKey + recvWindow + body).
func (b *Bybit) signedPost(ctx context.Context, path string, body map[string]string) (*bybitResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	var envelope bybitResponse
	resp, err := b.client.R().
		SetContext(ctx).
		SetHeader("X-BAPI-API-KEY", b.creds.APIKey).
		SetHeader("X-BAPI-TIMESTAMP", timestamp).
		SetHeader("X-BAPI-RECV-WINDOW", bybitRecvWindow).
		SetHeader("X-BAPI-SIGN", b.sign(timestamp+b.creds.APIKey+bybitRecvWindow+string(payload))).
		SetBody(payload).
		SetResult(&envelope).
		Post(path)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("http %d", resp.StatusCode())
	}
	return &envelope, nil
}

// signedGet sends an authenticated GET; the query string is signed in
// place of the body.
func (b *Bybit) signedGet(ctx context.Context, path string, params map[string]string) (*bybitResponse, error) {
	query := canonicalQuery(params)
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)

	var envelope bybitResponse
	resp, err := b.client.R().
		SetContext(ctx).
		SetHeader("X-BAPI-API-KEY", b.creds.APIKey).
		SetHeader("X-BAPI-TIMESTAMP", timestamp).
		SetHeader("X-BAPI-RECV-WINDOW", bybitRecvWindow).
		SetHeader("X-BAPI-SIGN", b.sign(timestamp+b.creds.APIKey+bybitRecvWindow+query)).
		SetQueryString(query).
		SetResult(&envelope).
		Get(path)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("http %d", resp.StatusCode())
	}
	return &envelope, nil
}

func (b *Bybit) sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(b.creds.Secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// instrumentSymbol converts "BTC/USDT" to Bybit's "BTCUSDT".
func instrumentSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}

// canonicalQuery builds a deterministic query string for signing.
func canonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	// Bybit signs the query string exactly as sent, so the order only
	// has to be stable, not any particular collation.
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	return strings.Join(parts, "&")
}

func bybitSide(side OrderSide) string {
	if side == OrderSideBuy {
		return "Buy"
	}
	return "Sell"
}

func tradeMode(mode MarginMode) string {
	if mode == MarginModeCross {
		return "0"
	}
	return "1" // isolated
}

// normalizeStatus maps Bybit order statuses to the ledger vocabulary:
// a filled order is "closed", everything else passes through lowercased.
func normalizeStatus(status string) string {
	switch status {
	case "Filled":
		return "closed"
	case "PartiallyFilled":
		return "partially_filled"
	default:
		return strings.ToLower(status)
	}
}

// parseWireNumber parses Bybit's string-encoded decimal numbers.
// Empty strings (no fill yet) parse as zero.
func parseWireNumber(s string) float64 {
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}
