package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Bybit public linear WebSocket endpoints.
const (
	BybitMainnetWSURL = "wss://stream.bybit.com/v5/public/linear"
	BybitTestnetWSURL = "wss://stream-testnet.bybit.com/v5/public/linear"
)

// MarkPriceFeedConfig configures feed behavior.
type MarkPriceFeedConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping messages.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
}

// DefaultMarkPriceFeedConfig returns default feed configuration.
func DefaultMarkPriceFeedConfig() MarkPriceFeedConfig {
	return MarkPriceFeedConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      20 * time.Second,
		ReadTimeout:       60 * time.Second,
	}
}

// MarkPriceFeed tracks the latest mark price per symbol over the
// exchange's public ticker stream. Paper executions use it to stamp a
// realistic fill price without contacting the trading API.
type MarkPriceFeed struct {
	endpoint string
	config   MarkPriceFeedConfig
	logger   *log.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	prices   map[string]float64 // keyed by instrument symbol, e.g. BTCUSDT
	pricesMu sync.RWMutex

	subscribed   map[string]bool
	subscribedMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup
}

// NewMarkPriceFeed connects to the endpoint and starts the read loop.
func NewMarkPriceFeed(ctx context.Context, endpoint string, config *MarkPriceFeedConfig, logger *log.Logger) (*MarkPriceFeed, error) {
	cfg := DefaultMarkPriceFeedConfig()
	if config != nil {
		cfg = *config
	}

	f := &MarkPriceFeed{
		endpoint:   endpoint,
		config:     cfg,
		logger:     logger,
		prices:     make(map[string]float64),
		subscribed: make(map[string]bool),
		done:       make(chan struct{}),
	}

	if err := f.connect(ctx); err != nil {
		return nil, err
	}

	f.wg.Add(1)
	go f.readLoop()

	f.wg.Add(1)
	go f.pingLoop()

	return f, nil
}

// connect establishes the WebSocket connection.
func (f *MarkPriceFeed) connect(ctx context.Context) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	// Drop the stale connection so reconnects do not leak descriptors.
	if f.conn != nil {
		f.conn.Close()
	}
	f.conn = conn
	return nil
}

// Subscribe starts tracking a symbol ("BTC/USDT" form).
func (f *MarkPriceFeed) Subscribe(symbol string) error {
	if f.closed.Load() {
		return fmt.Errorf("feed closed")
	}

	instrument := instrumentSymbol(symbol)

	f.subscribedMu.Lock()
	already := f.subscribed[instrument]
	f.subscribed[instrument] = true
	f.subscribedMu.Unlock()
	if already {
		return nil
	}

	return f.sendSubscribe(instrument)
}

func (f *MarkPriceFeed) sendSubscribe(instrument string) error {
	msg := map[string]interface{}{
		"op":   "subscribe",
		"args": []string{"tickers." + instrument},
	}

	f.connMu.Lock()
	defer f.connMu.Unlock()
	if err := f.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("subscribe %s: %w", instrument, err)
	}
	return nil
}

// Get returns the latest mark price for a symbol, false when no tick
// has arrived yet.
func (f *MarkPriceFeed) Get(symbol string) (float64, bool) {
	f.pricesMu.RLock()
	defer f.pricesMu.RUnlock()
	price, ok := f.prices[instrumentSymbol(symbol)]
	return price, ok
}

// Close shuts the feed down.
func (f *MarkPriceFeed) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(f.done)

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.Close()
	}
	f.connMu.Unlock()

	f.wg.Wait()
	return nil
}

// tickerMessage is the subset of Bybit's ticker push we care about.
type tickerMessage struct {
	Topic string `json:"topic"`
	Data  struct {
		Symbol    string `json:"symbol"`
		MarkPrice string `json:"markPrice"`
		LastPrice string `json:"lastPrice"`
	} `json:"data"`
}

// readLoop reads ticker pushes and updates the price map, reconnecting
// with backoff on failure.
func (f *MarkPriceFeed) readLoop() {
	defer f.wg.Done()

	delay := f.config.ReconnectDelay
	for {
		select {
		case <-f.done:
			return
		default:
		}

		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()

		conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if f.closed.Load() {
				return
			}
			f.logger.Printf("ticker read error: %v, reconnecting in %v", err, delay)
			select {
			case <-f.done:
				return
			case <-time.After(delay):
			}
			if delay *= 2; delay > f.config.MaxReconnectDelay {
				delay = f.config.MaxReconnectDelay
			}
			if err := f.reconnect(); err != nil {
				f.logger.Printf("ticker reconnect failed: %v", err)
			}
			continue
		}
		delay = f.config.ReconnectDelay

		var msg tickerMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Data.Symbol == "" {
			continue // op acks, pongs
		}

		price := parseWireNumber(msg.Data.MarkPrice)
		if price == 0 {
			price = parseWireNumber(msg.Data.LastPrice)
		}
		if price == 0 {
			continue
		}

		f.pricesMu.Lock()
		f.prices[msg.Data.Symbol] = price
		f.pricesMu.Unlock()
	}
}

// reconnect re-establishes the connection and replays subscriptions.
func (f *MarkPriceFeed) reconnect() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := f.connect(ctx); err != nil {
		return err
	}

	f.subscribedMu.Lock()
	instruments := make([]string, 0, len(f.subscribed))
	for instrument := range f.subscribed {
		instruments = append(instruments, instrument)
	}
	f.subscribedMu.Unlock()

	for _, instrument := range instruments {
		if err := f.sendSubscribe(instrument); err != nil {
			return err
		}
	}
	return nil
}

// pingLoop keeps the connection alive per Bybit's protocol requirement.
func (f *MarkPriceFeed) pingLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.connMu.Lock()
			err := f.conn.WriteJSON(map[string]string{"op": "ping"})
			f.connMu.Unlock()
			if err != nil && !f.closed.Load() {
				f.logger.Printf("ticker ping error: %v", err)
			}
		}
	}
}
