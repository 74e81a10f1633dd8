package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"trade-signal-lab/internal/backtest"
	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/gate"
	"trade-signal-lab/internal/idhash"
	"trade-signal-lab/internal/optimizer"
	"trade-signal-lab/internal/storage"
)

const (
	executionsPageSize = 20
	resultsPageSize    = 50
)

func (s *Server) handleWebhookLiveness(c *gin.Context) {
	c.String(http.StatusOK, "webhook is up, send POST requests")
}

// handleWebhook is the alert intake: every signal is audited, gated
// against the active strategy and, when accepted, executed. Closure
// payloads additionally feed the trade ledger.
func (s *Server) handleWebhook(c *gin.Context) {
	s.ingest(c, "trade signal processed")
}

// handleExecute is the direct execution intake. Same pipeline as the
// webhook; kept as a separate route for the alerting side that only
// sends entry signals.
func (s *Server) handleExecute(c *gin.Context) {
	s.ingest(c, "trade signal received")
}

func (s *Server) ingest(c *gin.Context, message string) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	sig, err := gate.ParseSignal(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.gate.Ingest(c.Request.Context(), sig)
	if err != nil {
		switch {
		case errors.Is(err, gate.ErrMalformedSignal),
			errors.Is(err, gate.ErrNoActiveStrategy),
			errors.Is(err, gate.ErrStrategyMismatch):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			s.logger.Printf("[server] ingest failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      message,
		"execution":    toExecutionResponse(result.Execution),
		"trade_logged": result.TradeLogged,
	})
}

func (s *Server) handleOptimize(c *gin.Context) {
	outcome, err := s.optimizer.Run(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, optimizer.ErrNoTrades):
			c.JSON(http.StatusOK, gin.H{"message": "no trades found to analyze"})
		case errors.Is(err, optimizer.ErrNoActiveConfig):
			c.JSON(http.StatusNotFound, gin.H{"error": "no active strategy configuration found"})
		default:
			s.logger.Printf("[server] optimization failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"trades_analyzed": outcome.TradesAnalyzed,
		"win_rate":        outcome.WinRate,
		"total_pnl":       outcome.TotalPnL,
		"suggestion":      outcome.Suggestion,
		"new_parameters":  outcome.NewConfig.Parameters,
	})
}

type promoteRequest struct {
	Strategy string             `json:"strategy"`
	Version  string             `json:"version"`
	Config   map[string]float64 `json:"config"`
}

func (s *Server) handlePromote(c *gin.Context) {
	var req promoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	if req.Strategy == "" || req.Version == "" || len(req.Config) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing strategy, version, or config"})
		return
	}

	promotedAt := time.Now().UnixMilli()
	cfg := &domain.StrategyConfig{
		ConfigID:   idhash.ComputeConfigID(req.Strategy, req.Version, req.Config, promotedAt),
		Strategy:   req.Strategy,
		Version:    req.Version,
		Parameters: req.Config,
		Active:     true,
		PromotedAt: promotedAt,
		CreatedAt:  promotedAt,
	}

	if err := s.configs.Promote(c.Request.Context(), cfg); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "configuration already exists"})
			return
		}
		s.logger.Printf("[server] promotion failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "strategy promoted", "config_id": cfg.ConfigID})
}

func (s *Server) handleActiveStrategy(c *gin.Context) {
	active, err := s.configs.GetActive(c.Request.Context())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusOK, nil)
			return
		}
		s.logger.Printf("[server] active strategy lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, toConfigResponse(active))
}

func (s *Server) handleExecutions(c *gin.Context) {
	records, err := s.executions.GetRecent(c.Request.Context(), executionsPageSize)
	if err != nil {
		s.logger.Printf("[server] executions lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, toExecutionResponses(records))
}

func (s *Server) handleResults(c *gin.Context) {
	results, err := s.results.GetTop(c.Request.Context(), resultsPageSize)
	if err != nil {
		s.logger.Printf("[server] results lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, toResultResponses(results))
}

type backtestRequest struct {
	TopN     int    `json:"top_n"`
	Strategy string `json:"strategy"`
	Version  string `json:"version"`
}

func (s *Server) handleBacktest(c *gin.Context) {
	var req backtestRequest
	// Body is optional; defaults cover the empty case.
	_ = c.ShouldBindJSON(&req)

	report, err := s.backtests.Run(c.Request.Context(), backtest.DefaultRanges(), backtest.Options{
		TopN:     req.TopN,
		Strategy: req.Strategy,
		Version:  req.Version,
	})
	if err != nil {
		if errors.Is(err, backtest.ErrNoHistory) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no alerts to test"})
			return
		}
		s.logger.Printf("[server] backtest failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"top":          toResultResponses(report.Top),
		"total_tested": report.TotalTested,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":        "trade-signal-lab",
		"uptime_seconds": int64(time.Since(s.start).Seconds()),
	})
}
