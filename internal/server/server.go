// Package server exposes the signal pipeline over HTTP.
package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"trade-signal-lab/internal/backtest"
	"trade-signal-lab/internal/gate"
	"trade-signal-lab/internal/observability"
	"trade-signal-lab/internal/optimizer"
	"trade-signal-lab/internal/storage"
)

// Config configures the HTTP server.
type Config struct {
	// OptimizeSecret guards POST /api/optimize. Empty disables the
	// endpoint entirely rather than leaving it open.
	OptimizeSecret string
}

// Server is the HTTP front of the pipeline.
type Server struct {
	gate      *gate.Gate
	optimizer *optimizer.Optimizer
	backtests *backtest.Runner

	configs    storage.StrategyConfigStore
	executions storage.ExecutionStore
	results    storage.BacktestResultStore

	config Config
	logger *log.Logger
	start  time.Time

	engine *gin.Engine
}

// New creates a server and registers all routes.
func New(g *gate.Gate, opt *optimizer.Optimizer, bt *backtest.Runner,
	configs storage.StrategyConfigStore, executions storage.ExecutionStore, results storage.BacktestResultStore,
	config Config, logger *log.Logger) *Server {

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		gate:       g,
		optimizer:  opt,
		backtests:  bt,
		configs:    configs,
		executions: executions,
		results:    results,
		config:     config,
		logger:     logger,
		start:      time.Now(),
		engine:     engine,
	}

	api := engine.Group("/api")
	{
		api.GET("/webhook", s.handleWebhookLiveness)
		api.POST("/webhook", s.handleWebhook)
		api.POST("/execute", s.handleExecute)
		api.POST("/optimize", s.requireOptimizeAuth, s.handleOptimize)
		api.POST("/strategy/promote", s.handlePromote)
		api.GET("/strategy/active", s.handleActiveStrategy)
		api.GET("/executions", s.handleExecutions)
		api.GET("/results", s.handleResults)
		api.POST("/backtest", s.handleBacktest)
	}

	engine.GET("/health", s.handleHealth)
	engine.GET("/status", s.handleStatus)
	engine.GET("/metrics", gin.WrapH(observability.Handler()))

	return s
}

// Handler returns the router for use with an http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// requireOptimizeAuth enforces the bearer secret on the optimize
// trigger, the same way the scheduled caller authenticates.
func (s *Server) requireOptimizeAuth(c *gin.Context) {
	if s.config.OptimizeSecret == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "optimization trigger is not configured"})
		return
	}
	if c.GetHeader("Authorization") != "Bearer "+s.config.OptimizeSecret {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}
