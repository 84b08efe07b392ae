// Package api exposes the order router over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"binance-futures-client/internal/auth"
	"binance-futures-client/internal/binance"
	"binance-futures-client/internal/metrics"
	"binance-futures-client/internal/orders"
)

// OrderService is the subset of *orders.Router the gateway serves
type OrderService interface {
	NewOrder(ctx context.Context, req binance.Params, testOnly bool) (*orders.OrderResult, error)
	NewBatchOrders(ctx context.Context, reqs []binance.Params) ([]orders.BatchResult, error)
	NewTrailingStopOrder(ctx context.Context, p orders.TrailingStopParams) (*orders.OrderResult, error)
	QueryOrder(ctx context.Context, params binance.Params, allowAlgoFallback bool) (*orders.OrderResult, error)
	CancelOrder(ctx context.Context, params binance.Params, allowAlgoFallback bool) (*orders.OrderResult, error)
	NewAlgoOrder(ctx context.Context, req binance.Params) (*orders.OrderResult, error)
	QueryAlgoOrder(ctx context.Context, params binance.Params) (*orders.OrderResult, error)
	CancelAlgoOrder(ctx context.Context, params binance.Params) (*orders.OrderResult, error)
	CancelOpenAlgoOrders(ctx context.Context, symbol string) error
	OpenAlgoOrders(ctx context.Context, params binance.Params) ([]binance.AlgoOrder, error)
	AllAlgoOrders(ctx context.Context, params binance.Params) ([]binance.AlgoOrder, error)
}

// LimiterStatus reports rate limiter state
type LimiterStatus interface {
	GetStatus() binance.Status
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Port           int
	Host           string
	AllowedOrigins []string
	ProductionMode bool
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	TLSCertFile    string // TLS is served when both files are set
	TLSKeyFile     string
}

// Server represents the HTTP API server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	orders     OrderService
	limiter    LimiterStatus
	jwtManager *auth.JWTManager
	config     ServerConfig
	logger     zerolog.Logger
	startedAt  time.Time
}

// NewServer builds the gateway. A nil jwtManager disables authentication and a
// nil limiter reports an empty status.
func NewServer(config ServerConfig, svc OrderService, limiter LimiterStatus, jwtManager *auth.JWTManager, logger zerolog.Logger) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())

	server := &Server{
		router:     router,
		orders:     svc,
		limiter:    limiter,
		jwtManager: jwtManager,
		config:     config,
		logger:     logger.With().Str("component", "api").Logger(),
		startedAt:  time.Now(),
	}

	router.Use(accessLogMiddleware(server.logger))
	router.Use(cors.New(corsConfig(config.AllowedOrigins)))

	server.setupRoutes()
	return server
}

func corsConfig(origins []string) cors.Config {
	corsConfig := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", requestIDHeader}
	corsConfig.ExposeHeaders = []string{"Content-Length", requestIDHeader}
	return corsConfig
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := s.router.Group("/api/v1")
	if s.jwtManager != nil {
		api.Use(auth.Middleware(s.jwtManager))
	}

	read := auth.RequireScope(auth.ScopeRead)
	trade := auth.RequireScope(auth.ScopeTrade)

	{
		api.POST("/orders", trade, s.handleNewOrder)
		api.POST("/orders/batch", trade, s.handleBatchOrders)
		api.POST("/orders/trailing-stop", trade, s.handleTrailingStop)
		api.GET("/orders", read, s.handleQueryOrder)
		api.DELETE("/orders", trade, s.handleCancelOrder)

		algo := api.Group("/algo/orders")
		{
			algo.POST("", trade, s.handleNewAlgoOrder)
			algo.GET("", read, s.handleQueryAlgoOrder)
			algo.DELETE("", trade, s.handleCancelAlgoOrder)
			algo.GET("/open", read, s.handleOpenAlgoOrders)
			algo.DELETE("/open", trade, s.handleCancelOpenAlgoOrders)
			algo.GET("/all", read, s.handleAllAlgoOrders)
		}

		api.GET("/ratelimit", read, s.handleRateLimitStatus)
	}
}

// Handler returns the HTTP handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	var err error
	if s.config.TLSCertFile != "" && s.config.TLSKeyFile != "" {
		s.logger.Info().Str("addr", addr).Msg("Starting HTTPS server")
		err = s.httpServer.ListenAndServeTLS(s.config.TLSCertFile, s.config.TLSKeyFile)
	} else {
		s.logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		err = s.httpServer.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	circuitOpen := false
	if s.limiter != nil {
		circuitOpen = s.limiter.GetStatus().CircuitOpen
		if circuitOpen {
			status = "degraded"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       status,
		"circuit_open": circuitOpen,
		"uptime":       time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func (s *Server) handleRateLimitStatus(c *gin.Context) {
	if s.limiter == nil {
		successResponse(c, binance.Status{})
		return
	}
	successResponse(c, s.limiter.GetStatus())
}

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, gin.H{
		"error":   code,
		"message": message,
	})
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// decodeJSON decodes the request body keeping numbers exact
func decodeJSON(c *gin.Context, v interface{}) error {
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	return dec.Decode(v)
}

// SplitOrigins parses a comma separated origin list
func SplitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
