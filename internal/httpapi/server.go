// Package httpapi is the thin HTTP adapter over the core services. It only
// translates requests and responses; validation, authorization of record
// ownership and persistence live below it.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fso-systems/travelreq/internal/allocation"
	"github.com/fso-systems/travelreq/internal/export"
	"github.com/fso-systems/travelreq/internal/reimbursement"
	"github.com/fso-systems/travelreq/internal/request"
)

// Config holds HTTP server configuration
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the HTTP adapter
type Server struct {
	config      Config
	httpServer  *http.Server
	router      *gin.Engine
	requests    *request.Store
	ledger      *reimbursement.Ledger
	allocations *allocation.Ledger
	statements  *export.Writer
	logger      *zap.Logger
}

// NewServer creates the HTTP server with all routes registered.
func NewServer(
	config Config,
	requests *request.Store,
	ledger *reimbursement.Ledger,
	allocations *allocation.Ledger,
	statements *export.Writer,
	logger *zap.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	s := &Server{
		config:      config,
		router:      router,
		requests:    requests,
		ledger:      ledger,
		allocations: allocations,
		statements:  statements,
		logger:      logger,
	}

	router.Use(gin.Recovery())
	router.Use(s.loggingMiddleware())
	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.router.Group("/api")
	{
		api.POST("/requests", s.handleCreateRevision)
		api.GET("/requests", s.handleGetRequests)
		api.DELETE("/requests/:requestId", s.handleDeleteDraft)
		api.GET("/requests/:requestId/activity", s.handleListActivity)
		api.GET("/requests/:requestId/statement", s.handleStatement)

		api.POST("/reimbursements", s.handleCreateReimbursement)
		api.POST("/fund-transactions", s.handleCreateFundTransaction)
		api.PUT("/fund-transactions/:id", s.handleUpdateFundTransaction)

		api.POST("/allocations", s.handleCreateAllocations)
		api.POST("/allocations/archive", s.handleArchiveAllocations)
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}

// Start runs the server until the context is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
