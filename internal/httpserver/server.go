package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/docledger/pkg/audit"
	"github.com/MarkoPoloResearchLab/docledger/pkg/billing"
	"github.com/MarkoPoloResearchLab/docledger/pkg/numbering"
)

// Dependencies carries the wired domain services.
type Dependencies struct {
	Numbers   *numbering.Service
	Ledger    *audit.Service
	Documents *billing.Repository
	Logger    *zap.Logger
}

func (deps Dependencies) validate() error {
	if deps.Numbers == nil || deps.Ledger == nil || deps.Documents == nil || deps.Logger == nil {
		return fmt.Errorf("httpserver: missing dependency")
	}
	return nil
}

// Run boots the HTTP facade and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg Config, deps Dependencies) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := deps.validate(); err != nil {
		return err
	}

	handler := &httpHandler{deps: deps}
	router := setupRouter(cfg, handler)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		deps.Logger.Info("docledger api listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			deps.Logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func setupRouter(cfg Config, handler *httpHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.POST("/reservations", handler.handleReserve)
	api.POST("/reservations/:id/finalize", handler.handleFinalize)
	api.POST("/reservations/:id/release", handler.handleRelease)
	api.GET("/counters/:kind", handler.handlePeekCounter)
	api.PUT("/counters/:kind", handler.handleSetCounterFormat)
	api.POST("/invoices", handler.handleCreateInvoice)
	api.PUT("/invoices/:id", handler.handleUpsertInvoice)
	api.DELETE("/invoices/:id", handler.handleDeleteInvoice)
	api.POST("/offers", handler.handleCreateOffer)
	api.PUT("/offers/:id", handler.handleUpsertOffer)
	api.DELETE("/offers/:id", handler.handleDeleteOffer)
	api.GET("/audit", handler.handleExportAudit)
	api.GET("/audit/verify", handler.handleVerifyAudit)

	return router
}
