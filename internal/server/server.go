// Package server exposes the checkout intake and operator endpoints.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/subflowhq/rebill/internal/config"
	"github.com/subflowhq/rebill/internal/gateway"
	"github.com/subflowhq/rebill/internal/notify"
	paymentdomain "github.com/subflowhq/rebill/internal/payment/domain"
	"github.com/subflowhq/rebill/internal/rebill"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config     config.Config
	Log        *zap.Logger
	PaymentSvc paymentdomain.Service
	Gateway    gateway.Adapter
	Plans      *config.PlanCatalogHolder
	Notifier   *notify.Notifier
	Scheduler  *rebill.Scheduler
}

type Server struct {
	cfg        config.Config
	log        *zap.Logger
	paymentSvc paymentdomain.Service
	gateway    gateway.Adapter
	plans      *config.PlanCatalogHolder
	notifier   *notify.Notifier
	scheduler  *rebill.Scheduler
}

func New(p Params) *Server {
	return &Server{
		cfg:        p.Config,
		log:        p.Log.Named("server"),
		paymentSvc: p.PaymentSvc,
		gateway:    p.Gateway,
		plans:      p.Plans,
		notifier:   p.Notifier,
		scheduler:  p.Scheduler,
	}
}

func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/pay", s.handleCheckout)
	router.GET("/payments/export.csv", s.handleExportCSV)
	router.GET("/payments/:userHash", s.handlePaymentsByUserHash)

	return router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := strings.TrimSpace(c.GetHeader("X-Request-Id"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Writer.Header().Set("X-Request-Id", requestID)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		s.log.Info("http request",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	}
}

var Module = fx.Module("server",
	fx.Provide(New),
	fx.Invoke(Start),
)

// Start runs the HTTP server for the process lifetime.
func Start(lc fx.Lifecycle, log *zap.Logger, s *Server) {
	srv := &http.Server{
		Addr:              s.cfg.ServerAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("http server failed", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", s.cfg.ServerAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
