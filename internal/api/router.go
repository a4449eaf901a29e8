// Package api exposes session management over HTTP.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rustyeddy/tradesim/internal/api/handlers"
	"github.com/rustyeddy/tradesim/internal/api/middleware"
	"github.com/rustyeddy/tradesim/session"
)

type Options struct {
	Logger         *zap.Logger
	CORSOrigins    []string
	InitialBalance decimal.Decimal
}

// NewRouter wires the handlers. gin's mode is global and is left to the
// caller.
func NewRouter(m *session.Manager, opts Options) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()
	router.Use(middleware.CORS(opts.CORSOrigins), middleware.Logger(log), middleware.ErrorHandler(log))

	router.GET("/health", handlers.Health)

	sessions := handlers.NewSessionHandler(m, log, opts.InitialBalance)
	instruments := handlers.NewInstrumentHandler(m.Catalog(), m.Source())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/instruments", instruments.List)

		v1.POST("/sessions", sessions.Create)
		v1.GET("/sessions", sessions.List)
		v1.GET("/sessions/:id", sessions.Get)
		v1.GET("/sessions/:id/snapshot", sessions.Snapshot)
		v1.GET("/sessions/:id/positions", sessions.Positions)
		v1.GET("/sessions/:id/transactions", sessions.Transactions)
		v1.POST("/sessions/:id/orders", sessions.Order)
		v1.POST("/sessions/:id/control", sessions.Control)
		v1.POST("/sessions/:id/funds", sessions.Funds)
	}

	return router
}
