package http

import (
	"github.com/EternisAI/botping/internal/api/http/handler"
	"github.com/EternisAI/botping/internal/api/http/middleware"
	"github.com/EternisAI/botping/internal/history"
	"github.com/EternisAI/botping/internal/probe"
	"github.com/gin-gonic/gin"
)

type Services struct {
	Checker     *probe.Checker
	Registry    *probe.Registry
	Tokens      middleware.TokenVerifier
	History     *history.Store
	AdminAPIKey string
}

func SetupRoute(engine *gin.Engine, srvs *Services) {
	engine.Use(middleware.RequestLogger())
	engine.Use(middleware.ServerHeaders())
	engine.Use(middleware.ErrorCatcher())

	healthHandler := handler.NewHealthHandler()
	engine.GET("/health", healthHandler.Check)

	protected := engine.Group("/")
	protected.Use(middleware.TokenAuth(srvs.Tokens))

	pingHandler := handler.NewPingHandler(srvs.Checker)
	protected.GET("/ping/:handle", pingHandler.Ping)

	if srvs.History != nil {
		historyHandler := handler.NewHistoryHandler(srvs.History, srvs.Checker)
		protected.GET("/history/:handle", historyHandler.List)
	}

	admin := engine.Group("/admin")
	admin.Use(middleware.APIKeyAuth(srvs.AdminAPIKey))
	adminHandler := handler.NewAdminHandler(srvs.Registry)
	admin.GET("/probes", adminHandler.ListProbes)

	engine.NoRoute(handler.NotFound)
}
