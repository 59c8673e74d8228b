package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ElSpaniard97/imbedded-csrma-ai-agent/internal/config"
	"github.com/ElSpaniard97/imbedded-csrma-ai-agent/internal/providers"
	"github.com/ElSpaniard97/imbedded-csrma-ai-agent/internal/service"
	"github.com/ElSpaniard97/imbedded-csrma-ai-agent/internal/store"
)

func NewRouter(
	cfg config.Config,
	auth *service.Auth,
	settings *store.Settings,
	scripts *store.Scripts,
	registry *providers.Registry,
	logger *slog.Logger,
) http.Handler {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	api := &API{
		cfg:      cfg,
		auth:     auth,
		settings: settings,
		scripts:  scripts,
		registry: registry,
		logger:   logger,
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/auth/login", api.login)
	r.POST("/auth/logout", api.logout)

	authed := r.Group("/api")
	authed.Use(api.requireSession)
	{
		authed.GET("/settings", api.getSettings)
		authed.PUT("/settings", api.putSettings)

		authed.POST("/scripts", api.uploadScript)
		authed.GET("/scripts", api.listScripts)
		authed.GET("/scripts/:id", api.getScript)
		authed.DELETE("/scripts/:id", api.deleteScript)

		authed.POST("/chat", api.chat)
	}

	return r
}
