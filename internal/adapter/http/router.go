package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wirangar/bazarino-bot/internal/adapter/http/middleware"
	"github.com/wirangar/bazarino-bot/internal/logging"
)

func NewRouter(sh *SessionHandler, ch *CatalogHandler, ah *AdminHandler, th *TokenHandler, authz *middleware.Authz) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.MetricsMiddleware())

	l := logging.New("http")
	r.Use(middleware.Logging(l))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	// Prometheus endpoint (scraped by Prometheus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/v1/token", th.IssueToken)

	v1 := r.Group("/v1")
	{
		v1.GET("/catalog", authz.Require("engine.read"), ch.List)
		v1.GET("/catalog/categories", authz.Require("engine.read"), ch.Categories)
		v1.GET("/catalog/search", authz.Require("engine.read"), ch.Search)
		v1.GET("/catalog/:id", authz.Require("engine.read"), ch.Get)

		v1.GET("/sessions/:id", authz.Require("engine.read"), sh.GetSession)
		v1.POST("/sessions/:id/commands", authz.Require("engine.write"), sh.HandleCommand)

		v1.POST("/admin/catalog/refresh", authz.Require("catalog.write"), ah.RefreshCatalog)
	}

	return r
}
