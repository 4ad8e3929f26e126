package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wirangar/bazarino-bot/internal/catalog"
	"github.com/wirangar/bazarino-bot/internal/logging"
)

// AdminHandler hosts the operator endpoints behind the catalog.write scope.
type AdminHandler struct {
	cache *catalog.Cache
}

func NewAdminHandler(cache *catalog.Cache) *AdminHandler {
	return &AdminHandler{cache: cache}
}

// RefreshCatalog forces a full reload, bypassing the version probe.
// POST /v1/admin/catalog/refresh
func (h *AdminHandler) RefreshCatalog(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	if err := h.cache.Refresh(ctx); err != nil {
		logging.From(c).Error("forced catalog refresh failed", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "try_again_later"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"version": h.cache.Version(), "stale": h.cache.Stale()})
}
