package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wirangar/bazarino-bot/internal/catalog"
	domain "github.com/wirangar/bazarino-bot/internal/entity"
	"github.com/wirangar/bazarino-bot/internal/logging"
)

// CatalogHandler serves the menu and /search surfaces. Reads go through the
// cache; a failed refresh degrades to the previous snapshot with a stale
// marker instead of an error.
type CatalogHandler struct {
	cache *catalog.Cache
}

func NewCatalogHandler(cache *catalog.Cache) *CatalogHandler {
	return &CatalogHandler{cache: cache}
}

type productView struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	NameFA      string `json:"nameFa"`
	NameIT      string `json:"nameIt"`
	Brand       string `json:"brand,omitempty"`
	Description string `json:"description,omitempty"`
	Weight      string `json:"weight,omitempty"`
	Price       string `json:"price"`
	ImageURL    string `json:"imageUrl,omitempty"`
	Stock       int    `json:"stock"`
	Bestseller  bool   `json:"bestseller,omitempty"`
}

func viewProduct(p domain.Product) productView {
	return productView{
		ID:          p.ID,
		Category:    p.Category,
		NameFA:      p.NameFA,
		NameIT:      p.NameIT,
		Brand:       p.Brand,
		Description: p.Description,
		Weight:      p.Weight,
		Price:       p.Price.StringFixed(2),
		ImageURL:    p.ImageURL,
		Stock:       p.Stock,
		Bestseller:  p.Bestseller,
	}
}

func (h *CatalogHandler) list(c *gin.Context, pick func() []domain.Product) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.cache.RefreshIfStale(ctx); err != nil {
		logging.From(c).Warn("catalog refresh failed, serving cached snapshot", "err", err)
	}
	products := pick()
	out := make([]productView, 0, len(products))
	for _, p := range products {
		out = append(out, viewProduct(p))
	}
	c.JSON(http.StatusOK, gin.H{"products": out, "stale": h.cache.Stale()})
}

// GET /v1/catalog
func (h *CatalogHandler) List(c *gin.Context) {
	if cat := c.Query("category"); cat != "" {
		h.list(c, func() []domain.Product { return h.cache.ByCategory(cat) })
		return
	}
	h.list(c, h.cache.Snapshot)
}

// GET /v1/catalog/categories
func (h *CatalogHandler) Categories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": h.cache.Categories()})
}

// GET /v1/catalog/search?q=...
func (h *CatalogHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query"})
		return
	}
	h.list(c, func() []domain.Product { return h.cache.Search(q) })
}

// GET /v1/catalog/:id
func (h *CatalogHandler) Get(c *gin.Context) {
	p, err := h.cache.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "item_unavailable"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "try_again_later"})
		return
	}
	c.JSON(http.StatusOK, viewProduct(p))
}
