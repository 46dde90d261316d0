package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"stock-sync-service/internal/repository"
)

// CatalogHandler handles product and stock read endpoints
type CatalogHandler struct {
	productRepo *repository.ProductRepository
	stockRepo   *repository.StockRepository
	orderRepo   *repository.OrderRepository
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(productRepo *repository.ProductRepository, stockRepo *repository.StockRepository, orderRepo *repository.OrderRepository) *CatalogHandler {
	return &CatalogHandler{
		productRepo: productRepo,
		stockRepo:   stockRepo,
		orderRepo:   orderRepo,
	}
}

// ListProducts returns the synced product catalog
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	limit, offset := pagination(c, 50)

	products, total, err := h.productRepo.List(c.Request.Context(), c.Query("search"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": products, "total": total})
}

// GetProduct returns a single product by SKU
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	product, err := h.productRepo.GetBySKU(c.Request.Context(), c.Param("sku"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": product})
}

// ListStock returns the current stock snapshot
func (h *CatalogHandler) ListStock(c *gin.Context) {
	limit, offset := pagination(c, 50)

	levels, total, err := h.stockRepo.List(c.Request.Context(), c.Query("sku"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": levels, "total": total})
}

// ListOrders returns synced order lines
func (h *CatalogHandler) ListOrders(c *gin.Context) {
	limit, offset := pagination(c, 50)

	lines, total, err := h.orderRepo.List(c.Request.Context(), c.Query("sku"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": lines, "total": total})
}
