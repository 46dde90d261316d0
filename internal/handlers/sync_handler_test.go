package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"stock-sync-service/internal/clients"
	"stock-sync-service/internal/config"
	"stock-sync-service/internal/models"
	"stock-sync-service/internal/repository"
	"stock-sync-service/internal/services"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// stubInventoryClient returns fixed, empty results so handler tests
// never hit the network.
type stubInventoryClient struct{}

var _ clients.InventoryClient = (*stubInventoryClient)(nil)

func (s *stubInventoryClient) TestConnection(ctx context.Context) error { return nil }
func (s *stubInventoryClient) ListOrders(ctx context.Context, opts clients.OrderListOptions) ([]clients.OrderSummary, error) {
	return nil, nil
}
func (s *stubInventoryClient) GetOrderDetail(ctx context.Context, saleID string) (*clients.OrderDetail, error) {
	return &clients.OrderDetail{SaleID: saleID}, nil
}
func (s *stubInventoryClient) ListProducts(ctx context.Context, opts clients.PageOptions) ([]clients.ProductRecord, error) {
	return nil, nil
}
func (s *stubInventoryClient) ListStockAvailability(ctx context.Context, opts clients.PageOptions) ([]clients.StockRecord, error) {
	return nil, nil
}

func setupTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	err = db.AutoMigrate(
		&models.Product{},
		&models.OrderLine{},
		&models.StockLevel{},
		&models.SyncState{},
		&models.SyncRun{},
		&models.SyncRunLog{},
		&models.SyncLock{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	cfg := &config.Config{
		SyncOverlap:     time.Hour,
		SyncPageSize:    100,
		SyncMaxOrders:   1000,
		SyncTimeout:     time.Minute,
		SyncLockTTL:     time.Minute,
		InitialLookback: 168 * time.Hour,
		LeadTimeDays:    30,
		BufferDays:      30,
	}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	orderRepo := repository.NewOrderRepository(db)
	productRepo := repository.NewProductRepository(db)
	stockRepo := repository.NewStockRepository(db)
	syncRepo := repository.NewSyncRepository(db)

	syncService := services.NewSyncService(&stubInventoryClient{}, orderRepo, productRepo, stockRepo, syncRepo, cfg, log)
	velocityService := services.NewVelocityService(orderRepo, stockRepo, cfg, log)

	syncHandler := NewSyncHandler(syncService)
	metricsHandler := NewMetricsHandler(velocityService)

	router := gin.New()
	router.POST("/api/v1/sync/orders", syncHandler.TriggerOrders)
	router.GET("/api/v1/sync/status", syncHandler.GetStatus)
	router.GET("/api/v1/sync/runs", syncHandler.ListRuns)
	router.GET("/api/v1/metrics/velocity", metricsHandler.GetVelocity)
	return router, db
}

func TestTriggerOrdersAccepted(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/orders", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)

	var body struct {
		Data models.SyncRun `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, models.SyncTypeOrders, body.Data.SyncType)
	assert.Equal(t, models.SyncRunRunning, body.Data.Status)
}

func TestTriggerOrdersConflictWhileLeaseHeld(t *testing.T) {
	router, db := setupTestRouter(t)

	syncRepo := repository.NewSyncRepository(db)
	assert.NoError(t, syncRepo.AcquireLock(context.Background(), "sync:orders", "other-run", time.Minute))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/orders", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetStatusEmpty(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/status", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data []services.SyncStatus `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Data, 3)
}

func TestGetVelocityEmpty(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics/velocity?days=30", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		WindowDays int `json:"windowDays"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 30, body.WindowDays)
}
