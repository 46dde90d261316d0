package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"stock-sync-service/internal/clients"
	"stock-sync-service/internal/config"
	"stock-sync-service/internal/models"
	"stock-sync-service/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MockInventoryClient is a mock implementation of clients.InventoryClient
type MockInventoryClient struct {
	mock.Mock
}

var _ clients.InventoryClient = (*MockInventoryClient)(nil)

func (m *MockInventoryClient) TestConnection(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockInventoryClient) ListOrders(ctx context.Context, opts clients.OrderListOptions) ([]clients.OrderSummary, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]clients.OrderSummary), args.Error(1)
}

func (m *MockInventoryClient) GetOrderDetail(ctx context.Context, saleID string) (*clients.OrderDetail, error) {
	args := m.Called(ctx, saleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.OrderDetail), args.Error(1)
}

func (m *MockInventoryClient) ListProducts(ctx context.Context, opts clients.PageOptions) ([]clients.ProductRecord, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]clients.ProductRecord), args.Error(1)
}

func (m *MockInventoryClient) ListStockAvailability(ctx context.Context, opts clients.PageOptions) ([]clients.StockRecord, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]clients.StockRecord), args.Error(1)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
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
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		SyncOverlap:     time.Hour,
		SyncPageSize:    100,
		SyncMaxOrders:   1000,
		SyncTimeout:     time.Minute,
		SyncLockTTL:     time.Minute,
		InitialLookback: 168 * time.Hour,
		LeadTimeDays:    30,
		BufferDays:      30,
	}
}

func newTestSyncService(t *testing.T, client clients.InventoryClient) (*SyncService, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	svc := NewSyncService(
		client,
		repository.NewOrderRepository(db),
		repository.NewProductRepository(db),
		repository.NewStockRepository(db),
		repository.NewSyncRepository(db),
		testConfig(),
		log,
	)
	return svc, db
}

func newTestRun(t *testing.T, db *gorm.DB, syncType models.SyncType) *models.SyncRun {
	t.Helper()
	now := time.Now().UTC()
	since := now.Add(-24 * time.Hour)
	run := &models.SyncRun{
		ID:          uuid.New(),
		SyncType:    syncType,
		Status:      models.SyncRunRunning,
		TriggeredBy: models.TriggerManual,
		WindowSince: &since,
		WindowUntil: &now,
		StartedAt:   &now,
	}
	run.SetCounters(models.SyncCounters{})
	if err := repository.NewSyncRepository(db).CreateRun(context.Background(), run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	return run
}

func orderDetailFixture(saleID string, picks ...clients.PickLine) *clients.OrderDetail {
	return &clients.OrderDetail{
		SaleID:      saleID,
		Status:      "FULFILLED",
		Location:    "Main Warehouse",
		Fulfilments: []clients.Fulfilment{{PickLines: picks}},
	}
}

func TestSyncOrdersInsertsLines(t *testing.T) {
	client := new(MockInventoryClient)
	svc, db := newTestSyncService(t, client)
	run := newTestRun(t, db, models.SyncTypeOrders)

	orderDate := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
	client.On("ListOrders", mock.Anything, mock.Anything).Return([]clients.OrderSummary{
		{SaleID: "sale-1", OrderNumber: "SO-1001", Status: "FULFILLED", OrderDate: orderDate},
	}, nil).Once()
	client.On("GetOrderDetail", mock.Anything, "sale-1").Return(orderDetailFixture("sale-1",
		clients.PickLine{SKU: "SKU-A", Name: "Widget A", Quantity: 2, Location: "CNTVIC Melbourne"},
		clients.PickLine{SKU: "SKU-B", Name: "Widget B", Quantity: 1, Location: "WCLQLD Brisbane"},
	), nil).Once()

	counters := models.SyncCounters{}
	err := svc.syncOrders(context.Background(), run, orderDate.Add(-time.Hour), &counters)
	assert.NoError(t, err)

	assert.Equal(t, 1, counters.OrdersFound)
	assert.Equal(t, 1, counters.OrdersProcessed)
	assert.Equal(t, 2, counters.LinesInserted)
	assert.Equal(t, 0, counters.Errored)

	var lines []models.OrderLine
	assert.NoError(t, db.Order("sku").Find(&lines).Error)
	assert.Len(t, lines, 2)
	assert.Equal(t, "sale-1:SKU-A", lines[0].ReferenceID)
	assert.Equal(t, models.WarehouseVIC, lines[0].Warehouse)
	assert.Equal(t, models.WarehouseQLD, lines[1].Warehouse)

	// Lines also seed the product catalog.
	var products []models.Product
	assert.NoError(t, db.Find(&products).Error)
	assert.Len(t, products, 2)

	client.AssertExpectations(t)
}

func TestSyncOrdersSkipsVoided(t *testing.T) {
	client := new(MockInventoryClient)
	svc, db := newTestSyncService(t, client)
	run := newTestRun(t, db, models.SyncTypeOrders)

	client.On("ListOrders", mock.Anything, mock.Anything).Return([]clients.OrderSummary{
		{SaleID: "sale-1", OrderNumber: "SO-1001", Status: "VOIDED"},
		{SaleID: "sale-2", OrderNumber: "SO-1002", Status: "cancelled"},
	}, nil).Once()

	counters := models.SyncCounters{}
	err := svc.syncOrders(context.Background(), run, time.Now().Add(-time.Hour), &counters)
	assert.NoError(t, err)

	assert.Equal(t, 2, counters.SkippedVoided)
	assert.Equal(t, 0, counters.LinesInserted)
	client.AssertNotCalled(t, "GetOrderDetail", mock.Anything, mock.Anything)

	var count int64
	db.Model(&models.OrderLine{}).Count(&count)
	assert.Zero(t, count)
}

func TestSyncOrdersSkipsKnownSaleWithoutDetailFetch(t *testing.T) {
	client := new(MockInventoryClient)
	svc, db := newTestSyncService(t, client)
	run := newTestRun(t, db, models.SyncTypeOrders)

	// A line from a previous pass means the sale is already synced.
	existing := &models.OrderLine{
		OrderNumber: "SO-1001",
		SKU:         "SKU-A",
		Quantity:    2,
		Warehouse:   models.WarehouseNSW,
		BookingDate: time.Now().UTC(),
		ReferenceID: models.BuildReferenceID("sale-1", "SKU-A"),
	}
	assert.NoError(t, db.Create(existing).Error)

	client.On("ListOrders", mock.Anything, mock.Anything).Return([]clients.OrderSummary{
		{SaleID: "sale-1", OrderNumber: "SO-1001", Status: "FULFILLED"},
	}, nil).Once()

	counters := models.SyncCounters{}
	err := svc.syncOrders(context.Background(), run, time.Now().Add(-time.Hour), &counters)
	assert.NoError(t, err)

	assert.Equal(t, 1, counters.SkippedDuplicate)
	client.AssertNotCalled(t, "GetOrderDetail", mock.Anything, mock.Anything)
}

func TestSyncOrdersReplaySafe(t *testing.T) {
	client := new(MockInventoryClient)
	svc, db := newTestSyncService(t, client)

	orderDate := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
	summary := []clients.OrderSummary{
		{SaleID: "sale-1", OrderNumber: "SO-1001", Status: "FULFILLED", OrderDate: orderDate},
	}
	detail := orderDetailFixture("sale-1",
		clients.PickLine{SKU: "SKU-A", Name: "Widget A", Quantity: 2},
	)
	client.On("ListOrders", mock.Anything, mock.Anything).Return(summary, nil).Twice()
	client.On("GetOrderDetail", mock.Anything, "sale-1").Return(detail, nil).Once()

	first := models.SyncCounters{}
	run1 := newTestRun(t, db, models.SyncTypeOrders)
	assert.NoError(t, svc.syncOrders(context.Background(), run1, orderDate.Add(-time.Hour), &first))
	assert.Equal(t, 1, first.LinesInserted)

	// Replaying the same window must not duplicate lines or refetch
	// the detail.
	second := models.SyncCounters{}
	run2 := newTestRun(t, db, models.SyncTypeOrders)
	assert.NoError(t, svc.syncOrders(context.Background(), run2, orderDate.Add(-time.Hour), &second))
	assert.Equal(t, 0, second.LinesInserted)
	assert.Equal(t, 1, second.SkippedDuplicate)

	var count int64
	db.Model(&models.OrderLine{}).Count(&count)
	assert.Equal(t, int64(1), count)

	client.AssertExpectations(t)
}

func TestSyncOrdersCountsMalformedOrders(t *testing.T) {
	client := new(MockInventoryClient)
	svc, db := newTestSyncService(t, client)
	run := newTestRun(t, db, models.SyncTypeOrders)

	client.On("ListOrders", mock.Anything, mock.Anything).Return([]clients.OrderSummary{
		{SaleID: "sale-1", OrderNumber: "SO-1001", Status: "FULFILLED"},
		{SaleID: "sale-2", OrderNumber: "SO-1002", Status: "FULFILLED"},
	}, nil).Once()
	client.On("GetOrderDetail", mock.Anything, "sale-1").Return(nil,
		&clients.MalformedResponseError{Operation: "Sale", Err: errors.New("unexpected payload")}).Once()
	client.On("GetOrderDetail", mock.Anything, "sale-2").Return(orderDetailFixture("sale-2",
		clients.PickLine{SKU: "SKU-B", Name: "Widget B", Quantity: 1},
	), nil).Once()

	counters := models.SyncCounters{}
	err := svc.syncOrders(context.Background(), run, time.Now().Add(-time.Hour), &counters)
	assert.NoError(t, err)

	// The malformed order is counted but the pass keeps going.
	assert.Equal(t, 1, counters.Errored)
	assert.Equal(t, 1, counters.OrdersProcessed)
	assert.Equal(t, 1, counters.LinesInserted)
}

func TestSyncOrdersAbortsOnTransientDetailFailure(t *testing.T) {
	client := new(MockInventoryClient)
	svc, db := newTestSyncService(t, client)
	run := newTestRun(t, db, models.SyncTypeOrders)

	client.On("ListOrders", mock.Anything, mock.Anything).Return([]clients.OrderSummary{
		{SaleID: "sale-1", OrderNumber: "SO-1001", Status: "FULFILLED"},
		{SaleID: "sale-2", OrderNumber: "SO-1002", Status: "FULFILLED"},
	}, nil).Once()
	client.On("GetOrderDetail", mock.Anything, "sale-1").Return(nil,
		&clients.TransientFetchError{Operation: "/Sale", StatusCode: 503, Attempts: 5, Err: errors.New("unavailable")}).Once()

	counters := models.SyncCounters{}
	err := svc.syncOrders(context.Background(), run, time.Now().Add(-time.Hour), &counters)
	assert.Error(t, err)
	assert.True(t, clients.IsTransient(err))

	// The pass stops before touching the second order.
	client.AssertNotCalled(t, "GetOrderDetail", mock.Anything, "sale-2")
}

func TestExecuteRunAdvancesWatermarkOnSuccess(t *testing.T) {
	client := new(MockInventoryClient)
	svc, db := newTestSyncService(t, client)
	run := newTestRun(t, db, models.SyncTypeOrders)

	client.On("ListOrders", mock.Anything, mock.Anything).Return([]clients.OrderSummary{}, nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	svc.executeRun(ctx, cancel, run, "sync:orders", *run.WindowSince)

	syncRepo := repository.NewSyncRepository(db)
	stored, err := syncRepo.GetRun(context.Background(), run.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.SyncRunCompleted, stored.Status)

	state, err := syncRepo.GetState(context.Background(), models.SyncTypeOrders)
	assert.NoError(t, err)
	assert.NotNil(t, state)
	assert.True(t, state.LastSyncSuccess)
	assert.WithinDuration(t, *run.WindowUntil, state.LastSyncTimestamp, time.Second)
}

func TestExecuteRunKeepsWatermarkOnFailure(t *testing.T) {
	client := new(MockInventoryClient)
	svc, db := newTestSyncService(t, client)
	syncRepo := repository.NewSyncRepository(db)

	// Seed a watermark from an earlier successful pass.
	previous := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	assert.NoError(t, syncRepo.SetState(context.Background(), &models.SyncState{
		SyncType:          models.SyncTypeOrders,
		LastSyncTimestamp: previous,
		LastSyncSuccess:   true,
	}))

	client.On("ListOrders", mock.Anything, mock.Anything).Return(nil,
		&clients.TransientFetchError{Operation: "/SaleList", StatusCode: 503, Attempts: 5, Err: errors.New("unavailable")}).Once()

	run := newTestRun(t, db, models.SyncTypeOrders)
	ctx, cancel := context.WithCancel(context.Background())
	svc.executeRun(ctx, cancel, run, "sync:orders", *run.WindowSince)

	stored, err := syncRepo.GetRun(context.Background(), run.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.SyncRunFailed, stored.Status)
	assert.NotEmpty(t, stored.ErrorMessage)

	state, err := syncRepo.GetState(context.Background(), models.SyncTypeOrders)
	assert.NoError(t, err)
	assert.False(t, state.LastSyncSuccess)
	assert.WithinDuration(t, previous, state.LastSyncTimestamp, time.Second)
}

func TestStartSyncRejectsConcurrentRuns(t *testing.T) {
	client := new(MockInventoryClient)
	svc, db := newTestSyncService(t, client)
	syncRepo := repository.NewSyncRepository(db)

	// Another holder owns the lease.
	assert.NoError(t, syncRepo.AcquireLock(context.Background(), "sync:orders", "other", time.Minute))

	_, err := svc.StartSync(context.Background(), models.SyncTypeOrders, models.TriggerManual)
	assert.ErrorIs(t, err, repository.ErrSyncInProgress)
}

func TestSyncProductsUpserts(t *testing.T) {
	client := new(MockInventoryClient)
	svc, db := newTestSyncService(t, client)
	run := newTestRun(t, db, models.SyncTypeProducts)

	client.On("ListProducts", mock.Anything, mock.Anything).Return([]clients.ProductRecord{
		{SKU: "SKU-A", Name: "Widget A", Length: 200, Width: 100, Height: 50, Weight: 1.5, Barcode: "93001"},
		{SKU: "", Name: "no sku, skipped"},
	}, nil).Once()

	counters := models.SyncCounters{}
	assert.NoError(t, svc.syncProducts(context.Background(), run, &counters))
	assert.Equal(t, 1, counters.OrdersProcessed)

	var product models.Product
	assert.NoError(t, db.Where("sku = ?", "SKU-A").First(&product).Error)
	assert.Equal(t, "Widget A", product.Description)
	assert.InDelta(t, 0.001, product.CBM, 1e-9)
}

func TestSyncStockReplacesSnapshot(t *testing.T) {
	client := new(MockInventoryClient)
	svc, db := newTestSyncService(t, client)

	// Stale snapshot from a previous pass.
	assert.NoError(t, db.Create(&models.StockLevel{SKU: "OLD", Warehouse: models.WarehouseNSW, Available: 5}).Error)

	client.On("ListStockAvailability", mock.Anything, mock.Anything).Return([]clients.StockRecord{
		{SKU: "SKU-A", Location: "CNTVIC Melbourne", Available: 10, OnHand: 12, Allocated: 2},
	}, nil).Once()

	run := newTestRun(t, db, models.SyncTypeStock)
	counters := models.SyncCounters{}
	assert.NoError(t, svc.syncStock(context.Background(), run, &counters))

	var levels []models.StockLevel
	assert.NoError(t, db.Find(&levels).Error)
	assert.Len(t, levels, 1)
	assert.Equal(t, "SKU-A", levels[0].SKU)
	assert.Equal(t, models.WarehouseVIC, levels[0].Warehouse)
}
