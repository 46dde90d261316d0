package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"stock-sync-service/internal/clients"
	"stock-sync-service/internal/config"
	"stock-sync-service/internal/models"
	"stock-sync-service/internal/repository"
)

// voidedStatuses are sale statuses that must never produce order lines.
var voidedStatuses = map[string]struct{}{
	"VOIDED":    {},
	"VOID":      {},
	"CANCELLED": {},
	"CANCELED":  {},
}

func isVoided(status string) bool {
	_, ok := voidedStatuses[strings.ToUpper(status)]
	return ok
}

// SyncService runs incremental sync passes against the inventory API.
// Each pass holds a database lease for its sync type, pulls pages since
// the last watermark minus an overlap window, and only advances the
// watermark when the whole pass succeeds.
type SyncService struct {
	client      clients.InventoryClient
	orderRepo   *repository.OrderRepository
	productRepo *repository.ProductRepository
	stockRepo   *repository.StockRepository
	syncRepo    *repository.SyncRepository
	extractor   *LineExtractor
	warehouses  *WarehouseMapper
	config      *config.Config
	log         *logrus.Entry
	activeRuns  map[uuid.UUID]context.CancelFunc
	mu          sync.RWMutex
}

// NewSyncService creates a new sync service.
func NewSyncService(
	client clients.InventoryClient,
	orderRepo *repository.OrderRepository,
	productRepo *repository.ProductRepository,
	stockRepo *repository.StockRepository,
	syncRepo *repository.SyncRepository,
	cfg *config.Config,
	logger *logrus.Logger,
) *SyncService {
	return &SyncService{
		client:      client,
		orderRepo:   orderRepo,
		productRepo: productRepo,
		stockRepo:   stockRepo,
		syncRepo:    syncRepo,
		extractor:   NewLineExtractor(),
		warehouses:  NewWarehouseMapper(),
		config:      cfg,
		log:         logger.WithField("component", "sync"),
		activeRuns:  make(map[uuid.UUID]context.CancelFunc),
	}
}

// StartSync acquires the lease for a sync type, records a RUNNING run
// and executes the pass in the background. Returns
// repository.ErrSyncInProgress when the lease is held.
func (s *SyncService) StartSync(ctx context.Context, syncType models.SyncType, triggeredBy models.TriggerType) (*models.SyncRun, error) {
	runID := uuid.New()
	lockName := "sync:" + string(syncType)

	if err := s.syncRepo.AcquireLock(ctx, lockName, runID.String(), s.config.SyncLockTTL); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	since, err := s.windowStart(ctx, syncType, now)
	if err != nil {
		_ = s.syncRepo.ReleaseLock(ctx, lockName, runID.String())
		return nil, err
	}

	run := &models.SyncRun{
		ID:          runID,
		SyncType:    syncType,
		Status:      models.SyncRunRunning,
		TriggeredBy: triggeredBy,
		WindowSince: &since,
		WindowUntil: &now,
		StartedAt:   &now,
	}
	run.SetCounters(models.SyncCounters{})
	if err := s.syncRepo.CreateRun(ctx, run); err != nil {
		_ = s.syncRepo.ReleaseLock(ctx, lockName, runID.String())
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(context.Background(), s.config.SyncTimeout)
	s.mu.Lock()
	s.activeRuns[runID] = cancel
	s.mu.Unlock()

	go s.executeRun(runCtx, cancel, run, lockName, since)

	return run, nil
}

// windowStart computes where a pass should start reading from: the last
// successful watermark pulled back by the overlap, or the initial
// lookback when this type has never synced.
func (s *SyncService) windowStart(ctx context.Context, syncType models.SyncType, now time.Time) (time.Time, error) {
	state, err := s.syncRepo.GetState(ctx, syncType)
	if err != nil {
		return time.Time{}, err
	}
	if state == nil || state.LastSyncTimestamp.IsZero() {
		return now.Add(-s.config.InitialLookback), nil
	}
	return state.LastSyncTimestamp.Add(-s.config.SyncOverlap), nil
}

func (s *SyncService) executeRun(ctx context.Context, cancel context.CancelFunc, run *models.SyncRun, lockName string, since time.Time) {
	defer cancel()
	defer func() {
		s.mu.Lock()
		delete(s.activeRuns, run.ID)
		s.mu.Unlock()
		_ = s.syncRepo.ReleaseLock(context.Background(), lockName, run.ID.String())
	}()

	s.logEvent(ctx, run.ID, models.LogLevelInfo, "sync started", models.JSONB{
		"sync_type": string(run.SyncType),
		"since":     since.Format(time.RFC3339),
	})

	counters := models.SyncCounters{}
	var syncErr error
	switch run.SyncType {
	case models.SyncTypeOrders:
		syncErr = s.syncOrders(ctx, run, since, &counters)
	case models.SyncTypeProducts:
		syncErr = s.syncProducts(ctx, run, &counters)
	case models.SyncTypeStock:
		syncErr = s.syncStock(ctx, run, &counters)
	default:
		syncErr = fmt.Errorf("unsupported sync type: %s", run.SyncType)
	}

	// Per-order errors fail the pass too, so the overlap window re-reads
	// those orders next time.
	if syncErr == nil && counters.Errored > 0 {
		syncErr = fmt.Errorf("%d orders failed during sync", counters.Errored)
	}

	finishCtx := context.Background()
	completed := time.Now().UTC()
	run.CompletedAt = &completed
	run.SetCounters(counters)

	switch {
	case syncErr != nil && ctx.Err() != nil:
		run.Status = models.SyncRunCancelled
		run.ErrorMessage = "cancelled"
		s.recordState(finishCtx, run.SyncType, time.Time{}, false, "cancelled")
	case syncErr != nil:
		run.Status = models.SyncRunFailed
		run.ErrorMessage = syncErr.Error()
		s.recordState(finishCtx, run.SyncType, time.Time{}, false, syncErr.Error())
		s.logEvent(finishCtx, run.ID, models.LogLevelError, "sync failed", models.JSONB{"error": syncErr.Error()})
	default:
		run.Status = models.SyncRunCompleted
		s.recordState(finishCtx, run.SyncType, *run.WindowUntil, true, "")
		s.logEvent(finishCtx, run.ID, models.LogLevelInfo, "sync completed", models.JSONB{
			"orders_found":      counters.OrdersFound,
			"orders_processed":  counters.OrdersProcessed,
			"lines_inserted":    counters.LinesInserted,
			"skipped_duplicate": counters.SkippedDuplicate,
			"skipped_voided":    counters.SkippedVoided,
		})
	}

	if err := s.syncRepo.UpdateRun(finishCtx, run); err != nil {
		s.log.WithError(err).WithField("run_id", run.ID).Error("failed to persist run outcome")
	}

	s.log.WithFields(logrus.Fields{
		"run_id":            run.ID,
		"sync_type":         run.SyncType,
		"status":            run.Status,
		"orders_found":      counters.OrdersFound,
		"orders_processed":  counters.OrdersProcessed,
		"lines_inserted":    counters.LinesInserted,
		"skipped_duplicate": counters.SkippedDuplicate,
		"skipped_voided":    counters.SkippedVoided,
		"errored":           counters.Errored,
	}).Info("sync run finished")
}

// recordState updates the per-type watermark row. A zero watermark means
// keep whatever timestamp is already stored.
func (s *SyncService) recordState(ctx context.Context, syncType models.SyncType, watermark time.Time, success bool, errMsg string) {
	state, err := s.syncRepo.GetState(ctx, syncType)
	if err != nil {
		s.log.WithError(err).Error("failed to load sync state")
		return
	}
	next := &models.SyncState{SyncType: syncType, LastSyncSuccess: success, LastError: errMsg}
	if !watermark.IsZero() {
		next.LastSyncTimestamp = watermark
	} else if state != nil {
		next.LastSyncTimestamp = state.LastSyncTimestamp
	}
	if err := s.syncRepo.SetState(ctx, next); err != nil {
		s.log.WithError(err).Error("failed to persist sync state")
	}
}

// checkpoint persists run counters after each page and extends the
// lease so a long pass keeps its single-writer guarantee.
func (s *SyncService) checkpoint(ctx context.Context, run *models.SyncRun, counters models.SyncCounters) {
	run.SetCounters(counters)
	if err := s.syncRepo.UpdateRun(ctx, run); err != nil {
		s.log.WithError(err).Warn("failed to checkpoint run counters")
	}
	lockName := "sync:" + string(run.SyncType)
	if err := s.syncRepo.RefreshLock(ctx, lockName, run.ID.String(), s.config.SyncLockTTL); err != nil {
		s.log.WithError(err).Warn("failed to refresh sync lease")
	}
}

func (s *SyncService) syncOrders(ctx context.Context, run *models.SyncRun, since time.Time, counters *models.SyncCounters) error {
	references, err := s.orderRepo.PreloadReferences(ctx)
	if err != nil {
		return fmt.Errorf("failed to preload references: %w", err)
	}
	// Sale ids with at least one stored line; lets us skip the detail
	// fetch for orders already synced.
	knownSales := make(map[string]struct{}, len(references))
	for ref := range references {
		if idx := strings.IndexByte(ref, ':'); idx > 0 {
			knownSales[ref[:idx]] = struct{}{}
		}
	}

	page := 1
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		orders, err := s.client.ListOrders(ctx, clients.OrderListOptions{
			Page:         page,
			Limit:        s.config.SyncPageSize,
			CreatedSince: since,
		})
		if err != nil {
			return fmt.Errorf("failed to list orders page %d: %w", page, err)
		}
		if len(orders) == 0 {
			break
		}
		counters.OrdersFound += len(orders)

		for _, order := range orders {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			if isVoided(order.Status) {
				counters.SkippedVoided++
				continue
			}
			if _, ok := knownSales[order.SaleID]; ok {
				counters.SkippedDuplicate++
				continue
			}

			if err := s.processOrder(ctx, run, order, references, counters); err != nil {
				// A transient failure here already exhausted its retry
				// budget; the upstream is down and the rest of the pass
				// would only burn quota. Anything else is order-local.
				if clients.IsTransient(err) || ctx.Err() != nil {
					return fmt.Errorf("order %s: %w", order.SaleID, err)
				}
				counters.Errored++
				s.logEvent(ctx, run.ID, models.LogLevelWarn, "order failed", models.JSONB{
					"sale_id": order.SaleID,
					"error":   err.Error(),
				})
				continue
			}
			knownSales[order.SaleID] = struct{}{}
			counters.OrdersProcessed++
		}

		s.checkpoint(ctx, run, *counters)

		if counters.OrdersFound >= s.config.SyncMaxOrders {
			s.logEvent(ctx, run.ID, models.LogLevelWarn, "order cap reached", models.JSONB{
				"max_orders": s.config.SyncMaxOrders,
			})
			break
		}
		if len(orders) < s.config.SyncPageSize {
			break
		}
		page++
	}

	return nil
}

func (s *SyncService) processOrder(ctx context.Context, run *models.SyncRun, order clients.OrderSummary, references map[string]struct{}, counters *models.SyncCounters) error {
	detail, err := s.client.GetOrderDetail(ctx, order.SaleID)
	if err != nil {
		return err
	}
	if isVoided(detail.Status) {
		counters.SkippedVoided++
		return nil
	}

	lines := s.extractor.Extract(detail)
	if len(lines) == 0 {
		s.logEvent(ctx, run.ID, models.LogLevelDebug, "order has no sellable lines", models.JSONB{
			"sale_id": order.SaleID,
		})
		return nil
	}

	bookingDate := order.OrderDate
	if bookingDate.IsZero() {
		bookingDate = time.Now().UTC()
	}

	for _, line := range lines {
		referenceID := models.BuildReferenceID(order.SaleID, line.SKU)
		if _, ok := references[referenceID]; ok {
			counters.SkippedDuplicate++
			continue
		}

		if err := s.productRepo.EnsureProduct(ctx, line.SKU, line.Name); err != nil {
			return fmt.Errorf("failed to ensure product %s: %w", line.SKU, err)
		}

		err := s.orderRepo.Insert(ctx, &models.OrderLine{
			OrderNumber: order.OrderNumber,
			SKU:         line.SKU,
			Quantity:    line.Quantity,
			Warehouse:   s.warehouses.Map(line.Location),
			BookingDate: bookingDate,
			ReferenceID: referenceID,
		})
		if err == repository.ErrDuplicateReference {
			counters.SkippedDuplicate++
			references[referenceID] = struct{}{}
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to insert line %s: %w", referenceID, err)
		}
		references[referenceID] = struct{}{}
		counters.LinesInserted++
	}

	return nil
}

func (s *SyncService) syncProducts(ctx context.Context, run *models.SyncRun, counters *models.SyncCounters) error {
	page := 1
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		products, err := s.client.ListProducts(ctx, clients.PageOptions{
			Page:  page,
			Limit: s.config.SyncPageSize,
		})
		if err != nil {
			return fmt.Errorf("failed to list products page %d: %w", page, err)
		}
		if len(products) == 0 {
			break
		}
		counters.OrdersFound += len(products)

		for _, p := range products {
			if p.SKU == "" {
				continue
			}
			product := &models.Product{
				SKU:         p.SKU,
				Description: p.Name,
				Length:      p.Length,
				Width:       p.Width,
				Height:      p.Height,
				Weight:      p.Weight,
				Barcode:     p.Barcode,
				CBM:         models.ComputeCBM(p.Length, p.Width, p.Height),
			}
			if err := s.productRepo.UpsertProduct(ctx, product); err != nil {
				counters.Errored++
				s.logEvent(ctx, run.ID, models.LogLevelWarn, "product upsert failed", models.JSONB{
					"sku":   p.SKU,
					"error": err.Error(),
				})
				continue
			}
			counters.OrdersProcessed++
		}

		s.checkpoint(ctx, run, *counters)

		if len(products) < s.config.SyncPageSize {
			break
		}
		page++
	}
	return nil
}

func (s *SyncService) syncStock(ctx context.Context, run *models.SyncRun, counters *models.SyncCounters) error {
	var levels []models.StockLevel
	now := time.Now().UTC()

	page := 1
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		records, err := s.client.ListStockAvailability(ctx, clients.PageOptions{
			Page:  page,
			Limit: s.config.SyncPageSize,
		})
		if err != nil {
			return fmt.Errorf("failed to list stock page %d: %w", page, err)
		}
		if len(records) == 0 {
			break
		}
		counters.OrdersFound += len(records)

		for _, rec := range records {
			if rec.SKU == "" {
				continue
			}
			levels = append(levels, models.StockLevel{
				SKU:       rec.SKU,
				Warehouse: s.warehouses.Map(rec.Location),
				Location:  rec.Location,
				Available: rec.Available,
				OnHand:    rec.OnHand,
				Allocated: rec.Allocated,
				UpdatedAt: now,
			})
			counters.OrdersProcessed++
		}

		s.checkpoint(ctx, run, *counters)

		if len(records) < s.config.SyncPageSize {
			break
		}
		page++
	}

	if err := s.stockRepo.ReplaceAll(ctx, levels); err != nil {
		return fmt.Errorf("failed to replace stock snapshot: %w", err)
	}
	return nil
}

// GetRun retrieves a run by id.
func (s *SyncService) GetRun(ctx context.Context, id uuid.UUID) (*models.SyncRun, error) {
	return s.syncRepo.GetRun(ctx, id)
}

// ListRuns retrieves run history.
func (s *SyncService) ListRuns(ctx context.Context, syncType models.SyncType, limit, offset int) ([]models.SyncRun, int64, error) {
	return s.syncRepo.ListRuns(ctx, syncType, limit, offset)
}

// GetRunLogs retrieves the log entries for a run.
func (s *SyncService) GetRunLogs(ctx context.Context, runID uuid.UUID) ([]models.SyncRunLog, error) {
	return s.syncRepo.GetRunLogs(ctx, runID)
}

// CancelRun stops an in-flight run. A run that is in the table as
// RUNNING but no longer active (for example after a restart) is marked
// cancelled directly.
func (s *SyncService) CancelRun(ctx context.Context, id uuid.UUID) error {
	s.mu.RLock()
	cancel, active := s.activeRuns[id]
	s.mu.RUnlock()
	if active {
		cancel()
		return nil
	}

	run, err := s.syncRepo.GetRun(ctx, id)
	if err != nil {
		return err
	}
	if run.Status != models.SyncRunRunning {
		return fmt.Errorf("run is not running")
	}
	completed := time.Now().UTC()
	run.Status = models.SyncRunCancelled
	run.ErrorMessage = "cancelled"
	run.CompletedAt = &completed
	return s.syncRepo.UpdateRun(ctx, run)
}

// SyncStatus reports the watermark and outcome for one sync type.
type SyncStatus struct {
	SyncType          models.SyncType `json:"syncType"`
	LastSyncTimestamp *time.Time      `json:"lastSyncTimestamp,omitempty"`
	LastSyncSuccess   bool            `json:"lastSyncSuccess"`
	LastError         string          `json:"lastError,omitempty"`
	Running           bool            `json:"running"`
}

// GetStatus reports the state of every sync type.
func (s *SyncService) GetStatus(ctx context.Context) ([]SyncStatus, error) {
	running := make(map[models.SyncType]bool)
	s.mu.RLock()
	activeIDs := make([]uuid.UUID, 0, len(s.activeRuns))
	for id := range s.activeRuns {
		activeIDs = append(activeIDs, id)
	}
	s.mu.RUnlock()
	for _, id := range activeIDs {
		if run, err := s.syncRepo.GetRun(ctx, id); err == nil {
			running[run.SyncType] = true
		}
	}

	types := []models.SyncType{models.SyncTypeOrders, models.SyncTypeProducts, models.SyncTypeStock}
	statuses := make([]SyncStatus, 0, len(types))
	for _, t := range types {
		state, err := s.syncRepo.GetState(ctx, t)
		if err != nil {
			return nil, err
		}
		status := SyncStatus{SyncType: t, Running: running[t]}
		if state != nil {
			if !state.LastSyncTimestamp.IsZero() {
				ts := state.LastSyncTimestamp
				status.LastSyncTimestamp = &ts
			}
			status.LastSyncSuccess = state.LastSyncSuccess
			status.LastError = state.LastError
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// DataCounts reports how many rows each synced table holds.
type DataCounts struct {
	OrderLines  int64 `json:"orderLines"`
	Products    int64 `json:"products"`
	StockLevels int64 `json:"stockLevels"`
}

// GetDataCounts returns row counts for the synced tables.
func (s *SyncService) GetDataCounts(ctx context.Context) (*DataCounts, error) {
	counts := &DataCounts{}
	var err error
	if counts.OrderLines, err = s.orderRepo.Count(ctx); err != nil {
		return nil, err
	}
	if counts.Products, err = s.productRepo.Count(ctx); err != nil {
		return nil, err
	}
	if counts.StockLevels, err = s.stockRepo.Count(ctx); err != nil {
		return nil, err
	}
	return counts, nil
}

func (s *SyncService) logEvent(ctx context.Context, runID uuid.UUID, level models.LogLevel, message string, data models.JSONB) {
	entry := &models.SyncRunLog{
		ID:        uuid.New(),
		SyncRunID: runID,
		Level:     level,
		Message:   message,
		Data:      data,
	}
	if err := s.syncRepo.AddLog(ctx, entry); err != nil {
		s.log.WithError(err).Warn("failed to write run log")
	}
}
