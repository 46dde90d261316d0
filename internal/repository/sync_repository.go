package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"stock-sync-service/internal/models"
	"gorm.io/gorm"
)

// ErrSyncInProgress is returned when the sync lease is held by another
// run that has not expired.
var ErrSyncInProgress = errors.New("sync already in progress")

// SyncRepository handles sync state, run history and the advisory lease.
type SyncRepository struct {
	db *gorm.DB
}

// NewSyncRepository creates a new sync repository.
func NewSyncRepository(db *gorm.DB) *SyncRepository {
	return &SyncRepository{db: db}
}

// GetState retrieves the watermark row for a sync type, or nil when no
// sync of that type has completed yet.
func (r *SyncRepository) GetState(ctx context.Context, syncType models.SyncType) (*models.SyncState, error) {
	var state models.SyncState
	err := r.db.WithContext(ctx).Where("sync_type = ?", syncType).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// SetState records the outcome of a sync pass. The watermark only moves
// when the caller passes a successful timestamp.
func (r *SyncRepository) SetState(ctx context.Context, state *models.SyncState) error {
	var existing models.SyncState
	err := r.db.WithContext(ctx).Where("sync_type = ?", state.SyncType).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.WithContext(ctx).Create(state).Error
	}
	if err != nil {
		return err
	}
	existing.LastSyncTimestamp = state.LastSyncTimestamp
	existing.LastSyncSuccess = state.LastSyncSuccess
	existing.LastError = state.LastError
	return r.db.WithContext(ctx).Save(&existing).Error
}

// CreateRun records the start of a sync run.
func (r *SyncRepository) CreateRun(ctx context.Context, run *models.SyncRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// UpdateRun persists run status, counters and completion details.
func (r *SyncRepository) UpdateRun(ctx context.Context, run *models.SyncRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

// GetRun retrieves a run by id.
func (r *SyncRepository) GetRun(ctx context.Context, id uuid.UUID) (*models.SyncRun, error) {
	var run models.SyncRun
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns retrieves run history, newest first, optionally filtered by
// sync type.
func (r *SyncRepository) ListRuns(ctx context.Context, syncType models.SyncType, limit, offset int) ([]models.SyncRun, int64, error) {
	var runs []models.SyncRun
	var total int64

	query := r.db.WithContext(ctx).Model(&models.SyncRun{})
	if syncType != "" {
		query = query.Where("sync_type = ?", syncType)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Order("started_at DESC").Find(&runs).Error; err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

// AddLog appends a log entry to a run.
func (r *SyncRepository) AddLog(ctx context.Context, log *models.SyncRunLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// GetRunLogs retrieves the log entries for a run in insertion order.
func (r *SyncRepository) GetRunLogs(ctx context.Context, runID uuid.UUID) ([]models.SyncRunLog, error) {
	var logs []models.SyncRunLog
	err := r.db.WithContext(ctx).
		Where("sync_run_id = ?", runID).
		Order("created_at ASC").
		Find(&logs).Error
	return logs, err
}

// AcquireLock takes the named lease. A fresh row wins immediately; an
// expired row is stolen; a live row means another run owns the lease and
// ErrSyncInProgress is returned.
func (r *SyncRepository) AcquireLock(ctx context.Context, name, holder string, ttl time.Duration) error {
	now := time.Now().UTC()
	lock := models.SyncLock{
		Name:      name,
		Holder:    holder,
		ExpiresAt: now.Add(ttl),
	}
	err := r.db.WithContext(ctx).Create(&lock).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&models.SyncLock{}).
		Where("name = ? AND expires_at < ?", name, now).
		Updates(map[string]interface{}{
			"holder":     holder,
			"expires_at": now.Add(ttl),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSyncInProgress
	}
	return nil
}

// RefreshLock extends the lease for a holder that still owns it, so a
// long pass does not expire mid-flight and get stolen.
func (r *SyncRepository) RefreshLock(ctx context.Context, name, holder string, ttl time.Duration) error {
	return r.db.WithContext(ctx).
		Model(&models.SyncLock{}).
		Where("name = ? AND holder = ?", name, holder).
		Update("expires_at", time.Now().UTC().Add(ttl)).Error
}

// ReleaseLock drops the lease if this holder still owns it.
func (r *SyncRepository) ReleaseLock(ctx context.Context, name, holder string) error {
	return r.db.WithContext(ctx).
		Where("name = ? AND holder = ?", name, holder).
		Delete(&models.SyncLock{}).Error
}
