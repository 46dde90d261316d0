package repository

import (
	"context"

	"stock-sync-service/internal/models"
	"gorm.io/gorm"
)

// StockRepository handles stock level persistence.
type StockRepository struct {
	db *gorm.DB
}

// NewStockRepository creates a new stock repository.
func NewStockRepository(db *gorm.DB) *StockRepository {
	return &StockRepository{db: db}
}

// ReplaceAll swaps the stock snapshot for a fresh one in a single
// transaction, so readers never see a half-written snapshot.
func (r *StockRepository) ReplaceAll(ctx context.Context, levels []models.StockLevel) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.StockLevel{}).Error; err != nil {
			return err
		}
		if len(levels) == 0 {
			return nil
		}
		return tx.CreateInBatches(levels, 500).Error
	})
}

// List retrieves stock levels with optional SKU filter and pagination.
func (r *StockRepository) List(ctx context.Context, sku string, limit, offset int) ([]models.StockLevel, int64, error) {
	var levels []models.StockLevel
	var total int64

	query := r.db.WithContext(ctx).Model(&models.StockLevel{})
	if sku != "" {
		query = query.Where("sku = ?", sku)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Order("sku, location").Find(&levels).Error; err != nil {
		return nil, 0, err
	}
	return levels, total, nil
}

// Count returns the number of rows in the current snapshot.
func (r *StockRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.StockLevel{}).Count(&total).Error
	return total, err
}

// TotalsBySKU returns summed availability per SKU across all locations.
func (r *StockRepository) TotalsBySKU(ctx context.Context) (map[string]float64, error) {
	var rows []struct {
		SKU       string
		Available float64
	}
	err := r.db.WithContext(ctx).
		Model(&models.StockLevel{}).
		Select("sku, SUM(available) AS available").
		Group("sku").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	totals := make(map[string]float64, len(rows))
	for _, row := range rows {
		totals[row.SKU] = row.Available
	}
	return totals, nil
}
