package repository

import (
	"context"
	"errors"
	"time"

	"stock-sync-service/internal/models"
	"gorm.io/gorm"
)

// ErrDuplicateReference is returned when inserting an order line whose
// reference id already exists. Callers treat it as an idempotency signal,
// not a failure.
var ErrDuplicateReference = errors.New("order line already synced")

// SKUVelocity is a per-SKU sales aggregate over a query window.
type SKUVelocity struct {
	SKU           string    `json:"sku"`
	TotalQuantity float64   `json:"total_quantity"`
	OrderCount    int64     `json:"order_count"`
	FirstSale     time.Time `json:"first_sale"`
	LastSale      time.Time `json:"last_sale"`
}

// OrderRepository handles order line persistence.
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new order repository.
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Insert creates one order line. The unique index on reference_id makes
// replays safe: a duplicate surfaces as ErrDuplicateReference.
func (r *OrderRepository) Insert(ctx context.Context, line *models.OrderLine) error {
	if err := r.db.WithContext(ctx).Create(line).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateReference
		}
		return err
	}
	return nil
}

// PreloadReferences loads every stored reference id into a set, so the
// sync pass can detect duplicates without a round trip per line.
func (r *OrderRepository) PreloadReferences(ctx context.Context) (map[string]struct{}, error) {
	var refs []string
	if err := r.db.WithContext(ctx).Model(&models.OrderLine{}).Pluck("reference_id", &refs).Error; err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		set[ref] = struct{}{}
	}
	return set, nil
}

// Count returns the total number of stored order lines.
func (r *OrderRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.OrderLine{}).Count(&total).Error
	return total, err
}

// List retrieves order lines for a SKU, newest first.
func (r *OrderRepository) List(ctx context.Context, sku string, limit, offset int) ([]models.OrderLine, int64, error) {
	var lines []models.OrderLine
	var total int64

	query := r.db.WithContext(ctx).Model(&models.OrderLine{})
	if sku != "" {
		query = query.Where("sku = ?", sku)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Order("booking_date DESC, id DESC").Find(&lines).Error; err != nil {
		return nil, 0, err
	}
	return lines, total, nil
}

// VelocityAggregates returns per-SKU sales totals for bookings since the
// given date, together with the first and last booking dates observed.
func (r *OrderRepository) VelocityAggregates(ctx context.Context, since time.Time) ([]SKUVelocity, error) {
	var rows []SKUVelocity
	err := r.db.WithContext(ctx).
		Model(&models.OrderLine{}).
		Select("sku, SUM(quantity) AS total_quantity, COUNT(*) AS order_count, MIN(booking_date) AS first_sale, MAX(booking_date) AS last_sale").
		Where("booking_date >= ?", since).
		Group("sku").
		Order("sku").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// VelocityForSKU returns the aggregate for a single SKU, or nil when the
// SKU has no sales in the window.
func (r *OrderRepository) VelocityForSKU(ctx context.Context, sku string, since time.Time) (*SKUVelocity, error) {
	var row SKUVelocity
	err := r.db.WithContext(ctx).
		Model(&models.OrderLine{}).
		Select("sku, SUM(quantity) AS total_quantity, COUNT(*) AS order_count, MIN(booking_date) AS first_sale, MAX(booking_date) AS last_sale").
		Where("sku = ? AND booking_date >= ?", sku, since).
		Group("sku").
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.SKU == "" {
		return nil, nil
	}
	return &row, nil
}
