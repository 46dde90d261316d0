package repository

import (
	"context"
	"errors"

	"stock-sync-service/internal/models"
	"gorm.io/gorm"
)

// ProductRepository handles product catalog persistence.
type ProductRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a new product repository.
func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// EnsureProduct inserts a bare product row for a SKU seen on an order
// line, so velocity queries can join against the catalog before a full
// product sync has run. Existing rows are left untouched.
func (r *ProductRepository) EnsureProduct(ctx context.Context, sku, description string) error {
	err := r.db.WithContext(ctx).Create(&models.Product{SKU: sku, Description: description}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	return err
}

// UpsertProduct creates or updates a product by SKU. A blank incoming
// description never overwrites a stored one.
func (r *ProductRepository) UpsertProduct(ctx context.Context, product *models.Product) error {
	var existing models.Product
	err := r.db.WithContext(ctx).Where("sku = ?", product.SKU).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.WithContext(ctx).Create(product).Error
	}
	if err != nil {
		return err
	}

	existing.Length = product.Length
	existing.Width = product.Width
	existing.Height = product.Height
	existing.Weight = product.Weight
	existing.CBM = product.CBM
	if product.Description != "" {
		existing.Description = product.Description
	}
	if product.Barcode != "" {
		existing.Barcode = product.Barcode
	}
	return r.db.WithContext(ctx).Save(&existing).Error
}

// Count returns the total number of catalog rows.
func (r *ProductRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Count(&total).Error
	return total, err
}

// GetBySKU retrieves a product by SKU.
func (r *ProductRepository) GetBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("sku = ?", sku).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// List retrieves products with optional SKU/description search and
// pagination.
func (r *ProductRepository) List(ctx context.Context, search string, limit, offset int) ([]models.Product, int64, error) {
	var products []models.Product
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Product{})
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("sku LIKE ? OR description LIKE ?", like, like)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Order("sku").Find(&products).Error; err != nil {
		return nil, 0, err
	}
	return products, total, nil
}
