package models

import (
	"time"
)

// Product is a catalog item keyed by SKU. It is created on first sight
// of a SKU during an order sync and enriched by the product sync.
type Product struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	SKU         string  `gorm:"type:varchar(255);not null;uniqueIndex:idx_products_sku" json:"sku"`
	Description string  `gorm:"type:text" json:"description"`
	Length      float64 `json:"length,omitempty"`
	Width       float64 `json:"width,omitempty"`
	Height      float64 `json:"height,omitempty"`
	Weight      float64 `json:"weight,omitempty"`
	Barcode     string  `gorm:"type:varchar(255)" json:"barcode,omitempty"`

	// Cubic meters derived from mm dimensions.
	CBM float64 `json:"cbm,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName specifies the table name for Product
func (Product) TableName() string {
	return "products"
}

// ComputeCBM converts mm dimensions to cubic meters. Returns 0 when any
// dimension is missing.
func ComputeCBM(length, width, height float64) float64 {
	if length <= 0 || width <= 0 || height <= 0 {
		return 0
	}
	return length * width * height / 1_000_000_000
}
