package models

import (
	"time"
)

// StockLevel is a point-in-time stock snapshot for one SKU at one
// location. The stock sync replaces the whole table each pass.
type StockLevel struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	SKU       string        `gorm:"type:varchar(255);not null;index:idx_stock_sku" json:"sku"`
	Warehouse WarehouseCode `gorm:"type:varchar(10);not null;index:idx_stock_warehouse" json:"warehouse"`
	Location  string        `gorm:"type:varchar(255)" json:"location,omitempty"`
	Available float64       `json:"available"`
	OnHand    float64       `json:"onHand"`
	Allocated float64       `json:"allocated"`

	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName specifies the table name for StockLevel
func (StockLevel) TableName() string {
	return "stock_levels"
}
