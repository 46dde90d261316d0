package models

import (
	"time"
)

// WarehouseCode identifies one of the fixed physical warehouses.
type WarehouseCode string

const (
	WarehouseVIC WarehouseCode = "VIC"
	WarehouseQLD WarehouseCode = "QLD"
	// WarehouseNSW is the fallback for unmapped or missing locations.
	WarehouseNSW WarehouseCode = "NSW"
)

// OrderLine is one sku/quantity pair extracted from a sales order.
// ReferenceID is "{saleID}:{sku}" and its unique index is the
// idempotency enforcement point: re-syncing an overlapping window must
// never store the same order line twice.
type OrderLine struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	OrderNumber string        `gorm:"type:varchar(255);not null" json:"orderNumber"`
	SKU         string        `gorm:"type:varchar(255);not null;index:idx_orders_sku" json:"sku"`
	Quantity    float64       `gorm:"not null" json:"quantity"`
	Warehouse   WarehouseCode `gorm:"type:varchar(10);not null" json:"warehouse"`
	BookingDate time.Time     `gorm:"type:date;not null;index:idx_orders_booking_date" json:"bookingDate"`
	ReferenceID string        `gorm:"type:varchar(512);not null;uniqueIndex:idx_orders_reference" json:"referenceId"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
}

// TableName specifies the table name for OrderLine
func (OrderLine) TableName() string {
	return "orders"
}

// BuildReferenceID builds the composite idempotency key for one order line.
func BuildReferenceID(saleID, sku string) string {
	return saleID + ":" + sku
}
