package services

import (
	"strings"

	"stock-sync-service/internal/models"
)

// WarehouseMapper resolves free-form location labels to warehouse codes.
// Matching is substring-based and case-insensitive, and the VIC rules
// win over the QLD rules. Anything unmatched falls through to NSW.
type WarehouseMapper struct{}

// NewWarehouseMapper creates a warehouse mapper.
func NewWarehouseMapper() *WarehouseMapper {
	return &WarehouseMapper{}
}

// Map resolves a location label to a warehouse code.
func (m *WarehouseMapper) Map(location string) models.WarehouseCode {
	label := strings.ToUpper(location)
	switch {
	case strings.Contains(label, "CNTVIC"), strings.Contains(label, "VIC"):
		return models.WarehouseVIC
	case strings.Contains(label, "WCLQLD"), strings.Contains(label, "QLD"):
		return models.WarehouseQLD
	default:
		return models.WarehouseNSW
	}
}
