package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"stock-sync-service/internal/models"
)

func TestWarehouseMapper(t *testing.T) {
	mapper := NewWarehouseMapper()

	tests := []struct {
		location string
		expected models.WarehouseCode
	}{
		{"CNTVIC Melbourne", models.WarehouseVIC},
		{"VIC Overflow", models.WarehouseVIC},
		{"WCLQLD Brisbane", models.WarehouseQLD},
		{"QLD 3PL", models.WarehouseQLD},
		{"Main Warehouse", models.WarehouseNSW},
		{"", models.WarehouseNSW},
		{"vic storage", models.WarehouseVIC},
		{"wclqld dock", models.WarehouseQLD},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, mapper.Map(tt.location), "location %q", tt.location)
	}
}

func TestWarehouseMapperVICWinsOverQLD(t *testing.T) {
	mapper := NewWarehouseMapper()
	assert.Equal(t, models.WarehouseVIC, mapper.Map("VIC to QLD transfer"))
}
