package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"stock-sync-service/internal/clients"
)

func TestExtractPrefersPickLines(t *testing.T) {
	extractor := NewLineExtractor()

	detail := &clients.OrderDetail{
		SaleID:   "sale-1",
		Location: "Main Warehouse",
		HeaderLines: []clients.DetailLine{
			{SKU: "SKU-A", Name: "Widget A", Quantity: 5},
		},
		Fulfilments: []clients.Fulfilment{
			{PickLines: []clients.PickLine{
				{SKU: "SKU-A", Name: "Widget A", Quantity: 3, Location: "CNTVIC Melbourne"},
			}},
		},
	}

	lines := extractor.Extract(detail)
	assert.Len(t, lines, 1)
	// Picked quantity and location win over the header line.
	assert.Equal(t, 3.0, lines[0].Quantity)
	assert.Equal(t, "CNTVIC Melbourne", lines[0].Location)
}

func TestExtractFallsBackToHeaderLines(t *testing.T) {
	extractor := NewLineExtractor()

	detail := &clients.OrderDetail{
		SaleID:   "sale-1",
		Location: "Main Warehouse",
		HeaderLines: []clients.DetailLine{
			{SKU: "SKU-A", Name: "Widget A", Quantity: 2},
			{SKU: "", Name: "Shipping", Quantity: 1},
		},
	}

	lines := extractor.Extract(detail)
	assert.Len(t, lines, 1)
	assert.Equal(t, "SKU-A", lines[0].SKU)
	// Header lines inherit the order-level location.
	assert.Equal(t, "Main Warehouse", lines[0].Location)
}

func TestExtractMergesFulfilments(t *testing.T) {
	extractor := NewLineExtractor()

	detail := &clients.OrderDetail{
		SaleID: "sale-1",
		Fulfilments: []clients.Fulfilment{
			{PickLines: []clients.PickLine{{SKU: "SKU-A", Quantity: 1, Location: "CNTVIC"}}},
			{PickLines: []clients.PickLine{{SKU: "SKU-B", Quantity: 2, Location: "WCLQLD"}}},
		},
	}

	lines := extractor.Extract(detail)
	assert.Len(t, lines, 2)
}

func TestExtractFirstOccurrenceWinsOnDuplicateSKU(t *testing.T) {
	extractor := NewLineExtractor()

	detail := &clients.OrderDetail{
		SaleID: "sale-1",
		Fulfilments: []clients.Fulfilment{
			{PickLines: []clients.PickLine{
				{SKU: "SKU-A", Quantity: 3, Location: "CNTVIC"},
				{SKU: "SKU-A", Quantity: 7, Location: "WCLQLD"},
			}},
		},
	}

	lines := extractor.Extract(detail)
	assert.Len(t, lines, 1)
	assert.Equal(t, 3.0, lines[0].Quantity)
	assert.Equal(t, "CNTVIC", lines[0].Location)
}

func TestExtractEmptyDetail(t *testing.T) {
	extractor := NewLineExtractor()
	assert.Empty(t, extractor.Extract(&clients.OrderDetail{SaleID: "sale-1"}))
}
