package services

import (
	"strings"

	"stock-sync-service/internal/clients"
)

// ExtractedLine is one sellable line pulled out of an order detail.
type ExtractedLine struct {
	SKU      string
	Name     string
	Quantity float64
	Location string
}

// LineExtractor pulls order lines out of a sale detail. Fulfilment pick
// lines are authoritative when present, because they carry the physical
// location and reflect substitutions; the header lines are only a
// fallback for orders that have not been picked.
type LineExtractor struct{}

// NewLineExtractor creates a line extractor.
func NewLineExtractor() *LineExtractor {
	return &LineExtractor{}
}

// Extract returns the lines to persist for a sale. Lines without a SKU
// (shipping charges, comments) or without a positive quantity are
// dropped. When the same SKU appears more than once, the first
// occurrence wins, keeping replays of the same payload deterministic.
func (e *LineExtractor) Extract(detail *clients.OrderDetail) []ExtractedLine {
	var lines []ExtractedLine

	for _, fulfilment := range detail.Fulfilments {
		for _, pick := range fulfilment.PickLines {
			sku := strings.TrimSpace(pick.SKU)
			if sku == "" || pick.Quantity <= 0 {
				continue
			}
			location := pick.Location
			if location == "" {
				location = detail.Location
			}
			lines = append(lines, ExtractedLine{
				SKU:      sku,
				Name:     pick.Name,
				Quantity: pick.Quantity,
				Location: location,
			})
		}
	}

	if len(lines) == 0 {
		for _, header := range detail.HeaderLines {
			sku := strings.TrimSpace(header.SKU)
			if sku == "" || header.Quantity <= 0 {
				continue
			}
			lines = append(lines, ExtractedLine{
				SKU:      sku,
				Name:     header.Name,
				Quantity: header.Quantity,
				Location: detail.Location,
			})
		}
	}

	return dedupeBySKU(lines)
}

func dedupeBySKU(lines []ExtractedLine) []ExtractedLine {
	seen := make(map[string]struct{}, len(lines))
	out := lines[:0]
	for _, line := range lines {
		if _, ok := seen[line.SKU]; ok {
			continue
		}
		seen[line.SKU] = struct{}{}
		out = append(out, line)
	}
	return out
}
