package services

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"stock-sync-service/internal/config"
	"stock-sync-service/internal/repository"
)

// SKUMetrics is the computed sales velocity for one SKU.
type SKUMetrics struct {
	SKU             string  `json:"sku"`
	TotalQuantity   float64 `json:"totalQuantity"`
	OrderCount      int64   `json:"orderCount"`
	ObservedDays    int     `json:"observedDays"`
	DailyVelocity   float64 `json:"dailyVelocity"`
	WeeklyVelocity  float64 `json:"weeklyVelocity"`
	MonthlyVelocity float64 `json:"monthlyVelocity"`
}

// ReorderPoint is the replenishment threshold derived from velocity.
type ReorderPoint struct {
	SKU            string  `json:"sku"`
	DailyVelocity  float64 `json:"dailyVelocity"`
	LeadTimeDemand float64 `json:"leadTimeDemand"`
	SafetyStock    float64 `json:"safetyStock"`
	ReorderPoint   float64 `json:"reorderPoint"`
}

// Stock status buckets, most urgent first.
const (
	StatusStockout       = "STOCKOUT"
	StatusBelowSafety    = "BELOW_SAFETY"
	StatusBelowROP       = "BELOW_ROP"
	StatusApproachingROP = "APPROACHING_ROP"
	StatusOK             = "OK"
)

// ReorderRecommendation joins a SKU's reorder point with its current
// stock position.
type ReorderRecommendation struct {
	SKU               string   `json:"sku"`
	DailyVelocity     float64  `json:"dailyVelocity"`
	StockAvailable    float64  `json:"stockAvailable"`
	LeadTimeDemand    float64  `json:"leadTimeDemand"`
	SafetyStock       float64  `json:"safetyStock"`
	ReorderPoint      float64  `json:"reorderPoint"`
	DaysUntilStockout *float64 `json:"daysUntilStockout,omitempty"`
	Status            string   `json:"status"`
	Urgency           int      `json:"urgency"`
}

// VelocityService computes sales velocity and reorder metrics from the
// synced order history. Velocity divides by the span the SKU was
// actually observed selling over, not the requested window, so a SKU
// first sold a week ago is not diluted by a 90 day query.
type VelocityService struct {
	orderRepo *repository.OrderRepository
	stockRepo *repository.StockRepository
	config    *config.Config
	log       *logrus.Entry
}

// NewVelocityService creates a new velocity service.
func NewVelocityService(orderRepo *repository.OrderRepository, stockRepo *repository.StockRepository, cfg *config.Config, logger *logrus.Logger) *VelocityService {
	return &VelocityService{
		orderRepo: orderRepo,
		stockRepo: stockRepo,
		config:    cfg,
		log:       logger.WithField("component", "velocity"),
	}
}

// observedDays clamps the sales span to [1, windowDays]. A single day of
// sales still counts as one day, and clock skew can never push the span
// past the requested window.
func observedDays(first, last time.Time, windowDays int) int {
	days := int(last.Sub(first).Hours()/24) + 1
	if days < 1 {
		days = 1
	}
	if days > windowDays {
		days = windowDays
	}
	return days
}

func metricsFromRow(row repository.SKUVelocity, windowDays int) SKUMetrics {
	days := observedDays(row.FirstSale, row.LastSale, windowDays)
	daily := row.TotalQuantity / float64(days)
	return SKUMetrics{
		SKU:             row.SKU,
		TotalQuantity:   row.TotalQuantity,
		OrderCount:      row.OrderCount,
		ObservedDays:    days,
		DailyVelocity:   daily,
		WeeklyVelocity:  round2(daily * 7),
		MonthlyVelocity: round2(daily * 30),
	}
}

// Velocity computes per-SKU daily sales velocity over the trailing
// window.
func (s *VelocityService) Velocity(ctx context.Context, windowDays int) ([]SKUMetrics, error) {
	if windowDays < 1 {
		windowDays = 1
	}
	since := time.Now().UTC().AddDate(0, 0, -windowDays)
	rows, err := s.orderRepo.VelocityAggregates(ctx, since)
	if err != nil {
		return nil, err
	}

	metrics := make([]SKUMetrics, 0, len(rows))
	for _, row := range rows {
		metrics = append(metrics, metricsFromRow(row, windowDays))
	}
	return metrics, nil
}

// VelocityForSKU computes the velocity for a single SKU, or nil when the
// SKU has no sales in the window.
func (s *VelocityService) VelocityForSKU(ctx context.Context, sku string, windowDays int) (*SKUMetrics, error) {
	if windowDays < 1 {
		windowDays = 1
	}
	since := time.Now().UTC().AddDate(0, 0, -windowDays)
	row, err := s.orderRepo.VelocityForSKU(ctx, sku, since)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	m := metricsFromRow(*row, windowDays)
	return &m, nil
}

func (s *VelocityService) reorderPoint(m SKUMetrics) ReorderPoint {
	leadDemand := m.DailyVelocity * float64(s.config.LeadTimeDays)
	safety := m.DailyVelocity * float64(s.config.BufferDays)
	return ReorderPoint{
		SKU:            m.SKU,
		DailyVelocity:  m.DailyVelocity,
		LeadTimeDemand: round2(leadDemand),
		SafetyStock:    round2(safety),
		ReorderPoint:   round2(leadDemand + safety),
	}
}

// ReorderPoints computes the replenishment threshold for every SKU with
// sales in the window: lead-time demand plus safety stock, both in units
// at the observed daily velocity.
func (s *VelocityService) ReorderPoints(ctx context.Context, windowDays int) ([]ReorderPoint, error) {
	metrics, err := s.Velocity(ctx, windowDays)
	if err != nil {
		return nil, err
	}

	points := make([]ReorderPoint, 0, len(metrics))
	for _, m := range metrics {
		if m.DailyVelocity <= 0 {
			continue
		}
		points = append(points, s.reorderPoint(m))
	}
	return points, nil
}

// Recommendations joins reorder points with the current stock snapshot
// and buckets each SKU by how close it is to the threshold.
func (s *VelocityService) Recommendations(ctx context.Context, windowDays int) ([]ReorderRecommendation, error) {
	metrics, err := s.Velocity(ctx, windowDays)
	if err != nil {
		return nil, err
	}
	totals, err := s.stockRepo.TotalsBySKU(ctx)
	if err != nil {
		return nil, err
	}

	recs := make([]ReorderRecommendation, 0, len(metrics))
	for _, m := range metrics {
		if m.DailyVelocity <= 0 {
			continue
		}
		point := s.reorderPoint(m)
		available := totals[m.SKU]

		rec := ReorderRecommendation{
			SKU:            m.SKU,
			DailyVelocity:  m.DailyVelocity,
			StockAvailable: available,
			LeadTimeDemand: point.LeadTimeDemand,
			SafetyStock:    point.SafetyStock,
			ReorderPoint:   point.ReorderPoint,
		}
		days := round2(available / m.DailyVelocity)
		rec.DaysUntilStockout = &days

		switch {
		case available <= 0:
			rec.Status, rec.Urgency = StatusStockout, 4
		case available <= point.SafetyStock:
			rec.Status, rec.Urgency = StatusBelowSafety, 3
		case available <= point.ReorderPoint:
			rec.Status, rec.Urgency = StatusBelowROP, 2
		case available <= point.ReorderPoint*1.2:
			rec.Status, rec.Urgency = StatusApproachingROP, 1
		default:
			rec.Status, rec.Urgency = StatusOK, 0
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
