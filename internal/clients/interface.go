package clients

import (
	"context"
	"time"
)

// InventoryClient is the gateway to the upstream inventory API. The
// orchestrator depends on this interface only, so tests can substitute a
// mock and another backend could be wired without touching sync logic.
type InventoryClient interface {
	// TestConnection verifies credentials against a cheap endpoint.
	TestConnection(ctx context.Context) error

	// ListOrders fetches one page of order summaries. Callers paginate
	// by incrementing opts.Page until a short page comes back.
	ListOrders(ctx context.Context, opts OrderListOptions) ([]OrderSummary, error)

	// GetOrderDetail fetches full line-item detail for one sale,
	// including fulfilment pick lines when the order has been picked.
	GetOrderDetail(ctx context.Context, saleID string) (*OrderDetail, error)

	// ListProducts fetches one page of the product catalog.
	ListProducts(ctx context.Context, opts PageOptions) ([]ProductRecord, error)

	// ListStockAvailability fetches one page of per-location stock.
	ListStockAvailability(ctx context.Context, opts PageOptions) ([]StockRecord, error)
}

// PageOptions contains common pagination options.
type PageOptions struct {
	Page         int
	Limit        int
	UpdatedSince time.Time
}

// OrderListOptions filters the order list either by a changed-since
// timestamp or by an absolute date range.
type OrderListOptions struct {
	Page         int
	Limit        int
	CreatedSince time.Time
	DateFrom     time.Time
	DateTo       time.Time
}

// OrderSummary is one row of the paginated sale list.
type OrderSummary struct {
	SaleID      string    `json:"saleId"`
	OrderNumber string    `json:"orderNumber"`
	Status      string    `json:"status"`
	OrderDate   time.Time `json:"orderDate"`
	Location    string    `json:"location,omitempty"`
}

// OrderDetail is the full payload for one sale: the commercial header
// lines plus, once fulfilled, the warehouse pick lines that say where
// stock actually moved from.
type OrderDetail struct {
	SaleID      string       `json:"saleId"`
	Status      string       `json:"status"`
	Location    string       `json:"location,omitempty"`
	HeaderLines []DetailLine `json:"headerLines"`
	Fulfilments []Fulfilment `json:"fulfilments"`
}

// DetailLine is one commercial order line from the sale header.
type DetailLine struct {
	SKU      string  `json:"sku"`
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
}

// Fulfilment groups the pick lines of one fulfilment record.
type Fulfilment struct {
	PickLines []PickLine `json:"pickLines"`
}

// PickLine is a warehouse pick: sku, quantity and the physical location
// the item was picked from.
type PickLine struct {
	SKU      string  `json:"sku"`
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Location string  `json:"location"`
}

// ProductRecord is one catalog row from the upstream product list.
type ProductRecord struct {
	SKU     string  `json:"sku"`
	Name    string  `json:"name"`
	Length  float64 `json:"length"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Weight  float64 `json:"weight"`
	Barcode string  `json:"barcode"`
}

// StockRecord is per-SKU, per-location stock availability.
type StockRecord struct {
	SKU       string  `json:"sku"`
	Name      string  `json:"name"`
	Location  string  `json:"location"`
	Available float64 `json:"available"`
	OnHand    float64 `json:"onHand"`
	Allocated float64 `json:"allocated"`
}
