package cin7

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"stock-sync-service/internal/clients"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(Options{
		BaseURL:        server.URL,
		AccountID:      "test-account",
		APIKey:         "test-key",
		ListInterval:   time.Millisecond,
		DetailInterval: time.Millisecond,
		Retry: &clients.RetryConfig{
			MaxRetries:      1,
			InitialBackoff:  time.Millisecond,
			MaxBackoff:      time.Millisecond,
			BackoffFactor:   1.0,
			RateLimitWait:   time.Millisecond,
			RetryableErrors: []int{429, 503},
		},
	})
	return client, server
}

func TestListOrdersSendsAuthHeaders(t *testing.T) {
	var gotAccount, gotKey, gotSince string
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccount = r.Header.Get("api-auth-accountid")
		gotKey = r.Header.Get("api-auth-applicationkey")
		gotSince = r.URL.Query().Get("CreatedSince")
		w.Write([]byte(`{"SaleList":[{"SaleID":"s1","OrderNumber":"SO-1","Status":"FULFILLED","OrderDate":"2026-08-15T10:30:00"}]}`))
	}))

	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	orders, err := client.ListOrders(context.Background(), clients.OrderListOptions{Page: 1, Limit: 100, CreatedSince: since})
	assert.NoError(t, err)

	assert.Equal(t, "test-account", gotAccount)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "2026-08-01T00:00:00", gotSince)

	assert.Len(t, orders, 1)
	assert.Equal(t, "s1", orders[0].SaleID)
	assert.Equal(t, time.Date(2026, 8, 15, 10, 30, 0, 0, time.UTC), orders[0].OrderDate)
}

func TestGetOrderDetailParsesPickLines(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "s1", r.URL.Query().Get("ID"))
		w.Write([]byte(`{
			"ID": "s1",
			"Status": "FULFILLED",
			"Location": "Main Warehouse",
			"Order": {"Lines": [{"SKU": "SKU-A", "Name": "Widget A", "Quantity": 5}]},
			"Fulfilments": [{"Pick": {"Lines": [{"SKU": "SKU-A", "Name": "Widget A", "Quantity": 3, "Location": "CNTVIC Melbourne"}]}}]
		}`))
	}))

	detail, err := client.GetOrderDetail(context.Background(), "s1")
	assert.NoError(t, err)
	assert.Equal(t, "FULFILLED", detail.Status)
	assert.Len(t, detail.HeaderLines, 1)
	assert.Len(t, detail.Fulfilments, 1)
	assert.Len(t, detail.Fulfilments[0].PickLines, 1)
	assert.Equal(t, "CNTVIC Melbourne", detail.Fulfilments[0].PickLines[0].Location)
}

func TestListProductsMapsProductCode(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Products":[{"ProductCode":"SKU-A","Name":"Widget A","Length":200,"Width":100,"Height":50,"Weight":1.5,"Barcode":"93001"}]}`))
	}))

	products, err := client.ListProducts(context.Background(), clients.PageOptions{Page: 1, Limit: 100})
	assert.NoError(t, err)
	assert.Len(t, products, 1)
	assert.Equal(t, "SKU-A", products[0].SKU)
	assert.Equal(t, 200.0, products[0].Length)
}

func TestListStockFlattensLocations(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"StockAvailabilityList":[{
			"SKU": "SKU-A",
			"Name": "Widget A",
			"AvailabilityByLocation": [
				{"Location": "CNTVIC Melbourne", "Available": 10, "OnHand": 12, "Allocated": 2},
				{"Location": "Main Warehouse", "Available": 4, "OnHand": 4, "Allocated": 0}
			]
		}]}`))
	}))

	records, err := client.ListStockAvailability(context.Background(), clients.PageOptions{Page: 1})
	assert.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, "SKU-A", records[0].SKU)
	assert.Equal(t, 10.0, records[0].Available)
	assert.Equal(t, "Main Warehouse", records[1].Location)
}

func TestMalformedResponse(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway error</html>`))
	}))

	_, err := client.ListOrders(context.Background(), clients.OrderListOptions{Page: 1})
	assert.Error(t, err)
	assert.True(t, clients.IsMalformed(err))
}

func TestTransientErrorAfterRetries(t *testing.T) {
	var calls int
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := client.ListOrders(context.Background(), clients.OrderListOptions{Page: 1})
	assert.Error(t, err)
	assert.True(t, clients.IsTransient(err))
	assert.Equal(t, 2, calls)
}

func TestParseCin7Time(t *testing.T) {
	assert.Equal(t,
		time.Date(2026, 8, 15, 10, 30, 0, 0, time.UTC),
		parseCin7Time("2026-08-15T10:30:00"))
	assert.Equal(t,
		time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
		parseCin7Time("2026-08-15"))
	assert.True(t, parseCin7Time("not a date").IsZero())
}
