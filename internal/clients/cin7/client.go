package cin7

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"stock-sync-service/internal/clients"
)

// request kinds carry different self-imposed intervals: list pages are
// cheap and infrequent, detail calls dominate a pass.
type callKind int

const (
	callList callKind = iota
	callDetail
)

// Client talks to the Cin7 Core (DEAR) external API. All calls pass
// through a per-kind rate limiter, the shared retrier and a circuit
// breaker, so one pass cannot exceed the account's request quota or spin
// on a failing upstream.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	accountID     string
	apiKey        string
	listLimiter   *rate.Limiter
	detailLimiter *rate.Limiter
	retrier       *clients.Retrier
	breaker       *clients.CircuitBreaker
	log           *logrus.Entry
}

// Options configures a Client.
type Options struct {
	BaseURL        string
	AccountID      string
	APIKey         string
	ListInterval   time.Duration
	DetailInterval time.Duration
	Retry          *clients.RetryConfig
	Logger         *logrus.Logger
}

// NewClient creates a Cin7 API client.
func NewClient(opts Options) *Client {
	if opts.ListInterval <= 0 {
		opts.ListInterval = 1200 * time.Millisecond
	}
	if opts.DetailInterval <= 0 {
		opts.DetailInterval = 1800 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		baseURL:       opts.BaseURL,
		accountID:     opts.AccountID,
		apiKey:        opts.APIKey,
		listLimiter:   rate.NewLimiter(rate.Every(opts.ListInterval), 1),
		detailLimiter: rate.NewLimiter(rate.Every(opts.DetailInterval), 1),
		retrier:       clients.NewRetrier(opts.Retry),
		breaker:       clients.NewCircuitBreaker(5, 60*time.Second),
		log:           logger.WithField("component", "cin7"),
	}
}

var _ clients.InventoryClient = (*Client)(nil)

// TestConnection verifies credentials against the locations endpoint.
func (c *Client) TestConnection(ctx context.Context) error {
	params := url.Values{}
	params.Set("Page", "1")
	params.Set("Limit", "1")
	_, err := c.doRequest(ctx, callList, "/ref/location", params)
	return err
}

// ListOrders fetches one page of /SaleList.
func (c *Client) ListOrders(ctx context.Context, opts clients.OrderListOptions) ([]clients.OrderSummary, error) {
	params := url.Values{}
	params.Set("Page", strconv.Itoa(max(opts.Page, 1)))
	if opts.Limit > 0 {
		params.Set("Limit", strconv.Itoa(opts.Limit))
	} else {
		params.Set("Limit", "100")
	}
	if !opts.CreatedSince.IsZero() {
		params.Set("CreatedSince", opts.CreatedSince.Format("2006-01-02T15:04:05"))
	}
	if !opts.DateFrom.IsZero() {
		params.Set("OrderDateFrom", opts.DateFrom.Format("2006-01-02"))
	}
	if !opts.DateTo.IsZero() {
		params.Set("OrderDateTo", opts.DateTo.Format("2006-01-02"))
	}

	body, err := c.doRequest(ctx, callList, "/SaleList", params)
	if err != nil {
		return nil, err
	}

	var response struct {
		SaleList []saleSummary `json:"SaleList"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, &clients.MalformedResponseError{Operation: "SaleList", Err: err}
	}

	orders := make([]clients.OrderSummary, 0, len(response.SaleList))
	for _, s := range response.SaleList {
		orders = append(orders, clients.OrderSummary{
			SaleID:      s.SaleID,
			OrderNumber: s.OrderNumber,
			Status:      s.Status,
			OrderDate:   parseCin7Time(s.OrderDate),
			Location:    s.OrderLocationID,
		})
	}
	return orders, nil
}

// GetOrderDetail fetches /Sale for one sale id.
func (c *Client) GetOrderDetail(ctx context.Context, saleID string) (*clients.OrderDetail, error) {
	params := url.Values{}
	params.Set("ID", saleID)

	body, err := c.doRequest(ctx, callDetail, "/Sale", params)
	if err != nil {
		return nil, err
	}

	var response saleDetail
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, &clients.MalformedResponseError{Operation: "Sale", Err: err}
	}

	detail := &clients.OrderDetail{
		SaleID:   saleID,
		Status:   response.Status,
		Location: response.Location,
	}
	for _, l := range response.Order.Lines {
		detail.HeaderLines = append(detail.HeaderLines, clients.DetailLine{
			SKU:      l.SKU,
			Name:     l.Name,
			Quantity: l.Quantity,
		})
	}
	for _, f := range response.Fulfilments {
		fulfilment := clients.Fulfilment{}
		for _, l := range f.Pick.Lines {
			fulfilment.PickLines = append(fulfilment.PickLines, clients.PickLine{
				SKU:      l.SKU,
				Name:     l.Name,
				Quantity: l.Quantity,
				Location: l.Location,
			})
		}
		detail.Fulfilments = append(detail.Fulfilments, fulfilment)
	}
	return detail, nil
}

// ListProducts fetches one page of the product catalog.
func (c *Client) ListProducts(ctx context.Context, opts clients.PageOptions) ([]clients.ProductRecord, error) {
	params := url.Values{}
	params.Set("Page", strconv.Itoa(max(opts.Page, 1)))
	if opts.Limit > 0 {
		params.Set("Limit", strconv.Itoa(opts.Limit))
	} else {
		params.Set("Limit", "100")
	}
	if !opts.UpdatedSince.IsZero() {
		params.Set("UpdatedSince", opts.UpdatedSince.Format("2006-01-02T15:04:05"))
	}

	body, err := c.doRequest(ctx, callList, "/Products", params)
	if err != nil {
		return nil, err
	}

	var response struct {
		Products []productRecord `json:"Products"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, &clients.MalformedResponseError{Operation: "Products", Err: err}
	}

	products := make([]clients.ProductRecord, 0, len(response.Products))
	for _, p := range response.Products {
		products = append(products, clients.ProductRecord{
			SKU:     p.ProductCode,
			Name:    p.Name,
			Length:  p.Length,
			Width:   p.Width,
			Height:  p.Height,
			Weight:  p.Weight,
			Barcode: p.Barcode,
		})
	}
	return products, nil
}

// ListStockAvailability fetches one page of per-location stock levels.
func (c *Client) ListStockAvailability(ctx context.Context, opts clients.PageOptions) ([]clients.StockRecord, error) {
	params := url.Values{}
	params.Set("Page", strconv.Itoa(max(opts.Page, 1)))
	if opts.Limit > 0 {
		params.Set("Limit", strconv.Itoa(opts.Limit))
	} else {
		params.Set("Limit", "1000")
	}

	body, err := c.doRequest(ctx, callList, "/StockAvailability", params)
	if err != nil {
		return nil, err
	}

	var response struct {
		StockAvailabilityList []stockItem `json:"StockAvailabilityList"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, &clients.MalformedResponseError{Operation: "StockAvailability", Err: err}
	}

	var records []clients.StockRecord
	for _, item := range response.StockAvailabilityList {
		for _, loc := range item.AvailabilityByLocation {
			records = append(records, clients.StockRecord{
				SKU:       item.SKU,
				Name:      item.Name,
				Location:  loc.Location,
				Available: loc.Available,
				OnHand:    loc.OnHand,
				Allocated: loc.Allocated,
			})
		}
	}
	return records, nil
}

// doRequest performs one rate-limited, authenticated GET with retries.
func (c *Client) doRequest(ctx context.Context, kind callKind, path string, params url.Values) ([]byte, error) {
	limiter := c.listLimiter
	if kind == callDetail {
		limiter = c.detailLimiter
	}
	if err := limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if !c.breaker.Allow() {
		return nil, clients.ErrCircuitOpen
	}

	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	resp, err := c.retrier.DoHTTP(ctx, path, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("api-auth-accountid", c.accountID)
		req.Header.Set("api-auth-applicationkey", c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return c.httpClient.Do(req)
	})
	if err != nil {
		c.breaker.RecordFailure()
		c.log.WithError(err).WithField("path", path).Warn("request failed")
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, &clients.TransientFetchError{Operation: path, Attempts: 1, Err: err}
	}

	c.breaker.RecordSuccess()
	return body, nil
}

// Cin7 wire structures
type saleSummary struct {
	SaleID          string `json:"SaleID"`
	OrderNumber     string `json:"OrderNumber"`
	Status          string `json:"Status"`
	OrderDate       string `json:"OrderDate"`
	OrderLocationID string `json:"OrderLocationID"`
}

type saleDetail struct {
	ID       string `json:"ID"`
	Status   string `json:"Status"`
	Location string `json:"Location"`
	Order    struct {
		Lines []saleLine `json:"Lines"`
	} `json:"Order"`
	Fulfilments []struct {
		Pick struct {
			Lines []pickLine `json:"Lines"`
		} `json:"Pick"`
	} `json:"Fulfilments"`
}

type saleLine struct {
	SKU      string  `json:"SKU"`
	Name     string  `json:"Name"`
	Quantity float64 `json:"Quantity"`
}

type pickLine struct {
	SKU      string  `json:"SKU"`
	Name     string  `json:"Name"`
	Quantity float64 `json:"Quantity"`
	Location string  `json:"Location"`
}

type productRecord struct {
	ProductCode string  `json:"ProductCode"`
	Name        string  `json:"Name"`
	Length      float64 `json:"Length"`
	Width       float64 `json:"Width"`
	Height      float64 `json:"Height"`
	Weight      float64 `json:"Weight"`
	Barcode     string  `json:"Barcode"`
}

type stockItem struct {
	SKU                    string `json:"SKU"`
	Name                   string `json:"Name"`
	AvailabilityByLocation []struct {
		Location  string  `json:"Location"`
		Available float64 `json:"Available"`
		OnHand    float64 `json:"OnHand"`
		Allocated float64 `json:"Allocated"`
	} `json:"AvailabilityByLocation"`
}

// parseCin7Time handles the API's timezone-less timestamps alongside
// RFC3339 and bare dates.
func parseCin7Time(value string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
