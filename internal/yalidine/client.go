// Package yalidine is the HTTP client for the Yalidine shipping carrier:
// shipment lifecycle, tracking history, reference data (wilayas, communes,
// pickup centers) and fee quotes. The carrier owns the tariff table; this
// package only assembles requests and interprets responses.
package yalidine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"boutique-api/config"
	"boutique-api/internal/util"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Cache is the subset of the redis client the carrier client needs.
type Cache interface {
	CacheJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
}

// Client talks to the Yalidine API.
type Client struct {
	http     *resty.Client
	cache    Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewClient creates a carrier client. cache may be nil, in which case every
// call hits the carrier.
func NewClient(cfg config.YalidineConfig, cache Cache, cacheTTL time.Duration) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("X-API-ID", cfg.APIID).
		SetHeader("X-API-TOKEN", cfg.APIToken).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:     httpClient,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   util.GetLogger(),
	}
}

// carrierError is the carrier's error body shape.
type carrierError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e carrierError) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// checkResponse maps a carrier response to the local error taxonomy.
func checkResponse(op string, resp *resty.Response, err error) error {
	if err != nil {
		util.CarrierErrorsTotal.WithLabelValues(op).Inc()
		return fmt.Errorf("%w: %v", ErrCarrierUnavailable, err)
	}
	if resp.StatusCode() >= http.StatusInternalServerError {
		util.CarrierErrorsTotal.WithLabelValues(op).Inc()
		return fmt.Errorf("%w: carrier returned status %d", ErrCarrierUnavailable, resp.StatusCode())
	}
	if resp.StatusCode() == http.StatusNotFound {
		return ErrShipmentNotFound
	}
	if resp.IsError() {
		util.CarrierErrorsTotal.WithLabelValues(op).Inc()
		var ce carrierError
		if jsonErr := json.Unmarshal(resp.Body(), &ce); jsonErr == nil && ce.text() != "" {
			return fmt.Errorf("carrier rejected request: %s", ce.text())
		}
		return fmt.Errorf("carrier rejected request with status %d", resp.StatusCode())
	}
	return nil
}

// get performs a GET with metrics and error mapping, decoding into out.
func (c *Client) get(ctx context.Context, op, path string, query map[string]string, out interface{}) error {
	start := time.Now()
	defer func() {
		util.CarrierRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	req := c.http.R().SetContext(ctx).SetResult(out)
	if query != nil {
		req.SetQueryParams(query)
	}
	resp, err := req.Get(path)
	return checkResponse(op, resp, err)
}

// Status verifies the carrier API is reachable with valid credentials.
func (c *Client) Status(ctx context.Context) error {
	var out listEnvelope[Wilaya]
	return c.get(ctx, "status", "/wilayas", map[string]string{"page_size": "1"}, &out)
}

// GetWilayas lists the carrier's wilayas, cached.
func (c *Client) GetWilayas(ctx context.Context) ([]Wilaya, error) {
	if c.cache != nil {
		var cached []Wilaya
		if hit, err := c.cache.GetJSON(ctx, "wilayas", &cached); err == nil && hit {
			return cached, nil
		}
	}

	var out listEnvelope[Wilaya]
	if err := c.get(ctx, "wilayas", "/wilayas", nil, &out); err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.CacheJSON(ctx, "wilayas", out.Data, c.cacheTTL); err != nil {
			c.logger.Warn("failed to cache wilayas", zap.Error(err))
		}
	}
	return out.Data, nil
}

// GetCommunes lists communes, optionally filtered by wilaya, cached.
func (c *Client) GetCommunes(ctx context.Context, wilayaID int) ([]Commune, error) {
	cacheKey := fmt.Sprintf("communes:%d", wilayaID)
	if c.cache != nil {
		var cached []Commune
		if hit, err := c.cache.GetJSON(ctx, cacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	query := map[string]string{}
	if wilayaID > 0 {
		query["wilaya_id"] = strconv.Itoa(wilayaID)
	}

	var out listEnvelope[Commune]
	if err := c.get(ctx, "communes", "/communes", query, &out); err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.CacheJSON(ctx, cacheKey, out.Data, c.cacheTTL); err != nil {
			c.logger.Warn("failed to cache communes", zap.Error(err))
		}
	}
	return out.Data, nil
}

// GetCenters lists pickup centers, optionally filtered by wilaya, cached.
func (c *Client) GetCenters(ctx context.Context, wilayaID int) ([]Center, error) {
	cacheKey := fmt.Sprintf("centers:%d", wilayaID)
	if c.cache != nil {
		var cached []Center
		if hit, err := c.cache.GetJSON(ctx, cacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	query := map[string]string{}
	if wilayaID > 0 {
		query["wilaya_id"] = strconv.Itoa(wilayaID)
	}

	var out listEnvelope[Center]
	if err := c.get(ctx, "centers", "/centers", query, &out); err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.CacheJSON(ctx, cacheKey, out.Data, c.cacheTTL); err != nil {
			c.logger.Warn("failed to cache centers", zap.Error(err))
		}
	}
	return out.Data, nil
}

// createResult is the per-order entry of the carrier's bulk-create response.
type createResult struct {
	Success  bool   `json:"success"`
	Tracking string `json:"tracking"`
	ImportID int64  `json:"importation_id"`
	Label    string `json:"label"`
	Message  string `json:"message"`
}

// CreateShipment creates one carrier shipment. The contact phone is
// validated locally first.
func (c *Client) CreateShipment(ctx context.Context, req *ShipmentRequest) (*CreateShipmentResult, error) {
	if err := ValidatePhone(req.ContactPhone); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		util.CarrierRequestDuration.WithLabelValues("create_shipment").Observe(time.Since(start).Seconds())
	}()

	// The carrier's create endpoint is bulk: it takes an array and answers
	// with a map keyed by order id.
	var results map[string]createResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody([]*ShipmentRequest{req}).
		SetResult(&results).
		Post("/parcels")
	if err := checkResponse("create_shipment", resp, err); err != nil {
		return nil, err
	}

	result, ok := results[req.OrderID]
	if !ok {
		for _, r := range results {
			result = r
			break
		}
	}
	if !result.Success {
		util.CarrierErrorsTotal.WithLabelValues("create_shipment").Inc()
		return nil, fmt.Errorf("carrier rejected shipment: %s", result.Message)
	}

	c.logger.Info("Shipment created",
		zap.String("order_id", req.OrderID),
		zap.String("tracking", result.Tracking))

	return &CreateShipmentResult{
		Tracking: result.Tracking,
		Label:    result.Label,
		ImportID: result.ImportID,
	}, nil
}

// GetShipment fetches a shipment by tracking code.
func (c *Client) GetShipment(ctx context.Context, tracking string) (*Shipment, error) {
	var out listEnvelope[Shipment]
	if err := c.get(ctx, "get_shipment", "/parcels/"+tracking, nil, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, ErrShipmentNotFound
	}
	return &out.Data[0], nil
}

// UpdateShipment applies a partial update to a shipment.
func (c *Client) UpdateShipment(ctx context.Context, tracking string, patch map[string]interface{}) (*Shipment, error) {
	start := time.Now()
	defer func() {
		util.CarrierRequestDuration.WithLabelValues("update_shipment").Observe(time.Since(start).Seconds())
	}()

	var out Shipment
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(patch).
		SetResult(&out).
		Patch("/parcels/" + tracking)
	if err := checkResponse("update_shipment", resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteShipment removes a shipment by tracking code.
func (c *Client) DeleteShipment(ctx context.Context, tracking string) error {
	start := time.Now()
	defer func() {
		util.CarrierRequestDuration.WithLabelValues("delete_shipment").Observe(time.Since(start).Seconds())
	}()

	resp, err := c.http.R().SetContext(ctx).Delete("/parcels/" + tracking)
	return checkResponse("delete_shipment", resp, err)
}

// GetTrackingHistory returns the shipment's event log exactly as the carrier
// orders it; callers must not re-sort.
func (c *Client) GetTrackingHistory(ctx context.Context, tracking string) ([]TrackingEvent, error) {
	var out listEnvelope[TrackingEvent]
	if err := c.get(ctx, "tracking_history", "/histories/"+tracking, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// ListShipments performs a bulk listing with the carrier's filter set.
func (c *Client) ListShipments(ctx context.Context, f ShipmentFilter) (*ShipmentList, error) {
	query := map[string]string{}
	if f.Status != "" {
		query["status"] = f.Status
	}
	if f.Tracking != "" {
		query["tracking"] = f.Tracking
	}
	if f.OrderID != "" {
		query["order_id"] = f.OrderID
	}
	if f.ToWilayaID > 0 {
		query["to_wilaya_id"] = strconv.Itoa(f.ToWilayaID)
	}
	if f.ToCommuneName != "" {
		query["to_commune_name"] = f.ToCommuneName
	}
	if f.IsStopDesk != nil {
		query["is_stopdesk"] = strconv.FormatBool(*f.IsStopDesk)
	}
	if f.FreeShipping != nil {
		query["freeshipping"] = strconv.FormatBool(*f.FreeShipping)
	}
	if f.DateCreation != "" {
		query["date_creation"] = f.DateCreation
	}
	if f.DateStatus != "" {
		query["date_last_status"] = f.DateStatus
	}
	if f.PaymentStatus != "" {
		query["payment_status"] = f.PaymentStatus
	}
	if f.Month != "" {
		query["month"] = f.Month
	}
	if f.Page > 0 {
		query["page"] = strconv.Itoa(f.Page)
	}

	var out ShipmentList
	if err := c.get(ctx, "list_shipments", "/parcels", query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
