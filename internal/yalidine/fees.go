package yalidine

import (
	"context"
	"fmt"
	"strconv"

	"boutique-api/internal/wilaya"

	"go.uber.org/zap"
)

// volumetricFactor converts cm³ to kg; the carrier bills the greater of
// actual and volumetric weight.
const volumetricFactor = 0.0002

// BillableWeight returns max(actual, length*width*height*0.0002), dimensions
// in centimeters, weights in kilograms.
func BillableWeight(actual, length, width, height float64) float64 {
	volumetric := length * width * height * volumetricFactor
	if volumetric > actual {
		return volumetric
	}
	return actual
}

// DeliveryPrices is one row of the express/economic price matrix. Desk or
// economic cells may be null for zones the option does not serve.
type DeliveryPrices struct {
	Home *int64 `json:"home"`
	Desk *int64 `json:"desk"`
}

// Quote is a parcel-level fee quote assembled from the carrier response.
// The zone/weight tariff table lives with the carrier; nothing here
// re-derives it.
type Quote struct {
	FromWilaya          string         `json:"from_wilaya_name"`
	ToWilaya            string         `json:"to_wilaya_name"`
	Zone                int            `json:"zone"`
	WeightFees          int64          `json:"weight_fees"`
	CODFees             int64          `json:"cod_fees"`
	Express             DeliveryPrices `json:"express"`
	Economic            DeliveryPrices `json:"economic"`
	BillableWeight      float64        `json:"billable_weight"`
	OversizeFee         int64          `json:"oversize_fee"`
	CODPercentage       float64        `json:"cod_percentage"`
	InsurancePercentage float64        `json:"insurance_percentage"`
	ReturnFee           int64          `json:"return_fee"`
}

// feesResponse mirrors the carrier's fee-calculation payload.
type feesResponse struct {
	FromWilayaName  string  `json:"from_wilaya_name"`
	ToWilayaName    string  `json:"to_wilaya_name"`
	Zone            int     `json:"zone"`
	WeightFees      int64   `json:"weight_fees"`
	CODFees         int64   `json:"cod_fees"`
	OversizeFee     int64   `json:"oversize_fee"`
	CODPercentage   float64 `json:"cod_percentage"`
	InsurancePct    float64 `json:"insurance_percentage"`
	ReturnFee       int64   `json:"return_fee"`
	DeliveryOptions struct {
		Express  DeliveryPrices `json:"express"`
		Economic DeliveryPrices `json:"economic"`
	} `json:"delivery_options"`
}

// FeeParams describes one parcel for fee calculation. Dimensions are the
// parcel-level maximum across items.
type FeeParams struct {
	FromWilayaID  int
	ToWilayaID    int
	Weight        float64
	Length        float64
	Width         float64
	Height        float64
	DeclaredValue int64
}

// CalculateFees resolves the wilaya names, asks the carrier for a quote and
// maps the response. Quotes are cached per (from, to, billable weight,
// declared value).
func (c *Client) CalculateFees(ctx context.Context, p FeeParams) (*Quote, error) {
	from, ok := wilaya.GetByID(p.FromWilayaID)
	if !ok {
		return nil, fmt.Errorf("unknown origin wilaya: %d", p.FromWilayaID)
	}
	to, ok := wilaya.GetByID(p.ToWilayaID)
	if !ok {
		return nil, fmt.Errorf("unknown destination wilaya: %d", p.ToWilayaID)
	}

	billable := BillableWeight(p.Weight, p.Length, p.Width, p.Height)

	cacheKey := fmt.Sprintf("fees:%d:%d:%.3f:%d", p.FromWilayaID, p.ToWilayaID, billable, p.DeclaredValue)
	if c.cache != nil {
		var cached Quote
		if hit, err := c.cache.GetJSON(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	var resp feesResponse
	query := map[string]string{
		"from_wilaya_id": strconv.Itoa(p.FromWilayaID),
		"to_wilaya_id":   strconv.Itoa(p.ToWilayaID),
		"weight":         strconv.FormatFloat(p.Weight, 'f', -1, 64),
		"length":         strconv.FormatFloat(p.Length, 'f', -1, 64),
		"width":          strconv.FormatFloat(p.Width, 'f', -1, 64),
		"height":         strconv.FormatFloat(p.Height, 'f', -1, 64),
	}
	if p.DeclaredValue > 0 {
		query["declared_value"] = strconv.FormatInt(p.DeclaredValue, 10)
	}

	if err := c.get(ctx, "fees", "/fees", query, &resp); err != nil {
		return nil, err
	}

	quote := &Quote{
		FromWilaya:          resp.FromWilayaName,
		ToWilaya:            resp.ToWilayaName,
		Zone:                resp.Zone,
		WeightFees:          resp.WeightFees,
		CODFees:             resp.CODFees,
		Express:             resp.DeliveryOptions.Express,
		Economic:            resp.DeliveryOptions.Economic,
		BillableWeight:      billable,
		OversizeFee:         resp.OversizeFee,
		CODPercentage:       resp.CODPercentage,
		InsurancePercentage: resp.InsurancePct,
		ReturnFee:           resp.ReturnFee,
	}
	if quote.FromWilaya == "" {
		quote.FromWilaya = from.Name
	}
	if quote.ToWilaya == "" {
		quote.ToWilaya = to.Name
	}

	if c.cache != nil {
		if err := c.cache.CacheJSON(ctx, cacheKey, quote, c.cacheTTL); err != nil {
			c.logger.Warn("failed to cache fee quote", zap.Error(err))
		}
	}

	return quote, nil
}
