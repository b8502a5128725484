package yalidine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"boutique-api/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(config.YalidineConfig{
		BaseURL:  server.URL,
		APIID:    "test-id",
		APIToken: "test-token",
		Timeout:  2 * time.Second,
	}, nil, time.Minute)
}

func TestCreateShipment(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/parcels", r.URL.Path)
		require.Equal(t, "test-id", r.Header.Get("X-API-ID"))
		require.Equal(t, "test-token", r.Header.Get("X-API-TOKEN"))

		var body []ShipmentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body, 1)
		assert.Equal(t, "ORD-000042", body[0].OrderID)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]createResult{
			"ORD-000042": {
				Success:  true,
				Tracking: "yal-ABC123",
				ImportID: 99,
				Label:    "https://carrier.example/labels/yal-ABC123.pdf",
			},
		})
	}))

	result, err := client.CreateShipment(context.Background(), &ShipmentRequest{
		OrderID:      "ORD-000042",
		FirstName:    "Amina",
		FamilyName:   "B",
		ContactPhone: "0551234567",
		ToWilayaName: "Alger",
	})
	require.NoError(t, err)
	assert.Equal(t, "yal-ABC123", result.Tracking)
	assert.Equal(t, int64(99), result.ImportID)
	assert.NotEmpty(t, result.Label)
}

func TestCreateShipmentRejectsBadPhoneLocally(t *testing.T) {
	called := false
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	_, err := client.CreateShipment(context.Background(), &ShipmentRequest{
		OrderID:      "ORD-000001",
		ContactPhone: "123456",
	})
	assert.ErrorIs(t, err, ErrInvalidPhone)
	assert.False(t, called, "invalid phone must not reach the carrier")
}

func TestCreateShipmentCarrierRejection(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]createResult{
			"ORD-000002": {Success: false, Message: "commune not deliverable"},
		})
	}))

	_, err := client.CreateShipment(context.Background(), &ShipmentRequest{
		OrderID:      "ORD-000002",
		ContactPhone: "0551234567",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commune not deliverable")
	assert.NotErrorIs(t, err, ErrCarrierUnavailable)
}

func TestGetTrackingHistoryPreservesOrder(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/histories/yal-ABC123", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"has_more":   false,
			"total_data": 3,
			"data": []TrackingEvent{
				{Date: "2025-03-03 10:00", Status: "Livré", Location: "Alger centre"},
				{Date: "2025-03-01 08:00", Status: "Expédié", Location: "Oran hub"},
				{Date: "2025-03-02 14:00", Status: "En transit", Location: "Blida hub"},
			},
		})
	}))

	events, err := client.GetTrackingHistory(context.Background(), "yal-ABC123")
	require.NoError(t, err)
	require.Len(t, events, 3)

	// Carrier order is authoritative even when not chronological.
	assert.Equal(t, "Livré", events[0].Status)
	assert.Equal(t, "Expédié", events[1].Status)
	assert.Equal(t, "En transit", events[2].Status)
}

func TestCalculateFees(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/fees", r.URL.Path)
		assert.Equal(t, "16", r.URL.Query().Get("from_wilaya_id"))
		assert.Equal(t, "31", r.URL.Query().Get("to_wilaya_id"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"from_wilaya_name": "Alger",
			"to_wilaya_name": "Oran",
			"zone": 2,
			"weight_fees": 150,
			"cod_fees": 0,
			"oversize_fee": 100,
			"cod_percentage": 1.5,
			"insurance_percentage": 2.0,
			"return_fee": 200,
			"delivery_options": {
				"express": {"home": 700, "desk": 450},
				"economic": {"home": 500, "desk": null}
			}
		}`))
	}))

	quote, err := client.CalculateFees(context.Background(), FeeParams{
		FromWilayaID: 16,
		ToWilayaID:   31,
		Weight:       1,
		Length:       10,
		Width:        10,
		Height:       10,
	})
	require.NoError(t, err)

	assert.Equal(t, "Alger", quote.FromWilaya)
	assert.Equal(t, "Oran", quote.ToWilaya)
	assert.Equal(t, 2, quote.Zone)
	assert.Equal(t, 2.0, quote.BillableWeight)

	require.NotNil(t, quote.Express.Home)
	assert.Equal(t, int64(700), *quote.Express.Home)
	require.NotNil(t, quote.Express.Desk)
	assert.Equal(t, int64(450), *quote.Express.Desk)
	require.NotNil(t, quote.Economic.Home)
	assert.Equal(t, int64(500), *quote.Economic.Home)
	assert.Nil(t, quote.Economic.Desk, "economic desk is unavailable for this zone")
}

func TestCalculateFeesUnknownWilaya(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	_, err := client.CalculateFees(context.Background(), FeeParams{FromWilayaID: 16, ToWilayaID: 99})
	assert.Error(t, err)
}

func TestCarrierUnavailable(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))

	_, err := client.GetWilayas(context.Background())
	assert.ErrorIs(t, err, ErrCarrierUnavailable)

	err = client.Status(context.Background())
	assert.ErrorIs(t, err, ErrCarrierUnavailable)
}

func TestGetShipmentNotFound(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"has_more": false, "total_data": 0, "data": []}`))
	}))

	_, err := client.GetShipment(context.Background(), "yal-MISSING")
	assert.ErrorIs(t, err, ErrShipmentNotFound)
}

func TestDeleteShipment(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/parcels/yal-ABC123", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))

	assert.NoError(t, client.DeleteShipment(context.Background(), "yal-ABC123"))
}

func TestListShipmentsFilters(t *testing.T) {
	stopDesk := true
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "Livré", q.Get("status"))
		assert.Equal(t, "16", q.Get("to_wilaya_id"))
		assert.Equal(t, "true", q.Get("is_stopdesk"))
		assert.Equal(t, "2", q.Get("page"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"has_more": true, "total_data": 120, "data": [{"tracking": "yal-A1"}]}`))
	}))

	list, err := client.ListShipments(context.Background(), ShipmentFilter{
		Status:     "Livré",
		ToWilayaID: 16,
		IsStopDesk: &stopDesk,
		Page:       2,
	})
	require.NoError(t, err)
	assert.True(t, list.HasMore)
	assert.Equal(t, 120, list.TotalData)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "yal-A1", list.Data[0].Tracking)
}
