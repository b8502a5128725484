package service

import (
	"context"
	"fmt"
	"testing"

	"boutique-api/internal/models"
	"boutique-api/internal/yalidine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeShipmentStore struct {
	*fakeStore
	processed map[string]bool
}

func newFakeShipmentStore() *fakeShipmentStore {
	return &fakeShipmentStore{
		fakeStore: newFakeStore(),
		processed: make(map[string]bool),
	}
}

func (f *fakeShipmentStore) SetOrderShipment(_ context.Context, orderID int64, tracking, shipmentID string) error {
	order, ok := f.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: %d", models.ErrOrderNotFound, orderID)
	}
	order.TrackingNumber = &tracking
	order.ShipmentID = &shipmentID
	return nil
}

func (f *fakeShipmentStore) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	return f.processed[eventID], nil
}

func (f *fakeShipmentStore) MarkEventProcessed(_ context.Context, eventID, _ string) error {
	f.processed[eventID] = true
	return nil
}

type fakeCarrier struct {
	requests []*yalidine.ShipmentRequest
	result   *yalidine.CreateShipmentResult
	err      error
}

func (f *fakeCarrier) CreateShipment(_ context.Context, req *yalidine.ShipmentRequest) (*yalidine.CreateShipmentResult, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func seedConfirmedOrder(fs *fakeShipmentStore) *models.Order {
	seedCatalog(fs.fakeStore)
	fs.desks[7] = &models.DeliveryDesk{
		ID: 7, Name: "Yalidine Alger Centre",
		Address: "Yalidine Center - Alger", CityID: 1, IsActive: true,
	}

	deskID := int64(7)
	sizeLabel := "M"
	sizeID := int64(100)
	order := &models.Order{
		ID:               42,
		CustomerName:     "Amina Benali Cherif",
		CustomerPhone:    "0551234567",
		DeliveryType:     models.DeliveryTypePickup,
		CityID:           1,
		DeliveryDeskID:   &deskID,
		Subtotal:         9000,
		Total:            9000,
		CallCenterStatus: models.CallCenterStatusConfirmed,
		DeliveryStatus:   models.DeliveryStatusNotReady,
	}
	fs.orders[42] = order
	fs.items[42] = []models.OrderItem{
		{ID: 1, OrderID: 42, ProductID: 10, Quantity: 2, Price: 1000},
		{ID: 2, OrderID: 42, ProductID: 11, Quantity: 2, Price: 3500, SizeID: &sizeID, SizeLabel: &sizeLabel},
	}
	return order
}

func TestHandleOrderConfirmedCreatesShipment(t *testing.T) {
	fs := newFakeShipmentStore()
	seedConfirmedOrder(fs)
	carrier := &fakeCarrier{result: &yalidine.CreateShipmentResult{
		Tracking: "yal-XYZ789", ImportID: 55, Label: "https://carrier.example/l.pdf",
	}}
	pub := &fakePublisher{}
	svc := NewShipmentService(fs, carrier, shipPublisher{pub}, 16)

	event := &models.OrderConfirmedEvent{
		BaseEvent: models.BaseEvent{EventID: "ev-1", EventType: models.EventTypeOrderConfirmed},
		OrderID:   42,
	}
	require.NoError(t, svc.HandleOrderConfirmed(context.Background(), event))

	order := fs.orders[42]
	require.NotNil(t, order.TrackingNumber)
	assert.Equal(t, "yal-XYZ789", *order.TrackingNumber)
	require.NotNil(t, order.ShipmentID)
	assert.Equal(t, "55", *order.ShipmentID)
	assert.True(t, fs.processed["ev-1"])

	// Redelivery of the same event is a no-op.
	require.NoError(t, svc.HandleOrderConfirmed(context.Background(), event))
	assert.Len(t, carrier.requests, 1)
}

func TestHandleOrderConfirmedRedeliversOnOutage(t *testing.T) {
	fs := newFakeShipmentStore()
	seedConfirmedOrder(fs)
	carrier := &fakeCarrier{err: fmt.Errorf("POST /parcels: %w", yalidine.ErrCarrierUnavailable)}
	svc := NewShipmentService(fs, carrier, shipPublisher{&fakePublisher{}}, 16)

	event := &models.OrderConfirmedEvent{
		BaseEvent: models.BaseEvent{EventID: "ev-2", EventType: models.EventTypeOrderConfirmed},
		OrderID:   42,
	}
	err := svc.HandleOrderConfirmed(context.Background(), event)
	assert.ErrorIs(t, err, yalidine.ErrCarrierUnavailable)
	assert.False(t, fs.processed["ev-2"], "outage leaves the event unprocessed for redelivery")
}

func TestHandleOrderConfirmedSwallowsRejection(t *testing.T) {
	fs := newFakeShipmentStore()
	seedConfirmedOrder(fs)
	carrier := &fakeCarrier{err: fmt.Errorf("carrier rejected request: commune not deliverable")}
	svc := NewShipmentService(fs, carrier, shipPublisher{&fakePublisher{}}, 16)

	event := &models.OrderConfirmedEvent{
		BaseEvent: models.BaseEvent{EventID: "ev-3", EventType: models.EventTypeOrderConfirmed},
		OrderID:   42,
	}
	require.NoError(t, svc.HandleOrderConfirmed(context.Background(), event),
		"permanent rejection must not loop the consumer")
	assert.True(t, fs.processed["ev-3"], "rejection is recorded; the operator retries manually")
	assert.Nil(t, fs.orders[42].TrackingNumber)
}

func TestCreateShipmentForOrderBuildsCarrierRequest(t *testing.T) {
	fs := newFakeShipmentStore()
	seedConfirmedOrder(fs)
	carrier := &fakeCarrier{result: &yalidine.CreateShipmentResult{Tracking: "yal-A", ImportID: 1}}
	svc := NewShipmentService(fs, carrier, shipPublisher{&fakePublisher{}}, 16)

	_, err := svc.CreateShipmentForOrder(context.Background(), 42)
	require.NoError(t, err)

	require.Len(t, carrier.requests, 1)
	req := carrier.requests[0]
	assert.Equal(t, "ORD-000042", req.OrderID)
	assert.Equal(t, "Amina", req.FirstName)
	assert.Equal(t, "Benali Cherif", req.FamilyName)
	assert.Equal(t, "0551234567", req.ContactPhone)
	assert.Equal(t, "Alger", req.FromWilayaName)
	assert.Equal(t, "Alger", req.ToWilayaName)
	assert.Equal(t, "2x Hijab Classic, 2x Abaya Noir (M)", req.ProductList)
	assert.Equal(t, int64(9000), req.Price)
	assert.True(t, req.IsStopDesk)
	assert.Equal(t, "Yalidine Center - Alger", req.Address, "pickup ships to the desk address")
}

func TestCreateShipmentForOrderSkipsExisting(t *testing.T) {
	fs := newFakeShipmentStore()
	order := seedConfirmedOrder(fs)
	tracking := "yal-OLD"
	order.TrackingNumber = &tracking
	carrier := &fakeCarrier{}
	svc := NewShipmentService(fs, carrier, shipPublisher{&fakePublisher{}}, 16)

	got, err := svc.CreateShipmentForOrder(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "yal-OLD", *got.TrackingNumber)
	assert.Empty(t, carrier.requests)
}

func TestCreateShipmentForOrderRequiresConfirmation(t *testing.T) {
	fs := newFakeShipmentStore()
	order := seedConfirmedOrder(fs)
	order.CallCenterStatus = models.CallCenterStatusNew
	svc := NewShipmentService(fs, &fakeCarrier{}, shipPublisher{&fakePublisher{}}, 16)

	_, err := svc.CreateShipmentForOrder(context.Background(), 42)
	assert.ErrorIs(t, err, models.ErrBadTransition)
}

// shipPublisher adapts fakePublisher to the shipment event surface.
type shipPublisher struct {
	*fakePublisher
}

func (p shipPublisher) PublishShipmentCreated(_ context.Context, e *models.ShipmentCreatedEvent) error {
	return nil
}
