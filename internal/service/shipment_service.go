package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"boutique-api/internal/models"
	"boutique-api/internal/util"
	"boutique-api/internal/wilaya"
	"boutique-api/internal/yalidine"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// defaultParcelWeightKg is used when the catalog carries no per-product
// weight. Fashion parcels are light; the carrier bills by billable weight
// anyway.
const defaultParcelWeightKg = 1.0

// ShipmentStore is the persistence surface shipment creation needs.
type ShipmentStore interface {
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	GetCityByID(ctx context.Context, id int64) (*models.City, error)
	GetDeskByID(ctx context.Context, id int64) (*models.DeliveryDesk, error)
	SetOrderShipment(ctx context.Context, orderID int64, tracking, shipmentID string) error
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// Carrier is the slice of the carrier client shipment creation needs.
type Carrier interface {
	CreateShipment(ctx context.Context, req *yalidine.ShipmentRequest) (*yalidine.CreateShipmentResult, error)
}

// ShipmentPublisher announces created shipments.
type ShipmentPublisher interface {
	PublishShipmentCreated(ctx context.Context, event *models.ShipmentCreatedEvent) error
}

// ShipmentService turns confirmed orders into carrier shipments. It is
// driven by OrderConfirmed events and by the operator retry endpoint.
type ShipmentService struct {
	store        ShipmentStore
	carrier      Carrier
	publisher    ShipmentPublisher
	fromWilayaID int
	logger       *zap.Logger
}

// NewShipmentService creates a new shipment service
func NewShipmentService(store ShipmentStore, carrier Carrier, publisher ShipmentPublisher, fromWilayaID int) *ShipmentService {
	return &ShipmentService{
		store:        store,
		carrier:      carrier,
		publisher:    publisher,
		fromWilayaID: fromWilayaID,
		logger:       util.GetLogger(),
	}
}

// HandleOrderConfirmed processes an OrderConfirmed event at-least-once.
// A carrier outage returns an error so the message is redelivered; a
// permanent rejection is logged and swallowed so the consumer does not
// loop, leaving the operator retry endpoint as the recovery path.
func (s *ShipmentService) HandleOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error {
	ctx, span := util.StartSpan(ctx, "ShipmentService.HandleOrderConfirmed")
	defer span.End()

	processed, err := s.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event idempotency: %w", err)
	}
	if processed {
		s.logger.Info("Skipping already processed event",
			zap.String("event_id", event.EventID))
		return nil
	}

	_, err = s.CreateShipmentForOrder(ctx, event.OrderID)
	if err != nil {
		if errors.Is(err, yalidine.ErrCarrierUnavailable) {
			return err
		}
		s.logger.Error("Shipment creation permanently rejected",
			zap.Int64("order_id", event.OrderID), zap.Error(err))
	}

	return s.store.MarkEventProcessed(ctx, event.EventID, event.EventType)
}

// CreateShipmentForOrder books a carrier shipment for a confirmed order and
// writes the tracking code back. Orders that already carry a tracking number
// are returned unchanged.
func (s *ShipmentService) CreateShipmentForOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "ShipmentService.CreateShipmentForOrder")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.TrackingNumber != nil && *order.TrackingNumber != "" {
		s.logger.Info("Order already has a shipment",
			zap.Int64("order_id", orderID),
			zap.String("tracking", *order.TrackingNumber))
		return order, nil
	}

	if order.CallCenterStatus != models.CallCenterStatusConfirmed {
		return nil, fmt.Errorf("%w: shipment requires CONFIRMED, order %d is %s",
			models.ErrBadTransition, orderID, order.CallCenterStatus)
	}

	req, err := s.buildShipmentRequest(ctx, order)
	if err != nil {
		return nil, err
	}

	result, err := s.carrier.CreateShipment(ctx, req)
	if err != nil {
		reason := "rejected"
		if errors.Is(err, yalidine.ErrCarrierUnavailable) {
			reason = "carrier_unavailable"
		} else if errors.Is(err, yalidine.ErrInvalidPhone) {
			reason = "invalid_phone"
		}
		util.ShipmentsFailedTotal.WithLabelValues(reason).Inc()
		return nil, err
	}

	shipmentID := strconv.FormatInt(result.ImportID, 10)
	if err := s.store.SetOrderShipment(ctx, orderID, result.Tracking, shipmentID); err != nil {
		return nil, fmt.Errorf("shipment %s booked but not persisted: %w", result.Tracking, err)
	}

	util.ShipmentsCreatedTotal.Inc()
	s.logger.Info("Shipment created",
		zap.Int64("order_id", orderID),
		zap.String("tracking", result.Tracking),
		zap.String("label", result.Label))

	event := &models.ShipmentCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeShipmentCreated,
			Timestamp: time.Now(),
		},
		OrderID:  orderID,
		Tracking: result.Tracking,
	}
	if err := s.publisher.PublishShipmentCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish ShipmentCreated event",
			zap.Int64("order_id", orderID), zap.Error(err))
	}

	order.TrackingNumber = &result.Tracking
	order.ShipmentID = &shipmentID
	return order, nil
}

// buildShipmentRequest maps an order onto the carrier's parcel payload.
func (s *ShipmentService) buildShipmentRequest(ctx context.Context, order *models.Order) (*yalidine.ShipmentRequest, error) {
	city, err := s.store.GetCityByID(ctx, order.CityID)
	if err != nil {
		return nil, err
	}

	items, err := s.store.GetOrderItemsByOrderID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	productIDs := make([]int64, 0, len(items))
	for _, item := range items {
		productIDs = append(productIDs, item.ProductID)
	}
	products, err := s.store.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}

	lines := make([]string, 0, len(items))
	for _, item := range items {
		name := names[item.ProductID]
		if item.SizeLabel != nil {
			name = fmt.Sprintf("%s (%s)", name, *item.SizeLabel)
		}
		lines = append(lines, fmt.Sprintf("%dx %s", item.Quantity, name))
	}

	firstName, familyName := splitName(order.CustomerName)

	address := ""
	if order.DeliveryAddress != nil {
		address = *order.DeliveryAddress
	}
	isStopDesk := order.DeliveryType == models.DeliveryTypePickup
	if isStopDesk && order.DeliveryDeskID != nil {
		desk, err := s.store.GetDeskByID(ctx, *order.DeliveryDeskID)
		if err != nil {
			return nil, err
		}
		address = desk.Address
	}

	return &yalidine.ShipmentRequest{
		OrderID:        models.FormatOrderNumber(order.ID),
		FirstName:      firstName,
		FamilyName:     familyName,
		ContactPhone:   order.CustomerPhone,
		Address:        address,
		FromWilayaName: wilaya.Name(s.fromWilayaID),
		ToWilayaName:   city.Name,
		ToCommuneName:  city.Name,
		ProductList:    strings.Join(lines, ", "),
		Price:          order.Total,
		Weight:         defaultParcelWeightKg,
		IsStopDesk:     isStopDesk,
		DeclaredValue:  order.Subtotal,
	}, nil
}

// splitName separates a free-form customer name into the carrier's
// first/family pair. Single-token names reuse the token for both.
func splitName(full string) (string, string) {
	parts := strings.Fields(strings.TrimSpace(full))
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], parts[0]
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
