package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"boutique-api/internal/models"
	"boutique-api/internal/store"
	"boutique-api/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderStore is the persistence surface order assembly needs.
type OrderStore interface {
	GeoStore
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	GetProductSize(ctx context.Context, sizeID, productID int64) (*models.ProductSize, error)
	CreateOrderTx(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	GetDeskByID(ctx context.Context, id int64) (*models.DeliveryDesk, error)
	ListOrders(ctx context.Context, filter store.OrderFilter) ([]models.Order, error)
	UpdateCallCenterStatusTx(ctx context.Context, orderID int64, next string) (*models.Order, error)
	UpdateDeliveryStatusTx(ctx context.Context, orderID int64, next string) (*models.Order, error)
	AddOrderItemTx(ctx context.Context, orderID int64, item *models.OrderItem) error
	UpdateOrderItemQuantityTx(ctx context.Context, orderID, itemID int64, quantity int) error
	RemoveOrderItemTx(ctx context.Context, orderID, itemID int64) error
}

// Publisher is the event surface order assembly needs.
type Publisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
}

// OrderService handles order business logic
type OrderService struct {
	store           OrderStore
	geo             *GeoResolver
	publisher       Publisher
	homeDeliveryFee int64
	logger          *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(store OrderStore, geo *GeoResolver, publisher Publisher, homeDeliveryFee int64) *OrderService {
	return &OrderService{
		store:           store,
		geo:             geo,
		publisher:       publisher,
		homeDeliveryFee: homeDeliveryFee,
		logger:          util.GetLogger(),
	}
}

// ValidationError reports malformed input with field-level detail. It is
// never retried.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Fields, ", "))
}

// CreateOrderRequest represents a checkout request
type CreateOrderRequest struct {
	CustomerName     string             `json:"customer_name"`
	CustomerPhone    string             `json:"customer_phone"`
	CustomerEmail    *string            `json:"customer_email,omitempty"`
	DeliveryType     string             `json:"delivery_type"`
	DeliveryAddress  *string            `json:"delivery_address,omitempty"`
	WilayaID         int                `json:"wilaya_id"`
	DeliveryDeskID   *int64             `json:"delivery_desk_id,omitempty"`
	DeliveryDeskName *string            `json:"delivery_desk_name,omitempty"`
	Notes            *string            `json:"notes,omitempty"`
	Items            []OrderItemRequest `json:"items"`
	IdempotencyKey   string             `json:"idempotency_key,omitempty"`
}

// OrderItemRequest represents an item in a checkout request
type OrderItemRequest struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	SizeID    *int64 `json:"size_id,omitempty"`
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Validate performs schema-level checks, returning every offending field.
func (r *CreateOrderRequest) Validate() *ValidationError {
	var fields []string

	if strings.TrimSpace(r.CustomerName) == "" {
		fields = append(fields, "customer_name")
	}
	if len(r.CustomerPhone) < 10 {
		fields = append(fields, "customer_phone")
	}
	if r.CustomerEmail != nil && *r.CustomerEmail != "" && !emailPattern.MatchString(*r.CustomerEmail) {
		fields = append(fields, "customer_email")
	}
	if r.DeliveryType != models.DeliveryTypeHome && r.DeliveryType != models.DeliveryTypePickup {
		fields = append(fields, "delivery_type")
	}
	if r.DeliveryType == models.DeliveryTypeHome &&
		(r.DeliveryAddress == nil || strings.TrimSpace(*r.DeliveryAddress) == "") {
		fields = append(fields, "delivery_address")
	}
	if r.WilayaID < 1 {
		fields = append(fields, "wilaya_id")
	}
	if len(r.Items) == 0 {
		fields = append(fields, "items")
	}
	for i, item := range r.Items {
		if item.ProductID <= 0 {
			fields = append(fields, fmt.Sprintf("items[%d].product_id", i))
		}
		if item.Quantity < 1 {
			fields = append(fields, fmt.Sprintf("items[%d].quantity", i))
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// CreateOrder validates the request, resolves geography, prices the items
// with a snapshot of current catalog prices and persists order plus stock
// decrements atomically.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if verr := req.Validate(); verr != nil {
		util.OrdersFailedTotal.WithLabelValues("validation").Inc()
		return nil, verr
	}

	if req.IdempotencyKey != "" {
		existing, err := s.store.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency: %w", err)
		}
		if existing != nil {
			s.logger.Info("Duplicate order request detected",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.Int64("order_id", existing.ID))
			return s.loadOrder(ctx, existing)
		}
	} else {
		req.IdempotencyKey = uuid.New().String()
	}

	city, err := s.geo.ResolveCity(ctx, req.WilayaID)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("geo").Inc()
		return nil, err
	}

	items, subtotal, err := s.buildItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	var deliveryFee int64
	if req.DeliveryType == models.DeliveryTypeHome {
		deliveryFee = s.homeDeliveryFee
	}

	var deskID *int64
	if req.DeliveryType == models.DeliveryTypePickup {
		deskName := fmt.Sprintf("Yalidine %s", city.Name)
		if req.DeliveryDeskName != nil && *req.DeliveryDeskName != "" {
			deskName = *req.DeliveryDeskName
		}
		deskID = s.geo.ResolveOrCreateDesk(ctx, city.ID, req.DeliveryDeskID, deskName)
	}

	order := &models.Order{
		CustomerName:     strings.TrimSpace(req.CustomerName),
		CustomerPhone:    req.CustomerPhone,
		CustomerEmail:    req.CustomerEmail,
		DeliveryType:     req.DeliveryType,
		DeliveryAddress:  req.DeliveryAddress,
		CityID:           city.ID,
		DeliveryDeskID:   deskID,
		DeliveryFee:      deliveryFee,
		Subtotal:         subtotal,
		Total:            subtotal + deliveryFee,
		Notes:            req.Notes,
		CallCenterStatus: models.CallCenterStatusNew,
		DeliveryStatus:   models.DeliveryStatusNotReady,
		IdempotencyKey:   req.IdempotencyKey,
		Items:            items,
	}

	if err := s.store.CreateOrderTx(ctx, order); err != nil {
		if errors.Is(err, models.ErrInsufficientStock) {
			util.StockRejectionsTotal.Inc()
			util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
		} else {
			util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		}
		return nil, err
	}

	util.OrdersCreatedTotal.Inc()
	order.OrderNumber = models.FormatOrderNumber(order.ID)
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("total", order.Total))

	eventItems := make([]models.OrderItemData, 0, len(order.Items))
	for _, item := range order.Items {
		eventItems = append(eventItems, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	event := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCreated,
			Timestamp: time.Now(),
		},
		OrderID:  order.ID,
		CityID:   order.CityID,
		Subtotal: order.Subtotal,
		Total:    order.Total,
		Items:    eventItems,
	}
	if err := s.publisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}

	return s.loadOrder(ctx, order)
}

// buildItems validates each requested line against the catalog, snapshots
// price and size label, and accumulates the subtotal. Stock is pre-checked
// here for a precise per-product error; the transaction re-checks under the
// row lock.
func (s *OrderService) buildItems(ctx context.Context, reqs []OrderItemRequest) ([]models.OrderItem, int64, error) {
	items := make([]models.OrderItem, 0, len(reqs))
	var subtotal int64

	for _, req := range reqs {
		product, err := s.store.GetProductByID(ctx, req.ProductID)
		if err != nil {
			util.OrdersFailedTotal.WithLabelValues("product_not_found").Inc()
			return nil, 0, err
		}
		if !product.IsActive {
			util.OrdersFailedTotal.WithLabelValues("product_not_found").Inc()
			return nil, 0, fmt.Errorf("%w: %s is inactive", models.ErrProductNotFound, product.Name)
		}

		item := models.OrderItem{
			ProductID: product.ID,
			Quantity:  req.Quantity,
			Price:     product.Price,
		}

		available := product.Stock
		if req.SizeID != nil {
			size, err := s.store.GetProductSize(ctx, *req.SizeID, product.ID)
			if err != nil {
				util.OrdersFailedTotal.WithLabelValues("size_not_found").Inc()
				return nil, 0, err
			}
			available = size.Stock
			item.SizeID = &size.ID
			label := size.Label
			item.SizeLabel = &label
		}

		if available < req.Quantity {
			util.StockRejectionsTotal.Inc()
			util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
			return nil, 0, fmt.Errorf("%w: %s (available %d, requested %d)",
				models.ErrInsufficientStock, product.Name, available, req.Quantity)
		}

		subtotal += product.Price * int64(req.Quantity)
		items = append(items, item)
	}

	return items, subtotal, nil
}

// GetOrder retrieves an order with items, products, city and desk expanded.
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.loadOrder(ctx, order)
}

// ListOrders retrieves orders newest-first with optional status filters
func (s *OrderService) ListOrders(ctx context.Context, filter store.OrderFilter) ([]models.Order, error) {
	orders, err := s.store.ListOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].OrderNumber = models.FormatOrderNumber(orders[i].ID)
	}
	return orders, nil
}

// UpdateCallCenterStatus moves the operator-facing confirmation state.
// Confirmation publishes the event that drives shipment creation;
// cancellation restocks (in the store transaction) and is announced.
func (s *OrderService) UpdateCallCenterStatus(ctx context.Context, orderID int64, next string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateCallCenterStatus")
	defer span.End()

	if !models.IsValidCallCenterStatus(next) {
		return nil, &ValidationError{Fields: []string{"call_center_status"}}
	}

	order, err := s.store.UpdateCallCenterStatusTx(ctx, orderID, next)
	if err != nil {
		return nil, err
	}

	switch next {
	case models.CallCenterStatusConfirmed:
		util.OrdersConfirmedTotal.Inc()
		event := &models.OrderConfirmedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderConfirmed,
				Timestamp: time.Now(),
			},
			OrderID: order.ID,
		}
		if err := s.publisher.PublishOrderConfirmed(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderConfirmed event",
				zap.Int64("order_id", order.ID), zap.Error(err))
		}
	case models.CallCenterStatusCanceled:
		util.OrdersCancelledTotal.Inc()
		event := &models.OrderCancelledEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderCancelled,
				Timestamp: time.Now(),
			},
			OrderID: order.ID,
			Reason:  "call_center_cancel",
		}
		if err := s.publisher.PublishOrderCancelled(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderCancelled event",
				zap.Int64("order_id", order.ID), zap.Error(err))
		}
	}

	return s.loadOrder(ctx, order)
}

// UpdateDeliveryStatus progresses the physical delivery state.
func (s *OrderService) UpdateDeliveryStatus(ctx context.Context, orderID int64, next string) (*models.Order, error) {
	if !models.IsValidDeliveryStatus(next) {
		return nil, &ValidationError{Fields: []string{"delivery_status"}}
	}

	order, err := s.store.UpdateDeliveryStatusTx(ctx, orderID, next)
	if err != nil {
		return nil, err
	}
	return s.loadOrder(ctx, order)
}

// AddItem appends a line to a still-mutable order.
func (s *OrderService) AddItem(ctx context.Context, orderID int64, req OrderItemRequest) (*models.Order, error) {
	if req.ProductID <= 0 || req.Quantity < 1 {
		return nil, &ValidationError{Fields: []string{"product_id", "quantity"}}
	}

	built, _, err := s.buildItems(ctx, []OrderItemRequest{req})
	if err != nil {
		return nil, err
	}

	if err := s.store.AddOrderItemTx(ctx, orderID, &built[0]); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, orderID)
}

// UpdateItemQuantity changes a line quantity on a still-mutable order.
func (s *OrderService) UpdateItemQuantity(ctx context.Context, orderID, itemID int64, quantity int) (*models.Order, error) {
	if quantity < 1 {
		return nil, &ValidationError{Fields: []string{"quantity"}}
	}
	if err := s.store.UpdateOrderItemQuantityTx(ctx, orderID, itemID, quantity); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, orderID)
}

// RemoveItem deletes a line from a still-mutable order.
func (s *OrderService) RemoveItem(ctx context.Context, orderID, itemID int64) (*models.Order, error) {
	if err := s.store.RemoveOrderItemTx(ctx, orderID, itemID); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, orderID)
}

// loadOrder eagerly attaches items (with products), city and desk.
func (s *OrderService) loadOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	order.OrderNumber = models.FormatOrderNumber(order.ID)

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
	productMap := make(map[int64]*models.Product, len(products))
	for i := range products {
		productMap[products[i].ID] = &products[i]
	}
	for i := range items {
		items[i].Product = productMap[items[i].ProductID]
	}
	order.Items = items

	city, err := s.store.GetCityByID(ctx, order.CityID)
	if err != nil {
		return nil, err
	}
	order.City = city

	if order.DeliveryDeskID != nil {
		desk, err := s.store.GetDeskByID(ctx, *order.DeliveryDeskID)
		if err != nil {
			s.logger.Warn("Failed to load delivery desk",
				zap.Int64("order_id", order.ID), zap.Error(err))
		} else {
			order.Desk = desk
		}
	}

	return order, nil
}
