package models

import "time"

// Event types
const (
	EventTypeOrderCreated    = "ORDER_CREATED"
	EventTypeOrderConfirmed  = "ORDER_CONFIRMED"
	EventTypeOrderCancelled  = "ORDER_CANCELLED"
	EventTypeShipmentCreated = "SHIPMENT_CREATED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when an order is created
type OrderCreatedEvent struct {
	BaseEvent
	OrderID  int64           `json:"order_id"`
	CityID   int64           `json:"city_id"`
	Subtotal int64           `json:"subtotal"`
	Total    int64           `json:"total"`
	Items    []OrderItemData `json:"items"`
}

// OrderConfirmedEvent published when the call center confirms an order;
// drives carrier shipment creation.
type OrderConfirmedEvent struct {
	BaseEvent
	OrderID int64 `json:"order_id"`
}

// OrderCancelledEvent published when an order is cancelled
type OrderCancelledEvent struct {
	BaseEvent
	OrderID int64  `json:"order_id"`
	Reason  string `json:"reason"`
}

// ShipmentCreatedEvent published when a carrier shipment is created
type ShipmentCreatedEvent struct {
	BaseEvent
	OrderID  int64  `json:"order_id"`
	Tracking string `json:"tracking"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	Price     int64 `json:"price"`
}
