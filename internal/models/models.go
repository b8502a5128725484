package models

import (
	"fmt"
	"time"
)

// City is a deliverable city, keyed to a wilaya by its 2-digit code.
type City struct {
	ID     int64  `db:"id" json:"id"`
	Name   string `db:"name" json:"name"`
	NameAr string `db:"name_ar" json:"name_ar"`
	Code   string `db:"code" json:"code"`
	// DeliveryFee is reference data shown on admin screens; order pricing
	// uses the configured flat fee.
	DeliveryFee int64 `db:"delivery_fee" json:"delivery_fee"`
	IsActive    bool  `db:"is_active" json:"is_active"`
}

// DeliveryDesk is a pickup point belonging to a city.
type DeliveryDesk struct {
	ID       int64   `db:"id" json:"id"`
	Name     string  `db:"name" json:"name"`
	NameAr   string  `db:"name_ar" json:"name_ar"`
	Address  string  `db:"address" json:"address"`
	Phone    *string `db:"phone" json:"phone,omitempty"`
	CityID   int64   `db:"city_id" json:"city_id"`
	IsActive bool    `db:"is_active" json:"is_active"`
}

// Category groups products in the catalog
type Category struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Product represents a catalog product; Stock is the plain (non-sized) counter
type Product struct {
	ID          int64     `db:"id" json:"id"`
	CategoryID  *int64    `db:"category_id" json:"category_id,omitempty"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Price       int64     `db:"price" json:"price"`
	Stock       int       `db:"stock" json:"stock"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`

	Sizes []ProductSize `db:"-" json:"sizes,omitempty"`
}

// ProductSize is a size variant carrying its own stock counter.
type ProductSize struct {
	ID        int64  `db:"id" json:"id"`
	ProductID int64  `db:"product_id" json:"product_id"`
	Label     string `db:"size_label" json:"size_label"`
	Stock     int    `db:"stock" json:"stock"`
}

// Order represents a customer order
type Order struct {
	ID              int64   `db:"id" json:"id"`
	OrderNumber     string  `db:"-" json:"order_number"`
	CustomerName    string  `db:"customer_name" json:"customer_name"`
	CustomerPhone   string  `db:"customer_phone" json:"customer_phone"`
	CustomerEmail   *string `db:"customer_email" json:"customer_email,omitempty"`
	DeliveryType    string  `db:"delivery_type" json:"delivery_type"`
	DeliveryAddress *string `db:"delivery_address" json:"delivery_address,omitempty"`
	CityID          int64   `db:"city_id" json:"city_id"`
	DeliveryDeskID  *int64  `db:"delivery_desk_id" json:"delivery_desk_id,omitempty"`
	DeliveryFee     int64   `db:"delivery_fee" json:"delivery_fee"`
	Subtotal        int64   `db:"subtotal" json:"subtotal"`
	Total           int64   `db:"total" json:"total"`
	Notes           *string `db:"notes" json:"notes,omitempty"`

	CallCenterStatus string  `db:"call_center_status" json:"call_center_status"`
	DeliveryStatus   string  `db:"delivery_status" json:"delivery_status"`
	TrackingNumber   *string `db:"tracking_number" json:"tracking_number,omitempty"`
	ShipmentID       *string `db:"shipment_id" json:"shipment_id,omitempty"`
	// StockRestored guards cancellation restock so it runs at most once.
	StockRestored  bool   `db:"stock_restored" json:"-"`
	IdempotencyKey string `db:"idempotency_key" json:"idempotency_key,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	Items []OrderItem   `db:"-" json:"items,omitempty"`
	City  *City         `db:"-" json:"city,omitempty"`
	Desk  *DeliveryDesk `db:"-" json:"delivery_desk,omitempty"`
}

// OrderItem snapshots the product price (and size label) at order time.
type OrderItem struct {
	ID        int64   `db:"id" json:"id"`
	OrderID   int64   `db:"order_id" json:"order_id"`
	ProductID int64   `db:"product_id" json:"product_id"`
	Quantity  int     `db:"quantity" json:"quantity"`
	Price     int64   `db:"price" json:"price"`
	SizeID    *int64  `db:"size_id" json:"size_id,omitempty"`
	SizeLabel *string `db:"size_label" json:"size_label,omitempty"`

	Product *Product `db:"-" json:"product,omitempty"`
}

// Delivery types
const (
	DeliveryTypeHome   = "HOME_DELIVERY"
	DeliveryTypePickup = "PICKUP"
)

// Call-center statuses
const (
	CallCenterStatusNew         = "NEW"
	CallCenterStatusConfirmed   = "CONFIRMED"
	CallCenterStatusPending     = "PENDING"
	CallCenterStatusCanceled    = "CANCELED"
	CallCenterStatusDoubleOrder = "DOUBLE_ORDER"
	CallCenterStatusDelayed     = "DELAYED"
	CallCenterStatusNoResponse  = "NO_RESPONSE"
)

// Delivery statuses
const (
	DeliveryStatusNotReady  = "NOT_READY"
	DeliveryStatusReady     = "READY"
	DeliveryStatusInTransit = "IN_TRANSIT"
	DeliveryStatusDone      = "DONE"
)

var callCenterTransitions = map[string][]string{
	CallCenterStatusNew: {
		CallCenterStatusConfirmed, CallCenterStatusPending, CallCenterStatusCanceled,
		CallCenterStatusDoubleOrder, CallCenterStatusDelayed, CallCenterStatusNoResponse,
	},
	CallCenterStatusPending: {
		CallCenterStatusConfirmed, CallCenterStatusCanceled,
		CallCenterStatusDelayed, CallCenterStatusNoResponse, CallCenterStatusDoubleOrder,
	},
	CallCenterStatusDelayed: {
		CallCenterStatusConfirmed, CallCenterStatusCanceled,
		CallCenterStatusPending, CallCenterStatusNoResponse,
	},
	CallCenterStatusNoResponse: {
		CallCenterStatusConfirmed, CallCenterStatusCanceled,
		CallCenterStatusPending, CallCenterStatusDelayed,
	},
	CallCenterStatusDoubleOrder: {
		CallCenterStatusConfirmed, CallCenterStatusCanceled,
	},
	CallCenterStatusConfirmed: {
		CallCenterStatusCanceled,
	},
}

var deliveryTransitions = map[string][]string{
	DeliveryStatusNotReady:  {DeliveryStatusReady},
	DeliveryStatusReady:     {DeliveryStatusInTransit},
	DeliveryStatusInTransit: {DeliveryStatusDone},
}

// CanTransitionCallCenter reports whether the call-center status may move
// from current to next. CANCELED is terminal.
func CanTransitionCallCenter(current, next string) bool {
	for _, allowed := range callCenterTransitions[current] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanTransitionDelivery reports whether the delivery status may move from
// current to next. Progression is strictly linear.
func CanTransitionDelivery(current, next string) bool {
	for _, allowed := range deliveryTransitions[current] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsValidCallCenterStatus reports whether s is a known call-center status.
func IsValidCallCenterStatus(s string) bool {
	switch s {
	case CallCenterStatusNew, CallCenterStatusConfirmed, CallCenterStatusPending,
		CallCenterStatusCanceled, CallCenterStatusDoubleOrder,
		CallCenterStatusDelayed, CallCenterStatusNoResponse:
		return true
	}
	return false
}

// IsValidDeliveryStatus reports whether s is a known delivery status.
func IsValidDeliveryStatus(s string) bool {
	switch s {
	case DeliveryStatusNotReady, DeliveryStatusReady,
		DeliveryStatusInTransit, DeliveryStatusDone:
		return true
	}
	return false
}

// Mutable reports whether order items may still be added, removed or
// re-quantified. Mutations stop once the order is confirmed or canceled.
func (o *Order) Mutable() bool {
	return o.CallCenterStatus != CallCenterStatusConfirmed &&
		o.CallCenterStatus != CallCenterStatusCanceled
}

// FormatOrderNumber renders the human-readable order number from the
// autoincrement id.
func FormatOrderNumber(id int64) string {
	return fmt.Sprintf("ORD-%06d", id)
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
