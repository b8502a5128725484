package yalidine

import "errors"

var (
	// ErrInvalidPhone is returned by the pre-flight phone check, before any
	// carrier round trip.
	ErrInvalidPhone = errors.New("invalid algerian phone number")
	// ErrCarrierUnavailable marks transport failures and carrier 5xx, so
	// callers can tell "your input is bad" from "the partner is down".
	ErrCarrierUnavailable = errors.New("carrier unavailable")
	ErrShipmentNotFound   = errors.New("shipment not found")
)

// ShipmentRequest is the payload for creating a carrier shipment.
type ShipmentRequest struct {
	OrderID        string  `json:"order_id"`
	FirstName      string  `json:"firstname"`
	FamilyName     string  `json:"familyname"`
	ContactPhone   string  `json:"contact_phone"`
	Address        string  `json:"address"`
	FromWilayaName string  `json:"from_wilaya_name"`
	ToWilayaName   string  `json:"to_wilaya_name"`
	ToCommuneName  string  `json:"to_commune_name"`
	ProductList    string  `json:"product_list"`
	Price          int64   `json:"price"`
	Weight         float64 `json:"weight"`
	Length         float64 `json:"length"`
	Width          float64 `json:"width"`
	Height         float64 `json:"height"`
	IsStopDesk     bool    `json:"is_stopdesk"`
	StopDeskID     *int64  `json:"stopdesk_id,omitempty"`
	FreeShipping   bool    `json:"freeshipping"`
	DoInsurance    bool    `json:"do_insurance"`
	DeclaredValue  int64   `json:"declared_value"`
}

// CreateShipmentResult carries the identifiers the carrier mints.
type CreateShipmentResult struct {
	Tracking string `json:"tracking"`
	Label    string `json:"label"`
	ImportID int64  `json:"import_id"`
}

// Shipment mirrors the carrier's parcel record.
type Shipment struct {
	Tracking       string  `json:"tracking"`
	OrderID        string  `json:"order_id"`
	FirstName      string  `json:"firstname"`
	FamilyName     string  `json:"familyname"`
	ContactPhone   string  `json:"contact_phone"`
	Address        string  `json:"address"`
	FromWilayaName string  `json:"from_wilaya_name"`
	ToWilayaName   string  `json:"to_wilaya_name"`
	ToCommuneName  string  `json:"to_commune_name"`
	ProductList    string  `json:"product_list"`
	Price          int64   `json:"price"`
	Weight         float64 `json:"weight"`
	IsStopDesk     bool    `json:"is_stopdesk"`
	StopDeskID     *int64  `json:"stopdesk_id,omitempty"`
	FreeShipping   bool    `json:"freeshipping"`
	LastStatus     string  `json:"last_status"`
	Label          string  `json:"label"`
	DateCreation   string  `json:"date_creation"`
	DateLastStatus string  `json:"date_last_status"`
	PaymentStatus  string  `json:"payment_status"`
}

// TrackingEvent is one entry of a shipment's history, kept in the exact
// order the carrier returned it.
type TrackingEvent struct {
	Date     string `json:"date_status"`
	Status   string `json:"status"`
	Reason   string `json:"reason"`
	Location string `json:"center_name"`
}

// ShipmentFilter narrows bulk shipment listing.
type ShipmentFilter struct {
	Status        string
	Tracking      string
	OrderID       string
	ToWilayaID    int
	ToCommuneName string
	IsStopDesk    *bool
	FreeShipping  *bool
	DateCreation  string
	DateStatus    string
	PaymentStatus string
	Month         string
	Page          int
}

// ShipmentList is a page of shipments plus paging metadata.
type ShipmentList struct {
	HasMore   bool       `json:"has_more"`
	TotalData int        `json:"total_data"`
	Data      []Shipment `json:"data"`
}

// Wilaya is the carrier's view of a wilaya.
type Wilaya struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Zone        int    `json:"zone"`
	Deliverable bool   `json:"is_deliverable"`
}

// Commune is a second-level subdivision used for fine-grained routing.
type Commune struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	WilayaID    int    `json:"wilaya_id"`
	WilayaName  string `json:"wilaya_name"`
	HasStopDesk bool   `json:"has_stop_desk"`
	Deliverable bool   `json:"is_deliverable"`
}

// Center is a carrier pickup center (stop-desk).
type Center struct {
	ID         int    `json:"center_id"`
	Name       string `json:"name"`
	Address    string `json:"address"`
	WilayaID   int    `json:"wilaya_id"`
	WilayaName string `json:"wilaya_name"`
	CommuneID  int    `json:"commune_id"`
}

// listEnvelope is the carrier's standard collection wrapper.
type listEnvelope[T any] struct {
	HasMore   bool `json:"has_more"`
	TotalData int  `json:"total_data"`
	Data      []T  `json:"data"`
}
