package models

import "errors"

// Business-rule errors surfaced to API callers. Handlers map these to 400s;
// anything else is a 500.
var (
	ErrUnsupportedWilaya = errors.New("unsupported wilaya")
	ErrCityNotFound      = errors.New("city not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrSizeNotFound      = errors.New("product size not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderNotMutable   = errors.New("order can no longer be modified")
	ErrItemNotFound      = errors.New("order item not found")
	ErrBadTransition     = errors.New("status transition not allowed")
)
