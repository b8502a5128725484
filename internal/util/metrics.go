package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order creations",
	}, []string{"reason"})

	OrdersConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_confirmed_total",
		Help: "Total number of orders confirmed by the call center",
	})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of cancelled orders",
	})

	StockRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_rejections_total",
		Help: "Total number of orders rejected for insufficient stock",
	})

	DeskFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "desk_fallbacks_total",
		Help: "Total number of pickup orders persisted without a delivery desk",
	})

	ShipmentsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shipments_created_total",
		Help: "Total number of carrier shipments created",
	})

	ShipmentsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shipments_failed_total",
		Help: "Total number of failed shipment creations",
	}, []string{"reason"})

	CarrierRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "carrier_request_duration_seconds",
		Help:    "Latency of requests to the Yalidine API",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	CarrierErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carrier_errors_total",
		Help: "Total number of Yalidine API errors",
	}, []string{"operation"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
