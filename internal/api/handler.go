package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"boutique-api/internal/models"
	"boutique-api/internal/redisclient"
	"boutique-api/internal/service"
	"boutique-api/internal/store"
	"boutique-api/internal/util"
	"boutique-api/internal/wilaya"
	"boutique-api/internal/yalidine"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler holds the HTTP handlers and their dependencies.
type Handler struct {
	orders    *service.OrderService
	shipments *service.ShipmentService
	carrier   *yalidine.Client
	store     *store.Store
	cache     *redisclient.Client
	logger    *zap.Logger
}

// NewHandler creates a new API handler
func NewHandler(orders *service.OrderService, shipments *service.ShipmentService, carrier *yalidine.Client, st *store.Store, cache *redisclient.Client) *Handler {
	return &Handler{
		orders:    orders,
		shipments: shipments,
		carrier:   carrier,
		store:     st,
		cache:     cache,
		logger:    util.GetLogger(),
	}
}

// SetupRoutes registers all routes on the router
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(prometheusMiddleware())

	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		orders := api.Group("/orders")
		{
			orders.POST("", h.CreateOrder)
			orders.GET("", h.ListOrders)
			orders.GET("/:id", h.GetOrder)
			orders.PATCH("/:id/call-center-status", h.UpdateCallCenterStatus)
			orders.PATCH("/:id/delivery-status", h.UpdateDeliveryStatus)
			orders.POST("/:id/items", h.AddOrderItem)
			orders.PATCH("/:id/items/:itemID", h.UpdateOrderItem)
			orders.DELETE("/:id/items/:itemID", h.RemoveOrderItem)
			orders.POST("/:id/shipment", h.RetryShipment)
		}

		api.GET("/products", h.ListProducts)
		api.GET("/products/:id", h.GetProduct)
		api.GET("/categories", h.ListCategories)
		api.GET("/cities", h.ListCities)
		api.GET("/wilayas", h.ListWilayas)

		shipping := api.Group("/shipping")
		{
			shipping.GET("/status", h.CarrierStatus)
			shipping.GET("/wilayas", h.CarrierWilayas)
			shipping.GET("/communes", h.CarrierCommunes)
			shipping.GET("/centers", h.CarrierCenters)
			shipping.POST("/fees", h.CalculateFees)
			shipping.POST("/shipments", h.CreateShipment)
			shipping.GET("/shipments", h.ListShipments)
			shipping.GET("/shipments/:tracking", h.GetShipment)
			shipping.PATCH("/shipments/:tracking", h.UpdateShipment)
			shipping.DELETE("/shipments/:tracking", h.DeleteShipment)
			shipping.GET("/shipments/:tracking/history", h.GetTrackingHistory)
			shipping.DELETE("/cache", h.InvalidateCarrierCache)
		}

		export := api.Group("/export")
		{
			export.GET("/orders.csv", h.ExportOrdersCSV)
			export.GET("/inventory.csv", h.ExportInventoryCSV)
		}
	}
}

// prometheusMiddleware records per-route request metrics.
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		util.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).
			Observe(time.Since(start).Seconds())
		util.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}

// respondError maps domain errors onto HTTP statuses.
func (h *Handler) respondError(c *gin.Context, err error) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": verr.Fields})
		return
	}

	switch {
	case errors.Is(err, models.ErrOrderNotFound),
		errors.Is(err, models.ErrItemNotFound),
		errors.Is(err, yalidine.ErrShipmentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrUnsupportedWilaya),
		errors.Is(err, models.ErrCityNotFound),
		errors.Is(err, models.ErrProductNotFound),
		errors.Is(err, models.ErrSizeNotFound),
		errors.Is(err, models.ErrInsufficientStock),
		errors.Is(err, models.ErrBadTransition),
		errors.Is(err, models.ErrOrderNotMutable),
		errors.Is(err, yalidine.ErrInvalidPhone):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, yalidine.ErrCarrierUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func parseID(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + param})
		return 0, false
	}
	return id, true
}

// Health is a liveness check.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports whether the database is reachable.
func (h *Handler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.GetDB().PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// CreateOrder handles POST /api/v1/orders
func (h *Handler) CreateOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "order created", "order": order})
}

// GetOrder handles GET /api/v1/orders/:id
func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// ListOrders handles GET /api/v1/orders
func (h *Handler) ListOrders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	orders, err := h.orders.ListOrders(c.Request.Context(), store.OrderFilter{
		CallCenterStatus: c.Query("call_center_status"),
		DeliveryStatus:   c.Query("delivery_status"),
		Limit:            limit,
		Offset:           offset,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateCallCenterStatus handles PATCH /api/v1/orders/:id/call-center-status
func (h *Handler) UpdateCallCenterStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	order, err := h.orders.UpdateCallCenterStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// UpdateDeliveryStatus handles PATCH /api/v1/orders/:id/delivery-status
func (h *Handler) UpdateDeliveryStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	order, err := h.orders.UpdateDeliveryStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// AddOrderItem handles POST /api/v1/orders/:id/items
func (h *Handler) AddOrderItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req service.OrderItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	order, err := h.orders.AddItem(c.Request.Context(), id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type quantityRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

// UpdateOrderItem handles PATCH /api/v1/orders/:id/items/:itemID
func (h *Handler) UpdateOrderItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	itemID, ok := parseID(c, "itemID")
	if !ok {
		return
	}
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity is required"})
		return
	}

	order, err := h.orders.UpdateItemQuantity(c.Request.Context(), id, itemID, req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// RemoveOrderItem handles DELETE /api/v1/orders/:id/items/:itemID
func (h *Handler) RemoveOrderItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	itemID, ok := parseID(c, "itemID")
	if !ok {
		return
	}

	order, err := h.orders.RemoveItem(c.Request.Context(), id, itemID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// RetryShipment handles POST /api/v1/orders/:id/shipment, the operator path for
// re-attempting carrier booking after a rejection or outage.
func (h *Handler) RetryShipment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	order, err := h.shipments.CreateShipmentForOrder(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// ListProducts handles GET /api/v1/products
func (h *Handler) ListProducts(c *gin.Context) {
	products, err := h.store.ListProducts(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "count": len(products)})
}

// GetProduct handles GET /api/v1/products/:id, with size variants attached.
func (h *Handler) GetProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	product, err := h.store.GetProductByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	sizes, err := h.store.GetSizesByProductID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	product.Sizes = sizes
	c.JSON(http.StatusOK, product)
}

// ListCategories handles GET /api/v1/categories
func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.store.ListCategories(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// ListCities handles GET /api/v1/cities
func (h *Handler) ListCities(c *gin.Context) {
	cities, err := h.store.ListCities(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cities": cities})
}

// ListWilayas handles GET /api/v1/wilayas, serving the static directory.
func (h *Handler) ListWilayas(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"wilayas": wilaya.List()})
}

// CarrierStatus handles GET /api/v1/shipping/status
func (h *Handler) CarrierStatus(c *gin.Context) {
	if err := h.carrier.Status(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CarrierWilayas handles GET /api/v1/shipping/wilayas
func (h *Handler) CarrierWilayas(c *gin.Context) {
	wilayas, err := h.carrier.GetWilayas(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wilayas": wilayas})
}

// CarrierCommunes handles GET /api/v1/shipping/communes?wilaya_id=N
func (h *Handler) CarrierCommunes(c *gin.Context) {
	wilayaID, _ := strconv.Atoi(c.Query("wilaya_id"))
	communes, err := h.carrier.GetCommunes(c.Request.Context(), wilayaID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"communes": communes})
}

// CarrierCenters handles GET /api/v1/shipping/centers?wilaya_id=N
func (h *Handler) CarrierCenters(c *gin.Context) {
	wilayaID, _ := strconv.Atoi(c.Query("wilaya_id"))
	centers, err := h.carrier.GetCenters(c.Request.Context(), wilayaID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"centers": centers})
}

type feesRequest struct {
	FromWilayaID  int     `json:"from_wilaya_id"`
	ToWilayaID    int     `json:"to_wilaya_id" binding:"required"`
	Weight        float64 `json:"weight"`
	Length        float64 `json:"length"`
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
	DeclaredValue int64   `json:"declared_value"`
}

// CalculateFees handles POST /api/v1/shipping/fees
func (h *Handler) CalculateFees(c *gin.Context) {
	var req feesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to_wilaya_id is required"})
		return
	}

	quote, err := h.carrier.CalculateFees(c.Request.Context(), yalidine.FeeParams{
		FromWilayaID:  req.FromWilayaID,
		ToWilayaID:    req.ToWilayaID,
		Weight:        req.Weight,
		Length:        req.Length,
		Width:         req.Width,
		Height:        req.Height,
		DeclaredValue: req.DeclaredValue,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// CreateShipment handles POST /api/v1/shipping/shipments, booking a parcel
// directly with the carrier. Order-driven booking goes through the shipment
// worker; this is the manual admin path.
func (h *Handler) CreateShipment(c *gin.Context) {
	var req yalidine.ShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.carrier.CreateShipment(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// ListShipments handles GET /api/v1/shipping/shipments with carrier filters.
func (h *Handler) ListShipments(c *gin.Context) {
	filter := yalidine.ShipmentFilter{
		Status:        c.Query("status"),
		Tracking:      c.Query("tracking"),
		OrderID:       c.Query("order_id"),
		ToCommuneName: c.Query("to_commune_name"),
		DateCreation:  c.Query("date_creation"),
		DateStatus:    c.Query("date_last_status"),
		PaymentStatus: c.Query("payment_status"),
		Month:         c.Query("month"),
	}
	filter.ToWilayaID, _ = strconv.Atoi(c.Query("to_wilaya_id"))
	filter.Page, _ = strconv.Atoi(c.Query("page"))
	if v := c.Query("is_stopdesk"); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			filter.IsStopDesk = &b
		}
	}
	if v := c.Query("freeshipping"); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			filter.FreeShipping = &b
		}
	}

	list, err := h.carrier.ListShipments(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GetShipment handles GET /api/v1/shipping/shipments/:tracking
func (h *Handler) GetShipment(c *gin.Context) {
	shipment, err := h.carrier.GetShipment(c.Request.Context(), c.Param("tracking"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, shipment)
}

// UpdateShipment handles PATCH /api/v1/shipping/shipments/:tracking
func (h *Handler) UpdateShipment(c *gin.Context) {
	var patch map[string]interface{}
	if err := c.ShouldBindJSON(&patch); err != nil || len(patch) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid patch body"})
		return
	}

	shipment, err := h.carrier.UpdateShipment(c.Request.Context(), c.Param("tracking"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, shipment)
}

// DeleteShipment handles DELETE /api/v1/shipping/shipments/:tracking
func (h *Handler) DeleteShipment(c *gin.Context) {
	if err := h.carrier.DeleteShipment(c.Request.Context(), c.Param("tracking")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "shipment deleted"})
}

// InvalidateCarrierCache handles DELETE /api/v1/shipping/cache, forcing fresh
// reference data and quotes from the carrier.
func (h *Handler) InvalidateCarrierCache(c *gin.Context) {
	deleted, err := h.cache.InvalidateCarrier(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "carrier cache invalidated", "deleted": deleted})
}

// GetTrackingHistory handles GET /api/v1/shipping/shipments/:tracking/history
func (h *Handler) GetTrackingHistory(c *gin.Context) {
	events, err := h.carrier.GetTrackingHistory(c.Request.Context(), c.Param("tracking"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tracking": c.Param("tracking"), "events": events})
}
