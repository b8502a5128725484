package api

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"boutique-api/internal/models"
	"boutique-api/internal/store"

	"github.com/gin-gonic/gin"
)

// exportLimit caps a single CSV export; operators narrow with filters.
const exportLimit = 200

var ordersCSVHeader = []string{
	"order_number", "created_at", "customer_name", "customer_phone",
	"delivery_type", "city", "call_center_status", "delivery_status",
	"subtotal", "delivery_fee", "total", "tracking_number",
}

// ExportOrdersCSV handles GET /api/v1/export/orders.csv. The same status
// filters as the JSON listing apply.
func (h *Handler) ExportOrdersCSV(c *gin.Context) {
	ctx := c.Request.Context()

	offset, _ := strconv.Atoi(c.Query("offset"))
	orders, err := h.orders.ListOrders(ctx, store.OrderFilter{
		CallCenterStatus: c.Query("call_center_status"),
		DeliveryStatus:   c.Query("delivery_status"),
		Limit:            exportLimit,
		Offset:           offset,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	cities, err := h.store.ListCities(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}
	cityNames := make(map[int64]string, len(cities))
	for _, city := range cities {
		cityNames[city.ID] = city.Name
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="orders.csv"`)
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write(ordersCSVHeader)
	for _, order := range orders {
		tracking := ""
		if order.TrackingNumber != nil {
			tracking = *order.TrackingNumber
		}
		_ = w.Write([]string{
			order.OrderNumber,
			order.CreatedAt.Format(time.RFC3339),
			order.CustomerName,
			order.CustomerPhone,
			order.DeliveryType,
			cityNames[order.CityID],
			order.CallCenterStatus,
			order.DeliveryStatus,
			strconv.FormatInt(order.Subtotal, 10),
			strconv.FormatInt(order.DeliveryFee, 10),
			strconv.FormatInt(order.Total, 10),
			tracking,
		})
	}
	w.Flush()
}

var inventoryCSVHeader = []string{
	"product_id", "name", "price", "size_label", "stock", "is_active",
}

// ExportInventoryCSV handles GET /api/v1/export/inventory.csv. Sized products
// get one row per size; plain products get a single row with an empty size.
func (h *Handler) ExportInventoryCSV(c *gin.Context) {
	ctx := c.Request.Context()

	products, err := h.store.ListProducts(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}
	sizes, err := h.store.ListProductSizes(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}
	byProduct := make(map[int64][]models.ProductSize)
	for _, size := range sizes {
		byProduct[size.ProductID] = append(byProduct[size.ProductID], size)
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="inventory.csv"`)
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write(inventoryCSVHeader)
	for _, product := range products {
		variants := byProduct[product.ID]
		if len(variants) == 0 {
			_ = w.Write([]string{
				strconv.FormatInt(product.ID, 10),
				product.Name,
				strconv.FormatInt(product.Price, 10),
				"",
				strconv.Itoa(product.Stock),
				strconv.FormatBool(product.IsActive),
			})
			continue
		}
		for _, size := range variants {
			_ = w.Write([]string{
				strconv.FormatInt(product.ID, 10),
				product.Name,
				strconv.FormatInt(product.Price, 10),
				size.Label,
				strconv.Itoa(size.Stock),
				strconv.FormatBool(product.IsActive),
			})
		}
	}
	w.Flush()
}
