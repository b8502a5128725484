package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"boutique-api/internal/models"
	"boutique-api/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory OrderStore covering the happy paths the service
// exercises. Transactional behavior (locking, rollback) is covered by the
// store integration tests.
type fakeStore struct {
	cities   map[int64]*models.City
	desks    map[int64]*models.DeliveryDesk
	products map[int64]*models.Product
	sizes    map[int64]*models.ProductSize
	orders   map[int64]*models.Order
	items    map[int64][]models.OrderItem

	nextOrderID int64
	nextItemID  int64
	nextDeskID  int64

	deskCreates int
	searchCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		cities:   make(map[int64]*models.City),
		desks:    make(map[int64]*models.DeliveryDesk),
		products: make(map[int64]*models.Product),
		sizes:    make(map[int64]*models.ProductSize),
		orders:   make(map[int64]*models.Order),
		items:    make(map[int64][]models.OrderItem),
	}
}

func (f *fakeStore) GetCityByID(_ context.Context, id int64) (*models.City, error) {
	if city, ok := f.cities[id]; ok {
		return city, nil
	}
	return nil, fmt.Errorf("%w: %d", models.ErrCityNotFound, id)
}

func (f *fakeStore) GetCityByExactName(_ context.Context, name string) (*models.City, error) {
	for _, city := range f.cities {
		if city.Name == name {
			return city, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) SearchCity(_ context.Context, term string) (*models.City, error) {
	f.searchCalls++
	needle := strings.ToLower(term)
	var best *models.City
	for _, city := range f.cities {
		if strings.Contains(strings.ToLower(city.Name), needle) ||
			strings.Contains(city.NameAr, term) {
			if best == nil || city.ID < best.ID {
				best = city
			}
		}
	}
	return best, nil
}

func (f *fakeStore) GetFirstActiveDesk(_ context.Context, cityID int64) (*models.DeliveryDesk, error) {
	var best *models.DeliveryDesk
	for _, desk := range f.desks {
		if desk.CityID == cityID && desk.IsActive {
			if best == nil || desk.ID < best.ID {
				best = desk
			}
		}
	}
	return best, nil
}

func (f *fakeStore) CreateDesk(_ context.Context, desk *models.DeliveryDesk) error {
	f.nextDeskID++
	f.deskCreates++
	desk.ID = f.nextDeskID
	f.desks[desk.ID] = desk
	return nil
}

func (f *fakeStore) GetDeskByID(_ context.Context, id int64) (*models.DeliveryDesk, error) {
	if desk, ok := f.desks[id]; ok {
		return desk, nil
	}
	return nil, fmt.Errorf("desk %d not found", id)
}

func (f *fakeStore) GetOrderByIdempotencyKey(_ context.Context, key string) (*models.Order, error) {
	for _, order := range f.orders {
		if order.IdempotencyKey == key {
			return order, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetProductByID(_ context.Context, id int64) (*models.Product, error) {
	if p, ok := f.products[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %d", models.ErrProductNotFound, id)
}

func (f *fakeStore) GetProductsByIDs(_ context.Context, ids []int64) ([]models.Product, error) {
	var out []models.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) GetProductSize(_ context.Context, sizeID, productID int64) (*models.ProductSize, error) {
	size, ok := f.sizes[sizeID]
	if !ok || size.ProductID != productID {
		return nil, fmt.Errorf("%w: %d", models.ErrSizeNotFound, sizeID)
	}
	return size, nil
}

func (f *fakeStore) CreateOrderTx(_ context.Context, order *models.Order) error {
	for i := range order.Items {
		item := &order.Items[i]
		if item.SizeID != nil {
			if f.sizes[*item.SizeID].Stock < item.Quantity {
				return fmt.Errorf("%w: product %d", models.ErrInsufficientStock, item.ProductID)
			}
		} else if f.products[item.ProductID].Stock < item.Quantity {
			return fmt.Errorf("%w: product %d", models.ErrInsufficientStock, item.ProductID)
		}
	}

	f.nextOrderID++
	order.ID = f.nextOrderID
	for i := range order.Items {
		item := &order.Items[i]
		f.nextItemID++
		item.ID = f.nextItemID
		item.OrderID = order.ID
		if item.SizeID != nil {
			f.sizes[*item.SizeID].Stock -= item.Quantity
		} else {
			f.products[item.ProductID].Stock -= item.Quantity
		}
	}
	stored := *order
	f.orders[order.ID] = &stored
	f.items[order.ID] = append([]models.OrderItem{}, order.Items...)
	return nil
}

func (f *fakeStore) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	if order, ok := f.orders[id]; ok {
		copied := *order
		return &copied, nil
	}
	return nil, fmt.Errorf("%w: %d", models.ErrOrderNotFound, id)
}

func (f *fakeStore) GetOrderItemsByOrderID(_ context.Context, orderID int64) ([]models.OrderItem, error) {
	return append([]models.OrderItem{}, f.items[orderID]...), nil
}

func (f *fakeStore) ListOrders(_ context.Context, filter store.OrderFilter) ([]models.Order, error) {
	var out []models.Order
	for _, order := range f.orders {
		if filter.CallCenterStatus != "" && order.CallCenterStatus != filter.CallCenterStatus {
			continue
		}
		if filter.DeliveryStatus != "" && order.DeliveryStatus != filter.DeliveryStatus {
			continue
		}
		out = append(out, *order)
	}
	return out, nil
}

func (f *fakeStore) UpdateCallCenterStatusTx(_ context.Context, orderID int64, next string) (*models.Order, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", models.ErrOrderNotFound, orderID)
	}
	if !models.CanTransitionCallCenter(order.CallCenterStatus, next) {
		return nil, fmt.Errorf("%w: call center %s -> %s",
			models.ErrBadTransition, order.CallCenterStatus, next)
	}
	if next == models.CallCenterStatusCanceled && !order.StockRestored {
		for _, item := range f.items[orderID] {
			if item.SizeID != nil {
				f.sizes[*item.SizeID].Stock += item.Quantity
			} else {
				f.products[item.ProductID].Stock += item.Quantity
			}
		}
		order.StockRestored = true
	}
	order.CallCenterStatus = next
	copied := *order
	return &copied, nil
}

func (f *fakeStore) UpdateDeliveryStatusTx(_ context.Context, orderID int64, next string) (*models.Order, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", models.ErrOrderNotFound, orderID)
	}
	if !models.CanTransitionDelivery(order.DeliveryStatus, next) {
		return nil, fmt.Errorf("%w: delivery %s -> %s",
			models.ErrBadTransition, order.DeliveryStatus, next)
	}
	order.DeliveryStatus = next
	copied := *order
	return &copied, nil
}

func (f *fakeStore) AddOrderItemTx(_ context.Context, orderID int64, item *models.OrderItem) error {
	order, ok := f.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: %d", models.ErrOrderNotFound, orderID)
	}
	if !order.Mutable() {
		return fmt.Errorf("%w: %d", models.ErrOrderNotMutable, orderID)
	}
	f.nextItemID++
	item.ID = f.nextItemID
	item.OrderID = orderID
	f.items[orderID] = append(f.items[orderID], *item)
	if item.SizeID != nil {
		f.sizes[*item.SizeID].Stock -= item.Quantity
	} else {
		f.products[item.ProductID].Stock -= item.Quantity
	}
	f.recomputeTotals(orderID)
	return nil
}

func (f *fakeStore) UpdateOrderItemQuantityTx(_ context.Context, orderID, itemID int64, quantity int) error {
	order, ok := f.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: %d", models.ErrOrderNotFound, orderID)
	}
	if !order.Mutable() {
		return fmt.Errorf("%w: %d", models.ErrOrderNotMutable, orderID)
	}
	for i := range f.items[orderID] {
		item := &f.items[orderID][i]
		if item.ID == itemID {
			delta := quantity - item.Quantity
			if item.SizeID != nil {
				f.sizes[*item.SizeID].Stock -= delta
			} else {
				f.products[item.ProductID].Stock -= delta
			}
			item.Quantity = quantity
			f.recomputeTotals(orderID)
			return nil
		}
	}
	return fmt.Errorf("%w: %d", models.ErrItemNotFound, itemID)
}

func (f *fakeStore) RemoveOrderItemTx(_ context.Context, orderID, itemID int64) error {
	order, ok := f.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: %d", models.ErrOrderNotFound, orderID)
	}
	if !order.Mutable() {
		return fmt.Errorf("%w: %d", models.ErrOrderNotMutable, orderID)
	}
	items := f.items[orderID]
	for i := range items {
		if items[i].ID == itemID {
			if items[i].SizeID != nil {
				f.sizes[*items[i].SizeID].Stock += items[i].Quantity
			} else {
				f.products[items[i].ProductID].Stock += items[i].Quantity
			}
			f.items[orderID] = append(items[:i], items[i+1:]...)
			f.recomputeTotals(orderID)
			return nil
		}
	}
	return fmt.Errorf("%w: %d", models.ErrItemNotFound, itemID)
}

func (f *fakeStore) recomputeTotals(orderID int64) {
	order := f.orders[orderID]
	var subtotal int64
	for _, item := range f.items[orderID] {
		subtotal += item.Price * int64(item.Quantity)
	}
	order.Subtotal = subtotal
	order.Total = subtotal + order.DeliveryFee
}

type fakePublisher struct {
	created   []*models.OrderCreatedEvent
	confirmed []*models.OrderConfirmedEvent
	cancelled []*models.OrderCancelledEvent
	failNext  bool
}

func (f *fakePublisher) PublishOrderCreated(_ context.Context, e *models.OrderCreatedEvent) error {
	if f.failNext {
		f.failNext = false
		return fmt.Errorf("broker down")
	}
	f.created = append(f.created, e)
	return nil
}

func (f *fakePublisher) PublishOrderConfirmed(_ context.Context, e *models.OrderConfirmedEvent) error {
	f.confirmed = append(f.confirmed, e)
	return nil
}

func (f *fakePublisher) PublishOrderCancelled(_ context.Context, e *models.OrderCancelledEvent) error {
	f.cancelled = append(f.cancelled, e)
	return nil
}

func seedCatalog(f *fakeStore) {
	f.cities[1] = &models.City{ID: 1, Name: "Alger", NameAr: "الجزائر", Code: "16", IsActive: true}
	f.cities[2] = &models.City{ID: 2, Name: "Oran", NameAr: "وهران", Code: "31", IsActive: true}

	f.products[10] = &models.Product{ID: 10, Name: "Hijab Classic", Price: 1000, Stock: 20, IsActive: true}
	f.products[11] = &models.Product{ID: 11, Name: "Abaya Noir", Price: 3500, Stock: 5, IsActive: true}
	f.products[12] = &models.Product{ID: 12, Name: "Retired Scarf", Price: 800, Stock: 50, IsActive: false}

	f.sizes[100] = &models.ProductSize{ID: 100, ProductID: 11, Label: "M", Stock: 2}
}

func newTestService(f *fakeStore, pub *fakePublisher) *OrderService {
	return NewOrderService(f, NewGeoResolver(f), pub, 500)
}

func pickupRequest() *CreateOrderRequest {
	return &CreateOrderRequest{
		CustomerName:  "Amina Benali",
		CustomerPhone: "0551234567",
		DeliveryType:  models.DeliveryTypePickup,
		WilayaID:      16,
		Items: []OrderItemRequest{
			{ProductID: 10, Quantity: 2},
		},
	}
}

func TestCreateOrderPickup(t *testing.T) {
	fs := newFakeStore()
	seedCatalog(fs)
	fs.desks[7] = &models.DeliveryDesk{ID: 7, Name: "Yalidine Alger Centre", CityID: 1, IsActive: true}
	pub := &fakePublisher{}
	svc := newTestService(fs, pub)

	order, err := svc.CreateOrder(context.Background(), pickupRequest())
	require.NoError(t, err)

	assert.Equal(t, int64(2000), order.Subtotal)
	assert.Equal(t, int64(0), order.DeliveryFee, "pickup carries no delivery fee")
	assert.Equal(t, int64(2000), order.Total)
	assert.Regexp(t, regexp.MustCompile(`^ORD-\d{6}$`), order.OrderNumber)
	assert.Equal(t, models.CallCenterStatusNew, order.CallCenterStatus)
	assert.Equal(t, models.DeliveryStatusNotReady, order.DeliveryStatus)

	require.NotNil(t, order.DeliveryDeskID)
	assert.Equal(t, int64(7), *order.DeliveryDeskID)
	require.NotNil(t, order.Desk)

	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(1000), order.Items[0].Price)
	require.NotNil(t, order.Items[0].Product)
	assert.Equal(t, "Hijab Classic", order.Items[0].Product.Name)

	assert.Equal(t, 18, fs.products[10].Stock, "stock decremented by quantity")
	require.Len(t, pub.created, 1)
	assert.Equal(t, order.ID, pub.created[0].OrderID)
}

func TestCreateOrderHomeDelivery(t *testing.T) {
	fs := newFakeStore()
	seedCatalog(fs)
	pub := &fakePublisher{}
	svc := newTestService(fs, pub)

	address := "12 Rue Didouche Mourad"
	order, err := svc.CreateOrder(context.Background(), &CreateOrderRequest{
		CustomerName:    "Karim Haddad",
		CustomerPhone:   "0661234567",
		DeliveryType:    models.DeliveryTypeHome,
		DeliveryAddress: &address,
		WilayaID:        31,
		Items: []OrderItemRequest{
			{ProductID: 10, Quantity: 2},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2000), order.Subtotal)
	assert.Equal(t, int64(500), order.DeliveryFee)
	assert.Equal(t, int64(2500), order.Total)
	assert.Nil(t, order.DeliveryDeskID)
	require.NotNil(t, order.City)
	assert.Equal(t, "Oran", order.City.Name)
}

func TestCreateOrderSizedItem(t *testing.T) {
	fs := newFakeStore()
	seedCatalog(fs)
	svc := newTestService(fs, &fakePublisher{})

	sizeID := int64(100)
	order, err := svc.CreateOrder(context.Background(), &CreateOrderRequest{
		CustomerName:  "Amina Benali",
		CustomerPhone: "0551234567",
		DeliveryType:  models.DeliveryTypePickup,
		WilayaID:      16,
		Items: []OrderItemRequest{
			{ProductID: 11, Quantity: 2, SizeID: &sizeID},
		},
	})
	require.NoError(t, err)

	require.Len(t, order.Items, 1)
	require.NotNil(t, order.Items[0].SizeLabel)
	assert.Equal(t, "M", *order.Items[0].SizeLabel)
	assert.Equal(t, 0, fs.sizes[100].Stock, "size stock, not product stock, is decremented")
	assert.Equal(t, 5, fs.products[11].Stock)
}

func TestCreateOrderValidation(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakePublisher{})

	_, err := svc.CreateOrder(context.Background(), &CreateOrderRequest{
		CustomerName:  "",
		CustomerPhone: "055",
		DeliveryType:  "DRONE",
		WilayaID:      0,
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "customer_name")
	assert.Contains(t, verr.Fields, "customer_phone")
	assert.Contains(t, verr.Fields, "delivery_type")
	assert.Contains(t, verr.Fields, "wilaya_id")
	assert.Contains(t, verr.Fields, "items")
}

func TestCreateOrderHomeDeliveryRequiresAddress(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakePublisher{})

	req := pickupRequest()
	req.DeliveryType = models.DeliveryTypeHome
	_, err := svc.CreateOrder(context.Background(), req)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"delivery_address"}, verr.Fields)
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	fs := newFakeStore()
	seedCatalog(fs)
	svc := newTestService(fs, &fakePublisher{})

	req := pickupRequest()
	req.Items = []OrderItemRequest{{ProductID: 11, Quantity: 6}}
	_, err := svc.CreateOrder(context.Background(), req)

	assert.ErrorIs(t, err, models.ErrInsufficientStock)
	assert.Equal(t, 5, fs.products[11].Stock, "no decrement on rejection")
}

func TestCreateOrderInactiveProduct(t *testing.T) {
	fs := newFakeStore()
	seedCatalog(fs)
	svc := newTestService(fs, &fakePublisher{})

	req := pickupRequest()
	req.Items = []OrderItemRequest{{ProductID: 12, Quantity: 1}}
	_, err := svc.CreateOrder(context.Background(), req)

	assert.ErrorIs(t, err, models.ErrProductNotFound)
}

func TestCreateOrderUnsupportedWilaya(t *testing.T) {
	fs := newFakeStore()
	seedCatalog(fs)
	svc := newTestService(fs, &fakePublisher{})

	req := pickupRequest()
	req.WilayaID = 99
	_, err := svc.CreateOrder(context.Background(), req)
	assert.ErrorIs(t, err, models.ErrUnsupportedWilaya)
}

func TestCreateOrderIdempotency(t *testing.T) {
	fs := newFakeStore()
	seedCatalog(fs)
	pub := &fakePublisher{}
	svc := newTestService(fs, pub)

	req := pickupRequest()
	req.IdempotencyKey = "checkout-abc"

	first, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)

	second, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, fs.orders, 1)
	assert.Len(t, pub.created, 1, "replay does not re-publish")
	assert.Equal(t, 18, fs.products[10].Stock, "replay does not re-decrement")
}

func TestCreateOrderSurvivesPublishFailure(t *testing.T) {
	fs := newFakeStore()
	seedCatalog(fs)
	pub := &fakePublisher{failNext: true}
	svc := newTestService(fs, pub)

	order, err := svc.CreateOrder(context.Background(), pickupRequest())
	require.NoError(t, err, "publish failure must not fail the checkout")
	assert.NotZero(t, order.ID)
}

func TestUpdateCallCenterStatus(t *testing.T) {
	fs := newFakeStore()
	seedCatalog(fs)
	pub := &fakePublisher{}
	svc := newTestService(fs, pub)

	order, err := svc.CreateOrder(context.Background(), pickupRequest())
	require.NoError(t, err)

	confirmed, err := svc.UpdateCallCenterStatus(context.Background(), order.ID, models.CallCenterStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, models.CallCenterStatusConfirmed, confirmed.CallCenterStatus)
	require.Len(t, pub.confirmed, 1)
	assert.Equal(t, order.ID, pub.confirmed[0].OrderID)

	// Confirmed orders may still be canceled, which restocks and announces.
	canceled, err := svc.UpdateCallCenterStatus(context.Background(), order.ID, models.CallCenterStatusCanceled)
	require.NoError(t, err)
	assert.Equal(t, models.CallCenterStatusCanceled, canceled.CallCenterStatus)
	require.Len(t, pub.cancelled, 1)
	assert.Equal(t, 20, fs.products[10].Stock, "cancel restores stock")

	// CANCELED is terminal.
	_, err = svc.UpdateCallCenterStatus(context.Background(), order.ID, models.CallCenterStatusNew)
	assert.ErrorIs(t, err, models.ErrBadTransition)
}

func TestUpdateCallCenterStatusRejectsUnknown(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakePublisher{})

	_, err := svc.UpdateCallCenterStatus(context.Background(), 1, "SHIPPED")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestUpdateDeliveryStatusLinear(t *testing.T) {
	fs := newFakeStore()
	seedCatalog(fs)
	svc := newTestService(fs, &fakePublisher{})

	order, err := svc.CreateOrder(context.Background(), pickupRequest())
	require.NoError(t, err)

	// Skipping READY is not allowed.
	_, err = svc.UpdateDeliveryStatus(context.Background(), order.ID, models.DeliveryStatusInTransit)
	assert.ErrorIs(t, err, models.ErrBadTransition)

	for _, next := range []string{
		models.DeliveryStatusReady, models.DeliveryStatusInTransit, models.DeliveryStatusDone,
	} {
		order, err = svc.UpdateDeliveryStatus(context.Background(), order.ID, next)
		require.NoError(t, err)
		assert.Equal(t, next, order.DeliveryStatus)
	}
}

func TestItemMutations(t *testing.T) {
	fs := newFakeStore()
	seedCatalog(fs)
	svc := newTestService(fs, &fakePublisher{})

	order, err := svc.CreateOrder(context.Background(), pickupRequest())
	require.NoError(t, err)
	require.Equal(t, int64(2000), order.Total)

	order, err = svc.AddItem(context.Background(), order.ID, OrderItemRequest{ProductID: 11, Quantity: 1})
	require.NoError(t, err)
	require.Len(t, order.Items, 2)
	assert.Equal(t, int64(5500), order.Subtotal)
	assert.Equal(t, int64(5500), order.Total)

	order, err = svc.UpdateItemQuantity(context.Background(), order.ID, order.Items[0].ID, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(6500), order.Subtotal)
	assert.Equal(t, 17, fs.products[10].Stock)

	order, err = svc.RemoveItem(context.Background(), order.ID, order.Items[1].ID)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(3000), order.Subtotal)
	assert.Equal(t, 5, fs.products[11].Stock, "removal restores stock")
}

func TestItemMutationsBlockedAfterConfirmation(t *testing.T) {
	fs := newFakeStore()
	seedCatalog(fs)
	svc := newTestService(fs, &fakePublisher{})

	order, err := svc.CreateOrder(context.Background(), pickupRequest())
	require.NoError(t, err)
	_, err = svc.UpdateCallCenterStatus(context.Background(), order.ID, models.CallCenterStatusConfirmed)
	require.NoError(t, err)

	_, err = svc.AddItem(context.Background(), order.ID, OrderItemRequest{ProductID: 11, Quantity: 1})
	assert.ErrorIs(t, err, models.ErrOrderNotMutable)
}
