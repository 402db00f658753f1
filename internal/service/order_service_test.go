package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/models"
	"storefront-service/internal/pricing"
)

type fakeOrderStore struct {
	placeErr    error
	placed      []*models.Order
	placedItems [][]models.OrderItem
	statuses    map[int64]string
}

func (f *fakeOrderStore) PlaceOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	if f.placeErr != nil {
		return f.placeErr
	}
	order.ID = int64(len(f.placed) + 1)
	f.placed = append(f.placed, order)
	f.placedItems = append(f.placedItems, items)
	return nil
}

func (f *fakeOrderStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	for _, o := range f.placed {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, &models.NotFoundError{Resource: "order", ID: id}
}

func (f *fakeOrderStore) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	var out []models.Order
	for _, o := range f.placed {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	if int(orderID) <= len(f.placedItems) {
		return f.placedItems[orderID-1], nil
	}
	return nil, nil
}

func (f *fakeOrderStore) UpdateOrderStatus(ctx context.Context, orderID int64, status string) (string, error) {
	order, err := f.GetOrderByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	if order.Status == models.OrderStatusCompleted || order.Status == models.OrderStatusCancelled {
		return "", &models.TerminalOrderError{OrderID: orderID, Status: order.Status}
	}
	old := order.Status
	order.Status = status
	return old, nil
}

type fakeSettings struct {
	snapshot models.AppSettings
}

func (f *fakeSettings) Snapshot(ctx context.Context) (*models.AppSettings, error) {
	s := f.snapshot
	return &s, nil
}

type fakePayments struct {
	calls    int
	redirect string
	err      error
}

func (f *fakePayments) StartPayment(ctx context.Context, order *models.Order) (string, error) {
	f.calls++
	return f.redirect, f.err
}

type svcCatalog struct {
	products map[int64]*models.Product
	variants map[int64]*models.ProductVariant
}

func (c *svcCatalog) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	p, ok := c.products[id]
	if !ok {
		return nil, &models.NotFoundError{Resource: "product", ID: id}
	}
	return p, nil
}

func (c *svcCatalog) GetVariantByID(ctx context.Context, productID, variantID int64) (*models.ProductVariant, error) {
	v, ok := c.variants[variantID]
	if !ok || v.ProductID != productID {
		return nil, &models.NotFoundError{Resource: "variant", ID: variantID}
	}
	return v, nil
}

func placementFixture(storeFake *fakeOrderStore, payments *fakePayments) *OrderPlacementService {
	catalog := &svcCatalog{
		products: map[int64]*models.Product{
			1: {ID: 1, Name: models.TranslatedText{En: "Shirt", Ar: "قميص"}, Price: decimal.RequireFromString("10.00")},
		},
	}
	settings := &fakeSettings{snapshot: models.AppSettings{
		BaseDeliveryFee:         decimal.RequireFromString("5.0"),
		DeliveryThresholdKm:     decimal.RequireFromString("5.0"),
		ExtraFeePerKm:           decimal.RequireFromString("1.0"),
		MaxDeliveryDistanceKm:   decimal.RequireFromString("20.0"),
		CreditCardChargePercent: decimal.RequireFromString("2.5"),
	}}
	return NewOrderPlacementService(storeFake, pricing.NewEngine(catalog), settings, payments, nil)
}

func validRequest() *PlaceOrderRequest {
	distance := decimal.RequireFromString("7")
	return &PlaceOrderRequest{
		UserID:        42,
		Phone:         "+218911234567",
		DistanceKm:    &distance,
		Items:         []pricing.LineRequest{{ProductID: 1, Quantity: 10}},
		PaymentMethod: models.PaymentMethodCash,
	}
}

func TestPlaceOrderCash(t *testing.T) {
	storeFake := &fakeOrderStore{}
	payments := &fakePayments{}
	svc := placementFixture(storeFake, payments)

	resp, err := svc.PlaceOrder(context.Background(), validRequest())
	require.NoError(t, err)

	// subtotal 100.00 + fee(7km) 7.00, no surcharge for cash
	assert.True(t, resp.Order.TotalAmount.Equal(decimal.RequireFromString("107.00")),
		"got %s", resp.Order.TotalAmount)
	assert.True(t, resp.Order.DeliveryFee.Equal(decimal.RequireFromString("7.00")))
	assert.Equal(t, models.OrderStatusPending, resp.Order.Status)
	assert.Equal(t, models.PaymentStatusPending, resp.Order.PaymentStatus)
	assert.Empty(t, resp.RedirectURL)
	assert.Equal(t, 0, payments.calls, "cash orders never open a payment session")
	require.Len(t, storeFake.placed, 1)
	require.Len(t, storeFake.placedItems[0], 1)
	assert.Equal(t, "Shirt", storeFake.placedItems[0][0].Name)
}

func TestPlaceOrderCreditCard(t *testing.T) {
	storeFake := &fakeOrderStore{}
	payments := &fakePayments{redirect: "https://gateway.example/checkout?x=1"}
	svc := placementFixture(storeFake, payments)

	req := validRequest()
	req.PaymentMethod = models.PaymentMethodCreditCard

	resp, err := svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)

	// subtotal 100.00 + surcharge 2.50 + fee 7.00; surcharge excludes the delivery fee
	assert.True(t, resp.Order.TotalAmount.Equal(decimal.RequireFromString("109.50")),
		"got %s", resp.Order.TotalAmount)
	assert.Equal(t, 1, payments.calls)
	assert.Equal(t, payments.redirect, resp.RedirectURL)
	assert.Equal(t, models.PaymentStatusPending, resp.Order.PaymentStatus,
		"payment stays pending until webhook confirmation")
}

func TestPlaceOrderPaymentInitFailureKeepsOrder(t *testing.T) {
	storeFake := &fakeOrderStore{}
	payments := &fakePayments{err: &models.PaymentProviderError{Code: "moamalat", Err: errors.New("timeout")}}
	svc := placementFixture(storeFake, payments)

	req := validRequest()
	req.PaymentMethod = models.PaymentMethodCreditCard

	resp, err := svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err, "a committed order is never rolled back by payment init")
	assert.NotEmpty(t, resp.PaymentError)
	assert.Empty(t, resp.RedirectURL)
	assert.Len(t, storeFake.placed, 1)
}

func TestPlaceOrderCollectsAllViolations(t *testing.T) {
	storeFake := &fakeOrderStore{}
	svc := placementFixture(storeFake, &fakePayments{})

	req := &PlaceOrderRequest{
		UserID:        42,
		Phone:         "nope",
		Items:         nil,
		PaymentMethod: "barter",
	}

	_, err := svc.PlaceOrder(context.Background(), req)

	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Len(t, validation.Fields, 3)
	assert.Contains(t, validation.Fields, "phone")
	assert.Contains(t, validation.Fields, "items")
	assert.Contains(t, validation.Fields, "payment_method")
	assert.Empty(t, storeFake.placed, "nothing persists on validation failure")
}

func TestPlaceOrderOutOfRange(t *testing.T) {
	storeFake := &fakeOrderStore{}
	svc := placementFixture(storeFake, &fakePayments{})

	req := validRequest()
	distance := decimal.RequireFromString("21")
	req.DistanceKm = &distance

	_, err := svc.PlaceOrder(context.Background(), req)

	var outOfRange *models.OutOfDeliveryRangeError
	require.ErrorAs(t, err, &outOfRange)
	assert.Empty(t, storeFake.placed)
}

func TestPlaceOrderInsufficientStockAbortsPersistence(t *testing.T) {
	stockErr := &models.InsufficientStockError{Shortfalls: []models.StockShortfall{
		{ProductID: 1, Requested: 10, Available: 3},
	}}
	storeFake := &fakeOrderStore{placeErr: stockErr}
	svc := placementFixture(storeFake, &fakePayments{})

	_, err := svc.PlaceOrder(context.Background(), validRequest())

	var insufficient *models.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Len(t, insufficient.Shortfalls, 1)
	assert.Equal(t, 3, insufficient.Shortfalls[0].Available)
}

func TestChangeStatusRejectsUnknownStatus(t *testing.T) {
	storeFake := &fakeOrderStore{}
	svc := placementFixture(storeFake, &fakePayments{})

	err := svc.ChangeStatus(context.Background(), 1, "shipped-ish")

	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestChangeStatusRejectsTerminalOrder(t *testing.T) {
	storeFake := &fakeOrderStore{}
	svc := placementFixture(storeFake, &fakePayments{})

	resp, err := svc.PlaceOrder(context.Background(), validRequest())
	require.NoError(t, err)
	require.NoError(t, svc.ChangeStatus(context.Background(), resp.Order.ID, models.OrderStatusCancelled))

	err = svc.ChangeStatus(context.Background(), resp.Order.ID, models.OrderStatusProcessing)

	var terminal *models.TerminalOrderError
	require.ErrorAs(t, err, &terminal)
	assert.Equal(t, models.OrderStatusCancelled, terminal.Status)
}

func TestResolveDistanceFallsBackToStoreCoordinates(t *testing.T) {
	storeFake := &fakeOrderStore{}
	svc := placementFixture(storeFake, &fakePayments{})

	settings := &models.AppSettings{StoreLatitude: 32.8872, StoreLongitude: 13.1913}
	req := &PlaceOrderRequest{Latitude: 32.8872, Longitude: 13.1913}

	d := svc.resolveDistance(req, settings)
	assert.True(t, d.IsZero(), "same coordinates resolve to zero distance, got %s", d)
}
