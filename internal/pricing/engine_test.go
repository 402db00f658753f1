package pricing

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/models"
)

type fakeCatalog struct {
	products map[int64]*models.Product
	variants map[int64]*models.ProductVariant
}

func (f *fakeCatalog) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, &models.NotFoundError{Resource: "product", ID: id}
	}
	return p, nil
}

func (f *fakeCatalog) GetVariantByID(ctx context.Context, productID, variantID int64) (*models.ProductVariant, error) {
	v, ok := f.variants[variantID]
	if !ok || v.ProductID != productID {
		return nil, &models.NotFoundError{Resource: "variant", ID: variantID}
	}
	return v, nil
}

func testCatalog() *fakeCatalog {
	return &fakeCatalog{
		products: map[int64]*models.Product{
			1: {ID: 1, Name: models.TranslatedText{En: "Shirt", Ar: "قميص"}, Price: decimal.RequireFromString("10.00")},
			2: {ID: 2, Name: models.TranslatedText{En: "Mug", Ar: "كوب"}, Price: decimal.RequireFromString("3.335")},
		},
		variants: map[int64]*models.ProductVariant{
			7: {ID: 7, ProductID: 1, Price: decimal.RequireFromString("12.50")},
		},
	}
}

func TestPriceOrderVariantPriceWins(t *testing.T) {
	engine := NewEngine(testCatalog())
	variantID := int64(7)

	quote, err := engine.PriceOrder(context.Background(), []LineRequest{
		{ProductID: 1, VariantID: &variantID, Quantity: 2},
	}, models.PaymentMethodCash, models.AppSettings{})
	require.NoError(t, err)

	require.Len(t, quote.Lines, 1)
	assert.True(t, quote.Lines[0].UnitPrice.Equal(decimal.RequireFromString("12.50")))
	assert.True(t, quote.Subtotal.Equal(decimal.RequireFromString("25.00")))
	assert.Equal(t, "Shirt", quote.Lines[0].Name)
}

func TestPriceOrderPerLineRounding(t *testing.T) {
	engine := NewEngine(testCatalog())

	// 3 * 3.335 = 10.005 rounds half-up to 10.01 at the line, before summation.
	quote, err := engine.PriceOrder(context.Background(), []LineRequest{
		{ProductID: 2, Quantity: 3},
	}, models.PaymentMethodCash, models.AppSettings{})
	require.NoError(t, err)

	assert.True(t, quote.Lines[0].Subtotal.Equal(decimal.RequireFromString("10.01")),
		"got %s", quote.Lines[0].Subtotal)
	assert.True(t, quote.Subtotal.Equal(decimal.RequireFromString("10.01")))
}

func TestPriceOrderCreditCardSurcharge(t *testing.T) {
	engine := NewEngine(testCatalog())
	settings := models.AppSettings{
		CreditCardChargePercent: decimal.RequireFromString("2.5"),
	}

	quote, err := engine.PriceOrder(context.Background(), []LineRequest{
		{ProductID: 1, Quantity: 10},
	}, models.PaymentMethodCreditCard, settings)
	require.NoError(t, err)

	assert.True(t, quote.Subtotal.Equal(decimal.RequireFromString("100.00")))
	assert.True(t, quote.Surcharge.Equal(decimal.RequireFromString("2.50")),
		"surcharge on 100.00 at 2.5%% should be 2.50, got %s", quote.Surcharge)
}

func TestPriceOrderNoSurchargeForCash(t *testing.T) {
	engine := NewEngine(testCatalog())
	settings := models.AppSettings{
		CreditCardChargePercent: decimal.RequireFromString("2.5"),
	}

	quote, err := engine.PriceOrder(context.Background(), []LineRequest{
		{ProductID: 1, Quantity: 10},
	}, models.PaymentMethodCash, settings)
	require.NoError(t, err)

	assert.True(t, quote.Surcharge.IsZero())
}

func TestPriceOrderUnknownProduct(t *testing.T) {
	engine := NewEngine(testCatalog())

	_, err := engine.PriceOrder(context.Background(), []LineRequest{
		{ProductID: 99, Quantity: 1},
	}, models.PaymentMethodCash, models.AppSettings{})

	var notFound *models.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, int64(99), notFound.ID)
}

func TestPriceOrderUnknownVariant(t *testing.T) {
	engine := NewEngine(testCatalog())
	variantID := int64(404)

	_, err := engine.PriceOrder(context.Background(), []LineRequest{
		{ProductID: 1, VariantID: &variantID, Quantity: 1},
	}, models.PaymentMethodCash, models.AppSettings{})

	var notFound *models.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestPriceOrderInvalidQuantity(t *testing.T) {
	engine := NewEngine(testCatalog())

	_, err := engine.PriceOrder(context.Background(), []LineRequest{
		{ProductID: 1, Quantity: 0},
		{ProductID: 2, Quantity: -1},
	}, models.PaymentMethodCash, models.AppSettings{})

	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Len(t, validation.Fields, 2, "every bad line is reported")
}
