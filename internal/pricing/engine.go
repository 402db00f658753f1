package pricing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"storefront-service/internal/models"
)

// Catalog resolves products and variants for pricing. Implemented by the
// store; faked in tests.
type Catalog interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetVariantByID(ctx context.Context, productID, variantID int64) (*models.ProductVariant, error)
}

// LineRequest is one requested cart line.
type LineRequest struct {
	ProductID int64  `json:"product_id" binding:"required"`
	VariantID *int64 `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity" binding:"required"`
}

// PricedLine is a resolved, priced cart line carrying the denormalized
// snapshot written to order_items.
type PricedLine struct {
	ProductID int64
	VariantID *int64
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
	Subtotal  decimal.Decimal
}

// Quote is the result of pricing a cart. Surcharge is zero unless the payment
// method carries a card charge; delivery fee is added by the caller.
type Quote struct {
	Lines     []PricedLine
	Subtotal  decimal.Decimal
	Surcharge decimal.Decimal
}

// Engine computes per-item prices and order totals.
type Engine struct {
	catalog Catalog
}

// NewEngine creates a pricing engine backed by the given catalog.
func NewEngine(catalog Catalog) *Engine {
	return &Engine{catalog: catalog}
}

// PriceOrder resolves the effective unit price of every line (variant price
// wins over the parent product's), rounds each line subtotal to 2 digits
// before summation, and applies the credit-card surcharge on the
// pre-delivery-fee subtotal.
func (e *Engine) PriceOrder(ctx context.Context, lines []LineRequest, paymentMethod string, settings models.AppSettings) (*Quote, error) {
	violations := map[string]string{}
	for i, line := range lines {
		if line.Quantity <= 0 {
			violations[fmt.Sprintf("items[%d].quantity", i)] = "quantity must be greater than zero"
		}
	}
	if len(violations) > 0 {
		return nil, models.NewValidationError(violations)
	}

	quote := &Quote{
		Lines:     make([]PricedLine, 0, len(lines)),
		Subtotal:  decimal.Zero,
		Surcharge: decimal.Zero,
	}

	for _, line := range lines {
		product, err := e.catalog.GetProductByID(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}

		unitPrice := product.Price
		if line.VariantID != nil {
			variant, err := e.catalog.GetVariantByID(ctx, line.ProductID, *line.VariantID)
			if err != nil {
				return nil, err
			}
			unitPrice = variant.Price
		}

		subtotal := unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)
		quote.Lines = append(quote.Lines, PricedLine{
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			Name:      product.Name.En,
			UnitPrice: unitPrice,
			Quantity:  line.Quantity,
			Subtotal:  subtotal,
		})
		quote.Subtotal = quote.Subtotal.Add(subtotal)
	}

	if paymentMethod == models.PaymentMethodCreditCard && settings.CreditCardChargePercent.IsPositive() {
		quote.Surcharge = quote.Subtotal.
			Mul(settings.CreditCardChargePercent).
			Div(decimal.NewFromInt(100)).
			Round(2)
	}

	return quote, nil
}
