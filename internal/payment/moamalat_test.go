package payment

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/models"
)

func testMoamalat() *Moamalat {
	m := NewMoamalat(MoamalatConfig{
		MerchantID:  "10081014649",
		TerminalID:  "99179395",
		Secret:      "3a488a89b3f7458985f2a8c96b01dcbc",
		CheckoutURL: "https://npg.moamalat.net/lightbox",
	})
	m.now = func() time.Time { return time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC) }
	return m
}

func TestMoamalatInitBuildsSignedRedirect(t *testing.T) {
	m := testMoamalat()
	session := &models.PaymentSession{
		ID:      3,
		OrderID: 17,
		Amount:  decimal.RequireFromString("107.50"),
	}

	result, err := m.Init(context.Background(), session)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.Reference, "ORD17-S3-"),
		"reference embeds order and session ids, got %s", result.Reference)

	parsed, err := url.Parse(result.RedirectURL)
	require.NoError(t, err)
	q := parsed.Query()
	assert.Equal(t, "10081014649", q.Get("MID"))
	assert.Equal(t, "99179395", q.Get("TID"))
	assert.Equal(t, "107500", q.Get("AmountTrxn"), "amount is sent in the 3-decimal minor unit")
	assert.Equal(t, result.Reference, q.Get("MerchantReference"))
	assert.Len(t, q.Get("SecureHash"), 64)
	assert.Equal(t, strings.ToUpper(q.Get("SecureHash")), q.Get("SecureHash"))
}

func TestMoamalatReferencesNeverCollideOnRetry(t *testing.T) {
	m := testMoamalat()
	session := &models.PaymentSession{ID: 3, OrderID: 17, Amount: decimal.RequireFromString("10")}

	first, err := m.Init(context.Background(), session)
	require.NoError(t, err)
	second, err := m.Init(context.Background(), session)
	require.NoError(t, err)

	assert.NotEqual(t, first.Reference, second.Reference)
}

func TestMoamalatPayIsNoOp(t *testing.T) {
	m := testMoamalat()

	ok, err := m.Pay(context.Background(), &models.PaymentSession{ID: 1})
	require.NoError(t, err)
	assert.False(t, ok, "settlement only happens via webhook")
}

func TestMoamalatRejectsMalformedSecret(t *testing.T) {
	m := NewMoamalat(MoamalatConfig{Secret: "not-hex"})
	m.now = time.Now

	_, err := m.Init(context.Background(), &models.PaymentSession{ID: 1, OrderID: 1, Amount: decimal.New(1, 0)})

	var providerErr *models.PaymentProviderError
	require.ErrorAs(t, err, &providerErr)
}

func TestMoamalatWebhookHashRoundTrip(t *testing.T) {
	m := testMoamalat()

	fields := map[string]string{
		"MerchantReference": "ORD17-S3-1710498600-abc",
		"SystemReference":   "123456",
		"Amount":            "107500",
	}

	hash, err := m.canonicalHash(fields)
	require.NoError(t, err)

	ok, err := m.VerifyWebhookHash(fields, hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.VerifyWebhookHash(fields, strings.ToLower(hash))
	require.NoError(t, err)
	assert.True(t, ok, "hash comparison is case-insensitive")

	ok, err = m.VerifyWebhookHash(fields, "")
	require.NoError(t, err)
	assert.False(t, ok, "empty hash never verifies")

	fields["Amount"] = "1"
	ok, err = m.VerifyWebhookHash(fields, hash)
	require.NoError(t, err)
	assert.False(t, ok, "tampered fields fail verification")
}
