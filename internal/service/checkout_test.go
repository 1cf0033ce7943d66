package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/cashreg/internal/domain"
	"github.com/vbonduro/cashreg/internal/logging"
	"github.com/vbonduro/cashreg/internal/payment"
)

func newTestCheckout(t *testing.T, gateway payment.Gateway) (*Checkout, *services) {
	t.Helper()
	s := newTestServices(t)
	ctx := context.Background()

	_, err := s.inventory.Create(ctx, "Widget", decimal.RequireFromString("9.99"), 10, InventoryOptions{Barcode: "111"})
	require.NoError(t, err)
	_, err = s.inventory.Create(ctx, "Gadget", decimal.RequireFromString("4.50"), 1, InventoryOptions{Barcode: "222"})
	require.NoError(t, err)

	co := NewCheckout(s.inventory, s.customers, s.transactions, gateway,
		decimal.RequireFromString("0.08"), 21, logging.Discard())
	return co, s
}

func TestCheckoutQuote(t *testing.T) {
	co, _ := newTestCheckout(t, nil)

	q, err := co.Quote(context.Background(), []CartLine{
		{Barcode: "111", Quantity: 2},
		{Barcode: "222", Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, "24.48", q.Subtotal.StringFixed(2))
	// 24.48 * 0.08 = 1.9584
	assert.Equal(t, "1.96", q.Tax.StringFixed(2))
	assert.Equal(t, "26.44", q.Total.StringFixed(2))
	require.Len(t, q.Items, 2)
	assert.Equal(t, "111", q.Items[0].SKU)
	assert.Equal(t, "Widget", q.Items[0].Name)
}

func TestCheckoutQuoteRejectsBadCart(t *testing.T) {
	co, _ := newTestCheckout(t, nil)
	ctx := context.Background()

	_, err := co.Quote(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = co.Quote(ctx, []CartLine{{Barcode: "111", Quantity: 0}})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = co.Quote(ctx, []CartLine{{Barcode: "999", Quantity: 1}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = co.Quote(ctx, []CartLine{{ItemID: 999, Quantity: 1}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCheckoutCashSkipsGateway(t *testing.T) {
	gw := &stubGateway{}
	co, s := newTestCheckout(t, gw)
	ctx := context.Background()

	r, err := co.Run(ctx, Cart{Lines: []CartLine{{Barcode: "111", Quantity: 2}}, PaymentMethod: "CASH"})
	require.NoError(t, err)
	assert.Zero(t, gw.calls)
	assert.Equal(t, "cash", r.PaymentMethod)
	assert.False(t, r.IDVerified)
	assert.Empty(t, r.RemoteOrderID)

	tx, err := s.transactions.Get(ctx, r.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, "21.58", tx.Total.StringFixed(2))
	assert.Equal(t, "1.60", tx.Tax.StringFixed(2))

	// Stock is left alone unless asked for.
	item, err := s.inventory.LookupBarcode(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, 10, item.Quantity)
}

func TestCheckoutCardWithVerifiedCustomer(t *testing.T) {
	gw := &stubGateway{result: &payment.ChargeResult{OrderID: "555"}}
	co, s := newTestCheckout(t, gw)
	ctx := context.Background()
	customerID := addCustomer(t, s, dob(1990, time.December, 10))

	r, err := co.Run(ctx, Cart{
		Lines:         []CartLine{{Barcode: "111", Quantity: 1}, {Barcode: "222", Quantity: 1}},
		PaymentMethod: "card",
		CustomerID:    &customerID,
	})
	require.NoError(t, err)
	assert.True(t, r.IDVerified)
	assert.Equal(t, "555", r.RemoteOrderID)

	require.Equal(t, 1, gw.calls)
	assert.True(t, gw.request.Amount.Equal(r.Total))
	require.Len(t, gw.request.Items, 2)
	assert.Equal(t, "Gadget", gw.request.Items[1].Title)
	require.NotNil(t, gw.request.Customer)
	assert.Equal(t, "ada@example.com", gw.request.Customer.Email)

	tx, err := s.transactions.Get(ctx, r.TransactionID)
	require.NoError(t, err)
	assert.True(t, tx.IDVerified)
	assert.Equal(t, "555", tx.RemoteOrderID)
	require.NotNil(t, tx.CustomerID)
	assert.Equal(t, customerID, *tx.CustomerID)
}

func TestCheckoutRefusesUnderage(t *testing.T) {
	gw := &stubGateway{result: &payment.ChargeResult{OrderID: "555"}}
	co, s := newTestCheckout(t, gw)
	ctx := context.Background()
	customerID := addCustomer(t, s, dob(2010, time.January, 1))

	_, err := co.Run(ctx, Cart{Lines: []CartLine{{Barcode: "111", Quantity: 1}}, PaymentMethod: "card", CustomerID: &customerID})
	assert.ErrorIs(t, err, domain.ErrUnderage)
	assert.Zero(t, gw.calls)

	txs, err := s.transactions.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestCheckoutFailedChargeRecordsNothing(t *testing.T) {
	gw := &stubGateway{err: &payment.ChargeError{Outcome: payment.OutcomeRejected, StatusCode: 422, Reason: "declined"}}
	co, s := newTestCheckout(t, gw)
	ctx := context.Background()

	_, err := co.Run(ctx, Cart{Lines: []CartLine{{Barcode: "111", Quantity: 1}}, PaymentMethod: "card"})
	require.Error(t, err)
	assert.Equal(t, payment.OutcomeRejected, payment.OutcomeOf(err))

	var ce *payment.ChargeError
	assert.True(t, errors.As(err, &ce))

	txs, err := s.transactions.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestCheckoutCardWithoutGateway(t *testing.T) {
	co, _ := newTestCheckout(t, nil)

	_, err := co.Run(context.Background(), Cart{Lines: []CartLine{{Barcode: "111", Quantity: 1}}, PaymentMethod: "card"})
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestCheckoutDecrementStock(t *testing.T) {
	co, s := newTestCheckout(t, nil)
	ctx := context.Background()

	receipt, err := co.Run(ctx, Cart{
		Lines:          []CartLine{{Barcode: "111", Quantity: 3}, {Barcode: "222", Quantity: 2}},
		DecrementStock: true,
	})
	require.NoError(t, err)
	require.Len(t, receipt.ShortStock, 1)
	assert.Equal(t, "222", receipt.ShortStock[0].SKU)
	assert.Equal(t, 2, receipt.ShortStock[0].Quantity)

	widget, err := s.inventory.LookupBarcode(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, 7, widget.Quantity)

	// Only one gadget was on hand; the sale stands and stock is untouched.
	gadget, err := s.inventory.LookupBarcode(ctx, "222")
	require.NoError(t, err)
	assert.Equal(t, 1, gadget.Quantity)

	txs, err := s.transactions.List(ctx)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}
