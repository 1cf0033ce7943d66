package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/cashreg/internal/domain"
)

func widgetLine() domain.LineItem {
	return domain.LineItem{ItemID: 1, SKU: "111", Name: "Widget", Quantity: 2, Price: decimal.RequireFromString("9.99")}
}

func TestTransactionCreateCash(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	id, err := s.transactions.Create(ctx, NewTransaction{
		Total:         decimal.RequireFromString("21.58"),
		Tax:           decimal.RequireFromString("1.60"),
		PaymentMethod: "Cash",
		Items:         []domain.LineItem{widgetLine()},
	})
	require.NoError(t, err)

	tx, err := s.transactions.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, tx.CustomerID)
	assert.Equal(t, "cash", tx.PaymentMethod)
	assert.Equal(t, "21.58", tx.Total.StringFixed(2))
	assert.False(t, tx.IDVerified)
	assert.Equal(t, testNow.Format(domain.TimestampLayout), tx.Timestamp.Format(domain.TimestampLayout))
	require.Len(t, tx.Items, 1)
	assert.Equal(t, "Widget", tx.Items[0].Name)
	assert.Equal(t, 2, tx.Items[0].Quantity)
}

func TestTransactionIDVerifiedNeedsCustomer(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	_, err := s.transactions.Create(ctx, NewTransaction{
		Total:         decimal.RequireFromString("10.00"),
		Tax:           decimal.Zero,
		PaymentMethod: "cash",
		Items:         []domain.LineItem{widgetLine()},
		IDVerified:    true,
	})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "id_verified")

	txs, err := s.transactions.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestTransactionIDVerifiedNeedsCapturedImage(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	id := addCustomer(t, s, dob(1990, time.December, 10))

	// Simulate a record whose image reference was cleared outside the service.
	_, err := s.db.ExecContext(ctx, `UPDATE customers SET id_image_path = '' WHERE id = ?`, id)
	require.NoError(t, err)

	_, err = s.transactions.Create(ctx, NewTransaction{
		CustomerID:    &id,
		Total:         decimal.RequireFromString("10.00"),
		PaymentMethod: "card",
		Items:         []domain.LineItem{widgetLine()},
		IDVerified:    true,
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTransactionWithVerifiedCustomer(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	customerID := addCustomer(t, s, dob(1990, time.December, 10))

	id, err := s.transactions.Create(ctx, NewTransaction{
		CustomerID:    &customerID,
		Total:         decimal.RequireFromString("21.58"),
		Tax:           decimal.RequireFromString("1.60"),
		PaymentMethod: "card",
		Items:         []domain.LineItem{widgetLine()},
		IDVerified:    true,
		RemoteOrderID: "555",
	})
	require.NoError(t, err)

	tx, err := s.transactions.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, tx.CustomerID)
	assert.Equal(t, customerID, *tx.CustomerID)
	assert.True(t, tx.IDVerified)
	assert.Equal(t, "555", tx.RemoteOrderID)

	byCustomer, err := s.transactions.ListByCustomer(ctx, customerID)
	require.NoError(t, err)
	assert.Len(t, byCustomer, 1)
}

func TestTransactionValidation(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	missing := int64(77)

	_, err := s.transactions.Create(ctx, NewTransaction{
		CustomerID: &missing,
		Total:      decimal.NewFromInt(-1),
		Tax:        decimal.NewFromInt(-1),
		Items:      []domain.LineItem{{Name: "Widget", Quantity: 0, Price: decimal.NewFromInt(-5)}},
	})
	require.ErrorIs(t, err, domain.ErrValidation)

	var v *domain.ValidationError
	require.ErrorAs(t, err, &v)
	assert.Equal(t, 6, v.Len())

	_, err = s.transactions.Create(ctx, NewTransaction{PaymentMethod: "cash"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTransactionGetMissing(t *testing.T) {
	s := newTestServices(t)

	_, err := s.transactions.Get(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
