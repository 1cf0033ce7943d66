package service

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/cashreg/internal/db"
	"github.com/vbonduro/cashreg/internal/logging"
	"github.com/vbonduro/cashreg/internal/payment"
	"github.com/vbonduro/cashreg/internal/store"
)

var testNow = time.Date(2026, 6, 15, 10, 30, 0, 0, time.Local)

type services struct {
	db           *sql.DB
	inventory    *InventoryService
	customers    *CustomerService
	transactions *TransactionService
}

func newTestServices(t *testing.T) *services {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "cashreg.db"))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, d.Close()) })

	logger := logging.Discard()
	customerStore := store.NewCustomerStore(d)

	customers := NewCustomerService(customerStore, logger)
	customers.now = func() time.Time { return testNow }
	transactions := NewTransactionService(store.NewTransactionStore(d), customerStore, logger)
	transactions.now = func() time.Time { return testNow }

	return &services{
		db:           d,
		inventory:    NewInventoryService(store.NewInventoryStore(d), logger),
		customers:    customers,
		transactions: transactions,
	}
}

// idImage writes a placeholder captured image and returns its path.
func idImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "id_20260615_103000_0a1b2c3d.jpg")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xd8, 0xff}, 0o600))
	return path
}

func dob(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.Local)
}

func addCustomer(t *testing.T, s *services, born time.Time) int64 {
	t.Helper()
	id, err := s.customers.Create(context.Background(), "ada", "lovelace", "Ada@Example.com", born, idImage(t), CustomerOptions{})
	require.NoError(t, err)
	return id
}

// stubGateway records the last request and replies with a canned result.
type stubGateway struct {
	calls   int
	request payment.ChargeRequest
	result  *payment.ChargeResult
	err     error
}

func (g *stubGateway) Charge(_ context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	g.calls++
	g.request = req
	return g.result, g.err
}
