package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vbonduro/cashreg/internal/domain"
)

// transactionRepository is the subset of store.TransactionStore that TransactionService requires.
type transactionRepository interface {
	Create(ctx context.Context, tx *domain.Transaction) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Transaction, error)
	List(ctx context.Context) ([]*domain.Transaction, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]*domain.Transaction, error)
}

// customerLookup resolves the customer a transaction refers to.
type customerLookup interface {
	GetByID(ctx context.Context, id int64) (*domain.Customer, error)
}

type NewTransaction struct {
	CustomerID    *int64
	Total         decimal.Decimal
	Tax           decimal.Decimal
	PaymentMethod string
	Items         []domain.LineItem
	IDVerified    bool
	RemoteOrderID string
}

type TransactionService struct {
	repo      transactionRepository
	customers customerLookup
	logger    *slog.Logger
	now       func() time.Time
}

func NewTransactionService(repo transactionRepository, customers customerLookup, logger *slog.Logger) *TransactionService {
	return &TransactionService{repo: repo, customers: customers, logger: logger, now: time.Now}
}

// Create records a completed sale. A transaction flagged as ID-verified must
// reference a customer whose captured ID image is on record; anything else is
// rejected before insert.
func (s *TransactionService) Create(ctx context.Context, in NewTransaction) (int64, error) {
	tx := &domain.Transaction{
		CustomerID:    in.CustomerID,
		Total:         in.Total,
		Tax:           in.Tax,
		PaymentMethod: strings.ToLower(strings.TrimSpace(in.PaymentMethod)),
		Items:         in.Items,
		Timestamp:     s.now(),
		IDVerified:    in.IDVerified,
		RemoteOrderID: in.RemoteOrderID,
	}
	if err := s.validate(ctx, tx); err != nil {
		s.logger.Error("transaction not created", "error", err)
		return 0, err
	}

	id, err := s.repo.Create(ctx, tx)
	if err != nil {
		s.logger.Error("transaction not created", "error", err)
		return 0, err
	}
	s.logger.Info("transaction created", "id", id, "total", tx.Total.StringFixed(2), "id_verified", tx.IDVerified)
	return id, nil
}

func (s *TransactionService) Get(ctx context.Context, id int64) (*domain.Transaction, error) {
	tx, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction %d %w", id, domain.ErrNotFound)
	}
	return tx, nil
}

func (s *TransactionService) List(ctx context.Context) ([]*domain.Transaction, error) {
	return s.repo.List(ctx)
}

func (s *TransactionService) ListByCustomer(ctx context.Context, customerID int64) ([]*domain.Transaction, error) {
	return s.repo.ListByCustomer(ctx, customerID)
}

func (s *TransactionService) validate(ctx context.Context, tx *domain.Transaction) error {
	v := domain.NewValidationError("transaction")
	if tx.Total.IsNegative() {
		v.Addf("total", "must not be negative")
	}
	if tx.Tax.IsNegative() {
		v.Addf("tax", "must not be negative")
	}
	if tx.PaymentMethod == "" {
		v.Addf("payment_method", "is required")
	}
	if len(tx.Items) == 0 {
		v.Addf("items", "at least one item is required")
	}
	for i, item := range tx.Items {
		if item.Quantity <= 0 {
			v.Addf(fmt.Sprintf("items[%d].quantity", i), "must be positive")
		}
		if item.Price.IsNegative() {
			v.Addf(fmt.Sprintf("items[%d].price", i), "must not be negative")
		}
	}

	var customer *domain.Customer
	if tx.CustomerID != nil {
		c, err := s.customers.GetByID(ctx, *tx.CustomerID)
		if err != nil {
			return err
		}
		if c == nil {
			v.Addf("customer_id", "customer %d does not exist", *tx.CustomerID)
		}
		customer = c
	}
	if tx.IDVerified {
		switch {
		case tx.CustomerID == nil:
			v.Addf("id_verified", "requires a customer")
		case customer != nil && customer.IDImagePath == "":
			v.Addf("id_verified", "customer %d has no captured ID image", customer.ID)
		}
	}
	return v.ErrorOrNil()
}
