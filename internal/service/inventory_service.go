package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vbonduro/cashreg/internal/domain"
)

// inventoryRepository is the subset of store.InventoryStore that InventoryService requires.
type inventoryRepository interface {
	Create(ctx context.Context, item *domain.InventoryItem) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.InventoryItem, error)
	GetByBarcode(ctx context.Context, barcode string) (*domain.InventoryItem, error)
	List(ctx context.Context) ([]*domain.InventoryItem, error)
	Update(ctx context.Context, item *domain.InventoryItem) error
	AdjustQuantity(ctx context.Context, id int64, delta int) (int, error)
	Delete(ctx context.Context, id int64) error
}

type InventoryOptions struct {
	Description string
	Barcode     string
}

type InventoryService struct {
	repo   inventoryRepository
	logger *slog.Logger
}

func NewInventoryService(repo inventoryRepository, logger *slog.Logger) *InventoryService {
	return &InventoryService{repo: repo, logger: logger}
}

// Create stocks a new item and returns its id.
func (s *InventoryService) Create(ctx context.Context, name string, price decimal.Decimal, quantity int, opts InventoryOptions) (int64, error) {
	item := &domain.InventoryItem{
		Name:        strings.TrimSpace(name),
		Price:       price,
		Quantity:    quantity,
		Description: strings.TrimSpace(opts.Description),
		Barcode:     strings.TrimSpace(opts.Barcode),
	}
	if err := validateItem(item); err != nil {
		s.logger.Error("inventory item not created", "name", item.Name, "error", err)
		return 0, err
	}

	id, err := s.repo.Create(ctx, item)
	if err != nil {
		s.logger.Error("inventory item not created", "name", item.Name, "barcode", item.Barcode, "error", err)
		return 0, err
	}
	s.logger.Info("inventory item created", "id", id, "name", item.Name)
	return id, nil
}

func (s *InventoryService) Get(ctx context.Context, id int64) (*domain.InventoryItem, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("inventory item %d %w", id, domain.ErrNotFound)
	}
	return item, nil
}

func (s *InventoryService) LookupBarcode(ctx context.Context, barcode string) (*domain.InventoryItem, error) {
	item, err := s.repo.GetByBarcode(ctx, strings.TrimSpace(barcode))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("barcode %q %w", barcode, domain.ErrNotFound)
	}
	return item, nil
}

func (s *InventoryService) List(ctx context.Context) ([]*domain.InventoryItem, error) {
	return s.repo.List(ctx)
}

func (s *InventoryService) Update(ctx context.Context, item *domain.InventoryItem) error {
	item.Name = strings.TrimSpace(item.Name)
	item.Description = strings.TrimSpace(item.Description)
	item.Barcode = strings.TrimSpace(item.Barcode)
	if err := validateItem(item); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, item); err != nil {
		s.logger.Error("inventory item not updated", "id", item.ID, "error", err)
		return err
	}
	return nil
}

// Restock adds n units and returns the new quantity.
func (s *InventoryService) Restock(ctx context.Context, id int64, n int) (int, error) {
	if n <= 0 {
		return 0, positiveQuantityError(n)
	}
	return s.repo.AdjustQuantity(ctx, id, n)
}

// Sell removes n units. Selling more than is in stock fails with
// ErrConstraint and leaves the quantity unchanged.
func (s *InventoryService) Sell(ctx context.Context, id int64, n int) (int, error) {
	if n <= 0 {
		return 0, positiveQuantityError(n)
	}
	qty, err := s.repo.AdjustQuantity(ctx, id, -n)
	if err != nil {
		s.logger.Warn("stock not decremented", "id", id, "quantity", n, "error", err)
		return 0, err
	}
	return qty, nil
}

func (s *InventoryService) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func validateItem(item *domain.InventoryItem) error {
	v := domain.NewValidationError("inventory item")
	if item.Name == "" {
		v.Addf("name", "is required")
	}
	if item.Price.IsNegative() {
		v.Addf("price", "must not be negative")
	}
	if item.Quantity < 0 {
		v.Addf("quantity", "must not be negative")
	}
	return v.ErrorOrNil()
}

func positiveQuantityError(n int) error {
	v := domain.NewValidationError("stock change")
	v.Addf("quantity", "must be positive, got %d", n)
	return v
}
