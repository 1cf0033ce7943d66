package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/vbonduro/cashreg/internal/domain"
)

const inventoryColumns = `id, name, price, quantity, description, barcode`

type InventoryStore struct {
	db *sql.DB
}

func NewInventoryStore(db *sql.DB) *InventoryStore {
	return &InventoryStore{db: db}
}

// Create inserts item and returns the assigned id. An empty barcode is stored
// as NULL so that items without one never collide on the UNIQUE constraint.
func (s *InventoryStore) Create(ctx context.Context, item *domain.InventoryItem) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory (name, price, quantity, description, barcode) VALUES (?, ?, ?, ?, ?)
	`, required(item.Name), item.Price, item.Quantity, nullString(item.Description), nullString(item.Barcode))
	if err != nil {
		return 0, classify("create inventory item", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w: %v", domain.ErrStorage, err)
	}
	return id, nil
}

func (s *InventoryStore) GetByID(ctx context.Context, id int64) (*domain.InventoryItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+inventoryColumns+` FROM inventory WHERE id = ?`, id)
	return scanInventoryRow(row)
}

func (s *InventoryStore) GetByBarcode(ctx context.Context, barcode string) (*domain.InventoryItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+inventoryColumns+` FROM inventory WHERE barcode = ?`, barcode)
	return scanInventoryRow(row)
}

func (s *InventoryStore) List(ctx context.Context) ([]*domain.InventoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+inventoryColumns+` FROM inventory ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, classify("list inventory", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var items []*domain.InventoryItem
	for rows.Next() {
		item, err := scanInventory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate inventory", err)
	}
	return items, nil
}

func (s *InventoryStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM inventory`).Scan(&n); err != nil {
		return 0, classify("count inventory", err)
	}
	return n, nil
}

func (s *InventoryStore) Update(ctx context.Context, item *domain.InventoryItem) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE inventory SET name = ?, price = ?, quantity = ?, description = ?, barcode = ? WHERE id = ?
	`, required(item.Name), item.Price, item.Quantity, nullString(item.Description), nullString(item.Barcode), item.ID)
	if err != nil {
		return classify("update inventory item", err)
	}
	return requireOneRow(result, "inventory item")
}

// AdjustQuantity adds delta (which may be negative) to an item's stock and
// returns the new quantity. A change that would drive stock below zero is
// rejected by the CHECK constraint and reported as ErrConstraint.
func (s *InventoryStore) AdjustQuantity(ctx context.Context, id int64, delta int) (int, error) {
	var qty int
	err := s.db.QueryRowContext(ctx, `
		UPDATE inventory SET quantity = quantity + ? WHERE id = ? RETURNING quantity
	`, delta, id).Scan(&qty)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("inventory item %w", domain.ErrNotFound)
	}
	if err != nil {
		return 0, classify("adjust inventory quantity", err)
	}
	return qty, nil
}

func (s *InventoryStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM inventory WHERE id = ?`, id)
	if err != nil {
		return classify("delete inventory item", err)
	}
	return requireOneRow(result, "inventory item")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInventoryRow(row *sql.Row) (*domain.InventoryItem, error) {
	item, err := scanInventory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return item, err
}

func scanInventory(sc scanner) (*domain.InventoryItem, error) {
	item := &domain.InventoryItem{}
	var description, barcode sql.NullString
	err := sc.Scan(&item.ID, &item.Name, &item.Price, &item.Quantity, &description, &barcode)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, classify("scan inventory item", err)
	}
	item.Description = description.String
	item.Barcode = barcode.String
	return item, nil
}
