package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/vbonduro/cashreg/internal/domain"
)

const customerColumns = `id, first_name, last_name, email, phone, address, city, state, zip_code, dob, id_image_path, date_added`

type CustomerStore struct {
	db *sql.DB
}

func NewCustomerStore(db *sql.DB) *CustomerStore {
	return &CustomerStore{db: db}
}

func (s *CustomerStore) Create(ctx context.Context, c *domain.Customer) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (
			first_name, last_name, email, dob, id_image_path, date_added,
			phone, address, city, state, zip_code
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		required(c.FirstName), required(c.LastName), required(c.Email), formatDate(c.DOB), required(c.IDImagePath),
		formatTimestamp(c.DateAdded),
		nullString(c.Phone), nullString(c.Address), nullString(c.City), nullString(c.State), nullString(c.ZipCode),
	)
	if err != nil {
		return 0, classify("create customer", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w: %v", domain.ErrStorage, err)
	}
	return id, nil
}

func (s *CustomerStore) GetByID(ctx context.Context, id int64) (*domain.Customer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id)
	c, err := scanCustomer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// FindByEmail returns every customer registered under email, newest first.
// Customers are recorded once per verification, so repeat visitors appear
// more than once.
func (s *CustomerStore) FindByEmail(ctx context.Context, email string) ([]*domain.Customer, error) {
	return s.query(ctx, "find customers", `
		SELECT `+customerColumns+` FROM customers WHERE email = ? ORDER BY id DESC
	`, email)
}

func (s *CustomerStore) List(ctx context.Context) ([]*domain.Customer, error) {
	return s.query(ctx, "list customers", `
		SELECT `+customerColumns+` FROM customers ORDER BY last_name ASC, first_name ASC, id ASC
	`)
}

func (s *CustomerStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`).Scan(&n); err != nil {
		return 0, classify("count customers", err)
	}
	return n, nil
}

// Update rewrites every mutable column. date_added is set once at creation
// and never changes.
func (s *CustomerStore) Update(ctx context.Context, c *domain.Customer) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE customers SET
			first_name = ?, last_name = ?, email = ?, dob = ?, id_image_path = ?,
			phone = ?, address = ?, city = ?, state = ?, zip_code = ?
		WHERE id = ?
	`,
		required(c.FirstName), required(c.LastName), required(c.Email), formatDate(c.DOB), required(c.IDImagePath),
		nullString(c.Phone), nullString(c.Address), nullString(c.City), nullString(c.State), nullString(c.ZipCode),
		c.ID,
	)
	if err != nil {
		return classify("update customer", err)
	}
	return requireOneRow(result, "customer")
}

// Delete removes a customer. Customers referenced by a transaction cannot be
// deleted; the foreign key does not cascade.
func (s *CustomerStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		return classify("delete customer", err)
	}
	return requireOneRow(result, "customer")
}

func (s *CustomerStore) query(ctx context.Context, op, query string, args ...any) ([]*domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var customers []*domain.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return customers, nil
}

func scanCustomer(sc scanner) (*domain.Customer, error) {
	c := &domain.Customer{}
	var phone, address, city, state, zip sql.NullString
	var dob, dateAdded string
	err := sc.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &phone, &address, &city, &state, &zip,
		&dob, &c.IDImagePath, &dateAdded)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, classify("scan customer", err)
	}

	c.Phone, c.Address, c.City, c.State, c.ZipCode = phone.String, address.String, city.String, state.String, zip.String
	if c.DOB, err = parseTime(domain.DateLayout, dob); err != nil {
		return nil, err
	}
	if c.DateAdded, err = parseTime(domain.TimestampLayout, dateAdded); err != nil {
		return nil, err
	}
	return c, nil
}

// formatDate and formatTimestamp map the zero time to NULL so a missing date
// trips the NOT NULL constraint instead of being stored as year 1.
func formatDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(domain.DateLayout)
}

func formatTimestamp(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(domain.TimestampLayout)
}
