package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Layouts used for dates persisted as TEXT.
const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02 15:04:05"
)

type InventoryItem struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Description string          `json:"description,omitempty"`
	Barcode     string          `json:"barcode,omitempty"`
}

type Customer struct {
	ID          int64     `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	Address     string    `json:"address,omitempty"`
	City        string    `json:"city,omitempty"`
	State       string    `json:"state,omitempty"`
	ZipCode     string    `json:"zip_code,omitempty"`
	DOB         time.Time `json:"dob"`
	IDImagePath string    `json:"id_image_path"`
	DateAdded   time.Time `json:"date_added"`
}

// FullName joins first and last name for display.
func (c *Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}

// LineItem is one entry of a transaction's purchased items.
type LineItem struct {
	ItemID   int64           `json:"item_id,omitempty"`
	SKU      string          `json:"sku,omitempty"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Subtotal is Price × Quantity.
func (l LineItem) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Transaction struct {
	ID            int64           `json:"id"`
	CustomerID    *int64          `json:"customer_id,omitempty"`
	Total         decimal.Decimal `json:"total"`
	Tax           decimal.Decimal `json:"tax"`
	PaymentMethod string          `json:"payment_method"`
	Items         []LineItem      `json:"items"`
	Timestamp     time.Time       `json:"timestamp"`
	IDVerified    bool            `json:"id_verified"`
	RemoteOrderID string          `json:"remote_order_id,omitempty"`
}
