package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/vbonduro/cashreg/internal/domain"
	"github.com/vbonduro/cashreg/internal/payment"
)

// PaymentCash is settled at the till and never reaches the gateway.
const PaymentCash = "cash"

// CartLine names an inventory item by id or barcode.
type CartLine struct {
	ItemID   int64
	Barcode  string
	Quantity int
}

type Cart struct {
	Lines         []CartLine
	PaymentMethod string
	CustomerID    *int64
	// DecrementStock sells the purchased quantities out of inventory once the
	// transaction is recorded.
	DecrementStock bool
}

type Quote struct {
	Items    []domain.LineItem `json:"items"`
	Subtotal decimal.Decimal   `json:"subtotal"`
	Tax      decimal.Decimal   `json:"tax"`
	Total    decimal.Decimal   `json:"total"`
}

type Receipt struct {
	Quote
	TransactionID int64  `json:"transaction_id"`
	CustomerID    *int64 `json:"customer_id,omitempty"`
	PaymentMethod string `json:"payment_method"`
	IDVerified    bool   `json:"id_verified"`
	RemoteOrderID string `json:"remote_order_id,omitempty"`
	// ShortStock lists the lines whose stock could not be decremented.
	ShortStock []domain.LineItem `json:"short_stock,omitempty"`
}

// Checkout prices a cart, gates age-restricted sales, takes payment and
// records the transaction.
type Checkout struct {
	inventory    *InventoryService
	customers    *CustomerService
	transactions *TransactionService
	gateway      payment.Gateway
	taxRate      decimal.Decimal
	minAge       int
	logger       *slog.Logger
}

func NewCheckout(
	inventory *InventoryService,
	customers *CustomerService,
	transactions *TransactionService,
	gateway payment.Gateway,
	taxRate decimal.Decimal,
	minAge int,
	logger *slog.Logger,
) *Checkout {
	return &Checkout{
		inventory:    inventory,
		customers:    customers,
		transactions: transactions,
		gateway:      gateway,
		taxRate:      taxRate,
		minAge:       minAge,
		logger:       logger,
	}
}

// Quote prices the cart from current inventory. Tax is rounded to cents.
func (c *Checkout) Quote(ctx context.Context, lines []CartLine) (*Quote, error) {
	if len(lines) == 0 {
		v := domain.NewValidationError("cart")
		v.Addf("lines", "cart is empty")
		return nil, v
	}

	items := make([]domain.LineItem, 0, len(lines))
	for i, line := range lines {
		if line.Quantity <= 0 {
			v := domain.NewValidationError("cart")
			v.Addf(fmt.Sprintf("lines[%d].quantity", i), "must be positive")
			return nil, v
		}
		item, err := c.resolve(ctx, line)
		if err != nil {
			return nil, err
		}
		items = append(items, domain.LineItem{
			ItemID:   item.ID,
			SKU:      item.Barcode,
			Name:     item.Name,
			Quantity: line.Quantity,
			Price:    item.Price,
		})
	}

	subtotal := lo.Reduce(items, func(acc decimal.Decimal, item domain.LineItem, _ int) decimal.Decimal {
		return acc.Add(item.Subtotal())
	}, decimal.Zero)
	tax := subtotal.Mul(c.taxRate).Round(2)

	return &Quote{
		Items:    items,
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}, nil
}

// Run completes a sale. Nothing is recorded when age gating or payment fails.
func (c *Checkout) Run(ctx context.Context, cart Cart) (*Receipt, error) {
	method := strings.ToLower(strings.TrimSpace(cart.PaymentMethod))
	if method == "" {
		method = PaymentCash
	}

	quote, err := c.Quote(ctx, cart.Lines)
	if err != nil {
		return nil, err
	}

	var customer *domain.Customer
	idVerified := false
	if cart.CustomerID != nil {
		customer, err = c.customers.Get(ctx, *cart.CustomerID)
		if err != nil {
			return nil, err
		}
		if err := c.customers.VerifyAge(customer, c.minAge); err != nil {
			c.logger.Warn("sale refused", "customer_id", customer.ID, "error", err)
			return nil, err
		}
		idVerified = customer.IDImagePath != ""
	}

	remoteID := ""
	if method != PaymentCash {
		remoteID, err = c.charge(ctx, quote, customer)
		if err != nil {
			return nil, err
		}
	}

	txID, err := c.transactions.Create(ctx, NewTransaction{
		CustomerID:    cart.CustomerID,
		Total:         quote.Total,
		Tax:           quote.Tax,
		PaymentMethod: method,
		Items:         quote.Items,
		IDVerified:    idVerified,
		RemoteOrderID: remoteID,
	})
	if err != nil {
		if remoteID != "" {
			c.logger.Error("payment taken but transaction not recorded", "remote_order_id", remoteID, "error", err)
		}
		return nil, err
	}

	var short []domain.LineItem
	if cart.DecrementStock {
		for _, item := range quote.Items {
			// The sale stands even if stock is already short.
			if _, err := c.inventory.Sell(ctx, item.ItemID, item.Quantity); err != nil {
				short = append(short, item)
			}
		}
	}

	return &Receipt{
		Quote:         *quote,
		TransactionID: txID,
		CustomerID:    cart.CustomerID,
		PaymentMethod: method,
		IDVerified:    idVerified,
		RemoteOrderID: remoteID,
		ShortStock:    short,
	}, nil
}

func (c *Checkout) charge(ctx context.Context, quote *Quote, customer *domain.Customer) (string, error) {
	if c.gateway == nil {
		return "", fmt.Errorf("card payment needs a gateway: %w", domain.ErrConfig)
	}

	req := payment.ChargeRequest{
		Amount: quote.Total,
		Items: lo.Map(quote.Items, func(item domain.LineItem, _ int) payment.LineItem {
			return payment.LineItem{SKU: item.SKU, Title: item.Name, Quantity: item.Quantity, Price: item.Price}
		}),
	}
	if customer != nil {
		req.Customer = &payment.CustomerInfo{
			FirstName: customer.FirstName,
			LastName:  customer.LastName,
			Email:     customer.Email,
		}
	}

	result, err := c.gateway.Charge(ctx, req)
	if err != nil {
		c.logger.Error("payment failed", "outcome", payment.OutcomeOf(err), "total", quote.Total.StringFixed(2), "error", err)
		return "", fmt.Errorf("failed to take payment: %w", err)
	}
	c.logger.Info("payment taken", "remote_order_id", result.OrderID, "total", quote.Total.StringFixed(2))
	return result.OrderID, nil
}

func (c *Checkout) resolve(ctx context.Context, line CartLine) (*domain.InventoryItem, error) {
	if line.Barcode != "" {
		return c.inventory.LookupBarcode(ctx, line.Barcode)
	}
	return c.inventory.Get(ctx, line.ItemID)
}
