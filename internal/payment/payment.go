package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Outcome classifies how a charge ended.
type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeRejected  Outcome = "rejected"
	OutcomeAuth      Outcome = "auth"
	OutcomeNetwork   Outcome = "network"
	OutcomeMalformed Outcome = "malformed"
)

type LineItem struct {
	SKU      string          `json:"sku,omitempty"`
	Title    string          `json:"title,omitempty"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type CustomerInfo struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

type ChargeRequest struct {
	Amount   decimal.Decimal
	Items    []LineItem
	Customer *CustomerInfo
}

type ChargeResult struct {
	OrderID string
}

// Gateway performs one charge attempt against a remote commerce platform.
// Implementations return a *ChargeError for every failure.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// ChargeError is a failed charge tagged with why it failed.
type ChargeError struct {
	Outcome    Outcome
	StatusCode int
	Reason     string
	Err        error
}

func (e *ChargeError) Error() string {
	msg := fmt.Sprintf("charge %s", e.Outcome)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ChargeError) Unwrap() error {
	return e.Err
}

// OutcomeOf reports the outcome carried by err: OutcomeOK for nil, the tagged
// outcome for a *ChargeError, and OutcomeNetwork for anything else.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return OutcomeOK
	}
	var ce *ChargeError
	if errors.As(err, &ce) {
		return ce.Outcome
	}
	return OutcomeNetwork
}
