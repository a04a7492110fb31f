package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the lifecycle status of a checkout transaction
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusSuccess  PaymentStatus = "success"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// IsTerminal reports whether a status permits no further transitions.
// A webhook carrying a different terminal status for an already-terminal
// order is logged and ignored, never re-applied.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// BillingCycle selects a pricing entry
type BillingCycle string

const (
	BillingMonthly BillingCycle = "monthly"
	BillingYearly  BillingCycle = "yearly"
)

// PlanPricing is one row of the static pricing table
type PlanPricing struct {
	Price        int64  // IDR
	Name         string
	DurationDays int
}

// Pricing for the pro plan. Prices are in whole rupiah.
var Pricing = map[BillingCycle]PlanPricing{
	BillingMonthly: {Price: 1_000_000, Name: "Pro Monthly", DurationDays: 30},
	BillingYearly:  {Price: 10_000_000, Name: "Pro Yearly", DurationDays: 365},
}

// PlanPro is the only purchasable plan
const PlanPro = "pro"

// PaymentTransaction is one checkout attempt, keyed by order id.
// Created pending, driven to a terminal status exactly once by a provider
// webhook, never deleted.
type PaymentTransaction struct {
	OrderID               string        `json:"order_id"`
	UserID                string        `json:"user_id"`
	Amount                int64         `json:"amount"`
	Plan                  string        `json:"plan"`
	BillingCycle          BillingCycle  `json:"billing_cycle"`
	Status                PaymentStatus `json:"status"`
	ProviderTransactionID string        `json:"provider_transaction_id,omitempty"`
	PaymentType           string        `json:"payment_type,omitempty"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
}

// GenerateOrderID builds an order id of the form
// OCR-{PLAN}-{CYCLE}-{unix millis}-{6 char random}, e.g.
// OCR-PRO-MONTHLY-1700000000000-ab12cd. The cycle marker embedded here is
// what the reconciler later reads back to pick the subscription duration.
func GenerateOrderID(plan string, cycle BillingCycle) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("OCR-%s-%s-%d-%s",
		strings.ToUpper(plan),
		strings.ToUpper(string(cycle)),
		time.Now().UnixMilli(),
		random,
	)
}

// CycleFromOrderID recovers the billing cycle from the order id marker.
// Anything without a YEARLY marker is treated as monthly.
func CycleFromOrderID(orderID string) BillingCycle {
	if strings.Contains(orderID, "YEARLY") {
		return BillingYearly
	}
	return BillingMonthly
}

// CreateTransactionRequest is the checkout request body
type CreateTransactionRequest struct {
	Plan         string `json:"plan" binding:"required"`
	BillingCycle string `json:"billingCycle" binding:"required,oneof=monthly yearly"`
}

// CreateTransactionResponse is returned to the client so it can open the
// provider's payment page
type CreateTransactionResponse struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
	OrderID     string `json:"order_id"`
}
