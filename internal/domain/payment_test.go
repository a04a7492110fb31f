package domain

import (
	"strings"
	"testing"
)

func TestMapProviderStatus(t *testing.T) {
	tests := []struct {
		name              string
		transactionStatus string
		fraudStatus       string
		expectedStatus    PaymentStatus
		expectedActivate  bool
	}{
		{
			name:              "settlement without fraud status activates",
			transactionStatus: "settlement",
			fraudStatus:       "",
			expectedStatus:    PaymentStatusSuccess,
			expectedActivate:  true,
		},
		{
			name:              "settlement with fraud accept activates",
			transactionStatus: "settlement",
			fraudStatus:       "accept",
			expectedStatus:    PaymentStatusSuccess,
			expectedActivate:  true,
		},
		{
			name:              "capture with fraud accept activates",
			transactionStatus: "capture",
			fraudStatus:       "accept",
			expectedStatus:    PaymentStatusSuccess,
			expectedActivate:  true,
		},
		{
			name:              "capture under fraud challenge stays pending",
			transactionStatus: "capture",
			fraudStatus:       "challenge",
			expectedStatus:    PaymentStatusPending,
			expectedActivate:  false,
		},
		{
			name:              "pending maps to pending",
			transactionStatus: "pending",
			expectedStatus:    PaymentStatusPending,
		},
		{
			name:              "deny maps to failed",
			transactionStatus: "deny",
			expectedStatus:    PaymentStatusFailed,
		},
		{
			name:              "cancel maps to failed",
			transactionStatus: "cancel",
			expectedStatus:    PaymentStatusFailed,
		},
		{
			name:              "expire maps to failed",
			transactionStatus: "expire",
			expectedStatus:    PaymentStatusFailed,
		},
		{
			name:              "refund maps to refunded",
			transactionStatus: "refund",
			expectedStatus:    PaymentStatusRefunded,
		},
		{
			name:              "partial refund maps to refunded",
			transactionStatus: "partial_refund",
			expectedStatus:    PaymentStatusRefunded,
		},
		{
			name:              "unknown status maps to pending",
			transactionStatus: "authorize",
			expectedStatus:    PaymentStatusPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, activate := MapProviderStatus(tt.transactionStatus, tt.fraudStatus)
			if status != tt.expectedStatus {
				t.Errorf("status = %q, want %q", status, tt.expectedStatus)
			}
			if activate != tt.expectedActivate {
				t.Errorf("activate = %v, want %v", activate, tt.expectedActivate)
			}
		})
	}
}

func TestPaymentStatusIsTerminal(t *testing.T) {
	terminal := []PaymentStatus{PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusRefunded}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%q should be terminal", s)
		}
	}
	if PaymentStatusPending.IsTerminal() {
		t.Error("pending should not be terminal")
	}
}

func TestGenerateOrderID(t *testing.T) {
	orderID := GenerateOrderID(PlanPro, BillingYearly)

	if !strings.HasPrefix(orderID, "OCR-PRO-YEARLY-") {
		t.Errorf("order id %q missing plan/cycle prefix", orderID)
	}

	parts := strings.Split(orderID, "-")
	if len(parts) != 5 {
		t.Fatalf("order id %q has %d segments, want 5", orderID, len(parts))
	}
	if len(parts[4]) != 6 {
		t.Errorf("random suffix %q has length %d, want 6", parts[4], len(parts[4]))
	}

	// Two ids generated back to back must differ
	if other := GenerateOrderID(PlanPro, BillingYearly); other == orderID {
		t.Errorf("consecutive order ids collided: %q", orderID)
	}
}

func TestCycleFromOrderID(t *testing.T) {
	if got := CycleFromOrderID("OCR-PRO-YEARLY-1700000000000-ab12cd"); got != BillingYearly {
		t.Errorf("yearly marker mapped to %q", got)
	}
	if got := CycleFromOrderID("OCR-PRO-MONTHLY-1700000000000-ab12cd"); got != BillingMonthly {
		t.Errorf("monthly marker mapped to %q", got)
	}
	if got := CycleFromOrderID("something-else"); got != BillingMonthly {
		t.Errorf("unmarked order id mapped to %q, want monthly fallback", got)
	}
}
