package domain

// ProviderNotification is the payment provider's webhook body. Unknown
// fields are ignored; the required fields are enforced at the boundary.
type ProviderNotification struct {
	OrderID           string `json:"order_id" binding:"required" validate:"required"`
	StatusCode        string `json:"status_code" binding:"required" validate:"required"`
	GrossAmount       string `json:"gross_amount" binding:"required" validate:"required"`
	SignatureKey      string `json:"signature_key" binding:"required" validate:"required"`
	TransactionStatus string `json:"transaction_status" binding:"required" validate:"required"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
	TransactionID     string `json:"transaction_id"`
}

// WebhookResult is what the reconciler reports back to the provider
type WebhookResult struct {
	Status PaymentStatus `json:"status"`
}

// Provider transaction_status values and their internal mapping. Values
// not listed here map conservatively to pending.
const (
	ProviderStatusCapture       = "capture"
	ProviderStatusSettlement    = "settlement"
	ProviderStatusPending       = "pending"
	ProviderStatusDeny          = "deny"
	ProviderStatusCancel        = "cancel"
	ProviderStatusExpire        = "expire"
	ProviderStatusRefund        = "refund"
	ProviderStatusPartialRefund = "partial_refund"

	FraudStatusAccept = "accept"
)

// MapProviderStatus translates a provider transaction status into the
// internal payment status and reports whether the event activates a
// subscription. capture/settlement only count when fraud screening
// accepted the transaction (or was absent).
func MapProviderStatus(transactionStatus, fraudStatus string) (PaymentStatus, bool) {
	switch transactionStatus {
	case ProviderStatusCapture, ProviderStatusSettlement:
		if fraudStatus == FraudStatusAccept || fraudStatus == "" {
			return PaymentStatusSuccess, true
		}
		return PaymentStatusPending, false
	case ProviderStatusPending:
		return PaymentStatusPending, false
	case ProviderStatusDeny, ProviderStatusCancel, ProviderStatusExpire:
		return PaymentStatusFailed, false
	case ProviderStatusRefund, ProviderStatusPartialRefund:
		return PaymentStatusRefunded, false
	default:
		return PaymentStatusPending, false
	}
}
