package service

import (
	"context"
	"errors"
	"strings"

	"github.com/ocrpur/ocr-gateway/internal/domain"
	"github.com/ocrpur/ocr-gateway/internal/integration/midtrans"
	"github.com/ocrpur/ocr-gateway/internal/metrics"
	"github.com/ocrpur/ocr-gateway/internal/repository"
	"github.com/ocrpur/ocr-gateway/pkg/logger"
)

// SnapClient creates provider transactions. Implemented by
// midtrans.Client; faked in tests.
type SnapClient interface {
	CreateTransaction(ctx context.Context, req midtrans.SnapRequest) (midtrans.SnapResponse, error)
}

// PaymentService initiates checkouts
type PaymentService interface {
	// CreateTransaction prices the requested plan, creates a provider
	// transaction and persists a pending PaymentTransaction keyed by a
	// fresh order id
	CreateTransaction(ctx context.Context, userID string, req domain.CreateTransactionRequest) (domain.CreateTransactionResponse, error)
}

type paymentService struct {
	snap         SnapClient
	payments     repository.PaymentRepository
	entitlements repository.EntitlementRepository
	callbackURL  string
	metrics      metrics.BillingMetrics
	log          *logger.Logger
}

// NewPaymentService creates a new payment service. callbackURL is the
// externally reachable page the provider redirects to after payment.
func NewPaymentService(
	snap SnapClient,
	payments repository.PaymentRepository,
	entitlements repository.EntitlementRepository,
	callbackURL string,
	m metrics.BillingMetrics,
	log *logger.Logger,
) PaymentService {
	return &paymentService{
		snap:         snap,
		payments:     payments,
		entitlements: entitlements,
		callbackURL:  callbackURL,
		metrics:      m,
		log:          log,
	}
}

// CreateTransaction initiates one checkout attempt
func (s *paymentService) CreateTransaction(ctx context.Context, userID string, req domain.CreateTransactionRequest) (domain.CreateTransactionResponse, error) {
	if req.Plan != domain.PlanPro {
		return domain.CreateTransactionResponse{}, domain.ErrInvalidPlan
	}

	cycle := domain.BillingCycle(req.BillingCycle)
	pricing, ok := domain.Pricing[cycle]
	if !ok {
		return domain.CreateTransactionResponse{}, domain.ErrInvalidPlan
	}

	orderID := domain.GenerateOrderID(req.Plan, cycle)

	// Customer details are cosmetic on the provider's payment page;
	// a missing profile does not block checkout
	var customer *midtrans.CustomerDetails
	if profile, err := s.entitlements.GetByUserID(ctx, userID); err == nil {
		customer = customerDetails(profile)
	} else if !errors.Is(err, repository.ErrNotFound) {
		s.log.Warnw("Profile lookup failed during checkout", "user_id", userID, "error", err)
	}

	snapResp, err := s.snap.CreateTransaction(ctx, midtrans.SnapRequest{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:     orderID,
			GrossAmount: pricing.Price,
		},
		CustomerDetails: customer,
		ItemDetails: []midtrans.ItemDetail{
			{
				ID:       req.Plan + "-" + req.BillingCycle,
				Price:    pricing.Price,
				Quantity: 1,
				Name:     pricing.Name,
			},
		},
		Callbacks: &midtrans.Callbacks{
			Finish: s.callbackURL + "/payment/success",
		},
	})
	if err != nil {
		return domain.CreateTransactionResponse{}, err
	}

	_, err = s.payments.Create(ctx, domain.PaymentTransaction{
		OrderID:      orderID,
		UserID:       userID,
		Amount:       pricing.Price,
		Plan:         req.Plan,
		BillingCycle: cycle,
		Status:       domain.PaymentStatusPending,
	})
	if err != nil {
		s.log.Errorw("Failed to persist pending payment", "order_id", orderID, "error", err)
		return domain.CreateTransactionResponse{}, err
	}

	s.metrics.IncTransactionCreated(req.BillingCycle)
	s.log.Infow("Checkout transaction created", "order_id", orderID, "user_id", userID, "cycle", cycle)

	return domain.CreateTransactionResponse{
		Token:       snapResp.Token,
		RedirectURL: snapResp.RedirectURL,
		OrderID:     orderID,
	}, nil
}

// customerDetails splits a profile's display name for the provider form
func customerDetails(profile domain.EntitlementRecord) *midtrans.CustomerDetails {
	details := &midtrans.CustomerDetails{Email: profile.Email, FirstName: "User"}
	if profile.FullName != "" {
		parts := strings.Fields(profile.FullName)
		details.FirstName = parts[0]
		if len(parts) > 1 {
			details.LastName = strings.Join(parts[1:], " ")
		}
	}
	return details
}
