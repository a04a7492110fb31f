package midtrans

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ocrpur/ocr-gateway/internal/domain"
	"github.com/ocrpur/ocr-gateway/pkg/logger"
)

const (
	productionBaseURL = "https://app.midtrans.com/snap/v1"
	sandboxBaseURL    = "https://app.sandbox.midtrans.com/snap/v1"
)

// Config holds the gateway credentials
type Config struct {
	ServerKey    string
	ClientKey    string
	IsProduction bool
}

// Client talks to the Midtrans Snap API
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a new Midtrans client
func NewClient(cfg Config, log *logger.Logger) *Client {
	baseURL := sandboxBaseURL
	if cfg.IsProduction {
		baseURL = productionBaseURL
	}

	return &Client{
		cfg:     cfg,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

// WithBaseURL overrides the API endpoint; used in tests.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = url
	return c
}

// TransactionDetails identifies the order being paid
type TransactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

// CustomerDetails is passed through to the provider's payment page
type CustomerDetails struct {
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// ItemDetail is one line item of the checkout
type ItemDetail struct {
	ID       string `json:"id"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
	Name     string `json:"name"`
}

// Callbacks configures where the provider redirects after payment
type Callbacks struct {
	Finish string `json:"finish,omitempty"`
}

// SnapRequest is the Snap create-transaction request body
type SnapRequest struct {
	TransactionDetails TransactionDetails `json:"transaction_details"`
	CustomerDetails    *CustomerDetails   `json:"customer_details,omitempty"`
	ItemDetails        []ItemDetail       `json:"item_details,omitempty"`
	Callbacks          *Callbacks         `json:"callbacks,omitempty"`
}

// SnapResponse is the Snap create-transaction response
type SnapResponse struct {
	Token         string   `json:"token"`
	RedirectURL   string   `json:"redirect_url"`
	ErrorMessages []string `json:"error_messages,omitempty"`
}

// CreateTransaction creates a Snap transaction and returns the payment
// token and redirect URL
func (c *Client) CreateTransaction(ctx context.Context, req SnapRequest) (SnapResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return SnapResponse{}, fmt.Errorf("failed to marshal snap request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transactions", bytes.NewReader(body))
	if err != nil {
		return SnapResponse{}, fmt.Errorf("failed to build snap request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	// Snap authenticates with the server key as basic-auth username
	httpReq.SetBasicAuth(c.cfg.ServerKey, "")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return SnapResponse{}, domain.NewExternalServiceError("midtrans", "transport", "snap request failed", 0, err)
	}
	defer resp.Body.Close()

	var snapResp SnapResponse
	if err := json.NewDecoder(resp.Body).Decode(&snapResp); err != nil {
		return SnapResponse{}, domain.NewExternalServiceError("midtrans", "decode", "invalid snap response", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.log.Errorw("Snap transaction creation rejected",
			"status", resp.StatusCode, "order_id", req.TransactionDetails.OrderID, "errors", snapResp.ErrorMessages)
		return SnapResponse{}, domain.NewExternalServiceError("midtrans", "rejected",
			fmt.Sprintf("snap returned status %d", resp.StatusCode), resp.StatusCode, nil)
	}

	c.log.Infow("Snap transaction created", "order_id", req.TransactionDetails.OrderID)
	return snapResp, nil
}
