package gateway

import "github.com/shopspring/decimal"

// Status is the gateway-side state of a payment attempt
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	StatusPending Status = "PENDING"
)

// Normalize maps unknown gateway answers to FAILED.
func (s Status) Normalize() Status {
	switch s {
	case StatusSuccess, StatusPending:
		return s
	default:
		return StatusFailed
	}
}

// SessionRequest represents the request parameters for creating a payment session
type SessionRequest struct {
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Description       string          `json:"description"`
	RedirectURL       string          `json:"site_redirect_url"`
	MerchantReference string          `json:"merchant_reference"`
	Email             string          `json:"email,omitempty"`
	PaymentMethod     string          `json:"payment_method"`
}

// SessionResponse represents the response of a created payment session
type SessionResponse struct {
	Token      string `json:"token"`
	PaymentURL string `json:"payment_url"`
}

// VerifyResponse is the gateway's own record of a payment attempt
type VerifyResponse struct {
	MerchantReference string           `json:"merchant_reference"`
	Status            Status           `json:"status"`
	Amount            *decimal.Decimal `json:"amount,omitempty"`
	TransactionID     string           `json:"transaction_id,omitempty"`
	Message           string           `json:"message,omitempty"`
}

// ErrorResponse represents an error body returned by the gateway
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
