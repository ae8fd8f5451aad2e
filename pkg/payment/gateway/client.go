package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/ikkim/marketplace-backend/pkg/logger"
	"github.com/sony/gobreaker/v2"
)

// errServerSide marks 5xx answers so the breaker counts them as failures.
var errServerSide = errors.New("server side failure")

// Client represents a payment gateway API client
type Client struct {
	config     Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

// NewClient creates a new gateway client with the given configuration
func NewClient(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg := config.withDefaults()

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Payment gateway circuit state changed", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})

	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
	}, nil
}

// GetConfig returns the client configuration
func (c *Client) GetConfig() Config {
	return c.config
}

// CreateSession opens a payment session and returns the buyer redirect target
func (c *Client) CreateSession(ctx context.Context, req SessionRequest) (*SessionResponse, error) {
	if req.Currency == "" {
		req.Currency = c.config.Currency
	}
	if req.RedirectURL == "" {
		req.RedirectURL = c.config.RedirectURL
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = "mobile_money,card"
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "sessions", req)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment session: %w", err)
	}

	var sessionResp SessionResponse
	if err := json.Unmarshal(resp, &sessionResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if sessionResp.PaymentURL == "" {
		return nil, ErrMissingRedirect
	}

	return &sessionResp, nil
}

// Verify asks the gateway for its own record of the payment attempt
func (c *Client) Verify(ctx context.Context, reference string) (*VerifyResponse, error) {
	endpoint := fmt.Sprintf("verify/%s", url.PathEscape(reference))

	resp, err := c.doRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to verify payment: %w", err)
	}

	var verifyResp VerifyResponse
	if err := json.Unmarshal(resp, &verifyResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	verifyResp.Status = verifyResp.Status.Normalize()

	return &verifyResp, nil
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, payload interface{}) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.send(ctx, method, endpoint, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	return body, err
}

func (c *Client) send(ctx context.Context, method, endpoint string, payload interface{}) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reqBody, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(reqBody)
	}

	target := fmt.Sprintf("%s/%s", c.config.BaseURL, endpoint)

	logger.Debug("Sending payment gateway request", map[string]interface{}{
		"method": method,
		"url":    target,
	})

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.config.MerchantID, c.config.APIKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", ErrNetworkError, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		_ = json.Unmarshal(body, &errResp)

		errorMsg := fmt.Sprintf("status %d, code %q, message %q", resp.StatusCode, errResp.Code, errResp.Message)

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, fmt.Errorf("%w: %s", ErrUnauthorized, errorMsg)
		case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
			return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, errorMsg)
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("%w: %w: %s", ErrGatewayRejected, errServerSide, errorMsg)
		default:
			return nil, fmt.Errorf("%w: %s", ErrGatewayRejected, errorMsg)
		}
	}

	return body, nil
}

func isTransient(err error) bool {
	return errors.Is(err, ErrNetworkError) || errors.Is(err, errServerSide)
}
