package gateway

import "time"

// Config represents the configuration for the payment gateway client
type Config struct {
	// BaseURL is the gateway API base URL
	BaseURL string

	// MerchantID and APIKey are sent as basic auth credentials
	MerchantID string
	APIKey     string

	// Currency is the ISO code used for every session
	Currency string

	// RedirectURL is where the gateway sends the buyer after the attempt
	RedirectURL string

	// Timeout bounds every outbound call (default 30s)
	Timeout time.Duration

	// FailureThreshold consecutive failures open the circuit
	FailureThreshold uint32

	// OpenTimeout is how long the circuit stays open before probing again
	OpenTimeout time.Duration
}

const (
	DefaultTimeout          = 30 * time.Second
	defaultFailureThreshold = 5
	defaultOpenTimeout      = 30 * time.Second
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrInvalidConfig
	}
	if c.MerchantID == "" {
		return ErrInvalidConfig
	}
	if c.APIKey == "" {
		return ErrInvalidConfig
	}
	if c.Currency == "" {
		return ErrInvalidConfig
	}
	if c.RedirectURL == "" {
		return ErrInvalidConfig
	}
	return nil
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Timeout <= 0 {
		out.Timeout = DefaultTimeout
	}
	if out.FailureThreshold == 0 {
		out.FailureThreshold = defaultFailureThreshold
	}
	if out.OpenTimeout <= 0 {
		out.OpenTimeout = defaultOpenTimeout
	}
	return out
}
