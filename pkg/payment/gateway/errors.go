package gateway

import "errors"

var (
	// ErrInvalidConfig is returned when required client settings are missing
	ErrInvalidConfig = errors.New("invalid gateway configuration")

	// ErrInvalidRequest is returned when the gateway rejects the request parameters
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrUnauthorized is returned when the merchant credentials are rejected
	ErrUnauthorized = errors.New("unauthorized: invalid merchant credentials")

	// ErrGatewayRejected is returned for any other non-2xx answer
	ErrGatewayRejected = errors.New("gateway rejected the request")

	// ErrNetworkError is returned when the gateway could not be reached in time
	ErrNetworkError = errors.New("network error")

	// ErrMissingRedirect is returned when a session response carries no payment URL
	ErrMissingRedirect = errors.New("gateway did not return a payment link")

	// ErrCircuitOpen is returned while the breaker is refusing calls
	ErrCircuitOpen = errors.New("gateway circuit open")

	// ErrMalformedResponse is returned when a 2xx body cannot be decoded
	ErrMalformedResponse = errors.New("malformed gateway response")
)
