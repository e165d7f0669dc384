package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies a provider failure for the fallback chain. The
// chain executor branches on Kind, never on message text.
type ErrorKind int

const (
	// KindQuota is a rate or quota limit: fall over to the next provider
	// immediately and never retry the same one.
	KindQuota ErrorKind = iota
	// KindTransient gets one bounded retry on the same provider before
	// falling over.
	KindTransient
	// KindPermanent falls over immediately.
	KindPermanent
)

func (k ErrorKind) String() string {
	switch k {
	case KindQuota:
		return "quota_exceeded"
	case KindTransient:
		return "transient_error"
	default:
		return "permanent_error"
	}
}

// ProviderError is the typed failure every provider implementation
// returns.
type ProviderError struct {
	ProviderID string
	Kind       ErrorKind
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.ProviderID, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// QuotaError wraps err as a quota failure.
func QuotaError(providerID string, err error) *ProviderError {
	return &ProviderError{ProviderID: providerID, Kind: KindQuota, Err: err}
}

// TransientError wraps err as a retryable failure.
func TransientError(providerID string, err error) *ProviderError {
	return &ProviderError{ProviderID: providerID, Kind: KindTransient, Err: err}
}

// PermanentError wraps err as a non-retryable failure.
func PermanentError(providerID string, err error) *ProviderError {
	return &ProviderError{ProviderID: providerID, Kind: KindPermanent, Err: err}
}

// FromHTTPStatus maps an HTTP response to a typed provider error.
// 429 and 402 are quota exhaustion, timeouts and server errors are
// transient, everything else is permanent.
func FromHTTPStatus(providerID string, status int, body string) *ProviderError {
	err := fmt.Errorf("http %d: %s", status, truncateBody(body))
	switch {
	case status == http.StatusTooManyRequests || status == http.StatusPaymentRequired:
		return QuotaError(providerID, err)
	case status == http.StatusRequestTimeout || status >= 500:
		return TransientError(providerID, err)
	default:
		return PermanentError(providerID, err)
	}
}

// KindOf extracts the failure kind from any error. Foreign errors are
// treated conservatively: timeouts retry, everything else falls over.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTransient
	}
	return KindPermanent
}

func truncateBody(body string) string {
	runes := []rune(body)
	if len(runes) > 200 {
		return string(runes[:197]) + "..."
	}
	return body
}
