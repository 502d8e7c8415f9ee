// Package apierr provides typed API errors and their classification into
// user-facing categories.
package apierr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// Kind distinguishes transport failures from provider responses.
type Kind string

const (
	KindAPI   Kind = "api"   // non-2xx HTTP response from the provider
	KindParse Kind = "parse" // 2xx response with an unusable body
)

// APIError is returned by the HTTP clients for provider-side failures.
// StatusCode is zero for parse errors.
type APIError struct {
	Kind       Kind
	Op         string // "transcribe" or "polish"
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	switch e.Kind {
	case KindParse:
		return fmt.Sprintf("%s: unexpected response shape: %s", e.Op, truncate(e.Body, 200))
	default:
		return fmt.Sprintf("%s: API error (%d): %s", e.Op, e.StatusCode, truncate(e.Body, 200))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Category selects the user-visible failure message.
type Category string

const (
	CategoryCredential Category = "credential"
	CategoryRateLimit  Category = "rate_limit"
	CategoryQuota      Category = "quota"
	CategoryNetwork    Category = "network"
	CategoryGeneric    Category = "generic"
)

// Classify maps an error to a Category using a fixed status-code table:
// 401/403 -> credential, 429 -> rate limit, 402 or a quota-coded body -> quota,
// timeouts and connection failures -> network, anything else -> generic.
func Classify(err error) Category {
	if err == nil {
		return CategoryGeneric
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return CategoryCredential
		case 429:
			return CategoryRateLimit
		case 402:
			return CategoryQuota
		}
		if strings.Contains(apiErr.Body, "insufficient_quota") {
			return CategoryQuota
		}
		return CategoryGeneric
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryNetwork
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return CategoryNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return CategoryNetwork
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CategoryNetwork
	}

	return CategoryGeneric
}

// UserMessage returns the short human-readable message for a category.
func UserMessage(cat Category) string {
	switch cat {
	case CategoryCredential:
		return "API key invalid, check your settings"
	case CategoryRateLimit:
		return "Too many requests, try again shortly"
	case CategoryQuota:
		return "API quota exhausted, top up your account"
	case CategoryNetwork:
		return "Network connection failed, check your connection"
	default:
		return "Processing failed, please retry"
	}
}

// UserMessageFor classifies err and returns its user-facing message.
func UserMessageFor(err error) string {
	return UserMessage(Classify(err))
}
