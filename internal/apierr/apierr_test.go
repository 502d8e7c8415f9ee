package apierr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassifyStatusTable(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   Category
	}{
		{401, "Incorrect API key provided", CategoryCredential},
		{403, "forbidden", CategoryCredential},
		{429, "rate_limit_exceeded", CategoryRateLimit},
		{402, "payment required", CategoryQuota},
		{400, `{"error":{"code":"insufficient_quota"}}`, CategoryQuota},
		{500, "internal server error", CategoryGeneric},
		{400, "bad request", CategoryGeneric},
	}

	for _, tc := range cases {
		err := &APIError{Kind: KindAPI, Op: "transcribe", StatusCode: tc.status, Body: tc.body}
		if got := Classify(err); got != tc.want {
			t.Errorf("status %d body %q: got %s, want %s", tc.status, tc.body, got, tc.want)
		}
	}
}

func TestClassifyWrappedAPIError(t *testing.T) {
	err := fmt.Errorf("transcription failed: %w",
		&APIError{Kind: KindAPI, Op: "transcribe", StatusCode: 401, Body: "nope"})
	if got := Classify(err); got != CategoryCredential {
		t.Errorf("wrapped 401: got %s, want %s", got, CategoryCredential)
	}
}

func TestClassifyNetworkErrors(t *testing.T) {
	cases := []error{
		context.DeadlineExceeded,
		syscall.ECONNREFUSED,
		timeoutErr{},
		&net.DNSError{Err: "no such host", Name: "api.example.com"},
		&net.OpError{Op: "dial", Err: errors.New("connection refused")},
	}
	for _, err := range cases {
		if got := Classify(err); got != CategoryNetwork {
			t.Errorf("%v: got %s, want %s", err, got, CategoryNetwork)
		}
	}
}

func TestClassifyGenericFallback(t *testing.T) {
	if got := Classify(errors.New("something odd")); got != CategoryGeneric {
		t.Errorf("got %s, want %s", got, CategoryGeneric)
	}
	if got := Classify(nil); got != CategoryGeneric {
		t.Errorf("nil: got %s, want %s", got, CategoryGeneric)
	}
}

func TestUserMessageDistinct(t *testing.T) {
	seen := map[string]Category{}
	for _, cat := range []Category{CategoryCredential, CategoryRateLimit, CategoryQuota, CategoryNetwork, CategoryGeneric} {
		msg := UserMessage(cat)
		if msg == "" {
			t.Errorf("%s: empty message", cat)
		}
		if prev, ok := seen[msg]; ok {
			t.Errorf("categories %s and %s share message %q", prev, cat, msg)
		}
		seen[msg] = cat
	}
}

func TestAPIErrorString(t *testing.T) {
	err := &APIError{Kind: KindAPI, Op: "polish", StatusCode: 500, Body: "boom"}
	if want := "polish: API error (500): boom"; err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}

	// Parse errors carry no status code.
	perr := &APIError{Kind: KindParse, Op: "polish", Body: "{}"}
	if got := perr.Error(); got == "" || got == err.Error() {
		t.Errorf("parse error string not distinct: %q", got)
	}

	// Timeout classification sanity: a deadline wrapped by an HTTP client.
	wrapped := fmt.Errorf("Post \"https://api.example.com\": %w", context.DeadlineExceeded)
	if got := Classify(wrapped); got != CategoryNetwork {
		t.Errorf("wrapped deadline: got %s, want %s", got, CategoryNetwork)
	}
}
