package gateway

import (
	"errors"
	"fmt"
	"strings"
)

// VendorError is a classified failure from a vendor call. Transient errors may
// be retried by the caller; everything else is permanent.
type VendorError struct {
	Status    int
	Code      string
	Message   string
	Transient bool
}

func (e *VendorError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("vendor: %s (%s)", e.Message, e.Code)
	}
	if e.Status > 0 {
		return fmt.Sprintf("vendor: status %d: %s", e.Status, e.Message)
	}
	return "vendor: " + e.Message
}

// transientMarkers are message substrings observed on retryable vendor and
// transport failures. Matching is case-insensitive over the full causal chain.
var transientMarkers = []string{
	"overload",
	"saturat",
	"rate limit",
	"too many requests",
	"server is busy",
	"retry later",
	"try again",
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection reset",
	"goaway",
	"http2: server sent goaway",
	"temporarily unavailable",
}

// IsTransient reports whether err may succeed on retry. A *VendorError carries
// its own classification; any other error is matched by message substring,
// inspecting the whole unwrap chain so wrapped transport errors are caught.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var ve *VendorError
	if errors.As(err, &ve) {
		return ve.Transient
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		msg := strings.ToLower(e.Error())
		for _, marker := range transientMarkers {
			if strings.Contains(msg, marker) {
				return true
			}
		}
	}
	return false
}

// classify builds a VendorError from an HTTP error response, marking it
// transient only when the vendor message matches a known transient marker or
// the status is a throttling/overload status.
func classify(status int, code, message string) *VendorError {
	transient := status == 429 || status == 503 || status == 504
	if !transient {
		lower := strings.ToLower(message)
		for _, marker := range transientMarkers {
			if strings.Contains(lower, marker) {
				transient = true
				break
			}
		}
	}
	return &VendorError{Status: status, Code: code, Message: message, Transient: transient}
}

// permanent builds a non-retryable VendorError for malformed or unsupported
// vendor interactions where the HTTP call itself succeeded.
func permanent(format string, args ...any) *VendorError {
	return &VendorError{Message: fmt.Sprintf(format, args...)}
}
