// Package failure classifies source adapter errors into the ingestion error taxonomy.
package failure

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/target/mmk-job-ingest/internal/domain/model"
)

// Error is a classified adapter failure. Adapters return it at the point the failure
// occurs so the category travels unmodified to the run record.
type Error struct {
	Category   model.ErrorCategory
	Detail     string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Category)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (http %d)", msg, e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a classified error.
func New(category model.ErrorCategory, detail string) *Error {
	return &Error{Category: category, Detail: detail}
}

// Wrap classifies err under category. A nil err yields nil.
func Wrap(err error, category model.ErrorCategory, detail string) error {
	if err == nil {
		return nil
	}
	return &Error{Category: category, Detail: detail, Err: err}
}

// AuthFailed reports a rejected credential.
func AuthFailed(detail string) *Error { return New(model.ErrorCategoryAuthFailed, detail) }

// SelectorMismatch reports that the adapter could not find the structure it expected.
func SelectorMismatch(detail string) *Error { return New(model.ErrorCategorySelectorMismatch, detail) }

// ServiceUnavailable reports a transient remote failure.
func ServiceUnavailable(detail string) *Error {
	return New(model.ErrorCategoryServiceUnavailable, detail)
}

// FromStatus maps an HTTP status code to a classified error. 2xx and 3xx return nil.
func FromStatus(code int, detail string) *Error {
	category, ok := categoryForStatus(code)
	if !ok {
		return nil
	}
	return &Error{Category: category, StatusCode: code, Detail: detail}
}

func categoryForStatus(code int) (model.ErrorCategory, bool) {
	switch {
	case code < http.StatusBadRequest:
		return "", false
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return model.ErrorCategoryAuthFailed, true
	case code == http.StatusTooManyRequests:
		return model.ErrorCategoryRateLimited, true
	case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout:
		return model.ErrorCategoryTimeout, true
	case code >= http.StatusInternalServerError:
		return model.ErrorCategoryServiceUnavailable, true
	default:
		return model.ErrorCategoryUnknown, true
	}
}

// Classify returns the category for err. Errors already classified by an adapter keep
// their category; everything else falls back to timeout and message heuristics.
func Classify(err error) model.ErrorCategory {
	if err == nil {
		return model.ErrorCategoryNone
	}

	var classified *Error
	if errors.As(err, &classified) && classified.Category != "" {
		return classified.Category
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return model.ErrorCategoryTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.ErrorCategoryTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case isNetworkError(msg):
		return model.ErrorCategoryServiceUnavailable
	case isParseError(msg):
		return model.ErrorCategorySelectorMismatch
	default:
		return model.ErrorCategoryUnknown
	}
}

// Detail returns a short operator-facing description of err.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	var classified *Error
	if errors.As(err, &classified) {
		if classified.Detail != "" {
			return classified.Detail
		}
		if classified.Err != nil {
			return classified.Err.Error()
		}
	}
	return err.Error()
}

// IsCancellation reports whether err came from a cancelled context.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}

func isNetworkError(msg string) bool {
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"tls handshake",
		"unexpected eof",
		"broken pipe",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func isParseError(msg string) bool {
	return strings.Contains(msg, "json") &&
		(strings.Contains(msg, "unmarshal") || strings.Contains(msg, "invalid") || strings.Contains(msg, "unexpected"))
}
