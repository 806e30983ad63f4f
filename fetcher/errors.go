package fetcher

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

// ErrInvalidURL indicates the input does not start with http:// or https://.
type ErrInvalidURL struct {
	URL string
}

func (e ErrInvalidURL) Error() string {
	return fmt.Sprintf("invalid_url: %q must start with http:// or https://", e.URL)
}

// ErrNonImage indicates the server declared a non-image Content-Type.
type ErrNonImage struct {
	ContentType string
}

func (e ErrNonImage) Error() string {
	return fmt.Sprintf("non_image: content type %q", e.ContentType)
}

// ErrTooLarge indicates the payload exceeds the configured ceiling.
// When Declared is set, Size is the Content-Length the server announced.
// Otherwise the body was cut off once it passed Limit and Size only counts
// the bytes read up to that point.
type ErrTooLarge struct {
	Size     int64
	Limit    int64
	Declared bool
}

func (e ErrTooLarge) Error() string {
	if e.Declared {
		return fmt.Sprintf("too_large: %s exceeds limit of %s",
			humanize.IBytes(uint64(e.Size)), humanize.IBytes(uint64(e.Limit)))
	}
	return fmt.Sprintf("too_large: body is more than %s", humanize.IBytes(uint64(e.Limit)))
}

// ErrBadContentLength indicates a Content-Length header that is not a
// non-negative integer.
type ErrBadContentLength struct {
	Value string
	Err   error
}

func (e ErrBadContentLength) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bad_header: content length %q: %v", e.Value, e.Err)
	}
	return fmt.Sprintf("bad_header: content length %q", e.Value)
}

func (e ErrBadContentLength) Unwrap() error {
	return e.Err
}

// ErrHTTPStatus indicates a non-2xx response without a more specific type.
type ErrHTTPStatus struct {
	StatusCode int
}

func (e ErrHTTPStatus) Error() string {
	return fmt.Sprintf("http status %d", e.StatusCode)
}

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrForbidden indicates a forbidden response (HTTP 403).
type ErrForbidden struct {
	Err error
}

func (e ErrForbidden) Error() string {
	return fmt.Errorf("forbidden: %w", e.Err).Error()
}

func (e ErrForbidden) Unwrap() error {
	return e.Err
}

// ErrNotFound indicates a missing resource (HTTP 404).
type ErrNotFound struct {
	Err error
}

func (e ErrNotFound) Error() string {
	return fmt.Errorf("not_found: %w", e.Err).Error()
}

func (e ErrNotFound) Unwrap() error {
	return e.Err
}

// ErrRateLimited indicates the target rate-limited the request.
type ErrRateLimited struct {
	Err error
}

func (e ErrRateLimited) Error() string {
	return fmt.Errorf("rate_limited: %w", e.Err).Error()
}

func (e ErrRateLimited) Unwrap() error {
	return e.Err
}

// ErrorCategory maps a fetch error to the label used in logs, metrics and
// reports.
func ErrorCategory(err error) string {
	if err == nil {
		return "unknown"
	}
	var invalid ErrInvalidURL
	if errors.As(err, &invalid) {
		return "invalid_url"
	}
	var nonImage ErrNonImage
	if errors.As(err, &nonImage) {
		return "non_image"
	}
	var tooLarge ErrTooLarge
	if errors.As(err, &tooLarge) {
		return "too_large"
	}
	var badLength ErrBadContentLength
	if errors.As(err, &badLength) {
		return "bad_header"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var forbidden ErrForbidden
	if errors.As(err, &forbidden) {
		return "forbidden"
	}
	var notFound ErrNotFound
	if errors.As(err, &notFound) {
		return "not_found"
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	var status ErrHTTPStatus
	if errors.As(err, &status) {
		return "http_status"
	}
	return "other"
}
