// internal/github/errors.go
package github

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v62/github"
)

// APIError represents a non-successful GitHub API response.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: API error %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// RateLimitError is returned for primary and secondary rate limit responses.
type RateLimitError struct {
	StatusCode int
	Message    string
	ResetAt    time.Time
}

func (e *RateLimitError) Error() string {
	if e.ResetAt.IsZero() {
		return fmt.Sprintf("github: rate limited (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("github: rate limited (%d): %s, resets at %s", e.StatusCode, e.Message, e.ResetAt.Format(time.RFC3339))
}

// wrapError converts go-github errors to our error types.
func wrapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &RateLimitError{
			StatusCode: statusOf(rateErr.Response),
			Message:    rateErr.Message,
			ResetAt:    rateErr.Rate.Reset.Time,
		}
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		var resetAt time.Time
		if abuseErr.RetryAfter != nil {
			resetAt = time.Now().Add(*abuseErr.RetryAfter)
		}
		return &RateLimitError{
			StatusCode: statusOf(abuseErr.Response),
			Message:    abuseErr.Message,
			ResetAt:    resetAt,
		}
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		apiErr := &APIError{
			StatusCode: ghErr.Response.StatusCode,
			Message:    ghErr.Message,
		}
		if ghErr.Response.Request != nil {
			apiErr.URL = ghErr.Response.Request.URL.String()
		}
		return apiErr
	}

	return fmt.Errorf("%s: %w", operation, err)
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return http.StatusForbidden
	}
	return resp.StatusCode
}

// IsRateLimited reports whether err is a 403/429-class response that warrants a backoff.
func IsRateLimited(err error) bool {
	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusForbidden || apiErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// IsNotFound checks if the error indicates a resource was not found.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}
