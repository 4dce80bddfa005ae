package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
)

// ErrNoChoicesInResponse is returned when the completion has no choices
var ErrNoChoicesInResponse = errors.New("no choices in response")

// APIError represents an error from the model provider's API
type APIError struct {
	Message     string
	Type        string
	Code        string
	StatusCode  int
	RetryAfter  *time.Duration
	IsPermanent bool // quota exhaustion, not a transient rate limit
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d, type %s): %s", e.StatusCode, e.Type, e.Message)
}

// IsRateLimitError reports whether err is a transient rate limit
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests && !apiErr.IsPermanent
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

// IsQuotaError reports whether err is a quota exhaustion error
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsPermanent || apiErr.Code == "insufficient_quota"
	}
	errStr := err.Error()
	return strings.Contains(errStr, "insufficient_quota") ||
		strings.Contains(errStr, "billing")
}

// ExtractAPIError returns rate limit details from a provider error, or nil
func ExtractAPIError(err error) *APIError {
	if err == nil {
		return nil
	}

	var sdkErr *openai.Error
	if errors.As(err, &sdkErr) {
		if sdkErr.StatusCode != http.StatusTooManyRequests {
			return nil
		}
		return withRetryAfter(&APIError{
			StatusCode:  sdkErr.StatusCode,
			Message:     sdkErr.Message,
			Type:        sdkErr.Type,
			Code:        sdkErr.Code,
			IsPermanent: sdkErr.Code == "insufficient_quota",
		})
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "429") {
		return nil
	}
	apiErr := &APIError{
		StatusCode: http.StatusTooManyRequests,
		Message:    errStr,
		Type:       "rate_limit_error",
	}
	if start := strings.Index(errStr, "{"); start != -1 {
		if end := strings.LastIndex(errStr, "}"); end > start {
			var body struct {
				Message string `json:"message"`
				Type    string `json:"type"`
				Code    string `json:"code"`
			}
			if json.Unmarshal([]byte(errStr[start:end+1]), &body) == nil {
				apiErr.Message = body.Message
				apiErr.Type = body.Type
				apiErr.Code = body.Code
				apiErr.IsPermanent = body.Code == "insufficient_quota"
			}
		}
	}
	return withRetryAfter(apiErr)
}

func withRetryAfter(apiErr *APIError) *APIError {
	retryAfter := 60 * time.Second
	if apiErr.IsPermanent {
		retryAfter = time.Hour
	}
	apiErr.RetryAfter = &retryAfter
	return apiErr
}

// GetRetryDelay returns the backoff before retry attempt n for err
func GetRetryDelay(err error, attempt int) time.Duration {
	shift := uint(min(max(attempt, 0), 10))

	if IsQuotaError(err) {
		return min(time.Hour*time.Duration(1<<shift), 24*time.Hour)
	}

	if IsRateLimitError(err) {
		delay := min(60*time.Second*time.Duration(1<<shift), 15*time.Minute)
		if apiErr := ExtractAPIError(err); apiErr != nil && apiErr.RetryAfter != nil && *apiErr.RetryAfter > delay {
			delay = *apiErr.RetryAfter
		}
		return delay
	}

	return min(5*time.Second*time.Duration(1<<shift), 5*time.Minute)
}
