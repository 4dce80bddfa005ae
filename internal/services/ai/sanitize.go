package ai

import (
	"github.com/benvon/taskpulse/internal/logger"
)

const (
	// MaxPreviewLength caps prompt and response previews outside debug mode
	MaxPreviewLength = 200
	// MaxDebugContentLength caps logged content in debug mode
	MaxDebugContentLength = 10000
	// RedactedValue replaces the hidden part of a secret
	RedactedValue = "[REDACTED]"
)

// SanitizeAPIKey keeps the first and last four characters of a key
func SanitizeAPIKey(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	if len(apiKey) <= 8 {
		return RedactedValue
	}
	return apiKey[:4] + RedactedValue + apiKey[len(apiKey)-4:]
}

// SanitizePrompt prepares a prompt for logging
func SanitizePrompt(prompt string, fullLog bool) string {
	return logger.SanitizeString(prompt, previewLimit(fullLog))
}

// SanitizeResponse prepares a model response for logging
func SanitizeResponse(response string, fullLog bool) string {
	return logger.SanitizeString(response, previewLimit(fullLog))
}

func previewLimit(fullLog bool) int {
	if fullLog {
		return MaxDebugContentLength
	}
	return MaxPreviewLength
}
