package logging

import (
	"regexp"
)

// RedactedText is the replacement text for sensitive data
const RedactedText = "[REDACTED]"

var (
	// Pattern to match bearer tokens (three base64 segments separated by dots)
	jwtPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_]+\.[A-Za-z0-9-_]+\.[A-Za-z0-9-_]*`)

	// Pattern to match secrets passed as query or form parameters
	secretParamPattern = regexp.MustCompile(`(?i)(token|api[_-]?key|apikey|secret)=[^&\s"]+`)

	// Pattern to match credentials embedded in URLs (user:pass@host format)
	urlCredentialsPattern = regexp.MustCompile(`://[^:/\s]+:[^@/\s]+@`)
)

// SanitizeError sanitizes error messages that might contain sensitive data.
// Use this before logging any error returned by a backend service call.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error())
}

// SanitizeString redacts bearer tokens, secret parameters and URL credentials.
func SanitizeString(s string) string {
	if s == "" {
		return ""
	}

	sanitized := jwtPattern.ReplaceAllString(s, "Bearer "+RedactedText)
	sanitized = secretParamPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = urlCredentialsPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@")

	return sanitized
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
