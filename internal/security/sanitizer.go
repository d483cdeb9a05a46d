// Package security redacts credentials from diagnostic output.
package security

import (
	"net/http"
	"regexp"
	"strings"
)

// Common patterns for sensitive data
var (
	// Authorization: Basic <base64>
	basicAuthPattern = regexp.MustCompile(`(?i)(authorization[^A-Za-z0-9]{1,4}basic)[[:space:]]+[A-Za-z0-9+/]+=*`)

	// Bearer tokens
	bearerTokenPattern = regexp.MustCompile(`(?i)bearer[[:space:]]+[a-zA-Z0-9_\-\.]+`)

	// Passwords in URLs
	urlPasswordPattern = regexp.MustCompile(`(?i)(https?)://[^:/@\s]+:[^@\s]+@`)

	// password=..., "password": "...", pwd: '...'
	passwordPattern = regexp.MustCompile(`(?i)(password|passwd|pwd)("?[[:space:]]*[:=][[:space:]]*)("[^"]*"|'[^']*'|[^\s,&"'}]+)`)
)

const redacted = "[REDACTED]"

// LogSanitizer masks credentials in messages before they reach the
// diagnostic stream.
type LogSanitizer struct {
	secrets []*regexp.Regexp
}

// NewLogSanitizer creates a new log sanitizer
func NewLogSanitizer() *LogSanitizer {
	return &LogSanitizer{}
}

// AddSecret registers a literal value, such as the account password, that
// must never appear in a sanitized message. Empty values are ignored.
func (ls *LogSanitizer) AddSecret(secret string) {
	if secret == "" {
		return
	}
	ls.secrets = append(ls.secrets, regexp.MustCompile(regexp.QuoteMeta(secret)))
}

// Sanitize removes or masks sensitive information from log messages
func (ls *LogSanitizer) Sanitize(message string) string {
	for _, pattern := range ls.secrets {
		message = pattern.ReplaceAllString(message, redacted)
	}

	message = basicAuthPattern.ReplaceAllString(message, "${1} "+redacted)
	message = bearerTokenPattern.ReplaceAllString(message, "Bearer "+redacted)
	message = urlPasswordPattern.ReplaceAllString(message, "${1}://"+redacted+"@")
	message = passwordPattern.ReplaceAllString(message, "${1}${2}"+redacted)

	return message
}

// SanitizeError sanitizes error messages that might contain sensitive info
func (ls *LogSanitizer) SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return ls.Sanitize(err.Error())
}

// SanitizeHeader flattens h into a map suitable for log fields. Values of
// credential-bearing headers are replaced outright.
func (ls *LogSanitizer) SanitizeHeader(h http.Header) map[string]string {
	sanitized := make(map[string]string, len(h))
	for k, v := range h {
		if isSensitiveKey(k) {
			sanitized[k] = redacted
			continue
		}
		sanitized[k] = ls.Sanitize(strings.Join(v, ", "))
	}
	return sanitized
}

// isSensitiveKey checks if a header or field name suggests sensitive content
func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, keyword := range []string{
		"password", "passwd",
		"secret", "token",
		"authorization", "cookie", "credential",
	} {
		if strings.Contains(lowerKey, keyword) {
			return true
		}
	}
	return false
}
