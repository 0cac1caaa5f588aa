package security

import (
	"regexp"
	"strings"
)

// sensitiveFields contains header and field names whose values are secrets.
var sensitiveFields = map[string]bool{
	"appkey":        true,
	"app_key":       true,
	"appsecret":     true,
	"app_secret":    true,
	"authorization": true,
	"access_token":  true,
	"token":         true,
	"secret":        true,
}

// sensitivePatterns contains regex patterns for secrets embedded in text.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(app[_-]?key|app[_-]?secret|access[_-]?token)(["']?\s*[=:]\s*["']?)([^\s"',}]+)`),
	regexp.MustCompile(`(?i)(bearer)(\s+)([A-Za-z0-9_\-\.]+)`),
}

// IsSensitiveField checks if a field or header name carries a secret.
func IsSensitiveField(field string) bool {
	return sensitiveFields[strings.ToLower(field)]
}

// MaskCredential masks a credential value for logging.
func MaskCredential(value string) string {
	if len(value) == 0 {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	if len(value) <= 8 {
		return value[:2] + strings.Repeat("*", len(value)-2)
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

// MaskSensitive masks secrets found in free text such as upstream error bodies.
func MaskSensitive(input string) string {
	result := input
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			parts := pattern.FindStringSubmatch(match)
			if len(parts) != 4 {
				return MaskCredential(match)
			}
			return parts[1] + parts[2] + MaskCredential(parts[3])
		})
	}
	return result
}

// ContainsSensitiveData checks if a string contains secret patterns.
func ContainsSensitiveData(input string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(input) {
			return true
		}
	}
	return false
}
