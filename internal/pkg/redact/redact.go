// redact masks personal data before it reaches the logs.
package redact

import "strings"

// Email keeps the first two runes of the local part and the whole domain.
func Email(s string) string {
	parts := strings.Split(s, "@")
	if len(parts) != 2 {
		return "***"
	}

	local, domain := []rune(parts[0]), parts[1]
	if len(local) > 2 {
		return string(local[:2]) + "***@" + domain
	}

	return "***@" + domain
}

// Token hides a bearer or unsubscribe token. A short prefix is kept for correlation.
func Token(s string) string {
	if len(s) <= 8 {
		return "[REDACTED_TOKEN]"
	}

	return s[:4] + "...[REDACTED_TOKEN]"
}

func Password() string { return "[REDACTED_PASSWORD]" }
