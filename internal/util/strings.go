package util

import "strings"

// SafeTruncate truncates s to at most maxLen bytes without panicking.
// It is used when logging codes, states and tokens, where only a prefix
// should ever be visible. A negative maxLen yields "".
//
//	SafeTruncate("very-long-token-abc123", 8) // "very-lon"
//	SafeTruncate("short", 10)                  // "short"
func SafeTruncate(s string, maxLen int) string {
	if maxLen < 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// MaskEmail keeps the first character of the local part and the domain.
//
//	MaskEmail("alice@example.com") // "a***@example.com"
//	MaskEmail("not-an-email")      // "***"
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

// JoinURL joins base and path so that exactly one slash separates them.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
