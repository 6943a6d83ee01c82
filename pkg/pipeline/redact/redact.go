package redact

import (
	"regexp"
	"strings"
)

var (
	// Matches "Bearer <token>" (JWTs and opaque tokens).
	bearerTokenRe = regexp.MustCompile(`(?i)\bBearer\s+[^\s"']+`)

	// Bare JWTs (header.payload.signature) that leak without the Bearer prefix.
	jwtRe = regexp.MustCompile(`\beyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]*`)

	// Common key=value / "key": "value" formats that sometimes leak in error strings.
	secretKVRe = regexp.MustCompile(`(?i)"?\b(api[_-]?key|private[_-]?key|privateKey|client[_-]?secret|jwt)\b"?\s*[:=]\s*"?[^\s"',}]+"?`)
)

// Secrets removes obvious secret-bearing substrings from error/log strings.
func Secrets(s string) string {
	if s == "" {
		return ""
	}
	out := s
	out = bearerTokenRe.ReplaceAllString(out, "Bearer <redacted>")
	out = secretKVRe.ReplaceAllString(out, "<redacted_kv>")
	out = jwtRe.ReplaceAllString(out, "<redacted_jwt>")
	return strings.TrimSpace(out)
}
