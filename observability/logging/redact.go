package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

var redactionAllowlist = map[string]struct{}{
	"service":    {},
	"env":        {},
	"message":    {},
	"severity":   {},
	"timestamp":  {},
	"error":      {},
	"reason":     {},
	"component":  {},
	"market":     {},
	"request_id": {},
	"route":      {},
	"height":     {},
}

// IsAllowlisted reports whether the provided key is exempt from automatic redaction.
func IsAllowlisted(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	_, ok := redactionAllowlist[normalized]
	return ok
}

// MaskField redacts value unless key is allowlisted.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// ShortAddress keeps the human readable prefix and the last six characters of
// an address so depositors can be correlated without logging full addresses.
func ShortAddress(addr string) string {
	trimmed := strings.TrimSpace(addr)
	if len(trimmed) <= 12 {
		return trimmed
	}
	sep := strings.LastIndex(trimmed, "1")
	if sep <= 0 {
		return "…" + trimmed[len(trimmed)-6:]
	}
	return trimmed[:sep+1] + "…" + trimmed[len(trimmed)-6:]
}
