package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces secrets such as exporter credentials in log output.
const RedactedValue = "[REDACTED]"

// MaskValue returns the redacted placeholder for non-empty values.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskHeaders logs header names while hiding their values.
func MaskHeaders(key string, headers map[string]string) slog.Attr {
	masked := make(map[string]string, len(headers))
	for name, value := range headers {
		masked[name] = MaskValue(value)
	}
	return slog.Any(key, masked)
}
