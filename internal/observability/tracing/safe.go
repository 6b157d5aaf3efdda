package tracing

import (
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys that may carry customer data never leave the process.
var blockedAttributeKeys = map[attribute.Key]struct{}{
	"email":         {},
	"recipient":     {},
	"gstin":         {},
	"phone":         {},
	"customer_name": {},
}

// SafeAttributes drops attributes that could leak personal or tax identifiers.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, blocked := blockedAttributeKeys[attr.Key]; blocked {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// SafeError reduces an error to a message without embedded addresses.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "@") {
		return errors.New("error redacted: contains address")
	}
	return errors.New(msg)
}
