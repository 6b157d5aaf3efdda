package logger

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// redactedKeys name fields that carry buyer contact or tax identifiers.
var redactedKeys = map[string]struct{}{
	"recipient": {},
	"email":     {},
	"phone":     {},
	"gstin":     {},
}

type redactingCore struct {
	zapcore.Core
}

// NewRedactingCore masks string fields named in redactedKeys before they
// reach the encoder.
func NewRedactingCore(core zapcore.Core) zapcore.Core {
	return &redactingCore{Core: core}
}

func (c *redactingCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactingCore{Core: c.Core.With(redactFields(fields))}
}

func (c *redactingCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return ce.AddCore(entry, c)
	}
	return ce
}

func (c *redactingCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	return c.Core.Write(entry, redactFields(fields))
}

func redactFields(fields []zapcore.Field) []zapcore.Field {
	var out []zapcore.Field
	for i, f := range fields {
		if f.Type != zapcore.StringType {
			continue
		}
		if _, ok := redactedKeys[strings.ToLower(f.Key)]; !ok {
			continue
		}
		if out == nil {
			out = append([]zapcore.Field(nil), fields...)
		}
		out[i].String = Mask(f.String)
	}
	if out == nil {
		return fields
	}
	return out
}

// Mask keeps the first two and last two characters, or the domain of an
// email address.
func Mask(value string) string {
	if value == "" {
		return value
	}
	if at := strings.LastIndex(value, "@"); at > 0 {
		return value[:1] + "***" + value[at:]
	}
	if len(value) <= 4 {
		return "****"
	}
	return value[:2] + strings.Repeat("*", len(value)-4) + value[len(value)-2:]
}
