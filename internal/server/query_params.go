package server

import (
	"errors"
	"strings"
	"time"
)

const dateOnlyLayout = "2006-01-02"

var errInvalidTime = errors.New("invalid_time")

// parseOptionalTime accepts RFC3339 or a plain date. Plain dates are read
// in the business timezone; endOfDay selects the last instant of that day.
func (s *Server) parseOptionalTime(value string, endOfDay bool) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return &parsed, nil
	}
	if parsed, err := time.ParseInLocation(dateOnlyLayout, trimmed, s.location()); err == nil {
		if endOfDay {
			parsed = parsed.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		return &parsed, nil
	}
	return nil, errInvalidTime
}

// parseDate parses a document date; an empty value means today.
func (s *Server) parseDate(field, value string) (*time.Time, error) {
	parsed, err := s.parseOptionalTime(value, false)
	if err != nil {
		return nil, newValidationError(field, "invalid_"+field, "invalid "+field)
	}
	return parsed, nil
}

func (s *Server) location() *time.Location {
	if s.loc != nil {
		return s.loc
	}
	return time.UTC
}
