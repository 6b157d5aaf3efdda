package email

import (
	"context"
	"errors"
)

var ErrNotConfigured = errors.New("smtp_not_configured")

type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is one outbound email. HTML and Text are sent as alternatives.
type Message struct {
	To          []string
	Subject     string
	HTML        string
	Text        string
	Headers     map[string]string
	Attachments []Attachment
}

type Provider interface {
	Send(ctx context.Context, msg Message) error
}

// NoOpProvider drops every message. It stands in for SMTP in development
// when no host is configured.
type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, msg Message) error {
	return ctx.Err()
}
