package email

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRequiresHost(t *testing.T) {
	err := NewSMTP(Config{}).Send(context.Background(), Message{To: []string{"a@example.com"}})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestBuildMessage(t *testing.T) {
	p := NewSMTP(Config{Host: "smtp.example.com", Port: 587, Username: "billing@example.com"})
	e, err := p.build(Message{
		To:      []string{"buyer@example.com"},
		Subject: "Invoice INV/2024-25/0001 from Kerala Traders",
		HTML:    "<p>Hello</p>",
		Text:    "Hello",
		Headers: map[string]string{"X-Document-Id": "42"},
		Attachments: []Attachment{{
			Filename: "inv-2024-25-0001.pdf",
			Content:  []byte("%PDF-1.3"),
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "billing@example.com", e.From)
	assert.Equal(t, "42", e.Headers.Get("X-Document-Id"))
	require.Len(t, e.Attachments, 1)
	assert.Equal(t, "application/octet-stream", e.Attachments[0].Header.Get("Content-Type"))

	raw, err := e.Bytes()
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "inv-2024-25-0001.pdf"))
}

func TestSendHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewSMTP(Config{Host: "192.0.2.1", Port: 9}).Send(ctx, Message{To: []string{"a@example.com"}})
	assert.ErrorIs(t, err, context.Canceled)
}
