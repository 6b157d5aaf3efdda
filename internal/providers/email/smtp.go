package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"

	jwemail "github.com/jordan-wright/email"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	StartTLS bool
}

type SMTPProvider struct {
	cfg Config
}

func NewSMTP(cfg Config) *SMTPProvider {
	return &SMTPProvider{cfg: cfg}
}

// Send delivers msg and gives up when ctx is done. net/smtp has no
// context support, so an abandoned dial keeps running in the background
// until the server answers or the connection drops.
func (p *SMTPProvider) Send(ctx context.Context, msg Message) error {
	if p.cfg.Host == "" {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("email: send aborted: %w", err)
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("email: no recipients")
	}

	e, err := p.build(msg)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- p.deliver(e)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("email: send aborted: %w", ctx.Err())
	}
}

func (p *SMTPProvider) build(msg Message) (*jwemail.Email, error) {
	e := jwemail.NewEmail()
	e.From = p.from()
	e.To = msg.To
	e.Subject = msg.Subject
	e.HTML = []byte(msg.HTML)
	e.Text = []byte(msg.Text)
	for k, v := range msg.Headers {
		e.Headers.Set(k, v)
	}
	for _, a := range msg.Attachments {
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if _, err := e.Attach(bytes.NewReader(a.Content), a.Filename, contentType); err != nil {
			return nil, fmt.Errorf("email: attach %s: %w", a.Filename, err)
		}
	}
	return e, nil
}

func (p *SMTPProvider) deliver(e *jwemail.Email) error {
	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)
	var auth smtp.Auth
	if p.cfg.Username != "" {
		auth = smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
	}
	if p.cfg.StartTLS {
		return e.SendWithStartTLS(addr, auth, &tls.Config{ServerName: p.cfg.Host})
	}
	return e.Send(addr, auth)
}

func (p *SMTPProvider) from() string {
	if p.cfg.From != "" {
		return p.cfg.From
	}
	return p.cfg.Username
}
