package mailtmpl

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"log/slog"

	"github.com/go-api-verification/internal/domain"
)

const defaultHTML = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; background:#f5f6f8; padding:24px;">
  <div style="max-width:480px; margin:0 auto; background:#ffffff; border-radius:8px; padding:32px;">
    <h2 style="margin-top:0;">{{.ProductName}}</h2>
    <p>Hi {{.RecipientName}},</p>
    <p>Use the following code to verify your email address. It expires in {{.ExpiryLabel}}.</p>
    <p style="font-size:32px; letter-spacing:8px; font-weight:bold; text-align:center;">{{.VerificationCode}}</p>
    <p style="color:#888888; font-size:12px;">If you did not request this code you can ignore this email.</p>
  </div>
</body>
</html>`

// Message is a rendered verification email.
type Message struct {
	Subject string
	HTML    string
	Text    string
}

// Renderer turns a delivery payload into an email.
type Renderer struct {
	html *template.Template
}

// Default returns a renderer using the compiled-in template.
func Default() *Renderer {
	return &Renderer{html: template.Must(template.New("verification").Parse(defaultHTML))}
}

// Parse returns a renderer for a custom HTML template. The template sees the
// DeliveryPayload fields.
func Parse(src string) (*Renderer, error) {
	t, err := template.New("verification").Option("missingkey=error").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse email template: %w", err)
	}
	if err := t.Execute(io.Discard, sample); err != nil {
		return nil, fmt.Errorf("email template does not render: %w", err)
	}
	return &Renderer{html: t}, nil
}

var sample = domain.DeliveryPayload{
	RecipientEmail:   "user@example.com",
	RecipientName:    "user",
	VerificationCode: "000000",
	ProductName:      "Product",
	ExpiryLabel:      "5 minutes",
}

func (r *Renderer) Render(p domain.DeliveryPayload) (Message, error) {
	var buf bytes.Buffer
	if err := r.html.Execute(&buf, p); err != nil {
		return Message{}, fmt.Errorf("render email template: %w", err)
	}
	return Message{
		Subject: fmt.Sprintf("%s - Verification Code", p.ProductName),
		HTML:    buf.String(),
		Text: fmt.Sprintf("Hi %s,\n\nYour %s verification code is %s. It expires in %s.\n",
			p.RecipientName, p.ProductName, p.VerificationCode, p.ExpiryLabel),
	}, nil
}

// Source fetches template bodies by key.
type Source interface {
	Download(ctx context.Context, key string) (io.ReadCloser, error)
}

// Load returns the renderer stored under key, or the default one when key is
// empty or the override cannot be used.
func Load(ctx context.Context, src Source, key string) *Renderer {
	if key == "" || src == nil {
		return Default()
	}
	body, err := src.Download(ctx, key)
	if err != nil {
		slog.Warn("email template override unavailable, using default", "key", key, "err", err)
		return Default()
	}
	defer body.Close()

	raw, err := io.ReadAll(io.LimitReader(body, 256<<10))
	if err != nil {
		slog.Warn("email template override unreadable, using default", "key", key, "err", err)
		return Default()
	}
	r, err := Parse(string(raw))
	if err != nil {
		slog.Warn("email template override invalid, using default", "key", key, "err", err)
		return Default()
	}
	slog.Info("loaded email template override", "key", key)
	return r
}
