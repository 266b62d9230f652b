package smtp

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/smtp"
	"net/textproto"

	"github.com/go-api-verification/internal/config"
	"github.com/go-api-verification/internal/domain"
	"github.com/go-api-verification/internal/pkg/mailtmpl"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer delivers verification emails over SMTP.
type Mailer struct {
	host     string
	port     string
	from     string
	username string
	password string
	renderer *mailtmpl.Renderer
	send     sendFunc
}

func NewMailer(cfg *config.Config, renderer *mailtmpl.Renderer) *Mailer {
	if renderer == nil {
		renderer = mailtmpl.Default()
	}
	return &Mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     cfg.SMTPFrom,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		renderer: renderer,
		send:     smtp.SendMail,
	}
}

func (m *Mailer) Name() string { return domain.ChannelSMTP }

// Deliver renders p and sends it. net/smtp has no context support, so a
// cancelled ctx abandons the send without interrupting it.
func (m *Mailer) Deliver(ctx context.Context, p domain.DeliveryPayload) error {
	if m.host == "" || m.from == "" {
		return fmt.Errorf("smtp host and sender are required: %w", domain.ErrChannelMisconfigured)
	}
	msg, err := m.renderer.Render(p)
	if err != nil {
		return err
	}
	raw, err := buildMessage(m.from, p.RecipientEmail, msg)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	addr := fmt.Sprintf("%s:%s", m.host, m.port)

	done := make(chan error, 1)
	go func() { done <- m.send(addr, auth, m.from, []string{p.RecipientEmail}, raw) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildMessage(from, to string, msg mailtmpl.Message) ([]byte, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	for _, part := range []struct{ contentType, content string }{
		{"text/plain; charset=UTF-8", msg.Text},
		{"text/html; charset=UTF-8", msg.HTML},
	} {
		pw, err := w.CreatePart(textproto.MIMEHeader{"Content-Type": {part.contentType}})
		if err != nil {
			return nil, fmt.Errorf("build mime part: %w", err)
		}
		if _, err := pw.Write([]byte(part.content)); err != nil {
			return nil, fmt.Errorf("build mime part: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("build mime message: %w", err)
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\n", from, to, msg.Subject)
	fmt.Fprintf(&out, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", w.Boundary())
	out.Write(body.Bytes())
	return out.Bytes(), nil
}
