package sendgridinfra

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/go-api-verification/internal/config"
	"github.com/go-api-verification/internal/domain"
)

type mailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// Relay delivers through a SendGrid dynamic template. The payload fields are
// passed as template data so the template owns the wording.
type Relay struct {
	client mailSender
	cfg    config.SendGridConfig
}

// NewRelay builds a relay from cfg. A nil client means one is created from the API key.
func NewRelay(client mailSender, cfg config.SendGridConfig) *Relay {
	if client == nil && cfg.APIKey != "" {
		client = sendgrid.NewSendClient(cfg.APIKey)
	}
	return &Relay{client: client, cfg: cfg}
}

func (r *Relay) Name() string { return domain.ChannelRelayA }

func (r *Relay) Deliver(ctx context.Context, p domain.DeliveryPayload) error {
	if r.client == nil || r.cfg.TemplateID == "" || r.cfg.FromEmail == "" {
		return fmt.Errorf("sendgrid relay needs api key, template and sender: %w", domain.ErrChannelMisconfigured)
	}

	resp, err := r.client.SendWithContext(ctx, r.message(p))
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid rejected message: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func (r *Relay) message(p domain.DeliveryPayload) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(r.cfg.FromName, r.cfg.FromEmail))
	m.SetTemplateID(r.cfg.TemplateID)

	pers := mail.NewPersonalization()
	pers.AddTos(mail.NewEmail(p.RecipientName, p.RecipientEmail))
	pers.SetDynamicTemplateData("recipient_email", p.RecipientEmail)
	pers.SetDynamicTemplateData("recipient_name", p.RecipientName)
	pers.SetDynamicTemplateData("verification_code", p.VerificationCode)
	pers.SetDynamicTemplateData("product_name", p.ProductName)
	pers.SetDynamicTemplateData("expiry_label", p.ExpiryLabel)
	m.AddPersonalizations(pers)

	if r.cfg.Sandbox {
		ms := mail.NewMailSettings()
		ms.SetSandboxMode(mail.NewSetting(true))
		m.SetMailSettings(ms)
	}
	return m
}
