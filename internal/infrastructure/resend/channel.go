package resendinfra

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"

	"github.com/go-api-verification/internal/config"
	"github.com/go-api-verification/internal/domain"
	"github.com/go-api-verification/internal/pkg/id"
	"github.com/go-api-verification/internal/pkg/mailtmpl"
)

const maxAttempts = 3

type emailSender interface {
	SendWithOptions(ctx context.Context, params *resend.SendEmailRequest, options *resend.SendEmailOptions) (*resend.SendEmailResponse, error)
}

// Channel sends rendered verification emails through the Resend API. All
// retries of one delivery share an idempotency key.
type Channel struct {
	emails   emailSender
	from     string
	renderer *mailtmpl.Renderer
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewChannel builds a channel from cfg. A nil sender means one is created from the API key.
func NewChannel(emails emailSender, cfg config.ResendConfig, renderer *mailtmpl.Renderer) *Channel {
	if emails == nil && cfg.APIKey != "" {
		emails = resend.NewClient(cfg.APIKey).Emails
	}
	if renderer == nil {
		renderer = mailtmpl.Default()
	}
	return &Channel{emails: emails, from: cfg.From, renderer: renderer, sleep: sleepCtx}
}

func (c *Channel) Name() string { return domain.ChannelResend }

func (c *Channel) Deliver(ctx context.Context, p domain.DeliveryPayload) error {
	if c.emails == nil || c.from == "" {
		return fmt.Errorf("resend needs api key and sender: %w", domain.ErrChannelMisconfigured)
	}
	msg, err := c.renderer.Render(p)
	if err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    c.from,
		To:      []string{p.RecipientEmail},
		Subject: msg.Subject,
		Text:    msg.Text,
		Html:    msg.HTML,
	}
	options := &resend.SendEmailOptions{IdempotencyKey: "verification/" + id.New()}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		_, err := c.emails.SendWithOptions(ctx, params, options)
		if err == nil {
			return nil
		}
		lastErr = err

		wait, ok := retryDelay(err, attempt)
		if !ok {
			return fmt.Errorf("resend send failed: %w", err)
		}
		if attempt == maxAttempts-1 {
			break
		}
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
	}
	return fmt.Errorf("resend send failed after retries: %w", lastErr)
}

func retryDelay(err error, attempt int) (time.Duration, bool) {
	var rateLimitErr *resend.RateLimitError
	if errors.As(err, &rateLimitErr) {
		if seconds, convErr := strconv.Atoi(strings.TrimSpace(rateLimitErr.RetryAfter)); convErr == nil && seconds > 0 {
			return min(time.Duration(seconds)*time.Second, 5*time.Second), true
		}
		return time.Duration(attempt+1) * time.Second, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}
	return 0, false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
