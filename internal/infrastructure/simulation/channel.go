package simulation

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-api-verification/internal/domain"
	"github.com/go-api-verification/internal/pkg/logging"
)

// Notice is what the simulated channel hands to its notifier instead of sending mail.
type Notice struct {
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	ExpiryLabel string    `json:"expiry_label"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// Notifier receives simulated deliveries.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notice)

func (f NotifierFunc) Notify(ctx context.Context, n Notice) { f(ctx, n) }

// Channel logs the code and passes it to the notifier. It never fails.
type Channel struct {
	notifier Notifier
	now      func() time.Time
}

// NewChannel returns a simulated channel. notifier may be nil.
func NewChannel(notifier Notifier) *Channel {
	return &Channel{notifier: notifier, now: time.Now}
}

func (c *Channel) Name() string { return domain.ChannelSimulation }

func (c *Channel) Deliver(ctx context.Context, p domain.DeliveryPayload) error {
	slog.Info("simulated verification email",
		"email", logging.RedactEmail(p.RecipientEmail),
		"code", p.VerificationCode,
		"expires_in", p.ExpiryLabel)

	if c.notifier != nil {
		c.notifier.Notify(context.WithoutCancel(ctx), Notice{
			Email:       p.RecipientEmail,
			Name:        p.RecipientName,
			Code:        p.VerificationCode,
			ExpiryLabel: p.ExpiryLabel,
			DeliveredAt: c.now().UTC(),
		})
	}
	return nil
}
