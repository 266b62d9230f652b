package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-api-verification/internal/domain"
	"github.com/go-api-verification/internal/pkg/logging"
)

// Channel delivers a verification payload to the recipient.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, p domain.DeliveryPayload) error
}

// DispatcherOptions tunes the fallback policy.
type DispatcherOptions struct {
	// AttemptTimeout bounds each channel attempt. Zero disables the bound.
	AttemptTimeout time.Duration
	// Strict disables fallback: a primary failure is returned to the caller.
	Strict bool
}

// Delivery describes which channel ended up sending the payload.
type Delivery struct {
	Channel  string
	FellBack bool
}

// Dispatcher tries channels in a fixed order until one succeeds.
// The chain always ends with the simulation channel, which never fails.
type Dispatcher struct {
	chain          []Channel
	attemptTimeout time.Duration
	strict         bool
}

// NewDispatcher builds the chain primary -> fallbacks... -> simulation from the
// registered channels. "external" is reserved and resolves to simulation.
func NewDispatcher(channels map[string]Channel, primary string, fallbacks []string, opts DispatcherOptions) (*Dispatcher, error) {
	if _, ok := channels[domain.ChannelSimulation]; !ok {
		return nil, fmt.Errorf("simulation channel must be registered: %w", domain.ErrChannelMisconfigured)
	}

	names := append([]string{primary}, fallbacks...)
	names = append(names, domain.ChannelSimulation)

	seen := make(map[string]bool, len(names))
	chain := make([]Channel, 0, len(names))
	for _, name := range names {
		if name == domain.ChannelExternal {
			name = domain.ChannelSimulation
		}
		ch, ok := channels[name]
		if !ok {
			return nil, fmt.Errorf("unknown verification channel %q: %w", name, domain.ErrChannelMisconfigured)
		}
		if seen[ch.Name()] {
			continue
		}
		seen[ch.Name()] = true
		chain = append(chain, ch)
	}

	return &Dispatcher{chain: chain, attemptTimeout: opts.AttemptTimeout, strict: opts.Strict}, nil
}

// Chain returns the channel names in the order they are tried.
func (d *Dispatcher) Chain() []string {
	out := make([]string, len(d.chain))
	for i, ch := range d.chain {
		out[i] = ch.Name()
	}
	return out
}

// Dispatch delivers p through the first channel that succeeds.
func (d *Dispatcher) Dispatch(ctx context.Context, p domain.DeliveryPayload) (Delivery, error) {
	var failures []error
	for i, ch := range d.chain {
		err := d.attempt(ctx, ch, p)
		if err == nil {
			if i > 0 {
				slog.Info("verification delivered by fallback channel",
					"channel", ch.Name(), "primary", d.chain[0].Name(),
					"email", logging.RedactEmail(p.RecipientEmail))
			}
			return Delivery{Channel: ch.Name(), FellBack: i > 0}, nil
		}

		dErr := &domain.DispatchError{Channel: ch.Name(), Err: err}
		slog.Warn("verification delivery failed",
			"channel", ch.Name(), "email", logging.RedactEmail(p.RecipientEmail), "err", err)
		if d.strict {
			return Delivery{}, dErr
		}
		failures = append(failures, dErr)
	}

	last := d.chain[len(d.chain)-1].Name()
	return Delivery{}, &domain.DispatchError{Channel: last, Err: errors.Join(failures...)}
}

func (d *Dispatcher) attempt(ctx context.Context, ch Channel, p domain.DeliveryPayload) error {
	if d.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.attemptTimeout)
		defer cancel()
	}
	return ch.Deliver(ctx, p)
}
