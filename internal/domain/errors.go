package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound   = errors.New("not found")
	ErrBadRequest = errors.New("bad request")
)

// Verification outcomes. Each kind gets its own user-facing message.
var (
	ErrCodeNotSent  = errors.New("verification code not sent")
	ErrCodeExpired  = errors.New("verification code expired")
	ErrCodeMismatch = errors.New("verification code mismatch")
)

// ErrChannelMisconfigured is returned by a channel that lacks the settings it needs.
var ErrChannelMisconfigured = errors.New("channel misconfigured")

// DispatchError reports that a delivery channel could not send the code.
type DispatchError struct {
	Channel string
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch via %s: %v", e.Channel, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }
