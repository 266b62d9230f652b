package domain

import (
	"strings"
	"time"
)

// Delivery channel names accepted by VERIFICATION_CHANNEL.
const (
	ChannelSimulation = "simulation"
	ChannelRelayA     = "relay-a"
	ChannelRelayB     = "relay-b"
	ChannelExternal   = "external"
	ChannelSMTP       = "smtp"
	ChannelResend     = "resend"
)

// VerificationRecord is the pending code for one email address.
// At most one exists per email; a new send overwrites it.
type VerificationRecord struct {
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether now is strictly past the record's expiry.
func (r *VerificationRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// DeliveryPayload is what every channel receives.
type DeliveryPayload struct {
	RecipientEmail   string `json:"recipient_email"`
	RecipientName    string `json:"recipient_name"`
	VerificationCode string `json:"verification_code"`
	ProductName      string `json:"product_name"`
	ExpiryLabel      string `json:"expiry_label"`
}

// Dispatched is the success result of a send.
type Dispatched struct {
	ID       string `json:"id"`
	Channel  string `json:"channel"`
	Message  string `json:"message"`
	FellBack bool   `json:"fell_back"`
	// DisplayCode is set only when the simulated channel delivered, so the
	// initiating session can show the code in-app.
	DisplayCode string `json:"code,omitempty"`
}

// Verified is the success result of a verify.
type Verified struct {
	Email      string    `json:"email"`
	VerifiedAt time.Time `json:"verified_at"`
	Token      string    `json:"verification_token,omitempty"`
}

// VerificationStatus describes whether a code is currently pending for an email.
type VerificationStatus struct {
	Email     string     `json:"email"`
	Pending   bool       `json:"pending"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type SendVerificationRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Name  string `json:"name" validate:"max=100"`
}

type VerifyCodeRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Code  string `json:"code" validate:"required,max=16"`
}

// NormalizeEmail returns the lookup key for an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
