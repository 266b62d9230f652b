package verification

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-api-verification/internal/domain"
	"github.com/go-api-verification/internal/pkg/id"
	"github.com/go-api-verification/internal/pkg/logging"
)

const DefaultCodeTTL = 5 * time.Minute

type Service interface {
	Send(ctx context.Context, email, code, displayName string) (*domain.Dispatched, error)
	Issue(ctx context.Context, email, displayName string) (*domain.Dispatched, error)
	Verify(ctx context.Context, email, code string) (*domain.Verified, error)
	Status(ctx context.Context, email string) (*domain.VerificationStatus, error)
}

type verificationStore interface {
	Put(ctx context.Context, rec *domain.VerificationRecord) error
	Get(ctx context.Context, email string) (*domain.VerificationRecord, error)
	Delete(ctx context.Context, email string) error
	// Consume deletes the record only while it still holds code. It reports
	// domain.ErrNotFound when the record is gone or was replaced.
	Consume(ctx context.Context, email, code string) error
}

type dispatcher interface {
	Dispatch(ctx context.Context, p domain.DeliveryPayload) (Delivery, error)
}

type tokenSigner interface {
	SignVerification(email string) (string, error)
}

type service struct {
	store       verificationStore
	dispatcher  dispatcher
	tokens      tokenSigner
	ttl         time.Duration
	productName string
	now         func() time.Time
}

type ServiceDeps struct {
	Store      verificationStore
	Dispatcher dispatcher
	// Tokens is optional; without it Verified carries no proof token.
	Tokens      tokenSigner
	CodeTTL     time.Duration
	ProductName string
	Now         func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		store:       deps.Store,
		dispatcher:  deps.Dispatcher,
		tokens:      deps.Tokens,
		ttl:         deps.CodeTTL,
		productName: deps.ProductName,
		now:         deps.Now,
	}
	if s.ttl <= 0 {
		s.ttl = DefaultCodeTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Send stores code for email, replacing any pending one, and delivers it.
// Channel failures fall back down the dispatcher chain and are only logged.
func (s *service) Send(ctx context.Context, email, code, displayName string) (*domain.Dispatched, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("email is required: %w", domain.ErrBadRequest)
	}
	if !validCode(code) {
		return nil, fmt.Errorf("verification code must be 6 digits: %w", domain.ErrBadRequest)
	}

	rec := &domain.VerificationRecord{
		Email:     email,
		Code:      code,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.store.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("store verification record: %w", err)
	}

	payload := domain.DeliveryPayload{
		RecipientEmail:   email,
		RecipientName:    recipientName(displayName, email),
		VerificationCode: code,
		ProductName:      s.productName,
		ExpiryLabel:      expiryLabel(s.ttl),
	}
	delivery, err := s.dispatcher.Dispatch(ctx, payload)
	if err != nil {
		return nil, err
	}

	out := &domain.Dispatched{
		ID:       id.New(),
		Channel:  delivery.Channel,
		FellBack: delivery.FellBack,
	}
	if delivery.Channel == domain.ChannelSimulation {
		out.DisplayCode = code
		out.Message = fmt.Sprintf("Verification code generated for %s (valid for %s). Email delivery is simulated; use the code shown.",
			email, payload.ExpiryLabel)
	} else {
		out.Message = fmt.Sprintf("Verification code sent to %s. It expires in %s.", email, payload.ExpiryLabel)
	}
	slog.Info("verification code dispatched",
		"dispatch_id", out.ID, "channel", out.Channel, "fell_back", out.FellBack,
		"email", logging.RedactEmail(email))
	return out, nil
}

// Issue generates a fresh code and sends it.
func (s *service) Issue(ctx context.Context, email, displayName string) (*domain.Dispatched, error) {
	code, err := GenerateCode()
	if err != nil {
		return nil, err
	}
	return s.Send(ctx, email, code, displayName)
}

// Verify consumes the pending code for email. Wrong guesses keep the record
// so the user can retry until it expires.
func (s *service) Verify(ctx context.Context, email, code string) (*domain.Verified, error) {
	email = domain.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("verification code is required: %w", domain.ErrBadRequest)
	}

	rec, err := s.store.Get(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrCodeNotSent
	}
	if err != nil {
		return nil, fmt.Errorf("load verification record: %w", err)
	}

	now := s.now()
	if rec.Expired(now) {
		if err := s.store.Delete(ctx, email); err != nil {
			slog.Warn("failed to delete expired verification record",
				"email", logging.RedactEmail(email), "err", err)
		}
		return nil, domain.ErrCodeExpired
	}

	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		return nil, domain.ErrCodeMismatch
	}

	if err := s.store.Consume(ctx, email, rec.Code); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrCodeNotSent
		}
		return nil, fmt.Errorf("consume verification record: %w", err)
	}

	verified := &domain.Verified{Email: email, VerifiedAt: now.UTC()}
	if s.tokens != nil {
		token, err := s.tokens.SignVerification(email)
		if err != nil {
			slog.Warn("failed to sign verification token", "email", logging.RedactEmail(email), "err", err)
		} else {
			verified.Token = token
		}
	}
	return verified, nil
}

// Status reports whether an unexpired code is pending. Expired records read as absent.
func (s *service) Status(ctx context.Context, email string) (*domain.VerificationStatus, error) {
	email = domain.NormalizeEmail(email)
	status := &domain.VerificationStatus{Email: email}

	rec, err := s.store.Get(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return status, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load verification record: %w", err)
	}
	if rec.Expired(s.now()) {
		return status, nil
	}
	exp := rec.ExpiresAt.UTC()
	status.Pending = true
	status.ExpiresAt = &exp
	return status, nil
}

// recipientName falls back to the local part of the address.
func recipientName(displayName, email string) string {
	if name := strings.TrimSpace(displayName); name != "" {
		return name
	}
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}
