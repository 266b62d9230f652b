package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-api-verification/internal/domain"
)

// Error codes let clients tell verification outcomes apart without parsing messages.
const (
	codeNotSent  = 1001
	codeExpired  = 1002
	codeMismatch = 1003
	codeDelivery = 1004
)

// httpError maps service errors onto status codes and user-facing messages.
func httpError(w http.ResponseWriter, err error) {
	var dErr *domain.DispatchError
	switch {
	case errors.Is(err, domain.ErrCodeNotSent):
		writeJSON(w, http.StatusNotFound, MessageEnvelope{
			Error: "No pending verification code for this email. It may have expired or never been sent. Request a new code.", ErrorCode: codeNotSent})
	case errors.Is(err, domain.ErrCodeExpired):
		writeJSON(w, http.StatusGone, MessageEnvelope{
			Error: "This verification code has expired. Request a new code.", ErrorCode: codeExpired})
	case errors.Is(err, domain.ErrCodeMismatch):
		writeJSON(w, http.StatusUnprocessableEntity, MessageEnvelope{
			Error: "The verification code is incorrect. Check it and try again.", ErrorCode: codeMismatch})
	case errors.As(err, &dErr):
		slog.Error("verification delivery failed", "channel", dErr.Channel, "err", dErr.Err)
		writeJSON(w, http.StatusBadGateway, MessageEnvelope{
			Error: "The verification email could not be sent. Try again later.", ErrorCode: codeDelivery})
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		slog.Error("unhandled error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
