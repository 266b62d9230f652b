package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-api-verification/internal/application/verification"
	"github.com/go-api-verification/internal/domain"
	"github.com/go-api-verification/internal/infrastructure/simulation"
	"github.com/go-api-verification/internal/pkg/validate"
	"github.com/go-api-verification/internal/transport/http/middleware"
)

type inboxReader interface {
	Latest(email string) (simulation.Notice, bool)
}

// VerificationHandler handles the email verification endpoints.
type VerificationHandler struct {
	svc   verification.Service
	inbox inboxReader
}

// NewVerificationHandler wires the handler. inbox may be nil, in which case
// the Inbox endpoint reports 404 for every address.
func NewVerificationHandler(svc verification.Service, inbox *simulation.Inbox) *VerificationHandler {
	h := &VerificationHandler{svc: svc}
	if inbox != nil {
		h.inbox = inbox
	}
	return h
}

func (h *VerificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req domain.SendVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.svc.Issue(r.Context(), req.Email, req.Name)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *VerificationHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.svc.Verify(r.Context(), req.Email, req.Code)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *VerificationHandler) Status(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if !validate.Email(email) {
		writeError(w, http.StatusBadRequest, "a valid email query parameter is required")
		return
	}
	out, err := h.svc.Status(r.Context(), email)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Session echoes the verified email carried by the Bearer token.
func (h *VerificationHandler) Session(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	out := SessionEnvelope{Email: claims.Email, Verified: true}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	writeJSON(w, http.StatusOK, out)
}

// Inbox returns the latest simulated delivery for an email. Development only.
func (h *VerificationHandler) Inbox(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if !validate.Email(email) {
		writeError(w, http.StatusBadRequest, "a valid email query parameter is required")
		return
	}
	if h.inbox == nil {
		writeError(w, http.StatusNotFound, "no simulated email for this address")
		return
	}
	n, ok := h.inbox.Latest(domain.NormalizeEmail(email))
	if !ok {
		writeError(w, http.StatusNotFound, "no simulated email for this address")
		return
	}
	writeJSON(w, http.StatusOK, n)
}
