package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/pairly/wallet/internal/domain"
	"github.com/pairly/wallet/internal/service"
)

// SignatureHeader carries the gateway's base64 RSA signature of the raw body.
const SignatureHeader = "Content-Signature"

// PaymentHandler handles gateway callbacks. Both routes are unauthenticated.
type PaymentHandler struct {
	payments *service.PaymentService
	logger   *slog.Logger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(payments *service.PaymentService, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, logger: logger}
}

// Webhook handles POST /payments/webhook.
// The body must reach the verifier unparsed; the signature covers the exact bytes.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		RespondError(w, domain.ErrValidation("Unreadable webhook body"))
		return
	}

	res, err := h.payments.Reconcile(r.Context(), body, r.Header.Get(SignatureHeader))
	if err != nil {
		if appErr, ok := domain.AsAppError(err); ok && appErr.Operational() {
			h.logger.Warn("webhook rejected", "request_id", GetRequestID(r.Context()), "error", err)
		}
		respondFailure(h.logger, w, r, err)
		return
	}

	h.logger.Info("webhook applied",
		"payment_token_id", res.PaymentTokenID,
		"status", res.Status,
		"credited", res.Credited,
	)
	RespondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Return handles GET /payments/return, the browser redirect after checkout.
func (h *PaymentHandler) Return(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.payments.HandleReturn(r.Context(), service.ReturnParams{
		Token:  q.Get("token"),
		Status: q.Get("status"),
		UID:    q.Get("uid"),
		Query:  q,
	})
	if err != nil {
		respondFailure(h.logger, w, r, err)
		return
	}

	if res.RedirectURL != "" {
		http.Redirect(w, r, res.RedirectURL, http.StatusFound)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": res.Status})
}
