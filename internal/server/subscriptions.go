package server

import (
	"io"
	"net/http"

	"github.com/joseph-ayodele/lumo-backend/internal/common"
	"github.com/joseph-ayodele/lumo-backend/internal/subscriptions"
)

const maxWebhookBody = 64 << 10

func (h *handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req subscriptions.CheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Email == "" {
		req.Email = common.EmailFromContext(r.Context())
	}
	res, err := h.Subscriptions.Checkout(r.Context(), common.UserIDFromContext(r.Context()), req)
	if err != nil {
		h.fail(w, r, "subscriptions.checkout", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) subscriptionStatus(w http.ResponseWriter, r *http.Request) {
	active, err := h.Subscriptions.HasActive(r.Context(), common.UserIDFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, "subscriptions.status", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"has_active_subscription": active})
}

func (h *handler) portal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReturnURL string `json:"return_url"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	url, err := h.Subscriptions.Portal(r.Context(), common.UserIDFromContext(r.Context()), req.ReturnURL)
	if err != nil {
		h.fail(w, r, "subscriptions.portal", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// webhook is authenticated by the Stripe-Signature header, not a bearer token.
func (h *handler) webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, common.InvalidInputError("Invalid payload"))
		return
	}
	if err := h.Subscriptions.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		h.fail(w, r, "subscriptions.webhook", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
