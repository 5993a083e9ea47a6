/**
 * @description
 * This file contains the HTTP handler for the Paystack webhook. The webhook sits
 * outside the authentication middleware; its only credential is the HMAC-SHA512
 * signature over the raw request body. The signature is verified before any
 * payload field is parsed or any database lookup happens.
 *
 * @dependencies
 * - encoding/json, io, net/http: Standard Go libraries.
 * - internal/app, internal/domain: Settlement logic and wire types.
 */

package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/payvault/wallet-service/internal/app"
	"github.com/payvault/wallet-service/internal/domain"
)

const signatureHeader = "x-paystack-signature"

// maxWebhookBody caps how much of a webhook body is read before verification.
const maxWebhookBody = 1 << 20

// PaystackWebhookHandler receives deposit settlement events from the gateway.
func (h *WalletHandlers) PaystackWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if !h.consumeRateLimit(w, r, "webhook", clientAddr(r), h.webhookLimitPerMinute) {
		return
	}

	signature := r.Header.Get(signatureHeader)
	if signature == "" {
		log.Printf("level=warn component=api endpoint=webhook outcome=reject reason=missing_signature remote=%s", r.RemoteAddr)
		h.writeError(w, http.StatusBadRequest, "Missing signature header")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Unable to read request body")
		return
	}

	if !h.processor.VerifySignature(body, signature) {
		log.Printf("level=warn component=api endpoint=webhook outcome=reject reason=invalid_signature remote=%s", r.RemoteAddr)
		h.writeError(w, http.StatusForbidden, "Invalid signature")
		return
	}

	var payload domain.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Printf("level=warn component=api endpoint=webhook outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid webhook payload")
		return
	}

	outcome, err := h.processor.HandleEvent(r.Context(), payload)
	if err != nil {
		if errors.Is(err, app.ErrMissingReference) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("level=error component=api endpoint=webhook msg=\"settlement failed\" reference=%s err=%v", payload.Data.Reference, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, outcome)
}
