/**
 * @description
 * This file defines the wire types for the Paystack webhook. Fields not listed
 * here are accepted and ignored, since the gateway sends a much larger envelope
 * than the ledger cares about.
 */

package domain

// WebhookPayload is the subset of the Paystack event envelope the service reads.
type WebhookPayload struct {
	Event string      `json:"event"`
	Data  WebhookData `json:"data"`
}

// WebhookData carries the transaction details inside a webhook event.
type WebhookData struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
}

// WebhookOutcome is the acknowledgement body returned to the gateway.
type WebhookOutcome struct {
	Status bool   `json:"status"`
	Detail string `json:"detail,omitempty"`
}
