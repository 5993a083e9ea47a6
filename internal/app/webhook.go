/**
 * @description
 * This file contains the Paystack-facing business logic: initializing deposits
 * against the payment gateway and settling them when the gateway's webhook
 * arrives.
 *
 * Key features:
 * - Deposit initialization creates a pending ledger row tied to the gateway's
 *   transaction reference.
 * - Webhook signatures are verified with HMAC-SHA512 over the raw body before
 *   any payload field is trusted.
 * - Settlement is idempotent: redeliveries of an already-settled reference are
 *   acknowledged without touching the ledger again.
 *
 * @dependencies
 * - crypto/hmac, crypto/sha512, encoding/hex: Signature verification.
 * - internal/domain, internal/store: Domain models and data access.
 * - pkg/paystackclient, pkg/rabbitmq: External service communication.
 */

package app

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/payvault/wallet-service/internal/domain"
	"github.com/payvault/wallet-service/internal/store"
	"github.com/payvault/wallet-service/pkg/paystackclient"
	"github.com/payvault/wallet-service/pkg/rabbitmq"
)

var ErrMissingReference = errors.New("webhook payload has no transaction reference")

// WebhookProcessor handles deposit initialization and webhook settlement.
type WebhookProcessor struct {
	repo           store.Repository
	paystackClient *paystackclient.Client
	eventProducer  rabbitmq.Publisher
	eventExchange  string
	webhookSecret  string
}

// NewWebhookProcessor creates a new webhook processor instance.
func NewWebhookProcessor(repo store.Repository, paystack *paystackclient.Client, producer rabbitmq.Publisher, eventExchange, webhookSecret string) *WebhookProcessor {
	return &WebhookProcessor{
		repo:           repo,
		paystackClient: paystack,
		eventProducer:  producer,
		eventExchange:  eventExchange,
		webhookSecret:  webhookSecret,
	}
}

// InitiateDeposit starts a deposit by registering the intent with Paystack and
// recording a pending ledger row under the gateway's reference.
func (p *WebhookProcessor) InitiateDeposit(ctx context.Context, userID uuid.UUID, amount int64) (*domain.DepositInitResponse, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	user, err := p.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	wallet, err := p.repo.FindWalletByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find wallet: %w", err)
	}

	init, err := p.paystackClient.InitializeTransaction(ctx, user.Email, amount)
	if err != nil {
		return nil, fmt.Errorf("paystack initialize failed: %w", err)
	}

	txRecord := &domain.Transaction{
		ID:               uuid.New(),
		Type:             domain.TransactionTypeDeposit,
		Amount:           amount,
		Reference:        init.Reference,
		Status:           domain.TransactionStatusPending,
		AuthorizationURL: &init.AuthorizationURL,
		WalletID:         wallet.ID,
		UserID:           userID,
	}
	if err := p.repo.CreateTransaction(ctx, txRecord); err != nil {
		return nil, fmt.Errorf("failed to record pending deposit: %w", err)
	}
	log.Printf("InitiateDeposit: Pending deposit %s of %d for user %s", init.Reference, amount, userID)

	return &domain.DepositInitResponse{
		Reference:        init.Reference,
		AuthorizationURL: init.AuthorizationURL,
	}, nil
}

// VerifySignature reports whether the signature header matches the HMAC-SHA512
// of the raw request body under the configured secret. An unconfigured secret
// rejects everything rather than letting unauthenticated events through.
func (p *WebhookProcessor) VerifySignature(body []byte, signature string) bool {
	if p.webhookSecret == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(p.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// HandleEvent applies a verified webhook event to the ledger. Unknown
// references and redeliveries are acknowledged as benign so the gateway stops
// retrying them.
func (p *WebhookProcessor) HandleEvent(ctx context.Context, payload domain.WebhookPayload) (*domain.WebhookOutcome, error) {
	if payload.Data.Reference == "" {
		return nil, ErrMissingReference
	}

	succeeded := isSuccessStatus(payload.Data.Status)
	txRecord, applied, err := p.repo.SettleDeposit(ctx, payload.Data.Reference, succeeded)
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) {
			log.Printf("HandleEvent: Ignoring webhook for unknown reference %s", payload.Data.Reference)
			return &domain.WebhookOutcome{Status: true, Detail: "transaction not found"}, nil
		}
		return nil, fmt.Errorf("failed to settle deposit %s: %w", payload.Data.Reference, err)
	}

	if !applied {
		log.Printf("HandleEvent: Reference %s already settled as %s, skipping", txRecord.Reference, txRecord.Status)
		return &domain.WebhookOutcome{Status: true, Detail: "transaction already settled"}, nil
	}

	routingKey := "deposit.failed"
	if txRecord.Status == domain.TransactionStatusSuccess {
		routingKey = "deposit.completed"
	}
	p.publishEvent(ctx, routingKey, domain.DepositSettledEvent{
		UserID:    txRecord.UserID,
		WalletID:  txRecord.WalletID,
		Reference: txRecord.Reference,
		Amount:    txRecord.Amount,
		Status:    txRecord.Status,
		Timestamp: time.Now().UTC(),
	})

	log.Printf("HandleEvent: Settled deposit %s as %s", txRecord.Reference, txRecord.Status)
	return &domain.WebhookOutcome{Status: true, Detail: "transaction settled"}, nil
}

func (p *WebhookProcessor) publishEvent(ctx context.Context, routingKey string, payload interface{}) {
	if p.eventProducer == nil {
		return
	}
	if err := p.eventProducer.Publish(ctx, p.eventExchange, routingKey, payload); err != nil {
		log.Printf("WARN: Failed to publish %s event: %v", routingKey, err)
	}
}

// isSuccessStatus interprets the gateway's loosely-typed status field.
func isSuccessStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success", "completed", "true":
		return true
	default:
		return false
	}
}
