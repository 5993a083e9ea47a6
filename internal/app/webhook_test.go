package app

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/payvault/wallet-service/internal/domain"
	"github.com/payvault/wallet-service/internal/store"
)

type settleRepoStub struct {
	store.Repository

	tx            *domain.Transaction
	walletBalance int64
	settleCalls   int
}

func (s *settleRepoStub) SettleDeposit(ctx context.Context, reference string, succeeded bool) (*domain.Transaction, bool, error) {
	s.settleCalls++
	if s.tx == nil || s.tx.Reference != reference {
		return nil, false, store.ErrTransactionNotFound
	}
	if s.tx.Status.Terminal() {
		return s.tx, false, nil
	}
	if succeeded {
		s.walletBalance += s.tx.Amount
		s.tx.Status = domain.TransactionStatusSuccess
	} else {
		s.tx.Status = domain.TransactionStatusFailed
	}
	return s.tx, true, nil
}

type capturingPublisher struct {
	exchange    string
	routingKeys []string
}

func (p *capturingPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.exchange = exchange
	p.routingKeys = append(p.routingKeys, routingKey)
	return nil
}

func (p *capturingPublisher) Close() {}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	processor := NewWebhookProcessor(&settleRepoStub{}, nil, nil, "wallet.events", "whsec")
	body := []byte(`{"event":"charge.success"}`)
	signature := signBody("whsec", body)

	if !processor.VerifySignature(body, signature) {
		t.Fatal("expected valid signature to verify")
	}
	if processor.VerifySignature(append([]byte{}, append(body, ' ')...), signature) {
		t.Fatal("expected modified body to fail verification")
	}

	tampered := []byte(signature)
	tampered[0] ^= 1
	if processor.VerifySignature(body, string(tampered)) {
		t.Fatal("expected tampered signature to fail verification")
	}
}

func TestVerifySignature_UnconfiguredSecretRejects(t *testing.T) {
	processor := NewWebhookProcessor(&settleRepoStub{}, nil, nil, "wallet.events", "")
	body := []byte(`{}`)
	if processor.VerifySignature(body, signBody("", body)) {
		t.Fatal("expected verification to fail when no secret is configured")
	}
}

func TestHandleEvent_DoubleDeliveryCreditsOnce(t *testing.T) {
	repo := &settleRepoStub{
		tx: &domain.Transaction{
			ID:        uuid.New(),
			Type:      domain.TransactionTypeDeposit,
			Amount:    5000,
			Reference: "ps-ref-1",
			Status:    domain.TransactionStatusPending,
			WalletID:  uuid.New(),
			UserID:    uuid.New(),
		},
		walletBalance: 10000,
	}
	publisher := &capturingPublisher{}
	processor := NewWebhookProcessor(repo, nil, publisher, "wallet.events", "whsec")

	payload := domain.WebhookPayload{
		Event: "charge.success",
		Data:  domain.WebhookData{Reference: "ps-ref-1", Status: "success", Amount: 5000},
	}

	first, err := processor.HandleEvent(context.Background(), payload)
	if err != nil {
		t.Fatalf("first delivery returned error: %v", err)
	}
	if !first.Status {
		t.Fatal("expected first delivery to be acknowledged")
	}
	if repo.walletBalance != 15000 {
		t.Fatalf("expected balance 15000 after settlement, got %d", repo.walletBalance)
	}

	second, err := processor.HandleEvent(context.Background(), payload)
	if err != nil {
		t.Fatalf("second delivery returned error: %v", err)
	}
	if !second.Status || second.Detail != "transaction already settled" {
		t.Fatalf("expected benign redelivery outcome, got %+v", second)
	}
	if repo.walletBalance != 15000 {
		t.Fatalf("expected redelivery to leave balance at 15000, got %d", repo.walletBalance)
	}
	if len(publisher.routingKeys) != 1 || publisher.routingKeys[0] != "deposit.completed" {
		t.Fatalf("expected one deposit.completed event, got %v", publisher.routingKeys)
	}
}

func TestHandleEvent_FailedStatusDoesNotCredit(t *testing.T) {
	repo := &settleRepoStub{
		tx: &domain.Transaction{
			Amount:    5000,
			Reference: "ps-ref-2",
			Status:    domain.TransactionStatusPending,
		},
		walletBalance: 10000,
	}
	publisher := &capturingPublisher{}
	processor := NewWebhookProcessor(repo, nil, publisher, "wallet.events", "whsec")

	outcome, err := processor.HandleEvent(context.Background(), domain.WebhookPayload{
		Data: domain.WebhookData{Reference: "ps-ref-2", Status: "failed"},
	})
	if err != nil {
		t.Fatalf("HandleEvent returned error: %v", err)
	}
	if !outcome.Status {
		t.Fatal("expected failed settlement to still be acknowledged")
	}
	if repo.walletBalance != 10000 {
		t.Fatalf("expected failed deposit to leave balance untouched, got %d", repo.walletBalance)
	}
	if repo.tx.Status != domain.TransactionStatusFailed {
		t.Fatalf("expected transaction marked failed, got %s", repo.tx.Status)
	}
	if len(publisher.routingKeys) != 1 || publisher.routingKeys[0] != "deposit.failed" {
		t.Fatalf("expected one deposit.failed event, got %v", publisher.routingKeys)
	}
}

func TestHandleEvent_UnknownReferenceIsBenign(t *testing.T) {
	processor := NewWebhookProcessor(&settleRepoStub{}, nil, nil, "wallet.events", "whsec")

	outcome, err := processor.HandleEvent(context.Background(), domain.WebhookPayload{
		Data: domain.WebhookData{Reference: "who-dis", Status: "success"},
	})
	if err != nil {
		t.Fatalf("HandleEvent returned error: %v", err)
	}
	if !outcome.Status || outcome.Detail != "transaction not found" {
		t.Fatalf("expected benign not-found outcome, got %+v", outcome)
	}
}

func TestHandleEvent_MissingReference(t *testing.T) {
	processor := NewWebhookProcessor(&settleRepoStub{}, nil, nil, "wallet.events", "whsec")

	if _, err := processor.HandleEvent(context.Background(), domain.WebhookPayload{}); !errors.Is(err, ErrMissingReference) {
		t.Fatalf("expected ErrMissingReference, got %v", err)
	}
}

func TestIsSuccessStatus(t *testing.T) {
	for _, status := range []string{"success", "SUCCESS", "completed", "true", " Success "} {
		if !isSuccessStatus(status) {
			t.Fatalf("expected %q to count as success", status)
		}
	}
	for _, status := range []string{"failed", "pending", "", "abandoned", "false"} {
		if isSuccessStatus(status) {
			t.Fatalf("expected %q to count as failure", status)
		}
	}
}
