package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/payvault/wallet-service/internal/app"
	"github.com/payvault/wallet-service/internal/domain"
	"github.com/payvault/wallet-service/internal/store"
)

type webhookRepoStub struct {
	store.Repository

	tx            *domain.Transaction
	walletBalance int64
}

func (s *webhookRepoStub) SettleDeposit(ctx context.Context, reference string, succeeded bool) (*domain.Transaction, bool, error) {
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

const testWebhookSecret = "whsec-test"

func newWebhookTestHandlers(repo *webhookRepoStub) *WalletHandlers {
	processor := app.NewWebhookProcessor(repo, nil, nil, "wallet.events", testWebhookSecret)
	return NewWalletHandlers(nil, processor, nil, nil, 60, 120)
}

func signWebhookBody(body []byte) string {
	mac := hmac.New(sha512.New, []byte(testWebhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(h *WalletHandlers, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/wallet/paystack/webhook", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("x-paystack-signature", signature)
	}
	rec := httptest.NewRecorder()
	h.PaystackWebhookHandler(rec, req)
	return rec
}

func TestPaystackWebhookHandler_MissingSignature(t *testing.T) {
	h := newWebhookTestHandlers(&webhookRepoStub{})
	rec := postWebhook(h, []byte(`{}`), "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestPaystackWebhookHandler_InvalidSignature(t *testing.T) {
	repo := &webhookRepoStub{
		tx: &domain.Transaction{Reference: "ps-ref-1", Amount: 5000, Status: domain.TransactionStatusPending},
	}
	h := newWebhookTestHandlers(repo)

	body := []byte(`{"event":"charge.success","data":{"reference":"ps-ref-1","status":"success"}}`)
	signature := signWebhookBody(body)
	tampered := []byte(signature)
	tampered[0] ^= 1

	rec := postWebhook(h, body, string(tampered))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rec.Code)
	}
	if repo.tx.Status != domain.TransactionStatusPending {
		t.Fatalf("expected rejected event to leave transaction pending, got %s", repo.tx.Status)
	}
}

func TestPaystackWebhookHandler_SettlesDeposit(t *testing.T) {
	repo := &webhookRepoStub{
		tx: &domain.Transaction{
			ID:        uuid.New(),
			Reference: "ps-ref-1",
			Amount:    5000,
			Status:    domain.TransactionStatusPending,
		},
		walletBalance: 10000,
	}
	h := newWebhookTestHandlers(repo)

	body := []byte(`{"event":"charge.success","data":{"reference":"ps-ref-1","status":"success","amount":5000}}`)
	rec := postWebhook(h, body, signWebhookBody(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if repo.walletBalance != 15000 {
		t.Fatalf("expected balance 15000 after settlement, got %d", repo.walletBalance)
	}

	var outcome domain.WebhookOutcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("failed to decode outcome: %v", err)
	}
	if !outcome.Status {
		t.Fatalf("expected acknowledged outcome, got %+v", outcome)
	}

	// Redelivery of the same signed body is acknowledged without a second credit.
	rec = postWebhook(h, body, signWebhookBody(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 on redelivery, got %d", rec.Code)
	}
	if repo.walletBalance != 15000 {
		t.Fatalf("expected redelivery to leave balance at 15000, got %d", repo.walletBalance)
	}
}

func TestPaystackWebhookHandler_UnknownReference(t *testing.T) {
	h := newWebhookTestHandlers(&webhookRepoStub{})

	body := []byte(`{"event":"charge.success","data":{"reference":"mystery","status":"success"}}`)
	rec := postWebhook(h, body, signWebhookBody(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var outcome domain.WebhookOutcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("failed to decode outcome: %v", err)
	}
	if !outcome.Status || outcome.Detail != "transaction not found" {
		t.Fatalf("expected benign not-found outcome, got %+v", outcome)
	}
}

func TestPaystackWebhookHandler_MissingReference(t *testing.T) {
	h := newWebhookTestHandlers(&webhookRepoStub{})

	body := []byte(`{"event":"charge.success","data":{"status":"success"}}`)
	rec := postWebhook(h, body, signWebhookBody(body))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestCreateKeyHandler_RejectsAPIKeyIdentity(t *testing.T) {
	repo := newAPIKeyRepoStub()
	keyManager := app.NewKeyManager(repo, 30)
	h := NewWalletHandlers(nil, nil, keyManager, nil, 60, 120)

	key := &domain.APIKey{ID: uuid.New(), UserID: uuid.New(), Permissions: []domain.Permission{domain.PermissionRead}}
	req := httptest.NewRequest("POST", "/keys/create", bytes.NewReader([]byte(`{"name":"x","permissions":["read"]}`)))
	req = req.WithContext(context.WithValue(req.Context(), identityKey, domain.Identity(domain.APIKeyIdentity{Key: key})))

	rec := httptest.NewRecorder()
	h.CreateKeyHandler(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 for api key identity, got %d", rec.Code)
	}
}
