package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/payvault/wallet-service/internal/domain"
	"github.com/payvault/wallet-service/internal/store"
)

type ledgerRepoStub struct {
	store.Repository

	walletsByUser   map[uuid.UUID]*domain.Wallet
	walletsByNumber map[int64]*domain.Wallet
	txByReference   map[string]*domain.Transaction

	transferParams *store.TransferParams
	transferErr    error
}

func newLedgerRepoStub() *ledgerRepoStub {
	return &ledgerRepoStub{
		walletsByUser:   make(map[uuid.UUID]*domain.Wallet),
		walletsByNumber: make(map[int64]*domain.Wallet),
		txByReference:   make(map[string]*domain.Transaction),
	}
}

func (s *ledgerRepoStub) addWallet(userID uuid.UUID, number int64, balance int64) *domain.Wallet {
	wallet := &domain.Wallet{ID: uuid.New(), UserID: userID, WalletNumber: number, Balance: balance}
	s.walletsByUser[userID] = wallet
	s.walletsByNumber[number] = wallet
	return wallet
}

func (s *ledgerRepoStub) FindWalletByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, ok := s.walletsByUser[userID]
	if !ok {
		return nil, store.ErrWalletNotFound
	}
	return wallet, nil
}

func (s *ledgerRepoStub) FindWalletByNumber(ctx context.Context, walletNumber int64) (*domain.Wallet, error) {
	wallet, ok := s.walletsByNumber[walletNumber]
	if !ok {
		return nil, store.ErrWalletNotFound
	}
	return wallet, nil
}

func (s *ledgerRepoStub) TransferBetweenWallets(ctx context.Context, params store.TransferParams) error {
	if s.transferErr != nil {
		return s.transferErr
	}
	s.transferParams = &params
	return nil
}

func (s *ledgerRepoStub) FindTransactionByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	tx, ok := s.txByReference[reference]
	if !ok {
		return nil, store.ErrTransactionNotFound
	}
	return tx, nil
}

func TestProcessTransfer(t *testing.T) {
	repo := newLedgerRepoStub()
	senderID := uuid.New()
	recipientID := uuid.New()
	repo.addWallet(senderID, 1111, 20000)
	repo.addWallet(recipientID, 2222, 0)

	publisher := &capturingPublisher{}
	service := NewService(repo, publisher, "wallet.events")

	resp, err := service.ProcessTransfer(context.Background(), senderID, domain.TransferRequest{
		WalletNumber: 2222,
		Amount:       5000,
	})
	if err != nil {
		t.Fatalf("ProcessTransfer returned error: %v", err)
	}
	if resp.Status != "success" {
		t.Fatalf("expected transfer status success, got %q", resp.Status)
	}

	params := repo.transferParams
	if params == nil {
		t.Fatal("expected TransferBetweenWallets to be called")
	}
	if params.Amount != 5000 {
		t.Fatalf("expected amount 5000, got %d", params.Amount)
	}
	if !strings.HasSuffix(params.DebitReference, "-out") || !strings.HasSuffix(params.CreditReference, "-in") {
		t.Fatalf("expected -out/-in reference suffixes, got %q and %q", params.DebitReference, params.CreditReference)
	}
	if strings.TrimSuffix(params.DebitReference, "-out") != strings.TrimSuffix(params.CreditReference, "-in") {
		t.Fatalf("expected both references to share one base, got %q and %q", params.DebitReference, params.CreditReference)
	}
	if len(publisher.routingKeys) != 1 || publisher.routingKeys[0] != "transfer.completed" {
		t.Fatalf("expected one transfer.completed event, got %v", publisher.routingKeys)
	}
}

func TestProcessTransfer_Rejections(t *testing.T) {
	repo := newLedgerRepoStub()
	senderID := uuid.New()
	repo.addWallet(senderID, 1111, 20000)

	service := NewService(repo, nil, "wallet.events")

	if _, err := service.ProcessTransfer(context.Background(), senderID, domain.TransferRequest{WalletNumber: 2222, Amount: 0}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := service.ProcessTransfer(context.Background(), senderID, domain.TransferRequest{WalletNumber: 1111, Amount: 100}); !errors.Is(err, ErrSelfTransfer) {
		t.Fatalf("expected ErrSelfTransfer, got %v", err)
	}
	if _, err := service.ProcessTransfer(context.Background(), senderID, domain.TransferRequest{WalletNumber: 9999, Amount: 100}); !errors.Is(err, store.ErrWalletNotFound) {
		t.Fatalf("expected ErrWalletNotFound, got %v", err)
	}
}

func TestProcessTransfer_InsufficientFundsSkipsEvent(t *testing.T) {
	repo := newLedgerRepoStub()
	senderID := uuid.New()
	recipientID := uuid.New()
	repo.addWallet(senderID, 1111, 100)
	repo.addWallet(recipientID, 2222, 0)
	repo.transferErr = store.ErrInsufficientFunds

	publisher := &capturingPublisher{}
	service := NewService(repo, publisher, "wallet.events")

	if _, err := service.ProcessTransfer(context.Background(), senderID, domain.TransferRequest{WalletNumber: 2222, Amount: 5000}); !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if len(publisher.routingKeys) != 0 {
		t.Fatalf("expected no events for a failed transfer, got %v", publisher.routingKeys)
	}
}

func TestGetDepositStatus_HidesOtherUsersReferences(t *testing.T) {
	repo := newLedgerRepoStub()
	ownerID := uuid.New()
	repo.txByReference["ps-ref-1"] = &domain.Transaction{
		Reference: "ps-ref-1",
		Status:    domain.TransactionStatusSuccess,
		Amount:    5000,
		UserID:    ownerID,
	}

	service := NewService(repo, nil, "wallet.events")

	resp, err := service.GetDepositStatus(context.Background(), ownerID, "ps-ref-1")
	if err != nil {
		t.Fatalf("GetDepositStatus returned error: %v", err)
	}
	if resp.Status != domain.TransactionStatusSuccess {
		t.Fatalf("expected success status, got %s", resp.Status)
	}

	if _, err := service.GetDepositStatus(context.Background(), uuid.New(), "ps-ref-1"); !errors.Is(err, store.ErrTransactionNotFound) {
		t.Fatalf("expected foreign reference to be reported as not found, got %v", err)
	}
}
