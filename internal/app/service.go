/**
 * @description
 * This file contains the core business logic for the wallet service. The `Service`
 * struct orchestrates all money movement against the ledger, coordinating between
 * the database repository and the message broker.
 *
 * Key features:
 * - Implements the main use cases: wallet provisioning, balance reads,
 *   wallet-to-wallet transfers, and transaction history.
 * - Ensures transactional integrity by delegating balance mutations to the
 *   repository, which runs them under row locks.
 * - Publishes events to RabbitMQ for asynchronous processing by other services.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/rabbitmq: For event publishing.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/payvault/wallet-service/internal/domain"
	"github.com/payvault/wallet-service/internal/store"
	"github.com/payvault/wallet-service/pkg/rabbitmq"
)

var (
	ErrInvalidAmount = errors.New("amount must be a positive integer")
	ErrSelfTransfer  = errors.New("cannot transfer to own wallet")
)

// Service provides the core business logic for the wallet ledger.
type Service struct {
	repo          store.Repository
	eventProducer rabbitmq.Publisher
	eventExchange string
}

// NewService creates a new wallet service instance.
func NewService(repo store.Repository, producer rabbitmq.Publisher, eventExchange string) *Service {
	return &Service{
		repo:          repo,
		eventProducer: producer,
		eventExchange: eventExchange,
	}
}

// ProvisionWallet creates a user record together with their zero-balance wallet.
// A caller-supplied user id is honored so upstream services can keep their own
// identifiers; otherwise a fresh one is generated.
func (s *Service) ProvisionWallet(ctx context.Context, req domain.ProvisionWalletRequest) (*domain.User, *domain.Wallet, error) {
	user := &domain.User{
		ID:    uuid.New(),
		Name:  req.Name,
		Email: req.Email,
	}
	if req.UserID != nil {
		user.ID = *req.UserID
	}

	wallet, err := s.repo.CreateUserWithWallet(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to provision wallet: %w", err)
	}
	log.Printf("ProvisionWallet: Created wallet %s (number %d) for user %s", wallet.ID, wallet.WalletNumber, user.ID)
	return user, wallet, nil
}

// DeleteUser removes a user and all of their wallet, ledger, and credential data.
func (s *Service) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.DeleteUserCascade(ctx, userID); err != nil {
		return err
	}
	log.Printf("DeleteUser: Removed user %s and all associated records", userID)
	return nil
}

// GetBalance retrieves the current balance for a user's wallet.
func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (*domain.BalanceResponse, error) {
	wallet, err := s.repo.FindWalletByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &domain.BalanceResponse{
		WalletNumber: wallet.WalletNumber,
		Balance:      wallet.Balance,
	}, nil
}

// ProcessTransfer moves funds from the sender's wallet to the wallet identified
// by its wallet number. Both ledger rows are written atomically with the balance
// updates, so a transfer either fully happens or leaves no trace.
func (s *Service) ProcessTransfer(ctx context.Context, senderID uuid.UUID, req domain.TransferRequest) (*domain.TransferResponse, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	senderWallet, err := s.repo.FindWalletByUserID(ctx, senderID)
	if err != nil {
		return nil, fmt.Errorf("failed to find sender wallet: %w", err)
	}
	recipientWallet, err := s.repo.FindWalletByNumber(ctx, req.WalletNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to find recipient wallet: %w", err)
	}
	if senderWallet.ID == recipientWallet.ID {
		return nil, ErrSelfTransfer
	}

	baseRef := "tx-" + uuid.New().String()
	params := store.TransferParams{
		SenderWalletID:    senderWallet.ID,
		RecipientWalletID: recipientWallet.ID,
		Amount:            req.Amount,
		DebitReference:    baseRef + "-out",
		CreditReference:   baseRef + "-in",
	}
	if err := s.repo.TransferBetweenWallets(ctx, params); err != nil {
		return nil, err
	}
	log.Printf("ProcessTransfer: Moved %d from wallet %s to wallet %s", req.Amount, senderWallet.ID, recipientWallet.ID)

	s.publishEvent(ctx, "transfer.completed", domain.TransferCompletedEvent{
		SenderUserID:    senderWallet.UserID,
		RecipientUserID: recipientWallet.UserID,
		Amount:          req.Amount,
		DebitReference:  params.DebitReference,
		CreditReference: params.CreditReference,
		Timestamp:       time.Now().UTC(),
	})

	return &domain.TransferResponse{
		Status:  "success",
		Message: "transfer completed",
	}, nil
}

// GetDepositStatus retrieves the status of one of the caller's deposits by its
// reference. References belonging to other users are reported as not found.
func (s *Service) GetDepositStatus(ctx context.Context, userID uuid.UUID, reference string) (*domain.DepositStatusResponse, error) {
	txRecord, err := s.repo.FindTransactionByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if txRecord.UserID != userID {
		return nil, store.ErrTransactionNotFound
	}
	return &domain.DepositStatusResponse{
		Reference: txRecord.Reference,
		Status:    txRecord.Status,
		Amount:    txRecord.Amount,
	}, nil
}

// ListTransactions retrieves the caller's full transaction history, newest first.
func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID) (*domain.TransactionListResponse, error) {
	transactions, err := s.repo.FindTransactionsByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.TransactionSummary, 0, len(transactions))
	for _, tx := range transactions {
		summaries = append(summaries, domain.TransactionSummary{
			Reference: tx.Reference,
			Type:      tx.Type,
			Amount:    tx.Amount,
			Status:    tx.Status,
			CreatedAt: tx.CreatedAt,
		})
	}
	return &domain.TransactionListResponse{Transactions: summaries}, nil
}

// publishEvent sends an event to the broker. Publish failures are logged and
// never surfaced; the ledger is the source of truth, events are best-effort.
func (s *Service) publishEvent(ctx context.Context, routingKey string, payload interface{}) {
	if s.eventProducer == nil {
		return
	}
	if err := s.eventProducer.Publish(ctx, s.eventExchange, routingKey, payload); err != nil {
		log.Printf("WARN: Failed to publish %s event: %v", routingKey, err)
	}
}
