/**
 * @description
 * This file defines the `Repository` interface, the contract for all data access
 * the wallet-service needs. Keeping the interface separate from the PostgreSQL
 * implementation decouples the business logic from the database and lets tests
 * substitute lightweight stubs.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/payvault/wallet-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// User and wallet methods
	CreateUserWithWallet(ctx context.Context, user *domain.User) (*domain.Wallet, error)
	FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	FindWalletByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	FindWalletByNumber(ctx context.Context, walletNumber int64) (*domain.Wallet, error)
	// DeleteUserCascade removes the user together with their wallet,
	// transactions, and API keys in one transaction.
	DeleteUserCascade(ctx context.Context, userID uuid.UUID) error

	// Ledger methods. Each balance mutation is one atomic unit with row-level
	// locking on the affected wallet row(s).
	CreditWallet(ctx context.Context, walletID uuid.UUID, amount int64) (*domain.Wallet, error)
	DebitWallet(ctx context.Context, walletID uuid.UUID, amount int64) (*domain.Wallet, error)
	TransferBetweenWallets(ctx context.Context, params TransferParams) error
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	FindTransactionByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	FindTransactionsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error)
	// SettleDeposit moves a pending deposit to its terminal state and, on
	// success, credits the linked wallet inside the same transaction. The
	// returned bool is false when the transaction was already terminal and
	// nothing was applied.
	SettleDeposit(ctx context.Context, reference string, succeeded bool) (*domain.Transaction, bool, error)

	// API key methods
	CreateAPIKey(ctx context.Context, key *domain.APIKey) error
	FindAPIKeyByID(ctx context.Context, keyID uuid.UUID) (*domain.APIKey, error)
	FindAPIKeysByUserID(ctx context.Context, userID uuid.UUID) ([]domain.APIKey, error)
	RevokeAPIKey(ctx context.Context, keyID uuid.UUID) (*domain.APIKey, error)
}

// TransferParams carries everything a wallet-to-wallet transfer commits
// atomically: both balance mutations and the two ledger rows.
type TransferParams struct {
	SenderWalletID    uuid.UUID
	RecipientWalletID uuid.UUID
	Amount            int64
	DebitReference    string
	CreditReference   string
}
