/**
 * @description
 * This file defines the core domain models for the wallet-service: users, wallets,
 * transactions, and the DTOs used by the HTTP layer. These structs map directly to
 * the database tables and API payloads.
 *
 * @notes
 * - Amounts are stored as `int64` in the smallest currency unit (kobo), which avoids
 *   floating-point inaccuracies with financial data.
 * - A Transaction is immutable once created except for its status, which may only
 *   move pending -> success or pending -> failed.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypeTransfer   TransactionType = "transfer"
)

// TransactionStatus is the lifecycle state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusFailed  TransactionStatus = "failed"
)

// Terminal reports whether the status is absorbing; terminal transactions never
// change again, which is what makes webhook redelivery safe.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionStatusSuccess || s == TransactionStatusFailed
}

// User represents an account holder. Authentication (OAuth login, JWT issuance)
// happens upstream; this service only needs the identity and contact email.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Wallet is a user's balance-holding account, addressable by a globally-unique
// wallet number. Every user owns exactly one wallet; the invariant is enforced
// at provisioning time, not by the schema.
type Wallet struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	WalletNumber int64     `json:"wallet_number"`
	Balance      int64     `json:"balance"` // in kobo
}

// Transaction is one row of the append-only ledger log.
type Transaction struct {
	ID               uuid.UUID         `json:"id"`
	Type             TransactionType   `json:"type"`
	Amount           int64             `json:"amount"` // in kobo
	Reference        string            `json:"reference"`
	Status           TransactionStatus `json:"status"`
	AuthorizationURL *string           `json:"authorization_url,omitempty"`
	WalletID         uuid.UUID         `json:"wallet_id"`
	UserID           uuid.UUID         `json:"user_id"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// DepositRequest is the DTO for initiating a deposit through the payment gateway.
type DepositRequest struct {
	Amount int64 `json:"amount"` // in kobo
}

// DepositInitResponse carries the gateway checkout details back to the caller.
type DepositInitResponse struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
}

// DepositStatusResponse reports the current state of a deposit by reference.
type DepositStatusResponse struct {
	Reference string            `json:"reference"`
	Status    TransactionStatus `json:"status"`
	Amount    int64             `json:"amount"`
}

// BalanceResponse is the wallet balance projection.
type BalanceResponse struct {
	WalletNumber int64 `json:"wallet_number"`
	Balance      int64 `json:"balance"`
}

// TransferRequest is the DTO for wallet-to-wallet transfers.
type TransferRequest struct {
	WalletNumber int64 `json:"wallet_number"`
	Amount       int64 `json:"amount"` // in kobo
}

// TransferResponse acknowledges a completed transfer.
type TransferResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// TransactionSummary is the trimmed transaction view exposed on listings.
type TransactionSummary struct {
	Reference string            `json:"reference"`
	Type      TransactionType   `json:"type"`
	Amount    int64             `json:"amount"`
	Status    TransactionStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}

// TransactionListResponse wraps a user's transaction history.
type TransactionListResponse struct {
	Transactions []TransactionSummary `json:"transactions"`
}

// ProvisionWalletRequest is the internal DTO for creating a user with their wallet.
type ProvisionWalletRequest struct {
	UserID *uuid.UUID `json:"user_id,omitempty"`
	Name   string     `json:"name"`
	Email  string     `json:"email"`
}
