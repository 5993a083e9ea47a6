package domain

import (
	"time"

	"github.com/google/uuid"
)

// DepositSettledEvent is published to RabbitMQ when a pending deposit reaches a
// terminal state via the payment-gateway webhook.
type DepositSettledEvent struct {
	UserID    uuid.UUID         `json:"user_id"`
	WalletID  uuid.UUID         `json:"wallet_id"`
	Reference string            `json:"reference"`
	Amount    int64             `json:"amount"`
	Status    TransactionStatus `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
}

// TransferCompletedEvent is published to RabbitMQ after a wallet-to-wallet
// transfer commits.
type TransferCompletedEvent struct {
	SenderUserID    uuid.UUID `json:"sender_user_id"`
	RecipientUserID uuid.UUID `json:"recipient_user_id"`
	Amount          int64     `json:"amount"`
	DebitReference  string    `json:"debit_reference"`
	CreditReference string    `json:"credit_reference"`
	Timestamp       time.Time `json:"timestamp"`
}
