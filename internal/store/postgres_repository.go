/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the SQL needed for users, wallets, the transaction ledger, and
 * API keys.
 *
 * Concurrency notes:
 * - Every balance mutation runs inside a database transaction and takes a
 *   `FOR UPDATE` row lock on the affected wallet row(s), so concurrent requests
 *   against the same wallet serialize instead of losing updates.
 * - Wallet-to-wallet transfers lock both rows in ascending id order; two
 *   opposing transfers can therefore never deadlock each other.
 * - SettleDeposit performs the terminal-state check, the credit, and the status
 *   write inside one transaction, which is what makes concurrent webhook
 *   redeliveries unable to double-credit.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver.
 * - internal/domain: Domain models used for data transfer.
 */

package store

import (
	"bytes"
	"context"
	"errors"
	"math/rand"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/payvault/wallet-service/internal/domain"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrWalletExists        = errors.New("user already has a wallet")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrDuplicateReference  = errors.New("transaction reference already exists")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrAPIKeyNotFound      = errors.New("api key not found")
)

const uniqueViolation = "23505"

// PostgresRepository is the concrete Repository implementation for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const transactionColumns = `id, type, amount, reference, status, authorization_url, wallet_id, user_id, created_at, updated_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := row.Scan(
		&tx.ID, &tx.Type, &tx.Amount, &tx.Reference, &tx.Status,
		&tx.AuthorizationURL, &tx.WalletID, &tx.UserID, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// CreateUserWithWallet provisions a user together with their single wallet.
// The one-wallet-per-user invariant is enforced here rather than by a schema
// constraint.
func (r *PostgresRepository) CreateUserWithWallet(ctx context.Context, user *domain.User) (*domain.Wallet, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM wallets WHERE user_id = $1)", user.ID).Scan(&exists); err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrWalletExists
	}

	if err := tx.QueryRow(ctx, `
		INSERT INTO users (id, name, email)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email
		RETURNING created_at
	`, user.ID, user.Name, user.Email).Scan(&user.CreatedAt); err != nil {
		return nil, err
	}

	wallet := &domain.Wallet{ID: uuid.New(), UserID: user.ID}
	for attempt := 0; ; attempt++ {
		wallet.WalletNumber = 1_000_000_000 + rand.Int63n(9_000_000_000)
		_, err := tx.Exec(ctx,
			"INSERT INTO wallets (id, user_id, wallet_number, balance) VALUES ($1, $2, $3, 0)",
			wallet.ID, wallet.UserID, wallet.WalletNumber,
		)
		if err == nil {
			break
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && attempt < 5 {
			continue
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return wallet, nil
}

// FindUserByID retrieves a user by their internal id.
func (r *PostgresRepository) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	var user domain.User
	err := r.db.QueryRow(ctx,
		"SELECT id, name, email, created_at FROM users WHERE id = $1", userID,
	).Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindWalletByUserID retrieves a user's wallet.
func (r *PostgresRepository) FindWalletByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	var wallet domain.Wallet
	err := r.db.QueryRow(ctx,
		"SELECT id, user_id, wallet_number, balance FROM wallets WHERE user_id = $1", userID,
	).Scan(&wallet.ID, &wallet.UserID, &wallet.WalletNumber, &wallet.Balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

// FindWalletByNumber retrieves a wallet by its globally-unique wallet number.
func (r *PostgresRepository) FindWalletByNumber(ctx context.Context, walletNumber int64) (*domain.Wallet, error) {
	var wallet domain.Wallet
	err := r.db.QueryRow(ctx,
		"SELECT id, user_id, wallet_number, balance FROM wallets WHERE wallet_number = $1", walletNumber,
	).Scan(&wallet.ID, &wallet.UserID, &wallet.WalletNumber, &wallet.Balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

// DeleteUserCascade removes a user and everything they own. The cascade is an
// explicit application-level invariant, not a schema-level ON DELETE rule.
func (r *PostgresRepository) DeleteUserCascade(ctx context.Context, userID uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM transactions WHERE user_id = $1", userID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, "DELETE FROM api_keys WHERE user_id = $1", userID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, "DELETE FROM wallets WHERE user_id = $1", userID); err != nil {
		return err
	}
	result, err := tx.Exec(ctx, "DELETE FROM users WHERE id = $1", userID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return tx.Commit(ctx)
}

// CreditWallet performs an atomic credit operation on a wallet.
func (r *PostgresRepository) CreditWallet(ctx context.Context, walletID uuid.UUID, amount int64) (*domain.Wallet, error) {
	var wallet domain.Wallet
	err := r.db.QueryRow(ctx, `
		UPDATE wallets SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING id, user_id, wallet_number, balance
	`, amount, walletID).Scan(&wallet.ID, &wallet.UserID, &wallet.WalletNumber, &wallet.Balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

// DebitWallet performs an atomic debit operation on a wallet. The read-check-
// write runs under a row lock so concurrent debits cannot both pass the funds
// check against a stale balance.
func (r *PostgresRepository) DebitWallet(ctx context.Context, walletID uuid.UUID, amount int64) (*domain.Wallet, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx, "SELECT balance FROM wallets WHERE id = $1 FOR UPDATE", walletID).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	if balance < amount {
		return nil, ErrInsufficientFunds
	}

	var wallet domain.Wallet
	err = tx.QueryRow(ctx, `
		UPDATE wallets SET balance = balance - $1, updated_at = NOW()
		WHERE id = $2
		RETURNING id, user_id, wallet_number, balance
	`, amount, walletID).Scan(&wallet.ID, &wallet.UserID, &wallet.WalletNumber, &wallet.Balance)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &wallet, nil
}

// TransferBetweenWallets debits the sender, credits the recipient, and appends
// one success ledger row per side, all in a single database transaction. A
// failure at any step rolls the whole transfer back.
func (r *PostgresRepository) TransferBetweenWallets(ctx context.Context, params TransferParams) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Lock both wallet rows in ascending id order so concurrent opposing
	// transfers cannot deadlock.
	lockOrder := []uuid.UUID{params.SenderWalletID, params.RecipientWalletID}
	if bytes.Compare(lockOrder[1][:], lockOrder[0][:]) < 0 {
		lockOrder[0], lockOrder[1] = lockOrder[1], lockOrder[0]
	}

	type lockedWallet struct {
		balance int64
		userID  uuid.UUID
	}
	locked := make(map[uuid.UUID]lockedWallet, 2)
	for _, id := range lockOrder {
		if _, done := locked[id]; done {
			continue
		}
		var lw lockedWallet
		err := tx.QueryRow(ctx, "SELECT balance, user_id FROM wallets WHERE id = $1 FOR UPDATE", id).Scan(&lw.balance, &lw.userID)
		if err != nil {
			if err == pgx.ErrNoRows {
				return ErrWalletNotFound
			}
			return err
		}
		locked[id] = lw
	}

	if locked[params.SenderWalletID].balance < params.Amount {
		return ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx,
		"UPDATE wallets SET balance = balance - $1, updated_at = NOW() WHERE id = $2",
		params.Amount, params.SenderWalletID,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		"UPDATE wallets SET balance = balance + $1, updated_at = NOW() WHERE id = $2",
		params.Amount, params.RecipientWalletID,
	); err != nil {
		return err
	}

	insert := `
		INSERT INTO transactions (id, type, amount, reference, status, wallet_id, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := tx.Exec(ctx, insert,
		uuid.New(), domain.TransactionTypeTransfer, params.Amount, params.DebitReference,
		domain.TransactionStatusSuccess, params.SenderWalletID, locked[params.SenderWalletID].userID,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, insert,
		uuid.New(), domain.TransactionTypeTransfer, params.Amount, params.CreditReference,
		domain.TransactionStatusSuccess, params.RecipientWalletID, locked[params.RecipientWalletID].userID,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// CreateTransaction inserts a new ledger row. A duplicate reference surfaces as
// ErrDuplicateReference.
func (r *PostgresRepository) CreateTransaction(ctx context.Context, txRecord *domain.Transaction) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO transactions (id, type, amount, reference, status, authorization_url, wallet_id, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`,
		txRecord.ID, txRecord.Type, txRecord.Amount, txRecord.Reference, txRecord.Status,
		txRecord.AuthorizationURL, txRecord.WalletID, txRecord.UserID,
	).Scan(&txRecord.CreatedAt, &txRecord.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateReference
		}
		return err
	}
	return nil
}

// FindTransactionByReference retrieves one ledger row by its unique reference.
func (r *PostgresRepository) FindTransactionByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	tx, err := scanTransaction(r.db.QueryRow(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE reference = $1", reference,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return tx, nil
}

// FindTransactionsByUserID retrieves a user's transaction history, newest first.
func (r *PostgresRepository) FindTransactionsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE user_id = $1 ORDER BY created_at DESC", userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		err := rows.Scan(
			&tx.ID, &tx.Type, &tx.Amount, &tx.Reference, &tx.Status,
			&tx.AuthorizationURL, &tx.WalletID, &tx.UserID, &tx.CreatedAt, &tx.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

// SettleDeposit applies a deposit outcome idempotently. The pending row is
// locked, re-checked for terminality, and, on success, the wallet credit and
// the status write commit together. Already-terminal rows are left untouched
// and reported with applied=false.
func (r *PostgresRepository) SettleDeposit(ctx context.Context, reference string, succeeded bool) (*domain.Transaction, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	record, err := scanTransaction(tx.QueryRow(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE reference = $1 FOR UPDATE", reference,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, ErrTransactionNotFound
		}
		return nil, false, err
	}

	if record.Status.Terminal() {
		return record, false, tx.Commit(ctx)
	}

	newStatus := domain.TransactionStatusFailed
	if succeeded {
		result, err := tx.Exec(ctx,
			"UPDATE wallets SET balance = balance + $1, updated_at = NOW() WHERE id = $2",
			record.Amount, record.WalletID,
		)
		if err != nil {
			return nil, false, err
		}
		if result.RowsAffected() == 0 {
			// Wallet is gone; the deposit cannot be applied anywhere.
			newStatus = domain.TransactionStatusFailed
		} else {
			newStatus = domain.TransactionStatusSuccess
		}
	}

	if err := tx.QueryRow(ctx,
		"UPDATE transactions SET status = $1, updated_at = NOW() WHERE id = $2 RETURNING updated_at",
		newStatus, record.ID,
	).Scan(&record.UpdatedAt); err != nil {
		return nil, false, err
	}
	record.Status = newStatus

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return record, true, nil
}

// CreateAPIKey inserts a new API key record.
func (r *PostgresRepository) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO api_keys (id, user_id, name, secret_hash, permissions, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		key.ID, key.UserID, key.Name, key.SecretHash, permissionStrings(key.Permissions),
		key.ExpiresAt, key.Revoked, key.CreatedAt,
	)
	return err
}

// FindAPIKeyByID retrieves one API key by id.
func (r *PostgresRepository) FindAPIKeyByID(ctx context.Context, keyID uuid.UUID) (*domain.APIKey, error) {
	key, err := scanAPIKey(r.db.QueryRow(ctx,
		"SELECT "+apiKeyColumns+" FROM api_keys WHERE id = $1", keyID,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAPIKeyNotFound
		}
		return nil, err
	}
	return key, nil
}

// FindAPIKeysByUserID retrieves all of a user's API keys, oldest first.
func (r *PostgresRepository) FindAPIKeysByUserID(ctx context.Context, userID uuid.UUID) ([]domain.APIKey, error) {
	rows, err := r.db.Query(ctx,
		"SELECT "+apiKeyColumns+" FROM api_keys WHERE user_id = $1 ORDER BY created_at ASC", userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []domain.APIKey
	for rows.Next() {
		var key domain.APIKey
		var perms []string
		err := rows.Scan(
			&key.ID, &key.UserID, &key.Name, &key.SecretHash, &perms,
			&key.ExpiresAt, &key.Revoked, &key.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		key.Permissions = parsePermissions(perms)
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// RevokeAPIKey flags a key as revoked. Revocation is irreversible and
// idempotent in effect.
func (r *PostgresRepository) RevokeAPIKey(ctx context.Context, keyID uuid.UUID) (*domain.APIKey, error) {
	key, err := scanAPIKey(r.db.QueryRow(ctx, `
		UPDATE api_keys SET revoked = true
		WHERE id = $1
		RETURNING `+apiKeyColumns,
		keyID,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAPIKeyNotFound
		}
		return nil, err
	}
	return key, nil
}

const apiKeyColumns = `id, user_id, name, secret_hash, permissions, expires_at, revoked, created_at`

func scanAPIKey(row pgx.Row) (*domain.APIKey, error) {
	var key domain.APIKey
	var perms []string
	err := row.Scan(
		&key.ID, &key.UserID, &key.Name, &key.SecretHash, &perms,
		&key.ExpiresAt, &key.Revoked, &key.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	key.Permissions = parsePermissions(perms)
	return &key, nil
}

func permissionStrings(perms []domain.Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

func parsePermissions(raw []string) []domain.Permission {
	out := make([]domain.Permission, len(raw))
	for i, r := range raw {
		out[i] = domain.Permission(r)
	}
	return out
}
