/**
 * @description
 * This file contains the API key lifecycle logic: creation, listing,
 * revocation, rollover, and secret verification.
 *
 * Key features:
 * - Secrets are shown exactly once at creation; only a bcrypt hash is stored.
 * - The key id is embedded in the secret itself, so verification is a single
 *   lookup plus one bcrypt comparison instead of a scan over every stored hash.
 * - A per-user cap on active keys bounds the verification surface.
 *
 * @dependencies
 * - crypto/rand, encoding/base64: Secret material generation.
 * - golang.org/x/crypto/bcrypt: Secret hashing and comparison.
 * - internal/domain, internal/store: Domain models and data access.
 */

package app

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/payvault/wallet-service/internal/domain"
	"github.com/payvault/wallet-service/internal/store"
)

// MaxActiveKeys is the per-user cap on concurrently active API keys.
const MaxActiveKeys = 5

const secretPrefix = "sk_live_"

var (
	ErrActiveKeyQuota = errors.New("active api key limit reached")
	ErrNotKeyOwner    = errors.New("api key belongs to another user")
	ErrKeyStillActive = errors.New("api key is still active")
	ErrInvalidAPIKey  = errors.New("invalid api key")
)

// KeyManager provides the API key lifecycle operations.
type KeyManager struct {
	repo              store.Repository
	defaultExpiryDays int
}

// NewKeyManager creates a new key manager instance.
func NewKeyManager(repo store.Repository, defaultExpiryDays int) *KeyManager {
	return &KeyManager{
		repo:              repo,
		defaultExpiryDays: defaultExpiryDays,
	}
}

// CreateKeyParams carries the caller's inputs for a new API key.
type CreateKeyParams struct {
	Name        string
	Permissions []string
	Expiry      string
}

// CreateKey mints a new API key for the user and returns the record together
// with the plaintext secret. The secret is never persisted and cannot be
// recovered afterwards.
func (m *KeyManager) CreateKey(ctx context.Context, userID uuid.UUID, params CreateKeyParams) (*domain.APIKey, string, error) {
	permissions, err := domain.NormalizePermissions(params.Permissions)
	if err != nil {
		return nil, "", err
	}

	expiry := params.Expiry
	if expiry == "" {
		expiry = fmt.Sprintf("%dD", m.defaultExpiryDays)
	}
	expiresAt, err := domain.ParseExpiry(expiry, time.Now().UTC())
	if err != nil {
		return nil, "", err
	}

	return m.mintKey(ctx, userID, params.Name, permissions, expiresAt)
}

// RolloverKey replaces an expired or revoked key with a fresh one carrying the
// same permissions. Rolling over a key that is still active is rejected so a
// user cannot silently extend a credential past its expiry.
func (m *KeyManager) RolloverKey(ctx context.Context, userID uuid.UUID, keyID uuid.UUID, expiry string) (*domain.APIKey, string, error) {
	oldKey, err := m.repo.FindAPIKeyByID(ctx, keyID)
	if err != nil {
		return nil, "", err
	}
	if oldKey.UserID != userID {
		return nil, "", ErrNotKeyOwner
	}
	if oldKey.ActiveAt(time.Now().UTC()) {
		return nil, "", ErrKeyStillActive
	}

	if expiry == "" {
		expiry = fmt.Sprintf("%dD", m.defaultExpiryDays)
	}
	expiresAt, err := domain.ParseExpiry(expiry, time.Now().UTC())
	if err != nil {
		return nil, "", err
	}

	name := oldKey.Name
	if !strings.HasSuffix(name, "-rollover") {
		name += "-rollover"
	}
	return m.mintKey(ctx, userID, name, oldKey.Permissions, expiresAt)
}

// ListKeys retrieves all of the user's API keys, including expired and revoked
// ones. Secret hashes never leave the store layer's record.
func (m *KeyManager) ListKeys(ctx context.Context, userID uuid.UUID) ([]domain.APIKey, error) {
	return m.repo.FindAPIKeysByUserID(ctx, userID)
}

// RevokeKey permanently disables one of the user's keys.
func (m *KeyManager) RevokeKey(ctx context.Context, userID uuid.UUID, keyID uuid.UUID) (*domain.APIKey, error) {
	key, err := m.repo.FindAPIKeyByID(ctx, keyID)
	if err != nil {
		return nil, err
	}
	if key.UserID != userID {
		return nil, ErrNotKeyOwner
	}
	revoked, err := m.repo.RevokeAPIKey(ctx, keyID)
	if err != nil {
		return nil, err
	}
	log.Printf("RevokeKey: Revoked api key %s for user %s", keyID, userID)
	return revoked, nil
}

// VerifySecret resolves a presented secret to its API key record. Malformed
// secrets, unknown ids, inactive keys, and hash mismatches all collapse into
// ErrInvalidAPIKey so callers cannot distinguish why verification failed.
func (m *KeyManager) VerifySecret(ctx context.Context, secret string) (*domain.APIKey, error) {
	keyID, ok := parseSecretKeyID(secret)
	if !ok {
		return nil, ErrInvalidAPIKey
	}

	key, err := m.repo.FindAPIKeyByID(ctx, keyID)
	if err != nil {
		if errors.Is(err, store.ErrAPIKeyNotFound) {
			return nil, ErrInvalidAPIKey
		}
		return nil, err
	}
	if !key.ActiveAt(time.Now().UTC()) {
		return nil, ErrInvalidAPIKey
	}
	if err := bcrypt.CompareHashAndPassword([]byte(key.SecretHash), []byte(secret)); err != nil {
		return nil, ErrInvalidAPIKey
	}
	return key, nil
}

// mintKey enforces the active-key quota, generates the secret, and persists the
// hashed record.
func (m *KeyManager) mintKey(ctx context.Context, userID uuid.UUID, name string, permissions []domain.Permission, expiresAt time.Time) (*domain.APIKey, string, error) {
	existing, err := m.repo.FindAPIKeysByUserID(ctx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list existing keys: %w", err)
	}
	now := time.Now().UTC()
	active := 0
	for _, k := range existing {
		if k.ActiveAt(now) {
			active++
		}
	}
	if active >= MaxActiveKeys {
		return nil, "", ErrActiveKeyQuota
	}

	keyID := uuid.New()
	secret, err := generateSecret(keyID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate secret: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash secret: %w", err)
	}

	key := &domain.APIKey{
		ID:          keyID,
		UserID:      userID,
		Name:        name,
		SecretHash:  string(hash),
		Permissions: permissions,
		ExpiresAt:   &expiresAt,
		Revoked:     false,
		CreatedAt:   now,
	}
	if err := m.repo.CreateAPIKey(ctx, key); err != nil {
		return nil, "", fmt.Errorf("failed to store api key: %w", err)
	}
	log.Printf("CreateKey: Minted api key %s (%s) for user %s, expires %s", keyID, name, userID, expiresAt.Format(time.RFC3339))
	return key, secret, nil
}

// generateSecret builds a secret of the form sk_live_<key id>_<random token>.
// The embedded id makes verification a direct lookup; the random token is what
// actually authenticates. The full secret stays under bcrypt's 72-byte input
// limit.
func generateSecret(keyID uuid.UUID) (string, error) {
	token := make([]byte, 16)
	if _, err := rand.Read(token); err != nil {
		return "", err
	}
	return secretPrefix + keyID.String() + "_" + base64.RawURLEncoding.EncodeToString(token), nil
}

// parseSecretKeyID extracts the embedded key id from a presented secret.
func parseSecretKeyID(secret string) (uuid.UUID, bool) {
	if !strings.HasPrefix(secret, secretPrefix) {
		return uuid.Nil, false
	}
	rest := strings.TrimPrefix(secret, secretPrefix)
	parts := strings.SplitN(rest, "_", 2)
	if len(parts) != 2 || parts[1] == "" {
		return uuid.Nil, false
	}
	keyID, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, false
	}
	return keyID, true
}
