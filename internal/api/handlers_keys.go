/**
 * @description
 * This file contains the HTTP handlers for the API key lifecycle endpoints.
 * Key management is reserved for user identities: requests authenticated with
 * an API key are rejected, so a leaked key can never mint or revoke other keys.
 *
 * @dependencies
 * - encoding/json, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain, internal/store: Service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/payvault/wallet-service/internal/app"
	"github.com/payvault/wallet-service/internal/domain"
	"github.com/payvault/wallet-service/internal/store"
)

type createKeyRequest struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	Expiry      string   `json:"expiry,omitempty"`
}

type rolloverKeyRequest struct {
	ExpiredKeyID string `json:"expired_key_id"`
	Expiry       string `json:"expiry,omitempty"`
}

// createdKeyResponse carries the one-time plaintext secret alongside the key
// record. The secret is never returned by any other endpoint.
type createdKeyResponse struct {
	domain.APIKey
	Secret string `json:"api_key"`
}

type listKeysResponse struct {
	Keys []domain.APIKey `json:"keys"`
}

// CreateKeyHandler mints a new API key for the authenticated user.
func (h *WalletHandlers) CreateKeyHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserIdentity(w, r)
	if !ok {
		return
	}

	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "Key name is required")
		return
	}

	key, secret, err := h.keyManager.CreateKey(r.Context(), userID, app.CreateKeyParams{
		Name:        req.Name,
		Permissions: req.Permissions,
		Expiry:      req.Expiry,
	})
	if err != nil {
		h.writeKeyError(w, err)
		return
	}

	log.Printf("level=info component=api endpoint=create_key outcome=created user_id=%s key_id=%s", userID, key.ID)
	h.writeJSON(w, http.StatusCreated, createdKeyResponse{APIKey: *key, Secret: secret})
}

// RolloverKeyHandler replaces an expired or revoked key with a fresh one.
func (h *WalletHandlers) RolloverKeyHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserIdentity(w, r)
	if !ok {
		return
	}
	// An omitted expiry means the default; the expired key id is mandatory.
	var req rolloverKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	keyID, err := uuid.Parse(req.ExpiredKeyID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid expired_key_id")
		return
	}

	key, secret, err := h.keyManager.RolloverKey(r.Context(), userID, keyID, req.Expiry)
	if err != nil {
		h.writeKeyError(w, err)
		return
	}

	log.Printf("level=info component=api endpoint=rollover_key outcome=created user_id=%s old_key_id=%s key_id=%s", userID, keyID, key.ID)
	h.writeJSON(w, http.StatusCreated, createdKeyResponse{APIKey: *key, Secret: secret})
}

// ListKeysHandler returns all of the user's keys without their secrets.
func (h *WalletHandlers) ListKeysHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserIdentity(w, r)
	if !ok {
		return
	}

	keys, err := h.keyManager.ListKeys(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_keys msg=\"lookup failed\" user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if keys == nil {
		keys = []domain.APIKey{}
	}
	h.writeJSON(w, http.StatusOK, listKeysResponse{Keys: keys})
}

// RevokeKeyHandler permanently disables one of the user's keys.
func (h *WalletHandlers) RevokeKeyHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserIdentity(w, r)
	if !ok {
		return
	}
	keyID, err := uuid.Parse(chi.URLParam(r, "keyID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid key ID")
		return
	}

	key, err := h.keyManager.RevokeKey(r.Context(), userID, keyID)
	if err != nil {
		h.writeKeyError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, key)
}

// requireUserIdentity restricts an endpoint to JWT-authenticated users. API key
// identities get a 403 regardless of their permissions.
func (h *WalletHandlers) requireUserIdentity(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get identity from context")
		return uuid.Nil, false
	}
	if _, isUser := identity.(domain.UserIdentity); !isUser {
		h.writeError(w, http.StatusForbidden, "API keys cannot manage keys")
		return uuid.Nil, false
	}
	return identity.OwnerID(), true
}

// writeKeyError maps key manager failures to HTTP statuses.
func (h *WalletHandlers) writeKeyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyPermissions),
		errors.Is(err, domain.ErrUnknownPermission),
		errors.Is(err, domain.ErrInvalidExpiryFormat):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrActiveKeyQuota), errors.Is(err, app.ErrKeyStillActive):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrNotKeyOwner):
		h.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrAPIKeyNotFound):
		h.writeError(w, http.StatusNotFound, "API key not found")
	default:
		log.Printf("level=error component=api msg=\"key operation failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
