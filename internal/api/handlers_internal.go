/**
 * @description
 * This file contains the HTTP handlers for the internal service-to-service
 * endpoints: wallet provisioning and cascading user deletion. These routes are
 * guarded by the shared internal key rather than user credentials and are not
 * reachable through the public surface.
 *
 * @dependencies
 * - encoding/json, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/domain, internal/store: Models and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/payvault/wallet-service/internal/domain"
	"github.com/payvault/wallet-service/internal/store"
)

type provisionWalletResponse struct {
	UserID       uuid.UUID `json:"user_id"`
	WalletID     uuid.UUID `json:"wallet_id"`
	WalletNumber int64     `json:"wallet_number"`
}

// ProvisionWalletHandler creates a user and their wallet on behalf of another
// service.
func (h *WalletHandlers) ProvisionWalletHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.ProvisionWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if req.Name == "" || req.Email == "" {
		h.writeError(w, http.StatusBadRequest, "Name and email are required")
		return
	}

	user, wallet, err := h.service.ProvisionWallet(r.Context(), req)
	if err != nil {
		if errors.Is(err, store.ErrWalletExists) {
			h.writeError(w, http.StatusConflict, "User already has a wallet")
			return
		}
		log.Printf("level=error component=api endpoint=provision_wallet msg=\"provisioning failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusCreated, provisionWalletResponse{
		UserID:       user.ID,
		WalletID:     wallet.ID,
		WalletNumber: wallet.WalletNumber,
	})
}

// DeleteUserHandler removes a user and all of their records.
func (h *WalletHandlers) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	if err := h.service.DeleteUser(r.Context(), userID); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			h.writeError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("level=error component=api endpoint=delete_user msg=\"deletion failed\" user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
