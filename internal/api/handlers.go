/**
 * @description
 * This file contains the HTTP handlers for the wallet endpoints. Handlers are
 * responsible for parsing incoming requests, enforcing permission checks on the
 * authenticated identity, calling the appropriate methods on the application
 * services, and writing the HTTP response.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain, internal/store: Service logic, models, and custom errors.
 * - pkg/paystackclient: Gateway error detection.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/payvault/wallet-service/internal/app"
	"github.com/payvault/wallet-service/internal/domain"
	"github.com/payvault/wallet-service/internal/store"
	"github.com/payvault/wallet-service/pkg/paystackclient"
)

// WalletHandlers holds the application services that handlers will use.
type WalletHandlers struct {
	service     *app.Service
	processor   *app.WebhookProcessor
	keyManager  *app.KeyManager
	rateLimiter *app.RedisRateLimiter

	depositLimitPerMinute int
	webhookLimitPerMinute int
}

// NewWalletHandlers creates a new instance of WalletHandlers.
func NewWalletHandlers(service *app.Service, processor *app.WebhookProcessor, keyManager *app.KeyManager, limiter *app.RedisRateLimiter, depositLimit, webhookLimit int) *WalletHandlers {
	return &WalletHandlers{
		service:               service,
		processor:             processor,
		keyManager:            keyManager,
		rateLimiter:           limiter,
		depositLimitPerMinute: depositLimit,
		webhookLimitPerMinute: webhookLimit,
	}
}

// DepositHandler starts a deposit against the payment gateway.
func (h *WalletHandlers) DepositHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requirePermission(w, r, domain.PermissionDeposit)
	if !ok {
		return
	}
	if !h.consumeRateLimit(w, r, "deposit", identity.OwnerID().String(), h.depositLimitPerMinute) {
		return
	}

	var req domain.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=deposit outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	resp, err := h.processor.InitiateDeposit(r.Context(), identity.OwnerID(), req.Amount)
	if err != nil {
		log.Printf("level=warn component=api endpoint=deposit outcome=failed user_id=%s err=%v", identity.OwnerID(), err)
		var apiErr *paystackclient.APIError
		switch {
		case errors.Is(err, app.ErrInvalidAmount):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrUserNotFound), errors.Is(err, store.ErrWalletNotFound):
			h.writeError(w, http.StatusNotFound, "Wallet not found")
		case errors.Is(err, store.ErrDuplicateReference):
			h.writeError(w, http.StatusConflict, "Transaction reference already exists")
		case errors.As(err, &apiErr):
			h.writeError(w, http.StatusBadGateway, "Payment gateway error")
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	log.Printf("level=info component=api endpoint=deposit outcome=accepted user_id=%s reference=%s amount=%d", identity.OwnerID(), resp.Reference, req.Amount)
	h.writeJSON(w, http.StatusOK, resp)
}

// DepositStatusHandler reports the status of one of the caller's deposits.
func (h *WalletHandlers) DepositStatusHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requirePermission(w, r, domain.PermissionRead)
	if !ok {
		return
	}

	reference := chi.URLParam(r, "reference")
	resp, err := h.service.GetDepositStatus(r.Context(), identity.OwnerID(), reference)
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) {
			h.writeError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		log.Printf("level=error component=api endpoint=deposit_status msg=\"lookup failed\" reference=%s err=%v", reference, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// BalanceHandler returns the caller's wallet balance.
func (h *WalletHandlers) BalanceHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requirePermission(w, r, domain.PermissionRead)
	if !ok {
		return
	}

	resp, err := h.service.GetBalance(r.Context(), identity.OwnerID())
	if err != nil {
		if errors.Is(err, store.ErrWalletNotFound) {
			h.writeError(w, http.StatusNotFound, "Wallet not found")
			return
		}
		log.Printf("level=error component=api endpoint=balance msg=\"lookup failed\" user_id=%s err=%v", identity.OwnerID(), err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// TransferHandler moves funds to another wallet by wallet number.
func (h *WalletHandlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requirePermission(w, r, domain.PermissionTransfer)
	if !ok {
		return
	}

	var req domain.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=transfer outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	resp, err := h.service.ProcessTransfer(r.Context(), identity.OwnerID(), req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=transfer outcome=failed user_id=%s err=%v", identity.OwnerID(), err)
		switch {
		case errors.Is(err, store.ErrInsufficientFunds):
			h.writeError(w, http.StatusPaymentRequired, err.Error())
		case errors.Is(err, store.ErrWalletNotFound):
			h.writeError(w, http.StatusNotFound, "Recipient wallet not found")
		case errors.Is(err, app.ErrInvalidAmount), errors.Is(err, app.ErrSelfTransfer):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	log.Printf("level=info component=api endpoint=transfer outcome=completed user_id=%s wallet_number=%d amount=%d", identity.OwnerID(), req.WalletNumber, req.Amount)
	h.writeJSON(w, http.StatusOK, resp)
}

// TransactionsHandler returns the caller's transaction history.
func (h *WalletHandlers) TransactionsHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requirePermission(w, r, domain.PermissionRead)
	if !ok {
		return
	}

	resp, err := h.service.ListTransactions(r.Context(), identity.OwnerID())
	if err != nil {
		log.Printf("level=error component=api endpoint=transactions msg=\"lookup failed\" user_id=%s err=%v", identity.OwnerID(), err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// requirePermission loads the identity from the request context and checks the
// required permission. User identities pass every check; API keys only the
// permissions they were minted with.
func (h *WalletHandlers) requirePermission(w http.ResponseWriter, r *http.Request, permission domain.Permission) (domain.Identity, bool) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get identity from context")
		return nil, false
	}
	if !identity.Can(permission) {
		h.writeError(w, http.StatusForbidden, fmt.Sprintf("Permission %q required", permission))
		return nil, false
	}
	return identity, true
}

// consumeRateLimit applies the fixed-window limiter for the scope. Limiter
// errors fail open so a Redis outage degrades to unlimited rather than a full
// outage.
func (h *WalletHandlers) consumeRateLimit(w http.ResponseWriter, r *http.Request, scope, subject string, limit int) bool {
	count, retryAfter, err := h.rateLimiter.ConsumeRateLimit(r.Context(), scope, subject, limit, time.Minute)
	if err != nil {
		log.Printf("level=warn component=api msg=\"rate limiter unavailable\" scope=%s err=%v", scope, err)
		return true
	}
	if limit > 0 && count > limit {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		h.writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
		return false
	}
	return true
}

// clientAddr extracts the remote host without the port for per-source limiting.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeJSON is a helper for writing JSON responses.
func (h *WalletHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *WalletHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
