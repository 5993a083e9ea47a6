/**
 * @description
 * This file defines the API-key credential model and its closed permission
 * vocabulary. Permissions gate which wallet operations a key may invoke;
 * membership and non-emptiness are validated at the boundary so downstream
 * code can trust the set.
 */

package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Permission is one capability tag attached to an API key.
type Permission string

const (
	PermissionDeposit  Permission = "deposit"
	PermissionRead     Permission = "read"
	PermissionTransfer Permission = "transfer"
)

var (
	ErrUnknownPermission = errors.New("unknown permission")
	ErrEmptyPermissions  = errors.New("permissions must be provided")
)

// ParsePermission validates a raw permission string against the closed set.
func ParsePermission(raw string) (Permission, error) {
	switch Permission(raw) {
	case PermissionDeposit, PermissionRead, PermissionTransfer:
		return Permission(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPermission, raw)
}

// NormalizePermissions validates every member and removes duplicates while
// preserving the caller's order. The result is never empty on success.
func NormalizePermissions(raw []string) ([]Permission, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyPermissions
	}
	seen := make(map[Permission]struct{}, len(raw))
	perms := make([]Permission, 0, len(raw))
	for _, r := range raw {
		p, err := ParsePermission(r)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		perms = append(perms, p)
	}
	return perms, nil
}

// APIKey is a scoped credential owned by one user. Only an irreversible hash of
// the generated secret is ever stored; the plaintext is returned once at
// creation and never again.
type APIKey struct {
	ID          uuid.UUID    `json:"id"`
	UserID      uuid.UUID    `json:"user_id"`
	Name        string       `json:"name"`
	SecretHash  string       `json:"-"`
	Permissions []Permission `json:"permissions"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty"`
	Revoked     bool         `json:"revoked"`
	CreatedAt   time.Time    `json:"created_at"`
}

// HasPermission reports whether the key carries the given capability.
func (k *APIKey) HasPermission(p Permission) bool {
	for _, have := range k.Permissions {
		if have == p {
			return true
		}
	}
	return false
}

// ActiveAt reports key liveness at the given instant: a key is active unless it
// has been revoked or its expiry has passed. Keys without an expiry stay active
// until revoked.
func (k *APIKey) ActiveAt(now time.Time) bool {
	if k.Revoked {
		return false
	}
	if k.ExpiresAt == nil {
		return true
	}
	return k.ExpiresAt.After(now)
}
