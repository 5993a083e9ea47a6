package domain

import "github.com/google/uuid"

// Identity is the resolved caller of a request: either a fully authenticated
// user or a scoped API key. Handlers check permissions through this interface
// without probing the concrete type.
type Identity interface {
	// OwnerID is the id of the user whose wallet the caller operates on.
	OwnerID() uuid.UUID
	// Can reports whether the caller holds the given permission.
	Can(p Permission) bool
}

// UserIdentity is a caller authenticated with a bearer token. Users implicitly
// hold every permission.
type UserIdentity struct {
	ID uuid.UUID
}

func (u UserIdentity) OwnerID() uuid.UUID { return u.ID }

func (UserIdentity) Can(Permission) bool { return true }

// APIKeyIdentity is a caller authenticated with an API-key secret, restricted
// to the key's stored permission set.
type APIKeyIdentity struct {
	Key *APIKey
}

func (a APIKeyIdentity) OwnerID() uuid.UUID { return a.Key.UserID }

func (a APIKeyIdentity) Can(p Permission) bool { return a.Key.HasPermission(p) }
