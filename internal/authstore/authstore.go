// Package authstore holds the set of credentials known to the cache: one
// per account, keyed by the account's subject id.
package authstore

import (
	"errors"

	"github.com/duskforge/vaultcache/internal/model"
)

// ErrNotFound is returned by GetSingle when no credential is stored
// for the requested account.
var ErrNotFound = errors.New("authstore: credential not found")

// Store is the contract every backend must satisfy. Implementations must
// be safe for concurrent use.
type Store interface {
	// Get returns every stored credential, keyed by account id.
	Get() (map[model.AccountID]model.Credential, error)

	// GetSingle returns the credential for one account, or ErrNotFound.
	GetSingle(id model.AccountID) (model.Credential, error)

	// Contains reports whether a credential is stored for id.
	Contains(id model.AccountID) (bool, error)

	// Insert stores or overwrites the credential for id.
	Insert(id model.AccountID, cred model.Credential) error

	// Remove deletes the credential for id. It is not an error to remove
	// an id that was never present.
	Remove(id model.AccountID) error
}
