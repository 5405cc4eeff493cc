// Package model holds the domain types shared across vaultcache's core
// subsystems: account and character identifiers, the upstream credential,
// and the opaque upstream documents (summary, store, master data).
package model

import "github.com/google/uuid"

// AccountID identifies an end-user account with the upstream service.
type AccountID = uuid.UUID

// CharacterID identifies a character belonging to an account.
type CharacterID = uuid.UUID
