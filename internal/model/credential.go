package model

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// RefreshBuffer is the safety margin subtracted from a credential's expiry
// when computing its next refresh deadline.
const RefreshBuffer = 5 * time.Minute

// Credential is the bag of tokens returned by the upstream auth service.
// AccessToken and RefreshToken are sensitive and must never be logged in
// the clear — see LogValue.
type Credential struct {
	AccessToken  string `validate:"required"`
	RefreshToken string `validate:"required"`
	AccountName  string
	Sub          AccountID
	ExpiresIn    time.Duration `validate:"gt=0"`
	RefreshAt    *time.Time
}

// credentialWire is the JSON shape exchanged with both the upstream API and
// the PUT /auth/:id ingestion endpoint: PascalCase keys, ExpiresIn in
// seconds, RefreshAt as an optional ms-since-epoch integer.
type credentialWire struct {
	AccessToken  string `json:"AccessToken"`
	RefreshToken string `json:"RefreshToken"`
	AccountName  string `json:"AccountName"`
	Sub          string `json:"Sub"`
	ExpiresIn    int64  `json:"ExpiresIn"`
	RefreshAt    *int64 `json:"RefreshAt,omitempty"`
}

// MarshalJSON encodes the credential in the upstream wire format.
func (c Credential) MarshalJSON() ([]byte, error) {
	w := credentialWire{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		AccountName:  c.AccountName,
		Sub:          c.Sub.String(),
		ExpiresIn:    int64(c.ExpiresIn / time.Second),
	}
	if c.RefreshAt != nil {
		ms := c.RefreshAt.UnixMilli()
		w.RefreshAt = &ms
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a credential from the upstream wire format.
func (c *Credential) UnmarshalJSON(data []byte) error {
	var w credentialWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decoding credential: %w", err)
	}
	sub, err := uuid.Parse(w.Sub)
	if err != nil {
		return fmt.Errorf("decoding credential sub: %w", err)
	}
	c.AccessToken = w.AccessToken
	c.RefreshToken = w.RefreshToken
	c.AccountName = w.AccountName
	c.Sub = sub
	c.ExpiresIn = time.Duration(w.ExpiresIn) * time.Second
	if w.RefreshAt != nil {
		t := time.UnixMilli(*w.RefreshAt)
		c.RefreshAt = &t
	} else {
		c.RefreshAt = nil
	}
	return nil
}

// Expired reports whether the credential should be considered due for
// refresh: no refresh_at is set, or it falls within buffer of now.
func (c Credential) Expired(buffer time.Duration) bool {
	if c.RefreshAt == nil {
		return true
	}
	return !c.RefreshAt.After(time.Now().Add(buffer))
}

// NextRefreshAt computes the deadline for the next refresh: the
// credential's own RefreshAt if set, otherwise now + ExpiresIn - buffer.
func (c Credential) NextRefreshAt(buffer time.Duration) time.Time {
	if c.RefreshAt != nil {
		return *c.RefreshAt
	}
	return time.Now().Add(c.ExpiresIn - buffer)
}

// LogValue implements slog.LogValuer, redacting the two sensitive token
// fields so they never reach a log sink in the clear.
func (c Credential) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("access_token", "<redacted>"),
		slog.String("refresh_token", "<redacted>"),
		slog.String("account_name", c.AccountName),
		slog.String("sub", c.Sub.String()),
		slog.Duration("expires_in", c.ExpiresIn),
		slog.Any("refresh_at", c.RefreshAt),
	)
}
