package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// CurrencyType selects which per-character store to fetch.
type CurrencyType string

const (
	CurrencyMarks   CurrencyType = "marks"
	CurrencyCredits CurrencyType = "credits"
)

// ParseCurrencyType validates a currency type string from a query param.
func ParseCurrencyType(s string) (CurrencyType, error) {
	switch CurrencyType(s) {
	case CurrencyMarks, CurrencyCredits:
		return CurrencyType(s), nil
	default:
		return "", fmt.Errorf("unknown currency type %q", s)
	}
}

// epochMillis marshals/unmarshals as a ms-since-epoch string, per the
// upstream wire format for current_rotation_end.
type epochMillis time.Time

func (e epochMillis) MarshalJSON() ([]byte, error) {
	ms := time.Time(e).UnixMilli()
	return json.Marshal(strconv.FormatInt(ms, 10))
}

func (e *epochMillis) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parsing current_rotation_end %q: %w", s, err)
	}
	*e = epochMillis(time.UnixMilli(ms))
	return nil
}

// Store is an account-and-character-specific merchandise listing. Only
// CurrentRotationEnd is semantically inspected; the rest is opaque
// passthrough (catalog, public/personal offers, reroll counters).
type Store struct {
	CurrentRotationEnd time.Time
	Extra              json.RawMessage
}

type storeWire struct {
	CurrentRotationEnd epochMillis `json:"current_rotation_end"`
}

// MarshalJSON re-merges Extra with CurrentRotationEnd.
func (s Store) MarshalJSON() ([]byte, error) {
	merged := map[string]json.RawMessage{}
	if len(s.Extra) > 0 {
		if err := json.Unmarshal(s.Extra, &merged); err != nil {
			return nil, err
		}
	}
	rotJSON, err := json.Marshal(epochMillis(s.CurrentRotationEnd))
	if err != nil {
		return nil, err
	}
	merged["current_rotation_end"] = rotJSON
	return json.Marshal(merged)
}

// UnmarshalJSON captures CurrentRotationEnd and keeps the rest as Extra.
func (s *Store) UnmarshalJSON(data []byte) error {
	var w storeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.CurrentRotationEnd = time.Time(w.CurrentRotationEnd)
	s.Extra = append(json.RawMessage(nil), data...)
	return nil
}

// Expired reports whether the store rotation has ended as of now. A store
// whose rotation ends exactly now is treated as expired (strict > check
// for "still valid").
func (s Store) Expired() bool {
	return !s.CurrentRotationEnd.After(time.Now())
}
