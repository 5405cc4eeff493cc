package model

import "encoding/json"

// MasterData is entirely opaque to the core: it is cached and served
// as-is, never inspected.
type MasterData struct {
	Raw json.RawMessage
}

func (m MasterData) MarshalJSON() ([]byte, error) {
	if len(m.Raw) == 0 {
		return []byte("{}"), nil
	}
	return m.Raw, nil
}

func (m *MasterData) UnmarshalJSON(data []byte) error {
	m.Raw = append(json.RawMessage(nil), data...)
	return nil
}
