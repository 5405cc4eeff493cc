package authstore

import (
	"maps"
	"sync"

	"github.com/duskforge/vaultcache/internal/model"
)

// Memory is an in-process Store backed by a mutex-guarded map. Nothing
// survives a restart; it exists for local development and tests.
type Memory struct {
	mu    sync.RWMutex
	creds map[model.AccountID]model.Credential
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{creds: make(map[model.AccountID]model.Credential)}
}

func (m *Memory) Get() (map[model.AccountID]model.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.creds), nil
}

func (m *Memory) GetSingle(id model.AccountID) (model.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cred, ok := m.creds[id]
	if !ok {
		return model.Credential{}, ErrNotFound
	}
	return cred, nil
}

func (m *Memory) Contains(id model.AccountID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.creds[id]
	return ok, nil
}

func (m *Memory) Insert(id model.AccountID, cred model.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[id] = cred
	return nil
}

func (m *Memory) Remove(id model.AccountID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.creds, id)
	return nil
}

var _ Store = (*Memory)(nil)
