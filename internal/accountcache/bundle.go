// Package accountcache holds the per-account cache of upstream data:
// profile summary, per-character marks/credits stores, and master data.
package accountcache

import (
	"sync"
	"time"

	"github.com/duskforge/vaultcache/internal/model"
)

// Bundle is everything cached for a single account. Each data group has
// its own lock so a reader of the marks store never blocks a reader (or
// writer) of the summary. Callers must never hold two sub-locks at once.
type Bundle struct {
	summaryMu sync.RWMutex
	summary   model.Summary

	marksMu sync.RWMutex
	marks   map[model.CharacterID]model.Store

	creditsMu sync.RWMutex
	credits   map[model.CharacterID]model.Store

	masterDataMu sync.RWMutex
	masterData   model.MasterData

	updatedMu sync.Mutex
	updatedAt time.Time
}

// NewBundle builds a Bundle from a freshly fetched set of upstream data.
func NewBundle(summary model.Summary, marks, credits map[model.CharacterID]model.Store, masterData model.MasterData) *Bundle {
	if marks == nil {
		marks = make(map[model.CharacterID]model.Store)
	}
	if credits == nil {
		credits = make(map[model.CharacterID]model.Store)
	}
	return &Bundle{
		summary:    summary,
		marks:      marks,
		credits:    credits,
		masterData: masterData,
		updatedAt:  time.Now(),
	}
}

// Summary returns the cached profile summary.
func (b *Bundle) Summary() model.Summary {
	b.summaryMu.RLock()
	defer b.summaryMu.RUnlock()
	return b.summary
}

// SetSummary replaces the cached profile summary.
func (b *Bundle) SetSummary(s model.Summary) {
	b.summaryMu.Lock()
	defer b.summaryMu.Unlock()
	b.summary = s
}

// Store returns the cached store for a character under the given
// currency, if present.
func (b *Bundle) Store(currency model.CurrencyType, charID model.CharacterID) (model.Store, bool) {
	mu, stores := b.storeMap(currency)
	mu.RLock()
	defer mu.RUnlock()
	s, ok := stores[charID]
	return s, ok
}

// SetStore caches a single character's store for the given currency.
func (b *Bundle) SetStore(currency model.CurrencyType, charID model.CharacterID, store model.Store) {
	mu, stores := b.storeMap(currency)
	mu.Lock()
	defer mu.Unlock()
	stores[charID] = store
}

func (b *Bundle) storeMap(currency model.CurrencyType) (*sync.RWMutex, map[model.CharacterID]model.Store) {
	switch currency {
	case model.CurrencyCredits:
		return &b.creditsMu, b.credits
	default:
		return &b.marksMu, b.marks
	}
}

// MasterData returns the cached master data.
func (b *Bundle) MasterData() model.MasterData {
	b.masterDataMu.RLock()
	defer b.masterDataMu.RUnlock()
	return b.masterData
}

// SetMasterData replaces the cached master data.
func (b *Bundle) SetMasterData(m model.MasterData) {
	b.masterDataMu.Lock()
	defer b.masterDataMu.Unlock()
	b.masterData = m
}

// UpdatedAt returns when the summary was last refreshed.
func (b *Bundle) UpdatedAt() time.Time {
	b.updatedMu.Lock()
	defer b.updatedMu.Unlock()
	return b.updatedAt
}

// Touch records that the summary was just refreshed.
func (b *Bundle) Touch() {
	b.updatedMu.Lock()
	defer b.updatedMu.Unlock()
	b.updatedAt = time.Now()
}
