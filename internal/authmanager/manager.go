// Package authmanager owns the credential refresh lifecycle: a single
// cooperative loop that keeps AuthStorage and the account cache in sync
// with upstream-refreshed credentials.
package authmanager

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/duskforge/vaultcache/internal/accountcache"
	"github.com/duskforge/vaultcache/internal/authstore"
	"github.com/duskforge/vaultcache/internal/model"
	"github.com/duskforge/vaultcache/internal/telemetry"
)

// UpstreamClient is the subset of internal/upstream.Client the manager
// depends on, so tests can supply a fake.
type UpstreamClient interface {
	GetSummary(ctx context.Context, cred model.Credential) (model.Summary, error)
	GetStore(ctx context.Context, cred model.Credential, currency model.CurrencyType, char model.Character) (model.Store, error)
	GetMasterData(ctx context.Context, cred model.Credential) (model.MasterData, error)
	Refresh(ctx context.Context, cred model.Credential) (model.Credential, error)
}

type command struct {
	newAuth *model.Credential
}

// Manager runs the refresh loop. Its heap and inbox are private to the
// single goroutine started by Run; all outside access goes through
// ReadView.
type Manager struct {
	storage authstore.Store
	cache   *accountcache.Cache
	client  UpstreamClient
	logger  *slog.Logger

	inbox chan command
	heap  refreshHeap
}

// New builds a Manager. Call Run to start its loop and ReadView to get a
// handle request handlers can use.
func New(storage authstore.Store, cache *accountcache.Cache, client UpstreamClient, logger *slog.Logger) *Manager {
	return &Manager{
		storage: storage,
		cache:   cache,
		client:  client,
		logger:  logger,
		inbox:   make(chan command, 100),
	}
}

// ReadView is a cheaply copyable handle onto the manager, given to
// request handlers. Reads go straight through to storage; mutations are
// enqueued as commands for the manager's single goroutine to apply.
type ReadView struct {
	storage authstore.Store
	inbox   chan command
}

// ReadView returns a handle for request handlers.
func (m *Manager) ReadView() ReadView {
	return ReadView{storage: m.storage, inbox: m.inbox}
}

// Get returns the credential for id.
func (v ReadView) Get(id model.AccountID) (model.Credential, error) {
	return v.storage.GetSingle(id)
}

// GetSingle returns the id of one account known to storage, reporting
// false only when storage is empty. It's used by the single-account
// convenience endpoints; when several accounts are stored, which one is
// returned is not defined.
func (v ReadView) GetSingle() (model.AccountID, bool, error) {
	all, err := v.storage.Get()
	if err != nil {
		return model.AccountID{}, false, err
	}
	for id := range all {
		return id, true, nil
	}
	return model.AccountID{}, false, nil
}

// Contains reports whether a credential for id is currently tracked.
func (v ReadView) Contains(id model.AccountID) (bool, error) {
	return v.storage.Contains(id)
}

// AddAuth enqueues a newly ingested credential for the manager to adopt.
// It returns an error only if the inbox could not accept the command
// before ctx was done.
func (v ReadView) AddAuth(ctx context.Context, cred model.Credential) error {
	select {
	case v.inbox <- command{newAuth: &cred}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes the startup phase and then the main select loop until ctx
// is cancelled. It returns nil on a clean shutdown.
func (m *Manager) Run(ctx context.Context) error {
	m.startup(ctx)

	for {
		var timer *time.Timer
		var timerC <-chan time.Time
		if len(m.heap) > 0 {
			d := time.Until(m.heap[0].refreshAt)
			if d < 0 {
				d = 0
			}
			timer = time.NewTimer(d)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			m.logger.Info("auth manager shutting down")
			return nil

		case cmd := <-m.inbox:
			if timer != nil {
				timer.Stop()
			}
			if cmd.newAuth != nil {
				m.handleNewAuth(ctx, *cmd.newAuth)
			}

		case <-timerC:
			m.refreshDue(ctx)
		}
	}
}

func (m *Manager) startup(ctx context.Context) {
	creds, err := m.storage.Get()
	if err != nil {
		m.logger.Error("auth manager startup: listing storage failed", "error", err)
		return
	}
	for id, cred := range creds {
		// A credential with no deadline, or one more than RefreshBuffer in
		// the past, is dropped. Any other is scheduled as-is, so a deadline
		// that is already due fires on the loop's first iteration.
		if cred.Expired(-model.RefreshBuffer) {
			m.logger.Warn("auth expired at startup, removing", "account_id", id)
			if err := m.storage.Remove(id); err != nil {
				m.logger.Error("removing expired auth", "account_id", id, "error", err)
			}
			continue
		}
		heap.Push(&m.heap, refreshEntry{id: id, refreshAt: cred.NextRefreshAt(model.RefreshBuffer)})
		telemetry.CredentialsTracked.Inc()
		if err := m.populate(ctx, id, cred); err != nil {
			m.logger.Error("populating account at startup", "account_id", id, "error", err)
		}
	}
}

func (m *Manager) handleNewAuth(ctx context.Context, cred model.Credential) {
	exists, err := m.storage.Contains(cred.Sub)
	if err != nil {
		m.logger.Error("checking existing auth", "account_id", cred.Sub, "error", err)
		return
	}
	if exists {
		m.logger.Info("auth already tracked, ignoring", "account_id", cred.Sub)
		return
	}

	entry := refreshEntry{id: cred.Sub, refreshAt: cred.NextRefreshAt(model.RefreshBuffer)}

	if err := m.populate(ctx, cred.Sub, cred); err != nil {
		m.logger.Error("populating new account, dropping ingestion", "account_id", cred.Sub, "error", err)
		return
	}

	if err := m.storage.Insert(cred.Sub, cred); err != nil {
		m.logger.Error("inserting new auth", "account_id", cred.Sub, "error", err)
		return
	}
	heap.Push(&m.heap, entry)
	telemetry.CredentialsTracked.Inc()
}

func (m *Manager) refreshDue(ctx context.Context) {
	if len(m.heap) == 0 {
		return
	}
	entry := heap.Pop(&m.heap).(refreshEntry)

	cred, err := m.storage.GetSingle(entry.id)
	if errors.Is(err, authstore.ErrNotFound) {
		m.logger.Warn("refresh deadline fired for orphaned account, dropping", "account_id", entry.id)
		return
	}
	if err != nil {
		m.logger.Error("reading credential for scheduled refresh", "account_id", entry.id, "error", err)
		return
	}

	newCred, err := m.client.Refresh(ctx, cred)
	if err != nil {
		telemetry.ScheduledRefreshTotal.WithLabelValues("failure").Inc()
		m.logger.Error("scheduled refresh failed, evicting", "account_id", entry.id, "error", err)
		if rmErr := m.storage.Remove(entry.id); rmErr != nil {
			m.logger.Error("evicting after failed refresh", "account_id", entry.id, "error", rmErr)
		}
		telemetry.CredentialsTracked.Dec()
		return
	}

	refreshAt := newCred.NextRefreshAt(model.RefreshBuffer)
	newCred.RefreshAt = &refreshAt
	if err := m.storage.Insert(entry.id, newCred); err != nil {
		telemetry.ScheduledRefreshTotal.WithLabelValues("failure").Inc()
		m.logger.Error("storing refreshed credential, evicting", "account_id", entry.id, "error", err)
		if rmErr := m.storage.Remove(entry.id); rmErr != nil {
			m.logger.Error("evicting after failed insert", "account_id", entry.id, "error", rmErr)
		}
		telemetry.CredentialsTracked.Dec()
		return
	}
	telemetry.ScheduledRefreshTotal.WithLabelValues("success").Inc()
	heap.Push(&m.heap, refreshEntry{id: entry.id, refreshAt: refreshAt})
}

// populate fetches an account's summary, per-character stores, and
// master data and installs them as a fresh bundle in the account cache.
func (m *Manager) populate(ctx context.Context, id model.AccountID, cred model.Credential) error {
	summary, err := m.client.GetSummary(ctx, cred)
	if err != nil {
		return fmt.Errorf("fetching summary: %w", err)
	}

	type storeResult struct {
		charID   model.CharacterID
		currency model.CurrencyType
		store    model.Store
		err      error
	}

	results := make(chan storeResult, len(summary.Characters)*2)
	var wg sync.WaitGroup
	for _, char := range summary.Characters {
		for _, currency := range [...]model.CurrencyType{model.CurrencyMarks, model.CurrencyCredits} {
			wg.Add(1)
			go func(char model.Character, currency model.CurrencyType) {
				defer wg.Done()
				store, err := m.client.GetStore(ctx, cred, currency, char)
				results <- storeResult{charID: char.ID, currency: currency, store: store, err: err}
			}(char, currency)
		}
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	marks := make(map[model.CharacterID]model.Store, len(summary.Characters))
	credits := make(map[model.CharacterID]model.Store, len(summary.Characters))
	for res := range results {
		if res.err != nil {
			m.logger.Error("fetching store", "account_id", id, "character_id", res.charID, "currency", res.currency, "error", res.err)
			continue
		}
		if res.currency == model.CurrencyCredits {
			credits[res.charID] = res.store
		} else {
			marks[res.charID] = res.store
		}
	}

	masterData, err := m.client.GetMasterData(ctx, cred)
	if err != nil {
		return fmt.Errorf("fetching master data: %w", err)
	}

	m.cache.Insert(id, accountcache.NewBundle(summary, marks, credits, masterData))
	return nil
}
