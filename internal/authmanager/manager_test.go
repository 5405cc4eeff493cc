package authmanager

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/duskforge/vaultcache/internal/accountcache"
	"github.com/duskforge/vaultcache/internal/authstore"
	"github.com/duskforge/vaultcache/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClient is a test double for UpstreamClient, letting tests script
// refresh outcomes and count calls.
type fakeClient struct {
	mu            sync.Mutex
	refreshFunc   func(cred model.Credential) (model.Credential, error)
	refreshCalls  int
	summaryCalls  int
	masterDataErr error
}

func (f *fakeClient) GetSummary(ctx context.Context, cred model.Credential) (model.Summary, error) {
	f.mu.Lock()
	f.summaryCalls++
	f.mu.Unlock()
	return model.Summary{}, nil
}

func (f *fakeClient) GetStore(ctx context.Context, cred model.Credential, currency model.CurrencyType, char model.Character) (model.Store, error) {
	return model.Store{}, nil
}

func (f *fakeClient) GetMasterData(ctx context.Context, cred model.Credential) (model.MasterData, error) {
	return model.MasterData{}, f.masterDataErr
}

func (f *fakeClient) Refresh(ctx context.Context, cred model.Credential) (model.Credential, error) {
	f.mu.Lock()
	f.refreshCalls++
	f.mu.Unlock()
	if f.refreshFunc != nil {
		return f.refreshFunc(cred)
	}
	return cred, nil
}

func runManager(t *testing.T, m *Manager) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

func TestNewAuthIsAdoptedAndPopulated(t *testing.T) {
	storage := authstore.NewMemory()
	cache := accountcache.NewCache()
	client := &fakeClient{}
	m := New(storage, cache, client, testLogger())

	stop := runManager(t, m)
	defer stop()

	view := m.ReadView()
	id := uuid.New()
	cred := model.Credential{Sub: id, AccessToken: "at", ExpiresIn: time.Hour}
	if err := view.AddAuth(t.Context(), cred); err != nil {
		t.Fatalf("AddAuth: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if ok, _ := view.Contains(id); ok {
			break
		}
		time.Sleep(time.Millisecond)
	}

	ok, err := view.Contains(id)
	if err != nil || !ok {
		t.Fatalf("Contains(id) = %v, %v; want true, nil", ok, err)
	}
	if _, ok := cache.Get(id); !ok {
		t.Fatal("account cache was not populated")
	}
}

func TestNewAuthAlreadyTrackedIsIgnored(t *testing.T) {
	storage := authstore.NewMemory()
	cache := accountcache.NewCache()
	client := &fakeClient{}
	m := New(storage, cache, client, testLogger())

	id := uuid.New()
	// A future RefreshAt keeps the seeded auth from being dropped at startup.
	future := time.Now().Add(time.Hour)
	if err := storage.Insert(id, model.Credential{Sub: id, ExpiresIn: time.Hour, RefreshAt: &future}); err != nil {
		t.Fatalf("seeding storage: %v", err)
	}

	stop := runManager(t, m)
	defer stop()

	view := m.ReadView()
	if err := view.AddAuth(t.Context(), model.Credential{Sub: id, AccessToken: "new", ExpiresIn: time.Hour}); err != nil {
		t.Fatalf("AddAuth: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	got, err := view.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.AccessToken == "new" {
		t.Fatal("already-tracked auth was overwritten, want ignored")
	}
}

func TestPopulateFailureDropsIngestion(t *testing.T) {
	storage := authstore.NewMemory()
	cache := accountcache.NewCache()
	client := &fakeClient{masterDataErr: errors.New("boom")}
	m := New(storage, cache, client, testLogger())

	stop := runManager(t, m)
	defer stop()

	view := m.ReadView()
	id := uuid.New()
	if err := view.AddAuth(t.Context(), model.Credential{Sub: id, ExpiresIn: time.Hour}); err != nil {
		t.Fatalf("AddAuth: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if ok, _ := view.Contains(id); ok {
		t.Fatal("credential was inserted despite populate failure")
	}
	if _, ok := cache.Get(id); ok {
		t.Fatal("account cache was populated despite populate failure")
	}
}

func TestScheduledRefreshFailureEvicts(t *testing.T) {
	storage := authstore.NewMemory()
	cache := accountcache.NewCache()
	id := uuid.New()
	client := &fakeClient{
		refreshFunc: func(cred model.Credential) (model.Credential, error) {
			return model.Credential{}, errors.New("refresh rejected")
		},
	}
	m := New(storage, cache, client, testLogger())

	// Seed storage directly with an auth due to refresh almost immediately.
	refreshAt := time.Now().Add(5 * time.Millisecond)
	if err := storage.Insert(id, model.Credential{Sub: id, ExpiresIn: time.Hour, RefreshAt: &refreshAt}); err != nil {
		t.Fatalf("seeding storage: %v", err)
	}

	stop := runManager(t, m)
	defer stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ok, _ := m.ReadView().Contains(id); !ok {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	ok, err := m.ReadView().Contains(id)
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if ok {
		t.Fatal("credential was not evicted after refresh failure")
	}
}

func TestScheduledRefreshSuccessReschedules(t *testing.T) {
	storage := authstore.NewMemory()
	cache := accountcache.NewCache()
	id := uuid.New()
	client := &fakeClient{
		refreshFunc: func(cred model.Credential) (model.Credential, error) {
			return model.Credential{Sub: id, AccessToken: "refreshed", ExpiresIn: time.Hour}, nil
		},
	}
	m := New(storage, cache, client, testLogger())

	refreshAt := time.Now().Add(5 * time.Millisecond)
	if err := storage.Insert(id, model.Credential{Sub: id, ExpiresIn: time.Hour, RefreshAt: &refreshAt}); err != nil {
		t.Fatalf("seeding storage: %v", err)
	}

	stop := runManager(t, m)
	defer stop()

	deadline := time.Now().Add(2 * time.Second)
	var got model.Credential
	for time.Now().Before(deadline) {
		var err error
		got, err = m.ReadView().Get(id)
		if err == nil && got.AccessToken == "refreshed" {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got.AccessToken != "refreshed" {
		t.Fatalf("AccessToken = %q, want %q", got.AccessToken, "refreshed")
	}
	if got.RefreshAt == nil {
		t.Fatal("refreshed credential has no RefreshAt scheduled")
	}
}

func TestStartupDropsExpiredCredentials(t *testing.T) {
	storage := authstore.NewMemory()
	cache := accountcache.NewCache()
	id := uuid.New()
	past := time.Now().Add(-time.Hour)
	if err := storage.Insert(id, model.Credential{Sub: id, RefreshAt: &past}); err != nil {
		t.Fatalf("seeding storage: %v", err)
	}

	client := &fakeClient{}
	m := New(storage, cache, client, testLogger())
	m.startup(context.Background())

	if ok, _ := storage.Contains(id); ok {
		t.Fatal("expired credential was not dropped at startup")
	}
	if len(m.heap) != 0 {
		t.Fatalf("heap has %d entries, want 0", len(m.heap))
	}
}

func TestStartupPopulatesLiveCredentials(t *testing.T) {
	storage := authstore.NewMemory()
	cache := accountcache.NewCache()
	id := uuid.New()
	future := time.Now().Add(time.Hour)
	if err := storage.Insert(id, model.Credential{Sub: id, RefreshAt: &future}); err != nil {
		t.Fatalf("seeding storage: %v", err)
	}

	client := &fakeClient{}
	m := New(storage, cache, client, testLogger())
	m.startup(context.Background())

	if len(m.heap) != 1 {
		t.Fatalf("heap has %d entries, want 1", len(m.heap))
	}
	if _, ok := cache.Get(id); !ok {
		t.Fatal("account cache was not populated at startup")
	}
}
