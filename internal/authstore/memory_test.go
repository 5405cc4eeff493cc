package authstore

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/duskforge/vaultcache/internal/model"
)

func TestMemoryInsertGetRemove(t *testing.T) {
	s := NewMemory()
	id := uuid.New()

	if _, err := s.GetSingle(id); err != ErrNotFound {
		t.Fatalf("GetSingle on empty store: got err %v, want ErrNotFound", err)
	}

	cred := model.Credential{AccessToken: "at", Sub: id, ExpiresIn: time.Hour}
	if err := s.Insert(id, cred); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	ok, err := s.Contains(id)
	if err != nil || !ok {
		t.Fatalf("Contains = %v, %v; want true, nil", ok, err)
	}

	got, err := s.GetSingle(id)
	if err != nil {
		t.Fatalf("GetSingle: %v", err)
	}
	if got.AccessToken != "at" {
		t.Fatalf("GetSingle AccessToken = %q, want %q", got.AccessToken, "at")
	}

	all, err := s.Get()
	if err != nil || len(all) != 1 {
		t.Fatalf("Get() = %v, %v; want one entry", all, err)
	}

	if err := s.Remove(id); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if ok, _ := s.Contains(id); ok {
		t.Fatalf("Contains after Remove = true, want false")
	}

	// Removing an absent id is not an error.
	if err := s.Remove(id); err != nil {
		t.Fatalf("Remove on absent id: %v", err)
	}
}

func TestMemoryGetReturnsIndependentCopy(t *testing.T) {
	s := NewMemory()
	id := uuid.New()
	if err := s.Insert(id, model.Credential{AccessToken: "one"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	snapshot, err := s.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	snapshot[id] = model.Credential{AccessToken: "mutated"}

	got, err := s.GetSingle(id)
	if err != nil {
		t.Fatalf("GetSingle: %v", err)
	}
	if got.AccessToken != "one" {
		t.Fatalf("store was mutated through snapshot: got %q", got.AccessToken)
	}
}
