package authstore

import (
	"bytes"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/peterbourgon/diskv/v3"

	"github.com/duskforge/vaultcache/internal/model"
)

// gobCredential mirrors model.Credential with exported fields gob can see
// directly, avoiding a dependency on Credential's JSON marshaling (which
// is tuned for the upstream wire format, not disk encoding).
type gobCredential struct {
	AccessToken  string
	RefreshToken string
	AccountName  string
	Sub          [16]byte
	ExpiresIn    int64
	HasRefreshAt bool
	RefreshAtMs  int64
}

// Durable is a Store backed by an embedded diskv database: one flat file
// per account, hex-encoded account id as filename, gob-encoded credential
// as contents. It survives process restarts.
type Durable struct {
	mu sync.Mutex
	dv *diskv.Diskv
}

// NewDurable opens (or creates) a diskv database rooted at dir.
func NewDurable(dir string) *Durable {
	dv := diskv.New(diskv.Options{
		BasePath:     dir,
		Transform:    func(string) []string { return []string{} },
		CacheSizeMax: 0,
	})
	return &Durable{dv: dv}
}

func accountKey(id model.AccountID) string {
	b := [16]byte(id)
	return hex.EncodeToString(b[:])
}

func encodeCredential(cred model.Credential) ([]byte, error) {
	g := gobCredential{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		AccountName:  cred.AccountName,
		Sub:          [16]byte(cred.Sub),
		ExpiresIn:    int64(cred.ExpiresIn),
	}
	if cred.RefreshAt != nil {
		g.HasRefreshAt = true
		g.RefreshAtMs = cred.RefreshAt.UnixMilli()
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(g); err != nil {
		return nil, fmt.Errorf("encoding credential: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeCredential(data []byte) (model.Credential, error) {
	var g gobCredential
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&g); err != nil {
		return model.Credential{}, fmt.Errorf("decoding credential: %w", err)
	}
	cred := model.Credential{
		AccessToken:  g.AccessToken,
		RefreshToken: g.RefreshToken,
		AccountName:  g.AccountName,
		Sub:          g.Sub,
		ExpiresIn:    time.Duration(g.ExpiresIn),
	}
	if g.HasRefreshAt {
		t := time.UnixMilli(g.RefreshAtMs)
		cred.RefreshAt = &t
	}
	return cred, nil
}

func (d *Durable) Get() (map[model.AccountID]model.Credential, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[model.AccountID]model.Credential)
	cancel := make(chan struct{})
	defer close(cancel)
	for key := range d.dv.Keys(cancel) {
		raw, err := hex.DecodeString(key)
		if err != nil || len(raw) != 16 {
			continue
		}
		data, err := d.dv.Read(key)
		if err != nil {
			return nil, fmt.Errorf("reading credential %s: %w", key, err)
		}
		cred, err := decodeCredential(data)
		if err != nil {
			return nil, fmt.Errorf("decoding credential %s: %w", key, err)
		}
		out[model.AccountID(raw)] = cred
	}
	return out, nil
}

func (d *Durable) GetSingle(id model.AccountID) (model.Credential, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := accountKey(id)
	if !d.dv.Has(key) {
		return model.Credential{}, ErrNotFound
	}
	data, err := d.dv.Read(key)
	if err != nil {
		return model.Credential{}, fmt.Errorf("reading credential %s: %w", key, err)
	}
	return decodeCredential(data)
}

func (d *Durable) Contains(id model.AccountID) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dv.Has(accountKey(id)), nil
}

func (d *Durable) Insert(id model.AccountID, cred model.Credential) error {
	data, err := encodeCredential(cred)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.dv.Write(accountKey(id), data); err != nil {
		return fmt.Errorf("writing credential %s: %w", accountKey(id), err)
	}
	return nil
}

func (d *Durable) Remove(id model.AccountID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := accountKey(id)
	if !d.dv.Has(key) {
		return nil
	}
	if err := d.dv.Erase(key); err != nil {
		return fmt.Errorf("erasing credential %s: %w", key, err)
	}
	return nil
}

var _ Store = (*Durable)(nil)
