package model

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCredentialExpired(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		refresh *time.Time
		buffer  time.Duration
		want    bool
	}{
		{"no refresh_at is always expired", nil, RefreshBuffer, true},
		{"refresh_at in the past", ptr(now.Add(-time.Minute)), RefreshBuffer, true},
		{"refresh_at exactly at buffer edge", ptr(now.Add(RefreshBuffer)), RefreshBuffer, true},
		{"refresh_at well beyond buffer", ptr(now.Add(time.Hour)), RefreshBuffer, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Credential{RefreshAt: tt.refresh}
			if got := c.Expired(tt.buffer); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCredentialNextRefreshAt(t *testing.T) {
	t.Run("uses explicit refresh_at when set", func(t *testing.T) {
		want := time.Now().Add(time.Hour).Truncate(time.Second)
		c := Credential{RefreshAt: &want, ExpiresIn: time.Minute}
		if got := c.NextRefreshAt(RefreshBuffer); !got.Equal(want) {
			t.Errorf("NextRefreshAt() = %v, want %v", got, want)
		}
	})

	t.Run("computes from expires_in minus buffer when absent", func(t *testing.T) {
		c := Credential{ExpiresIn: time.Hour}
		got := c.NextRefreshAt(RefreshBuffer)
		want := time.Now().Add(time.Hour - RefreshBuffer)
		if diff := got.Sub(want); diff < -time.Second || diff > time.Second {
			t.Errorf("NextRefreshAt() = %v, want ~%v", got, want)
		}
	})
}

func TestCredentialLogValueRedacts(t *testing.T) {
	c := Credential{
		AccessToken:  "super-secret-access",
		RefreshToken: "super-secret-refresh",
		AccountName:  "display-name",
		Sub:          uuid.New(),
	}
	rendered := c.LogValue().String()
	if strings.Contains(rendered, "super-secret-access") || strings.Contains(rendered, "super-secret-refresh") {
		t.Fatalf("LogValue leaked a token: %s", rendered)
	}
	if !strings.Contains(rendered, "display-name") {
		t.Fatalf("LogValue dropped non-sensitive field: %s", rendered)
	}
}

func TestCredentialJSONRoundTrip(t *testing.T) {
	refreshAt := time.UnixMilli(time.Now().UnixMilli())
	c := Credential{
		AccessToken:  "at1",
		RefreshToken: "rt1",
		AccountName:  "Guardian",
		Sub:          uuid.New(),
		ExpiresIn:    3600 * time.Second,
		RefreshAt:    &refreshAt,
	}
	data, err := c.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	var got Credential
	if err := got.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if got.Sub != c.Sub || got.AccessToken != c.AccessToken || got.ExpiresIn != c.ExpiresIn {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, c)
	}
	if !got.RefreshAt.Equal(*c.RefreshAt) {
		t.Fatalf("RefreshAt mismatch: got %v, want %v", got.RefreshAt, c.RefreshAt)
	}
}

func ptr[T any](v T) *T { return &v }
