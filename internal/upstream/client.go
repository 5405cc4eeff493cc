// Package upstream calls the third-party game-account API: fetching
// profile summaries, per-character currency stores, master data, and
// refreshing expired credentials.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/duskforge/vaultcache/internal/model"
	"github.com/duskforge/vaultcache/internal/telemetry"
)

// Client calls the upstream game-account API over HTTP.
type Client struct {
	httpClient  *http.Client
	apiBaseURL  string
	authBaseURL string
}

// NewClient builds a Client with a 10-second timeout, pointed at the
// given API and auth base URLs.
func NewClient(apiBaseURL, authBaseURL string) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		apiBaseURL:  apiBaseURL,
		authBaseURL: authBaseURL,
	}
}

// GetSummary fetches an account's profile summary.
func (c *Client) GetSummary(ctx context.Context, cred model.Credential) (model.Summary, error) {
	u := fmt.Sprintf("%s/web/%s/summary", c.apiBaseURL, cred.Sub)
	var out model.Summary
	err := c.doGet(ctx, "get_summary", u, cred.AccessToken, nil, &out)
	return out, err
}

// GetStore fetches a single character's currency store.
func (c *Client) GetStore(ctx context.Context, cred model.Credential, currency model.CurrencyType, char model.Character) (model.Store, error) {
	u := fmt.Sprintf("%s/store/storefront/%s_store_%s", c.apiBaseURL, currency, char.Archetype)
	q := url.Values{
		"accountId":   {cred.Sub.String()},
		"personal":    {"true"},
		"characterId": {char.ID.String()},
	}
	var out model.Store
	err := c.doGet(ctx, "get_store", u, cred.AccessToken, q, &out)
	return out, err
}

// GetMasterData fetches the shared item/master-data catalog.
func (c *Client) GetMasterData(ctx context.Context, cred model.Credential) (model.MasterData, error) {
	u := fmt.Sprintf("%s/master-data/meta/items", c.apiBaseURL)
	var out model.MasterData
	err := c.doGet(ctx, "get_master_data", u, cred.AccessToken, nil, &out)
	return out, err
}

// Refresh exchanges a credential's refresh token for a new credential.
func (c *Client) Refresh(ctx context.Context, cred model.Credential) (model.Credential, error) {
	u := fmt.Sprintf("%s/queue/refresh", c.authBaseURL)
	var out model.Credential
	err := c.doGet(ctx, "refresh_auth", u, cred.RefreshToken, nil, &out)
	return out, err
}

func (c *Client) doGet(ctx context.Context, op, rawURL, bearer string, query url.Values, out any) error {
	err := c.doGetUnmetered(ctx, op, rawURL, bearer, query, out)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	telemetry.UpstreamCallsTotal.WithLabelValues(op, outcome).Inc()
	return err
}

func (c *Client) doGetUnmetered(ctx context.Context, op, rawURL, bearer string, query url.Values, out any) error {
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &Error{Kind: KindTransport, Op: op, Err: fmt.Errorf("building request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body any
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return &Error{Kind: KindRejected, Op: op, StatusCode: resp.StatusCode, Body: body}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindDecode, Op: op, Err: err}
	}
	return nil
}
