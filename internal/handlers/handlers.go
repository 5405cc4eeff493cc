// Package handlers implements the read-serving HTTP surface: account
// summary, master data, and per-character store lookups backed by the
// account cache, plus credential ingestion routed to the auth manager.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/duskforge/vaultcache/internal/accountcache"
	"github.com/duskforge/vaultcache/internal/authmanager"
	"github.com/duskforge/vaultcache/internal/httpserver"
	"github.com/duskforge/vaultcache/internal/model"
	"github.com/duskforge/vaultcache/internal/telemetry"
	"github.com/duskforge/vaultcache/internal/upstream"
)

// SummaryRefreshInterval is how long a cached summary is served without
// being re-fetched from upstream.
const SummaryRefreshInterval = time.Hour

// UpstreamClient is the subset of upstream.Client the handlers need.
type UpstreamClient interface {
	GetSummary(ctx context.Context, cred model.Credential) (model.Summary, error)
	GetStore(ctx context.Context, cred model.Credential, currency model.CurrencyType, char model.Character) (model.Store, error)
}

// Handlers holds the dependencies shared by every read endpoint.
type Handlers struct {
	cache               *accountcache.Cache
	auths               authmanager.ReadView
	client              UpstreamClient
	logger              *slog.Logger
	enableSingleAccount bool
}

// New builds the request handlers.
func New(cache *accountcache.Cache, auths authmanager.ReadView, client UpstreamClient, logger *slog.Logger, enableSingleAccount bool) *Handlers {
	return &Handlers{
		cache:               cache,
		auths:               auths,
		client:              client,
		logger:              logger,
		enableSingleAccount: enableSingleAccount,
	}
}

// Mount registers every route on r.
func (h *Handlers) Mount(r chi.Router) {
	r.Get("/summary/{id}", h.handleSummary)
	r.Get("/master_data/{id}", h.handleMasterData)
	r.Get("/store/{id}", h.handleStore)
	r.Put("/auth/{id}", h.handlePutAuth)
	r.Get("/auth/{id}", h.handleGetAuth)

	if h.enableSingleAccount {
		r.Get("/summary", h.handleSingleSummary)
		r.Get("/master_data", h.handleSingleMasterData)
		r.Get("/store", h.handleSingleStore)
	}
}

func parseAccountID(r *http.Request) (model.AccountID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

func (h *Handlers) singleAccountID(w http.ResponseWriter) (model.AccountID, bool) {
	id, ok, err := h.auths.GetSingle()
	if err != nil {
		h.logger.Error("resolving single account", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to resolve account")
		return model.AccountID{}, false
	}
	if !ok {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "no account known")
		return model.AccountID{}, false
	}
	return id, true
}

func (h *Handlers) handleSingleSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := h.singleAccountID(w)
	if !ok {
		return
	}
	h.respondSummary(w, r, id)
}

func (h *Handlers) handleSingleMasterData(w http.ResponseWriter, r *http.Request) {
	id, ok := h.singleAccountID(w)
	if !ok {
		return
	}
	h.respondMasterData(w, id)
}

func (h *Handlers) handleSingleStore(w http.ResponseWriter, r *http.Request) {
	id, ok := h.singleAccountID(w)
	if !ok {
		return
	}
	h.respondStore(w, r, id)
}

func (h *Handlers) handleSummary(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountID(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "invalid account id")
		return
	}
	h.respondSummary(w, r, id)
}

func (h *Handlers) respondSummary(w http.ResponseWriter, r *http.Request, id model.AccountID) {
	bundle, ok := h.cache.Get(id)
	if ok && time.Since(bundle.UpdatedAt()) < SummaryRefreshInterval {
		telemetry.CacheLookupsTotal.WithLabelValues("hit").Inc()
		httpserver.Respond(w, http.StatusOK, bundle.Summary())
		return
	}
	telemetry.CacheLookupsTotal.WithLabelValues("miss").Inc()

	summary, ok := h.refreshSummary(r.Context(), id)
	if !ok {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "account not found")
		return
	}
	httpserver.Respond(w, http.StatusOK, summary)
}

// refreshSummary fetches a fresh summary from upstream and writes it into
// the bundle's cache entry. It reports ok=false on any failure — per the
// error-propagation policy, a summary refresh failure always reads as
// "not found".
func (h *Handlers) refreshSummary(ctx context.Context, id model.AccountID) (model.Summary, bool) {
	cred, err := h.auths.Get(id)
	if err != nil {
		return model.Summary{}, false
	}

	summary, err := h.client.GetSummary(ctx, cred)
	if err != nil {
		h.logger.Error("refreshing summary", "account_id", id, "error", err)
		return model.Summary{}, false
	}

	bundle, ok := h.cache.Get(id)
	if !ok {
		bundle = accountcache.NewBundle(summary, nil, nil, model.MasterData{})
		h.cache.Insert(id, bundle)
	} else {
		bundle.SetSummary(summary)
	}
	bundle.Touch()
	return summary, true
}

func (h *Handlers) handleMasterData(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountID(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "invalid account id")
		return
	}
	h.respondMasterData(w, id)
}

func (h *Handlers) respondMasterData(w http.ResponseWriter, id model.AccountID) {
	bundle, ok := h.cache.Get(id)
	if !ok {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "account not found")
		return
	}
	httpserver.Respond(w, http.StatusOK, bundle.MasterData())
}

func (h *Handlers) handleStore(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountID(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "invalid account id")
		return
	}
	h.respondStore(w, r, id)
}

func (h *Handlers) respondStore(w http.ResponseWriter, r *http.Request, id model.AccountID) {
	charID, err := uuid.Parse(r.URL.Query().Get("characterId"))
	if err != nil {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "invalid character id")
		return
	}
	currency, err := model.ParseCurrencyType(r.URL.Query().Get("currencyType"))
	if err != nil {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "invalid currency type")
		return
	}

	bundle, ok := h.cache.Get(id)
	if !ok {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "account not found")
		return
	}

	if store, ok := bundle.Store(currency, charID); ok && !store.Expired() {
		telemetry.CacheLookupsTotal.WithLabelValues("hit").Inc()
		httpserver.Respond(w, http.StatusOK, store)
		return
	}
	telemetry.CacheLookupsTotal.WithLabelValues("miss").Inc()

	store, status := h.refreshStore(r.Context(), id, bundle, currency, charID)
	if status != 0 {
		httpserver.RespondError(w, status, statusSlug(status), "store unavailable")
		return
	}
	httpserver.Respond(w, http.StatusOK, store)
}

func statusSlug(status int) string {
	if status == http.StatusNotFound {
		return "not_found"
	}
	return "internal_error"
}

// refreshStore implements the §4.5 refresh_store routine. It returns a
// non-zero HTTP status on failure, or 0 with the fetched store on success.
func (h *Handlers) refreshStore(ctx context.Context, id model.AccountID, bundle *accountcache.Bundle, currency model.CurrencyType, charID model.CharacterID) (model.Store, int) {
	cred, err := h.auths.Get(id)
	if err != nil {
		return model.Store{}, http.StatusNotFound
	}

	char, found := bundle.Summary().CharacterByID(charID)
	if !found {
		if _, ok := h.refreshSummary(ctx, id); !ok {
			return model.Store{}, http.StatusNotFound
		}
		char, found = bundle.Summary().CharacterByID(charID)
		if !found {
			return model.Store{}, http.StatusNotFound
		}
	}

	store, err := h.client.GetStore(ctx, cred, currency, char)
	if err != nil {
		var upErr *upstream.Error
		if errors.As(err, &upErr) {
			h.logger.Error("refreshing store", "account_id", id, "character_id", charID, "kind", upErr.Kind, "error", err)
		} else {
			h.logger.Error("refreshing store", "account_id", id, "character_id", charID, "error", err)
		}
		return model.Store{}, http.StatusInternalServerError
	}

	bundle.SetStore(currency, charID, store)
	return store, 0
}

func (h *Handlers) handlePutAuth(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountID(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "invalid account id")
		return
	}

	var cred model.Credential
	if !httpserver.DecodeAndValidate(w, r, &cred) {
		return
	}
	cred.Sub = id

	exists, err := h.auths.Contains(id)
	if err != nil {
		h.logger.Error("checking auth storage", "account_id", id, "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "storage unavailable")
		return
	}
	if exists {
		httpserver.Respond(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	if err := h.auths.AddAuth(r.Context(), cred); err != nil {
		h.logger.Error("enqueueing new auth", "account_id", id, "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "auth manager unavailable")
		return
	}
	httpserver.Respond(w, http.StatusCreated, map[string]string{"status": "created"})
}

func (h *Handlers) handleGetAuth(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountID(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "invalid account id")
		return
	}

	exists, err := h.auths.Contains(id)
	if err != nil {
		h.logger.Error("checking auth storage", "account_id", id, "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "storage unavailable")
		return
	}
	if !exists {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "no credential for account")
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}
