// Package server exposes the ingestion pipelines over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/cleared-dev/tally/internal/accounts"
	"github.com/cleared-dev/tally/internal/ingest"
	"github.com/cleared-dev/tally/internal/logging"
	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/store"
	"github.com/cleared-dev/tally/internal/syncer"
)

// maxUploadMemory bounds the multipart form kept in memory.
const maxUploadMemory = 32 << 20

// Uploader runs the statement upload pipeline.
type Uploader interface {
	Upload(ctx context.Context, req ingest.Request) (ingest.Result, error)
}

// Syncer runs feed syncs.
type Syncer interface {
	Sync(ctx context.Context, ownerID, itemID string) (syncer.Report, error)
	HandleWebhook(ctx context.Context, w syncer.Webhook) (bool, error)
}

// Linker links external items.
type Linker interface {
	Link(ctx context.Context, ownerID, publicToken string) (accounts.LinkResult, error)
}

// AccountService lists and deletes accounts.
type AccountService interface {
	List(ctx context.Context, ownerID string) ([]model.Account, error)
	Delete(ctx context.Context, ownerID, accountID string) error
}

// Deps are the services behind the routes. Syncer and Linker may be nil
// when the feed is not configured; their routes then answer 503.
type Deps struct {
	Uploader Uploader
	Syncer   Syncer
	Linker   Linker
	Accounts AccountService
	Log      zerolog.Logger
}

// Handler serves the HTTP API.
type Handler struct {
	deps Deps
}

// NewRouter builds the API router.
func NewRouter(d Deps) *mux.Router {
	h := &Handler{deps: d}

	r := mux.NewRouter()
	r.Use(recovery(d.Log), requestLogger(d.Log))

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/webhooks/feed", h.Webhook).Methods(http.MethodPost)
	r.HandleFunc("/sync", h.Sync).Methods(http.MethodPost)
	r.HandleFunc("/link", h.Link).Methods(http.MethodPost)
	r.HandleFunc("/upload", h.Upload).Methods(http.MethodPost)
	r.HandleFunc("/accounts", h.ListAccounts).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{id}", h.DeleteAccount).Methods(http.MethodDelete)
	return r
}

// NewServer wraps the router in an http.Server with conservative timeouts.
func NewServer(addr string, d Deps) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewRouter(d),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute,
	}
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Webhook handles POST /webhooks/feed. The provider always gets a 200 so
// it does not retry; failures are only logged.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var hook syncer.Webhook
	if err := json.NewDecoder(r.Body).Decode(&hook); err != nil && !errors.Is(err, io.EOF) {
		log.Warn().Err(err).Msg("malformed webhook body")
	}

	if h.deps.Syncer != nil {
		ran, err := h.deps.Syncer.HandleWebhook(r.Context(), hook)
		if err != nil {
			log.Error().Err(err).Str("item_id", hook.ItemID).Msg("webhook sync")
		} else if ran {
			log.Info().Str("item_id", hook.ItemID).Str("code", hook.Code).Msg("webhook sync")
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

type itemView struct {
	OwnerID    string `json:"owner_id"`
	ItemID     string `json:"item_id"`
	Added      int    `json:"added"`
	Pending    int    `json:"pending"`
	Orphaned   int    `json:"orphaned"`
	Duplicates int    `json:"duplicates"`
	Pages      int    `json:"pages"`
	Cursor     string `json:"cursor,omitempty"`
	Error      string `json:"error,omitempty"`
}

func itemViews(r syncer.Report) []itemView {
	out := make([]itemView, 0, len(r.Items))
	for _, it := range r.Items {
		v := itemView{
			OwnerID:    it.OwnerID,
			ItemID:     it.ItemID,
			Added:      it.Added,
			Pending:    it.Pending,
			Orphaned:   it.Orphaned,
			Duplicates: it.Duplicates,
			Pages:      it.Pages,
			Cursor:     it.Cursor,
		}
		if it.Err != nil {
			v.Error = it.Err.Error()
		}
		out = append(out, v)
	}
	return out
}

// Sync handles POST /sync
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	if h.deps.Syncer == nil {
		writeError(w, http.StatusServiceUnavailable, "feed not configured")
		return
	}

	var req struct {
		OwnerID string `json:"owner_id"`
		ItemID  string `json:"item_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OwnerID == "" {
		writeError(w, http.StatusBadRequest, "owner_id is required")
		return
	}

	report, err := h.deps.Syncer.Sync(r.Context(), req.OwnerID, req.ItemID)
	if err != nil {
		log := logging.FromContext(r.Context())
		log.Error().Err(err).Str("owner_id", req.OwnerID).Msg("sync failed")
		writeError(w, http.StatusInternalServerError, "sync failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"total_added": report.Added,
		"items":       itemViews(report),
	})
}

// Link handles POST /link
func (h *Handler) Link(w http.ResponseWriter, r *http.Request) {
	if h.deps.Linker == nil {
		writeError(w, http.StatusServiceUnavailable, "feed not configured")
		return
	}

	var req struct {
		OwnerID     string `json:"owner_id"`
		PublicToken string `json:"public_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OwnerID == "" {
		writeError(w, http.StatusBadRequest, "owner_id is required")
		return
	}

	res, err := h.deps.Linker.Link(r.Context(), req.OwnerID, req.PublicToken)
	switch {
	case errors.Is(err, accounts.ErrPublicTokenRequired):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		log := logging.FromContext(r.Context())
		log.Error().Err(err).Str("owner_id", req.OwnerID).Msg("link failed")
		writeError(w, http.StatusInternalServerError, "failed to link account")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"item_id":     res.ItemID,
		"accounts":    res.Accounts,
		"total_added": res.Added,
	})
}

// Upload handles POST /upload (multipart: owner_id, account_name,
// account_id, format and one or more file parts).
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	req := ingest.Request{
		OwnerID:     r.FormValue("owner_id"),
		AccountName: r.FormValue("account_name"),
		AccountID:   r.FormValue("account_id"),
		Format:      r.FormValue("format"),
	}
	if req.OwnerID == "" {
		writeError(w, http.StatusBadRequest, "owner_id is required")
		return
	}

	for _, fh := range r.MultipartForm.File["file"] {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("opening %s", fh.Filename))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("reading %s", fh.Filename))
			return
		}
		if len(data) == 0 {
			continue
		}
		req.Files = append(req.Files, ingest.File{Name: fh.Filename, Data: data})
	}

	res, err := h.deps.Uploader.Upload(r.Context(), req)
	switch {
	case errors.Is(err, ingest.ErrNoFiles),
		errors.Is(err, ingest.ErrUnknownFormat),
		errors.Is(err, ingest.ErrNoValidTransactions):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "account not found")
		return
	case err != nil:
		log := logging.FromContext(r.Context())
		log.Error().Err(err).Str("owner_id", req.OwnerID).Msg("upload failed")
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"accountId": res.AccountID,
		"imported":  res.Imported,
		"skipped":   res.Skipped,
		"files":     res.Files,
	})
}

type accountView struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Source          string    `json:"source"`
	InstitutionName string    `json:"institution_name,omitempty"`
	Mask            string    `json:"mask,omitempty"`
	ItemID          string    `json:"item_id,omitempty"`
	Linked          bool      `json:"linked"`
	CreatedAt       time.Time `json:"created_at"`
}

// ListAccounts handles GET /accounts?owner_id=
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner_id")
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner_id is required")
		return
	}

	accts, err := h.deps.Accounts.List(r.Context(), owner)
	if err != nil {
		log := logging.FromContext(r.Context())
		log.Error().Err(err).Msg("listing accounts")
		writeError(w, http.StatusInternalServerError, "failed to list accounts")
		return
	}

	views := make([]accountView, 0, len(accts))
	for _, a := range accts {
		views = append(views, accountView{
			ID:              a.ID,
			Name:            a.Name,
			Source:          string(a.Source),
			InstitutionName: a.InstitutionName,
			Mask:            a.Mask,
			ItemID:          a.ExternalItemID,
			Linked:          a.Linked(),
			CreatedAt:       a.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": views, "count": len(views)})
}

// DeleteAccount handles DELETE /accounts/{id}?owner_id=
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner_id")
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner_id is required")
		return
	}

	err := h.deps.Accounts.Delete(r.Context(), owner, mux.Vars(r)["id"])
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "account not found")
	case err != nil:
		log := logging.FromContext(r.Context())
		log.Error().Err(err).Msg("deleting account")
		writeError(w, http.StatusInternalServerError, "failed to delete account")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}
