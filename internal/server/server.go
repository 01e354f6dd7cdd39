// Package server exposes the engine over HTTP: the per-tenant ICS feed, the
// recalculation endpoint, bulk job submission, and vCard import.
package server

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tartampluch/go-hebsync/internal/config"
	"github.com/tartampluch/go-hebsync/internal/feed"
	"github.com/tartampluch/go-hebsync/internal/hebdate"
	"github.com/tartampluch/go-hebsync/internal/importer"
	"github.com/tartampluch/go-hebsync/internal/jobs"
	"github.com/tartampluch/go-hebsync/internal/model"
	"github.com/tartampluch/go-hebsync/internal/recalc"
	"github.com/tartampluch/go-hebsync/internal/store"
)

// cacheItem stores one rendered feed and its metadata for HTTP caching.
type cacheItem struct {
	data         []byte
	etag         string
	lastModified string // RFC1123 format required by HTTP headers
}

// Server wires the engine components behind an HTTP mux.
type Server struct {
	Listen   string
	Store    store.Store
	Recalc   *recalc.Recalculator
	Runner   *jobs.Runner
	Importer *importer.Importer
	Feed     *feed.Generator
	Clock    hebdate.Clock

	// feedCache holds the last successfully rendered feed per tenant. Reads
	// vastly outnumber updates, and a stale feed is better than an error
	// page when a render fails mid-day.
	feedCache sync.Map // tenantID -> *cacheItem
}

// Start initializes the HTTP server and blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(config.RouteHealth, s.handleHealth)
	mux.HandleFunc(config.RouteFeed, s.handleFeed)
	mux.HandleFunc(config.RouteRecalc, s.handleRecalculate)
	mux.HandleFunc(config.RouteSyncJob, s.handleSyncJob)
	mux.HandleFunc(config.RouteDeleteJob, s.handleDeleteJob)
	mux.HandleFunc(config.RouteImport, s.handleImport)

	srv := &http.Server{
		Addr:         s.Listen,
		Handler:      mux,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	serverError := make(chan error, config.ChannelBufferSize)

	go func() {
		slog.Info(config.MsgServerListen,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyListen, s.Listen,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverError <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info(config.MsgServerStop, config.LogKeyComponent, config.CompServer)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: %w", config.ErrServerShutdown, err)
		}
		return nil

	case err := <-serverError:
		return fmt.Errorf("%s: %w", config.ErrServerStartup, err)
	}
}

// -----------------------------------------------------------------------------
// Feed
// -----------------------------------------------------------------------------

// handleFeed serves GET /feed/{tenantID} with conditional-request support.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set(config.HeaderAllow, config.AllowedMethodsRead)
		http.Error(w, config.HTTPMsgMethodNotAll, http.StatusMethodNotAllowed)
		return
	}

	tenantID := strings.TrimPrefix(r.URL.Path, config.RouteFeed)
	if tenantID == "" || strings.Contains(tenantID, "/") {
		http.Error(w, config.HTTPMsgNotFound, http.StatusNotFound)
		return
	}

	item := s.renderFeed(r.Context(), tenantID)
	if item == nil {
		w.Header().Set(config.HeaderRetryAfter, config.RetryAfterSeconds)
		http.Error(w, config.HTTPMsgInitializing, http.StatusServiceUnavailable)
		return
	}

	w.Header().Set(config.HeaderContentType, config.MimeTextCalendar)
	w.Header().Set(config.HeaderXContentType, config.MimeNoSniff)
	w.Header().Set(config.HeaderCacheControl, config.CacheControlPrivate)
	w.Header().Set(config.HeaderETag, item.etag)
	w.Header().Set(config.HeaderLastModified, item.lastModified)

	if match := r.Header.Get(config.HeaderIfNoneMatch); match == item.etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	if since := r.Header.Get(config.HeaderIfModifiedSince); since != "" {
		if clientTime, err := time.Parse(http.TimeFormat, since); err == nil {
			if serverTime, err := time.Parse(http.TimeFormat, item.lastModified); err == nil {
				if !serverTime.After(clientTime) {
					w.WriteHeader(http.StatusNotModified)
					return
				}
			}
		}
	}

	if r.Method == http.MethodGet {
		if _, err := io.Copy(w, bytes.NewReader(item.data)); err != nil {
			slog.Error(config.ErrWriteResp,
				config.LogKeyComponent, config.CompServer,
				config.LogKeyError, err,
			)
		}
	}
}

// renderFeed generates the tenant feed, falling back to the last cached
// render on failure. Returns nil when nothing can be served at all.
func (s *Server) renderFeed(ctx context.Context, tenantID string) *cacheItem {
	data, err := s.Feed.Generate(ctx, tenantID)
	if err != nil {
		slog.Warn(config.ErrICalEncode,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyTenant, tenantID,
			config.LogKeyError, err,
		)
		if cached, ok := s.feedCache.Load(tenantID); ok {
			return cached.(*cacheItem)
		}
		return nil
	}

	hash := sha256.Sum256(data)
	item := &cacheItem{
		data:         data,
		etag:         fmt.Sprintf(config.FormatETag, hex.EncodeToString(hash[:])),
		lastModified: s.Clock.Now().UTC().Format(http.TimeFormat),
	}

	// Reuse the previous Last-Modified when content is unchanged, so
	// conditional requests keep answering 304 across re-renders.
	if cached, ok := s.feedCache.Load(tenantID); ok {
		if prev := cached.(*cacheItem); prev.etag == item.etag {
			return prev
		}
	}

	s.feedCache.Store(tenantID, item)
	slog.Debug(config.MsgCacheUpdated,
		config.LogKeyComponent, config.CompServer,
		config.LogKeyTenant, tenantID,
		config.LogKeySizeBytes, len(data),
		config.LogKeyETag, item.etag,
	)
	return item
}

// -----------------------------------------------------------------------------
// JSON API
// -----------------------------------------------------------------------------

type recalcRequest struct {
	PersonID string `json:"person_id"`

	// Previous, when supplied, is the record state before the caller's edit;
	// it drives the skip decision. Absent, the stored record decides alone.
	Previous *model.Person `json:"previous,omitempty"`

	// Force bypasses the decision and always recalculates.
	Force bool `json:"force,omitempty"`
}

type recalcResponse struct {
	Decision     string `json:"decision"`
	Recalculated bool   `json:"recalculated"`
}

// handleRecalculate evaluates whether the person's derived data needs
// recomputation and runs it when required.
func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	var req recalcRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.PersonID == "" {
		http.Error(w, config.HTTPMsgBadRequest, http.StatusBadRequest)
		return
	}

	var person model.Person
	err := s.Store.FindByID(r.Context(), config.CollectionPersons, req.PersonID, &person)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, config.HTTPMsgNotFound, http.StatusNotFound)
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}

	decision := recalc.Evaluate(req.Previous, &person, s.Clock.Now().UTC())
	run := req.Force || decision.Recalculate()
	if !run {
		slog.Debug(config.MsgRecalcSkipped,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyPerson, person.ID,
			config.LogKeyDecision, decision.String(),
		)
	} else {
		_, err = s.Recalc.Execute(r.Context(), person.ID, person.BirthDateGregorian, person.AfterSunset, person.TenantID)
		if err != nil {
			s.internalError(w, err)
			return
		}
	}

	s.writeJSON(w, recalcResponse{Decision: decision.String(), Recalculated: run})
}

type syncJobRequest struct {
	OwnerID   string   `json:"owner_id"`
	TenantID  string   `json:"tenant_id"`
	PersonIDs []string `json:"person_ids,omitempty"`
}

type jobResponse struct {
	JobID string `json:"job_id"`
}

// handleSyncJob enqueues a calendar sync job.
func (s *Server) handleSyncJob(w http.ResponseWriter, r *http.Request) {
	var req syncJobRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.OwnerID == "" || req.TenantID == "" {
		http.Error(w, config.HTTPMsgBadRequest, http.StatusBadRequest)
		return
	}

	jobID, err := s.Runner.EnqueueSync(r.Context(), req.OwnerID, req.TenantID, req.PersonIDs)
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, jobResponse{JobID: jobID})
}

// handleDeleteJob marks the tenant pending deletion and enqueues the job.
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	var req syncJobRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.OwnerID == "" || req.TenantID == "" {
		http.Error(w, config.HTTPMsgBadRequest, http.StatusBadRequest)
		return
	}

	err := s.Store.Update(r.Context(), config.CollectionTenants, req.TenantID, map[string]any{
		"deletion_status": config.DeletionStatusPending,
	})
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, config.HTTPMsgNotFound, http.StatusNotFound)
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}

	jobID, err := s.Runner.EnqueueDeletion(r.Context(), req.OwnerID, req.TenantID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, jobResponse{JobID: jobID})
}

// handleImport ingests a vCard stream for the tenant given in the query. With
// a url parameter the server fetches the resource itself; otherwise the
// request body is the vCard data.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set(config.HeaderAllow, config.AllowedMethodsWrite)
		http.Error(w, config.HTTPMsgMethodNotAll, http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	tenantID := query.Get(config.FieldTenantID)
	if tenantID == "" {
		http.Error(w, config.HTTPMsgBadRequest, http.StatusBadRequest)
		return
	}

	var (
		result importer.Result
		err    error
	)
	if remote := query.Get("url"); remote != "" {
		result, err = s.Importer.ImportURL(r.Context(), tenantID, remote, query.Get("user"), query.Get("pass"))
	} else {
		body := http.MaxBytesReader(w, r.Body, config.MaxRequestBodySize)
		result, err = s.Importer.Import(r.Context(), tenantID, body)
	}
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, result)
}

// handleHealth answers liveness probes.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(config.HeaderContentType, config.MimeJSON)
	fmt.Fprintf(w, `{"status":%q}`, config.HTTPMsgOK)
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// decodeJSON enforces POST, bounds the body and decodes it. Returns false
// after writing an error response.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	if r.Method != http.MethodPost {
		w.Header().Set(config.HeaderAllow, config.AllowedMethodsWrite)
		http.Error(w, config.HTTPMsgMethodNotAll, http.StatusMethodNotAllowed)
		return false
	}
	body := http.MaxBytesReader(w, r.Body, config.MaxRequestBodySize)
	if err := json.NewDecoder(body).Decode(out); err != nil {
		slog.Debug(config.ErrRequestDecode,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
		http.Error(w, config.HTTPMsgBadRequest, http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set(config.HeaderContentType, config.MimeJSON)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error(config.ErrWriteResp,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
	}
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	slog.Error(config.HTTPMsgInternalErr,
		config.LogKeyComponent, config.CompServer,
		config.LogKeyError, err,
	)
	http.Error(w, config.HTTPMsgInternalErr, http.StatusInternalServerError)
}
