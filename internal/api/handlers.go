// HerpAtlas - Wildlife Observation Records API
// Copyright 2026 HerpAtlas Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/herpatlas/herpatlas

// Package api provides the HTTP surface of the records service: routing,
// payload parsing, and handlers over the record writer and reader.
package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/herpatlas/herpatlas/internal/apperror"
	"github.com/herpatlas/herpatlas/internal/content"
	"github.com/herpatlas/herpatlas/internal/database"
	"github.com/herpatlas/herpatlas/internal/middleware"
	"github.com/herpatlas/herpatlas/internal/record"
	"github.com/herpatlas/herpatlas/internal/validation"
)

// Handlers holds the HTTP handlers and their collaborators.
type Handlers struct {
	writer *record.Writer
	reader *record.Reader
	store  content.Store
	db     *database.DB
	debug  bool
}

// NewHandlers wires the handler set. debug surfaces driver diagnostics in
// error responses to every caller; otherwise only privileged callers see
// them.
func NewHandlers(writer *record.Writer, reader *record.Reader, store content.Store, db *database.DB, debug bool) *Handlers {
	return &Handlers{writer: writer, reader: reader, store: store, db: db, debug: debug}
}

// listRecordsRequest is the validated query for GET /records.
type listRecordsRequest struct {
	UserID int64 `validate:"required,gt=0"`
}

// ListRecords handles GET /records?user_id={id} and the back-compat path
// alias GET /records/{user_id}.
func (h *Handlers) ListRecords(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		raw = chi.URLParam(r, "user_id")
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		respondError(w, apperror.Validation("user_id must be a positive integer"), h.debug)
		return
	}
	req := listRecordsRequest{UserID: userID}
	if appErr := validation.ValidateStruct(&req); appErr != nil {
		respondError(w, appErr, h.debug)
		return
	}

	views, err := h.reader.ListByOwner(r.Context(), req.UserID)
	if err != nil {
		respondError(w, err, h.privileged(r))
		return
	}
	respondCached(w, http.StatusOK, views)
}

// CreateRecords handles POST /records.
func (h *Handlers) CreateRecords(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.FromContext(r.Context())
	if !ok {
		respondError(w, apperror.Unauthenticated("authentication required"), h.debug)
		return
	}

	in, err := parseCreateRequest(r)
	if err != nil {
		respondError(w, err, h.privileged(r))
		return
	}

	in.OwnerID = identity.UserID
	if ownerID, ok := in.Shared.Int("owner_id"); ok && ownerID > 0 && ownerID != identity.UserID {
		// Submitting on behalf of another user needs the edit-others
		// capability.
		can, capErr := h.store.UserCan(r.Context(), identity.UserID, content.CapEditOthersRecords)
		if capErr != nil || !can {
			respondError(w, apperror.IdentityMismatch("cannot create records for another user"), h.privileged(r))
			return
		}
		in.OwnerID = ownerID
	}

	resp, err := h.writer.Create(r.Context(), in)
	if err != nil {
		respondError(w, err, h.privileged(r))
		return
	}
	if !h.privileged(r) {
		resp.Diagnostics = nil
	}
	respondJSON(w, http.StatusOK, resp)
}

// Health handles GET /healthz and GET /health. Reports overall status
// including database connectivity.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		respondError(w, apperror.Internal("database unavailable", err), h.debug)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthLive handles GET /health/live. Always succeeds while the
// process is serving; orchestrators use it to decide on restarts.
func (h *Handlers) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HealthReady handles GET /health/ready. Fails with 503 until the
// database answers, so load balancers hold traffic during startup.
func (h *Handlers) HealthReady(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// privileged reports whether error diagnostics may be shown to this
// caller: debug mode, or an authenticated identity with the debug
// capability.
func (h *Handlers) privileged(r *http.Request) bool {
	if h.debug {
		return true
	}
	identity, ok := middleware.FromContext(r.Context())
	if !ok {
		return false
	}
	can, err := h.store.UserCan(r.Context(), identity.UserID, content.CapViewDebug)
	return err == nil && can
}
