// HerpAtlas - Wildlife Observation Records API
// Copyright 2026 HerpAtlas Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/herpatlas/herpatlas

package api

import (
	"hash/fnv"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/herpatlas/herpatlas/internal/apperror"
	"github.com/herpatlas/herpatlas/internal/logging"
)

// respondJSON writes v as a JSON response.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("failed to write JSON response")
	}
}

// respondCached writes v as JSON with an ETag and a short public
// cache window. Used on read endpoints; survey lists change rarely
// enough that a minute of client caching is safe.
func respondCached(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.Header().Set("Vary", "Accept-Encoding")
	w.Header().Set("ETag", etagFor(data))

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("failed to write JSON response")
	}
}

// etagFor derives a weak content tag from the response body.
func etagFor(data []byte) string {
	h := fnv.New32a()
	h.Write(data)
	return strconv.FormatUint(uint64(h.Sum32()), 16)
}

// respondError writes err as a structured error body. The HTTP status
// comes from the error's data. Underlying driver diagnostics are surfaced
// only when privileged is true.
func respondError(w http.ResponseWriter, err error, privileged bool) {
	appErr := apperror.From(err)
	if privileged {
		appErr = appErr.Diagnose()
	}
	logging.Error().
		Str("code", appErr.Code).
		Int("status", appErr.Status()).
		Str("message", appErr.Message).
		Msg("request failed")
	respondJSON(w, appErr.Status(), appErr)
}
