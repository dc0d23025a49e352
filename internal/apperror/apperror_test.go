// HerpAtlas - Wildlife Observation Records API
// Copyright 2026 HerpAtlas Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/herpatlas/herpatlas

package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/goccy/go-json"
)

func TestConstructorsCarryStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    *Error
		code   string
		status int
	}{
		{"validation", Validation("bad input"), CodeValidation, http.StatusBadRequest},
		{"not found", NotFound("species %q not found", "x"), CodeNotFound, http.StatusBadRequest},
		{"lock timeout", LockTimeout("records"), CodeLockTimeout, http.StatusServiceUnavailable},
		{"storage write", StorageWrite("insert failed", errors.New("disk full")), CodeStorageWrite, http.StatusInternalServerError},
		{"unauthenticated", Unauthenticated("no token"), CodeAuthorization, http.StatusUnauthorized},
		{"identity mismatch", IdentityMismatch("not yours"), CodeAuthorization, http.StatusBadRequest},
		{"external dependency", ExternalDependency("type %q unregistered", "record"), CodeExternalDependency, http.StatusInternalServerError},
		{"internal", Internal("boom", errors.New("cause")), CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("code = %q, want %q", tt.err.Code, tt.code)
			}
			if tt.err.Status() != tt.status {
				t.Errorf("status = %d, want %d", tt.err.Status(), tt.status)
			}
		})
	}
}

func TestDiagnoseGatesCause(t *testing.T) {
	err := StorageWrite("insert failed", errors.New("UNIQUE constraint failed: records.id"))

	raw, marshalErr := json.Marshal(err)
	if marshalErr != nil {
		t.Fatalf("marshal: %v", marshalErr)
	}
	var body map[string]any
	if unmarshalErr := json.Unmarshal(raw, &body); unmarshalErr != nil {
		t.Fatalf("unmarshal: %v", unmarshalErr)
	}
	data := body["data"].(map[string]any)
	if _, leaked := data["cause"]; leaked {
		t.Error("driver cause serialized without Diagnose")
	}

	err.Diagnose()
	if err.Data["cause"] != "UNIQUE constraint failed: records.id" {
		t.Errorf("Diagnose did not surface the cause: %v", err.Data)
	}
}

func TestFromAndIsCode(t *testing.T) {
	appErr := NotFound("missing")
	if From(appErr) != appErr {
		t.Error("From should pass structured errors through")
	}

	wrapped := fmt.Errorf("animal 1: %w", appErr)
	if From(wrapped) != appErr {
		t.Error("From should unwrap to the structured error")
	}
	if !IsCode(wrapped, CodeNotFound) {
		t.Error("IsCode should see through wrapping")
	}
	if IsCode(wrapped, CodeValidation) {
		t.Error("IsCode matched the wrong code")
	}

	plain := errors.New("something broke")
	converted := From(plain)
	if converted.Code != CodeInternal {
		t.Errorf("plain errors convert to %q, want internal_error", converted.Code)
	}
	if !errors.Is(converted, plain) {
		t.Error("conversion should keep the cause chain")
	}
	if IsCode(plain, CodeInternal) {
		t.Error("IsCode on a plain error should be false")
	}
}

func TestWireShape(t *testing.T) {
	err := Validation("user_id must be a positive integer")
	raw, marshalErr := json.Marshal(err)
	if marshalErr != nil {
		t.Fatalf("marshal: %v", marshalErr)
	}
	var body struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Data    map[string]any `json:"data"`
	}
	if unmarshalErr := json.Unmarshal(raw, &body); unmarshalErr != nil {
		t.Fatalf("unmarshal: %v", unmarshalErr)
	}
	if body.Code != "validation_error" || body.Message == "" {
		t.Errorf("body = %+v", body)
	}
	if status, _ := body.Data["status"].(float64); int(status) != 400 {
		t.Errorf("data.status = %v, want 400", body.Data["status"])
	}
}
