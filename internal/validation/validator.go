// HerpAtlas - Wildlife Observation Records API
// Copyright 2026 HerpAtlas Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/herpatlas/herpatlas

// Package validation provides struct validation using
// go-playground/validator v10 through a thread-safe singleton instance,
// translating field errors into the API's structured error format.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/herpatlas/herpatlas/internal/apperror"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// GetValidator returns the singleton validator instance. The instance is
// initialized once and caches struct metadata, so it must be shared.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateStruct validates s and returns a structured validation error
// listing every failing field, or nil when validation passes.
func ValidateStruct(s any) *apperror.Error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperror.Validation("validation failed: %s", err.Error())
	}

	if len(fieldErrs) == 1 {
		fe := fieldErrs[0]
		return apperror.Validation("%s", translateError(fe)).
			With("field", fe.Field()).
			With("tag", fe.Tag())
	}

	messages := make([]string, len(fieldErrs))
	fields := make([]map[string]any, len(fieldErrs))
	for i, fe := range fieldErrs {
		messages[i] = translateError(fe)
		fields[i] = map[string]any{
			"field":   fe.Field(),
			"tag":     fe.Tag(),
			"message": messages[i],
		}
	}
	return apperror.Validation("%s", strings.Join(messages, "; ")).
		With("fields", fields)
}

// errorMessageTemplates maps parameter-less validation tags to message
// templates.
var errorMessageTemplates = map[string]string{
	"required":  "%s is required",
	"latitude":  "%s must be a valid latitude (-90 to 90)",
	"longitude": "%s must be a valid longitude (-180 to 180)",
	"datetime":  "%s must be a valid date/time",
}

// errorMessageWithParam maps validation tags to templates that include
// the tag parameter.
var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"gt":    "%s must be greater than %s",
	"lt":    "%s must be less than %s",
	"min":   "%s must be at least %s",
	"max":   "%s must be at most %s",
}

func translateError(fe validator.FieldError) string {
	if template, ok := errorMessageTemplates[fe.Tag()]; ok {
		return fmt.Sprintf(template, fe.Field())
	}
	if template, ok := errorMessageWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(template, fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}
