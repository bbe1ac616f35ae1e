// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/tideline/internal/models"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is one failed rule on one field.
type FieldError struct {
	field   string
	tag     string
	param   string
	message string
}

// Field is the JSON name of the field.
func (e *FieldError) Field() string { return e.field }

// Tag is the failed rule, e.g. "email" or "max".
func (e *FieldError) Tag() string { return e.tag }

// Param is the rule parameter, e.g. "254" for max=254.
func (e *FieldError) Param() string { return e.param }

func (e *FieldError) Error() string { return e.message }

// RequestValidationError holds every failure of one input struct.
type RequestValidationError struct {
	errors []FieldError
}

// Errors returns the failures in field order.
func (ve *RequestValidationError) Errors() []FieldError { return ve.errors }

func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(ve.errors))
	for i := range ve.errors {
		msgs[i] = ve.errors[i].message
	}
	return strings.Join(msgs, "; ")
}

// ToModelError reports the first failure as the engine's validation error.
func (ve *RequestValidationError) ToModelError() *models.ValidationError {
	if len(ve.errors) == 0 {
		return &models.ValidationError{Field: "unknown", Reason: "validation failed"}
	}
	return &models.ValidationError{Field: ve.errors[0].field, Reason: ve.errors[0].message}
}

// GetValidator returns the shared validator with the account rules
// registered:
//
//	account_status  one of models.Status
//	account_role    one of models.Role
//	document_id     usable as a document ID (non-blank, no "/")
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(jsonFieldName)

		rules := map[string]validator.Func{
			"account_status": func(fl validator.FieldLevel) bool {
				return models.Status(fl.Field().String()).IsValid()
			},
			"account_role": func(fl validator.FieldLevel) bool {
				return models.Role(fl.Field().String()).IsValid()
			},
			"document_id": func(fl validator.FieldLevel) bool {
				id := fl.Field().String()
				return strings.TrimSpace(id) != "" && !strings.Contains(id, "/")
			},
		}
		for tag, fn := range rules {
			if err := v.RegisterValidation(tag, fn); err != nil {
				panic(fmt.Sprintf("register %s: %v", tag, err))
			}
		}
		validate = v
	})
	return validate
}

// jsonFieldName makes failures name fields the way request bodies do.
func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return fld.Name
	}
	return name
}

// ValidateStruct checks s against its validate tags and returns nil when it
// passes.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &RequestValidationError{errors: []FieldError{{field: "unknown", tag: "unknown", message: err.Error()}}}
	}

	out := make([]FieldError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, FieldError{
			field:   fe.Field(),
			tag:     fe.Tag(),
			param:   fe.Param(),
			message: message(fe),
		})
	}
	return &RequestValidationError{errors: out}
}

var fixedMessages = map[string]string{
	"required":       "is required",
	"email":          "must be a valid email address",
	"url":            "must be a valid URL",
	"e164":           "must be an E.164 phone number",
	"account_status": "must be one of: active, inactive, suspended, pending",
	"account_role":   "must be one of: user, admin, super_admin",
	"document_id":    "must be a non-blank ID without '/'",
}

func message(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()
	if m, ok := fixedMessages[fe.Tag()]; ok {
		return field + " " + m
	}

	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	case "min":
		return fmt.Sprintf("%s must be at least %s%s", field, param, unit)
	case "max":
		return fmt.Sprintf("%s must be at most %s%s", field, param, unit)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
