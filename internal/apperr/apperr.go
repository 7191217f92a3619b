// Package apperr carries typed application errors from services to transport.
//
// Services return *Error values built with the constructors below. Handlers use
// HTTPStatus and the exported fields to render an itemized response so the
// caller can show exactly which items failed.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation   Code = "validation"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeBusinessRule Code = "business_rule"
	CodeInternal     Code = "internal"
)

// Business rules reported under CodeBusinessRule.
const (
	RuleChecklistIncomplete  = "checklist_incomplete"
	RuleConfirmationRequired = "confirmation_required"
	RuleInvalidState         = "invalid_state"
	RuleInvalidTransition    = "invalid_transition"
)

type Error struct {
	Code    Code
	Message string
	// Rule names the failed business rule when Code is CodeBusinessRule.
	Rule string
	// Details lists itemized validation failures.
	Details []string
	// Data is structured context for the caller, e.g. failing checklist items.
	Data interface{}
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeValidation, CodeBusinessRule:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

func Validation(msg string, details ...string) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

func BusinessRule(rule, msg string, data interface{}) *Error {
	return &Error{Code: CodeBusinessRule, Rule: rule, Message: msg, Data: data}
}

func NotFound(what string) *Error {
	return &Error{Code: CodeNotFound, Message: what + " not found"}
}

// From extracts the first *Error in err's chain.
func From(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func HasCode(err error, code Code) bool {
	e, ok := From(err)
	return ok && e.Code == code
}

func HasRule(err error, rule string) bool {
	e, ok := From(err)
	return ok && e.Code == CodeBusinessRule && e.Rule == rule
}
