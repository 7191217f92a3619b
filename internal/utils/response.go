package utils

import (
	"encoding/json"
	"net/http"

	"github.com/fitstudio/staff-console/internal/apperr"
	"github.com/fitstudio/staff-console/internal/models"
)

// WriteJSONResponse writes the standard response envelope. errVal may be an
// error, a string or any JSON-encodable value.
func WriteJSONResponse(w http.ResponseWriter, status int, success bool, message string, data interface{}, errVal interface{}) {
	if e, ok := errVal.(error); ok {
		errVal = e.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.APIResponse{
		Success: success,
		Message: message,
		Data:    data,
		Error:   errVal,
	})
}

// WriteWarningResponse is a successful response carrying a non-fatal warning,
// e.g. a notification that could not be delivered after a committed decision.
func WriteWarningResponse(w http.ResponseWriter, status int, message string, data interface{}, warning string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
		Warning: warning,
	})
}

type errorBody struct {
	Code     apperr.Code `json:"code"`
	Rule     string      `json:"rule,omitempty"`
	Detalles []string    `json:"detalles,omitempty"`
	Data     interface{} `json:"data,omitempty"`
}

// WriteError renders err as an itemized envelope. Internal errors never leak
// their cause; it is the caller's job to log it.
func WriteError(w http.ResponseWriter, err error) {
	e, ok := apperr.From(err)
	if !ok {
		e = apperr.Wrap(err, apperr.CodeInternal, "internal error")
	}
	body := errorBody{Code: e.Code, Rule: e.Rule, Detalles: e.Details, Data: e.Data}
	msg := e.Message
	if e.Code == apperr.CodeInternal {
		msg = "internal error"
		body.Data = nil
	}
	WriteJSONResponse(w, e.HTTPStatus(), false, msg, nil, body)
}
