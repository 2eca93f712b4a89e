package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	nativecommon "moneymarket/native/common"
	"moneymarket/native/lending"
	"moneymarket/services/lendingd/engine"
)

type errorBody struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Info   string `json:"info,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrPaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, engine.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrInvalidAmount), errors.Is(err, engine.ErrInvalidAddress):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrInsufficientCollateral):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrRejected):
		return http.StatusConflict
	case errors.Is(err, nativecommon.ErrQuotaRequestsExceeded),
		errors.Is(err, nativecommon.ErrQuotaValueCapExceeded),
		errors.Is(err, nativecommon.ErrQuotaCounterOverflow):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeEngineError reports err with the protocol's code, info and reason
// when the engine produced them. Internal failures are not echoed.
func writeEngineError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}
	if status == http.StatusInternalServerError {
		body.Error = http.StatusText(status)
	}
	var lerr *lending.Error
	if errors.As(err, &lerr) {
		body.Code = lerr.Code.String()
		body.Info = string(lerr.Info)
		if lerr.Reason != lending.ReasonNone {
			body.Reason = lerr.Reason.String()
		}
	}
	writeJSON(w, status, body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, errorBody{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
