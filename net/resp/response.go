package resp

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ncobase/runpod/ecode"
)

// Exception is a failed reply: the HTTP status plus the body written by Fail.
type Exception struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Errors  any    `json:"errors,omitempty"`
}

func (e *Exception) Error() string { return e.Message }

func newException(status, code int, message string, errs ...any) *Exception {
	ex := &Exception{Status: status, Code: code, Message: message}
	if len(errs) > 0 {
		ex.Errors = errs[0]
	}
	return ex
}

// Success writes data with 200. A string is sent as {"message": ...},
// nothing at all as {"message": "ok"}.
func Success(w http.ResponseWriter, data ...any) {
	var body any = map[string]any{"message": "ok"}
	if len(data) > 0 && data[0] != nil {
		if msg, ok := data[0].(string); ok {
			body = map[string]any{"message": msg}
		} else {
			body = data[0]
		}
	}
	writeJSON(w, http.StatusOK, body)
}

// Fail writes ex as {code, message, errors}. Missing parts default to a
// bad request; nil is an internal error.
func Fail(w http.ResponseWriter, ex *Exception) {
	if ex == nil {
		ex = newException(http.StatusInternalServerError, ecode.ServerErr, ecode.Text(ecode.ServerErr))
	}
	out := *ex
	if out.Status == 0 {
		out.Status = http.StatusBadRequest
	}
	if out.Code == 0 {
		out.Code = ecode.RequestErr
	}
	if out.Message == "" {
		out.Message = ecode.Text(out.Code)
	}
	writeJSON(w, out.Status, &out)
}

// FromError maps an error carrying a business code to an Exception.
func FromError(err error) *Exception {
	var ex *Exception
	if errors.As(err, &ex) {
		return ex
	}
	code := ecode.Of(err)
	return newException(ecode.ToHTTPStatus(code), code, err.Error())
}

func writeJSON(w http.ResponseWriter, code int, res any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		http.Error(w, "Failed to encode JSON response", http.StatusInternalServerError)
	}
}
