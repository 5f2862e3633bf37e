package supabase

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// PostgREST error codes the route layer special-cases.
const (
	// codeNoRows: a .Single() query matched zero rows.
	codeNoRows = "PGRST116"
	// codeMissingTable: the relation does not exist in the schema cache.
	codeMissingTable = "PGRST205"
)

// Error is a PostgREST error payload. Message is surfaced verbatim to HTTP
// callers (see the API error handler); Code drives the compatibility shims.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
	Status  int    `json:"-"`
}

func (e *Error) Error() string { return e.Message }

// IsNoRows reports whether err is a PostgREST "zero rows for a single-row
// request" error.
func IsNoRows(err error) bool {
	e, ok := errors.Cause(err).(*Error)
	return ok && e.Code == codeNoRows
}

// IsMissingTable reports whether err is a PostgREST "relation does not exist"
// error. Callers treat an unprovisioned table the same as an empty one.
func IsMissingTable(err error) bool {
	e, ok := errors.Cause(err).(*Error)
	return ok && e.Code == codeMissingTable
}

// AuthError is a GoTrue error. Status is the upstream HTTP status; the route
// layer decides the proxy-level status (400 on signup, 401 on login).
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string { return e.Message }

// IsAuthError extracts an AuthError from err if there is one.
func IsAuthError(err error) (*AuthError, bool) {
	e, ok := errors.Cause(err).(*AuthError)
	return e, ok
}

func restError(resp *http.Response) error {
	data, _ := readBody(resp)
	e := &Error{Status: resp.StatusCode}
	_ = json.Unmarshal(data, e)
	if e.Message == "" {
		e.Message = strings.TrimSpace(string(data))
	}
	if e.Message == "" {
		e.Message = resp.Status
	}
	return e
}

// GoTrue spells its error message differently across endpoints and versions.
func authError(resp *http.Response) error {
	data, _ := readBody(resp)
	var payload struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
		ErrorField       string `json:"error"`
	}
	_ = json.Unmarshal(data, &payload)
	msg := payload.Msg
	for _, alt := range []string{payload.Message, payload.ErrorDescription, payload.ErrorField} {
		if msg == "" {
			msg = alt
		}
	}
	if msg == "" {
		msg = resp.Status
	}
	return &AuthError{Status: resp.StatusCode, Message: msg}
}
