package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON / writeError so the storefront
// pages always get the same shapes:
//
//	success: the resource itself, e.g. {"code":"AB12CD34","shareUrl":"..."}
//	failure: {"error": "<human message>", "code": "<MACHINE_CODE>"}
//
// The pages show "error" in a toast and switch on "code".

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/watch-storefront/internal/apperror"
	"github.com/sakif/watch-storefront/internal/auth"
	"github.com/sakif/watch-storefront/internal/service"
)

// maxBodyBytes caps JSON request bodies. Every storefront form is tiny.
const maxBodyBytes = 1 << 20

// ErrorResponse is the error body returned by every API endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeJSON sends a JSON response with the given status code.
// Headers and status must be set before the body is written.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status.
//
// ERROR MAPPING:
//
//	apperror.ErrValidation   → 400
//	apperror.ErrUnauthorized → 401
//	apperror.ErrNotFound     → 404
//	apperror.ErrConflict     → 409
//	apperror.ErrUnavailable  → 500, message shown
//	anything else            → 500 INTERNAL_ERROR, cause logged, never echoed
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
		}

		writeJSON(w, status, ErrorResponse{Error: appErr.Message, Code: appErr.Code})
		return
	}

	// The raw error may hold SQL or file paths, so it only goes to the log.
	slog.Error("unhandled error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error: "Internal server error",
		Code:  "INTERNAL_ERROR",
	})
}

// requireUser returns the session identity, or writes a 401 carrying message
// and reports false. The wording differs between routes, so each passes its own.
func requireUser(w http.ResponseWriter, r *http.Request, message string) (auth.Identity, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("UNAUTHORIZED", message))
		return auth.Identity{}, false
	}
	return id, true
}

var errInvalidJSON = apperror.Validation("INVALID_JSON", "", "Invalid JSON body")

// decodeFields reads a JSON object body. Numbers stay json.Number so the
// services can tell 12 from "12".
func decodeFields(w http.ResponseWriter, r *http.Request) (service.Fields, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()

	var body service.Fields
	if err := dec.Decode(&body); err != nil {
		return nil, errInvalidJSON
	}
	// "null" decodes into a nil map without error.
	if body == nil {
		return nil, errInvalidJSON
	}
	// Trailing data after the object, e.g. `{}{}`.
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errInvalidJSON
	}
	return body, nil
}

// parsePage reads ?limit= and ?offset=. Missing values fall back to the
// defaults; non-numeric values, limit < 1 and offset < 0 are rejected with
// limitErr / offsetErr. The upper cap is applied later by service.Page.
func parsePage(r *http.Request, limitErr, offsetErr error) (limit, offset int, err error) {
	q := r.URL.Query()

	limit = service.DefaultListLimit
	if raw := q.Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 1 {
			return 0, 0, limitErr
		}
	}

	if raw := q.Get("offset"); raw != "" {
		if offset, err = strconv.Atoi(raw); err != nil || offset < 0 {
			return 0, 0, offsetErr
		}
	}

	return min(limit, service.MaxListLimit), offset, nil
}
