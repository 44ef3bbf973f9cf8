// Package service contains the storefront's business rules.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, enforces rules, orchestrates
//	Repository (data layer)  → reads/writes the database
//
// Services take primitives (user IDs, strings, decoded JSON fields), never
// *http.Request, and return apperror values the handler translates into
// status codes. They depend on the repository interfaces, not on sqlite, so
// tests run them against in-memory fakes.
package service

import (
	"encoding/json"
	"strings"

	"github.com/sakif/watch-storefront/internal/repository"
)

// Pagination limits shared by every list endpoint.
const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// Fields is a decoded JSON object body. Numbers must be decoded as
// json.Number (Decoder.UseNumber) so amounts keep their exact text.
//
// Some rules depend on the JSON type the client sent ("12" vs 12), which a
// typed struct would erase, so those services read from Fields directly.
type Fields map[string]any

// Has reports whether key is present at all, whatever its value.
func (f Fields) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// String returns the value at key if it is a JSON string.
func (f Fields) String(key string) (string, bool) {
	s, ok := f[key].(string)
	return s, ok
}

// NonEmptyString returns the trimmed string at key, or false when the key is
// missing, not a string, or blank.
func (f Fields) NonEmptyString(key string) (string, bool) {
	s, ok := f.String(key)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// Number returns the value at key if it is a JSON number.
func (f Fields) Number(key string) (json.Number, bool) {
	n, ok := f[key].(json.Number)
	return n, ok
}

// Null reports whether key is absent or explicitly null.
func (f Fields) Null(key string) bool {
	v, ok := f[key]
	return !ok || v == nil
}

// NormalizeEmail trims and lower-cases an email address. Every email the
// storefront stores or compares goes through here.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Page clamps a requested page into the allowed range. Callers validate the
// raw query values first; Page only applies the default and the cap.
func Page(limit, offset int) repository.ListOptions {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return repository.ListOptions{Limit: limit, Offset: offset}
}
