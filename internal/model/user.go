// Package model defines the data structures used throughout the application.
package model

import "time"

// User is a storefront account.
//
// Accounts are created either by email+password sign-up or by GitHub sign-in.
// A password user has PasswordHash set and GitHubID nil; a GitHub user has
// GitHubID set and may have no password at all. Both can be true once a
// password account later signs in with a GitHub profile that shares its email.
//
// PasswordHash is tagged json:"-" so it can never leak through writeJSON.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Name         string    `json:"name"      db:"name"`
	Email        string    `json:"email"     db:"email"` // lower-cased, trimmed
	PasswordHash string    `json:"-"         db:"password_hash"`
	GitHubID     *int64    `json:"-"         db:"github_id"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}
