// Package auth is the storefront's session collaborator: it issues and checks
// session tokens, hashes passwords, and runs GitHub sign-in.
//
// SESSION FLOW:
//  1. A user signs up, signs in, or completes GitHub sign-in.
//  2. The server issues a signed JWT carrying the user's Identity and stores it
//     in the HttpOnly "session" cookie (it is also returned in the body for
//     clients that prefer an Authorization: Bearer header).
//  3. On every request, the Session middleware resolves the token back into an
//     Identity and puts it in the request context.
//  4. Handlers read it with IdentityFromContext and decide for themselves
//     whether a missing identity is an error.
//
// The token is self-contained, so resolving a session never touches the database.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "watch-storefront"

// Session lifetimes. A "remember me" sign-in keeps the cookie for the long
// duration; otherwise the cookie lives for the browser session and the token
// still expires after a day.
const (
	SessionTTL    = 24 * time.Hour
	RememberMeTTL = 30 * 24 * time.Hour
)

// ErrInvalidToken is returned by Validate for every kind of bad token:
// malformed, expired, wrong signature, wrong issuer, missing subject.
var ErrInvalidToken = errors.New("auth: invalid session token")

// Identity is who a request is acting as.
type Identity struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// TokenService creates and validates HS256 session tokens.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret), now: time.Now}, nil
}

// claims is the JWT payload. "sub" holds the user ID; email and name ride
// along so handlers never need a user lookup to know who is calling.
type claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// Generate signs a session token for id that expires after ttl.
func (s *TokenService) Generate(id Identity, ttl time.Duration) (string, error) {
	if id.UserID == "" {
		return "", errors.New("auth: cannot issue a token without a user ID")
	}

	now := s.now()
	c := claims{
		Email: id.Email,
		Name:  id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a session token and returns its Identity.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - signature is valid HS256 (jwt.WithValidMethods blocks "alg: none" tricks)
//   - token has an expiry and it is in the future
//   - issuer is ours
func (s *TokenService) Validate(tokenStr string) (Identity, error) {
	var c claims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&c,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || c.Subject == "" {
		return Identity{}, ErrInvalidToken
	}

	return Identity{UserID: c.Subject, Email: c.Email, Name: c.Name}, nil
}
