package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/sakif/watch-storefront/internal/apperror"
	"github.com/sakif/watch-storefront/internal/auth"
	"github.com/sakif/watch-storefront/internal/model"
	"github.com/sakif/watch-storefront/internal/repository"
)

// AccountService owns storefront accounts: email sign-up and sign-in,
// GitHub sign-in, and session issuing.
//
//	AccountHandler (HTTP) → AccountService → UserRepository (DB)
//	                                       ↘ TokenService (JWT), PasswordService (bcrypt)
type AccountService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAccountService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles a signed-in user with their session token so the
// handler can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
	// Persistent is false for a browser-session cookie (sign-in without
	// "remember me").
	Persistent bool
	TTL        time.Duration
}

var errInvalidCredentials = apperror.Unauthorized("INVALID_EMAIL_OR_PASSWORD", "Invalid email or password")

// SignUp creates a password account and signs it in.
func (s *AccountService) SignUp(ctx context.Context, name, email, password string) (*AuthResult, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)

	if name == "" || email == "" || password == "" {
		return nil, apperror.Validation("MISSING_FIELDS", "", "Name, email and password are required")
	}
	if !validEmail(email) {
		return nil, apperror.Validation("INVALID_EMAIL", "email", "Email address is not valid")
	}
	if len(password) < auth.MinPasswordLength {
		return nil, apperror.Validation("PASSWORD_TOO_SHORT", "password",
			fmt.Sprintf("Password must be at least %d characters", auth.MinPasswordLength))
	}
	if len(password) > auth.MaxPasswordLength {
		return nil, apperror.Validation("PASSWORD_TOO_LONG", "password",
			fmt.Sprintf("Password must be at most %d characters", auth.MaxPasswordLength))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &model.User{Name: name, Email: email, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.Conflict("USER_ALREADY_EXISTS", "User already exists. Use another email.")
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("account created", slog.String("userID", user.ID))
	return s.issue(user, true)
}

// SignIn checks an email and password. Unknown emails and wrong passwords
// get the same error so callers cannot probe for accounts.
func (s *AccountService) SignIn(ctx context.Context, email, password string, rememberMe bool) (*AuthResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, errInvalidCredentials
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}

	s.logger.Info("user signed in", slog.String("userID", user.ID), slog.Bool("rememberMe", rememberMe))
	return s.issue(user, rememberMe)
}

// LoginOrRegisterGitHub signs in the user behind a GitHub profile.
//
// LOOKUP ORDER:
//  1. a user already linked to this GitHub ID
//  2. a user with the same email, which gets linked now
//  3. otherwise a new user, created without a password
func (s *AccountService) LoginOrRegisterGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil {
		return nil, errors.New("GitHub user must not be nil")
	}

	user, err := s.users.GetUserByGitHubID(ctx, gh.ID)
	if err == nil {
		return s.issue(user, true)
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("looking up GitHub user %d: %w", gh.ID, err)
	}

	email := NormalizeEmail(gh.Email)
	user, err = s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if err := s.users.LinkGitHub(ctx, user.ID, gh.ID); err != nil {
			return nil, fmt.Errorf("linking GitHub account %d: %w", gh.ID, err)
		}
		githubID := gh.ID
		user.GitHubID = &githubID
		s.logger.Info("GitHub account linked", slog.String("userID", user.ID), slog.Int64("githubID", gh.ID))

	case errors.Is(err, apperror.ErrNotFound):
		githubID := gh.ID
		user = &model.User{Name: gh.DisplayName(), Email: email, GitHubID: &githubID}
		if err := s.users.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("creating user for GitHub account %d: %w", gh.ID, err)
		}
		s.logger.Info("account created via GitHub", slog.String("userID", user.ID), slog.Int64("githubID", gh.ID))

	default:
		return nil, fmt.Errorf("looking up user by email: %w", err)
	}

	return s.issue(user, true)
}

// GetUserByID returns the user for the given internal ID.
func (s *AccountService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.Unauthorized("UNAUTHORIZED", "Unauthorized")
	}
	return s.users.GetUserByID(ctx, id)
}

func (s *AccountService) issue(user *model.User, persistent bool) (*AuthResult, error) {
	ttl := auth.SessionTTL
	if persistent {
		ttl = auth.RememberMeTTL
	}

	token, err := s.tokens.Generate(auth.Identity{UserID: user.ID, Email: user.Email, Name: user.Name}, ttl)
	if err != nil {
		return nil, fmt.Errorf("issuing session for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token, Persistent: persistent, TTL: ttl}, nil
}

// validEmail accepts a bare address ("ana@example.com"), not a display-name
// form ("Ana <ana@example.com>").
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && strings.Contains(email[strings.LastIndex(email, "@"):], ".")
}
