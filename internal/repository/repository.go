// Package repository declares the storage contracts the service layer depends on.
//
// Services only ever see these interfaces; internal/repository/sqlite provides
// the production implementation and tests substitute in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/watch-storefront/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
	// LinkGitHub attaches a GitHub account to an existing user.
	LinkGitHub(ctx context.Context, userID string, githubID int64) error
}

type CatalogRepository interface {
	CreateDownload(ctx context.Context, download *model.CatalogDownload) error
	// ListDownloadsByUser returns the user's downloads, newest first.
	ListDownloadsByUser(ctx context.Context, userID string, opts ListOptions) ([]model.CatalogDownload, error)
	CountDownloadsReferredBy(ctx context.Context, referrerID string) (int, error)
	ReferredDownloadExists(ctx context.Context, email, referrerID string) (bool, error)
}

type PurchaseRepository interface {
	CreatePurchase(ctx context.Context, purchase *model.Purchase) error
	// ListPurchasesByUser returns the user's purchases ordered by purchase date, newest first.
	ListPurchasesByUser(ctx context.Context, userID string, opts ListOptions) ([]model.Purchase, error)
	CountPurchasesByUser(ctx context.Context, userID string) (int, error)
}

// Conflict codes returned by ReferralRepository.CreateReferralCode. Callers
// tell them apart with apperror.CodeOf: a taken code means "generate
// another", an existing owner means another request already created this
// user's code.
const (
	CodeReferralCodeTaken  = "REFERRAL_CODE_TAKEN"
	CodeReferralUserExists = "REFERRAL_USER_EXISTS"
)

type ReferralRepository interface {
	CreateReferralCode(ctx context.Context, ref *model.ReferralCode) error
	GetReferralCodeByUser(ctx context.Context, userID string) (*model.ReferralCode, error)
	GetReferralCodeByCode(ctx context.Context, code string) (*model.ReferralCode, error)
	ReferralCodeExists(ctx context.Context, code string) (bool, error)
}
