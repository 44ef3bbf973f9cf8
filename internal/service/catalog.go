package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/watch-storefront/internal/apperror"
	"github.com/sakif/watch-storefront/internal/metrics"
	"github.com/sakif/watch-storefront/internal/model"
	"github.com/sakif/watch-storefront/internal/repository"
)

// CatalogService records and lists catalog downloads.
type CatalogService struct {
	downloads repository.CatalogRepository
	logger    *slog.Logger
}

func NewCatalogService(downloads repository.CatalogRepository, logger *slog.Logger) *CatalogService {
	return &CatalogService{downloads: downloads, logger: logger}
}

// RecordDownload stores one download of the catalog named in body.
//
// userID is the caller's session user, or "" for an anonymous caller.
//
// RULES, in order:
//  1. catalogType must be present (MISSING_CATALOG_TYPE) and be "public" or
//     "premium" (INVALID_CATALOG_TYPE).
//  2. premium needs a session (AUTHENTICATION_REQUIRED); the row belongs to
//     the user.
//  3. public with a session belongs to the user and ignores any email.
//  4. public without a session needs an email (EMAIL_REQUIRED), stored
//     lower-cased and trimmed.
func (s *CatalogService) RecordDownload(ctx context.Context, userID string, body Fields) (*model.CatalogDownload, error) {
	if body.Null("catalogType") {
		return nil, apperror.Validation("MISSING_CATALOG_TYPE", "catalogType", "catalogType is required")
	}
	raw, isString := body.String("catalogType")
	if isString && raw == "" {
		return nil, apperror.Validation("MISSING_CATALOG_TYPE", "catalogType", "catalogType is required")
	}
	catalogType := model.CatalogType(raw)
	if !isString || !catalogType.Valid() {
		return nil, apperror.Validation("INVALID_CATALOG_TYPE", "catalogType", `catalogType must be either "public" or "premium"`)
	}

	download := &model.CatalogDownload{CatalogType: catalogType}

	switch {
	case userID != "":
		download.UserID = &userID
	case catalogType == model.CatalogPremium:
		return nil, apperror.Unauthorized("AUTHENTICATION_REQUIRED", "Premium catalog requires authentication")
	default:
		email, ok := body.NonEmptyString("email")
		if !ok {
			return nil, apperror.Validation("EMAIL_REQUIRED", "email", "Email is required for public catalog download")
		}
		email = NormalizeEmail(email)
		download.Email = &email
	}

	if err := s.downloads.CreateDownload(ctx, download); err != nil {
		s.logger.Error("failed to record catalog download",
			slog.String("catalogType", string(catalogType)),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("recording catalog download: %w", err)
	}

	metrics.RecordCatalogDownload(string(catalogType))
	s.logger.Info("catalog download recorded",
		slog.String("id", download.ID),
		slog.String("catalogType", string(catalogType)),
		slog.Bool("anonymous", download.UserID == nil),
	)

	return download, nil
}

// ListDownloads returns a page of the user's downloads, newest first.
func (s *CatalogService) ListDownloads(ctx context.Context, userID string, limit, offset int) ([]model.CatalogDownload, error) {
	downloads, err := s.downloads.ListDownloadsByUser(ctx, userID, Page(limit, offset))
	if err != nil {
		s.logger.Error("failed to list catalog downloads",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing catalog downloads: %w", err)
	}
	return downloads, nil
}
