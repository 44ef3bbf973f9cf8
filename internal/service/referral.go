package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/sakif/watch-storefront/internal/apperror"
	"github.com/sakif/watch-storefront/internal/metrics"
	"github.com/sakif/watch-storefront/internal/model"
	"github.com/sakif/watch-storefront/internal/repository"
)

const (
	// CodeLength and CodeAlphabet define a referral code: 8 characters of [A-Z0-9].
	CodeLength   = 8
	CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// MaxCodeAttempts bounds the generate-until-unique loop.
	MaxCodeAttempts = 10

	// PremiumUnlockThreshold is how many referred downloads unlock the premium catalog.
	PremiumUnlockThreshold = 3
)

// ErrCodeSpaceExhausted means every generated code collided with a stored one.
var ErrCodeSpaceExhausted = errors.New("failed to generate unique referral code after maximum attempts")

// RandomCode returns a fresh referral code. It is the default code source.
func RandomCode() string {
	b := make([]byte, CodeLength)
	for i := range b {
		b[i] = CodeAlphabet[rand.IntN(len(CodeAlphabet))]
	}
	return string(b)
}

// ReferralLink is a user's code plus the URL they share.
type ReferralLink struct {
	Code     string `json:"code"`
	ShareURL string `json:"shareUrl"`
}

// ReferralStats is how many downloads a user has referred.
type ReferralStats struct {
	TotalReferrals  int  `json:"totalReferrals"`
	PremiumUnlocked bool `json:"premiumUnlocked"`
}

// ReferralService issues referral codes, credits referred downloads, and
// reports progress toward the premium unlock.
type ReferralService struct {
	referrals repository.ReferralRepository
	downloads repository.CatalogRepository
	appURL    string
	logger    *slog.Logger

	// newCode is the code source. Tests swap it for a deterministic one.
	newCode func() string
}

// NewReferralService creates a ReferralService. appURL is the public site
// root that share links point at.
func NewReferralService(
	referrals repository.ReferralRepository,
	downloads repository.CatalogRepository,
	appURL string,
	logger *slog.Logger,
) *ReferralService {
	return &ReferralService{
		referrals: referrals,
		downloads: downloads,
		appURL:    strings.TrimRight(appURL, "/"),
		logger:    logger,
		newCode:   RandomCode,
	}
}

// WithCodeSource replaces the random code generator. Used by tests to force
// collisions.
func (s *ReferralService) WithCodeSource(next func() string) *ReferralService {
	s.newCode = next
	return s
}

func (s *ReferralService) link(code string) ReferralLink {
	return ReferralLink{Code: code, ShareURL: s.appURL + "/catalog?ref=" + code}
}

// GetOrCreateCode returns the user's referral link, creating the code on
// first use. created is false when the user already had one.
func (s *ReferralService) GetOrCreateCode(ctx context.Context, userID string) (link ReferralLink, created bool, err error) {
	existing, err := s.referrals.GetReferralCodeByUser(ctx, userID)
	switch {
	case err == nil:
		return s.link(existing.Code), false, nil
	case !errors.Is(err, apperror.ErrNotFound):
		return ReferralLink{}, false, fmt.Errorf("looking up referral code for user %s: %w", userID, err)
	}

	for attempt := 1; attempt <= MaxCodeAttempts; attempt++ {
		code := s.newCode()

		taken, err := s.referrals.ReferralCodeExists(ctx, code)
		if err != nil {
			return ReferralLink{}, false, fmt.Errorf("checking referral code: %w", err)
		}
		if taken {
			continue
		}

		ref := &model.ReferralCode{UserID: userID, Code: code}
		err = s.referrals.CreateReferralCode(ctx, ref)
		switch apperror.CodeOf(err) {
		case "":
			if err != nil {
				return ReferralLink{}, false, fmt.Errorf("creating referral code: %w", err)
			}
			metrics.RecordReferralCodeIssued()
			s.logger.Info("referral code issued",
				slog.String("userID", userID),
				slog.String("code", code),
				slog.Int("attempt", attempt),
			)
			return s.link(code), true, nil

		case repository.CodeReferralCodeTaken:
			// Another user took the code between the check and the insert.
			continue

		case repository.CodeReferralUserExists:
			// A concurrent request for the same user won; hand back its code.
			winner, err := s.referrals.GetReferralCodeByUser(ctx, userID)
			if err != nil {
				return ReferralLink{}, false, fmt.Errorf("loading concurrently created referral code: %w", err)
			}
			return s.link(winner.Code), false, nil

		default:
			return ReferralLink{}, false, fmt.Errorf("creating referral code: %w", err)
		}
	}

	s.logger.Error("referral code space exhausted",
		slog.String("userID", userID),
		slog.Int("attempts", MaxCodeAttempts),
	)
	return ReferralLink{}, false, ErrCodeSpaceExhausted
}

// Stats counts downloads credited to the user.
func (s *ReferralService) Stats(ctx context.Context, userID string) (ReferralStats, error) {
	total, err := s.downloads.CountDownloadsReferredBy(ctx, userID)
	if err != nil {
		return ReferralStats{}, fmt.Errorf("counting referrals: %w", err)
	}
	return ReferralStats{
		TotalReferrals:  total,
		PremiumUnlocked: total >= PremiumUnlockThreshold,
	}, nil
}

// Track credits an anonymous public download to the owner of code.
//
// A given email can credit a given referrer only once: a repeat is
// ALREADY_REFERRED. The existence check gives the friendly answer in the
// common case and the unique index in the database settles races.
func (s *ReferralService) Track(ctx context.Context, code, email, name string) error {
	code = strings.TrimSpace(code)
	email = NormalizeEmail(email)
	name = strings.TrimSpace(name)

	switch {
	case code == "":
		return apperror.Validation("MISSING_FIELDS", "referralCode", "Referral code is required")
	case email == "":
		return apperror.Validation("MISSING_FIELDS", "email", "Email is required")
	case name == "":
		return apperror.Validation("MISSING_FIELDS", "name", "Name is required")
	}

	ref, err := s.referrals.GetReferralCodeByCode(ctx, code)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.NotFound("INVALID_REFERRAL_CODE", "Referral code not found")
		}
		return fmt.Errorf("looking up referral code: %w", err)
	}

	exists, err := s.downloads.ReferredDownloadExists(ctx, email, ref.UserID)
	if err != nil {
		return fmt.Errorf("checking existing referral: %w", err)
	}
	if exists {
		return apperror.Conflict("ALREADY_REFERRED", "This email has already used this referral code")
	}

	download := &model.CatalogDownload{
		Email:       &email,
		CatalogType: model.CatalogPublic,
		ReferredBy:  &ref.UserID,
	}
	if err := s.downloads.CreateDownload(ctx, download); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return err
		}
		return fmt.Errorf("recording referred download: %w", err)
	}

	metrics.RecordReferralTracked()
	s.logger.Info("referral tracked",
		slog.String("referrerID", ref.UserID),
		slog.String("code", code),
		slog.String("downloadID", download.ID),
	)
	return nil
}
