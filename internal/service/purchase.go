package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sakif/watch-storefront/internal/apperror"
	"github.com/sakif/watch-storefront/internal/metrics"
	"github.com/sakif/watch-storefront/internal/model"
	"github.com/sakif/watch-storefront/internal/repository"
)

// purchaseDateLayouts are tried in order for string purchase dates.
// Layouts without a zone are read as UTC.
var purchaseDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	time.DateOnly,
}

// maxEpochMillis is the widest instant a JavaScript Date can hold.
var maxEpochMillis = decimal.NewFromInt(8_640_000_000_000_000)

// storableDate reports whether t survives JSON encoding and the DATETIME
// column round trip, both of which need a four-digit year.
func storableDate(t time.Time) bool {
	return t.Year() >= 0 && t.Year() <= 9999
}

// PurchaseService records and lists a customer's watch purchases.
type PurchaseService struct {
	purchases repository.PurchaseRepository
	logger    *slog.Logger
}

func NewPurchaseService(purchases repository.PurchaseRepository, logger *slog.Logger) *PurchaseService {
	return &PurchaseService{purchases: purchases, logger: logger}
}

// ForbidsUserID reports whether a request body tries to set the owning user.
// The owner always comes from the session.
func ForbidsUserID(body Fields) error {
	if body.Has("userId") || body.Has("user_id") {
		return apperror.Validation("USER_ID_NOT_ALLOWED", "userId", "User ID cannot be provided in request body")
	}
	return nil
}

// Record validates body and stores it as a purchase owned by userID.
//
// VALIDATION ORDER (first failure wins):
//
//	watchName       non-empty string             MISSING_WATCH_NAME
//	watchReference  non-empty string             MISSING_WATCH_REFERENCE
//	purchaseAmount  present                      MISSING_PURCHASE_AMOUNT
//	                a JSON number                INVALID_PURCHASE_AMOUNT
//	                not negative                 NEGATIVE_PURCHASE_AMOUNT
//	purchaseDate    present                      MISSING_PURCHASE_DATE
//	                a parseable date             INVALID_PURCHASE_DATE
//	notes           absent, null, or a string    INVALID_NOTES
func (s *PurchaseService) Record(ctx context.Context, userID string, body Fields) (*model.Purchase, error) {
	if err := ForbidsUserID(body); err != nil {
		return nil, err
	}

	p, err := parsePurchase(body)
	if err != nil {
		return nil, err
	}
	p.UserID = userID

	if err := s.purchases.CreatePurchase(ctx, p); err != nil {
		s.logger.Error("failed to record purchase",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("recording purchase: %w", err)
	}

	metrics.RecordPurchase()
	s.logger.Info("purchase recorded",
		slog.String("id", p.ID),
		slog.String("userID", userID),
		slog.String("watchReference", p.WatchReference),
	)

	return p, nil
}

func parsePurchase(body Fields) (*model.Purchase, error) {
	watchName, ok := body.NonEmptyString("watchName")
	if !ok {
		return nil, apperror.Validation("MISSING_WATCH_NAME", "watchName", "Watch name is required and must be a non-empty string")
	}

	watchReference, ok := body.NonEmptyString("watchReference")
	if !ok {
		return nil, apperror.Validation("MISSING_WATCH_REFERENCE", "watchReference", "Watch reference is required and must be a non-empty string")
	}

	if body.Null("purchaseAmount") {
		return nil, apperror.Validation("MISSING_PURCHASE_AMOUNT", "purchaseAmount", "Purchase amount is required")
	}
	num, ok := body.Number("purchaseAmount")
	if !ok {
		return nil, apperror.Validation("INVALID_PURCHASE_AMOUNT", "purchaseAmount", "Purchase amount must be a valid number")
	}
	amount, err := decimal.NewFromString(num.String())
	if err != nil {
		return nil, apperror.Validation("INVALID_PURCHASE_AMOUNT", "purchaseAmount", "Purchase amount must be a valid number")
	}
	if amount.IsNegative() {
		return nil, apperror.Validation("NEGATIVE_PURCHASE_AMOUNT", "purchaseAmount", "Purchase amount cannot be negative")
	}

	purchaseDate, err := parsePurchaseDate(body)
	if err != nil {
		return nil, err
	}

	var notes *string
	if !body.Null("notes") {
		raw, ok := body.String("notes")
		if !ok {
			return nil, apperror.Validation("INVALID_NOTES", "notes", "Notes must be a string")
		}
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			notes = &trimmed
		}
	}

	return &model.Purchase{
		WatchName:      watchName,
		WatchReference: watchReference,
		PurchaseAmount: amount,
		PurchaseDate:   purchaseDate,
		Notes:          notes,
	}, nil
}

// parsePurchaseDate accepts a date string in one of purchaseDateLayouts or a
// JSON number of milliseconds since the Unix epoch. An empty string or zero
// counts as missing.
func parsePurchaseDate(body Fields) (time.Time, error) {
	missing := apperror.Validation("MISSING_PURCHASE_DATE", "purchaseDate", "Purchase date is required")
	invalid := apperror.Validation("INVALID_PURCHASE_DATE", "purchaseDate", "Purchase date must be a valid ISO date string")

	if body.Null("purchaseDate") {
		return time.Time{}, missing
	}

	if num, ok := body.Number("purchaseDate"); ok {
		ms, err := decimal.NewFromString(num.String())
		if err != nil {
			return time.Time{}, invalid
		}
		if ms.IsZero() {
			return time.Time{}, missing
		}
		if ms.Abs().GreaterThan(maxEpochMillis) {
			return time.Time{}, invalid
		}
		t := time.UnixMilli(ms.IntPart()).UTC()
		if !storableDate(t) {
			return time.Time{}, invalid
		}
		return t, nil
	}

	raw, ok := body.String("purchaseDate")
	if !ok {
		return time.Time{}, invalid
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, missing
	}
	for _, layout := range purchaseDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			if t = t.UTC(); !storableDate(t) {
				return time.Time{}, invalid
			}
			return t, nil
		}
	}
	return time.Time{}, invalid
}

// ListForUser returns a page of the user's purchases, most recent first.
func (s *PurchaseService) ListForUser(ctx context.Context, userID string, limit, offset int) ([]model.Purchase, error) {
	purchases, err := s.purchases.ListPurchasesByUser(ctx, userID, Page(limit, offset))
	if err != nil {
		s.logger.Error("failed to list purchases",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing purchases: %w", err)
	}
	return purchases, nil
}

// CustomerStatus says whether a user has bought anything.
type CustomerStatus struct {
	IsCustomer    bool `json:"isCustomer"`
	PurchaseCount int  `json:"purchaseCount"`
}

// Status counts the user's purchases.
func (s *PurchaseService) Status(ctx context.Context, userID string) (CustomerStatus, error) {
	count, err := s.purchases.CountPurchasesByUser(ctx, userID)
	if err != nil {
		return CustomerStatus{}, fmt.Errorf("counting purchases: %w", err)
	}
	return CustomerStatus{IsCustomer: count > 0, PurchaseCount: count}, nil
}
