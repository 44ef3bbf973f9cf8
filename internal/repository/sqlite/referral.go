package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/watch-storefront/internal/apperror"
	"github.com/sakif/watch-storefront/internal/model"
	"github.com/sakif/watch-storefront/internal/repository"
)

var _ repository.ReferralRepository = (*DB)(nil)

// CreateReferralCode inserts a referral code, filling in ID and CreatedAt.
func (db *DB) CreateReferralCode(ctx context.Context, ref *model.ReferralCode) error {
	ref.ID = xid.New().String()
	ref.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO referral_codes (id, user_id, code, created_at) VALUES (?, ?, ?, ?)`,
		ref.ID, ref.UserID, ref.Code, ref.CreatedAt,
	)
	if err != nil {
		switch {
		case violates(err, "referral_codes.user_id"):
			return apperror.Conflict(repository.CodeReferralUserExists, "user already has a referral code")
		case violates(err, "referral_codes.code"):
			return apperror.Conflict(repository.CodeReferralCodeTaken, "referral code already in use")
		}
		return fmt.Errorf("sqlite: creating referral code for user %s: %w", ref.UserID, err)
	}

	return nil
}

// GetReferralCodeByUser returns the user's referral code, or apperror.ErrNotFound.
func (db *DB) GetReferralCodeByUser(ctx context.Context, userID string) (*model.ReferralCode, error) {
	return db.getReferral(ctx, "user_id = ?", userID)
}

// GetReferralCodeByCode resolves a share code to its owner, or apperror.ErrNotFound.
func (db *DB) GetReferralCodeByCode(ctx context.Context, code string) (*model.ReferralCode, error) {
	return db.getReferral(ctx, "code = ?", code)
}

// ReferralCodeExists reports whether code is already taken.
func (db *DB) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM referral_codes WHERE code = ?)`,
		code,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking referral code: %w", err)
	}
	return exists, nil
}

func (db *DB) getReferral(ctx context.Context, where string, arg string) (*model.ReferralCode, error) {
	var ref model.ReferralCode
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, code, created_at FROM referral_codes WHERE `+where,
		arg,
	).Scan(&ref.ID, &ref.UserID, &ref.Code, &ref.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("INVALID_REFERRAL_CODE", "Referral code not found")
		}
		return nil, fmt.Errorf("sqlite: getting referral code (%s): %w", where, err)
	}
	return &ref, nil
}
