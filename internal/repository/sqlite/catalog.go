package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/watch-storefront/internal/apperror"
	"github.com/sakif/watch-storefront/internal/model"
	"github.com/sakif/watch-storefront/internal/repository"
)

var _ repository.CatalogRepository = (*DB)(nil)

// CreateDownload inserts a catalog download. ID is generated here; a zero
// DownloadedAt is set to now.
//
// The partial unique index on (email, referred_by) turns a second referral for
// the same email into apperror.ErrConflict, even if two requests race past the
// service's existence check.
func (db *DB) CreateDownload(ctx context.Context, d *model.CatalogDownload) error {
	d.ID = xid.New().String()
	if d.DownloadedAt.IsZero() {
		d.DownloadedAt = time.Now()
	}
	d.DownloadedAt = d.DownloadedAt.UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO catalog_downloads (id, user_id, email, catalog_type, downloaded_at, referred_by)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID,
		nullString(d.UserID),
		nullString(d.Email),
		string(d.CatalogType),
		d.DownloadedAt,
		nullString(d.ReferredBy),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("ALREADY_REFERRED", "This email has already used this referral code")
		}
		return fmt.Errorf("sqlite: creating catalog download: %w", err)
	}

	return nil
}

// ListDownloadsByUser returns a page of the user's downloads, newest first.
func (db *DB) ListDownloadsByUser(ctx context.Context, userID string, opts repository.ListOptions) ([]model.CatalogDownload, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, email, catalog_type, downloaded_at, referred_by
		 FROM catalog_downloads
		 WHERE user_id = ?
		 ORDER BY downloaded_at DESC
		 LIMIT ? OFFSET ?`,
		userID,
		opts.Limit,
		opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing downloads for user %s: %w", userID, err)
	}
	// CRITICAL: always close rows when done!
	defer rows.Close()

	downloads := make([]model.CatalogDownload, 0, opts.Limit)
	for rows.Next() {
		var (
			d                      model.CatalogDownload
			uid, email, referredBy sql.NullString
			catalogType            string
		)
		if err := rows.Scan(&d.ID, &uid, &email, &catalogType, &d.DownloadedAt, &referredBy); err != nil {
			return nil, fmt.Errorf("sqlite: scanning catalog download row: %w", err)
		}
		d.UserID = stringPtr(uid)
		d.Email = stringPtr(email)
		d.ReferredBy = stringPtr(referredBy)
		d.CatalogType = model.CatalogType(catalogType)
		downloads = append(downloads, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating catalog downloads: %w", err)
	}

	return downloads, nil
}

// CountDownloadsReferredBy counts downloads credited to a referrer.
func (db *DB) CountDownloadsReferredBy(ctx context.Context, referrerID string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM catalog_downloads WHERE referred_by = ?`,
		referrerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting referrals for %s: %w", referrerID, err)
	}
	return count, nil
}

// ReferredDownloadExists reports whether email was already credited to referrerID.
func (db *DB) ReferredDownloadExists(ctx context.Context, email, referrerID string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM catalog_downloads WHERE email = ? AND referred_by = ?
		 )`,
		email, referrerID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking referral for %s: %w", email, err)
	}
	return exists, nil
}
