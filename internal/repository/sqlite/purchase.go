package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/watch-storefront/internal/model"
	"github.com/sakif/watch-storefront/internal/repository"
)

var _ repository.PurchaseRepository = (*DB)(nil)

// CreatePurchase inserts a purchase, filling in ID and CreatedAt.
//
// PurchaseAmount is a decimal.Decimal, which implements driver.Valuer:
// the driver stores its exact string form ("1250.50") in the TEXT column.
func (db *DB) CreatePurchase(ctx context.Context, p *model.Purchase) error {
	p.ID = xid.New().String()
	p.CreatedAt = time.Now().UTC()
	p.PurchaseDate = p.PurchaseDate.UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO purchases (id, user_id, watch_name, watch_reference, purchase_amount, purchase_date, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.UserID,
		p.WatchName,
		p.WatchReference,
		p.PurchaseAmount,
		p.PurchaseDate,
		nullString(p.Notes),
		p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating purchase for user %s: %w", p.UserID, err)
	}

	return nil
}

// ListPurchasesByUser returns a page of the user's purchases, most recent purchase date first.
func (db *DB) ListPurchasesByUser(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Purchase, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, watch_name, watch_reference, purchase_amount, purchase_date, notes, created_at
		 FROM purchases
		 WHERE user_id = ?
		 ORDER BY purchase_date DESC, created_at DESC
		 LIMIT ? OFFSET ?`,
		userID,
		opts.Limit,
		opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing purchases for user %s: %w", userID, err)
	}
	defer rows.Close()

	purchases := make([]model.Purchase, 0, opts.Limit)
	for rows.Next() {
		var (
			p     model.Purchase
			notes sql.NullString
		)
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.WatchName, &p.WatchReference,
			&p.PurchaseAmount, &p.PurchaseDate, &notes, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning purchase row: %w", err)
		}
		p.Notes = stringPtr(notes)
		purchases = append(purchases, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating purchases: %w", err)
	}

	return purchases, nil
}

// CountPurchasesByUser counts the user's purchases.
func (db *DB) CountPurchasesByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM purchases WHERE user_id = ?`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting purchases for user %s: %w", userID, err)
	}
	return count, nil
}
