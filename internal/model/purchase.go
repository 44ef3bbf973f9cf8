package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Purchase is a watch bought by a customer. Rows are insert-only.
//
// WHY decimal.Decimal FOR MONEY?
// float64 cannot represent 0.1 exactly, so sums of prices drift. decimal keeps
// the exact value the client sent, and it implements sql.Scanner/driver.Valuer
// so it round-trips through the TEXT column unchanged.
type Purchase struct {
	ID             string          `json:"id"             db:"id"`
	UserID         string          `json:"userId"         db:"user_id"`
	WatchName      string          `json:"watchName"      db:"watch_name"`
	WatchReference string          `json:"watchReference" db:"watch_reference"`
	PurchaseAmount decimal.Decimal `json:"purchaseAmount" db:"purchase_amount"`
	PurchaseDate   time.Time       `json:"purchaseDate"   db:"purchase_date"`
	Notes          *string         `json:"notes"          db:"notes"`
	CreatedAt      time.Time       `json:"createdAt"      db:"created_at"`
}

// MarshalJSON writes purchaseAmount as a JSON number, which the frontend
// expects; shopspring quotes decimals by default.
func (p Purchase) MarshalJSON() ([]byte, error) {
	type plain Purchase
	return json.Marshal(struct {
		plain
		PurchaseAmount json.Number `json:"purchaseAmount"`
	}{
		plain:          plain(p),
		PurchaseAmount: json.Number(p.PurchaseAmount.String()),
	})
}
