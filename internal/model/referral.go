package model

import "time"

// ReferralCode is the share code owned by one user. Both UserID and Code are
// unique; the code is 8 characters from [A-Z0-9].
type ReferralCode struct {
	ID        string    `json:"id"        db:"id"`
	UserID    string    `json:"userId"    db:"user_id"`
	Code      string    `json:"code"      db:"code"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
