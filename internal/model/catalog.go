package model

import "time"

// CatalogType is the tier of a downloadable catalog.
type CatalogType string

const (
	CatalogPublic  CatalogType = "public"
	CatalogPremium CatalogType = "premium"
)

// Valid reports whether t is one of the known catalog tiers.
func (t CatalogType) Valid() bool {
	return t == CatalogPublic || t == CatalogPremium
}

// CatalogDownload records one catalog download.
//
// Exactly one of UserID and Email is set: UserID for an authenticated
// download, Email (lower-cased, trimmed) for an anonymous one. Premium
// downloads always carry a UserID. ReferredBy is the user ID of the referral
// code owner when the download came through a referral link.
type CatalogDownload struct {
	ID           string      `json:"id"           db:"id"`
	UserID       *string     `json:"userId"       db:"user_id"`
	Email        *string     `json:"email"        db:"email"`
	CatalogType  CatalogType `json:"catalogType"  db:"catalog_type"`
	DownloadedAt time.Time   `json:"downloadedAt" db:"downloaded_at"`
	ReferredBy   *string     `json:"referredBy"   db:"referred_by"`
}
