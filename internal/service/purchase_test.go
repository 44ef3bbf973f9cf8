package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/watch-storefront/internal/apperror"
)

func newTestPurchaseService() (*PurchaseService, *fakeStore) {
	store := newFakeStore()
	return NewPurchaseService(store, quietLogger()), store
}

// validPurchase returns a body that passes every rule; tests break one field.
func validPurchase() Fields {
	return Fields{
		"watchName":      "Seiko Prospex SPB143",
		"watchReference": "SPB143J1",
		"purchaseAmount": json.Number("1250.50"),
		"purchaseDate":   "2025-03-14",
		"notes":          "  full set  ",
	}
}

func with(body Fields, key string, value any) Fields {
	body[key] = value
	return body
}

func without(body Fields, key string) Fields {
	delete(body, key)
	return body
}

func TestRecordPurchase_ValidationOrder(t *testing.T) {
	tests := []struct {
		name     string
		body     Fields
		wantCode string
	}{
		{"userId present", with(validPurchase(), "userId", "someone-else"), "USER_ID_NOT_ALLOWED"},
		{"user_id null", with(validPurchase(), "user_id", nil), "USER_ID_NOT_ALLOWED"},
		{"missing name", without(validPurchase(), "watchName"), "MISSING_WATCH_NAME"},
		{"blank name", with(validPurchase(), "watchName", "   "), "MISSING_WATCH_NAME"},
		{"numeric name", with(validPurchase(), "watchName", json.Number("5")), "MISSING_WATCH_NAME"},
		{"missing reference", without(validPurchase(), "watchReference"), "MISSING_WATCH_REFERENCE"},
		{"missing amount", without(validPurchase(), "purchaseAmount"), "MISSING_PURCHASE_AMOUNT"},
		{"null amount", with(validPurchase(), "purchaseAmount", nil), "MISSING_PURCHASE_AMOUNT"},
		{"string amount", with(validPurchase(), "purchaseAmount", "abc"), "INVALID_PURCHASE_AMOUNT"},
		{"numeric string amount", with(validPurchase(), "purchaseAmount", "12"), "INVALID_PURCHASE_AMOUNT"},
		{"negative amount", with(validPurchase(), "purchaseAmount", json.Number("-5")), "NEGATIVE_PURCHASE_AMOUNT"},
		{"missing date", without(validPurchase(), "purchaseDate"), "MISSING_PURCHASE_DATE"},
		{"empty date", with(validPurchase(), "purchaseDate", ""), "MISSING_PURCHASE_DATE"},
		{"zero epoch date", with(validPurchase(), "purchaseDate", json.Number("0")), "MISSING_PURCHASE_DATE"},
		{"garbage date", with(validPurchase(), "purchaseDate", "next tuesday"), "INVALID_PURCHASE_DATE"},
		{"impossible date", with(validPurchase(), "purchaseDate", "2025-02-30"), "INVALID_PURCHASE_DATE"},
		{"boolean date", with(validPurchase(), "purchaseDate", true), "INVALID_PURCHASE_DATE"},
		{"numeric notes", with(validPurchase(), "notes", json.Number("7")), "INVALID_NOTES"},
		// Earlier rules win over later ones.
		{"name beats amount", with(without(validPurchase(), "watchName"), "purchaseAmount", "abc"), "MISSING_WATCH_NAME"},
		{"amount beats notes", with(with(validPurchase(), "purchaseAmount", json.Number("-1")), "notes", false), "NEGATIVE_PURCHASE_AMOUNT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestPurchaseService()

			_, err := svc.Record(context.Background(), "u1", tt.body)

			assert.ErrorIs(t, err, apperror.ErrValidation)
			assert.Equal(t, tt.wantCode, apperror.CodeOf(err))
			assert.Empty(t, store.purchases)
		})
	}
}

func TestRecordPurchase_StoresTrimmedRowForSessionUser(t *testing.T) {
	svc, store := newTestPurchaseService()
	body := with(validPurchase(), "watchName", "  Seiko Prospex SPB143 ")

	p, err := svc.Record(context.Background(), "u1", body)

	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, "Seiko Prospex SPB143", p.WatchName)
	assert.True(t, p.PurchaseAmount.Equal(decimal.RequireFromString("1250.5")))
	assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), p.PurchaseDate)
	require.NotNil(t, p.Notes)
	assert.Equal(t, "full set", *p.Notes)
	require.Len(t, store.purchases, 1)
}

func TestRecordPurchase_OptionalNotes(t *testing.T) {
	for name, notes := range map[string]any{"null": nil, "blank": "   "} {
		t.Run(name, func(t *testing.T) {
			svc, _ := newTestPurchaseService()

			p, err := svc.Record(context.Background(), "u1", with(validPurchase(), "notes", notes))

			require.NoError(t, err)
			assert.Nil(t, p.Notes)
		})
	}
}

func TestRecordPurchase_ZeroAmountAllowed(t *testing.T) {
	svc, _ := newTestPurchaseService()

	p, err := svc.Record(context.Background(), "u1", with(validPurchase(), "purchaseAmount", json.Number("0")))

	require.NoError(t, err)
	assert.True(t, p.PurchaseAmount.IsZero())
}

func TestParsePurchaseDate_Formats(t *testing.T) {
	want := time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value any
		want  time.Time
	}{
		{"rfc3339 utc", "2025-03-14T10:30:00Z", want},
		{"rfc3339 millis", "2025-03-14T10:30:00.000Z", want},
		{"rfc3339 offset", "2025-03-14T12:30:00+02:00", want},
		{"no zone", "2025-03-14T10:30:00", want},
		{"no seconds", "2025-03-14T10:30", want},
		{"date only", "2025-03-14", time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)},
		{"epoch millis", json.Number("1741948200000"), want},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePurchaseDate(Fields{"purchaseDate": tt.value})
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
			assert.Equal(t, time.UTC, got.Location())
		})
	}

	// Dates JSON and the DATETIME column cannot hold are refused up front.
	outOfRange := []struct {
		name  string
		value any
	}{
		{"beyond js date range", json.Number("1e20")},
		{"year 10000", json.Number("253402300800000")},
		{"year -1", json.Number("-62198755200000")},
		{"int64 overflow", json.Number("99999999999999999999999")},
		{"offset pushes below year 0", "0000-01-01T00:00:00+01:00"},
	}
	for _, tt := range outOfRange {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parsePurchaseDate(Fields{"purchaseDate": tt.value})
			assert.ErrorIs(t, err, apperror.ErrValidation)
			assert.Equal(t, "INVALID_PURCHASE_DATE", apperror.CodeOf(err))
		})
	}

	t.Run("last millisecond of year 9999", func(t *testing.T) {
		got, err := parsePurchaseDate(Fields{"purchaseDate": json.Number("253402300799999")})
		require.NoError(t, err)
		assert.Equal(t, 9999, got.Year())
	})
}

func TestRecordPurchase_RepositoryError(t *testing.T) {
	svc, store := newTestPurchaseService()
	store.createPurchaseErr = errors.New("database is locked")

	_, err := svc.Record(context.Background(), "u1", validPurchase())

	require.Error(t, err)
	assert.NotErrorIs(t, err, apperror.ErrValidation)
}

func TestListForUser_ClampsLimit(t *testing.T) {
	svc, _ := newTestPurchaseService()
	for i := 0; i < 105; i++ {
		_, err := svc.Record(context.Background(), "u1", validPurchase())
		require.NoError(t, err)
	}

	got, err := svc.ListForUser(context.Background(), "u1", 500, 0)
	require.NoError(t, err)
	assert.Len(t, got, MaxListLimit)

	got, err = svc.ListForUser(context.Background(), "u1", 10, 100)
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestStatus(t *testing.T) {
	svc, _ := newTestPurchaseService()
	ctx := context.Background()

	status, err := svc.Status(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, CustomerStatus{IsCustomer: false, PurchaseCount: 0}, status)

	_, err = svc.Record(ctx, "u1", validPurchase())
	require.NoError(t, err)
	_, err = svc.Record(ctx, "u1", validPurchase())
	require.NoError(t, err)
	_, err = svc.Record(ctx, "u2", validPurchase())
	require.NoError(t, err)

	status, err = svc.Status(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, CustomerStatus{IsCustomer: true, PurchaseCount: 2}, status)
}

func TestStatus_RepositoryError(t *testing.T) {
	svc, store := newTestPurchaseService()
	store.countErr = errors.New("boom")

	_, err := svc.Status(context.Background(), "u1")
	assert.Error(t, err)
}
