package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurchase_MarshalJSON(t *testing.T) {
	notes := "full set"
	p := Purchase{
		ID:             "p1",
		UserID:         "u1",
		WatchName:      "Seiko Prospex SPB143",
		WatchReference: "SPB143J1",
		PurchaseAmount: decimal.RequireFromString("1250.50"),
		PurchaseDate:   time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		Notes:          &notes,
		CreatedAt:      time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC),
	}

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"id": "p1",
		"userId": "u1",
		"watchName": "Seiko Prospex SPB143",
		"watchReference": "SPB143J1",
		"purchaseAmount": 1250.5,
		"purchaseDate": "2025-03-14T00:00:00Z",
		"notes": "full set",
		"createdAt": "2025-03-15T09:00:00Z"
	}`, string(raw))
}

func TestPurchase_MarshalJSONLeavesDecimalDefaults(t *testing.T) {
	_, err := json.Marshal(Purchase{PurchaseAmount: decimal.NewFromInt(3)})
	require.NoError(t, err)

	raw, err := json.Marshal(decimal.NewFromInt(3))
	require.NoError(t, err)
	assert.Equal(t, `"3"`, string(raw))
}
