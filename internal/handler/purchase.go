package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/watch-storefront/internal/apperror"
	"github.com/sakif/watch-storefront/internal/service"
)

// PurchaseHandler records purchases and answers "is this user a customer?".
type PurchaseHandler struct {
	purchases *service.PurchaseService
	logger    *slog.Logger
}

func NewPurchaseHandler(purchases *service.PurchaseService, logger *slog.Logger) *PurchaseHandler {
	return &PurchaseHandler{purchases: purchases, logger: logger}
}

// HandleCreate records a purchase for the session user.
//
// HTTP: POST /api/purchases
// REQUEST BODY: {"watchName", "watchReference", "purchaseAmount", "purchaseDate", "notes"?}
//
// ORDER OF CHECKS:
// A body that names its own userId/user_id is refused before the session is
// even looked at, so the answer is the same 400 for signed-in and anonymous
// callers. Ownership only ever comes from the session. A body that cannot be
// read at all says nothing about userId, so anonymous callers get the 401.
func (h *PurchaseHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := decodeFields(w, r)
	if err != nil {
		if _, ok := requireUser(w, r, "Unauthorized"); ok {
			writeError(w, err)
		}
		return
	}
	if err := service.ForbidsUserID(body); err != nil {
		writeError(w, err)
		return
	}

	id, ok := requireUser(w, r, "Unauthorized")
	if !ok {
		return
	}

	purchase, err := h.purchases.Record(r.Context(), id.UserID, body)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, purchase)
}

var (
	errInvalidLimit  = apperror.Validation("INVALID_LIMIT", "limit", "Invalid limit parameter")
	errInvalidOffset = apperror.Validation("INVALID_OFFSET", "offset", "Invalid offset parameter")
)

// HandleList returns the caller's purchases, most recent purchase date first.
//
// HTTP: GET /api/purchases/user?limit=50&offset=0
func (h *PurchaseHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	id, ok := requireUser(w, r, "Unauthorized")
	if !ok {
		return
	}

	limit, offset, err := parsePage(r, errInvalidLimit, errInvalidOffset)
	if err != nil {
		writeError(w, err)
		return
	}

	purchases, err := h.purchases.ListForUser(r.Context(), id.UserID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, purchases)
}

// HandleStatus reports whether the caller has bought anything.
//
// HTTP: GET /api/customer/status
// RESPONSE: {"isCustomer": true, "purchaseCount": 2}
func (h *PurchaseHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := requireUser(w, r, "Unauthorized")
	if !ok {
		return
	}

	status, err := h.purchases.Status(r.Context(), id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}
