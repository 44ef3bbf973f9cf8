package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/watch-storefront/internal/service"
)

// ReferralHandler issues referral codes, reports referral progress, and
// credits referrers when a visitor downloads through their link.
type ReferralHandler struct {
	referrals *service.ReferralService
	logger    *slog.Logger
}

func NewReferralHandler(referrals *service.ReferralService, logger *slog.Logger) *ReferralHandler {
	return &ReferralHandler{referrals: referrals, logger: logger}
}

// HandleCreate returns the caller's referral code, creating it on first use.
//
// HTTP: POST /api/referrals/create
// RESPONSE: 201 {"code", "shareUrl"} when new, 200 when it already existed.
//
// The body is optional. An empty or unreadable body counts as {}; only a
// userId/user_id field is an error.
func (h *ReferralHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := decodeFields(w, r)
	if err != nil {
		body = service.Fields{}
	}
	if err := service.ForbidsUserID(body); err != nil {
		writeError(w, err)
		return
	}

	id, ok := requireUser(w, r, "Authentication required")
	if !ok {
		return
	}

	link, created, err := h.referrals.GetOrCreateCode(r.Context(), id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, link)
}

// HandleStats reports how many downloads the caller referred.
//
// HTTP: GET /api/referrals/stats
// RESPONSE: {"totalReferrals": 3, "premiumUnlocked": true}
func (h *ReferralHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	id, ok := requireUser(w, r, "Authentication required")
	if !ok {
		return
	}

	stats, err := h.referrals.Stats(r.Context(), id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// HandleTrack credits the owner of a referral code with a public download.
//
// HTTP: POST /api/referrals/track
// Auth: none
// REQUEST BODY: {"referralCode": "AB12CD34", "email": "...", "name": "..."}
func (h *ReferralHandler) HandleTrack(w http.ResponseWriter, r *http.Request) {
	body, err := decodeFields(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	// Non-string values read as "" and fail as missing fields.
	code, _ := body.String("referralCode")
	email, _ := body.String("email")
	name, _ := body.String("name")

	if err := h.referrals.Track(r.Context(), code, email, name); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Referral tracked successfully",
	})
}
