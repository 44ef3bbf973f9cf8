package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/watch-storefront/internal/apperror"
	"github.com/sakif/watch-storefront/internal/auth"
	"github.com/sakif/watch-storefront/internal/service"
)

// CatalogHandler records catalog downloads and lists a user's history.
type CatalogHandler struct {
	catalog *service.CatalogService
	logger  *slog.Logger
}

func NewCatalogHandler(catalog *service.CatalogService, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

// HandleDownload records one download.
//
// HTTP: POST /api/catalog/download
// Auth: optional. Premium needs a session; anonymous public needs an email.
// REQUEST BODY: {"catalogType": "public"|"premium", "email": "..."}
func (h *CatalogHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	body, err := decodeFields(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	// An anonymous caller passes "" and the service takes the email path.
	id, _ := auth.IdentityFromContext(r.Context())

	download, err := h.catalog.RecordDownload(r.Context(), id.UserID, body)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, download)
}

var errInvalidPagination = apperror.Validation("INVALID_PAGINATION", "", "Invalid pagination parameters")

// HandleList returns the caller's downloads, newest first.
//
// HTTP: GET /api/catalog/downloads?limit=50&offset=0
func (h *CatalogHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	id, ok := requireUser(w, r, "Unauthorized")
	if !ok {
		return
	}

	limit, offset, err := parsePage(r, errInvalidPagination, errInvalidPagination)
	if err != nil {
		writeError(w, err)
		return
	}

	downloads, err := h.catalog.ListDownloads(r.Context(), id.UserID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, downloads)
}
