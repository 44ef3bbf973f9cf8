package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/watch-storefront/internal/mailer"
)

// EmailHandler sends the catalog emails. It stores nothing.
type EmailHandler struct {
	mailer *mailer.Mailer
	logger *slog.Logger
}

func NewEmailHandler(m *mailer.Mailer, logger *slog.Logger) *EmailHandler {
	return &EmailHandler{mailer: m, logger: logger}
}

// HandleSendCatalog sends the classic catalog email.
//
// HTTP: POST /api/send-catalog
// REQUEST BODY: {"email", "name", "catalogType"}
// RESPONSE: {"success": true, "data": {"id": "..."}}
func (h *EmailHandler) HandleSendCatalog(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, mailer.TemplateClassic)
}

// HandleSendCatalogEmail sends the modern catalog email.
//
// HTTP: POST /api/send-catalog-email
func (h *EmailHandler) HandleSendCatalogEmail(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, mailer.TemplateModern)
}

func (h *EmailHandler) send(w http.ResponseWriter, r *http.Request, t mailer.Template) {
	// A server without a provider key answers 500 before reading anything.
	if err := h.mailer.Check(t); err != nil {
		h.logger.Error("catalog email requested but RESEND_API_KEY is not set")
		writeError(w, err)
		return
	}

	body, err := decodeFields(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	email, _ := body.String("email")
	name, _ := body.String("name")
	catalogType, _ := body.String("catalogType")

	result, err := h.mailer.SendCatalog(r.Context(), t, mailer.Request{
		Email:       email,
		Name:        name,
		CatalogType: catalogType,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    result,
	})
}
