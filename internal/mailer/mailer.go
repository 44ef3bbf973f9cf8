// Package mailer renders and sends the catalog emails.
//
// Two templates exist because the storefront grew two "send me the catalog"
// forms over time. Both stay mounted:
//
//	classic (POST /api/send-catalog)       links the hosted public PDF,
//	                                       provider errors surface as 400
//	modern  (POST /api/send-catalog-email) links the PDFs under APP_URL/catalogs,
//	                                       provider errors surface as 500
//
// Sending is best-effort and at-most-once: nothing is retried, and a failed
// email never undoes a download the caller already recorded.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/watch-storefront/internal/apperror"
	"github.com/sakif/watch-storefront/internal/metrics"
	"github.com/sakif/watch-storefront/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template selects the email layout.
type Template string

const (
	TemplateClassic Template = "classic"
	TemplateModern  Template = "modern"
)

// Message is one rendered email ready for a Transport.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// Transport delivers a rendered message and returns the provider's message ID.
type Transport interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// Config is the subset of the application config the mailer needs.
type Config struct {
	APIKey           string
	From             string
	AppURL           string
	PublicCatalogURL string
}

// Request is what the catalog forms post.
type Request struct {
	Email       string
	Name        string
	CatalogType string
}

// Result is returned to the client as the "data" field of a successful send.
type Result struct {
	ID string `json:"id"`
}

type Mailer struct {
	cfg       Config
	transport Transport
	templates *template.Template
	logger    *slog.Logger
	now       func() time.Time
}

// Option customises a Mailer.
type Option func(*Mailer)

// WithTransport replaces the Resend transport.
func WithTransport(t Transport) Option {
	return func(m *Mailer) { m.transport = t }
}

// New parses the embedded templates once. With an empty API key the mailer
// is still built, but every send is rejected by Check.
func New(cfg Config, logger *slog.Logger, opts ...Option) (*Mailer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing email templates: %w", err)
	}

	m := &Mailer{
		cfg:       cfg,
		templates: tmpl,
		logger:    logger,
		now:       time.Now,
	}
	m.cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")
	if cfg.APIKey != "" {
		m.transport = NewResendTransport(cfg.APIKey)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Check fails when no provider key is configured. Handlers call it before
// reading the request body, so a misconfigured server answers 500 even to
// an incomplete form.
func (m *Mailer) Check(t Template) error {
	if m.cfg.APIKey != "" && m.transport != nil {
		return nil
	}
	if t == TemplateClassic {
		return apperror.Unavailable("Email service is not configured. Please contact support.")
	}
	return apperror.Unavailable("Email service is not configured")
}

// SendCatalog renders the chosen template for req and sends it.
func (m *Mailer) SendCatalog(ctx context.Context, t Template, req Request) (*Result, error) {
	if err := m.Check(t); err != nil {
		return nil, err
	}

	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Name == "" {
		return nil, apperror.Validation("MISSING_FIELDS", "", "Email y nombre son requeridos")
	}

	msg, err := m.render(t, req)
	if err != nil {
		return nil, err
	}

	id, err := m.transport.Send(ctx, msg)
	if err != nil {
		metrics.RecordEmail(string(t), "failed")
		m.logger.Error("catalog email failed",
			slog.String("template", string(t)),
			slog.String("error", err.Error()),
		)
		if t == TemplateClassic {
			return nil, apperror.Validation("EMAIL_SEND_FAILED", "", err.Error())
		}
		return nil, apperror.Unavailable("Error al enviar el email")
	}

	metrics.RecordEmail(string(t), "sent")
	m.logger.Info("catalog email sent",
		slog.String("template", string(t)),
		slog.String("catalogType", req.CatalogType),
		slog.String("messageID", id),
	)
	return &Result{ID: id}, nil
}

// templateData feeds both templates. Name is escaped by html/template.
type templateData struct {
	Name        string
	Premium     bool
	CatalogName string
	CatalogURL  string
	Year        int
}

func (m *Mailer) render(t Template, req Request) (Message, error) {
	premium := req.CatalogType == string(model.CatalogPremium)
	data := templateData{
		Name:    req.Name,
		Premium: premium,
		Year:    m.now().Year(),
	}

	var subject string
	switch t {
	case TemplateClassic:
		data.CatalogURL = m.cfg.PublicCatalogURL
		subject = "📖 Catálogo IWatches 2025/2026"
		if premium {
			subject = "🎁 Tu Catálogo Premium - IWatches"
		}
	case TemplateModern:
		data.CatalogName = "Catálogo IWatches 2025-2026"
		data.CatalogURL = m.cfg.AppURL + "/catalogs/CATALOGO-25-26.pdf"
		if premium {
			data.CatalogName = "Catálogo Premium IWatches 2025-2026"
			data.CatalogURL = m.cfg.AppURL + "/catalogs/CATALOGO-PREMIUM-25-26.pdf"
		}
		subject = "Tu " + data.CatalogName + " está listo"
	default:
		return Message{}, fmt.Errorf("unknown email template %q", t)
	}

	var buf bytes.Buffer
	if err := m.templates.ExecuteTemplate(&buf, string(t)+".html", data); err != nil {
		return Message{}, fmt.Errorf("rendering %s email: %w", t, err)
	}

	return Message{
		From:    m.cfg.From,
		To:      req.Email,
		Subject: subject,
		HTML:    buf.String(),
	}, nil
}
