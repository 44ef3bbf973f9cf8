package mailer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/watch-storefront/internal/apperror"
)

// fakeTransport records messages instead of sending them.
type fakeTransport struct {
	sent []Message
	err  error
}

func (f *fakeTransport) Send(_ context.Context, msg Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, msg)
	return "msg_123", nil
}

func newTestMailer(t *testing.T, apiKey string, transport Transport) *Mailer {
	t.Helper()
	m, err := New(Config{
		APIKey:           apiKey,
		From:             "IWatches <onboarding@resend.dev>",
		AppURL:           "https://iwatches.store/",
		PublicCatalogURL: "https://cdn.example.com/CATALOGO-25-26.pdf",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), WithTransport(transport))
	require.NoError(t, err)
	m.now = func() time.Time { return time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC) }
	return m
}

func TestCheck_MissingAPIKey(t *testing.T) {
	m := newTestMailer(t, "", &fakeTransport{})

	err := m.Check(TemplateClassic)
	assert.ErrorIs(t, err, apperror.ErrUnavailable)
	assert.Contains(t, err.Error(), "Please contact support")

	err = m.Check(TemplateModern)
	assert.ErrorIs(t, err, apperror.ErrUnavailable)
	assert.Equal(t, "Email service is not configured", err.Error())
}

func TestSendCatalog_MissingKeyBeatsMissingFields(t *testing.T) {
	m := newTestMailer(t, "", &fakeTransport{})

	_, err := m.SendCatalog(context.Background(), TemplateModern, Request{})

	assert.ErrorIs(t, err, apperror.ErrUnavailable)
}

func TestSendCatalog_MissingFields(t *testing.T) {
	ft := &fakeTransport{}
	m := newTestMailer(t, "re_test", ft)

	for _, req := range []Request{
		{Email: "", Name: "Ana"},
		{Email: "ana@example.com", Name: "  "},
	} {
		_, err := m.SendCatalog(context.Background(), TemplateClassic, req)
		assert.ErrorIs(t, err, apperror.ErrValidation)
		assert.Equal(t, "Email y nombre son requeridos", err.Error())
	}
	assert.Empty(t, ft.sent)
}

func TestSendCatalog_Classic(t *testing.T) {
	tests := []struct {
		catalogType string
		subject     string
		mustContain string
	}{
		{"premium", "🎁 Tu Catálogo Premium - IWatches", "Envío prioritario"},
		{"public", "📖 Catálogo IWatches 2025/2026", "Seiko, Prospex"},
		{"", "📖 Catálogo IWatches 2025/2026", "catálogo completo"},
	}

	for _, tt := range tests {
		t.Run(tt.catalogType, func(t *testing.T) {
			ft := &fakeTransport{}
			m := newTestMailer(t, "re_test", ft)

			res, err := m.SendCatalog(context.Background(), TemplateClassic, Request{
				Email: " ana@example.com ", Name: "Ana", CatalogType: tt.catalogType,
			})

			require.NoError(t, err)
			assert.Equal(t, "msg_123", res.ID)
			require.Len(t, ft.sent, 1)
			msg := ft.sent[0]
			assert.Equal(t, "ana@example.com", msg.To)
			assert.Equal(t, "IWatches <onboarding@resend.dev>", msg.From)
			assert.Equal(t, tt.subject, msg.Subject)
			assert.Contains(t, msg.HTML, "Hola Ana,")
			assert.Contains(t, msg.HTML, tt.mustContain)
			assert.Contains(t, msg.HTML, `href="https://cdn.example.com/CATALOGO-25-26.pdf"`)
			assert.Contains(t, msg.HTML, "© 2025 IWatches")
		})
	}
}

func TestSendCatalog_Modern(t *testing.T) {
	ft := &fakeTransport{}
	m := newTestMailer(t, "re_test", ft)

	_, err := m.SendCatalog(context.Background(), TemplateModern, Request{
		Email: "ana@example.com", Name: "Ana", CatalogType: "premium",
	})
	require.NoError(t, err)
	_, err = m.SendCatalog(context.Background(), TemplateModern, Request{
		Email: "ana@example.com", Name: "Ana", CatalogType: "public",
	})
	require.NoError(t, err)

	require.Len(t, ft.sent, 2)
	premium, public := ft.sent[0], ft.sent[1]

	assert.Equal(t, "Tu Catálogo Premium IWatches 2025-2026 está listo", premium.Subject)
	assert.Contains(t, premium.HTML, `href="https://iwatches.store/catalogs/CATALOGO-PREMIUM-25-26.pdf"`)
	assert.Contains(t, premium.HTML, "Acceso Exclusivo")

	assert.Equal(t, "Tu Catálogo IWatches 2025-2026 está listo", public.Subject)
	assert.Contains(t, public.HTML, `href="https://iwatches.store/catalogs/CATALOGO-25-26.pdf"`)
	assert.Contains(t, public.HTML, "Seiko 5 Sports GMT")
	assert.Contains(t, public.HTML, "Precisión. Herencia. Valor.")
}

func TestSendCatalog_EscapesName(t *testing.T) {
	ft := &fakeTransport{}
	m := newTestMailer(t, "re_test", ft)

	_, err := m.SendCatalog(context.Background(), TemplateModern, Request{
		Email: "x@example.com", Name: "<script>alert(1)</script>",
	})

	require.NoError(t, err)
	assert.NotContains(t, ft.sent[0].HTML, "<script>")
	assert.Contains(t, ft.sent[0].HTML, "&lt;script&gt;")
}

func TestSendCatalog_ProviderError(t *testing.T) {
	providerErr := errors.New("The `to` field is invalid")

	t.Run("classic reports the provider message as 400", func(t *testing.T) {
		m := newTestMailer(t, "re_test", &fakeTransport{err: providerErr})

		_, err := m.SendCatalog(context.Background(), TemplateClassic, Request{Email: "bad", Name: "Ana"})

		assert.ErrorIs(t, err, apperror.ErrValidation)
		assert.Equal(t, "EMAIL_SEND_FAILED", apperror.CodeOf(err))
		assert.Contains(t, err.Error(), "The `to` field is invalid")
	})

	t.Run("modern hides it behind a 500", func(t *testing.T) {
		m := newTestMailer(t, "re_test", &fakeTransport{err: providerErr})

		_, err := m.SendCatalog(context.Background(), TemplateModern, Request{Email: "bad", Name: "Ana"})

		assert.ErrorIs(t, err, apperror.ErrUnavailable)
		assert.Equal(t, "Error al enviar el email", err.Error())
	})
}
