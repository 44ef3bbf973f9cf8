// Package server wires handlers, middleware, and routes, and runs the HTTP
// server with graceful shutdown.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → Server.New:
//	  sqlite.DB ─┬→ AccountService  → AuthHandler
//	             ├→ CatalogService  → CatalogHandler
//	             ├→ PurchaseService → PurchaseHandler
//	             └→ ReferralService → ReferralHandler
//	  mailer.Mailer                 → EmailHandler
//
// This is the composition root: every dependency is built here, so the
// layers below never construct each other.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/watch-storefront/internal/auth"
	"github.com/sakif/watch-storefront/internal/config"
	"github.com/sakif/watch-storefront/internal/handler"
	"github.com/sakif/watch-storefront/internal/mailer"
	"github.com/sakif/watch-storefront/internal/metrics"
	"github.com/sakif/watch-storefront/internal/middleware"
	sqliteRepo "github.com/sakif/watch-storefront/internal/repository/sqlite"
	"github.com/sakif/watch-storefront/internal/service"
)

// Server owns the router and the database connection.
type Server struct {
	router  *chi.Mux
	config  config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	limiter *middleware.RateLimiter

	mailOpts []mailer.Option
}

// Option customises a Server before its routes are built.
type Option func(*Server)

// WithMailTransport replaces the Resend transport.
func WithMailTransport(t mailer.Transport) Option {
	return func(s *Server) { s.mailOpts = append(s.mailOpts, mailer.WithTransport(t)) }
}

// New opens the database and builds every route.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		limiter: middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.limiter.TrustProxies(cfg.TrustedProxyList()); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring rate limiter: %w", err)
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes configures middleware and routes.
//
// ROUTES:
//
//	GET  /healthz                    → database ping
//	GET  /metrics                    → Prometheus exposition
//	GET  /catalogs/*                 → catalog PDFs from CATALOG_DIR (if set)
//	POST /api/auth/sign-up/email     ┐
//	POST /api/auth/sign-in/email     │ accounts and the session cookie
//	POST /api/auth/sign-out          │
//	GET  /api/auth/session           │
//	GET  /api/auth/github/login      │ only when GitHub is configured
//	GET  /api/auth/github/callback   ┘
//	POST /api/catalog/download         GET /api/catalog/downloads
//	POST /api/purchases                GET /api/purchases/user
//	GET  /api/customer/status
//	POST /api/referrals/create         GET /api/referrals/stats
//	POST /api/referrals/track
//	POST /api/send-catalog             POST /api/send-catalog-email
//
// MIDDLEWARE ORDER MATTERS:
// RequestID first so every later log line can carry it. PeerAddr records the
// socket address before RealIP rewrites it from forwarding headers; the rate
// limiter keys on that peer unless it is a trusted proxy.
// Recoverer sits inside the logger so a panic is still logged as a 500.
func (s *Server) setupRoutes() error {
	secret := s.config.JWTSecret
	if secret == "" {
		var err error
		if secret, err = randomSecret(); err != nil {
			return err
		}
		s.logger.Warn("JWT_SECRET not set; using a random secret, sessions will not survive a restart")
	}
	tokens, err := auth.NewTokenService(secret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	m, err := mailer.New(mailer.Config{
		APIKey:           s.config.ResendAPIKey,
		From:             s.config.EmailFrom,
		AppURL:           s.config.AppURL,
		PublicCatalogURL: s.config.PublicCatalogURL,
	}, s.logger, s.mailOpts...)
	if err != nil {
		return err
	}
	if s.config.ResendAPIKey == "" {
		s.logger.Warn("RESEND_API_KEY not set; catalog email endpoints will return 500")
	}

	// === Services ===
	// s.db implements every repository interface.
	accounts := service.NewAccountService(s.db, tokens, auth.NewPasswordService(), s.logger)
	catalog := service.NewCatalogService(s.db, s.logger)
	purchases := service.NewPurchaseService(s.db, s.logger)
	referrals := service.NewReferralService(s.db, s.db, s.config.AppURL, s.logger)

	// === Handlers ===
	// A nil *GitHubProvider must not end up inside the interface, so the
	// variable stays a nil interface when GitHub is off.
	var github handler.GitHubAuthenticator
	if s.config.GitHubEnabled() {
		github = auth.NewGitHubProvider(s.config.GitHubClientID, s.config.GitHubClientSecret, s.config.GitHubCallbackURL)
	} else {
		s.logger.Info("GitHub sign-in disabled (GITHUB_CLIENT_ID/GITHUB_CLIENT_SECRET not set)")
	}

	authH := handler.NewAuthHandler(accounts, github, s.config.CookieSecure, s.config.AppURL, s.logger)
	catalogH := handler.NewCatalogHandler(catalog, s.logger)
	purchaseH := handler.NewPurchaseHandler(purchases, s.logger)
	referralH := handler.NewReferralHandler(referrals, s.logger)
	emailH := handler.NewEmailHandler(m, s.logger)
	healthH := handler.NewHealthHandler(s.db, s.logger)

	// === Global middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(middleware.PeerAddr)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(metrics.InstrumentHandler)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true, // the session cookie
		MaxAge:           300,
	}))
	s.router.Use(auth.Session(tokens))

	// === Operational routes ===
	s.router.Get("/healthz", healthH.HandleHealth)
	s.router.Handle("/metrics", metrics.Handler())

	if s.config.CatalogDir != "" {
		fileServer := http.FileServer(http.Dir(s.config.CatalogDir))
		s.router.Handle("/catalogs/*", http.StripPrefix("/catalogs/", fileServer))
	}

	// === API routes ===
	limited := s.limiter.Handler

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(limited).Post("/sign-up/email", authH.HandleSignUp)
			r.With(limited).Post("/sign-in/email", authH.HandleSignIn)
			r.Post("/sign-out", authH.HandleSignOut)
			r.With(auth.RequireAuth).Get("/session", authH.HandleSession)

			if github != nil {
				r.Get("/github/login", authH.HandleGitHubLogin)
				r.Get("/github/callback", authH.HandleGitHubCallback)
			}
		})

		r.With(limited).Post("/catalog/download", catalogH.HandleDownload)
		r.Get("/catalog/downloads", catalogH.HandleList)

		r.Get("/customer/status", purchaseH.HandleStatus)
		r.Post("/purchases", purchaseH.HandleCreate)
		r.Get("/purchases/user", purchaseH.HandleList)

		r.Post("/referrals/create", referralH.HandleCreate)
		r.Get("/referrals/stats", referralH.HandleStats)
		r.With(limited).Post("/referrals/track", referralH.HandleTrack)

		r.With(limited).Post("/send-catalog", emailH.HandleSendCatalog)
		r.With(limited).Post("/send-catalog-email", emailH.HandleSendCatalogEmail)
	})

	return nil
}

// Start serves until SIGINT/SIGTERM, then shuts down gracefully.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Wait up to 30s for in-flight requests
//  3. Close the database (flushes the WAL, releases the file lock)
func (s *Server) Start() error {
	defer s.db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s.limiter.StartCleanup(ctx, time.Minute)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// randomSecret returns a 32-byte hex secret for processes started without
// JWT_SECRET.
func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
