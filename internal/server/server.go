// Package server exposes the token engine over HTTP: login, refresh,
// validate and logout, plus health and metrics endpoints.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gourdian25/gourdianauth"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultCookieName   = "refreshToken"
	defaultCookiePath   = "/api/auth"
	defaultMaxBodyBytes = 1 << 16
)

// Tokens is the part of gourdianauth.Coordinator the handlers use.
type Tokens interface {
	IssueInitialPair(ctx context.Context, principal gourdianauth.Principal) (*gourdianauth.TokenPair, error)
	Rotate(ctx context.Context, presentedToken string, principal gourdianauth.Principal) (*gourdianauth.TokenPair, error)
	VerifyClaims(tokenString string) (*gourdianauth.AccessClaims, error)
	SessionOwner(ctx context.Context, presentedToken string) (uuid.UUID, error)
	Logout(ctx context.Context, presentedToken string) error
}

// Authenticator checks credentials and reloads principals.
type Authenticator interface {
	Authenticate(ctx context.Context, login, password string) (gourdianauth.Principal, error)
	Principal(ctx context.Context, id uuid.UUID) (gourdianauth.Principal, error)
}

var _ Tokens = (*gourdianauth.Coordinator)(nil)

// Config controls cookie delivery of refresh tokens.
type Config struct {
	CookieName   string
	CookiePath   string
	CookieDomain string
	CookieSecure bool
	MaxBodyBytes int64
}

func (c Config) withDefaults() Config {
	if c.CookieName == "" {
		c.CookieName = defaultCookieName
	}
	if c.CookiePath == "" {
		c.CookiePath = defaultCookiePath
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = defaultMaxBodyBytes
	}
	return c
}

// Handler serves the /api/auth endpoints.
type Handler struct {
	log    *slog.Logger
	cfg    Config
	tokens Tokens
	auth   Authenticator
}

func NewHandler(log *slog.Logger, cfg Config, tokens Tokens, auth Authenticator) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		log:    log,
		cfg:    cfg.withDefaults(),
		tokens: tokens,
		auth:   auth,
	}
}

// Register wires auth routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth", h.handleLogin)
	mux.HandleFunc("POST /api/auth/refresh", h.handleRefresh)
	mux.HandleFunc("GET /api/auth/validate", h.handleValidate)
	mux.HandleFunc("POST /api/auth/logout", h.handleLogout)
}

// NewMux returns the full daemon handler: auth routes, /healthz, request
// logging and, when reg is set, /metrics plus a per-request counter.
func NewMux(log *slog.Logger, h *Handler, reg *prometheus.Registry) (http.Handler, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	h.Register(mux)

	var handler http.Handler = mux
	if reg != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

		var err error
		handler, err = WithRequestCounting(handler, reg)
		if err != nil {
			return nil, err
		}
	}
	return WithRequestLogging(handler, log), nil
}
