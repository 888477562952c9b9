// Package api exposes the auth emulator and table store over HTTP with
// routes shaped like the hosted service's REST surface.
package api

import (
	"context"
	"log/slog"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/txn2/ai-notebook/pkg/audit"
	"github.com/txn2/ai-notebook/pkg/auth"
	"github.com/txn2/ai-notebook/pkg/health"
	"github.com/txn2/ai-notebook/pkg/notebook"
	"github.com/txn2/ai-notebook/pkg/table"
	"github.com/txn2/ai-notebook/pkg/token"

	_ "github.com/txn2/ai-notebook/pkg/apidocs" // register swagger docs
)

// SessionManager is the auth surface served by the gateway.
type SessionManager interface {
	Register(ctx context.Context, email, password string, profile auth.Profile) (*auth.Identity, *auth.Session, error)
	Login(ctx context.Context, email, password string) (*auth.Identity, *auth.Session, error)
	Logout(ctx context.Context) error
	CurrentUser() *auth.Identity
	CurrentSession() *auth.Session
	UpdateProfile(ctx context.Context, update auth.ProfileUpdate) (*auth.Identity, error)
	ResetPasswordForEmail(ctx context.Context, email string) error
}

// TokenVerifier validates access tokens.
type TokenVerifier interface {
	Verify(tokenString string) (*token.Claims, error)
}

// EventRecorder accepts audit events without blocking.
type EventRecorder interface {
	Record(event audit.Event)
}

// Deps holds the gateway's collaborators. Notebook, Recorder, AuditLog and
// Health are optional.
type Deps struct {
	Sessions SessionManager
	Tokens   TokenVerifier
	Tables   table.Store
	Notebook *notebook.Service
	Recorder EventRecorder
	AuditLog audit.Logger
	Health   *health.Checker
	Logger   *slog.Logger

	// CORSOrigins lists browser origins allowed to call the gateway.
	// "*" allows any origin.
	CORSOrigins []string

	// MaxBodyBytes caps request bodies. Zero uses DefaultMaxBodyBytes.
	MaxBodyBytes int64
}

// DefaultMaxBodyBytes is the request body cap when Deps.MaxBodyBytes is zero.
const DefaultMaxBodyBytes int64 = 4 << 20

// Handler serves the gateway routes.
type Handler struct {
	mux  *http.ServeMux
	deps Deps
	log  *slog.Logger
}

// NewHandler creates a gateway handler.
func NewHandler(deps Deps) *Handler {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = DefaultMaxBodyBytes
	}
	h := &Handler{
		mux:  http.NewServeMux(),
		deps: deps,
		log:  log,
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.deps.MaxBodyBytes)
	h.logRequests(h.cors(h.mux)).ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	authed := h.requireSession

	h.mux.HandleFunc("POST /auth/v1/signup", h.signup)
	h.mux.HandleFunc("POST /auth/v1/token", h.token)
	h.mux.Handle("POST /auth/v1/logout", authed(http.HandlerFunc(h.logout)))
	h.mux.Handle("GET /auth/v1/session", authed(http.HandlerFunc(h.session)))
	h.mux.HandleFunc("POST /auth/v1/recover", h.recoverPassword)
	h.mux.Handle("GET /auth/v1/user", authed(http.HandlerFunc(h.getUser)))
	h.mux.Handle("PUT /auth/v1/user", authed(http.HandlerFunc(h.updateUser)))

	if h.deps.AuditLog != nil {
		h.mux.Handle("GET /auth/v1/audit", authed(http.HandlerFunc(h.listAuditEvents)))
	}

	h.mux.Handle("GET /rest/v1/{table}", authed(http.HandlerFunc(h.selectRows)))
	h.mux.Handle("POST /rest/v1/{table}", authed(http.HandlerFunc(h.insertRows)))
	h.mux.Handle("PATCH /rest/v1/{table}", authed(http.HandlerFunc(h.updateRows)))
	h.mux.Handle("DELETE /rest/v1/{table}", authed(http.HandlerFunc(h.deleteRows)))

	if h.deps.Notebook != nil {
		h.mux.Handle("GET /notebook/v1/export", authed(http.HandlerFunc(h.exportSnapshot)))
		h.mux.Handle("POST /notebook/v1/import", authed(http.HandlerFunc(h.importSnapshot)))
		h.registerFacadeRoutes()
	}

	if h.deps.Health != nil {
		h.mux.HandleFunc("GET /healthz", h.deps.Health.LivenessHandler())
		h.mux.HandleFunc("GET /readyz", h.deps.Health.ReadinessHandler())
	}

	h.mux.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}

// record forwards event to the recorder, if any.
func (h *Handler) record(r *http.Request, event *audit.Event) {
	if h.deps.Recorder == nil {
		return
	}
	h.deps.Recorder.Record(*event.WithRemoteAddr(r.RemoteAddr))
}
