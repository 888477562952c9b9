// Package server assembles notebookd from its configuration.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	_ "github.com/lib/pq"              // postgres driver

	"github.com/txn2/ai-notebook/pkg/api"
	"github.com/txn2/ai-notebook/pkg/audit"
	auditpg "github.com/txn2/ai-notebook/pkg/audit/postgres"
	"github.com/txn2/ai-notebook/pkg/auth"
	"github.com/txn2/ai-notebook/pkg/config"
	"github.com/txn2/ai-notebook/pkg/database/migrate"
	"github.com/txn2/ai-notebook/pkg/health"
	"github.com/txn2/ai-notebook/pkg/kvstore"
	kvpg "github.com/txn2/ai-notebook/pkg/kvstore/postgres"
	kvsqlite "github.com/txn2/ai-notebook/pkg/kvstore/sqlite"
	"github.com/txn2/ai-notebook/pkg/notebook"
	"github.com/txn2/ai-notebook/pkg/table"
	tablepg "github.com/txn2/ai-notebook/pkg/table/postgres"
	"github.com/txn2/ai-notebook/pkg/token"
)

// Version is set at build time.
var Version = "dev"

// auditCleanupInterval is how often expired audit events are purged.
const auditCleanupInterval = 24 * time.Hour

// Seams replaced by tests.
var (
	openDB        = sql.Open
	runMigrations = migrate.Run
)

// Server owns every long-lived component of notebookd.
type Server struct {
	cfg      *config.Config
	log      *slog.Logger
	db       *sql.DB
	kv       kvstore.Store
	emulator *auth.Emulator
	recorder *audit.Recorder
	checker  *health.Checker
	handler  http.Handler

	closers []func() error
}

// New builds a Server from cfg. On error, anything already opened is closed.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *Server, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{cfg: cfg, log: logger, checker: health.NewChecker()}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	if cfg.NeedsDatabase() {
		if err := s.openDatabase(ctx); err != nil {
			return nil, err
		}
	}

	if err := s.openPersistence(); err != nil {
		return nil, err
	}

	tokens, err := token.NewIssuer(token.Config{
		SigningKey: cfg.Auth.SigningKey,
		Issuer:     cfg.Auth.Issuer,
		TTL:        cfg.Auth.SessionTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating token issuer: %w", err)
	}
	if cfg.Auth.SigningKey == "" {
		logger.Warn("auth.signing_key not set, using a random key; sessions will not survive restarts")
	}

	params := cfg.Auth.Password
	s.emulator, err = auth.New(ctx, auth.Config{
		Store:             s.kv,
		Tokens:            tokens,
		PasswordParams:    &params,
		MinPasswordLength: cfg.Auth.MinPasswordLength,
		SessionKey:        cfg.Auth.SessionKey,
		AccountsKey:       cfg.Auth.AccountsKey,
		Logger:            logger.With("component", "auth"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating auth emulator: %w", err)
	}
	s.closers = append(s.closers, s.emulator.Close)
	if cfg.Auth.SyncInterval > 0 {
		s.emulator.StartSyncRoutine(cfg.Auth.SyncInterval)
	}

	var tables table.Store
	if cfg.UseDatabaseBackend() {
		tables = tablepg.New(s.db, s.emulator)
		logger.Info("table backend selected", "backend", config.BackendPostgres)
	} else {
		tables = table.NewMemoryStore(s.emulator)
		logger.Info("table backend selected", "backend", config.BackendMemory)
	}

	deps := api.Deps{
		Sessions: s.emulator,
		Tokens:   tokens,
		Tables:   tables,
		Notebook: notebook.New(tables, logger.With("component", "notebook")),
		Health:   s.checker,
		Logger:   logger.With("component", "api"),

		CORSOrigins:  cfg.Server.CORSOrigins,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}
	if cfg.Audit.Enabled {
		auditLog := s.newAuditLogger()
		s.recorder = audit.NewRecorder(auditLog, logger, 0)
		s.recorder.Watch(s.emulator)
		s.closers = append(s.closers, s.recorder.Close)
		deps.Recorder = s.recorder
		deps.AuditLog = auditLog
	}
	s.handler = api.NewHandler(deps)

	return s, nil
}

func (s *Server) openDatabase(ctx context.Context) error {
	db, err := openDB(s.cfg.Database.Driver, s.cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	s.db = db
	s.closers = append(s.closers, db.Close)

	db.SetMaxOpenConns(s.cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.Database.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	if !s.cfg.Database.SkipMigrations {
		if err := runMigrations(db); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
	}
	s.checker.AddCheck("database", db.PingContext)
	return nil
}

func (s *Server) openPersistence() error {
	p := s.cfg.Persistence
	switch p.Mode {
	case kvstore.ModeFile:
		fs, err := kvstore.NewFileStore(p.Path)
		if err != nil {
			return err
		}
		s.kv = fs
	case kvstore.ModeSQLite:
		st, err := kvsqlite.Open(p.Path)
		if err != nil {
			return err
		}
		s.kv = st
		s.closers = append(s.closers, st.Close)
		s.checker.AddCheck("persistence", st.Ping)
	case kvstore.ModePostgres:
		s.kv = kvpg.New(s.db)
	default:
		s.kv = kvstore.NewMemoryStore()
	}
	s.log.Info("session persistence ready", "mode", s.kv.Mode())
	return nil
}

func (s *Server) newAuditLogger() audit.Logger {
	if s.cfg.Audit.Store == config.AuditPostgres {
		store := auditpg.New(s.db, auditpg.Config{RetentionDays: s.cfg.Audit.RetentionDays})
		store.StartCleanupRoutine(auditCleanupInterval)
		return store
	}
	return audit.NewSlogLogger(s.log.With("component", "audit"))
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Emulator returns the auth emulator.
func (s *Server) Emulator() *auth.Emulator { return s.emulator }

// Health returns the readiness checker.
func (s *Server) Health() *health.Checker { return s.checker }

// Serve accepts connections on ln until ctx is cancelled, then drains and
// shuts down within server.shutdown_timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: s.cfg.Server.ReadTimeout,
		WriteTimeout:      s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	s.checker.SetReady()
	s.log.Info("notebookd listening", "address", ln.Addr().String(), "version", Version)

	select {
	case err := <-errCh:
		s.checker.SetDraining()
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	s.checker.SetDraining()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	s.log.Info("notebookd stopped")
	return nil
}

// ListenAndServe listens on server.address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Server.Address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Server.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Close releases components in reverse order of creation.
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
