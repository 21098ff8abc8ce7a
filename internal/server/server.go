// Package server собирает HTTP сервер mooday: маршруты, middleware,
// фоновую очистку лимитера и сессий и корректную остановку.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/iudanet/mooday/internal/crypto"
	"github.com/iudanet/mooday/internal/server/auth"
	"github.com/iudanet/mooday/internal/server/captcha"
	"github.com/iudanet/mooday/internal/server/handlers"
	"github.com/iudanet/mooday/internal/server/jwt"
	"github.com/iudanet/mooday/internal/server/middleware"
	"github.com/iudanet/mooday/internal/server/observability"
	"github.com/iudanet/mooday/internal/server/ratelimit"
	"github.com/iudanet/mooday/internal/server/session"
	"github.com/iudanet/mooday/internal/server/storage"
)

// UserStore - хранилище учетных записей с проверкой доступности
type UserStore interface {
	storage.UserStorage
	handlers.Pinger
}

// Options - параметры сервера
type Options struct {
	Addr            string
	TrustProxyHops  int
	CORSOrigins     []string
	SweepSchedule   string
	ShutdownTimeout time.Duration
	Version         string
}

// Deps - зависимости сервера. Metrics обязателен
type Deps struct {
	Logger    *slog.Logger
	Users     UserStore
	Hasher    crypto.PasswordHasher
	Limiter   ratelimit.Limiter
	Sessions  session.Store
	Generator captcha.Generator
	Tokens    *jwt.Authority
	Cookies   *session.Cookies
	Metrics   *observability.Metrics
}

// Server - HTTP сервер mooday
type Server struct {
	logger   *slog.Logger
	opts     Options
	handler  http.Handler
	limiter  ratelimit.Limiter
	sessions session.Store
	metrics  *observability.Metrics
	cron     *cron.Cron
}

// New создает сервер и регистрирует задачу очистки
func New(opts Options, deps Deps) (*Server, error) {
	if opts.SweepSchedule == "" {
		opts.SweepSchedule = "@every 5m"
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	issuer := captcha.NewIssuer(deps.Limiter, deps.Sessions, deps.Generator)
	service := auth.NewService(deps.Logger, deps.Users, deps.Hasher, issuer, deps.Tokens)

	s := &Server{
		logger:   deps.Logger,
		opts:     opts,
		limiter:  deps.Limiter,
		sessions: deps.Sessions,
		metrics:  deps.Metrics,
		cron:     cron.New(),
	}

	authHandler := handlers.NewAuthHandler(deps.Logger, service, deps.Cookies, deps.Sessions, deps.Metrics)
	healthHandler := handlers.NewHealthHandler(deps.Logger, deps.Users, opts.Version)
	s.handler = s.routes(authHandler, healthHandler, deps.Tokens)

	if _, err := s.cron.AddFunc(opts.SweepSchedule, func() {
		s.Sweep(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule sweep %q: %w", opts.SweepSchedule, err)
	}

	return s, nil
}

func (s *Server) routes(authHandler *handlers.AuthHandler, healthHandler *handlers.HealthHandler, tokens middleware.TokenVerifier) http.Handler {
	mux := http.NewServeMux()
	requireAuth := middleware.AuthMiddleware(s.logger, tokens)

	// Public endpoints
	mux.HandleFunc("GET /api/captcha", authHandler.Captcha)
	mux.HandleFunc("POST /api/register", authHandler.Register)
	mux.HandleFunc("POST /api/login", authHandler.Login)
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.Handle("GET /metrics", s.metrics.Handler())

	// Protected endpoints
	mux.Handle("PUT /api/user/password", requireAuth(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("GET /api/user/me", requireAuth(http.HandlerFunc(authHandler.Me)))

	var handler http.Handler = mux
	handler = middleware.CORSMiddleware(s.opts.CORSOrigins)(handler)
	handler = observability.HTTPMetricsMiddleware(s.metrics)(handler)
	handler = middleware.LoggingWithSkip(s.logger, []string{"/health", "/metrics"})(handler)
	handler = middleware.ClientIPMiddleware(s.opts.TrustProxyHops)(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.RecoveryMiddleware(s.logger)(handler)
	return handler
}

// Handler возвращает корневой handler со всеми middleware
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Sweep удаляет истекшие записи лимитера и сессий
func (s *Server) Sweep(ctx context.Context) {
	s.sweepOne(ctx, "ratelimit", s.limiter)
	s.sweepOne(ctx, "session", s.sessions)
}

type sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

func (s *Server) sweepOne(ctx context.Context, name string, target sweeper) {
	removed, err := target.Sweep(ctx)
	s.metrics.Swept(name, removed, err)
	if err != nil {
		s.logger.ErrorContext(ctx, "sweep failed", slog.String("store", name), slog.Any("error", err))
		return
	}
	if removed > 0 {
		s.logger.DebugContext(ctx, "sweep completed", slog.String("store", name), slog.Int("removed", removed))
	}
}

// Run запускает HTTP сервер и планировщик очистки.
// Блокируется до отмены ctx, затем корректно останавливает сервер
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.cron.Start()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", slog.String("addr", s.opts.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info("shutting down gracefully")
	case err, ok := <-errCh:
		if ok {
			runErr = fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("http server shutdown: %w", err))
	}

	// Дожидаемся выполняющейся очистки
	<-s.cron.Stop().Done()

	s.logger.Info("server stopped")
	return runErr
}
