package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/iudanet/mooday/internal/config"
	"github.com/iudanet/mooday/internal/crypto"
	"github.com/iudanet/mooday/internal/server"
	"github.com/iudanet/mooday/internal/server/captcha"
	"github.com/iudanet/mooday/internal/server/jwt"
	"github.com/iudanet/mooday/internal/server/observability"
	"github.com/iudanet/mooday/internal/server/ratelimit"
	"github.com/iudanet/mooday/internal/server/session"
	"github.com/iudanet/mooday/internal/server/storage/postgres"
	"github.com/iudanet/mooday/internal/server/storage/sqlite"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	// Show version and exit if requested
	if cfg.ShowVersion {
		printVersion()
		os.Exit(0)
	}

	logger := newLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("Mooday Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level, _ := cfg.SlogLevel() // уровень уже проверен в Validate
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Log.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler).With(slog.String("service", "mooday"))
}

// run собирает зависимости по конфигурации и блокируется до отмены ctx
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) (err error) {
	logger.Info("Mooday Server starting",
		slog.String("version", Version),
		slog.String("db_driver", cfg.Database.Driver),
		slog.String("session_backend", cfg.Session.Backend),
		slog.String("rate_limit_backend", cfg.RateLimit.Backend))

	if cfg.UsesInsecureDefaults() {
		logger.Warn("JWT_SECRET or SESSION_SECRET uses an insecure default, set both before deploying")
	}
	if !cfg.Server.CookieSecure {
		logger.Warn("COOKIE_SECURE is disabled, the session cookie is sent over plain HTTP; use only for local development")
	}

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if cerr := closers[i].Close(); cerr != nil {
				err = errors.Join(err, cerr)
			}
		}
	}()

	users, err := openUserStore(ctx, cfg)
	if err != nil {
		return err
	}
	closers = append(closers, users)

	var rdb *redis.Client
	if cfg.UsesRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, rdb)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	var sessions session.Store
	switch cfg.Session.Backend {
	case config.BackendRedis:
		sessions = session.NewRedisStore(rdb, cfg.Redis.KeyPrefix+":session")
	case config.BackendBolt:
		bs, err := session.NewBoltStore(cfg.Session.BoltPath)
		if err != nil {
			return err
		}
		closers = append(closers, bs)
		sessions = bs
	default:
		sessions = session.NewMemoryStore()
	}

	var limiter ratelimit.Limiter
	switch cfg.RateLimit.Backend {
	case config.BackendRedis:
		limiter = ratelimit.NewRedisLimiter(rdb, cfg.Redis.KeyPrefix+":ratelimit", cfg.RateLimit.Limit, cfg.RateLimit.Window)
	default:
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Window)
	}

	hasher, err := crypto.NewHasher(cfg.Auth.PasswordHasher, cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Options{
		Addr:            cfg.Server.Addr,
		TrustProxyHops:  cfg.Server.TrustProxyHops,
		CORSOrigins:     cfg.Server.CORSOrigins,
		SweepSchedule:   cfg.RateLimit.SweepSchedule,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Version:         Version,
	}, server.Deps{
		Logger:    logger,
		Users:     users,
		Hasher:    hasher,
		Limiter:   limiter,
		Sessions:  sessions,
		Generator: captcha.NewImageGenerator(captcha.Width, captcha.Height),
		Tokens:    jwt.NewAuthority([]byte(cfg.Auth.JWTSecret)),
		Cookies:   session.NewCookies(session.DefaultCookieName, []byte(cfg.Auth.SessionSecret), cfg.Server.CookieSecure),
		Metrics:   observability.NewMetrics(prometheus.NewRegistry()),
	})
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}

// userStore - хранилище учетных записей, которое нужно закрыть при остановке
type userStore interface {
	server.UserStore
	io.Closer
}

func openUserStore(ctx context.Context, cfg *config.Config) (userStore, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		s, err := postgres.New(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return s, nil
	default:
		s, err := sqlite.New(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return s, nil
	}
}
