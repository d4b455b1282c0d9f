package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sizzle-game/server/internal/auth"
	"github.com/sizzle-game/server/internal/authlog/sqlite"
	"github.com/sizzle-game/server/internal/config"
	"github.com/sizzle-game/server/internal/google"
	"github.com/sizzle-game/server/internal/handshake"
	"github.com/sizzle-game/server/internal/httpx"
	"github.com/sizzle-game/server/internal/mailer"
	"github.com/sizzle-game/server/internal/password"
	"github.com/sizzle-game/server/internal/progress"
	"github.com/sizzle-game/server/internal/storage"
	"github.com/sizzle-game/server/internal/telemetry"
	"github.com/sizzle-game/server/internal/token"
	"github.com/sizzle-game/server/internal/user"
)

const serviceName = "sizzle-server"

func main() {
	telemetry.InitLogger(slog.LevelInfo)

	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	shutdownTracer, err := telemetry.SetupTracer(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			slog.Error("tracer shutdown failed", "error", err)
		}
	}()

	db, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := os.MkdirAll(filepath.Dir(cfg.AuthLogPath), 0o755); err != nil {
		return err
	}
	audit, err := sqlite.Open(cfg.AuthLogPath)
	if err != nil {
		return err
	}
	defer audit.Close()

	users := user.NewPostgresRepository(db)
	saves := progress.NewPostgresRepository(db)

	var txStore handshake.Store
	if cfg.RedisAddr != "" {
		txStore = handshake.NewRedisStore(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
		slog.Info("handshake store: redis", "addr", cfg.RedisAddr)
	} else {
		txStore = handshake.NewMemoryStore()
		slog.Info("handshake store: in-memory (single instance only)")
	}

	issuer := token.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)
	hasher := password.NewHasher(0)

	var mail mailer.Mailer = mailer.LogMailer{}
	if cfg.SMTPAddr != "" {
		mail = mailer.NewSMTPMailer(cfg.SMTPAddr, cfg.SMTPFrom, cfg.SMTPUser, cfg.SMTPPass)
	}

	provider := google.NewClient(google.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.PublicBaseURL + "/auth/google/callback",
	})

	accounts := auth.NewService(users, hasher, issuer, mail, cfg.PublicBaseURL)
	hs := handshake.NewService(txStore, provider, users, issuer, audit)

	handler := httpx.NewHandler(accounts, hs, saves, issuer)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httpx.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
