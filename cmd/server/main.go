package main

import (
	"KeeBridge/internal/association"
	"KeeBridge/internal/config"
	"KeeBridge/internal/handlers"
	"KeeBridge/internal/metrics"
	"KeeBridge/internal/middleware"
	"KeeBridge/internal/notify"
	"KeeBridge/internal/repo"
	"KeeBridge/internal/service"
	"KeeBridge/internal/vault"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const notifyBuffer = 64

func main() {
	cfg := config.NewConfig()

	// создаём предустановленный регистратор zap
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}

	// делаем регистратор SugaredLogger
	sugar := logger.Sugar()
	middleware.SetLogger(sugar) // передаём логгер в middleware
	//сброс буфера логгера
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !strings.Contains(cfg.DatabaseDSN, "://") {
		if err := os.MkdirAll(filepath.Dir(cfg.DatabaseDSN), 0o700); err != nil {
			sugar.Fatalw("failed to create vault directory", "error", err)
		}
	}
	if cfg.MasterPassword == "" {
		sugar.Warnw("MASTER_PASSWORD is empty, the vault is protected by an empty password")
	}

	v := vault.NewGormVault(func(context.Context) (*gorm.DB, error) {
		return repo.InitDB(cfg.DatabaseDSN)
	}, cfg.MasterPassword, sugar)
	if !cfg.StartLocked {
		if err := v.Unlock(ctx); err != nil {
			sugar.Fatalw("failed to open vault", "error", err)
		}
	}
	defer v.Lock()

	m := metrics.New()
	notifier := notify.New(sugar, func(ctx context.Context) time.Duration {
		return vault.PromptTimeout(ctx, v)
	}, notifyBuffer)
	defer notifier.Close()
	m.RegisterDropped(notifier.Dropped)

	store := association.NewStore(vault.AnchorRecords{Vault: v}, notifier)
	svc := service.NewService(v, store, notifier, m, sugar, service.Options{
		ReturnStringFields:   cfg.ReturnStringFields,
		SpecificMatchingOnly: cfg.SpecificMatchingOnly,
		UnlockOnRequest:      cfg.UnlockOnRequest,
		UnlockTimeout:        cfg.UnlockTimeout,
		Password: service.PasswordProfile{
			Length:  cfg.PasswordLength,
			Letters: cfg.PasswordLetters,
			Digits:  cfg.PasswordDigits,
			Symbols: cfg.PasswordSymbols,
		},
	})

	h := handlers.NewHandler(svc, middleware.NewRemoteLimiter(cfg.AssociateRate), m, sugar)

	sugar.Infow("Config",
		"ListenAddr", cfg.ListenAddr,
		"DatabaseDSN", cfg.DatabaseDSN,
		"StartLocked", cfg.StartLocked,
		"UnlockOnRequest", cfg.UnlockOnRequest,
		"SpecificMatchingOnly", cfg.SpecificMatchingOnly,
	)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			sugar.Errorw("Server shutdown failed", "error", err)
		}
	}()

	sugar.Infow("Starting server", "addr", cfg.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		sugar.Errorw("Server failed", "error", err)
	}
	sugar.Infow("Server stopped")
}
