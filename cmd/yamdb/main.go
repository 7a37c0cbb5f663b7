// Command yamdb runs the YaMDb HTTP API together with the internal gRPC
// catalog lookup service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"yamdb/internal/access"
	"yamdb/internal/api"
	"yamdb/internal/catalog"
	"yamdb/internal/config"
	catalogrpc "yamdb/internal/grpc"
	"yamdb/internal/identity"
	"yamdb/internal/logging"
	"yamdb/internal/mail"
	"yamdb/internal/review"
	"yamdb/internal/store"
	"yamdb/pkg/auth"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "yamdb: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("YaMDb stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newMailer(cfg config.MailConfig, logger *slog.Logger) mail.Sender {
	if cfg.Backend != "smtp" {
		logger.Info("Confirmation mail is written to the log")
		return mail.NewConsoleSender(logger)
	}
	logger.Info("Confirmation mail is sent through SMTP", slog.String("host", cfg.SMTPHost), slog.Int("port", cfg.SMTPPort))
	smtp := mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		UseTLS:   cfg.UseTLS,
		Timeout:  cfg.Timeout,
	})
	return mail.NewBreakerSender(smtp, cfg.BreakerMaxFailures, cfg.BreakerTimeout, logger)
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !cfg.IsProduction() {
		logger.Warn("Running in non-production mode", slog.String("environment", cfg.Server.Environment))
	}

	db, err := store.Open(ctx, store.Config{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.URL,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		logger.Info("Closing database connection")
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database", slog.String("error", err.Error()))
		}
	}()
	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
	}

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	if err != nil {
		return fmt.Errorf("failed to create token manager: %w", err)
	}
	codes, err := auth.NewCodeGenerator(cfg.Auth.JWTSecret, cfg.Auth.CodeTTL)
	if err != nil {
		return fmt.Errorf("failed to create code generator: %w", err)
	}
	authz, err := access.NewAuthorizer(logger)
	if err != nil {
		return fmt.Errorf("failed to create authorizer: %w", err)
	}

	engine := review.NewEngine(db, db, authz, logger)
	catalogSvc := catalog.NewService(db, engine, authz, logger)
	signup := identity.NewService(db, codes, tokens, newMailer(cfg.Mail, logger), cfg.Mail.From, logger)
	directory := identity.NewDirectory(db, authz, logger)

	handler := api.NewHandler(api.Deps{
		Catalog:         catalogSvc,
		Reviews:         engine,
		Signup:          signup,
		Users:           directory,
		Tokens:          tokens,
		Accounts:        db,
		Health:          db,
		Logger:          logger,
		DefaultPageSize: cfg.API.DefaultPageSize,
		MaxPageSize:     cfg.API.MaxPageSize,
	})
	router := api.NewRouter(handler, api.RouterConfig{
		CORSOrigins:    cfg.Security.Origins(),
		AuthRateLimit:  cfg.Security.AuthRateLimit,
		AuthRateWindow: cfg.Security.AuthRateWindow,
	})

	httpSrv := &http.Server{
		Addr:         cfg.Server.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.GRPCAddr, err)
	}
	grpcSrv := catalogrpc.NewGRPCServer(catalogrpc.NewServer(catalogSvc, db, logger), logger)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("YaMDb gRPC server starting", slog.String("address", cfg.Server.GRPCAddr))
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- fmt.Errorf("gRPC server failed: %w", err)
		}
	}()
	go func() {
		logger.Info("YaMDb HTTP server starting", slog.String("address", cfg.Server.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("YaMDb shutting down")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", slog.String("error", err.Error()))
	} else {
		logger.Info("HTTP server gracefully stopped")
	}
	grpcSrv.GracefulStop()
	logger.Info("gRPC server gracefully stopped")

	return runErr
}
