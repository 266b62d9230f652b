package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/go-api-verification/internal/application/verification"
	"github.com/go-api-verification/internal/config"
	"github.com/go-api-verification/internal/domain"
	"github.com/go-api-verification/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-api-verification/internal/infrastructure/jwt"
	"github.com/go-api-verification/internal/infrastructure/memory"
	redisinfra "github.com/go-api-verification/internal/infrastructure/redis"
	resendinfra "github.com/go-api-verification/internal/infrastructure/resend"
	s3infra "github.com/go-api-verification/internal/infrastructure/s3"
	sendgridinfra "github.com/go-api-verification/internal/infrastructure/sendgrid"
	"github.com/go-api-verification/internal/infrastructure/simulation"
	"github.com/go-api-verification/internal/infrastructure/smtp"
	"github.com/go-api-verification/internal/infrastructure/sns"
	"github.com/go-api-verification/internal/pkg/logging"
	"github.com/go-api-verification/internal/pkg/mailtmpl"
	transporthttp "github.com/go-api-verification/internal/transport/http"
)

type store interface {
	Put(ctx context.Context, rec *domain.VerificationRecord) error
	Get(ctx context.Context, email string) (*domain.VerificationRecord, error)
	Delete(ctx context.Context, email string) error
	Consume(ctx context.Context, email, code string) error
}

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	slog.SetDefault(logging.NewLogger(os.Stdout, cfg.LogLevel, cfg.IsProduction()))
	if envErr != nil {
		slog.Info("no .env file found, reading from environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	verifications, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}

	inbox := simulation.NewInbox(cfg.Verification.MaxRecords)
	channels := newChannels(ctx, cfg, inbox)
	dispatcher, err := verification.NewDispatcher(channels, cfg.Verification.Channel, cfg.Verification.Fallbacks,
		verification.DispatcherOptions{
			AttemptTimeout: cfg.Verification.AttemptTimeout,
			Strict:         cfg.Verification.StrictDelivery,
		})
	if err != nil {
		return err
	}
	slog.Info("verification delivery chain", "channels", dispatcher.Chain(), "strict", cfg.Verification.StrictDelivery)

	// JWT provider (optional: verified responses carry no token without keys).
	var jwtProvider *jwtinfra.Provider
	deps := verification.ServiceDeps{
		Store:       verifications,
		Dispatcher:  dispatcher,
		CodeTTL:     cfg.Verification.CodeTTL,
		ProductName: cfg.Verification.ProductName,
	}
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
		deps.Tokens = p
	} else {
		slog.Warn("JWT provider not available", "err", err)
	}

	router := transporthttp.NewRouter(ctx, cfg, &transporthttp.Deps{
		Verification: verification.NewService(deps),
		Channels:     dispatcher.Chain(),
		Inbox:        inbox,
		JWTProvider:  jwtProvider,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func newStore(ctx context.Context, cfg *config.Config) (store, error) {
	v := cfg.Verification
	switch v.Store {
	case "memory", "":
		s := memory.NewVerificationStore(v.MaxRecords, v.Retention)
		go s.Run(ctx, v.SweepInterval)
		return s, nil
	case "redis":
		client, err := redisinfra.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		context.AfterFunc(ctx, func() { _ = client.Close() })
		return redisinfra.NewVerificationStore(client, v.Retention), nil
	case "dynamo":
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
		return dynamo.NewVerificationStore(client, cfg.DynamoTables.Verifications, v.Retention), nil
	default:
		return nil, fmt.Errorf("unknown VERIFICATION_STORE %q", v.Store)
	}
}

// newChannels registers every channel. Channels missing their settings still
// register and fail at delivery time, so the dispatcher falls back.
func newChannels(ctx context.Context, cfg *config.Config, inbox *simulation.Inbox) map[string]verification.Channel {
	renderer := mailtmpl.Default()
	if cfg.EmailTemplateS3Key != "" {
		if client, err := s3infra.NewClient(ctx, cfg); err == nil {
			renderer = mailtmpl.Load(ctx, s3infra.NewStore(client, cfg.S3BucketName), cfg.EmailTemplateS3Key)
		} else {
			slog.Warn("S3 client not available, using default email template", "err", err)
		}
	}

	relayB := sns.NewRelay(nil, "")
	if client, err := sns.NewClient(ctx, cfg); err == nil {
		relayB = sns.NewRelay(client, cfg.RelayTopicARN)
	} else {
		slog.Warn("SNS relay not available", "err", err)
	}

	list := []verification.Channel{
		simulation.NewChannel(inbox),
		sendgridinfra.NewRelay(nil, cfg.SendGrid),
		relayB,
		smtp.NewMailer(cfg, renderer),
		resendinfra.NewChannel(nil, cfg.Resend, renderer),
	}
	out := make(map[string]verification.Channel, len(list))
	for _, ch := range list {
		out[ch.Name()] = ch
	}
	return out
}
