package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"
	"github.com/portfolio-api/internal/application/admin"
	"github.com/portfolio-api/internal/application/contact"
	"github.com/portfolio-api/internal/application/feed"
	"github.com/portfolio-api/internal/application/notify"
	"github.com/portfolio-api/internal/application/resume"
	"github.com/portfolio-api/internal/config"
	"github.com/portfolio-api/internal/domain"
	"github.com/portfolio-api/internal/gateway"
	"github.com/portfolio-api/internal/gateway/memory"
	"github.com/portfolio-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/portfolio-api/internal/infrastructure/jwt"
	"github.com/portfolio-api/internal/infrastructure/postgres"
	"github.com/portfolio-api/internal/infrastructure/relay"
	s3infra "github.com/portfolio-api/internal/infrastructure/s3"
	"github.com/portfolio-api/internal/infrastructure/sns"
	"github.com/portfolio-api/internal/logging"
	transporthttp "github.com/portfolio-api/internal/transport/http"
	"github.com/portfolio-api/internal/transport/http/middleware"
	"github.com/portfolio-api/internal/transport/http/sse"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	logging.Setup(cfg.LogLevel)
	if envErr != nil {
		slog.Info("no .env file found, reading from environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := dynamo.LoadAWSConfig(ctx, cfg, cfg.AWSRegion)
	if err != nil {
		logging.Fatal("aws config", "err", err)
	}

	gw, closeGateway, err := openGateway(ctx, cfg, awsCfg)
	if err != nil {
		logging.Fatal("open gateway", "backend", cfg.GatewayBackend, "err", err)
	}
	defer closeGateway()

	// JWT provider (optional: admin routes answer 503 without it).
	var verifier middleware.TokenVerifier
	adminSvc := admin.NewService("", nil)
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		verifier = p
		adminSvc = admin.NewService(cfg.AdminPasswordHash, p)
	} else {
		slog.Warn("JWT provider not available, admin access disabled", "err", err)
	}

	notifier := notify.NewService(newRelay(cfg), newSMSSender(cfg, awsCfg), cfg.OwnerPhone)
	contactSvc := contact.NewService(contact.ServiceDeps{Gateway: gw, Notifier: notifier})
	forms := contact.NewFormStore(contactSvc, cfg.FormTTL, cfg.FormCapacity)

	s3Store := s3infra.NewStore(s3infra.NewClient(awsCfg, cfg), cfg.S3BucketName)
	resumeSvc := resume.NewService(resume.ServiceDeps{
		Store:   s3Store,
		Gateway: gw,
		Key:     cfg.ResumeKey,
		URLTTL:  cfg.ResumeURLTTL,
	})

	hub := sse.NewHub(sse.DefaultBuffer)
	desktop := feed.NewBrowserDesktop(hub)
	notifications := feed.New(gw, feed.Options{
		Capacity:   cfg.FeedCapacity,
		ReadAfter:  cfg.FeedReadAfter,
		Desktop:    desktop,
		OwnerName:  cfg.OwnerName,
		OwnerPhone: cfg.OwnerPhone,
	})
	unobserve := notifications.Observe(func(s feed.Snapshot) {
		hub.Publish(feed.EventFeed, s)
	})
	defer unobserve()

	if err := notifications.Start(ctx); err != nil {
		logging.Fatal("start feed", "err", err)
	}
	go forms.Run(ctx)

	router := transporthttp.NewRouter(ctx, cfg, &transporthttp.Deps{
		Contact:  contactSvc,
		Forms:    forms,
		Feed:     notifications,
		Desktop:  desktop,
		Hub:      hub,
		Resume:   resumeSvc,
		Admin:    adminSvc,
		Verifier: verifier,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "backend", cfg.GatewayBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("server error", "err", err)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Streams only end when their channel closes.
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "err", err)
	}
	notifications.Stop()
	if err := notifier.Wait(shutdownCtx); err != nil {
		slog.Warn("notifications still in flight", "err", err)
	}
	slog.Info("server stopped")
}

// openGateway connects the configured backend. The returned func releases it.
func openGateway(ctx context.Context, cfg *config.Config, awsCfg aws.Config) (gateway.Gateway, func(), error) {
	switch cfg.GatewayBackend {
	case config.BackendMemory:
		return memory.New(
			domain.CollectionContactSubmissions,
			domain.CollectionHireMeClicks,
			domain.CollectionAnalytics,
			domain.CollectionResumeDownloads,
		), func() {}, nil
	case config.BackendDynamo:
		client := dynamo.NewClient(awsCfg, cfg)
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
		streams := dynamo.NewStreamsClient(awsCfg, cfg)
		return dynamo.NewGateway(client, streams, cfg.DynamoTables, cfg.DynamoStreamPollInterval), func() {}, nil
	case config.BackendPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return postgres.NewGateway(pool), pool.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown gateway backend %q", cfg.GatewayBackend)
}

func newRelay(cfg *config.Config) relay.Relay {
	if cfg.RelayMode == config.RelaySMTP {
		return relay.NewSMTPRelay(cfg)
	}
	if cfg.FormsRelayURL == "" {
		slog.Warn("FORMS_RELAY_URL not set, owner emails will fail")
	}
	return relay.NewFormsRelay(cfg.FormsRelayURL)
}

func newSMSSender(cfg *config.Config, awsCfg aws.Config) sns.SMSSender {
	if !cfg.SMSEnabled {
		return sns.NewLogSender()
	}
	if cfg.OwnerPhone == "" {
		slog.Warn("SMS enabled without OWNER_PHONE, texts will fail")
	}
	smsCfg := awsCfg.Copy()
	smsCfg.Region = cfg.SNSRegion
	return sns.NewSender(smsCfg)
}
