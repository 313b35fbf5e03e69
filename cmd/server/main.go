package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shehryarbajwa/importbridge/internal/api"
	"github.com/shehryarbajwa/importbridge/internal/auth"
	"github.com/shehryarbajwa/importbridge/internal/config"
	"github.com/shehryarbajwa/importbridge/internal/log"
	"github.com/shehryarbajwa/importbridge/internal/metrics"
	"github.com/shehryarbajwa/importbridge/internal/page"
	"github.com/shehryarbajwa/importbridge/internal/ratelimit"
	"github.com/shehryarbajwa/importbridge/internal/session"
	"github.com/shehryarbajwa/importbridge/internal/store"
	"github.com/shehryarbajwa/importbridge/internal/submit"
	"github.com/shehryarbajwa/importbridge/internal/template"
	"github.com/shehryarbajwa/importbridge/internal/widget"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		base := log.Base()
		base.Fatal().Err(err).Msg("invalid configuration")
	}

	log.Configure(log.Config{Level: cfg.LogLevel})
	logger := log.WithComponent("main")

	logger.Info().Msg("starting import bridge")

	catalog := template.Default(template.Key(cfg.FallbackTemplateKey))
	if cfg.TemplateFile != "" {
		catalog, err = template.LoadFile(cfg.TemplateFile, template.Key(cfg.FallbackTemplateKey))
		if err != nil {
			logger.Fatal().Err(err).Str("file", cfg.TemplateFile).Msg("failed to load template catalog")
		}
	}
	logger.Info().Int("templates", len(catalog.Entries())).Str("fallback", string(catalog.Fallback())).Msg("template catalog ready")

	// One outstanding session per owner, shared across replicas when Redis is configured
	var leases store.Leaser = store.NewMemory()
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rl, err := store.NewRedisFromURL(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rl.Close()
		leases = rl
		logger.Info().Msg("using redis session leases")
	}

	metrics.RegisterDefault()

	hub := page.NewHub()
	submitter := submit.NewClient(&http.Client{Timeout: cfg.SubmitTimeout}, cfg.PageURL, cfg.SubmitEndpoint, cfg.SubmitMaxTries)

	sessionMgr := session.NewManager(
		catalog,
		widget.NewPageLauncher(hub),
		submitter,
		hub,
		leases,
		session.Options{
			Widget:        widget.Settings{ClientID: cfg.ClientID, WebhookKey: cfg.WebhookKey},
			Timeout:       cfg.SessionTimeout,
			SubmitTimeout: cfg.SubmitTimeout,
			Retention:     cfg.SessionRetention,
		},
	)

	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitPerHour, cfg.RateLimitBurst)

	minter := auth.NewMinter(cfg.ClientID, []byte(cfg.TokenSecret), cfg.TokenTTL)
	if cfg.TokenSecret == "" {
		logger.Warn().Msg("TOKEN_SECRET not set, token minting disabled and launch tokens are not verified")
	}
	if cfg.WebhookSecret == "" {
		logger.Warn().Msg("WEBHOOK_SECRET not set, importer events are not verified")
	}

	sessionHandler := api.NewHandler(sessionMgr, hub, catalog, minter, cfg.WebhookSecret)
	tokenHandler := api.NewTokenHandler(minter)
	router := sessionHandler.SetupRoutes(tokenHandler, rateLimiter)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", cfg.Addr).
			Str("page", cfg.PageURL.String()).
			Int("rate_limit_per_hour", cfg.RateLimitPerHour).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.SubmitTimeout+10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	// Accepted imports still get forwarded to the backend
	if err := sessionMgr.Wait(ctx); err != nil {
		logger.Error().Err(err).Msg("in-flight submissions did not finish")
	}

	logger.Info().Msg("server stopped cleanly")
}
