package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	cloudinaryad "hotel_booking/internal/adapters/cloudinary"
	"hotel_booking/internal/adapters/clerk"
	server "hotel_booking/internal/adapters/http_server"
	"hotel_booking/internal/adapters/mailer"
	"hotel_booking/internal/adapters/observability"
	redisad "hotel_booking/internal/adapters/redis"
	stripead "hotel_booking/internal/adapters/stripe"
	"hotel_booking/internal/app"
	"hotel_booking/internal/shared"
	"hotel_booking/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "api")

	reg := observability.InitRegistry()
	metricsSrv := observability.Serve(cfg.MetricsAddr, reg)

	repos, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("store open failed")
	}

	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err := cache.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("redis unreachable, reads fall through to the store")
	}

	idp, err := clerk.New(clerk.Config{
		Base:          cfg.ClerkBase,
		SecretKey:     cfg.ClerkSecretKey,
		JWTKey:        cfg.ClerkJWTKey,
		WebhookSecret: cfg.ClerkWebhookSecret,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize identity client")
	}
	images, err := cloudinaryad.New(cfg.CloudinaryName, cfg.CloudinaryKey, cfg.CloudinarySecret, "hotel-booking")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize image store")
	}
	gateway := stripead.New(cfg.StripeKey, cfg.StripeWebhookSecret, cfg.Currency, nil)
	queue := mailer.NewQueue(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	// services
	engine := app.NewEngine(repos.Ledger, repos.Catalog, app.WithPaidOnlyRevenue(cfg.PaidOnlyRevenue))
	identity := app.NewIdentityService(repos.Users, idp, cache, cfg.CacheTTL)
	catalog := app.NewCatalogService(repos.Catalog, images, identity, cache, cfg.CacheTTL)
	bookings := app.NewBookingService(engine, repos.Catalog, queue, cfg.Currency)
	payments := app.NewPaymentService(engine, repos.Ledger, repos.Catalog, gateway)

	// http
	srv := server.New(server.Options{RateLimitRPS: cfg.RateLimitRPS})
	if metricsSrv == nil {
		srv.Mount("/metrics", observability.MetricsHandler(reg))
	}
	srv.MountHandlers(&server.Handlers{
		Sessions: idp,
		Identity: identity,
		Catalog:  catalog,
		Bookings: bookings,
		Payments: payments,
	})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("store", cfg.StoreDriver).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	if err := queue.Close(); err != nil {
		log.Warn().Err(err).Msg("task queue close failed")
	}
	if err := cache.Close(); err != nil {
		log.Warn().Err(err).Msg("redis close failed")
	}
	if err := repos.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("store close failed")
	}
}
