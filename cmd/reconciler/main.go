// Command reconciler marks bookings paid whose checkout completed but whose
// webhook never arrived.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"hotel_booking/internal/adapters/observability"
	stripead "hotel_booking/internal/adapters/stripe"
	"hotel_booking/internal/app"
	"hotel_booking/internal/domain"
	"hotel_booking/internal/shared"
	"hotel_booking/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv, "reconciler")

	log.Info().
		Int("workers", cfg.ReconcileWorkers).
		Int("batch", cfg.ReconcileBatch).
		Msg("reconciler starting")

	repos, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("store open failed")
	}
	defer func() { _ = repos.Close(context.Background()) }()

	gateway := stripead.New(cfg.StripeKey, cfg.StripeWebhookSecret, cfg.Currency, nil)
	engine := app.NewEngine(repos.Ledger, repos.Catalog)
	payments := app.NewPaymentService(engine, repos.Ledger, repos.Catalog, gateway)

	pending, err := payments.PendingSessions(ctx, cfg.ReconcileBatch)
	if err != nil {
		log.Fatal().Err(err).Msg("list pending sessions failed")
	}

	workers := cfg.ReconcileWorkers
	if workers <= 0 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup
	var settled atomic.Int64

	for _, b := range pending {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("reconciliation interrupted")
			break
		}

		wg.Add(1)
		go func(b domain.Booking) {
			defer wg.Done()
			defer sem.Release(1)

			paid, err := payments.Reconcile(ctx, b)
			if err != nil {
				log.Warn().Str("booking", b.ID).Err(err).Msg("reconcile failed")
				return
			}
			if paid {
				settled.Add(1)
				log.Info().Str("booking", b.ID).Msg("booking marked paid")
			}
		}(b)
	}

	wg.Wait()
	log.Info().Int("checked", len(pending)).Int64("paid", settled.Load()).Msg("reconciliation completed")
}
