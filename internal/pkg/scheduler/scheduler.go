package scheduler

import (
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"

	"github.com/milanotravel/tourbooking/app/repository"
	"github.com/milanotravel/tourbooking/internal/pkg/currency"
	"github.com/milanotravel/tourbooking/internal/pkg/env"
)

// Scheduler manages the recurring maintenance jobs.
type Scheduler struct {
	cron      *cron.Cron
	converter *currency.Converter
	tokens    repository.TokenRepository
}

// NewScheduler creates a scheduler with all jobs registered but not yet
// running.
func NewScheduler(converter *currency.Converter, tokens repository.TokenRepository) *Scheduler {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)

	s := &Scheduler{
		cron:      c,
		converter: converter,
		tokens:    tokens,
	}

	s.registerJobs()
	return s
}

func (s *Scheduler) registerJobs() {
	// Nightly exchange rate refresh keeps stored rates warm so customer
	// requests rarely hit the external source.
	refreshSpec := env.GetEnv("EXCHANGE_REFRESH_CRON", "0 0 3 * * *")
	if _, err := s.cron.AddFunc(refreshSpec, s.refreshExchangeRates); err != nil {
		log.Errorf("[Scheduler] Failed to register exchange rate refresh: %v", err)
	}

	// Hourly audit of confirmation links that lapsed without a supplier
	// response. The proposals stay pending until staff act on them.
	auditSpec := env.GetEnv("TOKEN_AUDIT_CRON", "0 0 * * * *")
	if _, err := s.cron.AddFunc(auditSpec, s.auditExpiredTokens); err != nil {
		log.Errorf("[Scheduler] Failed to register token audit: %v", err)
	}

	log.Info("[Scheduler] All cron jobs registered")
}

func (s *Scheduler) refreshExchangeRates() {
	log.Info("[Scheduler] Refreshing stored exchange rates")
	if err := s.converter.RefreshStoredRates(); err != nil {
		log.Errorf("[Scheduler] Exchange rate refresh finished with errors: %v", err)
		return
	}
	log.Info("[Scheduler] Exchange rate refresh completed")
}

func (s *Scheduler) auditExpiredTokens() {
	count, err := s.tokens.CountExpiredUnused(time.Now())
	if err != nil {
		log.Errorf("[Scheduler] Token audit failed: %v", err)
		return
	}
	if count > 0 {
		log.Warnf("[Scheduler] %d confirmation links expired without a supplier response", count)
	}
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info("[Scheduler] Cron scheduler started")
}

// Stop gracefully stops the scheduler, waiting for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("[Scheduler] Cron scheduler stopped")
}
