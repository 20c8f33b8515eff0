package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"portfoliotracker/internal/pricing"
	"portfoliotracker/internal/store"
)

// HoldingsLister provides the symbols to refresh.
type HoldingsLister interface {
	ListHoldings(ctx context.Context) ([]store.Holding, error)
}

// Refresher runs one batch refresh.
type Refresher interface {
	RefreshAll(ctx context.Context, symbols []string, force bool) (pricing.Result, error)
}

// Scheduler runs periodic non-forced refreshes of all holdings.
type Scheduler struct {
	cron      *cron.Cron
	holdings  HoldingsLister
	refresher Refresher
	log       zerolog.Logger
}

func New(holdings HoldingsLister, refresher Refresher, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		holdings:  holdings,
		refresher: refresher,
		log:       log,
	}
}

// Register adds the refresh task under the given cron spec (6-field, with
// seconds).
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.refreshTask); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("scheduler started")
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) refreshTask() {
	ctx := context.Background()

	holdings, err := s.holdings.ListHoldings(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("scheduled refresh: list holdings")
		return
	}
	if len(holdings) == 0 {
		return
	}

	symbols := make([]string, 0, len(holdings))
	for _, h := range holdings {
		symbols = append(symbols, h.Symbol)
	}

	res, err := s.refresher.RefreshAll(ctx, symbols, false)
	if err != nil {
		s.log.Error().Err(err).Msg("scheduled refresh aborted")
		return
	}
	s.log.Info().
		Int("symbols", len(symbols)).
		Int("resolved", len(res.Prices)).
		Int("failures", len(res.Failures)).
		Int("calls_made", res.CallsMade).
		Msg("scheduled refresh done")
}
