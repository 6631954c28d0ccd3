package pull

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/reytech/scprs-intel/internal/matching"
	"github.com/reytech/scprs-intel/internal/registry"
	"github.com/reytech/scprs-intel/internal/store"
)

// Scheduler pulls due agencies on a cron cadence and runs a matching scan
// after each successful pull, so outcomes settle while the data is fresh.
type Scheduler struct {
	runner  *Runner
	store   *store.Store
	matcher *matching.Engine
	logger  *zap.Logger
	cron    *cron.Cron

	// PriorityCap limits scheduled pulls to the given search-plan tier.
	PriorityCap string
}

func NewScheduler(runner *Runner, s *store.Store, matcher *matching.Engine, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		runner:      runner,
		store:       s,
		matcher:     matcher,
		logger:      logger,
		PriorityCap: "all",
	}
}

// Start begins ticking on the given cron spec (e.g. "@every 30m"). Each
// tick pulls at most one due agency; agency cadences in the registry
// decide what is due.
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(spec, func() { s.tick(ctx) })
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("spec", spec))
	return nil
}

// Stop halts the cron loop, waiting for a running tick to finish.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	code, ok, err := s.NextDue(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("scheduler tick", zap.Error(err))
		return
	}
	if !ok {
		s.logger.Debug("no agency due")
		return
	}

	job, err := s.runner.Run(ctx, code, s.PriorityCap)
	if errors.Is(err, ErrPullInProgress) {
		s.logger.Info("skipping tick, pull in progress")
		return
	}
	if err != nil {
		s.logger.Error("scheduled pull", zap.String("agency", code), zap.Error(err))
		return
	}
	if job.Status != store.PullDone {
		s.logger.Warn("scheduled pull did not complete",
			zap.String("agency", code), zap.String("status", job.Status))
		return
	}

	report, err := s.matcher.Scan(ctx)
	if err != nil {
		s.logger.Error("post-pull matching scan", zap.Error(err))
		return
	}
	s.logger.Info("post-pull scan",
		zap.String("agency", code),
		zap.Int("matched", report.Matched),
		zap.Int("auto_closed", report.AutoClosed),
	)
}

// NextDue picks the due agency with the highest registry priority,
// breaking ties by registry order.
func (s *Scheduler) NextDue(ctx context.Context, now time.Time) (string, bool, error) {
	ordered := make([]registry.Agency, len(registry.Agencies))
	copy(ordered, registry.Agencies)
	sort.SliceStable(ordered, func(i, j int) bool {
		return registry.PriorityRank(ordered[i].Priority) > registry.PriorityRank(ordered[j].Priority)
	})

	codes := make([]string, len(ordered))
	for i, a := range ordered {
		codes[i] = a.Code
	}
	due, err := s.store.DueAgencies(ctx, codes, now)
	if err != nil {
		return "", false, err
	}
	if len(due) == 0 {
		return "", false, nil
	}
	return due[0], true, nil
}
