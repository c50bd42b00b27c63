package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"artist-momentum/internal/alerting"
	"artist-momentum/internal/config"
	"artist-momentum/internal/scheduler"
	"artist-momentum/internal/storage"
)

// Service orchestrates the periodic threshold-alert sweep.
type Service struct {
	scheduler *scheduler.Scheduler
	evaluator *alerting.Evaluator
	logger    zerolog.Logger

	coolDown time.Duration
	locker   storage.AdvisoryLocker
	lockKey  int64
}

// New constructs the sweep service.
func New(cfg *config.Config, sched *scheduler.Scheduler, evaluator *alerting.Evaluator, locker storage.AdvisoryLocker, logger zerolog.Logger) *Service {
	return &Service{
		scheduler: sched,
		evaluator: evaluator,
		logger:    logger.With().Str("component", "service").Logger(),
		coolDown:  cfg.Alerting.ScoreCooldown,
		locker:    locker,
		lockKey:   cfg.Scheduler.AdvisoryLockKey,
	}
}

// Run begins the aligned sweep loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessSweep)
}

// ProcessSweep 执行单次阈值告警扫描。
// The advisory lock keeps overlapping sweeps (a slow run meeting the next
// interval, or another replica) from evaluating the same subscriptions
// concurrently.
func (s *Service) ProcessSweep(ctx context.Context, at time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("at", at).Msg("skip sweep because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	result, err := s.evaluator.EvaluateScoreAlerts(ctx, s.coolDown)
	if err != nil {
		return fmt.Errorf("evaluate score alerts: %w", err)
	}

	s.logger.Info().Time("at", at).
		Int("checked", result.Checked).
		Int("triggered", result.Triggered).
		Msg("alert sweep completed")
	return nil
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
