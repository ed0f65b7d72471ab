package app

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/config"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/logger"
)

// RetentionSweeper periodically removes terminal workflows older than the
// configured age, keeping the in-memory registry bounded for long-lived
// processes. Pending and running workflows are never touched.
type RetentionSweeper struct {
	engine *Engine
	cfg    config.RetentionConfig
	logger *logger.Logger
	cron   *cron.Cron
}

// NewRetentionSweeper creates a sweeper from configuration.
func NewRetentionSweeper(engine *Engine, cfg config.RetentionConfig, log *logger.Logger) *RetentionSweeper {
	return &RetentionSweeper{
		engine: engine,
		cfg:    cfg,
		logger: log.With("component", "retention"),
	}
}

// Start schedules the sweep. No-op when retention is disabled.
func (s *RetentionSweeper) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.cfg.Schedule, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("retention sweeper started",
		"schedule", s.cfg.Schedule,
		"max_age", s.cfg.MaxAge,
	)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *RetentionSweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *RetentionSweeper) sweep() {
	cutoff := time.Now().UTC().Add(-s.cfg.MaxAge)
	if removed := s.engine.DeleteTerminalBefore(cutoff); removed > 0 {
		s.logger.Info("expired workflows removed", "count", removed)
	}
}
