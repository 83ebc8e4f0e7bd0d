package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseScanning        Phase = "scanning"
	PhaseMigrationNeeded Phase = "migration_needed"
	PhaseNoMigration     Phase = "no_migration"
	PhaseMigrating       Phase = "migrating"
	PhaseRecording       Phase = "recording"
	PhaseStopped         Phase = "stopped"
)

type FrameMigrator interface {
	Detect() (int, error)
	Execute(ctx context.Context) (*MigrationReport, error)
}

type TimelapseRecorder interface {
	Recover(ctx context.Context) error
	Run(ctx context.Context) error
}

type SupervisorConfig struct {
	AutoMigrate  bool
	SkipConfirm  bool
	ConfirmDelay time.Duration
}

// Supervisor drives startup: an optional migration sweep, then recording.
// Migration never prevents recording from starting.
type Supervisor struct {
	migrator FrameMigrator
	recorder TimelapseRecorder
	logger   *zap.Logger
	cfg      SupervisorConfig
	phases   []Phase
}

func NewSupervisor(migrator FrameMigrator, recorder TimelapseRecorder, logger *zap.Logger, cfg SupervisorConfig) *Supervisor {
	return &Supervisor{
		migrator: migrator,
		recorder: recorder,
		logger:   logger,
		cfg:      cfg,
		phases:   []Phase{PhaseIdle},
	}
}

// Phases lists every phase entered so far, in order.
func (s *Supervisor) Phases() []Phase {
	return append([]Phase(nil), s.phases...)
}

func (s *Supervisor) enter(p Phase) {
	s.phases = append(s.phases, p)
	s.logger.Info("entering phase", zap.String("phase", string(p)))
}

func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Info("time-lapse service starting",
		zap.Bool("auto_migrate", s.cfg.AutoMigrate),
		zap.Bool("skip_confirm", s.cfg.SkipConfirm),
	)

	if s.cfg.AutoMigrate {
		s.migrate(ctx)
	} else {
		s.logger.Info("auto-migration disabled, skipping check")
	}

	s.enter(PhaseRecording)
	if ctx.Err() == nil {
		if err := s.recorder.Recover(ctx); err != nil {
			s.logger.Warn("recovery of previous frames incomplete", zap.Error(err))
		}
	}
	err := s.recorder.Run(ctx)
	s.enter(PhaseStopped)
	return err
}

func (s *Supervisor) migrate(ctx context.Context) {
	s.enter(PhaseScanning)
	n, err := s.migrator.Detect()
	if err != nil {
		s.logger.Warn("legacy frame scan failed, continuing with recording", zap.Error(err))
		s.enter(PhaseNoMigration)
		return
	}
	if n == 0 {
		s.logger.Info("no old frames found, starting fresh")
		s.enter(PhaseNoMigration)
		return
	}

	s.enter(PhaseMigrationNeeded)
	s.logger.Info("old frames detected", zap.Int("frames", n))

	if !s.cfg.SkipConfirm {
		s.logger.Info("starting migration after delay, interrupt to cancel", zap.Duration("delay", s.cfg.ConfirmDelay))
		if !sleepCtx(ctx, s.cfg.ConfirmDelay) {
			s.logger.Info("migration cancelled")
			return
		}
	}

	s.enter(PhaseMigrating)
	report, err := s.migrator.Execute(ctx)
	if err != nil {
		s.logger.Warn("migration failed, continuing with recording anyway", zap.Error(err))
		return
	}
	s.logger.Info("migration completed",
		zap.Int("videos_created", report.Succeeded),
		zap.Int("failed", report.Failed),
	)
}
