package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler drives the monitor at a fixed interval. The cron chain is
// configured single-flight: a sweep that outlives the interval makes
// the next tick wait its turn instead of overlapping it.
type Scheduler struct {
	cron     *cron.Cron
	monitor  *Monitor
	logger   *zap.Logger
	interval time.Duration
}

// NewScheduler constructs a scheduler around the monitor.
func NewScheduler(m *Monitor, interval time.Duration, logger *zap.Logger) *Scheduler {
	cronLogger := cronZapLogger{sugar: logger.Sugar().Named("cron")}
	return &Scheduler{
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger))),
		monitor:  m,
		logger:   logger,
		interval: interval,
	}
}

// Start registers the tick job and begins ticking.
func (s *Scheduler) Start() error {
	spec := fmt.Sprintf("@every %s", s.interval)
	_, err := s.cron.AddFunc(spec, func() {
		if err := s.monitor.RunTick(context.Background()); err != nil {
			s.logger.Error("monitor tick failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule monitor tick: %w", err)
	}
	s.cron.Start()
	s.logger.Info("breach monitor started", zap.Duration("interval", s.interval))
	return nil
}

// Stop halts scheduling and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("breach monitor stopped")
}

type cronZapLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronZapLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l cronZapLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
