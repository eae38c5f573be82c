package app

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/dividendos/internal/common"
	"github.com/bobmcallan/dividendos/internal/models"
)

type backgroundUpdater interface {
	StartBackgroundUpdate() *models.BackgroundUpdateResult
}

// cronLogger adapts the app logger to cron's logging interface.
type cronLogger struct {
	logger *common.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("Scheduler: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("Scheduler: " + msg)
}

// newScheduler registers a background refresh on the cron expression schedule.
// The scheduler is returned unstarted.
func newScheduler(schedule string, svc backgroundUpdater, logger *common.Logger) (*cron.Cron, error) {
	c := cron.New(
		cron.WithLogger(cronLogger{logger: logger}),
		cron.WithChain(cron.Recover(cronLogger{logger: logger})),
	)

	_, err := c.AddFunc(schedule, func() {
		runScheduledUpdate(svc, logger)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return c, nil
}

func runScheduledUpdate(svc backgroundUpdater, logger *common.Logger) {
	start := time.Now()
	res := svc.StartBackgroundUpdate()
	if res.AlreadyRunning {
		logger.Info().
			Int("progress", res.Progress).
			Str("current", res.CurrentItem).
			Msg("Scheduled update: job already running, skipping")
		return
	}
	logger.Info().
		Dur("elapsed", time.Since(start)).
		Msg("Scheduled update: started")
}

// StartScheduler starts the cron-driven refresh when it is enabled.
func (a *App) StartScheduler() error {
	if !a.Config.Scheduler.Enabled {
		a.Logger.Debug().Msg("Scheduler: disabled")
		return nil
	}

	c, err := newScheduler(a.Config.Scheduler.Schedule, a.DividendService, a.Logger)
	if err != nil {
		return err
	}
	c.Start()
	a.scheduler = c

	a.Logger.Info().
		Str("schedule", a.Config.Scheduler.Schedule).
		Msg("Scheduler: started")
	return nil
}
