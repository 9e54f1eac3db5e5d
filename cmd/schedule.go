package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/lepinkainen/bookpipe/internal/config"
	"github.com/robfig/cron"
	"github.com/spf13/viper"
)

var runScheduled = runPipeline

// ScheduleCmd represents the schedule command
type ScheduleCmd struct {
	Cron   string `help:"Standard 5-field cron expression (defaults to schedule.cron, 0 9 * * *)"`
	RunNow bool   `help:"Trigger one run immediately after starting"`
}

// trigger runs the pipeline for a cron tick, skipping ticks that arrive
// while a previous run is still in flight.
type trigger struct {
	ctx     context.Context
	cfg     *config.Config
	running atomic.Bool
	run     func(context.Context, *config.Config) error
}

func (t *trigger) fire() bool {
	if !t.running.CompareAndSwap(false, true) {
		slog.Warn("Previous run still in progress, skipping trigger")
		return false
	}
	defer t.running.Store(false)

	if err := t.run(t.ctx, t.cfg); err != nil {
		slog.Error("Scheduled run failed", "error", err)
	}
	return true
}

func (s *ScheduleCmd) Run(ctx context.Context) error {
	spec := s.Cron
	if spec == "" {
		spec = viper.GetString("schedule.cron")
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}

	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}

	t := &trigger{ctx: ctx, cfg: cfg, run: runScheduled}

	c := cron.New()
	c.Schedule(schedule, cron.FuncJob(func() { t.fire() }))
	c.Start()
	defer c.Stop()

	slog.Info("Scheduler started", "cron", spec, "next_run", schedule.Next(time.Now()).Format(time.RFC3339))

	if s.RunNow {
		go t.fire()
	}

	<-ctx.Done()
	slog.Info("Scheduler stopping")
	return nil
}
