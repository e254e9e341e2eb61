// Package heartbeat logs an incrementing counter on a cron schedule. It runs
// independently of the connection and is stopped and joined at shutdown.
package heartbeat

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSchedule ticks once a second.
const DefaultSchedule = "@every 1s"

var scheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSchedule reports whether schedule is accepted by New.
func ValidateSchedule(schedule string) error {
	if schedule == "" {
		return nil
	}
	if _, err := scheduleParser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid heartbeat schedule %q: %w", schedule, err)
	}
	return nil
}

// Heartbeat logs "Counter" with an incrementing value on every tick.
type Heartbeat struct {
	cron     *cron.Cron
	logger   *zap.Logger
	schedule string
	count    atomic.Int64
}

// New parses schedule (standard cron with optional seconds, or a descriptor
// such as "@every 1s") and returns a stopped heartbeat.
func New(schedule string, logger *zap.Logger) (*Heartbeat, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &Heartbeat{
		logger:   logger,
		schedule: schedule,
	}

	h.cron = cron.New(
		cron.WithParser(scheduleParser),
		cron.WithLogger(NewZapCronLogger(logger)),
		cron.WithChain(cron.SkipIfStillRunning(NewZapCronLogger(logger))),
	)

	if _, err := h.cron.AddJob(schedule, h); err != nil {
		return nil, fmt.Errorf("invalid heartbeat schedule %q: %w", schedule, err)
	}

	return h, nil
}

// Run implements cron.Job.
func (h *Heartbeat) Run() {
	n := h.count.Add(1) - 1
	h.logger.Info("Counter", zap.Int64("count", n))
}

// Start begins ticking in the background.
func (h *Heartbeat) Start() {
	h.logger.Debug("Starting heartbeat", zap.String("schedule", h.schedule))
	h.cron.Start()
}

// Stop stops the schedule and waits for a running tick to finish, or for
// ctx to be done.
func (h *Heartbeat) Stop(ctx context.Context) error {
	done := h.cron.Stop()

	select {
	case <-done.Done():
		h.logger.Debug("Heartbeat stopped", zap.Int64("count", h.Count()))
		return nil
	default:
	}

	select {
	case <-done.Done():
		h.logger.Debug("Heartbeat stopped", zap.Int64("count", h.Count()))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Count returns the number of ticks so far.
func (h *Heartbeat) Count() int64 {
	return h.count.Load()
}
