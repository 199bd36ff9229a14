// Package scheduler drives the engine: a daily cadence loop plus the
// per-account sweep one trigger executes.
package scheduler

import (
	"context"
	"sort"
	"time"

	"aurum/internal/account"
	"aurum/internal/logger"
)

// DailyScheduler fires a task at fixed wall-clock times every day,
// evaluated in a configured timezone.
type DailyScheduler struct {
	Times          []account.TimeOfDay
	Location       *time.Location
	RunImmediately bool

	ctx   context.Context
	nowFn func() time.Time
}

func NewDailyScheduler(ctx context.Context, times []account.TimeOfDay, loc *time.Location) *DailyScheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	if loc == nil {
		loc = time.Local
	}
	sorted := append([]account.TimeOfDay(nil), times...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return &DailyScheduler{
		Times:    sorted,
		Location: loc,
		ctx:      ctx,
		nowFn:    time.Now,
	}
}

// Start blocks, invoking task at each trigger until the context ends.
func (s *DailyScheduler) Start(task func()) {
	if s == nil || task == nil {
		return
	}
	if len(s.Times) == 0 {
		logger.Warnf("DailyScheduler: no trigger times configured, exit")
		return
	}

	startAt := s.nowFn().In(s.Location)
	logger.Infof("DailyScheduler: started times=%v tz=%s run_immediately=%v at=%s",
		s.Times, s.Location, s.RunImmediately, startAt.Format(time.RFC3339))

	if s.RunImmediately {
		logger.Infof("DailyScheduler: run_immediately=true, execute once before loop")
		task()
	}

	for {
		now := s.nowFn().In(s.Location)
		next := s.nextTrigger(now)
		wait := next.Sub(now)
		logger.Infof("DailyScheduler: 下一次执行=%s (in %s)",
			next.Format(time.RFC3339), wait.Truncate(time.Second))

		if wait <= 0 {
			task()
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			logger.Infof("DailyScheduler: ctx done, exit")
			return
		case <-timer.C:
		}
		task()
	}
}

// nextTrigger returns the first configured time strictly after now, rolling
// into the next day when today's triggers are exhausted.
func (s *DailyScheduler) nextTrigger(now time.Time) time.Time {
	now = now.In(s.Location)
	for _, tod := range s.Times {
		cand := time.Date(now.Year(), now.Month(), now.Day(), int(tod)/60, int(tod)%60, 0, 0, s.Location)
		if cand.After(now) {
			return cand
		}
	}
	first := s.Times[0]
	tomorrow := now.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), int(first)/60, int(first)%60, 0, 0, s.Location)
}
