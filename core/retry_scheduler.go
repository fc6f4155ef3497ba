package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// TimerRetryScheduler defers dispatch passes with in-process timers. The
// wait happens inside time.AfterFunc, so a backlog of retrying events never
// occupies delivery workers. Deployments with a job queue should prefer the
// gojob adapter's scheduler; this one loses pending timers on restart.
type TimerRetryScheduler struct {
	dispatcher Dispatcher
	logger     Logger
	now        func() time.Time

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewTimerRetryScheduler(dispatcher Dispatcher, logger Logger) (*TimerRetryScheduler, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("core: dispatcher is required")
	}
	return &TimerRetryScheduler{
		dispatcher: dispatcher,
		logger:     logger,
		now: func() time.Time {
			return time.Now().UTC()
		},
		timers: map[string]*time.Timer{},
	}, nil
}

func (s *TimerRetryScheduler) ScheduleDispatch(_ context.Context, eventID string, runAt time.Time) error {
	if s == nil || s.dispatcher == nil {
		return fmt.Errorf("core: timer retry scheduler is not configured")
	}
	delay := runAt.Sub(s.now())
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.timers[eventID]; ok {
		existing.Stop()
	}
	s.timers[eventID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, eventID)
		s.mu.Unlock()

		if _, err := s.dispatcher.DispatchPass(context.Background(), eventID); err != nil && s.logger != nil {
			s.logger.Error("deferred dispatch pass failed", "event_id", eventID, "error", err.Error())
		}
	})
	return nil
}

// Stop cancels all pending timers. Passes already running are unaffected.
func (s *TimerRetryScheduler) Stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for eventID, timer := range s.timers {
		timer.Stop()
		delete(s.timers, eventID)
	}
}

var _ RetryScheduler = (*TimerRetryScheduler)(nil)
