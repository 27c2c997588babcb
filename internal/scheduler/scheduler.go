package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const tickInterval = time.Second

// Trigger is a one-shot registration. It fires at FireAt and keeps firing on
// every tick until its handler deletes it.
type Trigger struct {
	ID     string
	Tag    string
	FireAt time.Time
}

type Store interface {
	Create(ctx context.Context, t Trigger) error
	Delete(ctx context.Context, id string) error
	Due(ctx context.Context, now time.Time) ([]Trigger, error)
	HasTag(ctx context.Context, tag string) (bool, error)
}

// HandlerFunc receives only the id of the trigger that fired.
type HandlerFunc func(ctx context.Context, triggerID string)

type Scheduler struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func New(store Store, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		logger:   logger,
		now:      time.Now,
		handlers: make(map[string]HandlerFunc),
	}
}

// Register sets the handler for triggers carrying tag.
func (s *Scheduler) Register(tag string, h HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[tag] = h
}

// Schedule creates a trigger that fires after delay and returns its id.
func (s *Scheduler) Schedule(ctx context.Context, delay time.Duration, tag string) (string, error) {
	t := Trigger{
		ID:     uuid.NewString(),
		Tag:    tag,
		FireAt: s.now().Add(delay),
	}
	if err := s.store.Create(ctx, t); err != nil {
		return "", fmt.Errorf("create trigger: %w", err)
	}
	return t.ID, nil
}

// ScheduleAt creates a trigger firing at the given time.
func (s *Scheduler) ScheduleAt(ctx context.Context, at time.Time, tag string) (string, error) {
	return s.Schedule(ctx, at.Sub(s.now()), tag)
}

// Delete removes a trigger. Deleting an unknown id is not an error.
func (s *Scheduler) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete trigger %s: %w", id, err)
	}
	return nil
}

// Run fires due triggers until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	s.logger.Info("scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick fires every trigger that is due now.
func (s *Scheduler) Tick(ctx context.Context) {
	due, err := s.store.Due(ctx, s.now())
	if err != nil {
		s.logger.Error("failed to list due triggers", "error", err)
		return
	}
	for _, t := range due {
		s.fire(ctx, t)
	}
}

func (s *Scheduler) fire(ctx context.Context, t Trigger) {
	s.mu.RLock()
	h, ok := s.handlers[t.Tag]
	s.mu.RUnlock()

	if !ok {
		s.logger.Warn("no handler for trigger, dropping", "trigger_id", t.ID, "tag", t.Tag)
		if err := s.Delete(ctx, t.ID); err != nil {
			s.logger.Error("failed to drop trigger", "trigger_id", t.ID, "error", err)
		}
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("trigger handler panicked",
				"trigger_id", t.ID,
				"tag", t.Tag,
				"error", fmt.Errorf("panic: %v", r),
			)
		}
	}()
	h(ctx, t.ID)
}

// Recurring returns a handler that runs job and then reschedules itself at
// the time returned by next.
func (s *Scheduler) Recurring(tag string, next func(now time.Time) time.Time, job func(ctx context.Context) error) HandlerFunc {
	return func(ctx context.Context, triggerID string) {
		if err := s.Delete(ctx, triggerID); err != nil {
			s.logger.Error("failed to delete recurring trigger", "tag", tag, "error", err)
			return
		}
		if _, err := s.ScheduleAt(ctx, next(s.now()), tag); err != nil {
			s.logger.Error("failed to reschedule recurring trigger", "tag", tag, "error", err)
		}
		if err := job(ctx); err != nil {
			s.logger.Error("recurring job failed", "tag", tag, "error", err)
		}
	}
}

// Ensure schedules a first trigger for tag unless one is already pending.
func (s *Scheduler) Ensure(ctx context.Context, tag string, at time.Time) error {
	ok, err := s.store.HasTag(ctx, tag)
	if err != nil {
		return fmt.Errorf("check pending %s: %w", tag, err)
	}
	if ok {
		return nil
	}
	if _, err := s.ScheduleAt(ctx, at, tag); err != nil {
		return err
	}
	return nil
}

// NextDaily returns the next occurrence of hour:00 strictly after now.
func NextDaily(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
