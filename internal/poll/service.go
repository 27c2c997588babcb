package poll

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

const (
	// CloseTag is the scheduler tag of poll-close triggers.
	CloseTag = "poll-close"

	// RecordTTL must outlive the longest poll plus scheduler slack.
	RecordTTL   = 6 * time.Hour
	LockTimeout = 30 * time.Second

	MinOpenPeriod = 5
	MaxOpenPeriod = 600

	// closeGrace lets the last votes arrive before the close trigger fires.
	closeGrace = 3 * time.Second
)

type Sender interface {
	SendPoll(ctx context.Context, chatID int64, req Request) (*Issued, error)
}

// Cache is a best-effort key-value store with TTL. Entries may vanish at any time.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
}

// Scheduler fires a one-shot callback identified only by its trigger id.
type Scheduler interface {
	Schedule(ctx context.Context, delay time.Duration, tag string) (string, error)
	Delete(ctx context.Context, triggerID string) error
}

type Locker interface {
	WaitLock(ctx context.Context, timeout time.Duration) (unlock func(), err error)
}

// Handler runs the action of a closed poll. met tells whether the close
// condition of the record's action holds.
type Handler func(ctx context.Context, rec *Record, met bool) error

type Service struct {
	sender    Sender
	cache     Cache
	scheduler Scheduler
	lock      Locker
	logger    *slog.Logger
	handlers  map[Action]Handler
}

func NewService(sender Sender, cache Cache, scheduler Scheduler, lock Locker, logger *slog.Logger) *Service {
	return &Service{
		sender:    sender,
		cache:     cache,
		scheduler: scheduler,
		lock:      lock,
		logger:    logger,
		handlers:  make(map[Action]Handler),
	}
}

// Handle registers the handler for an action. Call before polls are issued.
func (s *Service) Handle(action Action, h Handler) {
	s.handlers[action] = h
}

func recordKey(pollID string) string {
	return "poll:" + pollID
}

func triggerKey(triggerID string) string {
	return "trigger:" + triggerID
}

// Issue sends a poll, stores its correlation record and schedules the close
// trigger. The trigger only carries its own id, so the id is mapped back to
// the poll through a side entry in the cache.
func (s *Service) Issue(ctx context.Context, chatID int64, req Request, action Action, subject Subject) (string, error) {
	if len(req.Options) < 2 {
		return "", ErrNoOptions
	}
	if req.OpenPeriod < MinOpenPeriod || req.OpenPeriod > MaxOpenPeriod {
		return "", ErrInvalidPeriod
	}
	if _, ok := s.handlers[action]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}

	issued, err := s.sender.SendPoll(ctx, chatID, req)
	if err != nil {
		return "", fmt.Errorf("send poll: %w", err)
	}

	rec := &Record{
		PollID:    issued.PollID,
		ChatID:    chatID,
		MessageID: issued.MessageID,
		Action:    action,
		Subject:   subject,
		Snapshot:  issued.Snapshot,
	}
	if err := s.putRecord(ctx, rec); err != nil {
		return "", err
	}

	delay := time.Duration(req.OpenPeriod)*time.Second + closeGrace
	triggerID, err := s.scheduler.Schedule(ctx, delay, CloseTag)
	if err != nil {
		return "", fmt.Errorf("schedule poll close: %w", err)
	}
	if err := s.cache.Put(ctx, triggerKey(triggerID), rec.PollID, RecordTTL); err != nil {
		// A trigger nobody can resolve would only fire into the void.
		if derr := s.scheduler.Delete(ctx, triggerID); derr != nil {
			s.logger.Error("failed to drop unmapped poll trigger", "trigger_id", triggerID, "error", derr)
		}
		return "", fmt.Errorf("store trigger mapping: %w", err)
	}

	s.logger.Info("poll issued",
		"poll_id", rec.PollID,
		"chat_id", chatID,
		"action", action,
		"trigger_id", triggerID,
	)
	return rec.PollID, nil
}

// OnProgress stores the latest tally of a poll. Fields set at issue time are
// kept. Polls this service did not issue, or whose record expired, are ignored.
func (s *Service) OnProgress(ctx context.Context, pollID string, snapshot Snapshot) error {
	unlock, err := s.lock.WaitLock(ctx, LockTimeout)
	if err != nil {
		return err
	}
	defer unlock()

	rec, err := s.getRecord(ctx, pollID)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	rec.Snapshot = snapshot
	return s.putRecord(ctx, rec)
}

// OnTimerFire consumes a close trigger: the trigger and its mapping are
// removed first, then the action runs at most once. Nothing is returned;
// failures are logged because there is nobody to report them to.
func (s *Service) OnTimerFire(ctx context.Context, triggerID string) {
	pollID, ok, err := s.consumeTrigger(ctx, triggerID)
	if err != nil {
		s.logger.Error("failed to consume poll trigger", "trigger_id", triggerID, "error", err)
		return
	}
	if !ok {
		s.logger.Debug("poll trigger already consumed", "trigger_id", triggerID)
		return
	}

	rec, err := s.getRecord(ctx, pollID)
	if err != nil {
		s.logger.Error("failed to load poll record", "poll_id", pollID, "error", err)
		return
	}
	if rec == nil {
		s.logger.Warn("poll record expired before close", "poll_id", pollID, "trigger_id", triggerID)
		return
	}

	h, ok := s.handlers[rec.Action]
	if !ok {
		s.logger.Error("no handler for closed poll", "poll_id", pollID, "error", fmt.Errorf("%w: %s", ErrUnknownAction, rec.Action))
		return
	}

	met := rec.Met()
	s.logger.Info("poll closed",
		"poll_id", pollID,
		"action", rec.Action,
		"met", met,
		"total_voters", rec.Snapshot.TotalVoters,
	)
	if err := h(ctx, rec, met); err != nil {
		s.logger.Error("poll action failed", "poll_id", pollID, "action", rec.Action, "error", err)
	}
}

// consumeTrigger resolves and clears the trigger under the lock so that two
// firings of the same trigger cannot both see the mapping.
func (s *Service) consumeTrigger(ctx context.Context, triggerID string) (string, bool, error) {
	unlock, err := s.lock.WaitLock(ctx, LockTimeout)
	if err != nil {
		return "", false, err
	}
	defer unlock()

	pollID, ok, err := s.cache.Get(ctx, triggerKey(triggerID))
	if err != nil {
		return "", false, fmt.Errorf("read trigger mapping: %w", err)
	}

	// The registration goes regardless of the mapping, or it would fire again.
	if err := s.scheduler.Delete(ctx, triggerID); err != nil {
		return "", false, fmt.Errorf("delete trigger: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	if err := s.cache.Remove(ctx, triggerKey(triggerID)); err != nil {
		return "", false, fmt.Errorf("remove trigger mapping: %w", err)
	}
	return pollID, true, nil
}

// Record returns the stored record of a poll, or nil if unknown or expired.
func (s *Service) Record(ctx context.Context, pollID string) (*Record, error) {
	return s.getRecord(ctx, pollID)
}

func (s *Service) getRecord(ctx context.Context, pollID string) (*Record, error) {
	raw, ok, err := s.cache.Get(ctx, recordKey(pollID))
	if err != nil {
		return nil, fmt.Errorf("read poll record: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode poll record: %w", err)
	}
	return &rec, nil
}

func (s *Service) putRecord(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode poll record: %w", err)
	}
	if err := s.cache.Put(ctx, recordKey(rec.PollID), string(data), RecordTTL); err != nil {
		return fmt.Errorf("store poll record: %w", err)
	}
	return nil
}
