package storage

import (
	"context"
	"log/slog"
	"time"
)

// ChangeWatcher calls onChange whenever another process commits to the
// database, e.g. a manual edit of the citations table. Writes made through
// this process do not trigger it.
type ChangeWatcher struct {
	db       *DB
	interval time.Duration
	onChange func(ctx context.Context) error
	logger   *slog.Logger
}

func NewChangeWatcher(db *DB, interval time.Duration, onChange func(ctx context.Context) error, logger *slog.Logger) *ChangeWatcher {
	return &ChangeWatcher{
		db:       db,
		interval: interval,
		onChange: onChange,
		logger:   logger,
	}
}

// Run calls onChange once before watching, since nothing records what was
// changed while the process was down.
func (w *ChangeWatcher) Run(ctx context.Context) {
	last, err := w.start(ctx)
	if err != nil {
		w.logger.Error("change watcher disabled", "error", err)
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			last = w.check(ctx, last)
		}
	}
}

func (w *ChangeWatcher) start(ctx context.Context) (int64, error) {
	last, err := w.db.DataVersion(ctx)
	if err != nil {
		return 0, err
	}
	if err := w.onChange(ctx); err != nil {
		w.logger.Error("change handler failed", "error", err)
	}
	return last, nil
}

func (w *ChangeWatcher) check(ctx context.Context, last int64) int64 {
	v, err := w.db.DataVersion(ctx)
	if err != nil {
		w.logger.Error("failed to read data version", "error", err)
		return last
	}
	if v == last {
		return last
	}
	w.logger.Info("external database change detected")
	if err := w.onChange(ctx); err != nil {
		w.logger.Error("change handler failed", "error", err)
		return last
	}
	return v
}
