package citation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	editIndexKey = "edit-index"
	editIndexTTL = 6 * time.Hour
)

// SourceScanner reads the provenance column of every citation row.
type SourceScanner interface {
	Sources(ctx context.Context) (map[int]*Source, error)
}

// EditIndex maps the message that produced a manual citation to its row.
// The map lives in the cache and is rebuilt from the row store whenever the
// cache has lost it. Every read-modify-write runs under the document lock,
// otherwise two handlers could rebuild concurrently and one would write back
// a copy without the other's fresh entry.
type EditIndex struct {
	sources SourceScanner
	cache   Cache
	lock    Locker
}

func NewEditIndex(sources SourceScanner, cache Cache, lock Locker) *EditIndex {
	return &EditIndex{sources: sources, cache: cache, lock: lock}
}

func indexKey(chatID int64, messageID int) string {
	return fmt.Sprintf("%d:%d", chatID, messageID)
}

// Lookup returns the row created from the given message, if it is known.
func (x *EditIndex) Lookup(ctx context.Context, chatID int64, messageID int) (int, bool, error) {
	unlock, err := x.lock.WaitLock(ctx, LockTimeout)
	if err != nil {
		return 0, false, err
	}
	defer unlock()
	return x.lookup(ctx, chatID, messageID)
}

// RecordNewManual adds a single mapping for a freshly stored manual citation.
func (x *EditIndex) RecordNewManual(ctx context.Context, chatID int64, messageID int, row int) error {
	unlock, err := x.lock.WaitLock(ctx, LockTimeout)
	if err != nil {
		return err
	}
	defer unlock()

	m, err := x.load(ctx)
	if err != nil {
		return err
	}
	m[indexKey(chatID, messageID)] = row
	return x.store(ctx, m)
}

// Invalidate drops the cached index. The next lookup rebuilds it.
func (x *EditIndex) Invalidate(ctx context.Context) error {
	if err := x.cache.Remove(ctx, editIndexKey); err != nil {
		return fmt.Errorf("invalidate edit index: %w", err)
	}
	return nil
}

// Rebuild rescans the row store and replaces the cached index.
func (x *EditIndex) Rebuild(ctx context.Context) (map[string]int, error) {
	unlock, err := x.lock.WaitLock(ctx, LockTimeout)
	if err != nil {
		return nil, err
	}
	defer unlock()

	m, err := x.rebuild(ctx)
	if err != nil {
		return nil, err
	}
	if err := x.store(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// lookup must be called with the lock held.
func (x *EditIndex) lookup(ctx context.Context, chatID int64, messageID int) (int, bool, error) {
	m, err := x.load(ctx)
	if err != nil {
		return 0, false, err
	}
	row, ok := m[indexKey(chatID, messageID)]
	return row, ok, nil
}

// load returns the cached index, rebuilding and caching it when missing.
func (x *EditIndex) load(ctx context.Context) (map[string]int, error) {
	raw, ok, err := x.cache.Get(ctx, editIndexKey)
	if err != nil {
		return nil, fmt.Errorf("read edit index: %w", err)
	}
	if ok {
		m := map[string]int{}
		if err := json.Unmarshal([]byte(raw), &m); err == nil {
			return m, nil
		}
		// Unreadable entry is treated as a miss.
	}

	m, err := x.rebuild(ctx)
	if err != nil {
		return nil, err
	}
	if err := x.store(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (x *EditIndex) rebuild(ctx context.Context) (map[string]int, error) {
	sources, err := x.sources.Sources(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan sources: %w", err)
	}
	m := make(map[string]int, len(sources))
	for row, src := range sources {
		if src == nil || src.Type != SourceManual {
			continue
		}
		key := indexKey(src.ChatID, src.MessageID)
		if prev, ok := m[key]; !ok || row > prev {
			m[key] = row
		}
	}
	return m, nil
}

func (x *EditIndex) store(ctx context.Context, m map[string]int) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal edit index: %w", err)
	}
	if err := x.cache.Put(ctx, editIndexKey, string(data), editIndexTTL); err != nil {
		return fmt.Errorf("write edit index: %w", err)
	}
	return nil
}
