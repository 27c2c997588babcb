package citation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type memRepo struct {
	mu   sync.Mutex
	rows map[int]*Citation
	last int

	// onGet runs before every Get, outside the repo mutex.
	onGet func()
	// onUpdate runs before every UpdateText, outside the repo mutex.
	onUpdate func()
}

func newMemRepo() *memRepo {
	return &memRepo{rows: map[int]*Citation{}, last: FirstRow - 1}
}

func clone(c *Citation) *Citation {
	cp := *c
	cp.Likes = Likes{}
	for k := range c.Likes {
		cp.Likes[k] = true
	}
	cp.Spans = append([]Span(nil), c.Spans...)
	return &cp
}

func (m *memRepo) Append(ctx context.Context, c *Citation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last++
	c.Row = m.last
	m.rows[c.Row] = clone(c)
	return nil
}

func (m *memRepo) Get(ctx context.Context, row int) (*Citation, error) {
	if m.onGet != nil {
		m.onGet()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[row]
	if !ok {
		return nil, nil
	}
	return clone(c), nil
}

func (m *memRepo) UpdateText(ctx context.Context, row int, who, what string, spans []Span) error {
	if m.onUpdate != nil {
		m.onUpdate()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[row]
	if !ok {
		return fmt.Errorf("update text row %d: %w", row, ErrNotFound)
	}
	c.Who, c.What, c.Spans = who, what, spans
	return nil
}

func (m *memRepo) UpdateLikes(ctx context.Context, row int, likes Likes) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[row]
	if !ok {
		return errors.New("no row")
	}
	c.Likes = Likes{}
	for k := range likes {
		c.Likes[k] = true
	}
	return nil
}

func (m *memRepo) UpdateComment(ctx context.Context, row int, comment string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[row]
	if !ok {
		return errors.New("no row")
	}
	c.Comment = comment
	return nil
}

func (m *memRepo) Sources(ctx context.Context) (map[int]*Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int]*Source{}
	for row, c := range m.rows {
		out[row] = c.Source
	}
	return out, nil
}

func (m *memRepo) Random(ctx context.Context) (*Citation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rows {
		return clone(c), nil
	}
	return nil, nil
}

func (m *memRepo) Search(ctx context.Context, query string, limit int) ([]*Citation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Citation
	for _, c := range m.rows {
		if strings.Contains(c.What, query) || strings.Contains(c.Who, query) {
			out = append(out, clone(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Row < out[j].Row })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) Authors(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, c := range m.rows {
		if !seen[c.Who] {
			seen[c.Who] = true
			out = append(out, c.Who)
		}
	}
	sort.Strings(out)
	return out, nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string]string
	gets int
}

func newMemCache() *memCache {
	return &memCache{data: map[string]string{}}
}

func (c *memCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Remove(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// chanLock is a single-slot lock with a bounded wait.
type chanLock struct {
	slot chan struct{}
}

func newChanLock() *chanLock {
	return &chanLock{slot: make(chan struct{}, 1)}
}

func (l *chanLock) WaitLock(ctx context.Context, timeout time.Duration) (func(), error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case l.slot <- struct{}{}:
		return func() { <-l.slot }, nil
	case <-timer.C:
		return nil, errors.New("lock timeout")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *memRepo) remove(row int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, row)
}

// put stores c under its row as-is, like a hand edit of the table.
func (m *memRepo) put(c *Citation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[c.Row] = clone(c)
	if c.Row > m.last {
		m.last = c.Row
	}
}
