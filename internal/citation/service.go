package citation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// LockTimeout bounds how long a handler waits for the document lock.
	LockTimeout = 30 * time.Second

	MinSearchLength = 3
	searchLimit     = 10
)

type Repository interface {
	SourceScanner
	Append(ctx context.Context, c *Citation) error
	Get(ctx context.Context, row int) (*Citation, error)
	UpdateText(ctx context.Context, row int, who, what string, spans []Span) error
	UpdateLikes(ctx context.Context, row int, likes Likes) error
	UpdateComment(ctx context.Context, row int, comment string) error
	Random(ctx context.Context) (*Citation, error)
	Search(ctx context.Context, query string, limit int) ([]*Citation, error)
	Authors(ctx context.Context) ([]string, error)
}

// Cache is a best-effort key-value store with TTL. Entries may vanish at any time.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
}

// Locker serializes critical sections across all handlers of the deployment.
type Locker interface {
	WaitLock(ctx context.Context, timeout time.Duration) (unlock func(), err error)
}

type Service struct {
	repo      Repository
	index     *EditIndex
	lock      Locker
	signature string
}

func NewService(repo Repository, cache Cache, lock Locker, signature string) *Service {
	return &Service{
		repo:      repo,
		index:     NewEditIndex(repo, cache, lock),
		lock:      lock,
		signature: signature,
	}
}

func (s *Service) Index() *EditIndex {
	return s.index
}

// Add stores a new citation. Comment defaults to the bot signature tag.
// Manual citations are registered in the edit index so later edits of the
// source message reach the row.
func (s *Service) Add(ctx context.Context, c *Citation) error {
	if c.Comment == "" {
		c.Comment = SignatureTag(s.signature)
	}
	if c.Likes == nil {
		c.Likes = Likes{}
	}
	if err := s.repo.Append(ctx, c); err != nil {
		return fmt.Errorf("append citation: %w", err)
	}
	if c.Source != nil && c.Source.Type == SourceManual {
		if err := s.index.RecordNewManual(ctx, c.Source.ChatID, c.Source.MessageID, c.Row); err != nil {
			return fmt.Errorf("record edit index: %w", err)
		}
	}
	return nil
}

// AddManual parses a /cite message and stores the result.
// Returns ErrParse when the text does not follow citation syntax.
func (s *Service) AddManual(ctx context.Context, chatID int64, messageID int, text string, spans []Span) (*Citation, error) {
	parsed, err := ParseCommand(text, spans)
	if err != nil {
		return nil, err
	}
	c := &Citation{
		Who:    parsed.Who,
		What:   parsed.What,
		Spans:  parsed.Spans,
		Source: ManualSource(chatID, messageID),
	}
	if err := s.Add(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyEdit rewrites the author and body of the citation created from the
// edited message. Untracked messages and unparsable edits are ignored and
// reported as not applied.
func (s *Service) ApplyEdit(ctx context.Context, chatID int64, messageID int, text string, spans []Span) (int, bool, error) {
	unlock, err := s.lock.WaitLock(ctx, LockTimeout)
	if err != nil {
		return 0, false, err
	}
	defer unlock()

	row, ok, err := s.index.lookup(ctx, chatID, messageID)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, nil
	}

	// The cached entry may predate a hand edit of the table. A row that no
	// longer came from this message is a miss, not a target.
	c, err := s.repo.Get(ctx, row)
	if err != nil {
		return 0, false, fmt.Errorf("get citation %d: %w", row, err)
	}
	if c == nil || !c.Source.Is(SourceManual, chatID, messageID) {
		return 0, false, nil
	}

	parsed, err := ParseCommand(text, spans)
	if err != nil {
		return row, false, nil
	}

	if err := s.repo.UpdateText(ctx, row, parsed.Who, parsed.What, parsed.Spans); err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, false, nil
		}
		return row, false, fmt.Errorf("update citation %d: %w", row, err)
	}
	return row, true, nil
}

// LikeResult is the outcome of a like toggle.
type LikeResult struct {
	Count int
	Liked bool // true if the vote was added, false if removed
}

// ToggleLike adds voter to the citation's likes, or removes it if present.
// Returns ErrNotFound if the row holds no citation.
func (s *Service) ToggleLike(ctx context.Context, row int, voter string) (LikeResult, error) {
	if row < FirstRow {
		return LikeResult{}, ErrNotFound
	}

	unlock, err := s.lock.WaitLock(ctx, LockTimeout)
	if err != nil {
		return LikeResult{}, err
	}
	defer unlock()

	c, err := s.repo.Get(ctx, row)
	if err != nil {
		return LikeResult{}, fmt.Errorf("get citation %d: %w", row, err)
	}
	if c == nil {
		return LikeResult{}, ErrNotFound
	}

	likes := c.Likes
	if likes == nil {
		likes = Likes{}
	}
	liked := likes.Toggle(voter)
	if err := s.repo.UpdateLikes(ctx, row, likes); err != nil {
		return LikeResult{}, fmt.Errorf("update likes %d: %w", row, err)
	}
	return LikeResult{Count: len(likes), Liked: liked}, nil
}

// SetComment replaces the free-text comment of a citation. Comments holding a
// back-reference to the original message are never overwritten.
func (s *Service) SetComment(ctx context.Context, row int, comment string) error {
	if row < FirstRow {
		return ErrNotFound
	}

	unlock, err := s.lock.WaitLock(ctx, LockTimeout)
	if err != nil {
		return err
	}
	defer unlock()

	c, err := s.repo.Get(ctx, row)
	if err != nil {
		return fmt.Errorf("get citation %d: %w", row, err)
	}
	if c == nil {
		return ErrNotFound
	}
	if _, ok := ParseBackReference(c.Comment); ok {
		return ErrCommentLocked
	}
	if err := s.repo.UpdateComment(ctx, row, strings.TrimSpace(comment)); err != nil {
		return fmt.Errorf("update comment %d: %w", row, err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, row int) (*Citation, error) {
	if row < FirstRow {
		return nil, ErrNotFound
	}
	c, err := s.repo.Get(ctx, row)
	if err != nil {
		return nil, fmt.Errorf("get citation %d: %w", row, err)
	}
	if c == nil {
		return nil, ErrNotFound
	}
	return c, nil
}

func (s *Service) Random(ctx context.Context) (*Citation, error) {
	c, err := s.repo.Random(ctx)
	if err != nil {
		return nil, fmt.Errorf("random citation: %w", err)
	}
	if c == nil {
		return nil, ErrNotFound
	}
	return c, nil
}

// Search finds citations whose body or author contains query.
func (s *Service) Search(ctx context.Context, query string) ([]*Citation, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinSearchLength {
		return nil, ErrQueryTooShort
	}
	found, err := s.repo.Search(ctx, query, searchLimit)
	if err != nil {
		return nil, fmt.Errorf("search citations: %w", err)
	}
	return found, nil
}

// Authors returns distinct author names.
func (s *Service) Authors(ctx context.Context) ([]string, error) {
	authors, err := s.repo.Authors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}
	return authors, nil
}
