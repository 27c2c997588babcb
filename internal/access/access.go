package access

import (
	"context"
	"fmt"
	"strings"
)

type ChatRepository interface {
	IsPermitted(ctx context.Context, chatID int64) (bool, error)
	Permit(ctx context.Context, chatID int64) (bool, error)
	List(ctx context.Context) ([]int64, error)
}

type BanRepository interface {
	IsBanned(ctx context.Context, userID int64) (bool, error)
	Ban(ctx context.Context, userID int64, name string) error
	Unban(ctx context.Context, userID int64) (bool, error)
}

type PassphraseSource interface {
	Passphrase(ctx context.Context) (string, error)
}

// Service decides which chats may use the bot and which users are shut out.
type Service struct {
	chats      ChatRepository
	bans       BanRepository
	passphrase PassphraseSource
}

func NewService(chats ChatRepository, bans BanRepository, passphrase PassphraseSource) *Service {
	return &Service{
		chats:      chats,
		bans:       bans,
		passphrase: passphrase,
	}
}

// Register permits chatID if text is the shared passphrase. It reports true
// only when the chat was newly added; an empty passphrase never matches.
func (s *Service) Register(ctx context.Context, chatID int64, text string) (bool, error) {
	want, err := s.passphrase.Passphrase(ctx)
	if err != nil {
		return false, fmt.Errorf("read passphrase: %w", err)
	}
	if want == "" || strings.TrimSpace(text) != want {
		return false, nil
	}
	added, err := s.chats.Permit(ctx, chatID)
	if err != nil {
		return false, fmt.Errorf("permit chat %d: %w", chatID, err)
	}
	return added, nil
}

func (s *Service) Permitted(ctx context.Context, chatID int64) (bool, error) {
	ok, err := s.chats.IsPermitted(ctx, chatID)
	if err != nil {
		return false, fmt.Errorf("check chat %d: %w", chatID, err)
	}
	return ok, nil
}

// GroupChats returns permitted group chats, those with a negative id.
func (s *Service) GroupChats(ctx context.Context) ([]int64, error) {
	ids, err := s.chats.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	groups := ids[:0]
	for _, id := range ids {
		if id < 0 {
			groups = append(groups, id)
		}
	}
	return groups, nil
}

func (s *Service) Banned(ctx context.Context, userID int64) (bool, error) {
	ok, err := s.bans.IsBanned(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("check ban %d: %w", userID, err)
	}
	return ok, nil
}

func (s *Service) Ban(ctx context.Context, userID int64, name string) error {
	if err := s.bans.Ban(ctx, userID, name); err != nil {
		return fmt.Errorf("ban %d: %w", userID, err)
	}
	return nil
}

// Unban reports whether the user had been banned.
func (s *Service) Unban(ctx context.Context, userID int64) (bool, error) {
	removed, err := s.bans.Unban(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("unban %d: %w", userID, err)
	}
	return removed, nil
}
