package bot

import (
	"context"
	"errors"
	"fmt"

	"nuclight.org/citebot/internal/citation"
)

// DailyCiteTag is the scheduler tag of the citation of the day.
const DailyCiteTag = "daily-cite"

// SendCitationOfTheDay posts one random citation to every permitted group
// chat. A failure in one chat does not stop the others.
func (b *Bot) SendCitationOfTheDay(ctx context.Context) error {
	cit, err := b.citations.Random(ctx)
	if errors.Is(err, citation.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	groups, err := b.access.GroupChats(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, chatID := range groups {
		if err := b.sendCitation(chatRecipient(chatID), cit, MsgCitationOfTheDay); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
			continue
		}
		b.logger.Info("citation of the day sent", "chat_id", chatID, "row", cit.Row)
	}
	return errors.Join(errs...)
}
