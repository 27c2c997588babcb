package bot

import (
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	"nuclight.org/citebot/internal/citation"
)

// SendTemporary sends a message and deletes it after ttl.
func (b *Bot) SendTemporary(to tele.Recipient, what any, ttl time.Duration, opts ...any) (*tele.Message, error) {
	msg, err := b.bot.Send(to, what, opts...)
	if err != nil {
		return nil, err
	}
	time.AfterFunc(ttl, func() {
		if err := b.bot.Delete(msg); err != nil {
			b.logger.Warn("failed to delete temporary message", "message_id", msg.ID, "error", err)
		}
	})
	return msg, nil
}

// sendCitation sends a rendered citation with its like button. prefix, if
// set, goes on its own line above the citation.
func (b *Bot) sendCitation(to tele.Recipient, c *citation.Citation, prefix string) error {
	html, err := RenderCitation(NewCitationView(c, b.opts.Signature))
	if err != nil {
		return err
	}
	if prefix != "" {
		html = prefix + "\n" + html
	}
	_, err = b.bot.Send(to, html, likeMarkup(c.Row, len(c.Likes)), tele.ModeHTML)
	return err
}

// MessageRef builds a minimal message reference for edit and delete calls.
func MessageRef(chatID int64, messageID int) *tele.Message {
	return &tele.Message{ID: messageID, Chat: &tele.Chat{ID: chatID}}
}

func chatRecipient(chatID int64) *tele.Chat {
	return &tele.Chat{ID: chatID}
}

func rowData(row int) string {
	return strconv.Itoa(row)
}
