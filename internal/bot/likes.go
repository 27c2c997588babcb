package bot

import (
	"errors"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"nuclight.org/citebot/internal/citation"
)

// likeButton carries the citation row as its callback data.
var likeButton = tele.Btn{Unique: "like"}

func likeLabel(count int) string {
	if count == 0 {
		return "❤️"
	}
	return "❤️ " + strconv.Itoa(count)
}

func likeMarkup(row, count int) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	btn := markup.Data(likeLabel(count), likeButton.Unique, rowData(row))
	markup.Inline(markup.Row(btn))
	return markup
}

// handleLike toggles the presser's like on the citation named by the button.
// Presses on rows that no longer hold a citation are answered silently.
func (b *Bot) handleLike(c tele.Context) error {
	cb := c.Callback()
	row, err := strconv.Atoi(strings.TrimSpace(cb.Data))
	if err != nil {
		b.logger.Warn("malformed like payload", "data", cb.Data)
		return c.Respond()
	}
	voter := strconv.FormatInt(c.Sender().ID, 10)

	ctx, cancel := handlerContext()
	defer cancel()

	res, err := b.citations.ToggleLike(ctx, row, voter)
	if errors.Is(err, citation.ErrNotFound) {
		return c.Respond()
	}
	if err != nil {
		b.logger.Error("failed to toggle like", "row", row, "user_id", c.Sender().ID, "error", err)
		return c.Respond(&tele.CallbackResponse{Text: GetUserMessage(err)})
	}

	b.logger.Info("like toggled", "row", row, "user_id", c.Sender().ID, "liked", res.Liked, "count", res.Count)

	if _, err := b.bot.EditReplyMarkup(cb, likeMarkup(row, res.Count)); err != nil {
		b.logger.Warn("failed to update like button", "row", row, "error", err)
	}

	text := MsgLikeRemoved
	if res.Liked {
		text = MsgLikeAdded
	}
	return c.Respond(&tele.CallbackResponse{Text: text})
}
