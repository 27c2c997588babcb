package bot

import (
	tele "gopkg.in/telebot.v4"
)

// HandleErrors replies with the user message of a failed handler and logs
// errors that have an underlying cause. It must be the outermost middleware.
func (b *Bot) HandleErrors() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			if ShouldLog(err) {
				attrs := []any{"error", err}
				if chat := c.Chat(); chat != nil {
					attrs = append(attrs, "chat_id", chat.ID)
				}
				if sender := c.Sender(); sender != nil {
					attrs = append(attrs, "user_id", sender.ID)
				}
				b.logger.Error("handler failed", attrs...)
			}

			if c.Chat() == nil {
				return nil
			}
			if sendErr := c.Send(GetUserMessage(err)); sendErr != nil {
				b.logger.Warn("failed to report error to chat", "error", sendErr)
			}
			return nil
		}
	}
}

// RequirePermittedChat lets through messages from registered chats only.
// A message carrying the passphrase registers its chat; anything else from
// an unknown chat gets the fixed denial.
func (b *Bot) RequirePermittedChat() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			chat := c.Chat()
			if chat == nil {
				return nil
			}
			ctx, cancel := handlerContext()
			defer cancel()

			added, err := b.access.Register(ctx, chat.ID, b.stripSignature(c.Text()))
			if err != nil {
				return err
			}
			if added {
				b.logger.Info("chat registered", "chat_id", chat.ID, "user_id", senderID(c))
				return c.Send(MsgRegistered)
			}

			ok, err := b.access.Permitted(ctx, chat.ID)
			if err != nil {
				return err
			}
			if !ok {
				return c.Send(MsgWhoAreYou)
			}
			return next(c)
		}
	}
}

// RejectBanned stops banned senders with the fixed denial.
func (b *Bot) RejectBanned() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil {
				return next(c)
			}
			ctx, cancel := handlerContext()
			defer cancel()

			banned, err := b.access.Banned(ctx, sender.ID)
			if err != nil {
				return err
			}
			if banned {
				b.logger.Info("banned sender rejected", "user_id", sender.ID)
				if c.Callback() != nil {
					return c.Respond(&tele.CallbackResponse{Text: MsgYouAreBanned})
				}
				return c.Send(MsgYouAreBanned)
			}
			return next(c)
		}
	}
}

func (b *Bot) isAdmin(chatID int64, userID int64) (bool, error) {
	chat := &tele.Chat{ID: chatID}
	member, err := b.bot.ChatMemberOf(chat, &tele.User{ID: userID})
	if err != nil {
		return false, err
	}

	return member.Role == tele.Administrator || member.Role == tele.Creator, nil
}

// AdminOnly restricts a command to group admins. Private chats pass.
func (b *Bot) AdminOnly() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Chat().Type == tele.ChatPrivate {
				return next(c)
			}
			isAdmin, err := b.isAdmin(c.Chat().ID, c.Sender().ID)
			if err != nil {
				return err
			}

			if !isAdmin {
				return UserErrorf(MsgAdminsOnly)
			}

			return next(c)
		}
	}
}

// GroupOnly rejects commands sent in private chats.
func GroupOnly(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Chat().Type == tele.ChatPrivate {
			return UserErrorf(MsgPollsGroupsOnly)
		}
		return next(c)
	}
}

func senderID(c tele.Context) int64 {
	if s := c.Sender(); s != nil {
		return s.ID
	}
	return 0
}
